// Package warnid は警告記録の公開識別子（warn_id）を生成する。
package warnid

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

const (
	// Alphabet はwarn_idに使用する文字集合（36種）。
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Length はwarn_idの文字数。
	Length = 8
	// DefaultMaxAttempts は既定の最大試行回数。
	DefaultMaxAttempts = 32
)

// ErrExhausted は最大試行回数内に未使用のwarn_idが見つからなかったことを示す。
var ErrExhausted = errors.New("warn id generation exhausted")

// ExistsFunc は候補が既に使用されているかを判定する。
// 通常はストアのユニークインデックスに対する問い合わせで実装する。
type ExistsFunc func(ctx context.Context, candidate string) (bool, error)

// Generator はwarn_idを生成する。並行呼び出しに対して安全。
type Generator struct {
	maxAttempts int
	randInt     func(n int) (int, error)
}

// NewGenerator はGeneratorを生成する。
// maxAttemptsが0以下の場合は試行回数を制限しない。
func NewGenerator(maxAttempts int) *Generator {
	return &Generator{
		maxAttempts: maxAttempts,
		randInt:     cryptoRandInt,
	}
}

// Candidate は衝突確認を行わずに候補を1つ生成する。
func (g *Generator) Candidate() (string, error) {
	b := make([]byte, Length)
	for i := range b {
		n, err := g.randInt(len(Alphabet))
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		b[i] = Alphabet[n]
	}
	return string(b), nil
}

// Generate はexistsがfalseを返す候補が得られるまで生成を繰り返す。
// existsがエラーを返した場合は生成を中断してそのエラーを返す。
// ここでの確認は高速経路にすぎず、最終的な一意性はストアのユニーク制約が保証する。
func (g *Generator) Generate(ctx context.Context, exists ExistsFunc) (string, error) {
	for attempt := 1; g.maxAttempts <= 0 || attempt <= g.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate, err := g.Candidate()
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check warn id %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w after %d attempts", ErrExhausted, g.maxAttempts)
}

// Valid はsがwarn_idの形式（8文字、A-Z0-9）を満たすかを返す。
func Valid(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('A' <= c && c <= 'Z') && !('0' <= c && c <= '9') {
			return false
		}
	}
	return true
}

func cryptoRandInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

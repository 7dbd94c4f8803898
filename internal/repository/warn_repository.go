// Package repository はデータ永続化のインターフェースと実装を提供する。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/warnman/internal/model"
)

// ErrWarnIDConflict は挿入しようとしたwarn_idが既に存在することを示す。
// 生成時の存在確認と挿入の間で競合した場合に返る。
var ErrWarnIDConflict = errors.New("warn id already exists")

// WarnRepository は警告記録の永続化インターフェース。
type WarnRepository interface {
	// ExistsByWarnID は指定warn_idの記録が存在するかを返す。
	ExistsByWarnID(ctx context.Context, warnID string) (bool, error)

	// Create は警告記録を作成し、採番されたIDと作成日時をrecordに設定する。
	// warn_idが重複した場合はErrWarnIDConflictを返す。
	Create(ctx context.Context, record *model.WarnRecord) error

	// Search はwarn_id、識別子データ、警告理由のいずれかにkeywordを含む記録を
	// 大文字小文字を区別せずに検索する。作成日時の降順、同時刻はID降順で返す。
	Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error)

	// DeleteByWarnID は指定warn_idの記録を削除し、削除したかどうかを返す。
	DeleteByWarnID(ctx context.Context, warnID string) (bool, error)
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// validateRecord は挿入前の警告記録を検証し、識別子データを正規化する。
func validateRecord(record *model.WarnRecord) error {
	if strings.TrimSpace(record.WarningReason) == "" {
		return model.NewWarningReasonRequiredError()
	}
	if record.Data == nil {
		record.Data = model.NewGroupedIdentifiers()
	}
	return nil
}

// validateKeyword は検索キーワードを検証し、前後の空白を除いた値を返す。
func validateKeyword(keyword string) (string, error) {
	keyword = strings.TrimSpace(keyword)
	if len([]rune(keyword)) < model.MinKeywordLength {
		return "", model.NewKeywordTooShortError()
	}
	return keyword, nil
}

// likePattern はkeywordを部分一致用のLIKEパターンに変換する。
// エスケープ文字は '\' で、% と _ はリテラルとして扱う。
func likePattern(keyword string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(keyword) + "%"
}

// encodeData は識別子データを保存用のJSON文字列に変換する。
func encodeData(data model.GroupedIdentifiers) (string, error) {
	b, err := data.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("failed to encode identifier data: %w", err)
	}
	return string(b), nil
}

// scanWarnRecord は1行分の警告記録を読み取る。
func scanWarnRecord(row rowScanner) (*model.WarnRecord, error) {
	var (
		record model.WarnRecord
		data   string
	)
	if err := row.Scan(&record.ID, &record.WarnID, &data, &record.WarningReason, &record.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &record.Data); err != nil {
		return nil, fmt.Errorf("failed to decode identifier data of %s: %w", record.WarnID, err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}

// now は保存用の現在時刻を返す。両ドライバで同じ精度になるようマイクロ秒で切り捨てる。
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

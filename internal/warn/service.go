// Package warn は警告記録のドメインロジックを提供する。
// HTTP APIとDiscord Botの両方から同じServiceを呼び出す。
package warn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/warnman/internal/identifier"
	"github.com/hitoshi/warnman/internal/metrics"
	"github.com/hitoshi/warnman/internal/model"
	"github.com/hitoshi/warnman/internal/repository"
	"github.com/hitoshi/warnman/internal/warnid"
)

// MaxInsertAttempts はwarn_id衝突時に再生成して挿入を試みる最大回数。
const MaxInsertAttempts = 3

// IDGenerator はwarn_idの生成を抽象化する。
type IDGenerator interface {
	Generate(ctx context.Context, exists warnid.ExistsFunc) (string, error)
}

// Service は警告記録のサービス層。
// 作成、検索、削除のビジネスロジックを提供する。
type Service struct {
	repo    repository.WarnRepository
	gen     IDGenerator
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// mcがnilの場合はメトリクスを記録しない。
func NewService(repo repository.WarnRepository, gen IDGenerator, mc metrics.MetricsCollector) *Service {
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &Service{
		repo:    repo,
		gen:     gen,
		metrics: mc,
		logger:  slog.Default(),
	}
}

// Create は識別子を分類し、新しいwarn_idを採番して警告記録を保存する。
// 認識できない識別子は黙って除外される。
func (s *Service) Create(ctx context.Context, identifiers []string, reason string) (*model.WarnRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, model.NewWarningReasonRequiredError()
	}

	data := identifier.Classify(identifiers)

	for attempt := 1; attempt <= MaxInsertAttempts; attempt++ {
		warnID, err := s.gen.Generate(ctx, s.repo.ExistsByWarnID)
		if err != nil {
			return nil, fmt.Errorf("warn_idの生成に失敗しました: %w", err)
		}

		record := &model.WarnRecord{
			WarnID:        warnID,
			Data:          data,
			WarningReason: reason,
		}
		err = s.repo.Create(ctx, record)
		if errors.Is(err, repository.ErrWarnIDConflict) {
			s.metrics.RecordWarnIDConflict()
			s.logger.Warn("warn id conflict on insert, regenerating",
				slog.String("warn_id", warnID),
				slog.Int("attempt", attempt),
			)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("警告記録の保存に失敗しました: %w", err)
		}

		s.metrics.RecordWarnCreated(data.Total())
		return record, nil
	}

	return nil, fmt.Errorf("警告記録の保存に%d回失敗しました: %w", MaxInsertAttempts, repository.ErrWarnIDConflict)
}

// Search はkeywordを含む警告記録を新しい順に返す。
// 該当がない場合はエラーではなく空スライスを返す。
func (s *Service) Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
	keyword = strings.TrimSpace(keyword)
	if len([]rune(keyword)) < model.MinKeywordLength {
		return nil, model.NewKeywordTooShortError()
	}

	records, err := s.repo.Search(ctx, keyword)
	if err != nil {
		return nil, fmt.Errorf("警告記録の検索に失敗しました: %w", err)
	}
	if records == nil {
		records = []*model.WarnRecord{}
	}

	s.metrics.RecordSearch(len(records))
	return records, nil
}

// Delete は指定warn_idの警告記録を削除し、確認メッセージを返す。
func (s *Service) Delete(ctx context.Context, warnID string) (string, error) {
	warnID = strings.TrimSpace(warnID)
	if warnID == "" {
		return "", model.NewWarnIDRequiredError()
	}

	deleted, err := s.repo.DeleteByWarnID(ctx, warnID)
	if err != nil {
		return "", fmt.Errorf("警告記録の削除に失敗しました: %w", err)
	}
	if !deleted {
		return "", model.NewWarnNotFoundError(warnID)
	}

	s.metrics.RecordWarnDeleted()
	return fmt.Sprintf("成功刪除 warn_id 為 %s 的記錄", warnID), nil
}

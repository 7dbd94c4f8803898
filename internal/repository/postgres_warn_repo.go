package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/warnman/internal/model"
	"github.com/lib/pq"
)

// pqUniqueViolation はPostgreSQLのunique_violationエラーコード。
const pqUniqueViolation = "23505"

// PostgresWarnRepo はPostgreSQLを使用した警告記録リポジトリ。
// 大文字小文字を区別しない検索にILIKEを使用する。非ASCII文字の扱いはデータベースのロケールに従う。
type PostgresWarnRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresWarnRepo はPostgresWarnRepoを生成する。
func NewPostgresWarnRepo(db *sql.DB) *PostgresWarnRepo {
	return &PostgresWarnRepo{db: db, now: now}
}

// ExistsByWarnID は指定warn_idの記録が存在するかを返す。
func (r *PostgresWarnRepo) ExistsByWarnID(ctx context.Context, warnID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM identifier_data WHERE warn_id = $1)`,
		warnID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check warn id: %w", err)
	}
	return exists, nil
}

// Create は警告記録を作成する。
func (r *PostgresWarnRepo) Create(ctx context.Context, record *model.WarnRecord) error {
	if err := validateRecord(record); err != nil {
		return err
	}

	data, err := encodeData(record.Data)
	if err != nil {
		return err
	}

	createdAt := r.now()
	var id int64
	err = r.db.QueryRowContext(ctx,
		`INSERT INTO identifier_data (warn_id, data, warning_reason, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		record.WarnID, data, record.WarningReason, createdAt,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return ErrWarnIDConflict
		}
		return fmt.Errorf("failed to create warn record: %w", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	return nil
}

// Search はkeywordを含む警告記録を新しい順に返す。
func (r *PostgresWarnRepo) Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
	keyword, err := validateKeyword(keyword)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, warn_id, data, warning_reason, created_at
		 FROM identifier_data
		 WHERE warn_id ILIKE $1 ESCAPE '\'
		    OR data ILIKE $1 ESCAPE '\'
		    OR warning_reason ILIKE $1 ESCAPE '\'
		 ORDER BY created_at DESC, id DESC`,
		likePattern(keyword),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search warn records: %w", err)
	}
	defer rows.Close()

	records := []*model.WarnRecord{}
	for rows.Next() {
		record, err := scanWarnRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan warn record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate warn records: %w", err)
	}

	return records, nil
}

// DeleteByWarnID は指定warn_idの記録を削除する。
func (r *PostgresWarnRepo) DeleteByWarnID(ctx context.Context, warnID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM identifier_data WHERE warn_id = $1`,
		warnID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete warn record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ WarnRepository = (*PostgresWarnRepo)(nil)

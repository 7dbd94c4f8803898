package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/warnman/internal/model"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteWarnRepo はSQLiteを使用した警告記録リポジトリ。
// LIKEが大文字小文字を同一視するのはASCIIのみで、"Ü"と"ü"は別の文字として扱われる。
type SQLiteWarnRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteWarnRepo はSQLiteWarnRepoを生成する。
func NewSQLiteWarnRepo(db *sql.DB) *SQLiteWarnRepo {
	return &SQLiteWarnRepo{db: db, now: now}
}

// ExistsByWarnID は指定warn_idの記録が存在するかを返す。
func (r *SQLiteWarnRepo) ExistsByWarnID(ctx context.Context, warnID string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM identifier_data WHERE warn_id = ? LIMIT 1`,
		warnID,
	).Scan(&one)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check warn id: %w", err)
	}
	return true, nil
}

// Create は警告記録を作成する。
func (r *SQLiteWarnRepo) Create(ctx context.Context, record *model.WarnRecord) error {
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
		 VALUES (?, ?, ?, ?)
		 RETURNING id`,
		record.WarnID, data, record.WarningReason, createdAt,
	).Scan(&id)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrWarnIDConflict
		}
		return fmt.Errorf("failed to create warn record: %w", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	return nil
}

// Search はkeywordを含む警告記録を新しい順に返す。
func (r *SQLiteWarnRepo) Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error) {
	keyword, err := validateKeyword(keyword)
	if err != nil {
		return nil, err
	}

	pattern := likePattern(keyword)
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, warn_id, data, warning_reason, created_at
		 FROM identifier_data
		 WHERE warn_id LIKE ? ESCAPE '\'
		    OR data LIKE ? ESCAPE '\'
		    OR warning_reason LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC`,
		pattern, pattern, pattern,
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
func (r *SQLiteWarnRepo) DeleteByWarnID(ctx context.Context, warnID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM identifier_data WHERE warn_id = ?`,
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

// isSQLiteUniqueViolation はエラーがUNIQUE制約違反かを判定する。
func isSQLiteUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// compile-time interface check
var _ WarnRepository = (*SQLiteWarnRepo)(nil)

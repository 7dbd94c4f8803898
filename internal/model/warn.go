// Package model はドメインモデルを定義する。
package model

import "time"

// WarnRecord はプレイヤーに対する警告記録を表す。
// 作成後に更新されることはなく、削除のみ可能。
type WarnRecord struct {
	ID            int64
	WarnID        string
	Data          GroupedIdentifiers
	WarningReason string
	CreatedAt     time.Time
}

// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// HTTPとDiscordの両フロントエンドがCodeで分岐してレンダリングする。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, warn, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
	ErrCodeWarningReasonRequired = "WARNING_REASON_REQUIRED"
	ErrCodeKeywordTooShort       = "KEYWORD_TOO_SHORT"
	ErrCodeWarnIDRequired        = "WARN_ID_REQUIRED"
	ErrCodeWarnNotFound          = "WARN_NOT_FOUND"
	ErrCodeRateLimited           = "RATE_LIMITED"
	ErrCodeInternal              = "INTERNAL_ERROR"
)

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryWarn       = "warn"
	CategorySystem     = "system"
)

// MinKeywordLength は検索キーワードの最小文字数（前後空白除去後）。
const MinKeywordLength = 2

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("無效的請求格式: %s", reason),
		Category: CategoryValidation,
		Action:   "請以正確的 JSON 格式送出請求。",
	}
}

// NewWarningReasonRequiredError は警告理由が未指定または空白の場合のエラーを生成する。
func NewWarningReasonRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeWarningReasonRequired,
		Message:  "警告原因為必填欄位",
		Category: CategoryValidation,
		Action:   "請填寫 warning_reason。",
	}
}

// NewKeywordTooShortError は検索キーワードが短すぎる場合のエラーを生成する。
func NewKeywordTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeKeywordTooShort,
		Message:  fmt.Sprintf("請提供至少%d個字符的搜索關鍵詞", MinKeywordLength),
		Category: CategoryValidation,
		Action:   "請輸入 Warn ID、原因或識別碼的一部分。",
	}
}

// NewWarnIDRequiredError はwarn_idが空の場合のエラーを生成する。
func NewWarnIDRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeWarnIDRequired,
		Message:  "warn_id 不能為空",
		Category: CategoryValidation,
		Action:   "請指定要刪除的 Warn ID。",
	}
}

// NewWarnNotFoundError は指定warn_idの記録が存在しない場合のエラーを生成する。
func NewWarnNotFoundError(warnID string) *APIError {
	return &APIError{
		Code:     ErrCodeWarnNotFound,
		Message:  fmt.Sprintf("找不到 warn_id 為 %s 的記錄", warnID),
		Category: CategoryWarn,
		Action:   "請確認 Warn ID 是否正確。",
	}
}

// NewRateLimitedError はレート制限超過時のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "請求過於頻繁",
		Category: CategorySystem,
		Action:   "請稍候片刻再試。",
	}
}

// NewInternalError は内部エラーの汎用レスポンスを生成する。
// 詳細はログのみに記録し、呼び出し元には返さない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "伺服器內部錯誤",
		Category: CategorySystem,
		Action:   "請稍後再試。",
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/warnman/internal/middleware"
	"github.com/hitoshi/warnman/internal/model"
)

// maxRequestBodyBytes は警告記録作成リクエストのボディ上限。
const maxRequestBodyBytes = 1 << 20

// WarnServiceInterface は警告記録ハンドラーが必要とするサービスインターフェース。
type WarnServiceInterface interface {
	// Create は識別子を分類して警告記録を作成する。
	Create(ctx context.Context, identifiers []string, reason string) (*model.WarnRecord, error)
	// Search はキーワードに一致する警告記録を新しい順に返す。
	Search(ctx context.Context, keyword string) ([]*model.WarnRecord, error)
	// Delete はwarn_idの警告記録を削除し、確認メッセージを返す。
	Delete(ctx context.Context, warnID string) (string, error)
}

// WarnHandler は警告記録のHTTPハンドラー。
type WarnHandler struct {
	service WarnServiceInterface
}

// NewWarnHandler はWarnHandlerを生成する。
func NewWarnHandler(service WarnServiceInterface) *WarnHandler {
	return &WarnHandler{service: service}
}

// createWarnRequest は警告記録作成リクエストのボディ。
// warning_reasonは文字列以外を検証エラーにするため生のまま受け取る。
type createWarnRequest struct {
	Identifiers   []string        `json:"identifiers"`
	WarningReason json.RawMessage `json:"warning_reason"`
}

// createWarnResponse は警告記録作成のAPIレスポンス。
type createWarnResponse struct {
	Success       bool                     `json:"success"`
	ID            int64                    `json:"id"`
	WarnID        string                   `json:"warn_id"`
	Data          model.GroupedIdentifiers `json:"data"`
	WarningReason string                   `json:"warning_reason"`
	CreatedAt     time.Time                `json:"created_at"`
}

// warnRecordResponse は検索結果1件分のAPIレスポンス。
type warnRecordResponse struct {
	ID            int64                    `json:"id"`
	WarnID        string                   `json:"warn_id"`
	WarningReason string                   `json:"warning_reason"`
	CreatedAt     time.Time                `json:"created_at"`
	Data          model.GroupedIdentifiers `json:"data"`
}

// searchWarnsResponse は検索のAPIレスポンス。
type searchWarnsResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Result  []warnRecordResponse `json:"result"`
}

// deleteWarnResponse は削除のAPIレスポンス。
type deleteWarnResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CreateWarn は警告記録を作成する。
// POST /add-identifiers
func (h *WarnHandler) CreateWarn(w http.ResponseWriter, r *http.Request) {
	var req createWarnRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("無效的JSON格式"))
		return
	}

	reason, ok := decodeReason(req.WarningReason)
	if !ok {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewWarningReasonRequiredError())
		return
	}

	record, err := h.service.Create(r.Context(), req.Identifiers, reason)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createWarnResponse{
		Success:       true,
		ID:            record.ID,
		WarnID:        record.WarnID,
		Data:          record.Data,
		WarningReason: record.WarningReason,
		CreatedAt:     record.CreatedAt,
	})
}

// SearchWarns はキーワードで警告記録を検索する。
// GET /search-warns?keyword=
func (h *WarnHandler) SearchWarns(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.Search(r.Context(), r.URL.Query().Get("keyword"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result := make([]warnRecordResponse, len(records))
	for i, rec := range records {
		result[i] = warnRecordResponse{
			ID:            rec.ID,
			WarnID:        rec.WarnID,
			WarningReason: rec.WarningReason,
			CreatedAt:     rec.CreatedAt,
			Data:          rec.Data,
		}
	}

	writeJSON(w, http.StatusOK, searchWarnsResponse{
		Success: true,
		Count:   len(result),
		Result:  result,
	})
}

// DeleteWarn はwarn_idの警告記録を削除する。
// DELETE /delete-warn/{warn_id}
func (h *WarnHandler) DeleteWarn(w http.ResponseWriter, r *http.Request) {
	message, err := h.service.Delete(r.Context(), chi.URLParam(r, "warn_id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteWarnResponse{
		Success: true,
		Message: message,
	})
}

// decodeReason はwarning_reasonを文字列として取り出す。
// 未指定、null、文字列以外の場合はfalseを返す。空白のみの判定はサービス層で行う。
func decodeReason(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var reason *string
	if err := json.Unmarshal(raw, &reason); err != nil || reason == nil {
		return "", false
	}
	return *reason, true
}

// writeJSON はJSONレスポンスを書き込む。識別子に含まれる記号はエスケープしない。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse はAPIErrorを統一エラーフォーマットで書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラー（衝突の再試行切れや採番失敗を含む）は内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest,
		model.ErrCodeWarningReasonRequired,
		model.ErrCodeKeywordTooShort,
		model.ErrCodeWarnIDRequired:
		return http.StatusBadRequest
	case model.ErrCodeWarnNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

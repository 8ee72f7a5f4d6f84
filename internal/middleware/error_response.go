package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/ecopoints/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
//
// errorはmessageと同じ値で、{"error": "..."} 形式を読むクライアント向けに残している。
// request_idはリクエストIDミドルウェアを通った場合のみ付く。
type ErrorResponseBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Category  string `json:"category"`
	Action    string `json:"action"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	// リクエストIDミドルウェアが先にレスポンスヘッダーへ設定している
	requestID := w.Header().Get(RequestIDHeader)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Error:     apiErr.Message,
		Code:      apiErr.Code,
		Message:   apiErr.Message,
		Category:  apiErr.Category,
		Action:    apiErr.Action,
		RequestID: requestID,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

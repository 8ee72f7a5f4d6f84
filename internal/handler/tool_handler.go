package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecopoints/internal/tool"
)

// maxToolRequestBody はツール呼び出しで受け付けるボディの上限（画像アップロードを含む）。
const maxToolRequestBody = 20 << 20

// ToolProxyInterface は推論サービスへの中継インターフェース。
type ToolProxyInterface interface {
	Call(ctx context.Context, req tool.Request) (*tool.Result, error)
}

// ToolHandler はツール呼び出しのHTTPハンドラー。
type ToolHandler struct {
	proxy ToolProxyInterface
}

// NewToolHandler はToolHandlerを生成する。
func NewToolHandler(proxy ToolProxyInterface) *ToolHandler {
	return &ToolHandler{proxy: proxy}
}

// Call は推論サービスを呼び出し、レスポンスをそのまま返す。
// 成功時のポイント付与はバックグラウンドで行われ、レスポンスには影響しない。
// ANY /tools/{tool}, ANY /tools/{tool}/{arg}
func (h *ToolHandler) Call(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	result, err := h.proxy.Call(r.Context(), tool.Request{
		UserID:      userID,
		Tool:        chi.URLParam(r, "tool"),
		Arg:         chi.URLParam(r, "arg"),
		Method:      r.Method,
		ContentType: r.Header.Get("Content-Type"),
		Query:       r.URL.Query(),
		Body:        http.MaxBytesReader(w, r.Body, maxToolRequestBody),
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	contentType := result.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.StatusCode)
	w.Write(result.Body)
}

package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/model"
)

// maxUpstreamBody は上流レスポンスの読み取り上限。
const maxUpstreamBody = 10 << 20

// AwardScheduler は成功したツール呼び出しのポイント付与を開始する。
type AwardScheduler interface {
	Award(ctx context.Context, userID string, points int, activityType string, details *string) bool
}

// Request は1回分のツール呼び出し。
type Request struct {
	UserID      string
	Tool        string
	Arg         string
	Method      string
	ContentType string
	Query       url.Values
	Body        io.Reader
}

// Result は上流から返されたレスポンス。成功時は利用者にそのまま返す。
type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Awarded     bool
}

// Proxy は推論サービスへの中継を行う。
type Proxy struct {
	httpClient *http.Client
	baseURL    string
	registry   *Registry
	awards     AwardScheduler
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewProxy はProxyを生成する。baseURLは推論サービスのベースURL。
func NewProxy(httpClient *http.Client, baseURL string, registry *Registry, awards AwardScheduler, collector metrics.MetricsCollector, logger *slog.Logger) *Proxy {
	return &Proxy{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		registry:   registry,
		awards:     awards,
		metrics:    collector,
		logger:     logger,
	}
}

// Call は推論サービスを呼び出し、成功時にポイント付与を開始する。
//
// 上流の失敗（接続失敗、2xx以外、detailを含むJSON）はINFERENCE_FAILEDとして返し、付与は行わない。
// 付与はバックグラウンドで行われ、その成否は戻り値に影響しない。
func (p *Proxy) Call(ctx context.Context, req Request) (*Result, error) {
	if req.UserID == "" {
		return nil, model.NewUnauthorizedError()
	}

	t, ok := p.registry.Lookup(req.Tool)
	if !ok || t.HasArg() != (req.Arg != "") {
		return nil, model.NewToolNotFoundError(req.Tool)
	}
	if req.Method != t.Method {
		return nil, model.NewMethodNotAllowedError()
	}

	upstreamURL := p.baseURL + t.UpstreamPath(url.PathEscape(req.Arg))
	if len(req.Query) > 0 {
		upstreamURL += "?" + req.Query.Encode()
	}

	var body io.Reader
	if t.Method != http.MethodGet {
		body = req.Body
	}
	httpReq, err := http.NewRequestWithContext(ctx, t.Method, upstreamURL, body)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	if req.ContentType != "" && body != nil {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.metrics.RecordToolCall(t.Name, metrics.OutcomeTransportErr, time.Since(start))
		p.logger.Error("推論サービスの呼び出しに失敗しました",
			slog.String("tool", t.Name),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, model.NewInferenceFailedError("推論サービスが時間内に応答しませんでした。")
		}
		return nil, model.NewInferenceFailedError("推論サービスに接続できませんでした。")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		p.metrics.RecordToolCall(t.Name, metrics.OutcomeTransportErr, time.Since(start))
		return nil, model.NewInferenceFailedError("推論サービスのレスポンスを読み取れませんでした。")
	}
	elapsed := time.Since(start)

	decoded := decodeObject(respBody)
	if resp.StatusCode < 200 || resp.StatusCode > 299 || decoded["detail"] != nil {
		p.metrics.RecordToolCall(t.Name, metrics.OutcomeUpstreamError, elapsed)
		msg := upstreamMessage(decoded, resp.StatusCode)
		p.logger.Warn("推論サービスがエラーを返しました",
			slog.String("tool", t.Name),
			slog.Int("http_status", resp.StatusCode),
			slog.String("message", msg),
		)
		return nil, model.NewInferenceFailedError(msg)
	}

	p.metrics.RecordToolCall(t.Name, metrics.OutcomeSuccess, elapsed)

	var details *string
	if t.Describe != nil {
		if d := t.Describe(req.Arg, decoded); d != "" {
			details = &d
		}
	}
	awarded := p.awards.Award(ctx, req.UserID, t.Points, t.ActivityType, details)

	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        respBody,
		Awarded:     awarded,
	}, nil
}

// decodeObject はJSONオブジェクトとして解析できる場合にマップを返す。
func decodeObject(body []byte) map[string]any {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil
	}
	return m
}

// upstreamMessage は上流のエラーメッセージを取り出す。
// detailが文字列でない場合はJSONとして文字列化する。
func upstreamMessage(decoded map[string]any, status int) string {
	for _, key := range []string{"detail", "error", "message"} {
		v, ok := decoded[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprintf("Analysis failed. (status %d)", status)
}

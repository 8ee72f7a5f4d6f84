// Package pollution はインド全域の大気汚染観測所一覧を取得し、キャッシュして提供する。
package pollution

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/ecopoints/internal/model"
)

const (
	// DefaultBaseURL はWAQI APIのベースURL。
	DefaultBaseURL = "https://api.waqi.info"
	// IndiaBounds はインド全域を覆う緯度経度の範囲（南西の緯度,経度,北東の緯度,経度）。
	IndiaBounds = "6.74,68.03,35.50,97.39"
	// maxResponseBody はWAQIレスポンスの読み取り上限。
	maxResponseBody = 5 << 20
)

// waqiResponse はWAQI map/bounds APIのレスポンス。
type waqiResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client はWAQI APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientには内部ネットワークへ到達できないクライアントを渡すこと。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   baseURL + "/map/bounds/",
	}
}

// FetchStations はインド全域の観測所一覧を取得し、dataフィールドをそのまま返す。
//
// APIキー未設定の場合はMISSING_API_KEY、HTTPエラーやstatusが"ok"以外の場合は
// UPSTREAM_FAILEDを返す。
func (c *Client) FetchStations(ctx context.Context) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, model.NewMissingAPIKeyError()
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("latlng", IndiaBounds)
	q.Set("token", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// トークンを含むURLはログに出さない
		c.logger.Error("WAQI APIの呼び出しに失敗しました",
			slog.String("error", redactToken(err.Error(), c.apiKey)),
		)
		return nil, model.NewUpstreamFailedError("Failed to fetch pollution stations: request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("WAQI APIがエラーを返しました",
			slog.Int("status_code", resp.StatusCode),
		)
		return nil, model.NewUpstreamFailedError(
			fmt.Sprintf("Failed to fetch pollution stations: Error fetching data: %s", http.StatusText(resp.StatusCode)))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	var result waqiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("WAQI APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUpstreamFailedError("Failed to fetch pollution stations: invalid response")
	}

	if result.Status != "ok" {
		return nil, model.NewUpstreamFailedError(
			fmt.Sprintf("Failed to fetch pollution stations: API returned an error: %s", result.Message))
	}
	if len(result.Data) == 0 {
		return json.RawMessage("[]"), nil
	}

	return result.Data, nil
}

func redactToken(s, token string) string {
	if token == "" {
		return s
	}
	return strings.ReplaceAll(s, token, "REDACTED")
}

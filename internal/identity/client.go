// Package identity は外部IDプロバイダー連携を提供する。
// セッショントークンの検証とユーザープロフィールの一括取得を含む。
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/ecopoints/internal/model"
)

const (
	// DefaultAPIURL はIDプロバイダーAPIのデフォルトURL。
	DefaultAPIURL = "https://api.clerk.com"
	// maxIDsPerRequest は1リクエストあたりの最大ユーザーID数。
	maxIDsPerRequest = 100
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// Client はIDプロバイダーのユーザーAPIクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	secretKey  string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
// apiURLが空の場合はDefaultAPIURLを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiURL, secretKey string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		secretKey:  secretKey,
		endpoint:   strings.TrimRight(apiURL, "/") + "/v1/users",
	}
}

// userRecord はIDプロバイダーAPIのユーザーレスポンスの必要部分。
type userRecord struct {
	ID        string  `json:"id"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	ImageURL  string  `json:"image_url"`
}

// GetUsersByIDs は複数ユーザーのプロフィールを一括取得する。
// レスポンスに含まれないIDは結果のマップにも含まれない。
// 取得失敗時はエラーを返す（呼び出し元がプレースホルダーでの補完を判断する）。
func (c *Client) GetUsersByIDs(ctx context.Context, ids []string) (map[string]model.IdentityProfile, error) {
	if len(ids) == 0 {
		return make(map[string]model.IdentityProfile), nil
	}
	if len(ids) > maxIDsPerRequest {
		return nil, fmt.Errorf("ユーザーIDの数が上限を超えています: %d > %d", len(ids), maxIDsPerRequest)
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	for _, id := range ids {
		q.Add("user_id", id)
	}
	q.Set("limit", strconv.Itoa(len(ids)))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("IDプロバイダーAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("id_count", len(ids)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("IDプロバイダーAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("id_count", len(ids)),
		)
		return nil, fmt.Errorf("IDプロバイダーAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var records []userRecord
	if err := json.Unmarshal(body, &records); err != nil {
		c.logger.Error("IDプロバイダーAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	profiles := make(map[string]model.IdentityProfile, len(records))
	for _, r := range records {
		profiles[r.ID] = model.IdentityProfile{
			ID:        r.ID,
			FirstName: deref(r.FirstName),
			LastName:  deref(r.LastName),
			ImageURL:  r.ImageURL,
		}
	}
	return profiles, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecopoints/internal/dashboard"
	"github.com/hitoshi/ecopoints/internal/leaderboard"
	"github.com/hitoshi/ecopoints/internal/middleware"
	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/points"
	"github.com/hitoshi/ecopoints/internal/tool"
)

// --- モック定義 ---

// mockPointsService はPointsServiceInterfaceのモック実装。
type mockPointsService struct {
	awardPointsFn        func(ctx context.Context, in points.AwardInput) (*model.AwardResult, error)
	logActivityFn        func(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error)
	listRecentActivityFn func(ctx context.Context, userID string, limit int) ([]*model.Activity, error)
	getProfileFn         func(ctx context.Context, userID string) (*model.Profile, error)
}

func (m *mockPointsService) AwardPoints(ctx context.Context, in points.AwardInput) (*model.AwardResult, error) {
	if m.awardPointsFn != nil {
		return m.awardPointsFn(ctx, in)
	}
	return &model.AwardResult{NewTotalPoints: int64(in.PointsToAdd)}, nil
}

func (m *mockPointsService) LogActivity(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error) {
	if m.logActivityFn != nil {
		return m.logActivityFn(ctx, userID, activityType, details)
	}
	return nil, nil
}

func (m *mockPointsService) ListRecentActivity(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
	if m.listRecentActivityFn != nil {
		return m.listRecentActivityFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockPointsService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.getProfileFn != nil {
		return m.getProfileFn(ctx, userID)
	}
	return model.EmptyProfile(userID), nil
}

// mockLeaderboardService はLeaderboardServiceInterfaceのモック実装。
type mockLeaderboardService struct {
	getLeaderboardFn func(ctx context.Context) ([]leaderboard.Entry, error)
}

func (m *mockLeaderboardService) GetLeaderboard(ctx context.Context) ([]leaderboard.Entry, error) {
	if m.getLeaderboardFn != nil {
		return m.getLeaderboardFn(ctx)
	}
	return nil, nil
}

// mockDashboardService はDashboardServiceInterfaceのモック実装。
type mockDashboardService struct {
	buildFn func(ctx context.Context, userID string) (*dashboard.Snapshot, error)
}

func (m *mockDashboardService) Build(ctx context.Context, userID string) (*dashboard.Snapshot, error) {
	if m.buildFn != nil {
		return m.buildFn(ctx, userID)
	}
	return &dashboard.Snapshot{Profile: *model.EmptyProfile(userID)}, nil
}

// mockPollutionService はPollutionServiceInterfaceのモック実装。
type mockPollutionService struct {
	getStationsFn func(ctx context.Context) (json.RawMessage, error)
}

func (m *mockPollutionService) GetStations(ctx context.Context) (json.RawMessage, error) {
	if m.getStationsFn != nil {
		return m.getStationsFn(ctx)
	}
	return json.RawMessage("[]"), nil
}

// mockToolProxy はToolProxyInterfaceのモック実装。
type mockToolProxy struct {
	callFn func(ctx context.Context, req tool.Request) (*tool.Result, error)
}

func (m *mockToolProxy) Call(ctx context.Context, req tool.Request) (*tool.Result, error) {
	return m.callFn(ctx, req)
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	pingErr error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.pingErr }

// --- テストヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/ecopoints/internal/dashboard"
	"github.com/hitoshi/ecopoints/internal/leaderboard"
)

// LeaderboardServiceInterface はリーダーボードの取得インターフェース。
type LeaderboardServiceInterface interface {
	GetLeaderboard(ctx context.Context) ([]leaderboard.Entry, error)
}

// DashboardServiceInterface はダッシュボードの集計インターフェース。
type DashboardServiceInterface interface {
	Build(ctx context.Context, userID string) (*dashboard.Snapshot, error)
}

// PollutionServiceInterface は大気汚染観測所一覧の取得インターフェース。
type PollutionServiceInterface interface {
	GetStations(ctx context.Context) (json.RawMessage, error)
}

// BoardHandler はリーダーボード、ダッシュボード、観測所一覧の読み取り専用ハンドラー。
type BoardHandler struct {
	leaderboard LeaderboardServiceInterface
	dashboard   DashboardServiceInterface
	pollution   PollutionServiceInterface
}

// NewBoardHandler はBoardHandlerを生成する。
func NewBoardHandler(lb LeaderboardServiceInterface, db DashboardServiceInterface, pollution PollutionServiceInterface) *BoardHandler {
	return &BoardHandler{leaderboard: lb, dashboard: db, pollution: pollution}
}

// GetLeaderboard は上位ユーザーを返す。認証不要。
// GET /leaderboard
func (h *BoardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.GetLeaderboard(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetDashboard は認証済みユーザーのダッシュボードを返す。
// GET /dashboard
func (h *BoardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.dashboard.Build(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// GetPollutionStations はインド全域の観測所一覧を返す。認証不要。
// GET /pollution-stations
func (h *BoardHandler) GetPollutionStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.pollution.GetStations(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(stations)
}

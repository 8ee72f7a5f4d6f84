package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ecopoints/internal/dashboard"
	"github.com/hitoshi/ecopoints/internal/leaderboard"
	"github.com/hitoshi/ecopoints/internal/model"
)

func TestGetLeaderboard_EmptyIsArray(t *testing.T) {
	h := NewBoardHandler(&mockLeaderboardService{}, &mockDashboardService{}, &mockPollutionService{})
	w := httptest.NewRecorder()

	h.GetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %s, want []", w.Body.String())
	}
}

func TestGetLeaderboard_ResponseShape(t *testing.T) {
	lb := &mockLeaderboardService{getLeaderboardFn: func(ctx context.Context) ([]leaderboard.Entry, error) {
		return []leaderboard.Entry{
			{ID: "user_a", Points: 90, FullName: "Asha Rao", ImageURL: "https://img/a.png"},
			{ID: "user_b", Points: 70, FullName: leaderboard.UnnamedUser, ImageURL: leaderboard.DefaultAvatar},
		}, nil
	}}
	h := NewBoardHandler(lb, &mockDashboardService{}, &mockPollutionService{})
	w := httptest.NewRecorder()

	h.GetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	var got []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0]["fullName"] != "Asha Rao" || got[1]["imageUrl"] != "/default-avatar.png" {
		t.Errorf("entries = %v", got)
	}
}

func TestGetLeaderboard_Error(t *testing.T) {
	lb := &mockLeaderboardService{getLeaderboardFn: func(ctx context.Context) ([]leaderboard.Entry, error) {
		return nil, errors.New("db down")
	}}
	h := NewBoardHandler(lb, &mockDashboardService{}, &mockPollutionService{})
	w := httptest.NewRecorder()

	h.GetLeaderboard(w, httptest.NewRequest(http.MethodGet, "/leaderboard", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestGetDashboard_UsesAuthenticatedUser(t *testing.T) {
	var gotUser string
	db := &mockDashboardService{buildFn: func(ctx context.Context, userID string) (*dashboard.Snapshot, error) {
		gotUser = userID
		return &dashboard.Snapshot{Profile: model.Profile{ID: userID, Points: 120}, Streak: 3}, nil
	}}
	h := NewBoardHandler(&mockLeaderboardService{}, db, &mockPollutionService{})
	req := withUserID(httptest.NewRequest(http.MethodGet, "/dashboard", nil), "user_a")
	w := httptest.NewRecorder()

	h.GetDashboard(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotUser != "user_a" {
		t.Errorf("userID = %q", gotUser)
	}
}

func TestGetDashboard_Unauthorized(t *testing.T) {
	h := NewBoardHandler(&mockLeaderboardService{}, &mockDashboardService{}, &mockPollutionService{})
	w := httptest.NewRecorder()

	h.GetDashboard(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestGetPollutionStations(t *testing.T) {
	pol := &mockPollutionService{getStationsFn: func(ctx context.Context) (json.RawMessage, error) {
		return json.RawMessage(`[{"uid":1}]`), nil
	}}
	h := NewBoardHandler(&mockLeaderboardService{}, &mockDashboardService{}, pol)
	w := httptest.NewRecorder()

	h.GetPollutionStations(w, httptest.NewRequest(http.MethodGet, "/pollution-stations", nil))

	if w.Code != http.StatusOK || w.Body.String() != `[{"uid":1}]` {
		t.Errorf("response = %d %s", w.Code, w.Body.String())
	}
}

// APIキー未設定は500で、元のメッセージを返すこと
func TestGetPollutionStations_MissingKey(t *testing.T) {
	pol := &mockPollutionService{getStationsFn: func(ctx context.Context) (json.RawMessage, error) {
		return nil, model.NewMissingAPIKeyError()
	}}
	h := NewBoardHandler(&mockLeaderboardService{}, &mockDashboardService{}, pol)
	w := httptest.NewRecorder()

	h.GetPollutionStations(w, httptest.NewRequest(http.MethodGet, "/pollution-stations", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if body := parseAPIErrorResponse(t, w); body["message"] != "AQICN API key not found." {
		t.Errorf("message = %q", body["message"])
	}
}

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/points"
)

// --- AwardPoints ---

func TestAwardPoints_Success(t *testing.T) {
	var got points.AwardInput
	svc := &mockPointsService{
		awardPointsFn: func(ctx context.Context, in points.AwardInput) (*model.AwardResult, error) {
			got = in
			return &model.AwardResult{NewTotalPoints: 120}, nil
		},
	}
	h := NewPointsHandler(svc)

	body := `{"pointsToAdd":20,"activityType":"Air: GHG Emission Check","activityDetails":"Vehicle: car"}`
	req := withUserID(httptest.NewRequest(http.MethodPost, "/points", strings.NewReader(body)), "user_a")
	w := httptest.NewRecorder()

	h.AwardPoints(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["message"] != "Points and activity logged successfully" || resp["newTotalPoints"] != float64(120) {
		t.Errorf("response = %v", resp)
	}
	if got.UserID != "user_a" || got.PointsToAdd != 20 || got.ActivityType != "Air: GHG Emission Check" {
		t.Errorf("input = %+v", got)
	}
	if got.Details == nil || *got.Details != "Vehicle: car" || got.Source != points.SourceAPI {
		t.Errorf("details/source = %v/%q", got.Details, got.Source)
	}
}

// ポイントの形式が不正な場合は400で、サービスを呼ばないこと
func TestAwardPoints_InvalidBody(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"JSONでない", `not json`, model.ErrCodeInvalidRequest},
		{"文字列のポイント", `{"pointsToAdd":"10","activityType":"Quiz: A"}`, model.ErrCodeInvalidRequest},
		{"ポイントなし", `{"activityType":"Quiz: A"}`, model.ErrCodeInvalidPoints},
		{"小数のポイント", `{"pointsToAdd":1.5,"activityType":"Quiz: A"}`, model.ErrCodeInvalidPoints},
		{"範囲外のポイント", `{"pointsToAdd":1e9,"activityType":"Quiz: A"}`, model.ErrCodeInvalidPoints},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPointsService{
				awardPointsFn: func(ctx context.Context, in points.AwardInput) (*model.AwardResult, error) {
					t.Error("サービスを呼び出してはならない")
					return nil, nil
				},
			}
			h := NewPointsHandler(svc)
			req := withUserID(httptest.NewRequest(http.MethodPost, "/points", strings.NewReader(tt.body)), "user_a")
			w := httptest.NewRecorder()

			h.AwardPoints(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
			if body := parseAPIErrorResponse(t, w); body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
		})
	}
}

func TestAwardPoints_Unauthorized(t *testing.T) {
	h := NewPointsHandler(&mockPointsService{})
	w := httptest.NewRecorder()

	h.AwardPoints(w, httptest.NewRequest(http.MethodPost, "/points", strings.NewReader(`{}`)))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// サービスのバリデーションエラーは400、それ以外のエラーは汎用の500になること
func TestAwardPoints_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"バリデーション", model.NewInvalidActivityError("activityTypeが空です"), http.StatusBadRequest, model.ErrCodeInvalidActivity},
		{"DBエラー", errors.New("pq: connection refused"), http.StatusInternalServerError, model.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPointsService{
				awardPointsFn: func(ctx context.Context, in points.AwardInput) (*model.AwardResult, error) {
					return nil, tt.err
				},
			}
			h := NewPointsHandler(svc)
			req := withUserID(httptest.NewRequest(http.MethodPost, "/points",
				strings.NewReader(`{"pointsToAdd":5,"activityType":""}`)), "user_a")
			w := httptest.NewRecorder()

			h.AwardPoints(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := parseAPIErrorResponse(t, w)
			if body["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["code"], tt.wantCode)
			}
			// 内部エラーの詳細はレスポンスに含めない
			if strings.Contains(body["message"], "pq:") {
				t.Errorf("internal error leaked: %q", body["message"])
			}
		})
	}
}

func TestPointsMethodNotAllowed(t *testing.T) {
	h := NewPointsHandler(&mockPointsService{})
	w := httptest.NewRecorder()

	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodGet, "/points", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
	if w.Header().Get("Allow") != http.MethodPost {
		t.Errorf("Allow = %q", w.Header().Get("Allow"))
	}
	if body := parseAPIErrorResponse(t, w); body["message"] != "Method Not Allowed" {
		t.Errorf("message = %q", body["message"])
	}
}

// --- ListActivity ---

func TestListActivity_DefaultAndClampedLimit(t *testing.T) {
	tests := []struct {
		query     string
		wantLimit int
	}{
		{"", 10},
		{"?limit=3", 3},
		{"?limit=500", 50},
		{"?limit=0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var gotLimit int
			svc := &mockPointsService{
				listRecentActivityFn: func(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
					gotLimit = limit
					return nil, nil
				},
			}
			h := NewPointsHandler(svc)
			req := withUserID(httptest.NewRequest(http.MethodGet, "/activity"+tt.query, nil), "user_a")
			w := httptest.NewRecorder()

			h.ListActivity(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}
			// 空の場合もnullではなく空配列を返す
			if strings.TrimSpace(w.Body.String()) != "[]" {
				t.Errorf("body = %s, want []", w.Body.String())
			}
		})
	}
}

func TestListActivity_NonNumericLimit(t *testing.T) {
	h := NewPointsHandler(&mockPointsService{})
	req := withUserID(httptest.NewRequest(http.MethodGet, "/activity?limit=ten", nil), "user_a")
	w := httptest.NewRecorder()

	h.ListActivity(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListActivity_ResponseShape(t *testing.T) {
	details := "City: Delhi"
	created := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
	svc := &mockPointsService{
		listRecentActivityFn: func(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
			return []*model.Activity{{
				ID: 9, UserID: userID, Type: "Air: City Pollution Lookup", Category: model.CategoryAir,
				Details: &details, Points: 5, CreatedAt: created,
			}}, nil
		},
	}
	h := NewPointsHandler(svc)
	req := withUserID(httptest.NewRequest(http.MethodGet, "/activity", nil), "user_a")
	w := httptest.NewRecorder()

	h.ListActivity(w, req)

	var got []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d", len(got))
	}
	a := got[0]
	if a["id"] != float64(9) || a["type"] != "Air: City Pollution Lookup" || a["category"] != "air" ||
		a["details"] != "City: Delhi" || a["points"] != float64(5) || a["createdAt"] != "2024-06-01T09:30:00Z" {
		t.Errorf("activity = %v", a)
	}
	if _, ok := a["user_id"]; ok {
		t.Error("user_id should not be exposed")
	}
}

// --- LogActivity ---

func TestLogActivity_Returns201WithLatest(t *testing.T) {
	var gotType string
	svc := &mockPointsService{
		logActivityFn: func(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error) {
			gotType = activityType
			return []*model.Activity{{ID: 1, Type: activityType, Category: model.CategoryQuiz}}, nil
		},
	}
	h := NewPointsHandler(svc)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/activity",
		strings.NewReader(`{"activityType":"Quiz: Climate Basics"}`)), "user_a")
	w := httptest.NewRecorder()

	h.LogActivity(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if gotType != "Quiz: Climate Basics" {
		t.Errorf("activityType = %q", gotType)
	}
}

func TestLogActivity_フロントエンドのボディ形式(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantType    string
		wantDetails string
	}{
		{"type/details", `{"type":"Air Analysis","details":"Opened GHG Detection"}`, "Air Analysis", "Opened GHG Detection"},
		{"activityType/activityDetails", `{"activityType":"Water Quality","activityDetails":"pH 7"}`, "Water Quality", "pH 7"},
		{"typeを優先", `{"type":"Flood & Drought","activityType":"ignored"}`, "Flood & Drought", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotType, gotDetails string
			svc := &mockPointsService{
				logActivityFn: func(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error) {
					gotType = activityType
					if details != nil {
						gotDetails = *details
					}
					return []*model.Activity{{ID: 1, Type: activityType}}, nil
				},
			}
			req := withUserID(httptest.NewRequest(http.MethodPost, "/activity", strings.NewReader(tt.body)), "user_a")
			w := httptest.NewRecorder()

			NewPointsHandler(svc).LogActivity(w, req)

			if w.Code != http.StatusCreated {
				t.Fatalf("status = %d, want 201", w.Code)
			}
			if gotType != tt.wantType || gotDetails != tt.wantDetails {
				t.Errorf("service received type=%q details=%q, want %q %q", gotType, gotDetails, tt.wantType, tt.wantDetails)
			}
		})
	}
}

// --- GetProfile ---

func TestGetProfile_MissingUserReturnsPlaceholder(t *testing.T) {
	h := NewPointsHandler(&mockPointsService{})
	req := withUserID(httptest.NewRequest(http.MethodGet, "/profile", nil), "user_new")
	w := httptest.NewRecorder()

	h.GetProfile(w, req)

	var got map[string]any
	json.NewDecoder(w.Body).Decode(&got)
	if got["id"] != "user_new" || got["email"] != "N/A" || got["points"] != float64(0) {
		t.Errorf("profile = %v", got)
	}
}

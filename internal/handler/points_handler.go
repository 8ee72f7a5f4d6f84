package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/points"
)

// maxRequestBody はJSONリクエストボディの読み取り上限。
const maxRequestBody = 64 << 10

// PointsServiceInterface はポイント・アクティビティハンドラーが必要とするサービスインターフェース。
type PointsServiceInterface interface {
	AwardPoints(ctx context.Context, in points.AwardInput) (*model.AwardResult, error)
	LogActivity(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error)
	ListRecentActivity(ctx context.Context, userID string, limit int) ([]*model.Activity, error)
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

// PointsHandler はポイント付与、アクティビティ、プロフィールのHTTPハンドラー。
type PointsHandler struct {
	service PointsServiceInterface
}

// NewPointsHandler はPointsHandlerを生成する。
func NewPointsHandler(service PointsServiceInterface) *PointsHandler {
	return &PointsHandler{service: service}
}

// awardPointsRequest はポイント付与リクエストのボディ。
// pointsToAddは数値以外や小数を検出するためfloat64のポインタで受け取る。
type awardPointsRequest struct {
	PointsToAdd     *float64 `json:"pointsToAdd"`
	ActivityType    string   `json:"activityType"`
	ActivityDetails *string  `json:"activityDetails"`
}

// awardPointsResponse はポイント付与成功時のレスポンス。
type awardPointsResponse struct {
	Message        string `json:"message"`
	NewTotalPoints int64  `json:"newTotalPoints"`
}

// logActivityRequest はポイントなしのアクティビティ記録リクエストのボディ。
// フロントエンドは {type, details} を送る。POST /points と同じキーも受け付ける。
type logActivityRequest struct {
	Type            string  `json:"type"`
	Details         *string `json:"details"`
	ActivityType    string  `json:"activityType"`
	ActivityDetails *string `json:"activityDetails"`
}

// activity は type/details を優先し、なければ activityType/activityDetails を返す。
func (req logActivityRequest) activity() (string, *string) {
	activityType := req.Type
	if strings.TrimSpace(activityType) == "" {
		activityType = req.ActivityType
	}
	details := req.Details
	if details == nil {
		details = req.ActivityDetails
	}
	return activityType, details
}

// decodeJSONBody はリクエストボディをJSONとして読み取る。失敗時は400を書き込む。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return false
	}
	return true
}

// AwardPoints はポイントを加算し、アクティビティを記録する。
// POST /points
func (h *PointsHandler) AwardPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req awardPointsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	pts, err := points.ValidatePoints(req.PointsToAdd)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.AwardPoints(r.Context(), points.AwardInput{
		UserID:       userID,
		PointsToAdd:  pts,
		ActivityType: req.ActivityType,
		Details:      req.ActivityDetails,
		Source:       points.SourceAPI,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, awardPointsResponse{
		Message:        "Points and activity logged successfully",
		NewTotalPoints: result.NewTotalPoints,
	})
}

// MethodNotAllowed はPOST以外のメソッドに405を返す。
func (h *PointsHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", http.MethodPost)
	writeAPIErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
}

// ListActivity は認証済みユーザーのアクティビティを新しい順に返す。
// GET /activity?limit=10
func (h *PointsHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	limit, err := points.ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	activities, err := h.service.ListRecentActivity(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, model.NewActivityViews(activities))
}

// LogActivity はポイントを加算せずにアクティビティを記録し、最新の一覧を返す。
// POST /activity
func (h *PointsHandler) LogActivity(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req logActivityRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	activityType, details := req.activity()
	activities, err := h.service.LogActivity(r.Context(), userID, activityType, details)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, model.NewActivityViews(activities))
}

// GetProfile は認証済みユーザーのプロフィールを返す。
// GET /profile
func (h *PointsHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

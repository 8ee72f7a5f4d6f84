package points

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/security"
)

// --- モック ---

type mockLedgerRepo struct {
	awardFn func(ctx context.Context, award *model.Award) (*model.AwardResult, error)
	calls   []*model.Award
}

func (m *mockLedgerRepo) Award(ctx context.Context, award *model.Award) (*model.AwardResult, error) {
	m.calls = append(m.calls, award)
	if m.awardFn != nil {
		return m.awardFn(ctx, award)
	}
	return &model.AwardResult{NewTotalPoints: int64(award.Points), Activity: &model.Activity{ID: 1}}, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFn(ctx, id)
}
func (m *mockUserRepo) ListTopByPoints(ctx context.Context, limit int) ([]model.RankedUser, error) {
	return nil, nil
}

type mockActivityRepo struct {
	listFn func(ctx context.Context, userID string, limit int) ([]*model.Activity, error)
}

func (m *mockActivityRepo) ListRecentByUser(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
	return m.listFn(ctx, userID, limit)
}

type recordingMetrics struct {
	metrics.NopCollector
	sources []string
	points  []int
}

func (r *recordingMetrics) RecordAward(source string, points int) {
	r.sources = append(r.sources, source)
	r.points = append(r.points, points)
}

func newTestService(ledger *mockLedgerRepo, users *mockUserRepo, acts *mockActivityRepo, rec *recordingMetrics) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	if rec == nil {
		rec = &recordingMetrics{}
	}
	return NewService(ledger, users, acts, security.NewTextSanitizer(), rec, logger)
}

func strPtr(s string) *string { return &s }

// --- AwardPoints ---

func TestAwardPoints_Success(t *testing.T) {
	ledger := &mockLedgerRepo{
		awardFn: func(ctx context.Context, award *model.Award) (*model.AwardResult, error) {
			return &model.AwardResult{NewTotalPoints: 110}, nil
		},
	}
	rec := &recordingMetrics{}
	svc := newTestService(ledger, nil, nil, rec)

	result, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID:       "user_2abc",
		PointsToAdd:  10,
		ActivityType: "  Water: Quality Prediction ",
		Details:      strPtr("<b>pH</b> 7.2"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.NewTotalPoints != 110 {
		t.Errorf("NewTotalPoints = %d, want 110", result.NewTotalPoints)
	}

	if len(ledger.calls) != 1 {
		t.Fatalf("ledger calls = %d, want 1", len(ledger.calls))
	}
	got := ledger.calls[0]
	if got.Type != "Water: Quality Prediction" {
		t.Errorf("Type = %q, want trimmed label", got.Type)
	}
	if got.Category != model.CategoryWater {
		t.Errorf("Category = %q, want %q", got.Category, model.CategoryWater)
	}
	if got.Details == nil || *got.Details != "pH 7.2" {
		t.Errorf("Details = %v, want %q", got.Details, "pH 7.2")
	}
	if got.Email != "user_2abc@example.com" {
		t.Errorf("Email = %q, want placeholder", got.Email)
	}
	if len(rec.sources) != 1 || rec.sources[0] != SourceAPI || rec.points[0] != 10 {
		t.Errorf("metrics = %v %v, want [api] [10]", rec.sources, rec.points)
	}
}

// 負数は0として扱われ、アクティビティは記録されること
func TestAwardPoints_NegativeTreatedAsZero(t *testing.T) {
	ledger := &mockLedgerRepo{}
	svc := newTestService(ledger, nil, nil, nil)

	if _, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID: "user_x", PointsToAdd: -5, ActivityType: "Quiz: Round 1",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.calls) != 1 || ledger.calls[0].Points != 0 {
		t.Errorf("expected one ledger call with 0 points, got %+v", ledger.calls)
	}
}

func TestAwardPoints_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       AwardInput
		wantCode string
	}{
		{
			name:     "未認証",
			in:       AwardInput{PointsToAdd: 10, ActivityType: "Air: x"},
			wantCode: model.ErrCodeUnauthorized,
		},
		{
			name:     "activityTypeが空白のみ",
			in:       AwardInput{UserID: "user_x", PointsToAdd: 10, ActivityType: "   "},
			wantCode: model.ErrCodeInvalidActivity,
		},
		{
			name:     "activityTypeが長すぎる",
			in:       AwardInput{UserID: "user_x", PointsToAdd: 10, ActivityType: strings.Repeat("a", MaxActivityTypeLength+1)},
			wantCode: model.ErrCodeInvalidActivity,
		},
		{
			name:     "detailsが長すぎる",
			in:       AwardInput{UserID: "user_x", PointsToAdd: 10, ActivityType: "Air: x", Details: strPtr(strings.Repeat("d", MaxDetailsLength+1))},
			wantCode: model.ErrCodeInvalidActivity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := &mockLedgerRepo{}
			svc := newTestService(ledger, nil, nil, nil)

			_, err := svc.AwardPoints(context.Background(), tt.in)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", apiErr.Code, tt.wantCode)
			}
			if len(ledger.calls) != 0 {
				t.Error("検証エラー時に書き込みを行ってはならない")
			}
		})
	}
}

// マルチバイト文字は文字数で数えること
func TestAwardPoints_ActivityTypeLengthCountsRunes(t *testing.T) {
	ledger := &mockLedgerRepo{}
	svc := newTestService(ledger, nil, nil, nil)

	if _, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID: "user_x", PointsToAdd: 1, ActivityType: strings.Repeat("水", MaxActivityTypeLength),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// HTML除去後に空になった詳細はnilとして保存されること
func TestAwardPoints_DetailsEmptyAfterSanitize(t *testing.T) {
	ledger := &mockLedgerRepo{}
	svc := newTestService(ledger, nil, nil, nil)

	if _, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID: "user_x", PointsToAdd: 1, ActivityType: "Air: x", Details: strPtr("<script>x</script>"),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ledger.calls[0].Details != nil {
		t.Errorf("Details = %q, want nil", *ledger.calls[0].Details)
	}
}

func TestAwardPoints_LedgerError(t *testing.T) {
	ledger := &mockLedgerRepo{
		awardFn: func(ctx context.Context, award *model.Award) (*model.AwardResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	rec := &recordingMetrics{}
	svc := newTestService(ledger, nil, nil, rec)

	_, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID: "user_x", PointsToAdd: 1, ActivityType: "Air: x",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("永続化エラーはAPIErrorにしない: %v", apiErr)
	}
	if len(rec.sources) != 0 {
		t.Error("失敗時に付与メトリクスを記録してはならない")
	}
}

func TestAwardPoints_SourceLabel(t *testing.T) {
	rec := &recordingMetrics{}
	svc := newTestService(&mockLedgerRepo{}, nil, nil, rec)

	if _, err := svc.AwardPoints(context.Background(), AwardInput{
		UserID: "user_x", PointsToAdd: 20, ActivityType: "Air: GHG Emission Check", Source: SourceTool,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.sources[0] != SourceTool {
		t.Errorf("source = %q, want %q", rec.sources[0], SourceTool)
	}
}

// --- ListRecentActivity ---

func TestListRecentActivity_ClampsLimit(t *testing.T) {
	var gotLimit int
	acts := &mockActivityRepo{
		listFn: func(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
			gotLimit = limit
			return []*model.Activity{}, nil
		},
	}
	svc := newTestService(nil, nil, acts, nil)

	if _, err := svc.ListRecentActivity(context.Background(), "user_x", 500); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotLimit != MaxActivityLimit {
		t.Errorf("limit = %d, want %d", gotLimit, MaxActivityLimit)
	}
}

func TestListRecentActivity_Unauthorized(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)

	_, err := svc.ListRecentActivity(context.Background(), "", 10)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthorized {
		t.Errorf("err = %v, want UNAUTHORIZED", err)
	}
}

// --- GetProfile ---

func TestGetProfile_Existing(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "a@example.com", Points: 320}, nil
		},
	}
	svc := newTestService(nil, users, nil, nil)

	p, err := svc.GetProfile(context.Background(), "user_a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != "user_a" || p.Email != "a@example.com" || p.Points != 320 {
		t.Errorf("profile = %+v", p)
	}
}

// レコードがない場合は N/A と 0 ポイントを返すこと
func TestGetProfile_Missing(t *testing.T) {
	users := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}
	svc := newTestService(nil, users, nil, nil)

	p, err := svc.GetProfile(context.Background(), "user_new")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Email != model.ProfileEmailUnknown || p.Points != 0 || p.ID != "user_new" {
		t.Errorf("profile = %+v, want {user_new N/A 0}", p)
	}
}

// --- LogActivity ---

// ポイント0で記録した後、最新10件を返すこと
func TestLogActivity_RecordsWithoutPoints(t *testing.T) {
	ledger := &mockLedgerRepo{}
	var gotLimit int
	acts := &mockActivityRepo{
		listFn: func(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
			gotLimit = limit
			return []*model.Activity{{ID: 7, UserID: userID, Type: "Quiz: Climate Basics"}}, nil
		},
	}
	svc := newTestService(ledger, &mockUserRepo{}, acts, nil)

	got, err := svc.LogActivity(context.Background(), "user_a", "Quiz: Climate Basics", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.calls) != 1 || ledger.calls[0].Points != 0 || ledger.calls[0].Category != model.CategoryQuiz {
		t.Errorf("ledger calls = %+v", ledger.calls)
	}
	if gotLimit != DefaultActivityLimit {
		t.Errorf("limit = %d, want %d", gotLimit, DefaultActivityLimit)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Errorf("activities = %+v", got)
	}
}

// 検証エラー時は記録も一覧取得も行わないこと
func TestLogActivity_InvalidType(t *testing.T) {
	ledger := &mockLedgerRepo{}
	acts := &mockActivityRepo{
		listFn: func(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
			t.Error("一覧を取得してはならない")
			return nil, nil
		},
	}
	svc := newTestService(ledger, &mockUserRepo{}, acts, nil)

	_, err := svc.LogActivity(context.Background(), "user_a", "   ", nil)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidActivity {
		t.Fatalf("expected INVALID_ACTIVITY_TYPE, got %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Error("検証エラー時に書き込んではならない")
	}
}

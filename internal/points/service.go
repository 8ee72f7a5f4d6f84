// Package points はポイント台帳とアクティビティログのドメインロジックを提供する。
package points

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/model"
	"github.com/hitoshi/ecopoints/internal/repository"
	"github.com/hitoshi/ecopoints/internal/security"
)

const (
	// MaxActivityTypeLength はactivityTypeの最大文字数。
	MaxActivityTypeLength = 120
	// MaxDetailsLength はactivityDetailsの最大文字数。
	MaxDetailsLength = 1000
)

// 付与経路のラベル値。
const (
	SourceAPI  = "api"
	SourceTool = "tool"
)

// AwardInput は1回分のポイント付与要求。
type AwardInput struct {
	UserID       string
	PointsToAdd  int
	ActivityType string
	Details      *string
	Source       string // メトリクス用の付与経路。空の場合はSourceAPI
}

// Service はポイント付与、アクティビティ取得、プロフィール取得のサービス層。
type Service struct {
	ledger     repository.LedgerRepository
	users      repository.UserRepository
	activities repository.ActivityRepository
	sanitizer  security.TextSanitizerService
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	ledger repository.LedgerRepository,
	users repository.UserRepository,
	activities repository.ActivityRepository,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:     ledger,
		users:      users,
		activities: activities,
		sanitizer:  sanitizer,
		metrics:    collector,
		logger:     logger,
	}
}

// AwardPoints はポイントを加算し、アクティビティを1件記録する。
//
// 負数と0のポイントは0として扱い、アクティビティのみ記録する。
// 台帳の更新とアクティビティの記録は同一トランザクションで行われ、
// 失敗時はどちらも反映されない。
func (s *Service) AwardPoints(ctx context.Context, in AwardInput) (*model.AwardResult, error) {
	if in.UserID == "" {
		return nil, model.NewUnauthorizedError()
	}

	activityType := strings.TrimSpace(in.ActivityType)
	if activityType == "" {
		return nil, model.NewInvalidActivityError("activityTypeが空です")
	}
	if utf8.RuneCountInString(activityType) > MaxActivityTypeLength {
		return nil, model.NewInvalidActivityError(fmt.Sprintf("activityTypeは%d文字以内で指定してください", MaxActivityTypeLength))
	}

	details, err := s.normalizeDetails(in.Details)
	if err != nil {
		return nil, err
	}

	awarded := model.AwardedPoints(in.PointsToAdd)
	kind := model.ParseActivityKind(activityType)

	result, err := s.ledger.Award(ctx, &model.Award{
		UserID:   in.UserID,
		Email:    model.PlaceholderEmail(in.UserID),
		Points:   awarded,
		Type:     activityType,
		Category: kind.Category,
		Details:  details,
	})
	if err != nil {
		return nil, fmt.Errorf("ポイントの付与に失敗しました: %w", err)
	}

	source := in.Source
	if source == "" {
		source = SourceAPI
	}
	s.metrics.RecordAward(source, awarded)
	s.logger.Info("ポイントを付与しました",
		slog.String("user_id", in.UserID),
		slog.Int("points", awarded),
		slog.String("activity_type", activityType),
		slog.String("category", string(kind.Category)),
		slog.Int64("new_total", result.NewTotalPoints),
	)

	return result, nil
}

// normalizeDetails は詳細テキストからHTMLを除去し、長さを検証する。
// 除去後に空になった場合はnilを返す。
func (s *Service) normalizeDetails(details *string) (*string, error) {
	if details == nil {
		return nil, nil
	}
	if utf8.RuneCountInString(*details) > MaxDetailsLength {
		return nil, model.NewInvalidActivityError(fmt.Sprintf("activityDetailsは%d文字以内で指定してください", MaxDetailsLength))
	}
	cleaned := s.sanitizer.Sanitize(*details)
	if cleaned == "" {
		return nil, nil
	}
	return &cleaned, nil
}

// LogActivity はポイントを加算せずにアクティビティを記録し、最新DefaultActivityLimit件を返す。
func (s *Service) LogActivity(ctx context.Context, userID, activityType string, details *string) ([]*model.Activity, error) {
	if _, err := s.AwardPoints(ctx, AwardInput{
		UserID:       userID,
		ActivityType: activityType,
		Details:      details,
	}); err != nil {
		return nil, err
	}
	return s.ListRecentActivity(ctx, userID, DefaultActivityLimit)
}

// ListRecentActivity はユーザーのアクティビティを新しい順に最大limit件返す。
func (s *Service) ListRecentActivity(ctx context.Context, userID string, limit int) ([]*model.Activity, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	activities, err := s.activities.ListRecentByUser(ctx, userID, ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("アクティビティの取得に失敗しました: %w", err)
	}
	return activities, nil
}

// GetProfile はユーザーのプロフィールを返す。
// usersレコードが未作成の場合は {id, "N/A", 0} を返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.EmptyProfile(userID), nil
	}
	return &model.Profile{
		ID:     user.ID,
		Email:  user.Email,
		Points: user.Points,
	}, nil
}

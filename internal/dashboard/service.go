package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/ecopoints/internal/leaderboard"
	"github.com/hitoshi/ecopoints/internal/model"
)

// PointsReader はプロフィールとアクティビティの読み取り。
type PointsReader interface {
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
	ListRecentActivity(ctx context.Context, userID string, limit int) ([]*model.Activity, error)
}

// LeaderboardReader はランキングの読み取り。
type LeaderboardReader interface {
	GetLeaderboard(ctx context.Context) ([]leaderboard.Entry, error)
}

// Service はダッシュボードのSnapshotを組み立てるサービス層。
type Service struct {
	points PointsReader
	board  LeaderboardReader
	window int
	loc    *time.Location
	now    func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// windowは集計対象とする直近アクティビティの件数、locは日付の区切りに使うタイムゾーン。
func NewService(points PointsReader, board LeaderboardReader, window int, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		points: points,
		board:  board,
		window: window,
		loc:    loc,
		now:    time.Now,
	}
}

// Build は指定ユーザーのSnapshotを組み立てる。
func (s *Service) Build(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	profile, err := s.points.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボードのプロフィール取得に失敗しました: %w", err)
	}

	activities, err := s.points.ListRecentActivity(ctx, userID, s.window)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボードのアクティビティ取得に失敗しました: %w", err)
	}

	board, err := s.board.GetLeaderboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("ダッシュボードのランキング取得に失敗しました: %w", err)
	}

	snapshot := Aggregate(*profile, activities, board, s.now(), s.loc)
	return &snapshot, nil
}

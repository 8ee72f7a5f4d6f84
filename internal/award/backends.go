package award

import (
	"context"

	"github.com/hitoshi/ecopoints/internal/points"
)

// PointsAwarder はポイント付与サービスを直接呼び出すAwarder。
type PointsAwarder struct {
	svc *points.Service
}

// NewPointsAwarder はPointsAwarderを生成する。
func NewPointsAwarder(svc *points.Service) *PointsAwarder {
	return &PointsAwarder{svc: svc}
}

// Award はpoints.Serviceで付与し、累計ポイントを返す。
func (a *PointsAwarder) Award(ctx context.Context, userID string, pts int, activityType string, details *string) (int64, error) {
	result, err := a.svc.AwardPoints(ctx, points.AwardInput{
		UserID:       userID,
		PointsToAdd:  pts,
		ActivityType: activityType,
		Details:      details,
		Source:       points.SourceTool,
	})
	if err != nil {
		return 0, err
	}
	return result.NewTotalPoints, nil
}

var _ Awarder = (*PointsAwarder)(nil)

// Package award はツール操作の成功後にポイントを付与するバックグラウンド処理を提供する。
//
// 付与はリクエストの応答とは独立して行われ、失敗しても呼び出し元には伝わらない。
// 結果はログとメトリクスに記録され、成功時のみ通知が送られる。
package award

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/model"
)

// DefaultTimeout はバックグラウンド付与1件あたりのデフォルトのタイムアウト。
const DefaultTimeout = 10 * time.Second

// Awarder はポイントを付与し、付与後の累計ポイントを返すバックエンド。
type Awarder interface {
	Award(ctx context.Context, userID string, points int, activityType string, details *string) (int64, error)
}

// Notifier は付与成功を利用者に届ける。
type Notifier interface {
	NotifyPointsAwarded(userID string, n model.PointsAwarded)
}

// Helper はポイント付与をバックグラウンドで実行する。
type Helper struct {
	awarder  Awarder
	notifier Notifier
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	timeout  time.Duration

	wg sync.WaitGroup
}

// NewHelper はHelperの新しいインスタンスを生成する。
// notifierはnilでもよい。timeoutが0以下の場合はDefaultTimeoutを使う。
func NewHelper(awarder Awarder, notifier Notifier, collector metrics.MetricsCollector, logger *slog.Logger, timeout time.Duration) *Helper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Helper{
		awarder:  awarder,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
		timeout:  timeout,
	}
}

// Award はポイント付与を開始してすぐに返る。付与を開始した場合はtrueを返す。
//
// pointsが0以下の場合は何もしない。
// ctxの値（認証情報など）は引き継ぐが、ctxのキャンセルでは中断されず、
// Helper自身のタイムアウトでのみ打ち切られる。
func (h *Helper) Award(ctx context.Context, userID string, points int, activityType string, details *string) bool {
	if points <= 0 || userID == "" {
		return false
	}

	detached := context.WithoutCancel(ctx)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(detached, userID, points, activityType, details)
	}()
	return true
}

func (h *Helper) run(parent context.Context, userID string, points int, activityType string, details *string) {
	ctx, cancel := context.WithTimeout(parent, h.timeout)
	defer cancel()

	newTotal, err := h.awarder.Award(ctx, userID, points, activityType, details)
	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		h.metrics.RecordAwardFailure(reason)
		h.logger.Warn("バックグラウンドのポイント付与に失敗しました",
			slog.String("user_id", userID),
			slog.Int("points", points),
			slog.String("activity_type", activityType),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyPointsAwarded(userID, model.NewPointsAwarded(points, activityType, newTotal))
	}
}

// Wait は実行中の付与がすべて終わるまで待つ。シャットダウン時とテストで使う。
func (h *Helper) Wait() {
	h.wg.Wait()
}

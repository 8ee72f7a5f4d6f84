// Package refresh は外部データのキャッシュを定期的に更新するバックグラウンド処理を提供する。
// スケジューラと失敗時のバックオフ戦略を含む。
package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Refresher は1回分の更新処理。
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefresherFunc は関数をRefresherとして扱うアダプタ。
type RefresherFunc func(ctx context.Context) error

func (f RefresherFunc) Refresh(ctx context.Context) error { return f(ctx) }

// Scheduler は一定間隔で更新を実行する。
// 失敗が続く場合は間隔の代わりに指数バックオフで再試行する。
type Scheduler struct {
	name      string
	refresher Refresher
	logger    *slog.Logger

	consecutiveErrors int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。nameはログ用の識別子。
func NewScheduler(name string, refresher Refresher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		name:      name,
		refresher: refresher,
		logger:    logger.With(slog.String("job", name)),
	}
}

// Start は起動直後に1回更新し、以後interval間隔で更新を繰り返す。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("更新スケジューラを開始しました",
		slog.Duration("interval", interval),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("更新スケジューラを停止しました")
			return
		case <-timer.C:
			timer.Reset(s.NextDelay(s.RunOnce(ctx), interval))
		}
	}
}

// RunOnce は更新を1回実行し、連続失敗回数を更新する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.consecutiveErrors++
		s.logger.Error("更新に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("consecutive_errors", s.consecutiveErrors),
		)
		return err
	}

	s.consecutiveErrors = 0
	s.logger.Info("更新が完了しました",
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// NextDelay は直前の結果から次回実行までの待ち時間を返す。
// 成功時はinterval、失敗時はCalculateBackoffとintervalの小さい方。
func (s *Scheduler) NextDelay(lastErr error, interval time.Duration) time.Duration {
	if lastErr == nil {
		return interval
	}
	return min(CalculateBackoff(s.consecutiveErrors-1), interval)
}

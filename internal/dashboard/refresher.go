package dashboard

import (
	"context"
	"log/slog"
	"time"
)

// DefaultRefreshInterval は定期再取得のデフォルト間隔。
const DefaultRefreshInterval = 30 * time.Second

// Refresher は1つの取得処理を、定期タイマーとプッシュ通知の2つの契機で実行する。
//
// 取得と配信は単一のgoroutineで順に行うため、配信されるのは常に最後に取得した結果になる。
// 実行中に届いた複数の通知は1回の再取得にまとめられる。
type Refresher struct {
	fetch    func(ctx context.Context) (*Snapshot, error)
	deliver  func(*Snapshot) error
	interval time.Duration
	trigger  chan struct{}
	logger   *slog.Logger
}

// NewRefresher はRefresherを生成する。intervalが0以下の場合はDefaultRefreshIntervalを使う。
func NewRefresher(
	fetch func(ctx context.Context) (*Snapshot, error),
	deliver func(*Snapshot) error,
	interval time.Duration,
	logger *slog.Logger,
) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{
		fetch:    fetch,
		deliver:  deliver,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		logger:   logger,
	}
}

// Trigger は再取得を要求する。ブロックしない。
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run は起動直後に1回取得し、その後はタイマーと通知のたびに再取得する。
// ctxがキャンセルされるか、配信に失敗した時点で終了する。
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.refresh(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.trigger:
		}
		if err := r.refresh(ctx); err != nil {
			return err
		}
	}
}

// refresh は取得して配信する。取得の失敗はログに記録して次の契機を待つ。
func (r *Refresher) refresh(ctx context.Context) error {
	snapshot, err := r.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("ダッシュボードの再取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return r.deliver(snapshot)
}

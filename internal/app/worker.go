package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ecopoints/internal/config"
	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/pollution"
	"github.com/hitoshi/ecopoints/internal/security"
	"github.com/hitoshi/ecopoints/internal/worker/refresh"
)

// pollutionFetchTimeout は大気汚染データAPI呼び出しのタイムアウト。
const pollutionFetchTimeout = 30 * time.Second

// newPollutionService は観測所データのサービスを組み立てる。
// REDIS_URLがあればRedis、なければプロセス内メモリをキャッシュに使う。
// 戻り値の関数でキャッシュの接続を閉じる。
func newPollutionService(ctx context.Context, cfg *config.Config, collector metrics.MetricsCollector, logger *slog.Logger) (*pollution.Service, func(), error) {
	guard := security.NewOutboundGuard()
	if err := guard.ValidateURL(cfg.PollutionAPIURL); err != nil {
		return nil, nil, fmt.Errorf("invalid POLLUTION_API_URL: %w", err)
	}

	client := pollution.NewClient(
		guard.NewSafeClient(pollutionFetchTimeout),
		logger, cfg.PollutionAPIURL, cfg.AQICNAPIKey,
	)

	var cache pollution.Cache
	closeCache := func() {}
	if cfg.RedisURL != "" {
		rdb, err := pollution.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		cache = pollution.NewRedisCache(rdb)
		closeCache = func() { rdb.Close() }
		logger.Info("pollution cache: redis")
	} else {
		cache = pollution.NewMemoryCache()
		logger.Info("pollution cache: memory")
	}

	return pollution.NewService(client, cache, cfg.PollutionCacheTTL, collector, logger), closeCache, nil
}

// runWorker はワーカーモードで起動する。
// 大気汚染観測所データを定期的に取得し、共有キャッシュを更新する。
// ctxがキャンセルされるとシャットダウンする。
func runWorker(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	if cfg.AQICNAPIKey == "" {
		return errors.New("AQICN_API_KEY is required in worker mode")
	}
	if cfg.RedisURL == "" {
		logger.Warn("REDIS_URL is not set; refreshed stations are only visible to this process")
	}

	// ワーカーはHTTPを公開しないためメトリクスは記録しない
	pollutionService, closeCache, err := newPollutionService(ctx, cfg, metrics.NopCollector{}, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	scheduler := refresh.NewScheduler("pollution-stations", refresh.RefresherFunc(func(ctx context.Context) error {
		_, err := pollutionService.Refresh(ctx)
		return err
	}), logger)

	logger.Info("worker starting",
		slog.Duration("refresh_interval", cfg.PollutionRefreshInterval),
		slog.Duration("cache_ttl", cfg.PollutionCacheTTL),
	)

	// ctxがキャンセルされるまでブロックする
	scheduler.Start(ctx, cfg.PollutionRefreshInterval)

	logger.Info("worker stopped gracefully")
	return nil
}

package pollution

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hitoshi/ecopoints/internal/metrics"
)

// DefaultCacheTTL は観測所一覧のキャッシュ期間。
const DefaultCacheTTL = time.Hour

// StationFetcher は観測所一覧の取得元。
type StationFetcher interface {
	FetchStations(ctx context.Context) (json.RawMessage, error)
}

// Service はキャッシュ経由で観測所一覧を提供する。
type Service struct {
	fetcher StationFetcher
	cache   Cache
	ttl     time.Duration
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceを生成する。ttlが0以下の場合はDefaultCacheTTLを使う。
func NewService(fetcher StationFetcher, cache Cache, ttl time.Duration, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{fetcher: fetcher, cache: cache, ttl: ttl, metrics: collector, logger: logger}
}

// GetStations はキャッシュがあればそれを返し、なければ取得してキャッシュする。
// キャッシュの読み書きに失敗しても取得結果は返す。
// 取得に失敗した場合は期限切れでも最後に保存した一覧を返す。
func (s *Service) GetStations(ctx context.Context) (json.RawMessage, error) {
	data, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("観測所キャッシュの取得に失敗しました", slog.String("error", err.Error()))
	}
	if ok {
		return data, nil
	}

	data, fetchErr := s.Refresh(ctx)
	if fetchErr == nil {
		return data, nil
	}

	stale, ok, err := s.cache.LastGood(ctx)
	if err != nil {
		s.logger.Warn("観測所キャッシュの取得に失敗しました", slog.String("error", err.Error()))
	}
	if !ok {
		return nil, fetchErr
	}
	s.logger.Warn("上流の取得に失敗したため期限切れの観測所一覧を返します",
		slog.String("error", fetchErr.Error()),
	)
	return stale, nil
}

// Refresh はキャッシュを無視して取得し、キャッシュを更新する。
func (s *Service) Refresh(ctx context.Context) (json.RawMessage, error) {
	data, err := s.fetcher.FetchStations(ctx)
	if err != nil {
		s.metrics.RecordPollutionRefresh(false)
		return nil, err
	}
	s.metrics.RecordPollutionRefresh(true)

	if err := s.cache.Set(ctx, data, s.ttl); err != nil {
		s.logger.Warn("観測所キャッシュの保存に失敗しました", slog.String("error", err.Error()))
	}
	return data, nil
}

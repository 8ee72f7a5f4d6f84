package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ecopoints/internal/award"
	"github.com/hitoshi/ecopoints/internal/config"
	"github.com/hitoshi/ecopoints/internal/dashboard"
	"github.com/hitoshi/ecopoints/internal/database"
	"github.com/hitoshi/ecopoints/internal/handler"
	"github.com/hitoshi/ecopoints/internal/identity"
	"github.com/hitoshi/ecopoints/internal/leaderboard"
	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/middleware"
	"github.com/hitoshi/ecopoints/internal/points"
	"github.com/hitoshi/ecopoints/internal/realtime"
	"github.com/hitoshi/ecopoints/internal/repository"
	"github.com/hitoshi/ecopoints/internal/security"
	"github.com/hitoshi/ecopoints/internal/tool"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// openDatabase はコネクションプールを設定してDBを開き、接続を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newTokenVerifier はCLERK_JWT_KEYがあればRS256、なければSESSION_SECRETでHS256の検証器を返す。
func newTokenVerifier(cfg *config.Config) (*identity.TokenVerifier, error) {
	if cfg.ClerkJWTKey != "" {
		return identity.NewRS256Verifier(cfg.ClerkJWTKey)
	}
	return identity.NewHS256Verifier(cfg.SessionSecret)
}

// newMetrics はプロセス専用のレジストリとCollectorを生成する。
func newMetrics() (*prometheus.Registry, *metrics.Collector) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, metrics.NewCollector(reg)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	logger := slog.Default()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("database connection established")

	// 2. メトリクスと認証
	reg, collector := newMetrics()

	verifier, err := newTokenVerifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)
	ledgerRepo := repository.NewPostgresLedgerRepo(db)

	// 4. ドメインサービスの初期化
	pointsService := points.NewService(
		ledgerRepo, userRepo, activityRepo,
		security.NewTextSanitizer(), collector, logger,
	)

	identityClient := identity.NewClient(
		&http.Client{Timeout: cfg.IdentityTimeout},
		logger, cfg.ClerkAPIURL, cfg.ClerkSecretKey,
	)
	leaderboardService := leaderboard.NewService(userRepo, identityClient, collector, logger)
	dashboardService := dashboard.NewService(
		pointsService, leaderboardService,
		cfg.DashboardActivityWindow, cfg.DashboardLocation,
	)

	pollutionService, closeCache, err := newPollutionService(ctx, cfg, collector, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// 5. リアルタイム通知とバックグラウンド付与
	hub := realtime.NewHub(realtime.DefaultBufferSize, logger)
	awardHelper := award.NewHelper(
		award.NewPointsAwarder(pointsService), hub,
		collector, logger, cfg.AwardTimeout,
	)

	toolProxy := tool.NewProxy(
		&http.Client{Timeout: cfg.InferenceTimeout},
		cfg.InferenceBaseURL,
		tool.NewRegistry(tool.DefaultTools),
		awardHelper, collector, logger,
	)

	listenerCtx, stopListener := context.WithCancel(ctx)
	var listenerWG sync.WaitGroup
	listenerWG.Add(1)
	go func() {
		defer listenerWG.Done()
		listener := realtime.NewListener(cfg.DatabaseURL, hub, logger)
		if err := listener.Run(listenerCtx); err != nil {
			logger.Error("activity listener stopped", slog.String("error", err.Error()))
		}
	}()

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAward),
	)
	defer rateLimiter.Stop()

	allowedOrigins := middleware.ParseOriginAllowlist(cfg.CORSAllowedOrigin)
	wsSessions := handler.NewWSSessions()
	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:  verifier,
		AllowedOrigins: allowedOrigins,
		RateLimiter:    rateLimiter,
		Logger:         logger,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(reg),

		PointsService: pointsService,

		LeaderboardService: leaderboardService,
		DashboardService:   dashboardService,
		PollutionService:   pollutionService,

		Hub: hub,
		WSConfig: handler.WSHandlerConfig{
			AllowedOrigins:  allowedOrigins,
			RefreshInterval: cfg.DashboardRefreshInterval,
			Sessions:        wsSessions,
		},

		ToolProxy:     toolProxy,
		HealthChecker: db,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// ツール中継は推論サーバーの応答を待つため、その分を見込む
		WriteTimeout: cfg.InferenceTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server listen error: %w", err)
		}
	}

	logger.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("server shutdown failed: %w", err)
	}
	// ハイジャック済みのWebSocketはShutdownの対象外
	if err := wsSessions.Shutdown(shutdownCtx); err != nil {
		logger.Warn("websocket sessions did not stop in time", slog.String("error", err.Error()))
	}

	// 受付済みのバックグラウンド付与を完了させてからDBを閉じる
	awardHelper.Wait()
	stopListener()
	listenerWG.Wait()

	if runErr == nil {
		logger.Info("API server stopped gracefully")
	}
	return runErr
}

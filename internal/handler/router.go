// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier  middleware.TokenVerifier
	AllowedOrigins middleware.OriginAllowlist
	RateLimiter    *middleware.RateLimiter
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ポイント・アクティビティ・プロフィール
	PointsService PointsServiceInterface

	// 読み取り系
	LeaderboardService LeaderboardServiceInterface
	DashboardService   DashboardServiceInterface
	PollutionService   PollutionServiceInterface

	// リアルタイム
	Hub      RealtimeSubscriber
	WSConfig WSHandlerConfig

	// ツール中継
	ToolProxy ToolProxyInterface

	// ヘルスチェック
	HealthChecker HealthChecker
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  → (認証ルートのみ) Session → RateLimit(General) → (付与ルートのみ) RateLimit(Award)
//
// /health、/metrics、/leaderboard、/pollution-stations は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.AllowedOrigins))

	pointsHandler := NewPointsHandler(deps.PointsService)
	boardHandler := NewBoardHandler(deps.LeaderboardService, deps.DashboardService, deps.PollutionService)
	toolHandler := NewToolHandler(deps.ToolProxy)
	wsHandler := NewWSHandler(deps.Hub, deps.DashboardService, deps.WSConfig, deps.Metrics, deps.Logger)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Get("/leaderboard", boardHandler.GetLeaderboard)
	r.Get("/pollution-stations", boardHandler.GetPollutionStations)

	// GET /points は認証より先に405を返す
	r.Get("/points", pointsHandler.MethodNotAllowed)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/profile", pointsHandler.GetProfile)
		r.Get("/activity", pointsHandler.ListActivity)
		r.Get("/dashboard", boardHandler.GetDashboard)
		r.Get("/ws", wsHandler.ServeWS)

		// ポイント付与を伴うルート（付与専用レート制限を追加）
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AwardMiddleware())

			r.Post("/points", pointsHandler.AwardPoints)
			r.Post("/activity", pointsHandler.LogActivity)
			r.HandleFunc("/tools/{tool}", toolHandler.Call)
			r.HandleFunc("/tools/{tool}/{arg}", toolHandler.Call)
		})
	})

	return r
}

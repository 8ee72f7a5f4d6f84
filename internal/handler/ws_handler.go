package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hitoshi/ecopoints/internal/dashboard"
	"github.com/hitoshi/ecopoints/internal/metrics"
	"github.com/hitoshi/ecopoints/internal/middleware"
	"github.com/hitoshi/ecopoints/internal/realtime"
)

const (
	// wsWriteWait は1メッセージの書き込みタイムアウト。
	wsWriteWait = 10 * time.Second
	// wsPongWait はpongを待つ時間。これを過ぎると切断とみなす。
	wsPongWait = 60 * time.Second
	// wsPingPeriod はpingの送信間隔。wsPongWaitより短くする。
	wsPingPeriod = (wsPongWait * 9) / 10
	// wsMaxMessageSize はクライアントから受け付けるメッセージの上限。
	wsMaxMessageSize = 4 << 10
)

// RealtimeSubscriber はユーザー宛てイベントの購読インターフェース。
type RealtimeSubscriber interface {
	Subscribe(userID string) (*realtime.Subscription, func())
}

// WSSessions は実行中のWebSocketセッションを追跡する。
// http.Server.Shutdownはハイジャック済みの接続を待たないため、停止時はこちらで終了させる。
type WSSessions struct {
	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewWSSessions はWSSessionsを生成する。
func NewWSSessions() *WSSessions {
	ctx, stop := context.WithCancel(context.Background())
	return &WSSessions{ctx: ctx, stop: stop}
}

// Shutdown は全セッションにclose frameを送って終了させ、終了を待つ。
// ctxが先に終わった場合はctx.Err()を返す。
func (s *WSSessions) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WSHandlerConfig はWebSocketハンドラーの設定。
// Sessionsがnilの場合はハンドラー専用のWSSessionsを使う。
type WSHandlerConfig struct {
	AllowedOrigins  middleware.OriginAllowlist
	RefreshInterval time.Duration
	Sessions        *WSSessions
}

// WSHandler はダッシュボードとポイント付与通知をプッシュするWebSocketハンドラー。
type WSHandler struct {
	hub       RealtimeSubscriber
	dashboard DashboardServiceInterface
	config    WSHandlerConfig
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler はWSHandlerを生成する。
func NewWSHandler(hub RealtimeSubscriber, db DashboardServiceInterface, config WSHandlerConfig, collector metrics.MetricsCollector, logger *slog.Logger) *WSHandler {
	h := &WSHandler{
		hub:       hub,
		dashboard: db,
		config:    config,
		metrics:   collector,
		logger:    logger,
	}
	if h.config.Sessions == nil {
		h.config.Sessions = NewWSSessions()
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// checkOrigin はOriginヘッダーが許可オリジンに含まれるか、付いていない場合に許可する。
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || h.config.AllowedOrigins.Allows(origin)
}

// wsConn は書き込みを直列化したWebSocket接続。
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) writeClose(code int, text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}

func (c *wsConn) writePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

// ServeWS はWebSocketセッションを開始する。
//
// 接続直後とDashboardの再取得間隔ごと、およびアクティビティ作成通知を受けるたびに
// dashboardイベントを送る。ポイント付与通知はpoints_awardedイベントとして転送する。
// GET /ws
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// ハイジャック前に登録する。Shutdown後に届いたリクエストはhttp.Serverが受け付けない
	sessions := h.config.Sessions
	sessions.wg.Add(1)
	defer sessions.wg.Done()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeがエラーレスポンスを書き込み済み
		h.logger.Warn("websocket upgrade failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.Close()

	h.metrics.WebsocketOpened()
	defer h.metrics.WebsocketClosed()

	c := &wsConn{conn: conn}
	sub, unsubscribe := h.hub.Subscribe(userID)
	defer unsubscribe()

	// ハイジャック後はサーバーが接続を監視しないため、読み取りループの終了で停止する
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	stopOnShutdown := context.AfterFunc(sessions.ctx, func() {
		c.writeClose(websocket.CloseGoingAway, "server shutting down")
		cancel()
	})
	defer stopOnShutdown()
	// 読み取りループはctxを見ないため、接続を閉じて戻らせる
	closeOnDone := context.AfterFunc(ctx, func() { conn.Close() })
	defer closeOnDone()

	refresher := dashboard.NewRefresher(
		func(ctx context.Context) (*dashboard.Snapshot, error) {
			return h.dashboard.Build(ctx, userID)
		},
		func(s *dashboard.Snapshot) error {
			return c.writeJSON(realtime.Event{Type: realtime.EventDashboard, Payload: s})
		},
		h.config.RefreshInterval,
		h.logger.With(slog.String("user_id", userID)),
	)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		defer cancel()
		if err := refresher.Run(ctx); err != nil && ctx.Err() == nil {
			h.logger.Info("websocket write failed", slog.String("user_id", userID), slog.String("error", err.Error()))
		}
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		h.forwardEvents(ctx, c, sub, refresher)
	}()
	go func() {
		defer wg.Done()
		defer cancel()
		h.pingLoop(ctx, c)
	}()

	h.readLoop(conn)
	cancel()
	// 書き込み中のgoroutineを止めるため、待つ前に接続を閉じる
	conn.Close()
	wg.Wait()
}

// forwardEvents はHubからのイベントをクライアントへ転送する。
// アクティビティ作成通知はダッシュボードの再取得も要求する。
func (h *WSHandler) forwardEvents(ctx context.Context, c *wsConn, sub *realtime.Subscription, refresher *dashboard.Refresher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := c.writeJSON(ev); err != nil {
				return
			}
			if ev.Type == realtime.EventActivityCreated {
				refresher.Trigger()
			}
		}
	}
}

// pingLoop は一定間隔でpingを送る。
func (h *WSHandler) pingLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writePing(); err != nil {
				return
			}
		}
	}
}

// readLoop はクライアントからのメッセージを読み捨て、切断またはpongタイムアウトで戻る。
func (h *WSHandler) readLoop(conn *websocket.Conn) {
	conn.SetReadLimit(wsMaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

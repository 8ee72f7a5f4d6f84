package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
)

// ActivityChannel はアクティビティ作成通知のNOTIFYチャネル名。
const ActivityChannel = "activity_events"

const (
	minReconnectInterval = 10 * time.Second
	maxReconnectInterval = time.Minute
	pingInterval         = 90 * time.Second
)

// ActivityNotification はNOTIFYペイロード。
type ActivityNotification struct {
	UserID     string    `json:"user_id"`
	ActivityID int64     `json:"activity_id"`
	Type       string    `json:"type"`
	Points     int       `json:"points"`
	CreatedAt  time.Time `json:"created_at"`
}

// Publisher はユーザー宛てにイベントを送る。
type Publisher interface {
	Publish(userID string, ev Event) int
}

// Listener はactivity_eventsチャネルを購読し、通知をPublisherへ流す。
type Listener struct {
	databaseURL string
	publisher   Publisher
	logger      *slog.Logger
}

// NewListener はListenerを生成する。
func NewListener(databaseURL string, publisher Publisher, logger *slog.Logger) *Listener {
	return &Listener{
		databaseURL: databaseURL,
		publisher:   publisher,
		logger:      logger,
	}
}

// Run はctxがキャンセルされるまで通知を受信する。
// 接続が切れた場合はpq.Listenerが再接続する。再接続中の通知は失われるため、
// 利用側は定期再取得と組み合わせて使う。
func (l *Listener) Run(ctx context.Context) error {
	listener := pq.NewListener(l.databaseURL, minReconnectInterval, maxReconnectInterval, l.onEvent)
	defer listener.Close()

	if err := listener.Listen(ActivityChannel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", ActivityChannel, err)
	}

	l.logger.Info("アクティビティ通知の受信を開始しました",
		slog.String("channel", ActivityChannel),
	)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("アクティビティ通知の受信を停止しました")
			return nil
		case n := <-listener.Notify:
			// 再接続直後はnilが届く
			if n == nil {
				continue
			}
			l.Handle(n.Extra)
		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Warn("通知用接続のpingに失敗しました",
						slog.String("error", err.Error()),
					)
				}
			}()
		}
	}
}

// Handle はNOTIFYペイロードを解析してPublisherへ送る。
func (l *Listener) Handle(payload string) {
	var n ActivityNotification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		l.logger.Warn("アクティビティ通知のパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}
	if n.UserID == "" {
		return
	}
	l.publisher.Publish(n.UserID, Event{Type: EventActivityCreated, Payload: n})
}

func (l *Listener) onEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.logger.Info("通知用接続を確立しました")
	case pq.ListenerEventDisconnected:
		l.logger.Warn("通知用接続が切断されました", slog.Any("error", err))
	case pq.ListenerEventReconnected:
		l.logger.Info("通知用接続を再確立しました")
	case pq.ListenerEventConnectionAttemptFailed:
		l.logger.Warn("通知用接続の確立に失敗しました", slog.Any("error", err))
	}
}

// Package realtime はユーザー単位のイベント配信を提供する。
//
// Hub はプロセス内の購読管理を行い、Listener はPostgreSQLのLISTEN/NOTIFYで受け取った
// アクティビティ作成通知をHubへ流す。
package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/ecopoints/internal/model"
)

// イベント種別。
const (
	EventActivityCreated = "activity_created"
	EventPointsAwarded   = "points_awarded"
	EventDashboard       = "dashboard"
)

// DefaultBufferSize は購読1件あたりのイベントバッファ長。
const DefaultBufferSize = 16

// Event はクライアントへ送るイベント。
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Subscription は1つの購読。Cからイベントを受け取る。
type Subscription struct {
	ID     string
	UserID string
	C      <-chan Event
}

// Hub はユーザーIDごとの購読を管理する。
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]chan Event
	buffer int
	logger *slog.Logger
}

// NewHub はHubを生成する。bufferが0以下の場合はDefaultBufferSizeを使う。
func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{
		subs:   make(map[string]map[string]chan Event),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe はuserID宛てのイベントを購読する。
// 返される関数で購読を解除する。解除後はCが閉じられる。複数回呼んでもよい。
func (h *Hub) Subscribe(userID string) (*Subscription, func()) {
	id := uuid.NewString()
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]chan Event)
	}
	h.subs[userID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if userSubs, ok := h.subs[userID]; ok {
				delete(userSubs, id)
				if len(userSubs) == 0 {
					delete(h.subs, userID)
				}
			}
			close(ch)
		})
	}

	return &Subscription{ID: id, UserID: userID, C: ch}, cancel
}

// Publish はuserIDの全購読へイベントを送り、送信できた件数を返す。
// バッファが満杯の購読には送らずに破棄する。
func (h *Hub) Publish(userID string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, ch := range h.subs[userID] {
		select {
		case ch <- ev:
			delivered++
		default:
			h.logger.Warn("購読者のバッファが満杯のためイベントを破棄しました",
				slog.String("user_id", userID),
				slog.String("subscription_id", id),
				slog.String("event_type", ev.Type),
			)
		}
	}
	return delivered
}

// NotifyPointsAwarded はバックグラウンド付与の成功を利用者へ通知する。
func (h *Hub) NotifyPointsAwarded(userID string, n model.PointsAwarded) {
	h.Publish(userID, Event{Type: EventPointsAwarded, Payload: n})
}

// SubscriberCount はuserIDの購読数を返す。
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

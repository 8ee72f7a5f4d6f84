package refresh

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, nil)), &buf
}

func TestScheduler_RunOnce_TracksConsecutiveErrors(t *testing.T) {
	fail := true
	logger, buf := newTestLogger()
	s := NewScheduler("pollution", RefresherFunc(func(ctx context.Context) error {
		if fail {
			return errors.New("upstream down")
		}
		return nil
	}), logger)
	ctx := context.Background()

	s.RunOnce(ctx)
	err := s.RunOnce(ctx)
	if err == nil || s.consecutiveErrors != 2 {
		t.Fatalf("err = %v, consecutiveErrors = %d", err, s.consecutiveErrors)
	}
	// 2回連続失敗の次は60秒後に再試行する
	if got := s.NextDelay(err, time.Hour); got != time.Minute {
		t.Errorf("NextDelay = %v, want 1m", got)
	}
	// バックオフは間隔を超えない
	if got := s.NextDelay(err, 10*time.Second); got != 10*time.Second {
		t.Errorf("NextDelay = %v, want 10s", got)
	}

	fail = false
	if err := s.RunOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.consecutiveErrors != 0 {
		t.Errorf("consecutiveErrors = %d, want 0", s.consecutiveErrors)
	}
	if got := s.NextDelay(nil, time.Hour); got != time.Hour {
		t.Errorf("NextDelay = %v, want 1h", got)
	}

	if !strings.Contains(buf.String(), `"job":"pollution"`) {
		t.Errorf("ログにジョブ名が含まれること: %s", buf.String())
	}
}

// 起動直後に1回実行し、キャンセルで停止すること
func TestScheduler_Start_RunsImmediatelyAndStops(t *testing.T) {
	var calls atomic.Int32
	ran := make(chan struct{}, 1)
	logger, _ := newTestLogger()
	s := NewScheduler("test", RefresherFunc(func(ctx context.Context) error {
		calls.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("起動直後に更新が実行されること")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("キャンセル後に停止すること")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

// 間隔ごとに繰り返し実行すること
func TestScheduler_Start_Repeats(t *testing.T) {
	var calls atomic.Int32
	logger, _ := newTestLogger()
	s := NewScheduler("test", RefresherFunc(func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}), logger)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	s.Start(ctx, 20*time.Millisecond)

	if calls.Load() < 3 {
		t.Errorf("calls = %d, want >= 3", calls.Load())
	}
}

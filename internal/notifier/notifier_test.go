package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kit "seekbot/internal/transport"
	"seekbot/pkg/logx"
)

type captureAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (c *captureAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (c *captureAdapter) Stop(ctx context.Context) error                         { return nil }

func (c *captureAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.sent)}, nil
}

func (c *captureAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (c *captureAdapter) DeleteText(ctx context.Context, ref kit.MessageRef) error { return nil }
func (c *captureAdapter) AnswerCallback(ctx context.Context, id, text string, alert bool) error {
	return nil
}

func (c *captureAdapter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestNotifyDelivers(t *testing.T) {
	t.Parallel()

	adapter := &captureAdapter{}
	s := New(Config{RatePerSec: 100}, adapter, logx.Nop())
	s.Start(context.Background())

	for i := 0; i < 5; i++ {
		if err := s.Notify(kit.ChatTarget{ChatID: 1}, "hi", nil); err != nil {
			t.Fatalf("Notify: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Stop(ctx)

	if got := adapter.count(); got != 5 {
		t.Fatalf("delivered = %d, want 5", got)
	}
}

func TestNotifyAfterStop(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &captureAdapter{}, logx.Nop())
	s.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if err := s.Notify(kit.ChatTarget{ChatID: 1}, "late", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func TestNotifyBeforeStart(t *testing.T) {
	t.Parallel()

	s := New(Config{QueueSize: 2}, &captureAdapter{}, logx.Nop())
	if err := s.Notify(kit.ChatTarget{ChatID: 1}, "x", nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("unstarted Notify = %v, want ErrStopped", err)
	}
}

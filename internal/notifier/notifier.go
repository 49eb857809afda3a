// Package notifier delivers out-of-band operator messages (first-contact
// notifications, usage reports) asynchronously: a bounded queue drained by
// one worker, paced by a token bucket so bursts cannot hit Telegram's
// sender limits.
package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "seekbot/internal/transport"
	"seekbot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	QueueSize  int // default 128
	RatePerSec int // default 3
}

type item struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type Service struct {
	log     logx.Logger
	adapter kit.Adapter
	limiter *rate.Limiter

	mu        sync.Mutex
	queue     chan item
	accepting bool

	runCancel context.CancelFunc
	workerWG  sync.WaitGroup

	// sendWG tracks in-flight Notify calls so Stop can close the queue
	// without racing an enqueue.
	sendWG sync.WaitGroup
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:     log,
		adapter: adapter,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan item, cfg.QueueSize),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.runCancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.accepting = true
	s.mu.Unlock()

	s.workerWG.Add(1)
	go func() {
		defer s.workerWG.Done()
		s.worker(runCtx)
	}()
}

// Stop blocks intake and drains queued notifications best-effort until ctx
// expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	s.accepting = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.sendWG.Wait()
	close(s.queue)
	done := make(chan struct{})
	go func() {
		s.workerWG.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		cancel()
		<-done
	case <-done:
	}
	cancel()
}

// Notify enqueues a message for the worker. It never blocks the caller.
func (s *Service) Notify(to kit.ChatTarget, text string, opt *kit.SendOptions) error {
	s.mu.Lock()
	if !s.accepting {
		s.mu.Unlock()
		return ErrStopped
	}
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case s.queue <- item{to: to, text: text, opt: opt}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	for it := range s.queue {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err := s.adapter.SendText(sctx, it.to, it.text, it.opt)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warn("notification send failed",
				logx.Int64("chat", it.to.ChatID),
				logx.Err(err))
		}
	}
}

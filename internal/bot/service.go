// Package bot is the dispatch loop: it consumes transport updates, resolves
// them to users, and routes admitted requests into the session hub.
package bot

import (
	"context"
	"strings"
	"sync"

	rtsup "seekbot/internal/runtime/supervisor"
	"seekbot/internal/session"
	"seekbot/internal/stats"
	"seekbot/internal/storage"
	kit "seekbot/internal/transport"
	"seekbot/pkg/logx"
)

// Completer is the upstream chat-completion call.
type Completer interface {
	Complete(ctx context.Context, text string) (string, error)
}

// Notifier delivers out-of-band operator messages.
type Notifier interface {
	Notify(to kit.ChatTarget, text string, opt *kit.SendOptions) error
}

type Options struct {
	// OperatorID receives first-contact notifications.
	OperatorID int64
	// Channel is the required-subscription channel ("@name"); empty
	// disables the membership check.
	Channel string
	// MaxChunkLen caps outbound message size in runes.
	MaxChunkLen int
}

type Deps struct {
	Adapter kit.Adapter
	Members kit.MembershipChecker // nil disables the subscription check
	Store   *session.Store
	Hub     *session.Hub
	Client  Completer
	Notify  Notifier      // may be nil
	Audit   storage.Store // may be nil
	Stats   *stats.Stats
	Log     logx.Logger
}

type Service struct {
	d Deps

	optMu sync.RWMutex
	opts  Options

	updates chan kit.Update
	sup     *rtsup.Supervisor
}

func New(opts Options, d Deps) *Service {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Stats == nil {
		d.Stats = stats.New()
	}
	if opts.MaxChunkLen <= 0 {
		opts.MaxChunkLen = 4000
	}
	return &Service{
		d:       d,
		opts:    opts,
		updates: make(chan kit.Update, 256),
	}
}

// ApplyOptions swaps the reloadable knobs (config reload).
func (s *Service) ApplyOptions(opts Options) {
	if opts.MaxChunkLen <= 0 {
		opts.MaxChunkLen = 4000
	}
	s.optMu.Lock()
	s.opts = opts
	s.optMu.Unlock()
}

func (s *Service) options() Options {
	s.optMu.RLock()
	defer s.optMu.RUnlock()
	return s.opts
}

func (s *Service) Start(ctx context.Context) error {
	s.sup = rtsup.New(ctx, rtsup.WithLogger(s.d.Log.With(logx.String("comp", "bot"))))
	s.d.Hub.SetBaseContext(s.sup.Context())

	if err := s.d.Adapter.Start(s.sup.Context(), s.updates); err != nil {
		return err
	}

	s.sup.Go0("dispatch", func(ctx context.Context) {
		s.dispatch(ctx)
	})
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	_ = s.d.Adapter.Stop(ctx)
	if s.sup != nil {
		s.sup.Cancel()
	}
	// Let in-flight tasks unwind before declaring the dispatcher stopped.
	if err := s.d.Hub.Shutdown(ctx); err != nil {
		return err
	}
	if s.sup != nil {
		return s.sup.Wait(ctx)
	}
	return nil
}

// dispatch fans updates out to per-update goroutines so one user's slow
// handling never stalls another's.
func (s *Service) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-s.updates:
			s.sup.Go0("update", func(ctx context.Context) {
				s.handle(ctx, up)
			})
		}
	}
}

func (s *Service) handle(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			s.onMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			s.onCallback(ctx, up.Callback)
		}
	}
}

func (s *Service) onMessage(ctx context.Context, m *kit.Message) {
	text := strings.TrimSpace(m.Text)
	switch {
	case text == "/start" || strings.HasPrefix(text, "/start "):
		s.onStart(ctx, m)
	case text == "/cancel":
		s.onCancel(ctx, m)
	default:
		s.onRequest(ctx, m)
	}
}

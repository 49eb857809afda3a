// Package report emits a scheduled usage summary: users seen and request
// outcomes since process start. The schedule is a cron expression.
package report

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"seekbot/internal/session"
	"seekbot/internal/stats"
	"seekbot/pkg/logx"
)

type Config struct {
	Schedule string // default "0 9 * * *"
}

// Notify delivers the rendered summary out of band (operator chat).
// May be nil, in which case the summary is only logged.
type Notify func(text string)

type Service struct {
	log    logx.Logger
	stats  *stats.Stats
	store  *session.Store
	notify Notify

	cron *cron.Cron
}

func New(cfg Config, st *stats.Stats, store *session.Store, notify Notify, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		log:    log,
		stats:  st,
		store:  store,
		notify: notify,
		cron:   cron.New(),
	}
	spec := cfg.Schedule
	if spec == "" {
		spec = "0 9 * * *"
	}
	if _, err := s.cron.AddFunc(spec, s.emit); err != nil {
		return nil, fmt.Errorf("report schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Service) Start() { s.cron.Start() }

func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) emit() {
	snap := s.stats.Snapshot()
	users := s.store.Users()

	s.log.Info("usage report",
		logx.Int64("users", users),
		logx.Uint64("admitted", snap.Admitted),
		logx.Uint64("completed", snap.Completed),
		logx.Uint64("cancelled", snap.Cancelled),
		logx.Uint64("failed", snap.Failed),
		logx.Uint64("rejected_busy", snap.RejectedBusy),
		logx.Uint64("rejected_cooldown", snap.RejectedCooldown),
		logx.Uint64("dropped", snap.Dropped))

	if s.notify == nil {
		return
	}
	s.notify(fmt.Sprintf(
		"📊 Usage report\n"+
			"Users: %d\n"+
			"Admitted: %d\n"+
			"Completed: %d | Cancelled: %d | Failed: %d\n"+
			"Rejected: %d busy, %d cooldown | Dropped: %d",
		users, snap.Admitted,
		snap.Completed, snap.Cancelled, snap.Failed,
		snap.RejectedBusy, snap.RejectedCooldown, snap.Dropped))
}

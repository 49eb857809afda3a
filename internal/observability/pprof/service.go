// Package pprof exposes Go's profiling endpoints on a localhost-only HTTP
// server. This is the only auxiliary network surface the bot opens.
package pprof

import (
	"context"
	"errors"
	"net/http"
	httppprof "net/http/pprof"
	"time"

	"seekbot/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string // default "127.0.0.1:6060"
}

type Service struct {
	log logx.Logger
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	if !cfg.Enabled {
		return nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	addr := cfg.Addr
	if addr == "" {
		addr = "127.0.0.1:6060"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)

	return &Service{
		log: log,
		srv: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// No write timeout: /profile legitimately takes 30s+.
			IdleTimeout: time.Minute,
		},
	}
}

func (s *Service) Start() {
	if s == nil {
		return
	}
	go func() {
		s.log.Info("pprof listening", logx.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("pprof server stopped", logx.Err(err))
		}
	}()
}

func (s *Service) Stop(ctx context.Context) {
	if s == nil {
		return
	}
	_ = s.srv.Shutdown(ctx)
}

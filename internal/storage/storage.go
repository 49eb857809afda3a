// Package storage is the optional request audit log. It records one row per
// terminal request outcome; it never stores session or cooldown state.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"seekbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file (sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RequestRecord is one terminal request outcome. Keep it compact and
// schema-stable.
type RequestRecord struct {
	At       time.Time
	TaskID   string
	UserID   int64
	Username string
	Outcome  string // "completed", "cancelled", "failed"
	TookMS   int64
	Error    string
}

// Store is the minimal persistence API used by the dispatcher.
type Store interface {
	AppendRequest(ctx context.Context, r RequestRecord) error
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

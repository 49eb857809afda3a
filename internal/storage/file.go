package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"seekbot/pkg/logx"
)

// fileStore appends one JSON line per record. Good enough for a single
// process; rotation is the operator's problem (logrotate etc.).
type fileStore struct {
	log logx.Logger

	mu sync.Mutex
	f  *os.File
}

type fileRecord struct {
	At       string `json:"at"`
	TaskID   string `json:"task_id"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Outcome  string `json:"outcome"`
	TookMS   int64  `json:"took_ms"`
	Error    string `json:"error,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("file storage path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileStore{log: log, f: f}, nil
}

func (s *fileStore) AppendRequest(ctx context.Context, r RequestRecord) error {
	if s == nil || s.f == nil {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.At.IsZero() {
		r.At = time.Now()
	}
	b, err := json.Marshal(fileRecord{
		At:       r.At.Format(time.RFC3339Nano),
		TaskID:   r.TaskID,
		UserID:   r.UserID,
		Username: r.Username,
		Outcome:  r.Outcome,
		TookMS:   r.TookMS,
		Error:    r.Error,
	})
	if err != nil {
		return err
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.f.Write(b)
	return err
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}

package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"seekbot/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()

	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) = %v, want nil store", driver, st)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver must error")
	}
}

func TestFileStoreAppend(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "audit", "requests.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	records := []RequestRecord{
		{At: at, TaskID: "t1", UserID: 7, Username: "ada", Outcome: "completed", TookMS: 1200},
		{At: at.Add(time.Minute), TaskID: "t2", UserID: 7, Outcome: "failed", TookMS: 300, Error: "boom"},
	}
	for _, r := range records {
		if err := st.AppendRequest(context.Background(), r); err != nil {
			t.Fatalf("AppendRequest: %v", err)
		}
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var lines []fileRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec fileRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line not valid JSON: %v", err)
		}
		lines = append(lines, rec)
	}
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}
	if lines[0].TaskID != "t1" || lines[0].Outcome != "completed" || lines[0].Username != "ada" {
		t.Fatalf("first line = %+v", lines[0])
	}
	if lines[1].Error != "boom" {
		t.Fatalf("second line error = %q, want boom", lines[1].Error)
	}
}

func TestFileStoreAppendCancelledContext(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "requests.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.AppendRequest(ctx, RequestRecord{TaskID: "x"}); err == nil {
		t.Fatal("append with cancelled context must error")
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalYAML = `
telegram:
  token: "123:abc"
  operator_id: 42
upstream:
  api_key: "sk-test"
logging:
  level: info
  console: true
`

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", minimalYAML)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Telegram.OperatorID != 42 {
		t.Fatalf("operator_id = %d", cfg.Telegram.OperatorID)
	}
	if cfg.Upstream.APIKey != "sk-test" {
		t.Fatalf("api_key = %q", cfg.Upstream.APIKey)
	}
}

func TestManagerLoadJSON(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.json", `{
  "telegram": {"token": "123:abc", "operator_id": 1},
  "upstream": {"api_key": "sk-test", "max_retries": 5, "retry_delay": "3s"},
  "limits": {"cooldown": "90s", "max_chunk_len": 2000},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}, "telegram": {"enabled": false, "min_level": "", "rate_per_sec": 0}}
}`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.MaxRetries != 5 {
		t.Fatalf("max_retries = %d", cfg.Upstream.MaxRetries)
	}
	if cfg.Limits.Cooldown != "90s" || cfg.Limits.MaxChunkLen != 2000 {
		t.Fatalf("limits = %+v", cfg.Limits)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "config.yaml", minimalYAML+"\nbogus_section:\n  x: 1\n")
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("unknown top-level field must be rejected")
	}
}

func TestManagerExpandsSecrets(t *testing.T) {
	t.Setenv("SEEKBOT_TEST_TOKEN", "999:secret")
	t.Setenv("SEEKBOT_TEST_KEY", "sk-env")

	path := writeConfig(t, "config.yaml", `
telegram:
  token: "${SEEKBOT_TEST_TOKEN}"
upstream:
  api_key: "${SEEKBOT_TEST_KEY}"
logging:
  level: info
  console: true
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "999:secret" {
		t.Fatalf("token = %q, want expanded env value", cfg.Telegram.Token)
	}
	if cfg.Upstream.APIKey != "sk-env" {
		t.Fatalf("api_key = %q, want expanded env value", cfg.Upstream.APIKey)
	}
}

func TestValidateMissingRequired(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		mut  func(*Config)
		want string
	}{
		{name: "missing token", mut: func(c *Config) { c.Telegram.Token = "" }, want: "telegram.token"},
		{name: "missing api key", mut: func(c *Config) { c.Upstream.APIKey = "" }, want: "upstream.api_key"},
		{name: "bad cooldown", mut: func(c *Config) { c.Limits.Cooldown = "sixty" }, want: "limits.cooldown"},
		{name: "negative retries", mut: func(c *Config) { c.Upstream.MaxRetries = -1 }, want: "max_retries"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Telegram: TelegramConfig{Token: "123:abc"},
				Upstream: UpstreamConfig{APIKey: "sk"},
			}
			tc.mut(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty is zero", raw: "", want: 0},
		{name: "whitespace is zero", raw: "  ", want: 0},
		{name: "seconds", raw: "30s", want: 30 * time.Second},
		{name: "compound", raw: "1m30s", want: 90 * time.Second},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "negative", raw: "-5s", wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d, err := ParseDurationField("test.field", tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField: %v", err)
			}
			if d != tc.want {
				t.Fatalf("d = %v, want %v", d, tc.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()

	d, err := ParseDurationOrDefault("x", "", 42*time.Second)
	if err != nil || d != 42*time.Second {
		t.Fatalf("empty = (%v, %v), want default", d, err)
	}
	d, err = ParseDurationOrDefault("x", "5s", 42*time.Second)
	if err != nil || d != 5*time.Second {
		t.Fatalf("explicit = (%v, %v), want 5s", d, err)
	}
	if _, err = ParseDurationOrDefault("x", "later", time.Second); err == nil {
		t.Fatal("garbage must error, not default")
	}
}

func TestManagerSubscribePublish(t *testing.T) {
	t.Parallel()

	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	cfg := &Config{}
	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("subscriber received a different config")
		}
	default:
		t.Fatal("subscriber did not receive the published config")
	}

	// A full buffer drops the stale item, not the fresh one.
	stale, fresh := &Config{}, &Config{}
	m.publish(stale)
	m.publish(fresh)
	if got := <-ch; got != fresh {
		t.Fatal("slow subscriber must see the latest config")
	}
}

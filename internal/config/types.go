package config

import (
	"errors"
	"os"
	"strings"
)

// Config is the full on-disk configuration. JSON and YAML are both accepted;
// YAML is coerced to JSON before a strict decode (unknown fields rejected).
//
// All duration fields are Go duration strings (e.g. "2s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Upstream UpstreamConfig `json:"upstream"`
	Limits   LimitsConfig   `json:"limits"`
	Logging  LoggingConfig  `json:"logging"`

	Storage *StorageConfig `json:"storage,omitempty"`
	Report  *ReportConfig  `json:"report,omitempty"`
	Pprof   *PprofConfig   `json:"pprof,omitempty"`
}

type TelegramConfig struct {
	// Token supports ${ENV} expansion so the secret can stay out of the file.
	Token string `json:"token"`

	// Channel is the channel users must be subscribed to before the bot
	// serves them (e.g. "@myannouncements"). Empty disables the check.
	Channel string `json:"channel,omitempty"`

	// OperatorID is the privileged operator: cooldown-exempt and the
	// recipient of first-contact notifications.
	OperatorID int64 `json:"operator_id"`

	// LogChatID receives forwarded warn/error log lines when
	// logging.telegram is enabled.
	LogChatID int64 `json:"log_chat_id,omitempty"`

	PollTimeout string `json:"poll_timeout,omitempty"` // default 10s
}

// UpstreamConfig configures the chat-completion service client
// (OpenRouter-compatible API).
type UpstreamConfig struct {
	APIKey  string `json:"api_key"` // supports ${ENV} expansion
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`

	// Referer/Title are forwarded as the OpenRouter attribution headers.
	Referer string `json:"referer,omitempty"`
	Title   string `json:"title,omitempty"`

	Timeout    string `json:"timeout,omitempty"`     // per-request, default 60s
	MaxRetries int    `json:"max_retries,omitempty"` // default 3
	RetryDelay string `json:"retry_delay,omitempty"` // default 2s
}

type LimitsConfig struct {
	Cooldown    string `json:"cooldown,omitempty"`      // per-user, default 60s
	MaxChunkLen int    `json:"max_chunk_len,omitempty"` // runes, default 4000
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig controls the optional request audit log.
//
// Driver values:
//   - "file": dependency-free jsonl backend
//   - "sqlite": SQLite database file (sqlite build tag)
//
// If the section is omitted or Driver is empty/"none", auditing is disabled.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// ReportConfig controls the scheduled usage summary.
type ReportConfig struct {
	Enabled bool `json:"enabled"`
	// Schedule is a cron expression; default "0 9 * * *".
	Schedule string `json:"schedule,omitempty"`
	// ToOperator additionally sends the summary to the operator chat.
	ToOperator bool `json:"to_operator,omitempty"`
}

// PprofConfig controls the debug HTTP server. Bind to localhost.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:6060"
}

// ExpandSecrets resolves ${ENV} references in secret-bearing fields.
// Called once after decode so the rest of the tree is left untouched.
func (c *Config) ExpandSecrets() {
	c.Telegram.Token = os.ExpandEnv(c.Telegram.Token)
	c.Upstream.APIKey = os.ExpandEnv(c.Upstream.APIKey)
}

// Validate checks the fields the bot cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Upstream.APIKey) == "" {
		return errors.New("upstream.api_key is required")
	}
	if _, err := ParseDurationField("limits.cooldown", c.Limits.Cooldown); err != nil {
		return err
	}
	if _, err := ParseDurationField("upstream.timeout", c.Upstream.Timeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("upstream.retry_delay", c.Upstream.RetryDelay); err != nil {
		return err
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must be >= 0")
	}
	if c.Limits.MaxChunkLen < 0 {
		return errors.New("limits.max_chunk_len must be >= 0")
	}
	return nil
}

// Package upstream implements the chat-completion client (OpenRouter-style
// API) with bounded retries and a per-request timeout.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"seekbot/pkg/logx"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "deepseek/deepseek-chat-v3-0324:free"

	defaultTimeout    = 60 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = 2 * time.Second

	userAgent = "seekbot/1.0"
)

// RetryPolicy is the pure retry schedule: MaxAttempts total attempts with a
// fixed Delay between failing attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.Delay < 0 {
		p.Delay = defaultRetryDelay
	}
	return p
}

// Doer abstracts the HTTP client so tests can inject a fake transport.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Referer string
	Title   string

	// Timeout bounds one attempt end to end.
	Timeout time.Duration
	Retry   RetryPolicy
}

type Client struct {
	cfg  Config
	http Doer
	log  logx.Logger
}

// New builds a client with a pooled transport sized for many concurrent
// users sharing one connection pool.
func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 50,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	return NewWithDoer(cfg, &http.Client{Transport: transport}, log)
}

// NewWithDoer is New with an explicit HTTP doer (tests).
func NewWithDoer(cfg Config, doer Doer, log logx.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.Retry = cfg.Retry.normalized()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: doer, log: log}
}

// Complete runs one logical completion with retries. Non-final attempt
// failures never surface; the terminal error distinguishes upstream-reported
// errors, timeouts, and transport failures via ExhaustedError.Last. A
// cancelled ctx aborts immediately with ctx.Err().
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyInput
	}

	attempts := c.cfg.Retry.MaxAttempts
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, err := c.attempt(ctx, text)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		last = err
		c.log.Debug("completion attempt failed",
			logx.Int("attempt", attempt),
			logx.Int("max", attempts),
			logx.Err(err))

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, c.cfg.Retry.Delay); err != nil {
			return "", err
		}
	}
	return "", &ExhaustedError{Attempts: attempts, Last: last}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) attempt(ctx context.Context, text string) (string, error) {
	rctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: text}},
		Temperature: 0.7,
	})
	if err != nil {
		return "", &TransportError{Cause: err}
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", classifyTransport(ctx, rctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", classifyTransport(ctx, rctx, err)
	}

	if resp.StatusCode != http.StatusOK {
		var parsed chatResponse
		msg := ""
		if json.Unmarshal(raw, &parsed) == nil && parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &APIError{Status: resp.StatusCode, Message: msg}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &TransportError{Cause: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &TransportError{Cause: errors.New("response has no choices")}
	}
	return parsed.Choices[0].Message.Content, nil
}

// classifyTransport separates caller cancellation, per-attempt timeout, and
// plain transport failure.
func classifyTransport(ctx, rctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return &TransportError{Cause: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

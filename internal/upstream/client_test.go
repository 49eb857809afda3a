package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"seekbot/pkg/logx"
)

type fakeDoer struct {
	calls     int
	responses []func(req *http.Request) (*http.Response, error)
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i](req)
}

func okResponse(content string) func(*http.Request) (*http.Response, error) {
	body := fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func errResponse(status int, msg string) func(*http.Request) (*http.Response, error) {
	body := fmt.Sprintf(`{"error":{"message":%q}}`, msg)
	return func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Body:       io.NopCloser(strings.NewReader(body)),
		}, nil
	}
}

func netFailure() func(*http.Request) (*http.Response, error) {
	return func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
}

func newTestClient(doer Doer, retry RetryPolicy) *Client {
	return NewWithDoer(Config{
		APIKey: "test-key",
		Retry:  retry,
	}, doer, logx.Nop())
}

func TestCompleteEmptyInput(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){okResponse("x")}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 3})

	if _, err := c.Complete(context.Background(), "   \n\t"); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("err = %v, want ErrEmptyInput", err)
	}
	if doer.calls != 0 {
		t.Fatalf("calls = %d, want 0 (empty input must not reach the wire)", doer.calls)
	}
}

func TestCompleteSuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){okResponse("hello back")}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 3})

	out, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "hello back" {
		t.Fatalf("out = %q, want %q", out, "hello back")
	}
	if doer.calls != 1 {
		t.Fatalf("calls = %d, want 1", doer.calls)
	}
}

func TestCompleteRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		netFailure(),
		errResponse(http.StatusBadGateway, "upstream hiccup"),
		okResponse("third time lucky"),
	}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})

	out, err := c.Complete(context.Background(), "q")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "third time lucky" {
		t.Fatalf("out = %q", out)
	}
	if doer.calls != 3 {
		t.Fatalf("calls = %d, want 3", doer.calls)
	}
}

func TestCompleteExhaustsAttempts(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		errResponse(http.StatusTooManyRequests, "rate limited"),
	}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond})

	_, err := c.Complete(context.Background(), "q")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", exhausted.Attempts)
	}
	var api *APIError
	if !errors.As(exhausted.Last, &api) {
		t.Fatalf("last = %v, want *APIError", exhausted.Last)
	}
	if api.Status != http.StatusTooManyRequests || api.Message != "rate limited" {
		t.Fatalf("api = %+v", api)
	}
	if doer.calls != 3 {
		t.Fatalf("calls = %d, want 3", doer.calls)
	}
}

func TestCompleteCancelledBetweenAttempts(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			cancel()
			return nil, errors.New("connection reset")
		},
	}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 3, Delay: time.Minute})

	start := time.Now()
	_, err := c.Complete(ctx, "q")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if doer.calls != 1 {
		t.Fatalf("calls = %d, want 1 (no retry after cancel)", doer.calls)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("cancellation must not wait out the retry delay")
	}
}

func TestCompleteRequestShape(t *testing.T) {
	t.Parallel()

	var got *http.Request
	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		func(req *http.Request) (*http.Response, error) {
			got = req
			return okResponse("ok")(req)
		},
	}}
	c := NewWithDoer(Config{
		APIKey:  "secret",
		Referer: "https://example.com",
		Title:   "seekbot",
	}, doer, logx.Nop())

	if _, err := c.Complete(context.Background(), "hi"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Method != http.MethodPost {
		t.Fatalf("method = %s", got.Method)
	}
	if want := DefaultBaseURL + "/chat/completions"; got.URL.String() != want {
		t.Fatalf("url = %s, want %s", got.URL, want)
	}
	if auth := got.Header.Get("Authorization"); auth != "Bearer secret" {
		t.Fatalf("auth = %q", auth)
	}
	if ref := got.Header.Get("HTTP-Referer"); ref != "https://example.com" {
		t.Fatalf("referer = %q", ref)
	}
	if title := got.Header.Get("X-Title"); title != "seekbot" {
		t.Fatalf("title = %q", title)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestCompleteTimeoutClassified(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) { return nil, timeoutErr{} },
	}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 1})

	_, err := c.Complete(context.Background(), "q")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	if !errors.Is(exhausted.Last, ErrTimeout) {
		t.Fatalf("last = %v, want ErrTimeout", exhausted.Last)
	}
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()

	doer := &fakeDoer{responses: []func(*http.Request) (*http.Response, error){
		func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"choices":[]}`)),
			}, nil
		},
	}}
	c := newTestClient(doer, RetryPolicy{MaxAttempts: 1})

	_, err := c.Complete(context.Background(), "q")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want *ExhaustedError", err)
	}
	var terr *TransportError
	if !errors.As(exhausted.Last, &terr) {
		t.Fatalf("last = %v, want *TransportError", exhausted.Last)
	}
}

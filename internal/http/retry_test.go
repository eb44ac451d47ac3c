package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"
)

type statusErr int

func (e statusErr) Error() string       { return fmt.Sprintf("status %d", int(e)) }
func (e statusErr) HTTPStatusCode() int { return int(e) }

func TestExecuteWithRetry(t *testing.T) {
	fast := Config{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	tests := []struct {
		name      string
		cfg       Config
		results   []error // returned by successive calls; the last repeats
		wantCalls int
		wantErr   bool
		wantRetry []int
	}{
		{name: "first call succeeds", cfg: fast, results: []error{nil}, wantCalls: 1},
		{name: "404 not retried", cfg: fast, results: []error{statusErr(404)}, wantCalls: 1, wantErr: true},
		{name: "403 without refresh not retried", cfg: DefaultConfig(), results: []error{statusErr(403)}, wantCalls: 1, wantErr: true},
		{
			name:      "503 then success",
			cfg:       Config{MaxRetries: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
			results:   []error{statusErr(503), statusErr(503), nil},
			wantCalls: 3,
			wantRetry: []int{1, 2},
		},
		{name: "exhausted", cfg: fast, results: []error{statusErr(502)}, wantCalls: 3, wantErr: true, wantRetry: []int{1, 2}},
		{name: "zero attempts means one", cfg: Config{}, results: []error{statusErr(500)}, wantCalls: 1, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var retried []int
			tt.cfg.OnRetry = func(attempt int, _ error, _ ErrorType) { retried = append(retried, attempt) }

			calls := 0
			err := ExecuteWithRetry(context.Background(), tt.cfg, func() error {
				r := tt.results[min(calls, len(tt.results)-1)]
				calls++
				return r
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if fmt.Sprint(retried) != fmt.Sprint(tt.wantRetry) {
				t.Errorf("OnRetry attempts = %v, want %v", retried, tt.wantRetry)
			}
		})
	}
}

func TestExecuteWithRetryWrapsLastError(t *testing.T) {
	err := ExecuteWithRetry(context.Background(), Config{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		func() error { return statusErr(502) })
	var sc statusErr
	if !errors.As(err, &sc) || sc != 502 {
		t.Errorf("err = %v, want wrapped 502", err)
	}
}

func TestExecuteWithRetryCredentialRefresh(t *testing.T) {
	refreshed := 0
	cfg := Config{MaxRetries: 2, CredentialRefresh: func(context.Context) error { refreshed++; return nil }}
	calls := 0
	err := ExecuteWithRetry(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return statusErr(403)
		}
		return nil
	})
	if err != nil || calls != 2 || refreshed != 2 {
		t.Errorf("err=%v calls=%d refreshed=%d", err, calls, refreshed)
	}

	cfg.CredentialRefresh = func(context.Context) error { return errors.New("no token") }
	if err := ExecuteWithRetry(context.Background(), cfg, func() error { return nil }); err == nil {
		t.Error("refresh failure not returned")
	}
}

func TestExecuteWithRetryCancelledWhileSleeping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	err := ExecuteWithRetry(ctx, Config{MaxRetries: 5, InitialDelay: 5 * time.Second, MaxDelay: 30 * time.Second},
		func() error { return errors.New("connection reset") })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("returned after %v", elapsed)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{fmt.Errorf("open: %w", context.Canceled), ErrorTypeFatal},
		{context.DeadlineExceeded, ErrorTypeFatal},
		{statusErr(404), ErrorTypeFatal},
		{statusErr(403), ErrorTypeCredential},
		{statusErr(429), ErrorTypeRetryable},
		{fmt.Errorf("get: %w", statusErr(500)), ErrorTypeRetryable},
		{&net.OpError{Op: "dial", Err: errors.New("refused")}, ErrorTypeNetwork},
		{errors.New("ExpiredToken: the token has expired"), ErrorTypeCredential},
		{errors.New("AuthenticationFailed: invalid SAS"), ErrorTypeCredential},
		{errors.New("read: connection reset by peer"), ErrorTypeNetwork},
		{errors.New("SlowDown: please reduce your request rate"), ErrorTypeRetryable},
		{errors.New("something odd"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if s := ErrorType(99).String(); s != "unknown" {
		t.Errorf("ErrorType(99) = %q", s)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if d := CalculateBackoff(0, time.Second, time.Minute); d != 0 {
		t.Errorf("attempt 0 waits %v", d)
	}
	for attempt := 1; attempt < 70; attempt++ {
		d := CalculateBackoff(attempt, 100*time.Millisecond, 2*time.Second)
		if d < 0 || d >= 2*time.Second {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

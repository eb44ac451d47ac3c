package http

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
)

// ErrorType is the retry class of an error.
type ErrorType int

const (
	ErrorTypeSuccess    ErrorType = iota
	ErrorTypeCredential           // 401/403, expired token or SAS
	ErrorTypeNetwork              // resets, timeouts, refused dials
	ErrorTypeRetryable            // 408, 429, 5xx, throttling
	ErrorTypeFatal                // everything else, including cancellation
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	}
	return "unknown"
}

// StatusCoder is implemented by errors that carry an HTTP status code.
type StatusCoder interface {
	HTTPStatusCode() int
}

// Config holds retry parameters for ExecuteWithRetry.
type Config struct {
	MaxRetries   int // attempts, not retries; at least 1
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// CredentialRefresh runs before every attempt. Without it credential
	// errors are not retried.
	CredentialRefresh func(context.Context) error
	// OnRetry runs before sleeping for the next attempt.
	OnRetry func(attempt int, err error, errorType ErrorType)
}

// DefaultConfig returns the storage retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   constants.MaxRetries,
		InitialDelay: constants.RetryInitialDelay,
		MaxDelay:     constants.RetryMaxDelay,
	}
}

// LoggedConfig is DefaultConfig with each retry logged at debug level.
func LoggedConfig(logger *logging.Logger, service, op string) Config {
	logger = logging.OrNop(logger)
	cfg := DefaultConfig()
	cfg.OnRetry = func(attempt int, err error, t ErrorType) {
		logger.Debug().
			Str("service", service).
			Str("op", op).
			Int("attempt", attempt).
			Stringer("type", t).
			Err(err).
			Msg("Retrying storage call")
	}
	return cfg
}

// ClassifyError decides how ExecuteWithRetry treats err. Typed
// information wins; SDK errors that only expose text are matched by
// message.
func ClassifyError(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypeSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeFatal
	}

	var sc StatusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() != 0 {
		return classifyStatus(sc.HTTPStatusCode())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorTypeNetwork
	}

	msg := strings.ToLower(err.Error())
	for _, c := range messageClasses {
		for _, m := range c.markers {
			if strings.Contains(msg, m) {
				return c.t
			}
		}
	}
	return ErrorTypeFatal
}

func classifyStatus(code int) ErrorType {
	switch {
	case code < 400:
		return ErrorTypeSuccess
	case code == 401, code == 403:
		return ErrorTypeCredential
	case code == 408, code == 429, code >= 500:
		return ErrorTypeRetryable
	}
	return ErrorTypeFatal
}

// Checked in order; the first class with a matching marker wins.
var messageClasses = []struct {
	t       ErrorType
	markers []string
}{
	{ErrorTypeCredential, []string{
		"expired", "invalid token", "403", "unauthorized", "authenticationfailed",
		"authentication failed", "invalid sas", "sas token", "signature not valid",
		"authorization failure",
	}},
	{ErrorTypeNetwork, []string{
		"connection reset", "connection refused", "broken pipe", "timeout", "eof",
	}},
	{ErrorTypeRetryable, []string{
		"requesttimeout", "internalerror", "serviceunavailable", "service unavailable",
		"slowdown", "throttl", "server busy", "serverbusy", "operationtimeout",
		"429", "500", "502", "503", "504",
	}},
}

// CalculateBackoff returns a full-jitter delay, random in
// [0, min(maxDelay, initialDelay*2^attempt)).
func CalculateBackoff(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt <= 0 || initialDelay <= 0 || maxDelay <= 0 {
		return 0
	}
	ceiling := maxDelay
	if attempt < 30 {
		if d := initialDelay << uint(attempt); d > 0 && d < maxDelay {
			ceiling = d
		}
	}
	return time.Duration(rand.Int63n(int64(ceiling)))
}

// ExecuteWithRetry calls operation until it succeeds, fails with an
// error that is not worth retrying, or runs out of attempts. Network and
// retryable errors back off with jitter; credential errors retry after a
// second only when CredentialRefresh is set. Cancellation ends the loop
// at once, also while sleeping.
func ExecuteWithRetry(ctx context.Context, config Config, operation func() error) error {
	attempts := max(config.MaxRetries, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if config.CredentialRefresh != nil {
			if rerr := config.CredentialRefresh(ctx); rerr != nil {
				return fmt.Errorf("credential refresh failed: %w", rerr)
			}
		}

		if err = operation(); err == nil {
			return nil
		}

		t := ClassifyError(err)
		var wait time.Duration
		switch t {
		case ErrorTypeSuccess:
			return nil
		case ErrorTypeFatal:
			return err
		case ErrorTypeCredential:
			if config.CredentialRefresh == nil {
				return err
			}
			wait = time.Second
		default:
			wait = CalculateBackoff(attempt, config.InitialDelay, config.MaxDelay)
		}

		if attempt == attempts {
			return fmt.Errorf("operation failed after %d attempts: %w", attempts, err)
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt, err, t)
		}
		if serr := sleepCtx(ctx, wait); serr != nil {
			return serr
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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

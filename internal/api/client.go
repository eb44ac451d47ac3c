package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/http"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/ratelimit"
)

// maxMetadataBytes bounds the metadata response body.
const maxMetadataBytes = 8 << 20

// retryLogger implements the retryablehttp.LeveledLogger interface
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	// Request-level chatter is too noisy for the CLI
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}

// Client resolves transfer identifiers against the metadata service.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	limiter    *ratelimit.RateLimiter
	logger     *logging.Logger
	calls      atomic.Int64
}

// NewClient creates a new metadata client.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.APIBaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("API base URL is empty: set api_url in the config file, DROPGET_API_URL, or --api-url")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", cfg.APIBaseURL)
	}

	logger = logging.OrNop(logger)

	httpClient, err := http.ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}

	rate := cfg.APIRatePerSec
	if rate <= 0 {
		rate = constants.DefaultAPIRatePerSec
	}
	burst := cfg.APIBurst
	if burst <= 0 {
		burst = constants.DefaultAPIBurst
	}
	limiter := ratelimit.NewRateLimiter(rate, burst)
	limiter.SetLogger(logger)

	c := &Client{
		baseURL: baseURL,
		limiter: limiter,
		logger:  logger,
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = httpClient
	retryClient.RetryMax = constants.APIRetryMax
	retryClient.RetryWaitMin = constants.APIRetryWaitMin
	retryClient.RetryWaitMax = constants.APIRetryWaitMax
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = c.checkRetry
	c.httpClient = retryClient.StandardClient()

	return c, nil
}

// checkRetry extends the default policy: a 429 also pauses the limiter for
// the server's Retry-After so queued lookups don't pile onto the throttle.
func (c *Client) checkRetry(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == nethttp.StatusTooManyRequests {
		wait := time.Second
		if s, perr := strconv.Atoi(resp.Header.Get("Retry-After")); perr == nil && s > 0 {
			wait = time.Duration(s) * time.Second
		}
		c.logger.Warn().Dur("retry_after", wait).Msg("Metadata service throttled the request")
		c.limiter.Drain()
		c.limiter.SetCooldown(wait)
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Calls returns how many lookups this client has issued.
func (c *Client) Calls() int64 {
	return c.calls.Load()
}

// transferEntry is one element of the metadata response.
type transferEntry struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// GetTransfer returns the files held by transfer id, in service order.
// Entries without a name or URL are dropped with a warning.
func (c *Client) GetTransfer(ctx context.Context, id string) ([]models.FileDescriptor, error) {
	id = strings.TrimSpace(id)
	if !validID(id) {
		return nil, &DescriptorFetchError{ID: id, NotFound: true, Err: ErrTransferNotFound}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &DescriptorFetchError{ID: id, Err: fmt.Errorf("rate limiter cancelled: %w", err)}
	}
	c.calls.Add(1)

	reqURL := c.baseURL + "/" + url.PathEscape(id)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &DescriptorFetchError{ID: id, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("transfer", id).Msg("Metadata request failed")
		return nil, &DescriptorFetchError{ID: id, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == nethttp.StatusNotFound || resp.StatusCode == nethttp.StatusGone:
		return nil, &DescriptorFetchError{ID: id, StatusCode: resp.StatusCode, NotFound: true, Err: ErrTransferNotFound}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &DescriptorFetchError{
			ID:         id,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(body))),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, &DescriptorFetchError{ID: id, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	entries, err := decodeEntries(raw)
	if err != nil {
		return nil, &DescriptorFetchError{ID: id, StatusCode: resp.StatusCode, Err: err}
	}

	files := make([]models.FileDescriptor, 0, len(entries))
	for i, e := range entries {
		fd := models.FileDescriptor{Name: e.Name, URL: e.URL, Size: e.Size, MimeType: e.Type}
		if err := fd.Validate(); err != nil {
			c.logger.Warn().Int("index", i).Err(err).Msg("Skipping invalid entry in transfer metadata")
			continue
		}
		files = append(files, fd.Normalize())
	}

	c.logger.Debug().Str("transfer", id).Int("files", len(files)).Msg("Resolved transfer")
	return files, nil
}

// decodeEntries accepts a bare array or an object with a "files" array.
func decodeEntries(raw []byte) ([]transferEntry, error) {
	var entries []transferEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, nil
	}

	var wrapped struct {
		Files []transferEntry `json:"files"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return wrapped.Files, nil
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\?# \t\r\n")
}

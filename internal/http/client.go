// Package http builds the HTTP clients used for metadata lookups and
// file downloads, and provides retry helpers for storage operations.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"
	"strings"

	"golang.org/x/net/http2"

	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/logging"
)

// CreateOptimizedClient creates the HTTP client used for file bodies.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - Connection pool sized for the largest admission setting
//   - HTTP/2 with runtime toggle (DISABLE_HTTP2 env var)
//   - Transparent compression disabled, so Content-Length always matches
//     the bytes read and progress percentages stay exact
//
// If cfg is nil, proxy settings are read from the environment.
func CreateOptimizedClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	if cfg == nil {
		cfg = config.NewConfig()
		cfg.ProxyMode = "system"
	}

	baseClient, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport; leave it as configured
		return baseClient, nil
	}

	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	// Proxies often break HTTP/2 multiplexing mid-transfer.
	// FORCE_HTTP2=true keeps it on anyway.
	if os.Getenv("DISABLE_HTTP2") == "true" ||
		(proxyActive(cfg) && os.Getenv("FORCE_HTTP2") != "true") {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func proxyActive(cfg *config.Config) bool {
	switch strings.ToLower(cfg.ProxyMode) {
	case "no-proxy", "":
		return false
	case "system":
		for _, k := range []string{"HTTP_PROXY", "HTTPS_PROXY", "http_proxy", "https_proxy"} {
			if os.Getenv(k) != "" {
				return true
			}
		}
		return false
	default:
		return cfg.ProxyHost != ""
	}
}

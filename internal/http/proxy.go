package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
)

const (
	defaultProxyPort = 8080
	warmupTimeout    = 15 * time.Second
)

type proxyFunc func(*nethttp.Request) (*url.URL, error)

// ConfigureHTTPClient returns a client whose transport honors the proxy
// settings in cfg. The client has no overall timeout; callers bound each
// request with a context.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	logger = logging.OrNop(logger)

	proxy, err := resolveProxy(cfg, logger)
	if err != nil {
		return nil, err
	}
	tr := newTransport()
	tr.Proxy = proxy

	client := &nethttp.Client{Transport: tr}
	if proxy == nil {
		return client, nil
	}
	if strings.EqualFold(cfg.ProxyMode, "ntlm") && cfg.ProxyHost != "" {
		client.Transport = ntlmssp.Negotiator{RoundTripper: tr}
	}

	if cfg.ProxyWarmup && !cfg.NeedsProxyPassword() && cfg.APIBaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
		defer cancel()
		if err := warmupProxy(ctx, client, cfg.APIBaseURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}
	return client, nil
}

// resolveProxy maps the proxy mode to a transport Proxy func. nil means
// direct connections.
func resolveProxy(cfg *config.Config, logger *logging.Logger) (proxyFunc, error) {
	mode := strings.ToLower(cfg.ProxyMode)
	switch mode {
	case "", "no-proxy":
		return nil, nil
	case "system":
		return nethttp.ProxyFromEnvironment, nil
	case "basic", "ntlm":
	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	if cfg.ProxyHost == "" {
		logger.Warn().Str("mode", mode).Msg("Proxy host is missing, connecting directly")
		return nil, nil
	}
	if cfg.NeedsProxyPassword() {
		logger.Warn().Str("user", cfg.ProxyUser).Msg("Proxy password missing, proxy auth disabled until it is set")
	}
	return proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy, logger), nil
}

func newTransport() *nethttp.Transport {
	dialer := &net.Dialer{
		Timeout:   constants.HTTPDialTimeout,
		KeepAlive: constants.HTTPDialKeepAlive,
	}
	return &nethttp.Transport{
		DialContext:           dialer.DialContext,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
		ResponseHeaderTimeout: constants.HTTPResponseHeaderTimeout,
	}
}

func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = defaultProxyPort
	}
	u := &url.URL{Scheme: "http", Host: net.JoinHostPort(cfg.ProxyHost, strconv.Itoa(port))}
	// Some proxies reject an empty password in the URL.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		u.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}
	return u
}

// warmupProxy sends one HEAD through the proxy so an NTLM handshake is
// done before the first file is admitted.
func warmupProxy(ctx context.Context, client *nethttp.Client, target string) error {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, target, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("HEAD %s: status %d", target, resp.StatusCode)
	}
	return nil
}

// proxyFuncWithBypass routes through proxyURL unless the host matches the
// comma separated noProxy list of hosts, domains and CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) proxyFunc {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	match := (&httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}).ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		u, err := match(req.URL)
		if u == nil && err == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("Proxy bypass")
		}
		return u, err
	}
}

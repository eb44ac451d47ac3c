package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/logging"
)

func TestProxyBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		noProxy string
		target  string
		direct  bool
	}{
		{"", "https://files.dropshare.io/t/abc", false},
		{"*.example.com", "https://api.example.com/data", true},
		{"example.com", "https://example.com/data", true},
		{"example.com", "https://cdn.example.com/f.bin", true},
		{"example.com", "https://example.org/f.bin", false},
		{"10.0.0.0/8", "http://10.1.2.3:8080/api", true},
		{"10.0.0.0/8", "http://192.168.1.1/api", false},
		{"*.internal.corp,10.0.0.0/8", "https://files.internal.corp/x", true},
		{"*.example.com, 192.168.0.0/16, internal.corp", "http://192.168.4.4/x", true},
		{"*.example.com, 192.168.0.0/16, internal.corp", "https://blob.core.windows.net/x", false},
	}
	for _, tt := range tests {
		t.Run(tt.noProxy+" "+tt.target, func(t *testing.T) {
			fn := proxyFuncWithBypass(proxyURL, tt.noProxy, logging.NewNopLogger())
			req, _ := http.NewRequest(http.MethodGet, tt.target, nil)
			got, err := fn(req)
			if err != nil {
				t.Fatal(err)
			}
			if tt.direct && got != nil {
				t.Errorf("expected direct, got proxy %v", got)
			}
			if !tt.direct && (got == nil || got.Host != "proxy.corp:8080") {
				t.Errorf("expected proxy.corp:8080, got %v", got)
			}
		})
	}
}

func TestConfigureHTTPClientModes(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		host      string
		wantProxy bool
		wantErr   bool
	}{
		{"direct", "no-proxy", "", false, false},
		{"basic with host", "basic", "proxy.corp", true, false},
		{"basic without host falls back", "basic", "", false, false},
		{"ntlm with host", "ntlm", "proxy.corp", true, false},
		{"unsupported", "socks", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.ProxyMode = tt.mode
			cfg.ProxyHost = tt.host
			cfg.ProxyPort = 3128

			client, err := ConfigureHTTPClient(cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if client.Timeout != 0 {
				t.Errorf("overall timeout %v set", client.Timeout)
			}

			tr, ok := client.Transport.(*http.Transport)
			if !ok {
				if tt.mode != "ntlm" {
					t.Fatalf("unexpected transport %T", client.Transport)
				}
				return
			}
			var proxied *url.URL
			if tr.Proxy != nil {
				req, _ := http.NewRequest(http.MethodGet, "https://files.dropshare.io/t/abc", nil)
				proxied, _ = tr.Proxy(req)
			}
			if tt.wantProxy != (proxied != nil) {
				t.Errorf("proxied = %v, wantProxy %v", proxied, tt.wantProxy)
			}
			if proxied != nil && proxied.Host != "proxy.corp:3128" {
				t.Errorf("proxy host = %s", proxied.Host)
			}
		})
	}
}

func TestBuildProxyURLCredentials(t *testing.T) {
	cfg := &config.Config{ProxyHost: "proxy.corp", ProxyUser: "alice"}
	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("host = %s, want default port 8080", u.Host)
	}
	if u.User != nil {
		t.Error("user embedded without a password")
	}

	cfg.ProxyPassword = "pw"
	if u := buildProxyURL(cfg); u.User == nil || u.User.Username() != "alice" {
		t.Errorf("user = %v, want alice", u.User)
	}
}

func TestWarmupProxy(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("method = %s", r.Method)
			}
			w.WriteHeader(status)
		}))
		err := warmupProxy(t.Context(), srv.Client(), srv.URL)
		srv.Close()
		if (err != nil) != (status >= 500) {
			t.Errorf("status %d: err = %v", status, err)
		}
	}
}

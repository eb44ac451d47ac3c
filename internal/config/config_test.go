package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/dropshare/dropget/internal/constants"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	if cfg.Concurrency != 3 {
		t.Errorf("expected default Concurrency to be 3, got %d", cfg.Concurrency)
	}
	if cfg.AdmissionMode != AdmissionFixed {
		t.Errorf("expected default AdmissionMode to be fixed, got %s", cfg.AdmissionMode)
	}
	if cfg.ByteBudget != constants.DefaultByteBudget {
		t.Errorf("expected default ByteBudget %d, got %d", constants.DefaultByteBudget, cfg.ByteBudget)
	}
	if cfg.ProxyMode != "no-proxy" {
		t.Errorf("expected default ProxyMode no-proxy, got %s", cfg.ProxyMode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config")

	cfg := NewConfig()
	cfg.APIBaseURL = "https://files.example.com/transfer"
	cfg.Concurrency = 5
	cfg.AdmissionMode = AdmissionBudget
	cfg.ByteBudget = 64 << 20
	cfg.MaxBandwidth = 1 << 20
	cfg.OutputDir = "/tmp/downloads"
	cfg.ProxyMode = "basic"
	cfg.ProxyHost = "proxy.local"
	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "secret"
	cfg.ShareBucket = "shared-images"
	cfg.ShareTTL = 2 * time.Hour

	if err := Save(cfg, configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.APIBaseURL != cfg.APIBaseURL {
		t.Errorf("APIBaseURL mismatch: expected %s, got %s", cfg.APIBaseURL, loaded.APIBaseURL)
	}
	if loaded.Concurrency != 5 {
		t.Errorf("Concurrency mismatch: expected 5, got %d", loaded.Concurrency)
	}
	if loaded.AdmissionMode != AdmissionBudget {
		t.Errorf("AdmissionMode mismatch: expected budget, got %s", loaded.AdmissionMode)
	}
	if loaded.ByteBudget != cfg.ByteBudget {
		t.Errorf("ByteBudget mismatch: expected %d, got %d", cfg.ByteBudget, loaded.ByteBudget)
	}
	if loaded.MaxBandwidth != cfg.MaxBandwidth {
		t.Errorf("MaxBandwidth mismatch: expected %d, got %d", cfg.MaxBandwidth, loaded.MaxBandwidth)
	}
	if loaded.ProxyHost != "proxy.local" || loaded.ProxyPort != 3128 || loaded.ProxyUser != "alice" {
		t.Errorf("proxy settings mismatch: %+v", loaded)
	}
	if loaded.ProxyPassword != "" {
		t.Error("proxy password must not be persisted")
	}
	if loaded.ShareBucket != "shared-images" || loaded.ShareTTL != 2*time.Hour {
		t.Errorf("share settings mismatch: bucket=%s ttl=%s", loaded.ShareBucket, loaded.ShareTTL)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected file permissions 0600, got %o", perm)
		}
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.Concurrency != constants.DefaultConcurrency {
		t.Errorf("expected default concurrency, got %d", cfg.Concurrency)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("[transfer\nconcurrency"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed INI")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DROPGET_CONCURRENCY", "7")
	t.Setenv("DROPGET_ADMISSION", "budget")
	t.Setenv("DROPGET_API_URL", "https://env.example.com")
	t.Setenv("DROPGET_SHARE_TTL", "30m")

	cfg := NewConfig()
	cfg.OutputDir = "/from/file"
	cfg.ApplyEnv(NewEnv())

	if cfg.Concurrency != 7 {
		t.Errorf("expected concurrency 7 from env, got %d", cfg.Concurrency)
	}
	if cfg.AdmissionMode != AdmissionBudget {
		t.Errorf("expected admission budget from env, got %s", cfg.AdmissionMode)
	}
	if cfg.APIBaseURL != "https://env.example.com" {
		t.Errorf("expected api url from env, got %s", cfg.APIBaseURL)
	}
	if cfg.ShareTTL != 30*time.Minute {
		t.Errorf("expected share ttl 30m, got %s", cfg.ShareTTL)
	}
	if cfg.OutputDir != "/from/file" {
		t.Errorf("unset env var should not override, got %s", cfg.OutputDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"defaults", func(c *Config) {}, nil},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"too much concurrency", func(c *Config) { c.Concurrency = constants.MaxConcurrency + 1 }, ErrInvalidConcurrency},
		{"unknown admission", func(c *Config) { c.AdmissionMode = "greedy" }, ErrInvalidAdmissionMode},
		{"admission case folded", func(c *Config) { c.AdmissionMode = " Budget " }, nil},
		{"zero budget", func(c *Config) { c.ByteBudget = 0 }, ErrInvalidByteBudget},
		{"negative bandwidth", func(c *Config) { c.MaxBandwidth = -1 }, ErrInvalidBandwidth},
		{"bad proxy mode", func(c *Config) { c.ProxyMode = "socks" }, ErrInvalidProxyMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateNormalizes(t *testing.T) {
	cfg := NewConfig()
	cfg.APIBaseURL = " https://files.example.com/transfer/ "
	cfg.UnknownSizeWeight = 0
	cfg.ShareTTL = 0

	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.APIBaseURL != "https://files.example.com/transfer" {
		t.Errorf("trailing slash not trimmed: %q", cfg.APIBaseURL)
	}
	if cfg.UnknownSizeWeight != constants.DefaultUnknownSizeWeight {
		t.Errorf("UnknownSizeWeight = %d, want default", cfg.UnknownSizeWeight)
	}
	if cfg.ShareTTL != constants.DefaultShareTTL {
		t.Errorf("ShareTTL = %s, want default", cfg.ShareTTL)
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	tests := []struct {
		mode, user, pass string
		want             bool
	}{
		{"no-proxy", "u", "", false},
		{"system", "u", "", false},
		{"basic", "u", "", true},
		{"ntlm", "u", "p", false},
		{"basic", "", "", false},
	}
	for _, tt := range tests {
		cfg := &Config{ProxyMode: tt.mode, ProxyUser: tt.user, ProxyPassword: tt.pass}
		if got := cfg.NeedsProxyPassword(); got != tt.want {
			t.Errorf("NeedsProxyPassword(%s,%q,%q) = %v, want %v", tt.mode, tt.user, tt.pass, got, tt.want)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/Downloads"); got != filepath.Join(home, "Downloads") {
		t.Errorf("ExpandPath(~/Downloads) = %s", got)
	}
	if got := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %s", got)
	}
}

func TestResolveOutputDirFollowsLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on Windows")
	}
	base, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(base, "real")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(base, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	cfg := NewConfig()
	cfg.OutputDir = filepath.Join(link, "not", "yet")
	got, err := cfg.ResolveOutputDir()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(target, "not", "yet"); got != want {
		t.Errorf("ResolveOutputDir = %s, want %s", got, want)
	}
}

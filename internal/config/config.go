// Package config provides configuration management for dropget.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"

	"github.com/dropshare/dropget/internal/constants"
)

// Config holds every tunable of the download engine and its collaborators.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\dropget\config
//   - Unix: ~/.config/dropget/config
//
// INI format:
//
//	[service]
//	api_url = https://api.example.com/transfer
//
//	[transfer]
//	concurrency = 3
//	admission = fixed            ; fixed | budget
//	byte_budget = 20971520
//	unknown_size_weight = 1048576
//	max_bandwidth = 0            ; bytes/sec, 0 = unlimited
//	output_dir = ~/Downloads
//
//	[proxy]
//	mode = no-proxy              ; no-proxy | system | basic | ntlm
//	host =
//	port = 8080
//
//	[s3]
//	region = us-east-1
//	share_bucket = my-share-bucket
//
// Every key can be overridden with a DROPGET_<KEY> environment variable,
// e.g. DROPGET_CONCURRENCY=5.
type Config struct {
	// Metadata service base URL; transfers are looked up at {APIBaseURL}/{id}
	APIBaseURL    string
	APIRatePerSec float64
	APIBurst      float64

	// Admission
	Concurrency       int
	AdmissionMode     string // "fixed" or "budget"
	ByteBudget        int64
	UnknownSizeWeight int64

	// Streaming
	MaxBandwidth int64 // bytes/sec, 0 = unlimited

	// Where downloads are saved
	OutputDir string

	// Proxy settings
	ProxyMode     string // "no-proxy", "ntlm", "basic", "system"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// S3 access for s3:// descriptors and for sharing
	S3Region       string
	S3Endpoint     string // Custom endpoint for S3-compatible stores
	S3PathStyle    bool
	ShareBucket    string // Empty disables S3 sharing
	SharePrefix    string
	ShareTTL       time.Duration
	AWSAccessKeyID string
	AWSSecretKey   string
}

// Admission modes
const (
	AdmissionFixed  = "fixed"
	AdmissionBudget = "budget"
)

// Validation errors
var (
	ErrMissingAPIURL        = errors.New("api_url is required")
	ErrInvalidConcurrency   = fmt.Errorf("concurrency must be between %d and %d", constants.MinConcurrency, constants.MaxConcurrency)
	ErrInvalidAdmissionMode = errors.New("admission must be 'fixed' or 'budget'")
	ErrInvalidByteBudget    = errors.New("byte_budget must be positive")
	ErrInvalidBandwidth     = errors.New("max_bandwidth must not be negative")
	ErrInvalidProxyMode     = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
)

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		APIRatePerSec:     constants.DefaultAPIRatePerSec,
		APIBurst:          constants.DefaultAPIBurst,
		Concurrency:       constants.DefaultConcurrency,
		AdmissionMode:     AdmissionFixed,
		ByteBudget:        constants.DefaultByteBudget,
		UnknownSizeWeight: constants.DefaultUnknownSizeWeight,
		OutputDir:         ".",
		ProxyMode:         "no-proxy",
		ProxyPort:         8080,
		SharePrefix:       "shared",
		ShareTTL:          constants.DefaultShareTTL,
	}
}

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	var configDir string

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", errors.New("USERPROFILE environment variable not set")
		}
		configDir = filepath.Join(userProfile, ".config", "dropget")
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "dropget")
	}

	return filepath.Join(configDir, "config"), nil
}

// Load reads configuration from an INI file.
// If the file doesn't exist, returns a config with default values and no error.
// If the file exists but is invalid, returns an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	service := iniFile.Section("service")
	cfg.APIBaseURL = service.Key("api_url").MustString(cfg.APIBaseURL)
	cfg.APIRatePerSec = service.Key("rate_per_sec").MustFloat64(cfg.APIRatePerSec)
	cfg.APIBurst = service.Key("burst").MustFloat64(cfg.APIBurst)

	transfer := iniFile.Section("transfer")
	cfg.Concurrency = transfer.Key("concurrency").MustInt(cfg.Concurrency)
	cfg.AdmissionMode = transfer.Key("admission").MustString(cfg.AdmissionMode)
	cfg.ByteBudget = transfer.Key("byte_budget").MustInt64(cfg.ByteBudget)
	cfg.UnknownSizeWeight = transfer.Key("unknown_size_weight").MustInt64(cfg.UnknownSizeWeight)
	cfg.MaxBandwidth = transfer.Key("max_bandwidth").MustInt64(cfg.MaxBandwidth)
	cfg.OutputDir = transfer.Key("output_dir").MustString(cfg.OutputDir)

	proxy := iniFile.Section("proxy")
	cfg.ProxyMode = proxy.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxy.Key("host").String()
	cfg.ProxyPort = proxy.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxy.Key("user").String()
	cfg.ProxyPassword = proxy.Key("password").String()
	cfg.NoProxy = proxy.Key("no_proxy").String()
	cfg.ProxyWarmup = proxy.Key("warmup").MustBool(false)

	s3 := iniFile.Section("s3")
	cfg.S3Region = s3.Key("region").String()
	cfg.S3Endpoint = s3.Key("endpoint").String()
	cfg.S3PathStyle = s3.Key("path_style").MustBool(false)
	cfg.ShareBucket = s3.Key("share_bucket").String()
	cfg.SharePrefix = s3.Key("share_prefix").MustString(cfg.SharePrefix)
	cfg.ShareTTL = s3.Key("share_ttl").MustDuration(cfg.ShareTTL)
	cfg.AWSAccessKeyID = s3.Key("access_key_id").String()
	cfg.AWSSecretKey = s3.Key("secret_access_key").String()

	return cfg, nil
}

// Save writes the configuration to an INI file.
// Creates parent directories if they don't exist. Secrets are not written;
// they belong in the environment.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"service", [][2]string{
			{"api_url", cfg.APIBaseURL},
			{"rate_per_sec", fmt.Sprintf("%g", cfg.APIRatePerSec)},
			{"burst", fmt.Sprintf("%g", cfg.APIBurst)},
		}},
		{"transfer", [][2]string{
			{"concurrency", fmt.Sprintf("%d", cfg.Concurrency)},
			{"admission", cfg.AdmissionMode},
			{"byte_budget", fmt.Sprintf("%d", cfg.ByteBudget)},
			{"unknown_size_weight", fmt.Sprintf("%d", cfg.UnknownSizeWeight)},
			{"max_bandwidth", fmt.Sprintf("%d", cfg.MaxBandwidth)},
			{"output_dir", cfg.OutputDir},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"s3", [][2]string{
			{"region", cfg.S3Region},
			{"endpoint", cfg.S3Endpoint},
			{"path_style", fmt.Sprintf("%t", cfg.S3PathStyle)},
			{"share_bucket", cfg.ShareBucket},
			{"share_prefix", cfg.SharePrefix},
			{"share_ttl", cfg.ShareTTL.String()},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename keeps a crash from leaving half a config behind
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// envKeys lists every key that may be overridden from the environment.
var envKeys = []string{
	"api_url", "rate_per_sec", "burst",
	"concurrency", "admission", "byte_budget", "unknown_size_weight", "max_bandwidth", "output_dir",
	"proxy_mode", "proxy_host", "proxy_port", "proxy_user", "proxy_password", "no_proxy",
	"s3_region", "s3_endpoint", "s3_path_style", "share_bucket", "share_prefix", "share_ttl",
	"aws_access_key_id", "aws_secret_access_key",
}

// NewEnv returns a viper instance bound to the DROPGET_* environment.
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("DROPGET")
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// ApplyEnv overrides fields with values present in v.
func (c *Config) ApplyEnv(v *viper.Viper) {
	if v.IsSet("api_url") {
		c.APIBaseURL = v.GetString("api_url")
	}
	if v.IsSet("rate_per_sec") {
		c.APIRatePerSec = v.GetFloat64("rate_per_sec")
	}
	if v.IsSet("burst") {
		c.APIBurst = v.GetFloat64("burst")
	}
	if v.IsSet("concurrency") {
		c.Concurrency = v.GetInt("concurrency")
	}
	if v.IsSet("admission") {
		c.AdmissionMode = v.GetString("admission")
	}
	if v.IsSet("byte_budget") {
		c.ByteBudget = v.GetInt64("byte_budget")
	}
	if v.IsSet("unknown_size_weight") {
		c.UnknownSizeWeight = v.GetInt64("unknown_size_weight")
	}
	if v.IsSet("max_bandwidth") {
		c.MaxBandwidth = v.GetInt64("max_bandwidth")
	}
	if v.IsSet("output_dir") {
		c.OutputDir = v.GetString("output_dir")
	}
	if v.IsSet("proxy_mode") {
		c.ProxyMode = v.GetString("proxy_mode")
	}
	if v.IsSet("proxy_host") {
		c.ProxyHost = v.GetString("proxy_host")
	}
	if v.IsSet("proxy_port") {
		c.ProxyPort = v.GetInt("proxy_port")
	}
	if v.IsSet("proxy_user") {
		c.ProxyUser = v.GetString("proxy_user")
	}
	if v.IsSet("proxy_password") {
		c.ProxyPassword = v.GetString("proxy_password")
	}
	if v.IsSet("no_proxy") {
		c.NoProxy = v.GetString("no_proxy")
	}
	if v.IsSet("s3_region") {
		c.S3Region = v.GetString("s3_region")
	}
	if v.IsSet("s3_endpoint") {
		c.S3Endpoint = v.GetString("s3_endpoint")
	}
	if v.IsSet("s3_path_style") {
		c.S3PathStyle = v.GetBool("s3_path_style")
	}
	if v.IsSet("share_bucket") {
		c.ShareBucket = v.GetString("share_bucket")
	}
	if v.IsSet("share_prefix") {
		c.SharePrefix = v.GetString("share_prefix")
	}
	if v.IsSet("share_ttl") {
		c.ShareTTL = v.GetDuration("share_ttl")
	}
	if v.IsSet("aws_access_key_id") {
		c.AWSAccessKeyID = v.GetString("aws_access_key_id")
	}
	if v.IsSet("aws_secret_access_key") {
		c.AWSSecretKey = v.GetString("aws_secret_access_key")
	}
}

// Validate normalizes the configuration and reports the first problem found.
// The API URL is checked separately by the metadata client because commands
// such as inspect never talk to the service.
func (c *Config) Validate() error {
	c.AdmissionMode = strings.ToLower(strings.TrimSpace(c.AdmissionMode))
	c.ProxyMode = strings.ToLower(strings.TrimSpace(c.ProxyMode))
	c.APIBaseURL = strings.TrimSuffix(strings.TrimSpace(c.APIBaseURL), "/")

	if c.Concurrency < constants.MinConcurrency || c.Concurrency > constants.MaxConcurrency {
		return ErrInvalidConcurrency
	}
	switch c.AdmissionMode {
	case AdmissionFixed, AdmissionBudget:
	default:
		return ErrInvalidAdmissionMode
	}
	if c.ByteBudget <= 0 {
		return ErrInvalidByteBudget
	}
	if c.UnknownSizeWeight <= 0 {
		c.UnknownSizeWeight = constants.DefaultUnknownSizeWeight
	}
	if c.MaxBandwidth < 0 {
		return ErrInvalidBandwidth
	}
	switch c.ProxyMode {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return ErrInvalidProxyMode
	}
	if c.ShareTTL <= 0 {
		c.ShareTTL = constants.DefaultShareTTL
	}
	return nil
}

// NeedsProxyPassword reports whether the proxy needs credentials that were
// not provided.
func (c *Config) NeedsProxyPassword() bool {
	mode := strings.ToLower(c.ProxyMode)
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return c.ProxyUser != "" && c.ProxyPassword == ""
}

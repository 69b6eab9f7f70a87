package config

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr              = ":5000"
	DefaultUpstreamURL       = "https://modular-trade-ai--aaronds650.replit.app"
	DefaultUpstreamTimeout   = 15 * time.Second
	DefaultBroadcastInterval = 3 * time.Second
	DefaultCertCacheDir      = "cert-cache"
)

// Environment variables overriding the file.
const (
	EnvAddr        = "ARENA_ADDR"
	EnvUpstreamURL = "ARENA_UPSTREAM_URL"
	EnvJournalDir  = "ARENA_JOURNAL_DIR"
	EnvLogLevel    = "ARENA_LOG_LEVEL"
)

// Config is the validated relay configuration.
type Config struct {
	Addr              string
	UpstreamURL       string
	UpstreamTimeout   time.Duration
	UpstreamRateLimit float64
	UpstreamBurst     int
	BroadcastInterval time.Duration
	// JournalDir empty disables the snapshot journal.
	JournalDir string
	LogLevel   zapcore.Level
	TLS        TLSConfig
}

type TLSConfig struct {
	Domains  []string
	CacheDir string
}

// ConfigTmp mirrors the YAML file before validation.
type ConfigTmp struct {
	Addr              string        `yaml:"addr,omitempty"`
	UpstreamURL       string        `yaml:"upstream_url,omitempty"`
	UpstreamTimeout   time.Duration `yaml:"upstream_timeout,omitempty"`
	UpstreamRateLimit float64       `yaml:"upstream_rate_limit,omitempty"`
	UpstreamBurst     int           `yaml:"upstream_burst,omitempty"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval,omitempty"`
	JournalDir        string        `yaml:"journal_dir,omitempty"`
	LogLevel          string        `yaml:"log_level,omitempty"`
	TLS               TLSTmp        `yaml:"tls,omitempty"`
}

type TLSTmp struct {
	Domains  []string `yaml:"domains,omitempty"`
	CacheDir string   `yaml:"cache_dir,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:              DefaultAddr,
		UpstreamURL:       DefaultUpstreamURL,
		UpstreamTimeout:   DefaultUpstreamTimeout,
		UpstreamBurst:     1,
		BroadcastInterval: DefaultBroadcastInterval,
		LogLevel:          zapcore.InfoLevel,
		TLS:               TLSConfig{CacheDir: DefaultCertCacheDir},
	}
}

// LoadEnv reads .env files into the process environment. Missing files are ignored.
func LoadEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// Load reads the YAML file at path (optional), applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	var tmp ConfigTmp
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %s", path)
		}
	}

	applyEnv(&tmp)

	return tmp.Build()
}

func applyEnv(tmp *ConfigTmp) {
	if v := os.Getenv(EnvAddr); v != "" {
		tmp.Addr = v
	}
	if v := os.Getenv(EnvUpstreamURL); v != "" {
		tmp.UpstreamURL = v
	}
	if v := os.Getenv(EnvJournalDir); v != "" {
		tmp.JournalDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		tmp.LogLevel = v
	}
}

// Build fills defaults and validates.
func (c ConfigTmp) Build() (Config, error) {
	cfg := Default()

	if c.Addr != "" {
		cfg.Addr = c.Addr
	}
	if c.UpstreamURL != "" {
		cfg.UpstreamURL = strings.TrimRight(c.UpstreamURL, "/")
	}
	if c.UpstreamTimeout != 0 {
		cfg.UpstreamTimeout = c.UpstreamTimeout
	}
	if c.UpstreamBurst != 0 {
		cfg.UpstreamBurst = c.UpstreamBurst
	}
	if c.BroadcastInterval != 0 {
		cfg.BroadcastInterval = c.BroadcastInterval
	}
	if c.TLS.CacheDir != "" {
		cfg.TLS.CacheDir = c.TLS.CacheDir
	}
	cfg.UpstreamRateLimit = c.UpstreamRateLimit
	cfg.JournalDir = c.JournalDir
	cfg.TLS.Domains = c.TLS.Domains

	if c.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return Config{}, errors.Errorf("incorrect 'log_level' param in config: %s", c.LogLevel)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	u, err := url.Parse(c.UpstreamURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("incorrect 'upstream_url' param in config: %q", c.UpstreamURL)
	}
	if c.UpstreamTimeout < 0 {
		return errors.New("'upstream_timeout' must not be negative")
	}
	if c.BroadcastInterval < 0 {
		return errors.New("'broadcast_interval' must not be negative")
	}
	if c.UpstreamRateLimit < 0 {
		return errors.New("'upstream_rate_limit' must not be negative")
	}
	if c.UpstreamBurst < 1 {
		return errors.New("'upstream_burst' must be at least 1")
	}
	return nil
}

// Tmp converts back to the file form, used by the setup wizard.
func (c Config) Tmp() ConfigTmp {
	return ConfigTmp{
		Addr:              c.Addr,
		UpstreamURL:       c.UpstreamURL,
		UpstreamTimeout:   c.UpstreamTimeout,
		UpstreamRateLimit: c.UpstreamRateLimit,
		UpstreamBurst:     c.UpstreamBurst,
		BroadcastInterval: c.BroadcastInterval,
		JournalDir:        c.JournalDir,
		LogLevel:          c.LogLevel.String(),
		TLS:               TLSTmp{Domains: c.TLS.Domains, CacheDir: c.TLS.CacheDir},
	}
}

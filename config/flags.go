package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Unset flags leave the config untouched.
type Flags struct {
	Path              string
	Addr              string
	UpstreamURL       string
	JournalDir        string
	LogLevel          string
	BroadcastInterval time.Duration
	Domains           []string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Path, "config", "", "path to yaml config")
	fs.StringVar(&f.Addr, "addr", "", "listen address, example: :5000")
	fs.StringVar(&f.UpstreamURL, "upstream", "", "trading engine base url")
	fs.StringVar(&f.JournalDir, "journal-dir", "", "snapshot journal directory, empty disables it")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.DurationVar(&f.BroadcastInterval, "broadcast-interval", 0, "websocket broadcast interval")
	fs.StringSliceVar(&f.Domains, "domain", nil, "serve TLS via ACME for these domains")
}

// Load reads the file named by --config, then environment, then flags.
func (f *Flags) Load() (Config, error) {
	var tmp ConfigTmp
	if f.Path != "" {
		cfg, err := Load(f.Path)
		if err != nil {
			return Config{}, err
		}
		tmp = cfg.Tmp()
	} else {
		applyEnv(&tmp)
	}

	if f.Addr != "" {
		tmp.Addr = f.Addr
	}
	if f.UpstreamURL != "" {
		tmp.UpstreamURL = f.UpstreamURL
	}
	if f.JournalDir != "" {
		tmp.JournalDir = f.JournalDir
	}
	if f.LogLevel != "" {
		tmp.LogLevel = f.LogLevel
	}
	if f.BroadcastInterval != 0 {
		tmp.BroadcastInterval = f.BroadcastInterval
	}
	if len(f.Domains) > 0 {
		tmp.TLS.Domains = f.Domains
	}

	return tmp.Build()
}

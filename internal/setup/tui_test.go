package setup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/arena/config"
)

func TestWriteProducesLoadableConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	a := defaultAnswers()
	a.UpstreamURL = "http://engine.local:9000"
	a.RateLimit = "2.5"
	a.BroadcastInterval = "2s"
	a.JournalDir = "./wal"
	a.LogLevel = "WARN"
	a.Domains = " a.example.com, ,b.example.com"
	require.NoError(t, Write(path, a))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://engine.local:9000", cfg.UpstreamURL)
	assert.Equal(t, 2.5, cfg.UpstreamRateLimit)
	assert.Equal(t, 2*time.Second, cfg.BroadcastInterval)
	assert.Equal(t, "./wal", cfg.JournalDir)
	assert.Equal(t, "warn", cfg.LogLevel.String())
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.TLS.Domains)
}

func TestWriteRejectsInvalidAnswers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Answers)
	}{
		{name: "timeout", mutate: func(a *Answers) { a.Timeout = "soon" }},
		{name: "interval", mutate: func(a *Answers) { a.BroadcastInterval = "" }},
		{name: "rate", mutate: func(a *Answers) { a.RateLimit = "fast" }},
		{name: "url", mutate: func(a *Answers) { a.UpstreamURL = "engine" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFile)
			a := defaultAnswers()
			tt.mutate(&a)

			assert.Error(t, Write(path, a))
			_, err := os.Stat(path)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("https://x.example.com"))
	assert.Error(t, validateURL("x.example.com"))
	assert.NoError(t, validateDuration("3s"))
	assert.Error(t, validateDuration("0s"))
	assert.NoError(t, validateRate("0"))
	assert.Error(t, validateRate("-1"))
}

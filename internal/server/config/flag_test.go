package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "all flags", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-g", "127.0.0.1:9091", "-d", "db", "-m=false", "-s", "secret",
			"-t", "5", "-r", "60", "-k", "postgres", "-e", "redis:6379",
			"-b", "https://api.example", "-f", "https://app.example", "-l", "debug",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				EndpointAddrGRPC:             "127.0.0.1:9091",
				DatabaseDSN:                  "db",
				MigrateOnStart:               false,
				SecretKey:                    "secret",
				AccessTokenValidityDuration:  5 * time.Minute,
				RefreshTokenValidityDuration: 60 * time.Minute,
				RevocationBackend:            RevocationPostgres,
				RedisAddr:                    "redis:6379",
				BaseURL:                      "https://api.example",
				FrontendURL:                  "https://app.example",
				LogLevel:                     "debug",
			}},
		{name: "non-numeric duration", args: []string{"cmd", "-t", "soon"}, expectPanic: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{MigrateOnStart: true}

			if !tt.expectPanic {
				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}

func TestParseFlags_NoFlagsKeepsValues(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"cmd", "-unrelated", "x"}

	cfg := &Config{}
	cfg.LoadDefaults()
	want := *cfg

	parseFlags(cfg)
	assert.Empty(t, cmp.Diff(&want, cfg))
}

package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost:8080", cfg.ListenAddr())
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
	assert.Equal(t, 500*time.Millisecond, cfg.HistorianFlushDelay())
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.Origins())
}

func TestLoadProduction(t *testing.T) {
	t.Setenv("MOVIEMATCH_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("ALLOWED_ORIGINS", "https://moviematch.app, https://www.moviematch.app,")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr())
	assert.Equal(t, []string{"https://moviematch.app", "https://www.moviematch.app"}, cfg.Origins())
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoadRejectsBadSettings(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":      {"STORE_BACKEND": "sqlite"},
		"postgres without url": {"STORE_BACKEND": "postgres"},
		"bad port":             {"PORT": "not-a-port"},
		"port out of range":    {"PORT": "70000"},
		"bad log level":        {"LOG_LEVEL": "loud"},
		"zero batch":           {"HISTORIAN_BATCH_SIZE": "0"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadPostgres(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/moviematch")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
}

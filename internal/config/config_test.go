package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJSON = `{
	"server_address": ":4100",
	"file_storage_path": "json_storage",
	"database_dsn": "json-dsn",
	"max_checks": 7,
	"token_ttl": "2h",
	"reaper_interval": "5s"
}`

func writeTempJSON(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestApplyDefaultsKeepsSetFields(t *testing.T) {
	values := Config{RunAddr: ":9999"}

	applyDefaults(&values, defaultConfig)

	assert.Equal(t, ":9999", values.RunAddr)
	assert.Equal(t, time.Hour, values.TokenTTL)
	assert.Equal(t, 5, values.MaxChecks)
	assert.Equal(t, "tok_mastercard", values.StripeSource)
}

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, ":3001", cfg.HTTPSAddr)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "@every 1m", cfg.CheckSchedule)
}

func TestConfigPriorityJSONOnly(t *testing.T) {
	t.Setenv("CONFIG", writeTempJSON(t, testJSON))

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4100", cfg.RunAddr)
	assert.Equal(t, "json_storage", cfg.DataDir)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
	assert.Equal(t, 7, cfg.MaxChecks)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.ReaperInterval)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout, "durations absent from the file keep their defaults")
}

func TestConfigPriorityJSONPlusEnv(t *testing.T) {
	t.Setenv("CONFIG", writeTempJSON(t, testJSON))
	t.Setenv("SERVER_ADDRESS", ":4000")
	t.Setenv("TOKEN_TTL", "30m")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
}

func TestConfigPriorityAllSources(t *testing.T) {
	t.Setenv("CONFIG", writeTempJSON(t, testJSON))
	t.Setenv("SERVER_ADDRESS", ":4000")

	cfg, err := New(WithArgs([]string{"-a", ":6000", "-max-checks", "3"}))
	require.NoError(t, err)

	assert.Equal(t, ":6000", cfg.RunAddr)
	assert.Equal(t, 3, cfg.MaxChecks)
	assert.Equal(t, "json-dsn", cfg.DatabaseDSN)
}

func TestConfigFileFromFlag(t *testing.T) {
	path := writeTempJSON(t, `{"server_address": ":5100"}`)

	cfg, err := New(WithArgs([]string{"-c", path}))
	require.NoError(t, err)

	assert.Equal(t, ":5100", cfg.RunAddr)
}

func TestConfigValidation(t *testing.T) {
	testCases := []struct {
		name string
		env  map[string]string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad cron", map[string]string{"CHECK_SCHEDULE": "every minute"}},
		{"bad subnet", map[string]string{"TRUSTED_SUBNET": "10.0.0.0"}},
		{"https without cert", map[string]string{"ENABLE_HTTPS": "true"}},
		{"admin rpc without key", map[string]string{"ADMIN_RPC_ADDRESS": ":7000"}},
		{"zero quota", map[string]string{"MAX_CHECKS": "-1"}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			for key, value := range testCase.env {
				t.Setenv(key, value)
			}

			_, err := New(WithDisableFlagsParsing(true))
			assert.Error(t, err)
		})
	}
}

func TestDurationUnmarshalJSON(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, Duration(90*time.Second), d)

	require.NoError(t, d.UnmarshalJSON([]byte(`1000`)))
	assert.Equal(t, Duration(time.Microsecond), d)

	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}

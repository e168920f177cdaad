package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key so values set while loading files are undone
// when the test ends.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t, "APP_CONFIG_FILE", "APP_LISTEN_ADDR", "APP_GROUP_DELIMITER", "APP_ALERT_WINDOW_SIZE_DAYS",
		"APP_ALERT_EXCLUDE_DIM_SIGNATURES", "APP_DB_ENABLED", "APP_ALERT_REPEAT_CYCLE_MIN")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ";", cfg.GroupDelimiter)
	assert.Equal(t, 0.25, cfg.AlertWindowSizeDays)
	assert.Equal(t, 5*time.Minute, cfg.AlertRepeatCycle)
	assert.Equal(t, []string{"BOA_HEALTH"}, cfg.AlertExcludeSignatures)
	assert.False(t, cfg.DBEnabled)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t, "APP_CONFIG_FILE")
	t.Setenv("APP_LISTEN_ADDR", ":9999")
	t.Setenv("APP_DB_ENABLED", "true")
	t.Setenv("APP_DEFAULT_LIMIT", "not-a-number")
	t.Setenv("APP_ALERT_EXCLUDE_DIM_SIGNATURES", " A , ,B ")

	cfg := FromEnv()

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.True(t, cfg.DBEnabled)
	assert.Equal(t, 100, cfg.DefaultLimit)
	assert.Equal(t, []string{"A", "B"}, cfg.AlertExcludeSignatures)
}

func TestFromEnv_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	content := strings.Join([]string{
		"# comment",
		"APP_LISTEN_ADDR=':7070'",
		"APP_GROUP_DELIMITER=\"/\"",
		"not a pair",
		"APP_DB_NAME=fromfile",
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	clearEnv(t, "APP_LISTEN_ADDR", "APP_GROUP_DELIMITER")
	t.Setenv("APP_DB_NAME", "fromenv")
	t.Setenv("APP_CONFIG_FILE", path)

	cfg := FromEnv()

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "/", cfg.GroupDelimiter)
	assert.Equal(t, "fromenv", cfg.DBName, "file values never override the environment")
}

func TestFromEnv_TOMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
APP_LISTEN_ADDR = ":9090"
APP_ALERT_WINDOW_SIZE_DAYS = 0.5
APP_DB_PORT = 3307
APP_ALERT_EXCLUDE_DIM_SIGNATURES = ["BOA_HEALTH", "TEST"]

[ignored]
key = "value"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	clearEnv(t, "APP_LISTEN_ADDR", "APP_ALERT_WINDOW_SIZE_DAYS", "APP_DB_PORT", "APP_ALERT_EXCLUDE_DIM_SIGNATURES")
	t.Setenv("APP_CONFIG_FILE", path)

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 0.5, cfg.AlertWindowSizeDays)
	assert.Equal(t, 3307, cfg.DBPort)
	assert.Equal(t, []string{"BOA_HEALTH", "TEST"}, cfg.AlertExcludeSignatures)
}

func TestFromEnv_DefaultLimitRange(t *testing.T) {
	clearEnv(t, "APP_CONFIG_FILE")

	tests := []struct {
		raw  string
		want int
	}{
		{"250", 250},
		{"1000", 1000},
		{"0", 100},
		{"-1", 100},
		{"1001", 100},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("APP_DEFAULT_LIMIT", tt.raw)
			assert.Equal(t, tt.want, FromEnv().DefaultLimit)
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := Config{
		DBUser:         "u",
		DBPassword:     "p",
		DBHost:         "db",
		DBPort:         3306,
		DBName:         "eboadb",
		DBConnTimeout:  5 * time.Second,
		DBQueryTimeout: 10 * time.Second,
	}

	dsn := cfg.MySQLDSN()

	assert.True(t, strings.HasPrefix(dsn, "u:p@tcp(db:3306)/eboadb?"))
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "timeout=5s")
}

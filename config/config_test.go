package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "")
	t.Setenv("TOKEN_TTL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.EmailTokenTTL)
	assert.True(t, cfg.RequireCoordinates)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:5000"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("REQUIRE_COORDINATES", "false")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("CLIENT_URL", "https://app.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.False(t, cfg.RequireCoordinates)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "https://app.example", cfg.ClientURL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TOKEN_TTL", "a day")

	_, err := Load()
	assert.ErrorContains(t, err, "TOKEN_TTL")
}

func TestOpenDBRejectsUnknownDriver(t *testing.T) {
	_, err := OpenDB(&Config{DBDriver: "oracle"})
	assert.ErrorContains(t, err, "unsupported DB_DRIVER")
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"reviews.db", "reviews.db?_pragma=busy_timeout(5000)&_txlock=immediate"},
		{"file:reviews.db?cache=shared", "file:reviews.db?cache=shared&_pragma=busy_timeout(5000)&_txlock=immediate"},
		{"reviews.db?_pragma=busy_timeout(100)", "reviews.db?_pragma=busy_timeout(100)&_txlock=immediate"},
		{"reviews.db?_txlock=exclusive&_pragma=busy_timeout(1)", "reviews.db?_txlock=exclusive&_pragma=busy_timeout(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.src))
		})
	}
}

func TestOpenDBSQLiteFile(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite", DBSource: t.TempDir() + "/reviews.db"}
	db, err := OpenDB(cfg)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	require.NoError(t, Migrate(db))

	var timeout int
	require.NoError(t, db.Raw("PRAGMA busy_timeout").Scan(&timeout).Error)
	assert.Equal(t, 5000, timeout)
}

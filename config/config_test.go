package config

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLoggerReplacesApplicationLogger(t *testing.T) {
	previous := Logger()
	t.Cleanup(func() { SetLogger(previous) })

	var buf bytes.Buffer
	SetLogger(newLogger(&buf, true))
	Logger().WithField("component", "test").Info("hello")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	SetLogger(nil)
	assert.NotNil(t, Logger())
	assert.Equal(t, logrus.InfoLevel, Logger().GetLevel())
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", " Postgres ")
	t.Setenv("DEFAULT_CURRENCY", "usd")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Same(t, cfg, Current())
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "USD", cfg.DefaultCurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
	assert.NoError(t, cfg.RequireJWTSecret())

	t.Setenv("JWT_SECRET", "   ")
	cfg, err = Load()
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.RequireJWTSecret(), ErrMissingJWTSecret)
}

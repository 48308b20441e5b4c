package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c AppConfig
	applyDefaults(&c)

	require.Equal(t, "8081", c.AppPort)
	require.Equal(t, "uploads", c.UploadDir)
	require.Equal(t, 24, c.RetentionHours)
	require.Equal(t, 60, c.SweepIntervalMinutes)
	require.Equal(t, 5120, c.MaxUploadMB)
	require.Equal(t, []string{"*"}, c.AllowedOrigins)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := AppConfig{AppPort: "9000", RetentionHours: 48}
	applyDefaults(&c)

	require.Equal(t, "9000", c.AppPort)
	require.Equal(t, 48, c.RetentionHours)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8000")
	t.Setenv("RETENTION_HOURS", "12")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.local, http://b.local")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	require.Equal(t, "8000", c.AppPort)
	require.Equal(t, 12, c.RetentionHours)
	require.Equal(t, []string{"http://a.local", "http://b.local"}, c.AllowedOrigins)
}

func TestAppPortEnvPrecedence(t *testing.T) {
	// APP_PORT is the specific override and wins over the generic PORT.
	t.Setenv("PORT", "8000")
	t.Setenv("APP_PORT", "8082")

	var c AppConfig
	applyDefaults(&c)
	applyEnvOverrides(&c)

	require.Equal(t, "8082", c.AppPort)
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 2, cfg.Analytics.DefaulterThreshold)
	assert.Equal(t, 8, cfg.Analytics.ScoringConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, NotifyChannelLog, cfg.Notify.Channel)
	assert.Equal(t, DefaultNotifyTemplate, cfg.Notify.Template)
	assert.Equal(t, 587, cfg.SMTP.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULTER_THRESHOLD", "3")
	t.Setenv("SCORING_CONCURRENCY", "0")
	t.Setenv("ANALYTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("NOTIFY_CHANNEL", "SMTP")
	t.Setenv("SMTP_HOST", "mail.example")
	t.Setenv("SMTP_FROM", "school@example.org")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Analytics.DefaulterThreshold)
	assert.Equal(t, 8, cfg.Analytics.ScoringConcurrency)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, NotifyChannelSMTP, cfg.Notify.Channel)
	assert.Equal(t, "mail.example", cfg.SMTP.Host)
}

func TestLoadRejectsIncompleteSMTP(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL", "smtp")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownChannel(t *testing.T) {
	t.Setenv("NOTIFY_CHANNEL", "pigeon")

	_, err := Load()
	assert.Error(t, err)
}

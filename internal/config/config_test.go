package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "quick", cfg.Check.Depth)
	assert.Equal(t, 70, cfg.Check.Threshold)
	assert.Equal(t, 60*time.Second, cfg.Check.ParseRunTimeout())
	assert.Equal(t, 8*time.Second, cfg.Check.ParseSourceTimeout())
	assert.True(t, cfg.Sources.GitHub.Enabled)
	assert.True(t, cfg.Sources.ProductHunt.Enabled)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Cache.Persistent)
	assert.Equal(t, time.Hour, cfg.Cache.ParseTTL())
	assert.Equal(t, 6*time.Hour, cfg.Cache.ParsePurgeInterval())
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
check:
  depth: deep
  threshold: 55
  source_timeout: 3s
sources:
  npm:
    enabled: false
  producthunt:
    exclude_keywords: [crypto, nft]
cache:
  ttl: 30m
  persistent: true
database:
  path: /tmp/rc.db
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "deep", cfg.Check.Depth)
	assert.Equal(t, 55, cfg.Check.Threshold)
	assert.Equal(t, 3*time.Second, cfg.Check.ParseSourceTimeout())
	assert.Equal(t, 60*time.Second, cfg.Check.ParseRunTimeout(), "unset fields keep defaults")
	assert.False(t, cfg.Sources.NPM.Enabled)
	assert.True(t, cfg.Sources.GitHub.Enabled)
	assert.Equal(t, []string{"crypto", "nft"}, cfg.Sources.ProductHunt.ExcludeKeywords)
	assert.Equal(t, 30*time.Minute, cfg.Cache.ParseTTL())
	assert.True(t, cfg.Cache.Persistent)
	assert.Equal(t, "/tmp/rc.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("check: [unclosed"), 0o644))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestDurationFallbacks(t *testing.T) {
	c := CheckConfig{RunTimeout: "soon", SourceTimeout: "-1s"}
	assert.Equal(t, 60*time.Second, c.ParseRunTimeout())
	assert.Equal(t, 8*time.Second, c.ParseSourceTimeout())

	cc := CacheConfig{TTL: "", PurgeInterval: "0s"}
	assert.Equal(t, time.Hour, cc.ParseTTL())
	assert.Equal(t, 6*time.Hour, cc.ParsePurgeInterval())
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GITHUB_TOKEN and webhooks", func(t *testing.T) {
		t.Setenv("GITHUB_TOKEN", "gh-token")
		t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/x")
		t.Setenv("REALITYCHECK_WEBHOOK_URL", "https://hooks.example.test")
		t.Setenv("REALITYCHECK_WEBHOOK_SECRET", "s3cret")

		cfg, err := Load("")
		require.NoError(t, err)

		assert.Equal(t, "gh-token", cfg.Sources.GitHub.Token)
		assert.True(t, cfg.Alerts.Slack.Enabled)
		assert.Equal(t, "https://hooks.slack.test/x", cfg.Alerts.Slack.WebhookURL)
		assert.True(t, cfg.Alerts.Webhook.Enabled)
		assert.Equal(t, "s3cret", cfg.Alerts.Webhook.Secret)
		assert.False(t, cfg.Alerts.Discord.Enabled)
	})

	t.Run("database path enables persistence", func(t *testing.T) {
		t.Setenv("REALITYCHECK_DB_PATH", "/data/cache.db")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "/data/cache.db", cfg.Database.Path)
		assert.True(t, cfg.Cache.Persistent)
	})

	t.Run("depth and threshold", func(t *testing.T) {
		t.Setenv("REALITYCHECK_DEPTH", " DEEP ")
		t.Setenv("REALITYCHECK_THRESHOLD", "not-a-number")

		cfg, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, "deep", cfg.Check.Depth)
		assert.Equal(t, 70, cfg.Check.Threshold)
	})
}

package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/feedgate/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	source := func(capability string) config.SourceConfig {
		return config.SourceConfig{
			OriginURL:      "https://feeds.example.com",
			Kind:           "json",
			Shape:          "map",
			TimeoutSeconds: 5,
			Capability:     capability,
		}
	}
	return config.Config{
		Server:    config.ServerConfig{Port: 8080},
		Storage:   config.StorageConfig{Backend: "local", BaseDir: t.TempDir()},
		UserAgent: "feedgate-test/0.1",
		Sources: map[string]config.SourceConfig{
			"oddsfeed":  source("odds"),
			"statsfeed": source("stats"),
			"histfeed":  source("historical"),
			"livefeed":  source("live"),
		},
	}
}

func TestNewBuildsEverySource(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, cfg.Validate())

	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"histfeed", "livefeed", "oddsfeed", "statsfeed"}, a.SourceNames())
}

func TestSourceStatusKnownAndUnknown(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	status, ok := a.SourceStatus(context.Background(), "oddsfeed")
	require.True(t, ok)
	assert.Equal(t, "oddsfeed", status.Name)
	assert.Equal(t, "closed", status.CircuitState)
	assert.Nil(t, status.LastCapturedAt)

	_, ok = a.SourceStatus(context.Background(), "missing")
	assert.False(t, ok)
}

func TestRegistryServesScrapedAdapter(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer a.Close()

	adp, err := a.Registry().Get("scraped")
	require.NoError(t, err)
	assert.NotNil(t, adp)
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "s3"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage backend")
}

func TestNewRejectsUnknownSourceKind(t *testing.T) {
	cfg := testConfig(t)
	src := cfg.Sources["oddsfeed"]
	src.Kind = "grpc"
	cfg.Sources["oddsfeed"] = src

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source kind")
}

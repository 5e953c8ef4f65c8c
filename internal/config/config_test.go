package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feedgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "local", cfg.Storage.Backend)
	assert.Equal(t, 30, cfg.Adapter.OddsTTLSeconds)
}

func TestLoadSourcesFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
sources:
  oddsfeed:
    origin_url: https://odds.example.com
    kind: json
    shape: map
    capability: odds
    min_delay_seconds: 3
    max_retries: 2
    timeout_seconds: 20
    respect_policy: true
  resultsfeed:
    origin_url: https://results.example.com
    kind: html
    shape: table
    capability: historical
    min_delay_seconds: 5
    max_retries: 3
    timeout_seconds: 30
    respect_policy: true
    row_selector: "table.results tbody tr"
    columns: [date, home, away, score]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	require.Len(t, cfg.Sources, 2)

	odds := cfg.Sources["oddsfeed"].Feed("oddsfeed")
	assert.Equal(t, 3*time.Second, odds.MinDelay)
	assert.Equal(t, 20*time.Second, odds.Timeout)
	assert.True(t, odds.RespectPolicy)
}

func TestValidateRejectsBadSource(t *testing.T) {
	path := writeConfig(t, `
sources:
  broken:
    origin_url: https://x.example
    kind: csv
    shape: table
    capability: odds
    timeout_seconds: 10
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
}

func TestValidateRejectsHTMLWithoutSelector(t *testing.T) {
	path := writeConfig(t, `
sources:
  scraped:
    origin_url: https://x.example
    kind: html
    shape: table
    capability: historical
    timeout_seconds: 10
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row_selector")
}

func TestValidateStorageBackends(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: gcs
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gcs_bucket")

	path = writeConfig(t, `
storage:
  backend: tape
`)
	_, err = Load(path)
	require.Error(t, err)
}

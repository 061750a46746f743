package leads

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearLeadboardEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"BASE_URL", "TIMEOUT", "SESSION_FILE", "SESSION_KEY"} {
		t.Setenv(EnvPrefix+key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout.Std())
	assert.Equal(t, DefaultSessionKey, cfg.SessionKey)
	for _, name := range CollectionStores {
		assert.NotEmpty(t, cfg.Stores[name].Path, name)
	}
	assert.False(t, cfg.Stores[StoreContacts].RequiresAuth())
	assert.True(t, cfg.Stores[StoreLeads].RequiresAuth())
	assert.Equal(t, PatchPerRow, cfg.Bulk[StoreManualLeads].Variant)
	assert.Equal(t, PatchShared, cfg.Bulk[StoreLeads].Variant)
	assert.Equal(t, "status", cfg.Funnel.Field)
	assert.Len(t, cfg.Funnel.Stages, 5)
}

func TestDecodeConfigOverridesDefaults(t *testing.T) {
	clearLeadboardEnv(t)
	cfg, err := DecodeConfig(strings.NewReader(`
base_url: https://crm.example.com/
timeout: 3s
stores:
  leads:
    path: /v2/leads
    collection: items
  archived:
    path: /v2/archived
bulk:
  leads:
    path: /v2/leads/patch
    variant: updates
    require_success: true
funnel:
  stages: [new, won]
`))
	require.NoError(t, err)
	assert.Equal(t, "https://crm.example.com", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout.Std())
	assert.Equal(t, StoreConfig{Path: "/v2/leads", Collection: "items"}, cfg.Stores[StoreLeads])
	assert.Equal(t, "/v2/archived", cfg.Stores["archived"].Path)
	assert.Equal(t, "/api/users", cfg.Stores[StoreUsers].Path, "unlisted stores keep defaults")
	assert.Equal(t, BulkConfig{Path: "/v2/leads/patch", Variant: PatchPerRow, RequireSuccess: true}, cfg.Bulk[StoreLeads])
	assert.Equal(t, []string{"new", "won"}, cfg.Funnel.Stages)
	assert.Equal(t, "status", cfg.Funnel.Field)
}

func TestDecodeConfigRejectsUnknownKeys(t *testing.T) {
	clearLeadboardEnv(t)
	_, err := DecodeConfig(strings.NewReader("base_url: http://x\nbase_ulr: typo\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_ulr")
}

func TestDecodeConfigValidation(t *testing.T) {
	clearLeadboardEnv(t)
	_, err := DecodeConfig(strings.NewReader("base_url: http://x\nbulk:\n  leads:\n    path: /p\n    variant: sideways\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown patch variant")

	_, err = DecodeConfig(strings.NewReader("base_url: http://x\nstores:\n  leads:\n    collection: leads\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing path")

	_, err = DecodeConfig(strings.NewReader("timeout: soon\n"))
	require.Error(t, err)
}

func TestDecodeConfigEmptyDocumentNeedsBaseURL(t *testing.T) {
	clearLeadboardEnv(t)
	_, err := DecodeConfig(strings.NewReader(""))
	require.Error(t, err)

	t.Setenv(EnvPrefix+"BASE_URL", "http://env.example.com/")
	cfg, err := DecodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "http://env.example.com", cfg.BaseURL)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LEADBOARD_BASE_URL":     "http://override/",
		"LEADBOARD_TIMEOUT":      "45",
		"LEADBOARD_SESSION_FILE": "/tmp/session.yaml",
		"LEADBOARD_SESSION_KEY":  "crm",
	}
	cfg := DefaultConfig()
	cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	assert.Equal(t, "http://override", cfg.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout.Std())
	assert.Equal(t, "/tmp/session.yaml", cfg.SessionFile)
	assert.Equal(t, "crm", cfg.SessionKey)

	env["LEADBOARD_TIMEOUT"] = "90s"
	cfg.ApplyEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	assert.Equal(t, 90*time.Second, cfg.Timeout.Std())
}

func TestLoadConfigFile(t *testing.T) {
	clearLeadboardEnv(t)
	path := filepath.Join(t.TempDir(), "leadboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: http://file.example.com\n"), 0o600))
	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, "http://file.example.com", cfg.BaseURL)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

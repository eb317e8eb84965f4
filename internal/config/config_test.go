package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "env: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Env)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, "anchor_only", cfg.SettlementConfig.Mode)
	assert.Equal(t, 3, cfg.RevocationConfig.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.RevocationConfig.RetryDelay)
	assert.Equal(t, "fixed", cfg.RevocationConfig.DelayPolicy)
	assert.Equal(t, 7*24*time.Hour, cfg.DisputeConfig.Timeout)
	assert.Equal(t, 5, cfg.DisputeConfig.MaxEvidencePerParty)
	assert.Equal(t, "opaque", cfg.LeaseConfig.TokenFormat)
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	cases := map[string]string{
		"unknown backend":      "store:\n  backend: mongo\n",
		"postgres without dsn": "store:\n  backend: postgres\n",
		"contract without url": "settlement:\n  mode: contract\n",
		"jwt without secret":   "lease:\n  token_format: jwt\n",
		"redis without addr":   "credentials:\n  backend: redis\n",
		"bad delay policy":     "revocation:\n  delay_policy: linear\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("MARKET_SETTLEMENT_MODE", "contract")
	t.Setenv("MARKET_ESCROW_URL", "http://escrow.local")
	cfg, err := Load(writeConfig(t, "settlement:\n  mode: anchor_only\n"))
	require.NoError(t, err)
	assert.Equal(t, "contract", cfg.SettlementConfig.Mode)
	assert.Equal(t, "http://escrow.local", cfg.SettlementConfig.EscrowURL)
}

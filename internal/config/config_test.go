package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazeru/phoneshop-go/internal/domain"
	"github.com/nazeru/phoneshop-go/pkg/tx/common"
)

func TestReadCfgDefaults(t *testing.T) {
	t.Setenv("STORE", "memory")
	t.Setenv("TX_MODE", "")
	t.Setenv("STATUS_POLICY", "")
	t.Setenv("STATUS_POLICY_FILE", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("REQUEST_TIMEOUT_MS", "")

	c, err := readCfg()
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Store)
	assert.Equal(t, common.TxModeLocal, c.TxMode)
	assert.Equal(t, domain.PolicyPermissive, c.StatusPolicy.Name())
	assert.Equal(t, time.UTC, c.Location)
	assert.Equal(t, 2500*time.Millisecond, c.RequestTimeout)
}

func TestReadCfgOverrides(t *testing.T) {
	t.Setenv("STORE", "mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("TX_MODE", "SAGA")
	t.Setenv("STATUS_POLICY", "strict")
	t.Setenv("STATUS_POLICY_FILE", "")
	t.Setenv("TIMEZONE", "Asia/Ho_Chi_Minh")
	t.Setenv("OUTBOX_POLL_MS", "250")
	t.Setenv("OUTBOX_BATCH", "20")

	c, err := readCfg()
	require.NoError(t, err)
	assert.Equal(t, common.TxModeSaga, c.TxMode)
	assert.Equal(t, domain.PolicyStrict, c.StatusPolicy.Name())
	assert.Equal(t, "Asia/Ho_Chi_Minh", c.Location.String())
	assert.Equal(t, 250*time.Millisecond, c.OutboxInterval)
	assert.Equal(t, 20, c.OutboxBatch)
}

func TestReadCfgPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\ntransitions:\n  pending: [confirmed]\n  confirmed: [delivered]\n"), 0o600))
	t.Setenv("STORE", "memory")
	t.Setenv("TX_MODE", "")
	t.Setenv("STATUS_POLICY", "strict")
	t.Setenv("STATUS_POLICY_FILE", path)

	c, err := readCfg()
	require.NoError(t, err)
	assert.Equal(t, "custom", c.StatusPolicy.Name())
	assert.NoError(t, c.StatusPolicy.Check(domain.OrderStatusConfirmed, domain.OrderStatusDelivered))
	assert.ErrorIs(t, c.StatusPolicy.Check(domain.OrderStatusPending, domain.OrderStatusDelivered), domain.ErrInvalidTransition)
}

func TestReadCfgErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"postgres without url": {"STORE": "postgres", "DATABASE_URL": ""},
		"mongo without uri":    {"STORE": "mongo", "MONGODB_URI": ""},
		"unknown store":        {"STORE": "sqlite"},
		"unknown tx mode":      {"STORE": "memory", "TX_MODE": "2pc"},
		"unknown policy":       {"STORE": "memory", "TX_MODE": "", "STATUS_POLICY": "lenient"},
		"bad timeout":          {"STORE": "memory", "TX_MODE": "", "STATUS_POLICY": "", "REQUEST_TIMEOUT_MS": "soon"},
		"bad timezone":         {"STORE": "memory", "TX_MODE": "", "STATUS_POLICY": "", "TIMEZONE": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("STATUS_POLICY_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := readCfg()
			assert.Error(t, err)
		})
	}
}

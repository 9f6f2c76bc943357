package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dbPath string, args ...string) (map[string]interface{}, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(append([]string{"--sqlite", dbPath}, args...))
	err := cmd.Execute()
	if out.Len() == 0 {
		return nil, err
	}
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	return result, err
}

func TestLoyaltyctl_MerchantAdjustReconcile(t *testing.T) {
	t.Setenv("ENV", "test")
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	created, err := run(t, dbPath, "merchant", "create", "--name", "Corner Bakery", "--earn-bps", "250")
	require.NoError(t, err)
	merchantID := created["merchantId"].(string)
	assert.Contains(t, created["apiKey"], "mk_"+merchantID+"_")

	adjusted, err := run(t, dbPath, "wallet", "adjust", "--merchant", merchantID, "--customer", "c1", "--amount", "75", "--reason", "welcome bonus")
	require.NoError(t, err)
	assert.Equal(t, 75.0, adjusted["balance"])

	_, err = run(t, dbPath, "wallet", "adjust", "--merchant", merchantID, "--customer", "c1", "--amount", "-100")
	assert.Error(t, err)

	report, err := run(t, dbPath, "reconcile", "--merchant", merchantID)
	require.NoError(t, err)
	assert.Equal(t, 1.0, report["walletsChecked"])
	assert.Empty(t, report["mismatches"])

	token, err := run(t, dbPath, "token", "--merchant", merchantID, "--customer", "c1")
	require.NoError(t, err)
	assert.NotEmpty(t, token["token"])
	assert.NotEmpty(t, token["jti"])

	purged, err := run(t, dbPath, "idempotency", "purge")
	require.NoError(t, err)
	assert.Equal(t, 0.0, purged["purged"])
}

func TestLoyaltyctl_InitialTierIsUnique(t *testing.T) {
	t.Setenv("ENV", "test")
	dbPath := filepath.Join(t.TempDir(), "ledger.db")

	created, err := run(t, dbPath, "merchant", "create", "--name", "Tea House")
	require.NoError(t, err)
	merchantID := created["merchantId"].(string)

	tier, err := run(t, dbPath, "tier", "create", "--merchant", merchantID, "--name", "Bronze", "--earn-bps", "100", "--initial", "--min-payment", "5")
	require.NoError(t, err)
	assert.Equal(t, 5.0, tier["MinPaymentAmount"])

	_, err = run(t, dbPath, "tier", "create", "--merchant", merchantID, "--name", "Other", "--initial")
	assert.Error(t, err)

	assigned, err := run(t, dbPath, "tier", "assign", "--merchant", merchantID, "--customer", "c1", "--tier", tier["ID"].(string), "--expires-in", "24h")
	require.NoError(t, err)
	assert.NotNil(t, assigned["ExpiresAt"])
}

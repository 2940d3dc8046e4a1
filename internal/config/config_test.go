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

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0x7E40D49db1460c2D1aCB4a3334f55A0245219cA1", cfg.Contract.Address)
	assert.Equal(t, uint64(5000000), cfg.Contract.GasLimit)
	assert.Equal(t, "Alice", cfg.Contract.PlaceholderPatientName)
	assert.Equal(t, 30*time.Second, cfg.Contract.CallTimeout)
	assert.Equal(t, 5*time.Second, cfg.Events.PublishTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Transactions.TTL)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout())
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  mode: debug
wallet:
  rpc_url: http://node:8545
  chain_id: 31337
contract:
  placeholder_patient_name: Bob
  confirm_timeout: 2m
redis:
  url: redis://localhost:6379/0
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.Mode)
	assert.Equal(t, "http://node:8545", cfg.Wallet.RPCURL)
	assert.Equal(t, int64(31337), cfg.Wallet.ChainID)
	assert.Equal(t, "Bob", cfg.Contract.PlaceholderPatientName)
	assert.Equal(t, 2*time.Minute, cfg.Contract.ConfirmTimeout)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "wallet:\n  rpc_url: http://file:8545\n")
	t.Setenv("HEALTHCARE_RPC_URL", "http://env:8545")
	t.Setenv("HEALTHCARE_PRIVATE_KEY", "0xabc")
	t.Setenv("HEALTHCARE_PORT", "7000")
	t.Setenv("HEALTHCARE_JWT_SECRET", "s3cret")
	t.Setenv("HEALTHCARE_CHAIN_ID", "5")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://env:8545", cfg.Wallet.RPCURL)
	assert.Equal(t, "0xabc", cfg.Wallet.PrivateKey)
	assert.Equal(t, 7000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, int64(5), cfg.Wallet.ChainID)
}

func TestLoadConfig_InvalidEnv(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HEALTHCARE_PORT", "not-a-number")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfig_InvalidContractAddress(t *testing.T) {
	path := writeConfig(t, "contract:\n  address: 0xDEF\n")

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract")
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	path := writeConfig(t, "server:\n  mode: loud\n")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

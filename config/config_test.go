package config_test

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/openst/facilitator/config"
)

const testCfg = `
chains:
  ethereum:
    rpc:
      host: https://mainnet.example/rpc
      timeout: 20s
    chain_id: "1"
    block_time: 15s
    required_block_confirmations: 4
  mosaic:
    rpc:
      host: https://aux.example/rpc
      timeout: 10s
    chain_id: "1405"
    block_time: 3s
    required_block_confirmations: 12

facilitators:
  "1405":
    origin:
      chain: ethereum
      gateway_address: 0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
      token_address: 0xd26114cd6EE289AccF82350c8d8487fedB8A0C07
      start_block: 8500000
      max_block_range_size: 250
      worker_key: ${ORIGIN_WORKER_KEY}
    auxiliary:
      chain: mosaic
      gateway_address: 0x1B4BD38e34FE2E458d9E8Ec4E0b04201Ad2c95c1
      anchor_address: 0x6a94c40227b0a599FE084f4f2F4C2a6Baa61bD9c
      token_address: 0x3AA5ebB10DC797CAC828524e59A333d0A371443c
      start_block: 100
      worker_key: 0x8f2a559490b4f42d3cdb0e4a14f28c3b7e32ed7b26a915327af63e3a2a52a4c5
    composer_address: 0xFA1C2Ed47E683B3667825A6c5903a5A29D0e6f3a
    notify_interval: 2s

postgres:
  user: facilitator
  password: secret
  host: localhost
  port: 5432
  database: facilitator

log_level: debug

presenter:
  host: ":8080"
`

func TestReadConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.ReadConfig([]byte(testCfg))
	require.NoError(t, err)

	require.Len(t, cfg.Chains, 2)
	ethereum := cfg.Chains["ethereum"]
	require.NotNil(t, ethereum)
	require.Equal(t, "https://mainnet.example/rpc", ethereum.RPC.Host)
	require.Equal(t, 20*time.Second, ethereum.RPC.Timeout)
	require.Equal(t, "1", ethereum.ChainID)
	require.Equal(t, 15*time.Second, ethereum.BlockTime)
	require.Equal(t, uint64(4), ethereum.BlockConfirmations)

	require.Len(t, cfg.Facilitators, 1)
	fac := cfg.Facilitators["1405"]
	require.NotNil(t, fac)
	require.Equal(t, "1405", fac.AuxChainID)
	require.Equal(t, 2*time.Second, fac.NotifyInterval)
	require.Equal(t, common.HexToAddress("0xFA1C2Ed47E683B3667825A6c5903a5A29D0e6f3a"), fac.ComposerAddress)

	require.Same(t, ethereum, fac.Origin.Chain)
	require.Same(t, cfg.Chains["mosaic"], fac.Auxiliary.Chain)
	require.Equal(t, common.HexToAddress("0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28"), fac.Origin.GatewayAddress)
	require.Equal(t, uint64(8500000), fac.Origin.StartBlock)
	require.Equal(t, uint64(250), fac.Origin.MaxBlockRangeSize)

	// Not set on the auxiliary side, so the default applies.
	require.Equal(t, uint64(1000), fac.Auxiliary.MaxBlockRangeSize)

	require.Equal(t, "facilitator", cfg.DBConfig.User)
	require.Equal(t, 5432, cfg.DBConfig.Port)
	require.Equal(t, logrus.DebugLevel, cfg.LogLevel)
	require.Equal(t, ":8080", cfg.Presenter.Host)
}

func TestReadConfigDefaults(t *testing.T) {
	t.Parallel()

	blob := `
chains:
  mosaic:
    rpc:
      host: https://aux.example/rpc
    chain_id: "1405"

facilitators:
  "1405":
    origin:
      chain: mosaic
      gateway_address: 0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
    auxiliary:
      chain: mosaic
      gateway_address: 0x1B4BD38e34FE2E458d9E8Ec4E0b04201Ad2c95c1
      anchor_address: 0x6a94c40227b0a599FE084f4f2F4C2a6Baa61bD9c
    composer_address: 0xFA1C2Ed47E683B3667825A6c5903a5A29D0e6f3a
`
	cfg, err := config.ReadConfig([]byte(blob))
	require.NoError(t, err)
	require.Equal(t, logrus.InfoLevel, cfg.LogLevel)
	require.Equal(t, 5*time.Second, cfg.Facilitators["1405"].NotifyInterval)
}

func TestReadConfigWithEnv(t *testing.T) {
	t.Setenv("ORIGIN_WORKER_KEY", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")

	cfg, err := config.ReadConfigWithEnv([]byte(testCfg))
	require.NoError(t, err)
	require.Equal(
		t,
		"0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
		cfg.Facilitators["1405"].Origin.WorkerKey,
	)
}

func TestReadConfigValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		blob    string
		wantErr string
	}{
		{
			name: "missing auxiliary section",
			blob: `
chains:
  mosaic:
    rpc:
      host: https://aux.example/rpc
    chain_id: "1405"

facilitators:
  "1405":
    origin:
      chain: mosaic
      gateway_address: 0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
`,
			wantErr: "misses origin or auxiliary section",
		},
		{
			name: "unknown chain",
			blob: `
chains:
  mosaic:
    rpc:
      host: https://aux.example/rpc
    chain_id: "1405"

facilitators:
  "1405":
    origin:
      chain: nowhere
      gateway_address: 0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
    auxiliary:
      chain: mosaic
      gateway_address: 0x1B4BD38e34FE2E458d9E8Ec4E0b04201Ad2c95c1
      anchor_address: 0x6a94c40227b0a599FE084f4f2F4C2a6Baa61bD9c
`,
			wantErr: `references unknown chain "nowhere"`,
		},
		{
			name: "facilitator key does not match auxiliary chain id",
			blob: `
chains:
  mosaic:
    rpc:
      host: https://aux.example/rpc
    chain_id: "1405"

facilitators:
  "1406":
    origin:
      chain: mosaic
      gateway_address: 0x31A8AD064e3a83260e6bF27Bdacf114d9d0f1F28
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
    auxiliary:
      chain: mosaic
      gateway_address: 0x1B4BD38e34FE2E458d9E8Ec4E0b04201Ad2c95c1
      anchor_address: 0x6a94c40227b0a599FE084f4f2F4C2a6Baa61bD9c
`,
			wantErr: "does not match auxiliary chain id",
		},
		{
			name: "missing gateway address",
			blob: `
chains:
  mosaic:
    rpc:
      host: https://aux.example/rpc
    chain_id: "1405"

facilitators:
  "1405":
    origin:
      chain: mosaic
      anchor_address: 0x284beA97e9A3A72cfA172a2Cd0fD288d7F80BB1D
    auxiliary:
      chain: mosaic
      gateway_address: 0x1B4BD38e34FE2E458d9E8Ec4E0b04201Ad2c95c1
      anchor_address: 0x6a94c40227b0a599FE084f4f2F4C2a6Baa61bD9c
`,
			wantErr: "misses gateway address",
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.ReadConfig([]byte(c.blob))
			require.Error(t, err)
			require.Contains(t, err.Error(), c.wantErr)
		})
	}
}

func TestReadConfigRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	_, err := config.ReadConfig([]byte(testCfg + "\nunexpected_key: true\n"))
	require.Error(t, err)
}

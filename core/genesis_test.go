package core

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

func genesisYAML(network string) string {
	zero := "0x" + strings.Repeat("00", 32)
	return fmt.Sprintf(`
network: %s
startEpoch: 3
dagRoots:
  - 0x55b891e842e58f58956a847cbbf67821
  - "0xfba03a3d1902b9256ebe9177d03242fe"
header:
  parentHash: %s
  sha3Uncles: "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347"
  miner: 0x0000000000000000000000000000000000000000
  stateRoot: %s
  transactionsRoot: %s
  receiptsRoot: %s
  logsBloom: 0x%s
  difficulty: 0x400000000
  number: 0x0
  gasLimit: 0x1388
  gasUsed: 0x0
  timestamp: 0x0
  extraData: 0x11bbe8db4e347b4e8c937c1c8370e4b5ed33adb3db69cbdb7a38e1e50b1b82fa
  mixHash: %s
  nonce: 0x0000000000000042
`, network, zero, zero, zero, zero, strings.Repeat("00", 256), zero)
}

func TestDecodeGenesis(t *testing.T) {
	genesis, err := DecodeGenesis([]byte(genesisYAML(params.MainnetName)))
	require.NoError(t, err)

	assert.Equal(t, params.MainnetName, genesis.Network)
	assert.Equal(t, uint64(3), genesis.StartEpoch)
	require.Len(t, genesis.DagRoots, 2)
	assert.Equal(t, common.HexToH128("0x55b891e842e58f58956a847cbbf67821"), genesis.DagRoots[0])
	assert.Equal(t, uint64(0x42), genesis.Header.Nonce.Uint64())
	assert.Equal(t, int64(0x400000000), genesis.Header.Difficulty.Int64())

	config, err := genesis.ChainConfig()
	require.NoError(t, err)
	assert.Equal(t, params.MainnetChainConfig, config)

	table := genesis.DagRootTable()
	_, ok := table.DagRoot(2)
	assert.False(t, ok)
	_, ok = table.DagRoot(4)
	assert.True(t, ok)
}

func TestDecodeGenesisErrors(t *testing.T) {
	_, err := DecodeGenesis([]byte(genesisYAML("olympic")))
	assert.Error(t, err)

	_, err = DecodeGenesis([]byte("network: dev\n"))
	assert.ErrorIs(t, err, errGenesisNoHeader)

	_, err = DecodeGenesis([]byte("network: [dev"))
	assert.Error(t, err)

	broken := strings.Replace(genesisYAML(params.DevName), "  nonce: 0x0000000000000042\n", "", 1)
	_, err = DecodeGenesis([]byte(broken))
	assert.ErrorContains(t, err, "nonce")
}

func TestSetupGenesis(t *testing.T) {
	logger := log.NewTestLogger()
	db := rawdb.NewMemoryDatabase()
	dataset := ethash.NewTestDataset(8, 1)
	genesis := DevGenesis(dataset, 2)

	_, _, err := SetupGenesis(db, nil, logger)
	assert.ErrorIs(t, err, ErrNoGenesis)

	config, header, err := SetupGenesis(db, genesis, logger)
	require.NoError(t, err)
	assert.Equal(t, params.DevName, config.Name)
	assert.Equal(t, genesis.Header.Hash(), header.Hash())
	assert.Equal(t, header.Hash(), rawdb.ReadGenesisHash(db))
	root, ok := NewDagRootStore(db).DagRoot(1)
	require.True(t, ok)
	assert.Equal(t, dataset.Root(), root)

	// reopening with the same or no genesis
	_, again, err := SetupGenesis(db, genesis, logger)
	require.NoError(t, err)
	assert.Equal(t, header.Hash(), again.Hash())
	config, _, err = SetupGenesis(db, nil, logger)
	require.NoError(t, err)
	assert.Equal(t, params.DevChainConfig.Ethash.MinimumDifficulty, config.Ethash.MinimumDifficulty)

	other := DevGenesis(dataset, 2)
	other.Header.Time++
	_, _, err = SetupGenesis(db, other, logger)
	assert.ErrorIs(t, err, ErrGenesisMismatch)
}

func TestDefaultDevGenesis(t *testing.T) {
	genesis, dataset := DefaultDevGenesis()
	assert.Equal(t, params.DevDatasetRows*2*64, dataset.Size())
	assert.Len(t, genesis.DagRoots, 4)
	for _, root := range genesis.DagRoots {
		assert.Equal(t, dataset.Root(), root)
	}
	assert.Len(t, genesis.Alloc, len(DevAccounts))
	for _, addr := range DevAccounts {
		assert.Equal(t, devBalance, genesis.Alloc[addr].ToInt())
	}
}

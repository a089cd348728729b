package ethash

import (
	"context"
	"math/big"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

func newTestEngine(t *testing.T, dataset *TestDataset, roots consensus.DagRootReader) *Ethash {
	t.Helper()
	return New(params.DevChainConfig.Ethash, roots, Config{DatasetSize: dataset.DatasetSize}, log.NewTestLogger())
}

// child builds an unsealed header on top of parent with the dev difficulty.
func child(parent *types.Header, elapsed uint64) *types.Header {
	header := &types.Header{
		ParentHash: parent.Hash(),
		UncleHash:  types.EmptyUncleHash,
		Coinbase:   common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Number:     parent.Number + 1,
		GasLimit:   8_000_000,
		Time:       parent.Time + elapsed,
		Extra:      []byte("relay"),
	}
	header.Difficulty = CalcDifficulty(params.DevChainConfig.Ethash, header.Time, parent)
	return header
}

func genesisHeader() *types.Header {
	return &types.Header{
		UncleHash:  types.EmptyUncleHash,
		Difficulty: big.NewInt(256),
		Number:     0,
		GasLimit:   8_000_000,
		Time:       1_600_000_000,
	}
}

func minedChain(dataset *TestDataset, parent *types.Header, n int) []*types.HeaderThing {
	things := make([]*types.HeaderThing, 0, n)
	for i := 0; i < n; i++ {
		header := child(parent, 5)
		proof := dataset.Mine(header, 0)
		things = append(things, &types.HeaderThing{Header: header, Proof: proof})
		parent = header
	}
	return things
}

func TestDatasetSize(t *testing.T) {
	assert.Equal(t, uint64(1073739904), calcDatasetSize(0))
	assert.Equal(t, uint64(1082130304), calcDatasetSize(1))
}

func TestDagRootTable(t *testing.T) {
	table := &DagRootTable{StartEpoch: 2, Roots: []common.H128{{1}, {2}}}

	_, ok := table.DagRoot(1)
	assert.False(t, ok)
	root, ok := table.DagRoot(3)
	require.True(t, ok)
	assert.Equal(t, common.H128{2}, root)
	_, ok = table.DagRoot(4)
	assert.False(t, ok)
}

func TestVerifyMinedHeader(t *testing.T) {
	dataset := NewTestDataset(8, 1)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)
	require.Len(t, proof, loopAccesses)

	require.NoError(t, engine.VerifyHeader(header, genesis, proof))
	// served from the seal cache the second time
	require.NoError(t, engine.VerifyHeader(header, genesis, proof))
}

func TestSealCacheFollowsDagRoot(t *testing.T) {
	dataset := NewTestDataset(8, 5)
	table := dataset.RootTable(1)
	engine := newTestEngine(t, dataset, table)

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)
	require.NoError(t, engine.VerifyHeader(header, genesis, proof))

	// a governance replaced root no longer vouches for the cached seal
	table.Roots[0] = NewTestDataset(8, 6).Root()
	assert.ErrorIs(t, engine.VerifyHeader(header, genesis, proof), consensus.ErrMerkleProofMismatch)

	table.Roots[0] = dataset.Root()
	assert.NoError(t, engine.VerifyHeader(header, genesis, proof))
}

func TestVerifyForgedNonce(t *testing.T) {
	dataset := NewTestDataset(8, 2)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)
	ForgeNonce(header)

	err := engine.VerifyHeader(header, genesis, proof)
	assert.ErrorIs(t, err, consensus.ErrInvalidProofOfWork)
	assert.True(t, consensus.IsPowError(err))
}

func TestVerifyTamperedProof(t *testing.T) {
	dataset := NewTestDataset(8, 3)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)

	t.Run("sibling", func(t *testing.T) {
		tampered := append([]types.DoubleNodeWithProof(nil), proof...)
		tampered[0].Proof = append([]common.H128(nil), proof[0].Proof...)
		tampered[0].Proof[0][0] ^= 0x01
		assert.ErrorIs(t, engine.VerifyHeader(header, genesis, tampered), consensus.ErrMerkleProofMismatch)
	})
	t.Run("node", func(t *testing.T) {
		tampered := append([]types.DoubleNodeWithProof(nil), proof...)
		tampered[0].DagNodes[1][5] ^= 0x80
		assert.ErrorIs(t, engine.VerifyHeader(header, genesis, tampered), consensus.ErrMerkleProofMismatch)
	})
	t.Run("count", func(t *testing.T) {
		assert.ErrorIs(t, engine.VerifyHeader(header, genesis, proof[:len(proof)-1]), consensus.ErrProofCountMismatch)
	})
	t.Run("mix digest", func(t *testing.T) {
		forged := types.CopyHeader(header)
		forged.MixDigest[0] ^= 0x01
		err := engine.VerifyHeader(forged, genesis, proof)
		require.Error(t, err)
		assert.True(t, consensus.IsPowError(err))
	})
}

func TestVerifyUnknownEpoch(t *testing.T) {
	dataset := NewTestDataset(8, 4)
	engine := newTestEngine(t, dataset, &DagRootTable{StartEpoch: 1, Roots: []common.H128{dataset.Root()}})

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)
	assert.ErrorIs(t, engine.VerifyHeader(header, genesis, proof), consensus.ErrUnknownEpoch)
}

func TestVerifyDifficulty(t *testing.T) {
	dataset := NewTestDataset(8, 5)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))
	genesis := genesisHeader()

	t.Run("below minimum", func(t *testing.T) {
		header := child(genesis, 5)
		header.Difficulty = big.NewInt(8)
		assert.ErrorIs(t, engine.VerifyHeader(header, nil, nil), consensus.ErrDifficultyOutOfBounds)
	})
	t.Run("discontinuous", func(t *testing.T) {
		header := child(genesis, 5)
		header.Difficulty = big.NewInt(300)
		proof := dataset.Mine(header, 0)
		assert.ErrorIs(t, engine.VerifyHeader(header, genesis, proof), consensus.ErrDifficultyOutOfBounds)
	})
	t.Run("older timestamp", func(t *testing.T) {
		header := child(genesis, 5)
		header.Time = genesis.Time
		proof := dataset.Mine(header, 0)
		assert.ErrorIs(t, engine.VerifyHeader(header, genesis, proof), consensus.ErrOlderBlockTime)
	})
}

func TestCalcDifficulty(t *testing.T) {
	parent := genesisHeader()
	dev := params.DevChainConfig.Ethash

	tests := []struct {
		elapsed uint64
		want    int64
	}{
		{5, 272},
		{10, 256},
		{20, 240},
		{100_000, 16},
	}
	for _, tt := range tests {
		got := CalcDifficulty(dev, parent.Time+tt.elapsed, parent)
		assert.Equal(t, tt.want, got.Int64(), "elapsed %d", tt.elapsed)
	}

	uncled := types.CopyHeader(parent)
	uncled.UncleHash = common.Hash{0x01}
	assert.Equal(t, int64(288), CalcDifficulty(dev, parent.Time+5, uncled).Int64())

	frontier := &types.Header{Number: 1000, Difficulty: big.NewInt(131072), Time: 100, UncleHash: types.EmptyUncleHash}
	assert.Equal(t, int64(131136), CalcDifficulty(params.MainnetChainConfig.Ethash, 110, frontier).Int64())
	assert.Equal(t, int64(131072), CalcDifficulty(params.MainnetChainConfig.Ethash, 120, frontier).Int64())
}

func TestVerifyHeaders(t *testing.T) {
	dataset := NewTestDataset(16, 6)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))
	genesis := genesisHeader()

	things := minedChain(dataset, genesis, 6)
	require.NoError(t, engine.VerifyHeaders(context.Background(), genesis, things))

	// a fresh engine, the first one remembers the seals
	engine = newTestEngine(t, dataset, dataset.RootTable(1))
	things[3].Proof = things[3].Proof[:10]
	things[5].Proof = nil
	err := engine.VerifyHeaders(context.Background(), genesis, things)
	assert.ErrorIs(t, err, consensus.ErrProofCountMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, engine.VerifyHeaders(ctx, genesis, things), context.Canceled)
}

func TestFullFakeMode(t *testing.T) {
	dataset := NewTestDataset(8, 7)
	engine := New(params.DevChainConfig.Ethash, &DagRootTable{}, Config{PowMode: ModeFullFake}, log.NewTestLogger())

	genesis := genesisHeader()
	header := child(genesis, 5)
	dataset.Mine(header, 0)
	ForgeNonce(header)
	assert.NoError(t, engine.VerifyHeader(header, genesis, nil))
}

// Changing any field of a header must change its hash, and the recomputed
// hash must no longer match the one delivered with it.
func TestHeaderMutationFailsVerification(t *testing.T) {
	dataset := NewTestDataset(8, 8)
	engine := newTestEngine(t, dataset, dataset.RootTable(1))

	genesis := genesisHeader()
	header := child(genesis, 5)
	proof := dataset.Mine(header, 0)
	header.SetClaimedHash(header.Hash())
	require.NoError(t, engine.VerifyHeader(header, genesis, proof))

	f := fuzz.NewWithSeed(42).NilChance(0)
	mutators := []func(h *types.Header){
		func(h *types.Header) { f.Fuzz(&h.ParentHash) },
		func(h *types.Header) { f.Fuzz(&h.UncleHash) },
		func(h *types.Header) { f.Fuzz(&h.Coinbase) },
		func(h *types.Header) { f.Fuzz(&h.Root) },
		func(h *types.Header) { f.Fuzz(&h.TxHash) },
		func(h *types.Header) { f.Fuzz(&h.ReceiptHash) },
		func(h *types.Header) { f.Fuzz(&h.Bloom) },
		func(h *types.Header) {
			var d uint64
			f.Fuzz(&d)
			h.Difficulty = new(big.Int).SetUint64(d)
		},
		func(h *types.Header) { f.Fuzz(&h.Number) },
		func(h *types.Header) { f.Fuzz(&h.GasLimit) },
		func(h *types.Header) { f.Fuzz(&h.GasUsed) },
		func(h *types.Header) { f.Fuzz(&h.Time) },
		func(h *types.Header) { f.Fuzz(&h.Extra) },
		func(h *types.Header) { f.Fuzz(&h.MixDigest) },
		func(h *types.Header) { f.Fuzz(&h.Nonce) },
	}
	original := header.Hash()
	for round := 0; round < 10; round++ {
		for i, mutate := range mutators {
			mutated := types.CopyHeader(header)
			mutate(mutated)
			if mutated.Hash() == original {
				// the fuzzer produced the original value
				continue
			}
			err := engine.VerifyHeader(mutated, genesis, proof)
			assert.ErrorIs(t, err, consensus.ErrHeaderHashMismatch, "mutator %d", i)
		}
	}
}

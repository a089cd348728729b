package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
)

var (
	admin    = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000ee")
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
)

type recordingBridge struct {
	mu        sync.Mutex
	confirmed [][]*types.Header
}

func (b *recordingBridge) OnChainConfirmed(headers []*types.Header) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmed = append(b.confirmed, headers)
}

func isAdmin(caller common.Address) bool { return caller == admin }

func testConfig() *Config {
	return &Config{
		MaxReorgDepth:    3,
		ApproveThreshold: 60,
		RejectThreshold:  60,
		Members:          []common.Address{alice, bob, carol},
		ApproveOrigin:    isAdmin,
		RejectOrigin:     isAdmin,
	}
}

type testChain struct {
	*HeaderChain
	db      ethdb.Database
	dataset *ethash.TestDataset
	bridge  *recordingBridge
}

func newTestChain(t *testing.T, config *Config) *testChain {
	t.Helper()
	logger := log.NewTestLogger()
	dataset := ethash.NewTestDataset(16, 11)
	db := rawdb.NewMemoryDatabase()

	chainConfig, _, err := SetupGenesis(db, DevGenesis(dataset, 2), logger)
	require.NoError(t, err)
	engine := ethash.New(chainConfig.Ethash, NewDagRootStore(db), ethash.Config{DatasetSize: dataset.DatasetSize}, logger)

	bridge := new(recordingBridge)
	hc, err := NewHeaderChain(db, engine, chainConfig, config, bridge, logger)
	require.NoError(t, err)
	t.Cleanup(hc.Stop)
	return &testChain{HeaderChain: hc, db: db, dataset: dataset, bridge: bridge}
}

func (tc *testChain) generate(parent *types.Header, n int) []*types.HeaderThing {
	return GenerateChain(tc.Config().Ethash, parent, tc.dataset, n, nil)
}

func TestValidateChain(t *testing.T) {
	tc := newTestChain(t, testConfig())
	genesis := tc.Genesis()
	things := tc.generate(genesis, 3)
	ctx := context.Background()

	require.NoError(t, tc.ValidateChain(ctx, genesis, things))

	tests := []struct {
		name   string
		things []*types.HeaderThing
		err    error
	}{
		{"empty", nil, ErrEmptyChain},
		{"skips first", things[1:], ErrWrongDivergencePoint},
		{"gap", []*types.HeaderThing{things[0], things[2]}, ErrNonContiguousHeaders},
		{"reordered", []*types.HeaderThing{things[0], things[0]}, ErrNonContiguousHeaders},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tc.ValidateChain(ctx, genesis, tt.things)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, IsChainError(err))
		})
	}

	t.Run("forged nonce", func(t *testing.T) {
		forged := tc.generate(genesis, 2)
		ethash.ForgeNonce(forged[1].Header)
		err := tc.ValidateChain(ctx, genesis, forged)
		assert.ErrorIs(t, err, consensus.ErrInvalidProofOfWork)
		assert.False(t, IsChainError(err))
	})
	t.Run("other parent", func(t *testing.T) {
		other := types.CopyHeader(genesis)
		other.Time++
		assert.ErrorIs(t, tc.ValidateChain(ctx, other, things), ErrNonContiguousHeaders)
	})
	// validation never touches the canonical chain
	assert.Equal(t, genesis.Hash(), tc.CurrentHeader().Hash())
}

func TestExtendCanonical(t *testing.T) {
	tc := newTestChain(t, testConfig())
	heads := make(chan ChainHeadEvent, 4)
	sub := tc.SubscribeChainHeadEvent(heads)
	defer sub.Unsubscribe()

	headers := types.Headers(tc.generate(tc.Genesis(), 3))
	require.NoError(t, tc.MaybeExtendCanonical(1, 0, headers))

	head := tc.CurrentHeader()
	assert.Equal(t, uint64(3), head.Number)
	assert.Equal(t, headers[2].Hash(), head.Hash())
	assert.Equal(t, headers[1].Hash(), tc.GetHeaderByNumber(2).Hash())
	assert.Equal(t, uint64(1), tc.GetHeaderByHash(headers[0].Hash()).Number)
	assert.True(t, tc.HasCanonical(headers[1].Hash()))
	assert.Nil(t, tc.GetHeaderByNumber(4))

	require.Len(t, tc.bridge.confirmed, 1)
	assert.Len(t, tc.bridge.confirmed[0], 3)
	ev := <-heads
	assert.Equal(t, head.Hash(), ev.Header.Hash())

	// the same chain no longer extends the head
	assert.ErrorIs(t, tc.MaybeExtendCanonical(2, 0, headers), ErrNonContiguousHeaders)
	assert.ErrorIs(t, tc.MaybeExtendCanonical(2, 3, nil), ErrEmptyChain)

	// the head survives a restart
	reopened, err := NewHeaderChain(tc.db, tc.Engine(), tc.Config(), testConfig(), nil, log.NewTestLogger())
	require.NoError(t, err)
	assert.Equal(t, head.Hash(), reopened.CurrentHeader().Hash())
	assert.Equal(t, tc.Genesis().Hash(), reopened.Genesis().Hash())
}

func TestNewHeaderChainWithoutGenesis(t *testing.T) {
	db := rawdb.NewMemoryDatabase()
	_, err := NewHeaderChain(db, nil, nil, testConfig(), nil, log.NewTestLogger())
	assert.ErrorIs(t, err, ErrNoGenesis)
}

func TestConfirmPending(t *testing.T) {
	config := testConfig()
	config.ConfirmPeriod = 5
	tc := newTestChain(t, config)

	parcels := make(chan PendingParcelEvent, 4)
	sub := tc.SubscribePendingParcelEvent(parcels)
	defer sub.Unsubscribe()

	headers := types.Headers(tc.generate(tc.Genesis(), 2))
	require.NoError(t, tc.MaybeExtendCanonical(10, 0, headers))
	assert.Equal(t, uint64(0), tc.CurrentHeader().Number)
	assert.Empty(t, tc.bridge.confirmed)

	parcel := tc.PendingParcel(0)
	require.NotNil(t, parcel)
	assert.Equal(t, uint64(15), parcel.ConfirmAt)
	assert.Equal(t, uint64(2), parcel.Number())
	assert.Equal(t, ParcelPended, (<-parcels).Status)

	// pending parcels survive a restart
	reopened, err := NewHeaderChain(tc.db, tc.Engine(), tc.Config(), config, nil, log.NewTestLogger())
	require.NoError(t, err)
	require.Len(t, reopened.PendingParcels(), 1)

	confirmed, err := tc.ConfirmPending(14)
	require.NoError(t, err)
	assert.Empty(t, confirmed)

	confirmed, err = tc.ConfirmPending(15)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, confirmed)
	assert.Equal(t, headers[1].Hash(), tc.CurrentHeader().Hash())
	assert.Empty(t, tc.PendingParcels())
	assert.Len(t, tc.bridge.confirmed, 1)

	ev := <-parcels
	assert.Equal(t, ParcelApproved, ev.Status)
	assert.Equal(t, uint64(2), ev.Number)
	assert.Empty(t, rawdb.ReadPendingParcelIDs(tc.db))
}

func TestPendingOrigins(t *testing.T) {
	config := testConfig()
	config.ConfirmPeriod = 100
	tc := newTestChain(t, config)

	headers := types.Headers(tc.generate(tc.Genesis(), 2))
	require.NoError(t, tc.MaybeExtendCanonical(0, 0, headers))

	assert.ErrorIs(t, tc.ApprovePending(outsider, 0), ErrBadOrigin)
	assert.ErrorIs(t, tc.RejectPending(outsider, 0), ErrBadOrigin)
	assert.ErrorIs(t, tc.ApprovePending(admin, 7), ErrPendingParcelNotFound)

	require.NoError(t, tc.ApprovePending(admin, 0))
	assert.Equal(t, uint64(2), tc.CurrentHeader().Number)

	next := types.Headers(tc.generate(tc.CurrentHeader(), 1))
	rawdb.WriteClosedPoint(tc.db, 2)
	require.NoError(t, tc.MaybeExtendCanonical(0, 2, next))
	require.NoError(t, tc.RejectPending(admin, 2))
	assert.Equal(t, uint64(2), tc.CurrentHeader().Number)
	assert.Nil(t, tc.PendingParcel(2))
	assert.False(t, rawdb.ReadClosedPoint(tc.db, 2))
}

func TestVotePending(t *testing.T) {
	config := testConfig()
	config.ConfirmPeriod = 100

	t.Run("approve", func(t *testing.T) {
		tc := newTestChain(t, config)
		headers := types.Headers(tc.generate(tc.Genesis(), 2))
		require.NoError(t, tc.MaybeExtendCanonical(0, 0, headers))

		assert.ErrorIs(t, tc.VotePending(outsider, 0, true), ErrNotMember)
		assert.ErrorIs(t, tc.VotePending(alice, 1, true), ErrPendingParcelNotFound)

		require.NoError(t, tc.VotePending(alice, 0, true))
		assert.ErrorIs(t, tc.VotePending(alice, 0, true), ErrAlreadyVoted)
		assert.Equal(t, uint64(0), tc.CurrentHeader().Number)
		assert.Equal(t, []common.Address{alice}, rawdb.ReadPendingParcel(tc.db, 0).Ayes)

		// two of three members pass the 60% threshold
		require.NoError(t, tc.VotePending(bob, 0, true))
		assert.Equal(t, uint64(2), tc.CurrentHeader().Number)
		assert.Nil(t, tc.PendingParcel(0))
	})
	t.Run("reject", func(t *testing.T) {
		tc := newTestChain(t, config)
		headers := types.Headers(tc.generate(tc.Genesis(), 2))
		rawdb.WriteClosedPoint(tc.db, 0)
		require.NoError(t, tc.MaybeExtendCanonical(0, 0, headers))

		require.NoError(t, tc.VotePending(alice, 0, true))
		// changing sides moves the vote
		require.NoError(t, tc.VotePending(alice, 0, false))
		parcel := tc.PendingParcel(0)
		assert.Empty(t, parcel.Ayes)
		assert.Equal(t, []common.Address{alice}, parcel.Nays)

		require.NoError(t, tc.VotePending(carol, 0, false))
		assert.Nil(t, tc.PendingParcel(0))
		assert.Equal(t, uint64(0), tc.CurrentHeader().Number)
		assert.False(t, rawdb.ReadClosedPoint(tc.db, 0))
	})
}

func TestRewind(t *testing.T) {
	tc := newTestChain(t, testConfig())
	heads := make(chan ChainHeadEvent, 4)
	sub := tc.SubscribeChainHeadEvent(heads)
	defer sub.Unsubscribe()

	headers := types.Headers(tc.generate(tc.Genesis(), 5))
	require.NoError(t, tc.MaybeExtendCanonical(0, 0, headers))
	<-heads
	rawdb.WriteClosedPoint(tc.db, 0)
	rawdb.WriteClosedPoint(tc.db, 3)

	assert.ErrorIs(t, tc.Rewind(outsider, 4), ErrBadOrigin)
	assert.ErrorIs(t, tc.Rewind(admin, 1), ErrTooDeepReorg)
	assert.ErrorIs(t, tc.Rewind(admin, 6), ErrWrongDivergencePoint)
	require.NoError(t, tc.Rewind(admin, 5))

	require.NoError(t, tc.Rewind(admin, 2))
	head := tc.CurrentHeader()
	assert.Equal(t, headers[1].Hash(), head.Hash())
	assert.Nil(t, tc.GetHeaderByNumber(3))
	assert.Nil(t, tc.GetHeaderByHash(headers[4].Hash()))
	assert.False(t, rawdb.ReadClosedPoint(tc.db, 3))
	assert.True(t, rawdb.ReadClosedPoint(tc.db, 0))
	assert.Equal(t, uint64(2), (<-heads).Header.Number)

	// a different branch can follow the new head
	branch := types.Headers(GenerateChain(tc.Config().Ethash, head, tc.dataset, 2, func(i int, g *HeaderGen) {
		g.SetExtra([]byte("branch"))
	}))
	require.NoError(t, tc.MaybeExtendCanonical(0, 2, branch))
	assert.Equal(t, branch[1].Hash(), tc.CurrentHeader().Hash())
}

func TestSetDagRoots(t *testing.T) {
	tc := newTestChain(t, testConfig())
	roots := []common.H128{{0x01}, {0x02}}

	assert.ErrorIs(t, tc.SetDagRoots(outsider, 5, roots), ErrBadOrigin)
	require.NoError(t, tc.SetDagRoots(admin, 5, roots))

	store := NewDagRootStore(tc.db)
	root, ok := store.DagRoot(6)
	require.True(t, ok)
	assert.Equal(t, common.H128{0x02}, root)
	_, ok = store.DagRoot(7)
	assert.False(t, ok)
}

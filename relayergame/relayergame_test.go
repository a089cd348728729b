package relayergame

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/currency"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
)

var (
	alice    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob      = common.HexToAddress("0x00000000000000000000000000000000000000b0")
	carol    = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	dave     = common.HexToAddress("0x00000000000000000000000000000000000000d0")
	treasury = common.HexToAddress("0x0000000000000000000000000000000000000077")
)

type testEnv struct {
	db       ethdb.Database
	hc       *core.HeaderChain
	dataset  *ethash.TestDataset
	ledger   *currency.Ledger
	adjustor *DefaultAdjustor
	rg       *RelayerGame
}

// newTestEnv builds a relayer game on a dev chain. Bonds are ten per header
// in round one, rounds last ten blocks and there are three of them.
func newTestEnv(t *testing.T, confirmPeriod uint64) *testEnv {
	t.Helper()
	logger := log.NewTestLogger()
	dataset := ethash.NewTestDataset(16, 21)
	db := rawdb.NewMemoryDatabase()

	chainConfig, _, err := core.SetupGenesis(db, core.DevGenesis(dataset, 2), logger)
	require.NoError(t, err)
	engine := ethash.New(chainConfig.Ethash, core.NewDagRootStore(db), ethash.Config{DatasetSize: dataset.DatasetSize}, logger)
	hc, err := core.NewHeaderChain(db, engine, chainConfig, &core.Config{ConfirmPeriod: confirmPeriod, MaxReorgDepth: 8}, nil, logger)
	require.NoError(t, err)
	t.Cleanup(hc.Stop)

	ledger := currency.NewLedger()
	for _, addr := range []common.Address{alice, bob, carol} {
		ledger.Mint(addr, big.NewInt(10_000))
	}
	adjustor := &DefaultAdjustor{BaseBond: big.NewInt(10), Duration: 10, Rounds: 3, ActiveGames: 4, Treasury: 20}
	rg := New(db, hc, ledger, adjustor, treasury, logger)
	t.Cleanup(rg.Stop)

	return &testEnv{db: db, hc: hc, dataset: dataset, ledger: ledger, adjustor: adjustor, rg: rg}
}

// generate mines n headers on parent, each offset seconds after the one
// before. Zero keeps the default spacing, which holds the difficulty.
func (env *testEnv) generate(parent *types.Header, n int, offset uint64) []*types.HeaderThing {
	return core.GenerateChain(env.hc.Config().Ethash, parent, env.dataset, n, func(i int, g *core.HeaderGen) {
		if offset > 0 {
			g.OffsetTime(offset)
		}
	})
}

func last(things []*types.HeaderThing) *types.Header {
	return things[len(things)-1].Header
}

func TestUncontestedProposalSettles(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	proposals := make(chan ProposalEvent, 4)
	settled := make(chan SettledEvent, 4)
	env.rg.SubscribeProposalEvent(proposals)
	env.rg.SubscribeSettledEvent(settled)

	things := env.generate(genesis, 3, 0)
	p, err := env.rg.SubmitProposal(ctx, 1, alice, things)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Index)
	assert.Equal(t, uint64(1), p.Round)
	assert.Equal(t, -1, p.Parent)
	assert.Equal(t, big.NewInt(30), p.Bond)

	ev := <-proposals
	assert.Equal(t, ProposalAffirmed, ev.Kind)
	assert.Equal(t, uint64(3), ev.Number)

	game := env.rg.Game(0)
	require.NotNil(t, game)
	assert.Equal(t, uint64(11), game.Deadline)
	assert.Equal(t, big.NewInt(30), env.ledger.Locked(alice))
	assert.Equal(t, big.NewInt(9_970), env.ledger.Balance(alice))
	// proposing leaves the canonical chain alone
	assert.Equal(t, uint64(0), env.hc.CurrentHeader().Number)

	events, err := env.rg.OnBlock(11)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = env.rg.OnBlock(12)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(0), events[0].GameID)
	assert.Equal(t, 0, events[0].Winner)
	assert.Equal(t, uint64(3), events[0].Number)
	assert.Empty(t, events[0].Slashes)
	assert.Equal(t, events[0], <-settled)

	assert.Equal(t, last(things).Hash(), env.hc.CurrentHeader().Hash())
	assert.Equal(t, big.NewInt(10_000), env.ledger.Balance(alice))
	assert.Equal(t, 0, env.ledger.Locked(alice).Sign())
	assert.Equal(t, 0, env.ledger.Balance(treasury).Sign())
	assert.True(t, env.rg.Settled(0))
	assert.Empty(t, env.rg.Games())

	_, err = env.rg.SubmitProposal(ctx, 13, bob, things)
	assert.ErrorIs(t, err, ErrGameAlreadySettled)
}

func TestHeaviestChainWinsAtMaxRounds(t *testing.T) {
	env := newTestEnv(t, 0)
	env.adjustor.Rounds = 1
	ctx := context.Background()
	genesis := env.hc.Genesis()

	light := env.generate(genesis, 3, 0)
	heavy := env.generate(genesis, 3, 5)

	_, err := env.rg.SubmitProposal(ctx, 1, alice, light)
	require.NoError(t, err)
	_, err = env.rg.SubmitProposal(ctx, 1, bob, heavy)
	require.NoError(t, err)

	events, err := env.rg.OnBlock(12)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Winner)
	assert.Equal(t, bob, events[0].Relayer)
	assert.Equal(t, last(heavy).Hash(), env.hc.CurrentHeader().Hash())

	// half of alice's round one bond goes, a fifth of that to the treasury
	assert.Equal(t, big.NewInt(9_985), env.ledger.Balance(alice))
	assert.Equal(t, big.NewInt(10_012), env.ledger.Balance(bob))
	assert.Equal(t, big.NewInt(3), env.ledger.Balance(treasury))
	assert.Equal(t, []Payout{{Account: alice, Amount: big.NewInt(15)}}, events[0].Slashes)
}

func TestUnansweredRoundSettles(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	rounds := make(chan NewRoundEvent, 4)
	env.rg.SubscribeNewRoundEvent(rounds)

	light := env.generate(genesis, 3, 0)
	heavy := env.generate(genesis, 3, 5)
	_, err := env.rg.SubmitProposal(ctx, 1, alice, light)
	require.NoError(t, err)
	_, err = env.rg.SubmitProposal(ctx, 1, bob, heavy)
	require.NoError(t, err)

	events, err := env.rg.OnBlock(12)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, NewRoundEvent{GameID: 0, Round: 2, Deadline: 22, Survivors: 2}, <-rounds)

	// nobody extends in round two
	events, err = env.rg.OnBlock(23)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 1, events[0].Winner)
	assert.Equal(t, last(heavy).Hash(), env.hc.CurrentHeader().Hash())
}

func TestChallengeRounds(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	a := env.generate(genesis, 3, 0)  // 256 per header
	b := env.generate(genesis, 3, 5)  // 272, 289, 307
	c := env.generate(genesis, 3, 20) // 240, 225, 211
	for _, sub := range []struct {
		relayer common.Address
		things  []*types.HeaderThing
	}{{alice, a}, {bob, b}, {carol, c}} {
		_, err := env.rg.SubmitProposal(ctx, 1, sub.relayer, sub.things)
		require.NoError(t, err)
	}

	bExt := env.generate(last(b), 1, 0)
	_, err := env.rg.Challenge(ctx, 2, bob, 0, 1, bExt)
	assert.ErrorIs(t, err, ErrRoundMismatch, "round one takes no challenges")

	_, err = env.rg.OnBlock(12)
	require.NoError(t, err)
	require.Equal(t, uint64(2), env.rg.Game(0).Round)

	_, err = env.rg.Challenge(ctx, 12, bob, 5, 1, bExt)
	assert.ErrorIs(t, err, ErrGameNotFound)
	_, err = env.rg.Challenge(ctx, 12, bob, 0, 7, bExt)
	assert.ErrorIs(t, err, ErrProposalNotFound)
	_, err = env.rg.Challenge(ctx, 12, bob, 0, 1, nil)
	assert.ErrorIs(t, err, ErrEmptyProposal)
	_, err = env.rg.Challenge(ctx, 12, bob, 0, 0, bExt)
	assert.ErrorIs(t, err, core.ErrNonContiguousHeaders, "extension must follow the extended tip")

	p, err := env.rg.Challenge(ctx, 12, bob, 0, 1, bExt)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, uint64(2), p.Round)
	assert.Equal(t, 1, p.Parent)
	assert.Equal(t, big.NewInt(80), p.Bond)

	_, err = env.rg.Challenge(ctx, 12, bob, 0, 1, bExt)
	assert.ErrorIs(t, err, ErrProposalDuplicated)

	// as long as bob's chain but lighter
	_, err = env.rg.Challenge(ctx, 12, alice, 0, 0, env.generate(last(a), 1, 0))
	assert.ErrorIs(t, err, ErrProposalTooShort)
	assert.Equal(t, big.NewInt(9_970), env.ledger.Balance(alice))

	p, err = env.rg.Challenge(ctx, 12, alice, 0, 0, env.generate(last(a), 2, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, p.Index)
	assert.Equal(t, big.NewInt(100), p.Bond)

	game := env.rg.Game(0)
	require.Len(t, game.Chain(4), 5)
	assert.Equal(t, uint64(1280), game.TotalDifficulty(4).Uint64())
	assert.Equal(t, uint64(1175), game.TotalDifficulty(3).Uint64())

	// carol never answered and is out
	_, err = env.rg.OnBlock(23)
	require.NoError(t, err)
	game = env.rg.Game(0)
	require.Equal(t, uint64(3), game.Round)
	assert.True(t, game.Proposals[2].Eliminated)
	assert.False(t, game.Proposals[0].Eliminated)

	_, err = env.rg.Challenge(ctx, 24, carol, 0, 2, env.generate(last(c), 3, 0))
	assert.ErrorIs(t, err, ErrProposalEliminated)
	_, err = env.rg.Challenge(ctx, 24, alice, 0, 0, env.generate(last(a), 4, 0))
	assert.ErrorIs(t, err, ErrRoundMismatch)

	events, err := env.rg.OnBlock(34)
	require.NoError(t, err)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, 4, ev.Winner)
	assert.Equal(t, uint64(5), ev.Number)
	assert.Equal(t, uint64(5), env.hc.CurrentHeader().Number)

	// slashed: bob 15 + 80, carol 15. The treasury takes 22 and the dust.
	assert.Equal(t, big.NewInt(10_087), env.ledger.Balance(alice))
	assert.Equal(t, big.NewInt(9_905), env.ledger.Balance(bob))
	assert.Equal(t, big.NewInt(9_985), env.ledger.Balance(carol))
	assert.Equal(t, big.NewInt(23), env.ledger.Balance(treasury))
	assert.Equal(t, big.NewInt(23), ev.Treasury)
	for _, addr := range []common.Address{alice, bob, carol} {
		assert.Equal(t, 0, env.ledger.Locked(addr).Sign())
	}
}

func TestGameSnapshotIsolated(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	a := env.generate(genesis, 2, 0)
	b := env.generate(genesis, 2, 5)
	_, err := env.rg.SubmitProposal(ctx, 1, alice, a)
	require.NoError(t, err)
	_, err = env.rg.SubmitProposal(ctx, 1, bob, b)
	require.NoError(t, err)
	_, err = env.rg.OnBlock(12)
	require.NoError(t, err)

	snap := env.rg.Game(0)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
				snap.Chain(0)
				snap.Tip(1)
			}
		}
	}()
	bExt := env.generate(last(b), 1, 0)
	_, err = env.rg.Challenge(ctx, 12, bob, 0, 1, bExt)
	close(done)
	wg.Wait()
	require.NoError(t, err)

	assert.Len(t, snap.Proposals, 2)
	assert.Nil(t, snap.Header(last(bExt).Hash()))
	live := env.rg.Game(0)
	assert.Len(t, live.Proposals, 3)
	assert.Equal(t, last(bExt).Hash(), live.Header(last(bExt).Hash()).Hash())
}

// gatedChain holds the first chain validation until released.
type gatedChain struct {
	*core.HeaderChain
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (c *gatedChain) ValidateChain(ctx context.Context, parent *types.Header, things []*types.HeaderThing) error {
	if c.calls.Add(1) == 1 {
		close(c.entered)
		<-c.release
	}
	return c.HeaderChain.ValidateChain(ctx, parent, things)
}

func TestProposalVerifiedOutsideLock(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	gated := &gatedChain{HeaderChain: env.hc, entered: make(chan struct{}), release: make(chan struct{})}
	rg := New(env.db, gated, env.ledger, env.adjustor, treasury, log.NewTestLogger())
	t.Cleanup(rg.Stop)

	a := env.generate(env.hc.Genesis(), 2, 0)
	errc := make(chan error, 1)
	go func() {
		_, err := rg.SubmitProposal(ctx, 1, alice, a)
		errc <- err
	}()
	<-gated.entered

	// bob gets in while alice's seals are being checked
	p, err := rg.SubmitProposal(ctx, 1, bob, a)
	require.NoError(t, err)
	assert.Equal(t, bob, p.Relayer)

	close(gated.release)
	assert.ErrorIs(t, <-errc, ErrProposalDuplicated)
	assert.Equal(t, big.NewInt(10_000), env.ledger.Balance(alice))
	assert.Len(t, rg.Game(0).Proposals, 1)
}

func TestRoundOneRejections(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	a := env.generate(genesis, 3, 0)
	_, err := env.rg.SubmitProposal(ctx, 1, alice, a)
	require.NoError(t, err)

	longer := append(append([]*types.HeaderThing(nil), a...), env.generate(last(a), 1, 0)...)
	tests := []struct {
		name    string
		relayer common.Address
		things  []*types.HeaderThing
		err     error
	}{
		{"empty", bob, nil, ErrEmptyProposal},
		{"duplicate", bob, a, ErrProposalDuplicated},
		{"prefix", bob, a[:2], ErrNoConflict},
		{"extension", bob, longer, ErrNoConflict},
		{"no funds", dave, env.generate(genesis, 2, 5), ErrInsufficientBond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.rg.SubmitProposal(ctx, 2, tt.relayer, tt.things)
			assert.ErrorIs(t, err, tt.err)
			assert.True(t, IsGameError(err))
		})
	}
	game := env.rg.Game(0)
	assert.Len(t, game.Proposals, 1)
	assert.Equal(t, uint64(11), game.Deadline)
	assert.Equal(t, big.NewInt(10_000), env.ledger.Balance(bob))
}

func TestDisputeExtendsDeadline(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	_, err := env.rg.SubmitProposal(ctx, 1, alice, env.generate(genesis, 2, 0))
	require.NoError(t, err)
	_, err = env.rg.SubmitProposal(ctx, 6, bob, env.generate(genesis, 2, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(16), env.rg.Game(0).Deadline)
}

func TestTooManyActiveGames(t *testing.T) {
	env := newTestEnv(t, 0)
	env.adjustor.ActiveGames = 0

	_, err := env.rg.SubmitProposal(context.Background(), 1, alice, env.generate(env.hc.Genesis(), 1, 0))
	assert.ErrorIs(t, err, ErrTooManyActiveGames)
	assert.Equal(t, big.NewInt(10_000), env.ledger.Balance(alice))
}

func TestSettledChainPendsWithConfirmPeriod(t *testing.T) {
	env := newTestEnv(t, 5)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	a := env.generate(genesis, 2, 0)
	_, err := env.rg.SubmitProposal(ctx, 1, alice, a)
	require.NoError(t, err)
	events, err := env.rg.OnBlock(12)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.Equal(t, genesis.Hash(), env.hc.CurrentHeader().Hash())
	parcel := env.hc.PendingParcel(0)
	require.NotNil(t, parcel)
	assert.Equal(t, uint64(17), parcel.ConfirmAt)

	_, err = env.rg.SubmitProposal(ctx, 13, bob, env.generate(genesis, 2, 5))
	assert.ErrorIs(t, err, ErrGameAlreadySettled)
}

func TestGamesSurviveRestart(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	a := env.generate(genesis, 3, 0)
	b := env.generate(genesis, 2, 5)
	_, err := env.rg.SubmitProposal(ctx, 1, alice, a)
	require.NoError(t, err)
	_, err = env.rg.SubmitProposal(ctx, 1, bob, b)
	require.NoError(t, err)

	reloaded := New(env.db, env.hc, env.ledger, env.adjustor, treasury, log.NewTestLogger())
	game := reloaded.Game(0)
	require.NotNil(t, game)
	assert.Equal(t, uint64(1), game.Round)
	assert.Equal(t, uint64(11), game.Deadline)
	require.Len(t, game.Proposals, 2)
	assert.Equal(t, bob, game.Proposals[1].Relayer)
	assert.Equal(t, big.NewInt(20), game.Proposals[1].Bond)
	assert.Equal(t, last(a).Hash(), game.Tip(0).Hash())
	assert.Equal(t, last(b).Hash(), game.Tip(1).Hash())
	assert.Len(t, game.Chain(0), 3)

	_, err = reloaded.OnBlock(12)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), reloaded.Game(0).Round)
}

func TestDropGamesAbove(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()

	_, err := env.rg.SubmitProposal(ctx, 1, alice, env.generate(env.hc.Genesis(), 3, 0))
	require.NoError(t, err)
	_, err = env.rg.OnBlock(12)
	require.NoError(t, err)
	head := env.hc.CurrentHeader()
	require.Equal(t, uint64(3), head.Number)

	_, err = env.rg.SubmitProposal(ctx, 13, alice, env.generate(head, 2, 0))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(20), env.ledger.Locked(alice))

	assert.Empty(t, env.rg.DropGamesAbove(3))
	assert.Equal(t, []uint64{3}, env.rg.DropGamesAbove(2))
	assert.Nil(t, env.rg.Game(3))
	assert.Nil(t, rawdb.ReadGame(env.db, 3))
	assert.Empty(t, rawdb.ReadActiveGames(env.db))
	assert.Equal(t, 0, env.ledger.Locked(alice).Sign())
	assert.Equal(t, big.NewInt(10_000), env.ledger.Balance(alice))
}

func TestRejectedProposalsLockNothing(t *testing.T) {
	env := newTestEnv(t, 0)
	ctx := context.Background()
	genesis := env.hc.Genesis()

	ctrl := gomock.NewController(t)
	cur := currency.NewMockCurrency(ctrl)
	rg := New(env.db, env.hc, cur, env.adjustor, treasury, log.NewTestLogger())

	things := env.generate(genesis, 2, 0)
	forged := env.generate(genesis, 2, 5)
	ethash.ForgeNonce(forged[1].Header)

	_, err := rg.SubmitProposal(ctx, 1, alice, nil)
	assert.ErrorIs(t, err, ErrEmptyProposal)
	_, err = rg.SubmitProposal(ctx, 1, alice, things[1:])
	assert.ErrorIs(t, err, core.ErrWrongDivergencePoint)
	_, err = rg.SubmitProposal(ctx, 1, alice, forged)
	assert.ErrorIs(t, err, consensus.ErrInvalidProofOfWork)
	assert.Empty(t, rg.Games())

	cur.EXPECT().Lock(alice, gomock.Any()).Return(nil)
	_, err = rg.SubmitProposal(ctx, 1, alice, things)
	require.NoError(t, err)
	_, err = rg.SubmitProposal(ctx, 1, bob, things)
	assert.ErrorIs(t, err, ErrProposalDuplicated)

	cur.EXPECT().Lock(bob, gomock.Any()).Return(currency.ErrInsufficientBalance)
	_, err = rg.SubmitProposal(ctx, 1, bob, env.generate(genesis, 2, 20))
	assert.ErrorIs(t, err, ErrInsufficientBond)
	assert.Len(t, rg.Game(0).Proposals, 1)
}

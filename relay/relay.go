// Package relay drives the header relay block by block. It owns the header
// chain, the relayer game and the local header MMR and applies every state
// transition in block order.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/currency"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/mmr"
	"github.com/dominant-strategies/go-relay/relayergame"
)

var (
	// ErrBlockOutOfOrder is returned when a local block does not follow the
	// last processed one.
	ErrBlockOutOfOrder = errors.New("local block out of order")

	// ErrLocalBlockMismatch is returned when a local block is processed
	// again with a hash other than the one already in the MMR.
	ErrLocalBlockMismatch = errors.New("local block hash mismatch")

	errBadRelayer = errors.New("zero relayer address")
)

// Relay is the block-synchronous core of the header relay.
type Relay struct {
	config *Config
	db     ethdb.Database

	hc   *core.HeaderChain
	game *relayergame.RelayerGame
	mmr  *mmr.MMR

	number uint64 // last processed local block

	mu     sync.Mutex
	logger log.Logger
}

// New bootstraps genesis into db when needed and assembles the relay.
func New(db ethdb.Database, genesis *core.Genesis, config *Config, cur currency.Currency, bridge core.Bridge, logger log.Logger) (*Relay, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid relay config: %w", err)
	}
	merger, err := mmr.MergerByName(config.MmrHasher)
	if err != nil {
		return nil, err
	}
	chainConfig, genesisHeader, err := core.SetupGenesis(db, genesis, logger)
	if err != nil {
		return nil, err
	}
	engine := ethash.New(chainConfig.Ethash, core.NewDagRootStore(db), config.Ethash, logger)
	hc, err := core.NewHeaderChain(db, engine, chainConfig, &core.Config{
		ConfirmPeriod:    config.ConfirmPeriod,
		MaxReorgDepth:    config.MaxReorgDepth,
		ApproveThreshold: config.ApproveThreshold,
		RejectThreshold:  config.RejectThreshold,
		Members:          config.Members,
		ApproveOrigin:    config.ApproveOrigin,
		RejectOrigin:     config.RejectOrigin,
	}, bridge, logger)
	if err != nil {
		return nil, err
	}
	r := &Relay{
		config: config,
		db:     db,
		hc:     hc,
		game:   relayergame.New(db, hc, cur, config.adjustor(), config.Treasury, logger),
		mmr:    mmr.New(merger, mmr.NewDatabaseStore(db)),
		logger: logger,
	}
	if number := rawdb.ReadLocalHead(db); number != nil {
		r.number = *number
	}
	logger.WithFields(log.Fields{
		"network": chainConfig.Name,
		"genesis": genesisHeader.Hash(),
		"head":    hc.CurrentHeader().Number,
		"local":   r.number,
		"mmr":     r.mmr.Size(),
	}).Info("Relay initialised")
	r.updateGauges()
	return r, nil
}

// SubmitProposal proposes a header chain following the canonical head. Seals
// are verified without blocking local block processing.
func (r *Relay) SubmitProposal(ctx context.Context, relayer common.Address, things []*types.HeaderThing) (*relayergame.Proposal, error) {
	now := r.LocalHead()
	var (
		p   *relayergame.Proposal
		err error
	)
	if relayer == (common.Address{}) {
		err = errBadRelayer
	} else {
		p, err = r.game.SubmitProposal(ctx, now, relayer, things)
	}
	r.recordSubmission("proposal", relayer, err)
	return p, err
}

// SubmitRawProposal decodes and proposes a header chain.
func (r *Relay) SubmitRawProposal(ctx context.Context, relayer common.Address, raws [][]byte, format types.Format) (*relayergame.Proposal, error) {
	things, err := types.DecodeHeaderThings(format, raws)
	if err != nil {
		r.recordSubmission("proposal", relayer, err)
		return nil, err
	}
	return r.SubmitProposal(ctx, relayer, things)
}

// Challenge extends a surviving proposal of an active game.
func (r *Relay) Challenge(ctx context.Context, relayer common.Address, gameID uint64, parent int, things []*types.HeaderThing) (*relayergame.Proposal, error) {
	now := r.LocalHead()
	var (
		p   *relayergame.Proposal
		err error
	)
	if relayer == (common.Address{}) {
		err = errBadRelayer
	} else {
		p, err = r.game.Challenge(ctx, now, relayer, gameID, parent, things)
	}
	r.recordSubmission("challenge", relayer, err)
	return p, err
}

func (r *Relay) recordSubmission(kind string, relayer common.Address, err error) {
	proposalCounter.WithLabelValues(proposalResult(err)).Inc()
	if err != nil {
		r.logger.WithFields(log.Fields{"kind": kind, "relayer": relayer, "err": err}).Debug("Rejected submission")
		return
	}
	activeGamesGauge.Set(float64(len(r.game.Games())))
}

// ProcessBlock runs the per block transitions for local block number with
// the given hash: due pending parcels are confirmed, expired games settle or
// advance, and hash is appended to the MMR. It returns the MMR root after
// the append.
//
// A block that failed may be processed again with the same number and hash.
// Parcels already confirmed and games already settled are not revisited, and
// a leaf appended by the failed attempt is kept.
func (r *Relay) ProcessBlock(number uint64, hash common.Hash) (common.Hash, error) {
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if number != r.number+1 {
		return common.Hash{}, fmt.Errorf("%w: have %d, want %d", ErrBlockOutOfOrder, number, r.number+1)
	}
	appended := r.mmr.LeafCount() >= number
	if appended {
		if leaf, _ := r.mmr.Leaf(number - 1); leaf != hash {
			return common.Hash{}, fmt.Errorf("%w: block %d has %s, got %s", ErrLocalBlockMismatch, number, leaf, hash)
		}
	}
	confirmed, err := r.hc.ConfirmPending(number)
	if err != nil {
		return common.Hash{}, err
	}
	settled, err := r.game.OnBlock(number)
	if err != nil {
		return common.Hash{}, err
	}
	for _, ev := range settled {
		settledCounter.WithLabelValues(settleOutcome(ev)).Inc()
	}
	if !appended {
		if _, err := r.mmr.Append(hash); err != nil {
			panic(fmt.Sprintf("mmr append at block %d: %v", number, err))
		}
	}
	root, err := r.mmr.RootAt(mmr.LeafIndexToMmrSize(number - 1))
	if err != nil {
		return common.Hash{}, err
	}

	batch := r.db.NewBatch()
	rawdb.WriteMmrRoot(batch, number, root)
	rawdb.WriteLocalHead(batch, number)
	if err := batch.Write(); err != nil {
		return common.Hash{}, err
	}
	r.number = number
	r.updateGauges()
	elapsed := time.Since(start)
	blockTimer.Observe(elapsed.Seconds())

	fields := log.Fields{
		"number":  number,
		"hash":    hash,
		"mmr":     root,
		"elapsed": common.PrettyDuration(elapsed),
	}
	if len(confirmed) > 0 || len(settled) > 0 {
		fields["confirmed"] = len(confirmed)
		fields["settled"] = len(settled)
		fields["head"] = r.hc.CurrentHeader().Number
		r.logger.WithFields(fields).Info("Processed local block")
	} else {
		r.logger.WithFields(fields).Debug("Processed local block")
	}
	return root, nil
}

func (r *Relay) updateGauges() {
	bestHeaderGauge.Set(float64(r.hc.CurrentHeader().Number))
	activeGamesGauge.Set(float64(len(r.game.Games())))
	mmrSizeGauge.Set(float64(r.mmr.Size()))
	pendingParcelsGauge.Set(float64(len(r.hc.PendingParcels())))
}

// ApprovePending makes a pending parcel canonical ahead of its confirm time.
func (r *Relay) ApprovePending(caller common.Address, gameID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.updateGauges()
	return r.hc.ApprovePending(caller, gameID)
}

// RejectPending discards a pending parcel and reopens its divergence point.
func (r *Relay) RejectPending(caller common.Address, gameID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.updateGauges()
	return r.hc.RejectPending(caller, gameID)
}

// VotePending records a committee vote on a pending parcel.
func (r *Relay) VotePending(member common.Address, gameID uint64, aye bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.updateGauges()
	return r.hc.VotePending(member, gameID, aye)
}

// Rewind drops canonical headers above number and abandons the games built
// on them.
func (r *Relay) Rewind(caller common.Address, number uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.hc.Rewind(caller, number); err != nil {
		return err
	}
	r.game.DropGamesAbove(number)
	r.updateGauges()
	return nil
}

// SetDagRoots registers trusted DAG roots from startEpoch on.
func (r *Relay) SetDagRoots(caller common.Address, startEpoch uint64, roots []common.H128) error {
	return r.hc.SetDagRoots(caller, startEpoch, roots)
}

// BestHeader returns the canonical head.
func (r *Relay) BestHeader() *types.Header {
	return r.hc.CurrentHeader()
}

// HeaderByNumber returns the canonical header at number.
func (r *Relay) HeaderByNumber(number uint64) *types.Header {
	return r.hc.GetHeaderByNumber(number)
}

// Games returns snapshots of the active games.
func (r *Relay) Games() []*relayergame.Game {
	return r.game.Games()
}

// Game returns a snapshot of the active game at a divergence point.
func (r *Relay) Game(id uint64) *relayergame.Game {
	return r.game.Game(id)
}

// PendingParcels returns the settled chains waiting for confirmation.
func (r *Relay) PendingParcels() []*types.PendingParcel {
	return r.hc.PendingParcels()
}

// LocalHead returns the last processed local block.
func (r *Relay) LocalHead() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.number
}

// MMRRoot returns the MMR root recorded for local block number.
func (r *Relay) MMRRoot(number uint64) (common.Hash, bool) {
	return rawdb.ReadMmrRoot(r.db, number)
}

// MMRProof proves the hash of local block leafIndex+1 against the root
// recorded at local block lastLeafIndex+1.
func (r *Relay) MMRProof(leafIndex, lastLeafIndex uint64) (*mmr.Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mmr.GenProofForLeaf(leafIndex, lastLeafIndex)
}

// HeaderChain returns the canonical header chain.
func (r *Relay) HeaderChain() *core.HeaderChain { return r.hc }

// RelayerGame returns the relayer game.
func (r *Relay) RelayerGame() *relayergame.RelayerGame { return r.game }

// Stop closes every event subscription.
func (r *Relay) Stop() {
	r.game.Stop()
	r.hc.Stop()
}

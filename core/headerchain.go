package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"
	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

// BlockChainVersion is the version of the database layout.
const BlockChainVersion uint64 = 1

const (
	headerCacheBytes = 4 * 1024 * 1024
	numberCacheLimit = 2048
)

// Bridge receives every header sequence that becomes canonical.
type Bridge interface {
	OnChainConfirmed(headers []*types.Header)
}

// Origin is an authorization predicate supplied by the governance layer.
type Origin func(caller common.Address) bool

// Config holds the confirmation and governance settings of a HeaderChain.
type Config struct {
	// ConfirmPeriod is the number of local blocks a settled chain waits
	// before becoming canonical. Zero writes settled chains immediately.
	ConfirmPeriod uint64

	// MaxReorgDepth bounds how many canonical headers a rewind may drop.
	MaxReorgDepth uint64

	// ApproveThreshold and RejectThreshold are the percentages of committee
	// members whose votes approve or reject a pending parcel.
	ApproveThreshold uint64
	RejectThreshold  uint64
	Members          []common.Address

	ApproveOrigin Origin
	RejectOrigin  Origin
}

// HeaderChain tracks the canonical chain of relayed headers. It validates
// candidate chains, keeps the single canonical cursor and the queue of settled
// chains waiting out their confirm period.
type HeaderChain struct {
	config      *Config
	chainConfig *params.ChainConfig

	db     ethdb.Database
	engine consensus.Engine
	bridge Bridge

	genesisHeader *types.Header
	currentHeader atomic.Value // Current canonical head

	headerCache *fastcache.Cache // RLP of recently used headers by hash
	numberCache *lru.Cache       // Cache for the most recent block numbers

	members mapset.Set
	pending map[uint64]*types.PendingParcel

	chainHeadFeed event.Feed
	parcelFeed    event.Feed
	scope         event.SubscriptionScope

	headermu sync.RWMutex
	logger   log.Logger
}

// NewHeaderChain loads the canonical chain from db. The genesis header must
// have been committed before.
func NewHeaderChain(db ethdb.Database, engine consensus.Engine, chainConfig *params.ChainConfig, config *Config, bridge Bridge, logger log.Logger) (*HeaderChain, error) {
	numberCache, _ := lru.New(numberCacheLimit)

	hc := &HeaderChain{
		config:      config,
		chainConfig: chainConfig,
		db:          db,
		engine:      engine,
		bridge:      bridge,
		headerCache: fastcache.New(headerCacheBytes),
		numberCache: numberCache,
		members:     mapset.NewSet(),
		pending:     make(map[uint64]*types.PendingParcel),
		logger:      logger,
	}
	for _, member := range config.Members {
		hc.members.Add(member)
	}

	if version := rawdb.ReadDatabaseVersion(db); version != nil && *version != BlockChainVersion {
		return nil, fmt.Errorf("database version %d, expected %d", *version, BlockChainVersion)
	}
	genesisHash := rawdb.ReadGenesisHash(db)
	if genesisHash == (common.Hash{}) {
		return nil, ErrNoGenesis
	}
	hc.genesisHeader = hc.GetHeaderByHash(genesisHash)
	if hc.genesisHeader == nil {
		return nil, ErrNoGenesis
	}
	if err := hc.loadLastState(); err != nil {
		return nil, err
	}
	return hc, nil
}

// loadLastState restores the canonical head and the pending parcels.
func (hc *HeaderChain) loadLastState() error {
	head := hc.genesisHeader
	if number := rawdb.ReadHeadHeaderNumber(hc.db); number != nil {
		if header := hc.GetHeaderByNumber(*number); header != nil {
			head = header
		} else {
			hc.logger.WithField("number", *number).Warn("Head header missing, resetting to genesis")
		}
	}
	hc.currentHeader.Store(head)

	for _, id := range rawdb.ReadPendingParcelIDs(hc.db) {
		if parcel := rawdb.ReadPendingParcel(hc.db, id); parcel != nil {
			hc.pending[id] = parcel
		}
	}
	hc.logger.WithFields(log.Fields{
		"number":  head.Number,
		"hash":    head.Hash(),
		"pending": len(hc.pending),
	}).Info("Loaded most recent canonical header")
	return nil
}

// Config returns the chain configuration.
func (hc *HeaderChain) Config() *params.ChainConfig { return hc.chainConfig }

// Engine retrieves the header chain's consensus engine.
func (hc *HeaderChain) Engine() consensus.Engine { return hc.engine }

// Genesis retrieves the chain's genesis header.
func (hc *HeaderChain) Genesis() *types.Header { return hc.genesisHeader }

// CurrentHeader retrieves the current head header of the canonical chain.
func (hc *HeaderChain) CurrentHeader() *types.Header {
	return hc.currentHeader.Load().(*types.Header)
}

// GetBlockNumber retrieves the block number belonging to the given hash
// from the cache or database
func (hc *HeaderChain) GetBlockNumber(hash common.Hash) *uint64 {
	if cached, ok := hc.numberCache.Get(hash); ok {
		number := cached.(uint64)
		return &number
	}
	number := rawdb.ReadHeaderNumber(hc.db, hash)
	if number != nil {
		hc.numberCache.Add(hash, *number)
	}
	return number
}

// GetHeader retrieves a block header from the database by hash and number,
// caching it if found.
func (hc *HeaderChain) GetHeader(hash common.Hash, number uint64) *types.Header {
	if enc, ok := hc.headerCache.HasGet(nil, hash.Bytes()); ok {
		header := new(types.Header)
		if err := rlp.DecodeBytes(enc, header); err == nil && header.Number == number {
			return header
		}
	}
	header := rawdb.ReadHeader(hc.db, hash, number)
	if header == nil {
		return nil
	}
	hc.cacheHeader(header)
	return header
}

func (hc *HeaderChain) cacheHeader(header *types.Header) {
	enc, err := rlp.EncodeToBytes(header)
	if err != nil {
		return
	}
	hash := header.Hash()
	hc.headerCache.Set(hash.Bytes(), enc)
	hc.numberCache.Add(hash, header.Number)
}

// GetHeaderByHash retrieves a block header from the database by hash.
func (hc *HeaderChain) GetHeaderByHash(hash common.Hash) *types.Header {
	number := hc.GetBlockNumber(hash)
	if number == nil {
		return nil
	}
	return hc.GetHeader(hash, *number)
}

// GetHeaderByNumber retrieves the canonical header at a number.
func (hc *HeaderChain) GetHeaderByNumber(number uint64) *types.Header {
	hash := rawdb.ReadCanonicalHash(hc.db, number)
	if hash == (common.Hash{}) {
		return nil
	}
	return hc.GetHeader(hash, number)
}

// HasCanonical reports whether hash is the canonical header at its number.
func (hc *HeaderChain) HasCanonical(hash common.Hash) bool {
	number := hc.GetBlockNumber(hash)
	return number != nil && rawdb.ReadCanonicalHash(hc.db, *number) == hash
}

// ValidateChain checks that things form a chain on top of parent and that
// every header carries a valid seal. Verification runs without holding the
// chain lock and leaves no trace on failure.
func (hc *HeaderChain) ValidateChain(ctx context.Context, parent *types.Header, things []*types.HeaderThing) error {
	if len(things) == 0 {
		return ErrEmptyChain
	}
	if first := things[0].Header; first.Number != parent.Number+1 {
		return fmt.Errorf("%w: first header %d, expected %d", ErrWrongDivergencePoint, first.Number, parent.Number+1)
	}
	prev := parent
	for i, thing := range things {
		header := thing.Header
		if header.Number != prev.Number+1 || header.ParentHash != prev.Hash() {
			return fmt.Errorf("%w: item %d [%d] does not follow [%d] %s", ErrNonContiguousHeaders, i, header.Number, prev.Number, prev.Hash())
		}
		prev = header
	}
	return hc.engine.VerifyHeaders(ctx, parent, things)
}

// MaybeExtendCanonical takes the winning chain of a settled game. It becomes
// canonical right away without a confirm period, otherwise it is queued as a
// pending parcel confirmable at now plus the confirm period.
func (hc *HeaderChain) MaybeExtendCanonical(now uint64, gameID uint64, headers []*types.Header) error {
	if len(headers) == 0 {
		return ErrEmptyChain
	}
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	if err := hc.connects(headers); err != nil {
		return err
	}
	if hc.config.ConfirmPeriod == 0 {
		return hc.writeCanonical(headers)
	}
	parcel := &types.PendingParcel{
		GameID:    gameID,
		ConfirmAt: now + hc.config.ConfirmPeriod,
		Headers:   headers,
	}
	hc.pending[gameID] = parcel
	if err := hc.storePending(parcel); err != nil {
		return err
	}

	hc.logger.WithFields(log.Fields{
		"game":      gameID,
		"number":    parcel.Number(),
		"confirmAt": parcel.ConfirmAt,
	}).Info("Settled chain pending confirmation")
	hc.parcelFeed.Send(PendingParcelEvent{GameID: gameID, Number: parcel.Number(), Status: ParcelPended})
	return nil
}

// connects checks headers extend the current head. Callers hold headermu.
func (hc *HeaderChain) connects(headers []*types.Header) error {
	head := hc.CurrentHeader()
	if headers[0].Number != head.Number+1 || headers[0].ParentHash != head.Hash() {
		return fmt.Errorf("%w: chain starting at [%d] does not extend head [%d]", ErrNonContiguousHeaders, headers[0].Number, head.Number)
	}
	return nil
}

// writeCanonical makes headers the new canonical tip. Callers hold headermu.
func (hc *HeaderChain) writeCanonical(headers []*types.Header) error {
	batch := hc.db.NewBatch()
	for _, header := range headers {
		rawdb.WriteHeader(batch, header)
		rawdb.WriteCanonicalHash(batch, header.Hash(), header.Number)
	}
	tip := headers[len(headers)-1]
	rawdb.WriteHeadHeaderNumber(batch, tip.Number)
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write canonical headers")
	}
	for _, header := range headers {
		hc.cacheHeader(header)
	}
	hc.currentHeader.Store(types.CopyHeader(tip))

	hc.logger.WithFields(log.Fields{
		"number":  tip.Number,
		"hash":    tip.Hash(),
		"headers": len(headers),
	}).Info("Extended canonical chain")

	if hc.bridge != nil {
		hc.bridge.OnChainConfirmed(headers)
	}
	hc.chainHeadFeed.Send(ChainHeadEvent{Header: tip})
	return nil
}

// Rewind drops canonical headers above number. The caller must satisfy the
// reject origin and the rewind may not be deeper than the configured maximum.
// Divergence points at or above the new head are reopened and pending
// parcels above it are discarded.
func (hc *HeaderChain) Rewind(caller common.Address, number uint64) error {
	if !allowed(hc.config.RejectOrigin, caller) {
		return ErrBadOrigin
	}
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	head := hc.CurrentHeader()
	if number > head.Number {
		return fmt.Errorf("%w: rewind target %d above head %d", ErrWrongDivergencePoint, number, head.Number)
	}
	if number < hc.genesisHeader.Number || head.Number-number > hc.config.MaxReorgDepth {
		return fmt.Errorf("%w: from %d to %d, max depth %d", ErrTooDeepReorg, head.Number, number, hc.config.MaxReorgDepth)
	}
	if number == head.Number {
		return nil
	}
	batch := hc.db.NewBatch()
	for n := head.Number; n > number; n-- {
		hash := rawdb.ReadCanonicalHash(hc.db, n)
		rawdb.DeleteCanonicalHash(batch, n)
		rawdb.DeleteHeader(batch, hash, n)
		hc.headerCache.Del(hash.Bytes())
		hc.numberCache.Remove(hash)
	}
	for n := number; n <= head.Number; n++ {
		rawdb.DeleteClosedPoint(batch, n)
	}
	rawdb.WriteHeadHeaderNumber(batch, number)
	for id := range hc.pending {
		if id >= number {
			delete(hc.pending, id)
			rawdb.DeletePendingParcel(batch, id)
		}
	}
	rawdb.WritePendingParcelIDs(batch, hc.pendingIDs())
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "rewind canonical chain")
	}
	newHead := rawdb.ReadCanonicalHeader(hc.db, number)
	hc.currentHeader.Store(newHead)

	hc.logger.WithFields(log.Fields{
		"from": head.Number,
		"to":   number,
		"hash": newHead.Hash(),
	}).Warn("Rewound canonical chain")
	hc.chainHeadFeed.Send(ChainHeadEvent{Header: newHead})
	return nil
}

// SetDagRoots replaces the trusted DAG roots of a run of epochs.
func (hc *HeaderChain) SetDagRoots(caller common.Address, startEpoch uint64, roots []common.H128) error {
	if !allowed(hc.config.ApproveOrigin, caller) {
		return ErrBadOrigin
	}
	rawdb.WriteDagRoots(hc.db, startEpoch, roots)
	hc.logger.WithFields(log.Fields{
		"start": startEpoch,
		"count": len(roots),
	}).Info("Updated dag roots")
	return nil
}

// SubscribeChainHeadEvent registers a subscription of ChainHeadEvent.
func (hc *HeaderChain) SubscribeChainHeadEvent(ch chan<- ChainHeadEvent) event.Subscription {
	return hc.scope.Track(hc.chainHeadFeed.Subscribe(ch))
}

// SubscribePendingParcelEvent registers a subscription of PendingParcelEvent.
func (hc *HeaderChain) SubscribePendingParcelEvent(ch chan<- PendingParcelEvent) event.Subscription {
	return hc.scope.Track(hc.parcelFeed.Subscribe(ch))
}

// Stop unsubscribes all event subscribers.
func (hc *HeaderChain) Stop() {
	hc.scope.Close()
	hc.logger.Info("Header chain stopped")
}

func allowed(origin Origin, caller common.Address) bool {
	return origin != nil && origin(caller)
}

func (hc *HeaderChain) pendingIDs() []uint64 {
	ids := make([]uint64, 0, len(hc.pending))
	for id := range hc.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DagRootStore serves the DAG roots committed to the database, including the
// ones replaced through SetDagRoots.
type DagRootStore struct {
	db ethdb.KeyValueReader
}

// NewDagRootStore creates a DAG root reader over db.
func NewDagRootStore(db ethdb.KeyValueReader) *DagRootStore {
	return &DagRootStore{db: db}
}

// DagRoot implements consensus.DagRootReader.
func (s *DagRootStore) DagRoot(epoch uint64) (common.H128, bool) {
	return rawdb.ReadDagRoot(s.db, epoch)
}

// Package relayergame runs the bonded games relayers play to decide which
// header chain follows a divergence point of the canonical chain.
package relayergame

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/currency"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
)

// Chain is the header chain games validate against and settle into.
type Chain interface {
	CurrentHeader() *types.Header
	ValidateChain(ctx context.Context, parent *types.Header, things []*types.HeaderThing) error
	MaybeExtendCanonical(now uint64, gameID uint64, headers []*types.Header) error
}

// RelayerGame owns every active game. Games are keyed by divergence point and
// persisted after each change.
type RelayerGame struct {
	db       ethdb.Database
	chain    Chain
	currency currency.Currency
	adjustor Adjustor
	treasury common.Address

	games map[uint64]*Game

	proposalFeed event.Feed
	roundFeed    event.Feed
	settledFeed  event.Feed
	scope        event.SubscriptionScope

	mu     sync.Mutex
	logger log.Logger
}

// New creates the relayer game and reloads the games active in db.
func New(db ethdb.Database, chain Chain, cur currency.Currency, adjustor Adjustor, treasury common.Address, logger log.Logger) *RelayerGame {
	rg := &RelayerGame{
		db:       db,
		chain:    chain,
		currency: cur,
		adjustor: adjustor,
		treasury: treasury,
		games:    make(map[uint64]*Game),
		logger:   logger,
	}
	for _, id := range rawdb.ReadActiveGames(db) {
		rec := rawdb.ReadGame(db, id)
		if rec == nil {
			logger.WithField("game", id).Error("Active game missing from database")
			continue
		}
		rg.games[id] = gameFromRecord(rec)
	}
	if len(rg.games) > 0 {
		logger.WithField("games", len(rg.games)).Info("Loaded active relayer games")
	}
	return rg
}

// Game returns a snapshot of the active game at a divergence point.
func (rg *RelayerGame) Game(id uint64) *Game {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	if g, ok := rg.games[id]; ok {
		return g.copy()
	}
	return nil
}

// Games returns snapshots of every active game ordered by divergence point.
func (rg *RelayerGame) Games() []*Game {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	games := make([]*Game, 0, len(rg.games))
	for _, id := range rg.activeIDs() {
		games = append(games, rg.games[id].copy())
	}
	return games
}

// Settled reports whether the game at a divergence point has been settled.
func (rg *RelayerGame) Settled(id uint64) bool {
	return rawdb.ReadClosedPoint(rg.db, id)
}

// SubmitProposal proposes a chain following the canonical head. The first
// proposal opens a game at the head, later round one proposals must
// conflict with every proposal already made. Rejected proposals change no
// state and lock no bond.
func (rg *RelayerGame) SubmitProposal(ctx context.Context, now uint64, relayer common.Address, things []*types.HeaderThing) (*Proposal, error) {
	if len(things) == 0 {
		return nil, ErrEmptyProposal
	}
	headers := types.Headers(things)

	rg.mu.Lock()
	head, _, err := rg.checkProposal(headers)
	rg.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := rg.chain.ValidateChain(ctx, head, things); err != nil {
		return nil, err
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	// games may have moved on while the seals were verified
	current, game, err := rg.checkProposal(headers)
	if err != nil {
		return nil, err
	}
	if current.Hash() != head.Hash() {
		return nil, fmt.Errorf("%w: canonical head moved to %d", core.ErrWrongDivergencePoint, current.Number)
	}
	ok := game != nil
	bond := rg.adjustor.EstimateBond(1, len(headers))
	if err := rg.currency.Lock(relayer, bond); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientBond, err)
	}

	kind := ProposalDisputed
	if !ok {
		game = newGame(head.Number)
		rg.games[game.ID] = game
		kind = ProposalAffirmed
	}
	p := game.add(relayer, -1, headers, bond)
	rg.extendDeadline(game, now)
	rg.store(game)

	rg.logProposal(game, p, kind)
	rg.proposalFeed.Send(ProposalEvent{
		GameID:  game.ID,
		Index:   p.Index,
		Relayer: relayer,
		Round:   p.Round,
		Kind:    kind,
		Number:  game.Tip(p.Index).Number,
		Bond:    new(big.Int).Set(bond),
	})
	return p.copy(), nil
}

// checkProposal returns the canonical head a round one chain has to follow
// and the game open on it, if any.
func (rg *RelayerGame) checkProposal(headers []*types.Header) (*types.Header, *Game, error) {
	first := headers[0]
	if first.Number > 0 && rawdb.ReadClosedPoint(rg.db, first.Number-1) {
		return nil, nil, fmt.Errorf("%w: divergence point %d", ErrGameAlreadySettled, first.Number-1)
	}
	head := rg.chain.CurrentHeader()
	game, ok := rg.games[head.Number]
	switch {
	case ok && game.Round != 1:
		return nil, nil, fmt.Errorf("%w: game %d is in round %d", ErrRoundMismatch, game.ID, game.Round)
	case !ok && len(rg.games) >= rg.adjustor.MaxActiveGames():
		return nil, nil, fmt.Errorf("%w: limit %d", ErrTooManyActiveGames, rg.adjustor.MaxActiveGames())
	}
	if !ok {
		return head, nil, nil
	}
	if err := checkConflict(game, headers); err != nil {
		return nil, nil, err
	}
	return head, game, nil
}

// checkConflict rejects a round one chain that is already proposed or that
// agrees with a proposal, one being a prefix of the other.
func checkConflict(game *Game, headers []*types.Header) error {
	tip := headers[len(headers)-1].Hash()
	for _, p := range game.Proposals {
		ptip := game.Tip(p.Index).Hash()
		if ptip == tip {
			return fmt.Errorf("%w: proposal %d", ErrProposalDuplicated, p.Index)
		}
		if game.chainSet(p.Index).Contains(tip) {
			return fmt.Errorf("%w: prefix of proposal %d", ErrNoConflict, p.Index)
		}
		for _, header := range headers {
			if header.Hash() == ptip {
				return fmt.Errorf("%w: extends proposal %d", ErrNoConflict, p.Index)
			}
		}
	}
	return nil
}

// Challenge extends a surviving proposal of the previous round with more
// headers. The extended chain must be longer than every competing chain in
// the game, or as long and strictly heavier.
func (rg *RelayerGame) Challenge(ctx context.Context, now uint64, relayer common.Address, gameID uint64, parent int, things []*types.HeaderThing) (*Proposal, error) {
	if len(things) == 0 {
		return nil, ErrEmptyProposal
	}
	headers := types.Headers(things)

	rg.mu.Lock()
	game, _, err := rg.checkChallenge(gameID, parent, headers)
	var tip *types.Header
	if err == nil {
		tip = game.Tip(parent)
	}
	rg.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := rg.chain.ValidateChain(ctx, tip, things); err != nil {
		return nil, err
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	// the round may have closed while the seals were verified
	game, chain, err := rg.checkChallenge(gameID, parent, headers)
	if err != nil {
		return nil, err
	}
	if game.Tip(parent).Hash() != tip.Hash() {
		return nil, fmt.Errorf("%w: game %d was reopened", ErrProposalNotFound, gameID)
	}
	bond := rg.adjustor.EstimateBond(game.Round, len(chain))
	if err := rg.currency.Lock(relayer, bond); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientBond, err)
	}

	p := game.add(relayer, parent, headers, bond)
	rg.extendDeadline(game, now)
	rg.store(game)

	rg.logProposal(game, p, ProposalExtended)
	rg.proposalFeed.Send(ProposalEvent{
		GameID:  game.ID,
		Index:   p.Index,
		Relayer: relayer,
		Round:   p.Round,
		Kind:    ProposalExtended,
		Number:  game.Tip(p.Index).Number,
		Bond:    new(big.Int).Set(bond),
	})
	return p.copy(), nil
}

// checkChallenge looks up the game and the extended proposal and returns the
// chain the extension would form.
func (rg *RelayerGame) checkChallenge(gameID uint64, parent int, headers []*types.Header) (*Game, []*types.Header, error) {
	game, ok := rg.games[gameID]
	if !ok {
		if rawdb.ReadClosedPoint(rg.db, gameID) {
			return nil, nil, fmt.Errorf("%w: divergence point %d", ErrGameAlreadySettled, gameID)
		}
		return nil, nil, fmt.Errorf("%w: divergence point %d", ErrGameNotFound, gameID)
	}
	if game.Round < 2 {
		return nil, nil, fmt.Errorf("%w: game %d accepts no challenges in round %d", ErrRoundMismatch, gameID, game.Round)
	}
	if parent < 0 || parent >= len(game.Proposals) {
		return nil, nil, fmt.Errorf("%w: index %d", ErrProposalNotFound, parent)
	}
	extended := game.Proposals[parent]
	if extended.Eliminated {
		return nil, nil, fmt.Errorf("%w: index %d", ErrProposalEliminated, parent)
	}
	if extended.Round != game.Round-1 {
		return nil, nil, fmt.Errorf("%w: proposal %d is from round %d, game is in round %d", ErrRoundMismatch, parent, extended.Round, game.Round)
	}
	chain := append(game.Chain(parent), headers...)
	if idx := game.tipOf(headers[len(headers)-1].Hash()); idx >= 0 {
		return nil, nil, fmt.Errorf("%w: proposal %d", ErrProposalDuplicated, idx)
	}
	if err := checkHeavier(game, chain); err != nil {
		return nil, nil, err
	}
	return game, chain, nil
}

// checkHeavier compares chain with the surviving proposals it does not
// extend.
func checkHeavier(game *Game, chain []*types.Header) error {
	lineage := make(map[common.Hash]struct{}, len(chain))
	for _, header := range chain {
		lineage[header.Hash()] = struct{}{}
	}
	td := types.TotalDifficulty(chain)
	for _, p := range game.Proposals {
		if p.Eliminated {
			continue
		}
		if _, ok := lineage[game.Tip(p.Index).Hash()]; ok {
			continue
		}
		other := game.Chain(p.Index)
		switch {
		case len(chain) < len(other):
			return fmt.Errorf("%w: %d headers, proposal %d has %d", ErrProposalTooShort, len(chain), p.Index, len(other))
		case len(chain) == len(other) && td.Cmp(types.TotalDifficulty(other)) <= 0:
			return fmt.Errorf("%w: not heavier than proposal %d of equal length", ErrProposalTooShort, p.Index)
		}
	}
	return nil
}

// extendDeadline restarts the round clock of a game.
func (rg *RelayerGame) extendDeadline(game *Game, now uint64) {
	if deadline := now + rg.adjustor.RoundDuration(game.Round); deadline > game.Deadline {
		game.Deadline = deadline
	}
}

// OnBlock advances every game whose round expired before now, settling or
// opening a new round. Games are processed in divergence point order.
func (rg *RelayerGame) OnBlock(now uint64) ([]SettledEvent, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var settled []SettledEvent
	for _, id := range rg.activeIDs() {
		game := rg.games[id]
		if now <= game.Deadline {
			continue
		}
		ev, err := rg.expire(game, now)
		if err != nil {
			return settled, err
		}
		if ev != nil {
			settled = append(settled, *ev)
		}
	}
	return settled, nil
}

// expire closes the current round of a game.
func (rg *RelayerGame) expire(game *Game, now uint64) (*SettledEvent, error) {
	candidates := game.Survivors(game.Round)
	unanswered := false
	if game.Round > 1 {
		if len(candidates) == 0 {
			// nobody challenged, the previous round stands
			candidates = game.Survivors(game.Round - 1)
			unanswered = true
		} else {
			rg.eliminateUnextended(game)
		}
	}
	if len(candidates) == 0 {
		panic(fmt.Sprintf("relayer game %d has no surviving proposal", game.ID))
	}
	if winner, ok := agreed(game, candidates); ok {
		return rg.settle(game, winner, now)
	}
	if unanswered || game.Round >= rg.adjustor.MaxRounds() {
		return rg.settle(game, heaviest(game, candidates), now)
	}

	game.Round++
	game.Deadline = now + rg.adjustor.RoundDuration(game.Round)
	rg.store(game)

	rg.logger.WithFields(log.Fields{
		"game":      game.ID,
		"round":     game.Round,
		"deadline":  game.Deadline,
		"survivors": len(candidates),
	}).Info("Relayer game entered new round")
	rg.roundFeed.Send(NewRoundEvent{GameID: game.ID, Round: game.Round, Deadline: game.Deadline, Survivors: len(candidates)})
	return nil, nil
}

// eliminateUnextended marks the previous round's survivors that were not
// extended in the current round.
func (rg *RelayerGame) eliminateUnextended(game *Game) {
	extended := make(map[int]struct{})
	for _, p := range game.Survivors(game.Round) {
		extended[p.Parent] = struct{}{}
	}
	for _, p := range game.Survivors(game.Round - 1) {
		if _, ok := extended[p.Index]; !ok {
			p.Eliminated = true
			rg.logger.WithFields(log.Fields{"game": game.ID, "proposal": p.Index, "relayer": p.Relayer}).Debug("Unanswered proposal eliminated")
		}
	}
}

// agreed returns the longest candidate when all candidate chains lie on one
// line.
func agreed(game *Game, candidates []*Proposal) (*Proposal, bool) {
	longest := candidates[0]
	for _, p := range candidates[1:] {
		if len(game.Chain(p.Index)) > len(game.Chain(longest.Index)) {
			longest = p
		}
	}
	line := game.chainSet(longest.Index)
	for _, p := range candidates {
		if !line.Contains(game.Tip(p.Index).Hash()) {
			return nil, false
		}
	}
	return longest, true
}

// heaviest returns the candidate with the most cumulative difficulty. Equal
// weights go to the longer chain, then to the earlier proposal.
func heaviest(game *Game, candidates []*Proposal) *Proposal {
	best := candidates[0]
	bestTD := game.TotalDifficulty(best.Index)
	for _, p := range candidates[1:] {
		td := game.TotalDifficulty(p.Index)
		switch td.Cmp(bestTD) {
		case 1:
			best, bestTD = p, td
		case 0:
			if len(game.Chain(p.Index)) > len(game.Chain(best.Index)) {
				best, bestTD = p, td
			}
		}
	}
	return best
}

// DropGamesAbove abandons the games whose divergence point is above number,
// returning every bond. It follows a rewind of the canonical chain.
func (rg *RelayerGame) DropGamesAbove(number uint64) []uint64 {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	var dropped []uint64
	for _, id := range rg.activeIDs() {
		if id <= number {
			continue
		}
		game := rg.games[id]
		for _, p := range game.Proposals {
			rg.currency.Unlock(p.Relayer, p.Bond)
		}
		delete(rg.games, id)
		rawdb.DeleteGame(rg.db, id)
		dropped = append(dropped, id)
		rg.logger.WithFields(log.Fields{"game": id, "proposals": len(game.Proposals)}).Warn("Relayer game dropped by rewind")
	}
	if len(dropped) > 0 {
		rawdb.WriteActiveGames(rg.db, rg.activeIDs())
	}
	return dropped
}

// SubscribeProposalEvent registers a subscription of ProposalEvent.
func (rg *RelayerGame) SubscribeProposalEvent(ch chan<- ProposalEvent) event.Subscription {
	return rg.scope.Track(rg.proposalFeed.Subscribe(ch))
}

// SubscribeNewRoundEvent registers a subscription of NewRoundEvent.
func (rg *RelayerGame) SubscribeNewRoundEvent(ch chan<- NewRoundEvent) event.Subscription {
	return rg.scope.Track(rg.roundFeed.Subscribe(ch))
}

// SubscribeSettledEvent registers a subscription of SettledEvent.
func (rg *RelayerGame) SubscribeSettledEvent(ch chan<- SettledEvent) event.Subscription {
	return rg.scope.Track(rg.settledFeed.Subscribe(ch))
}

// Stop closes all subscriptions.
func (rg *RelayerGame) Stop() {
	rg.scope.Close()
}

// store persists a game and the active game list. Callers hold mu.
func (rg *RelayerGame) store(game *Game) {
	batch := rg.db.NewBatch()
	rawdb.WriteGame(batch, game.record())
	rawdb.WriteActiveGames(batch, rg.activeIDs())
	if err := batch.Write(); err != nil {
		rg.logger.WithField("err", err).Fatal("Failed to store relayer game")
	}
}

// activeIDs returns the divergence points of the active games in order.
// Callers hold mu.
func (rg *RelayerGame) activeIDs() []uint64 {
	ids := make([]uint64, 0, len(rg.games))
	for id := range rg.games {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (rg *RelayerGame) logProposal(game *Game, p *Proposal, kind ProposalKind) {
	rg.logger.WithFields(log.Fields{
		"game":     game.ID,
		"round":    p.Round,
		"proposal": p.Index,
		"relayer":  p.Relayer,
		"kind":     kind,
		"tip":      game.Tip(p.Index).Number,
		"bond":     p.Bond,
	}).Info("Accepted relayer proposal")
}

func (p *Proposal) copy() *Proposal {
	cpy := *p
	cpy.Headers = append([]common.Hash(nil), p.Headers...)
	cpy.Bond = new(big.Int).Set(p.Bond)
	return &cpy
}

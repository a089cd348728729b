package relayergame

import (
	"math/big"

	mapset "github.com/deckarep/golang-set"
	"github.com/holiman/uint256"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/types"
)

// Proposal is one relayer's claim in a game. A round one proposal carries a
// whole chain from the divergence point, a later one extends its parent with
// more headers. Headers holds only the proposal's own segment.
type Proposal struct {
	Index      int
	Relayer    common.Address
	Round      uint64
	Parent     int // -1 in round one
	Headers    []common.Hash
	Bond       *big.Int
	Eliminated bool
}

// Game is the dispute over the chain following one divergence point. Its ID
// is the number of the canonical head the proposals build on.
type Game struct {
	ID        uint64
	Round     uint64
	Deadline  uint64
	Proposals []*Proposal

	headers map[common.Hash]*types.Header
}

func newGame(id uint64) *Game {
	return &Game{ID: id, Round: 1, headers: make(map[common.Hash]*types.Header)}
}

// Header returns a header of the game's arena.
func (g *Game) Header(hash common.Hash) *types.Header {
	return g.headers[hash]
}

// Chain returns the full chain of a proposal, from the divergence point to
// its tip.
func (g *Game) Chain(index int) []*types.Header {
	var segments [][]common.Hash
	for p := g.Proposals[index]; ; p = g.Proposals[p.Parent] {
		segments = append(segments, p.Headers)
		if p.Parent < 0 {
			break
		}
	}
	var chain []*types.Header
	for i := len(segments) - 1; i >= 0; i-- {
		for _, hash := range segments[i] {
			chain = append(chain, g.headers[hash])
		}
	}
	return chain
}

// Tip returns the last header of a proposal's chain.
func (g *Game) Tip(index int) *types.Header {
	p := g.Proposals[index]
	return g.headers[p.Headers[len(p.Headers)-1]]
}

// TotalDifficulty returns the cumulative difficulty of a proposal's chain.
func (g *Game) TotalDifficulty(index int) *uint256.Int {
	return types.TotalDifficulty(g.Chain(index))
}

// Survivors returns the proposals of a round that are not eliminated.
func (g *Game) Survivors(round uint64) []*Proposal {
	var survivors []*Proposal
	for _, p := range g.Proposals {
		if p.Round == round && !p.Eliminated {
			survivors = append(survivors, p)
		}
	}
	return survivors
}

// chainSet returns the hashes of a proposal's chain.
func (g *Game) chainSet(index int) mapset.Set {
	set := mapset.NewThreadUnsafeSet()
	for _, header := range g.Chain(index) {
		set.Add(header.Hash())
	}
	return set
}

// tipOf returns the index of the proposal ending at hash, or -1.
func (g *Game) tipOf(hash common.Hash) int {
	for _, p := range g.Proposals {
		if p.Headers[len(p.Headers)-1] == hash {
			return p.Index
		}
	}
	return -1
}

// add stores a proposal and its headers in the arena.
func (g *Game) add(relayer common.Address, parent int, headers []*types.Header, bond *big.Int) *Proposal {
	p := &Proposal{
		Index:   len(g.Proposals),
		Relayer: relayer,
		Round:   g.Round,
		Parent:  parent,
		Headers: make([]common.Hash, len(headers)),
		Bond:    bond,
	}
	for i, header := range headers {
		hash := header.Hash()
		p.Headers[i] = hash
		g.headers[hash] = header
	}
	g.Proposals = append(g.Proposals, p)
	return p
}

// copy returns a snapshot with its own header index. Headers themselves are
// never modified once in the arena and are shared.
func (g *Game) copy() *Game {
	cpy := &Game{
		ID:        g.ID,
		Round:     g.Round,
		Deadline:  g.Deadline,
		Proposals: make([]*Proposal, len(g.Proposals)),
		headers:   make(map[common.Hash]*types.Header, len(g.headers)),
	}
	for hash, header := range g.headers {
		cpy.headers[hash] = header
	}
	for i, p := range g.Proposals {
		cpy.Proposals[i] = p.copy()
	}
	return cpy
}

// record returns the persisted form of the game.
func (g *Game) record() *types.GameRecord {
	rec := &types.GameRecord{ID: g.ID, Round: g.Round, Deadline: g.Deadline}
	seen := make(map[common.Hash]struct{}, len(g.headers))
	for _, p := range g.Proposals {
		for _, hash := range p.Headers {
			if _, ok := seen[hash]; ok {
				continue
			}
			seen[hash] = struct{}{}
			rec.Headers = append(rec.Headers, g.headers[hash])
		}
		rec.Proposals = append(rec.Proposals, &types.ProposalRecord{
			Index:      uint64(p.Index),
			Relayer:    p.Relayer,
			Round:      p.Round,
			Parent:     uint64(p.Parent + 1),
			Headers:    p.Headers,
			Bond:       p.Bond,
			Eliminated: p.Eliminated,
		})
	}
	return rec
}

// gameFromRecord restores a game persisted with record.
func gameFromRecord(rec *types.GameRecord) *Game {
	g := &Game{
		ID:       rec.ID,
		Round:    rec.Round,
		Deadline: rec.Deadline,
		headers:  make(map[common.Hash]*types.Header, len(rec.Headers)),
	}
	for _, header := range rec.Headers {
		g.headers[header.Hash()] = header
	}
	for _, p := range rec.Proposals {
		g.Proposals = append(g.Proposals, &Proposal{
			Index:      int(p.Index),
			Relayer:    p.Relayer,
			Round:      p.Round,
			Parent:     int(p.Parent) - 1,
			Headers:    p.Headers,
			Bond:       p.Bond,
			Eliminated: p.Eliminated,
		})
	}
	return g
}

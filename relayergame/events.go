package relayergame

import (
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
)

// ProposalKind tells how a proposal entered its game.
type ProposalKind uint8

const (
	ProposalAffirmed ProposalKind = iota // first proposal, opening the game
	ProposalDisputed                     // conflicting round one proposal
	ProposalExtended                     // challenge in a later round
)

func (k ProposalKind) String() string {
	switch k {
	case ProposalAffirmed:
		return "affirmed"
	case ProposalDisputed:
		return "disputed"
	case ProposalExtended:
		return "extended"
	}
	return "unknown"
}

// ProposalEvent is posted when a proposal is accepted into a game.
type ProposalEvent struct {
	GameID  uint64
	Index   int
	Relayer common.Address
	Round   uint64
	Kind    ProposalKind
	Number  uint64 // tip of the proposed chain
	Bond    *big.Int
}

// NewRoundEvent is posted when a contested game moves to its next round.
type NewRoundEvent struct {
	GameID    uint64
	Round     uint64
	Deadline  uint64
	Survivors int
}

// Payout is an amount paid to or taken from an account.
type Payout struct {
	Account common.Address
	Amount  *big.Int
}

// SettledEvent is posted when a game settles.
type SettledEvent struct {
	GameID   uint64
	Round    uint64
	Winner   int
	Relayer  common.Address
	Number   uint64
	Rewards  []Payout
	Slashes  []Payout
	Treasury *big.Int
}

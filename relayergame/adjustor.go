package relayergame

import (
	"math/big"

	"github.com/dominant-strategies/go-relay/params"
)

// Adjustor supplies the economic and timing parameters of relayer games.
// Implementations must be pure functions of their arguments.
type Adjustor interface {
	// RoundDuration is the number of local blocks a round stays open.
	RoundDuration(round uint64) uint64

	// MaxRounds is the round after which the heaviest proposal wins.
	MaxRounds() uint64

	// MaxActiveGames bounds the number of games open at once.
	MaxActiveGames() int

	// EstimateBond is the bond of a proposal with length headers made in
	// round. It strictly increases with the round.
	EstimateBond(round uint64, length int) *big.Int

	// SlashPolicy is the percentage of a losing bond made in round that is
	// slashed. The rest is returned.
	SlashPolicy(round uint64) uint64

	// TreasuryShare is the percentage of the slashed pool paid to the
	// treasury instead of the winners.
	TreasuryShare() uint64
}

// DefaultAdjustor doubles the bond every round and slashes half of a
// losing bond in the first round and all of it afterwards.
type DefaultAdjustor struct {
	BaseBond    *big.Int // bond per header in round one
	Duration    uint64
	Rounds      uint64
	ActiveGames int
	Treasury    uint64
}

// NewDefaultAdjustor returns the adjustor with the protocol defaults.
func NewDefaultAdjustor(baseBond *big.Int) *DefaultAdjustor {
	return &DefaultAdjustor{
		BaseBond:    baseBond,
		Duration:    params.DefaultRoundDuration,
		Rounds:      params.DefaultMaxRounds,
		ActiveGames: int(params.DefaultMaxActiveGames),
		Treasury:    params.DefaultTreasuryShare,
	}
}

func (a *DefaultAdjustor) RoundDuration(uint64) uint64 { return a.Duration }

func (a *DefaultAdjustor) MaxRounds() uint64 { return a.Rounds }

func (a *DefaultAdjustor) MaxActiveGames() int { return a.ActiveGames }

func (a *DefaultAdjustor) EstimateBond(round uint64, length int) *big.Int {
	if round == 0 {
		round = 1
	}
	bond := new(big.Int).Mul(a.BaseBond, big.NewInt(int64(length)))
	return bond.Lsh(bond, uint(round-1))
}

func (a *DefaultAdjustor) SlashPolicy(round uint64) uint64 {
	if round <= 1 {
		return 50
	}
	return 100
}

func (a *DefaultAdjustor) TreasuryShare() uint64 { return a.Treasury }

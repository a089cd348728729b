package relayergame

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDefaultAdjustor(t *testing.T) {
	a := NewDefaultAdjustor(big.NewInt(100))
	assert.Equal(t, uint64(10), a.RoundDuration(1))
	assert.Equal(t, uint64(3), a.MaxRounds())
	assert.Equal(t, 32, a.MaxActiveGames())
	assert.Equal(t, uint64(20), a.TreasuryShare())

	assert.Equal(t, big.NewInt(300), a.EstimateBond(1, 3))
	assert.Equal(t, big.NewInt(1200), a.EstimateBond(3, 3))
	assert.Equal(t, uint64(50), a.SlashPolicy(1))
	assert.Equal(t, uint64(100), a.SlashPolicy(2))
}

func TestBondGrowsWithRound(t *testing.T) {
	a := NewDefaultAdjustor(big.NewInt(7))
	rapid.Check(t, func(t *rapid.T) {
		round := rapid.Uint64Range(1, 32).Draw(t, "round").(uint64)
		length := rapid.IntRange(1, 256).Draw(t, "length").(int)

		if a.EstimateBond(round+1, length).Cmp(a.EstimateBond(round, length)) <= 0 {
			t.Fatalf("bond of round %d not above round %d", round+1, round)
		}
		if a.SlashPolicy(round) > 100 {
			t.Fatalf("slash policy above 100%%")
		}
	})
}

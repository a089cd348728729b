package currency

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-relay/common"
)

func TestLedger(t *testing.T) {
	var (
		ledger = NewLedger()
		alice  = common.HexToAddress("0xa1")
		bob    = common.HexToAddress("0xb0")
	)
	ledger.Mint(alice, big.NewInt(100))

	require.NoError(t, ledger.Lock(alice, big.NewInt(60)))
	assert.ErrorIs(t, ledger.Lock(alice, big.NewInt(41)), ErrInsufficientBalance)
	assert.ErrorIs(t, ledger.Lock(bob, big.NewInt(1)), ErrInsufficientBalance)
	assert.Equal(t, int64(40), ledger.Balance(alice).Int64())
	assert.Equal(t, int64(60), ledger.Locked(alice).Int64())

	// slashing is capped by the locked balance
	assert.Equal(t, int64(25), ledger.Slash(alice, big.NewInt(25)).Int64())
	assert.Equal(t, int64(35), ledger.Slash(alice, big.NewInt(1000)).Int64())
	assert.Zero(t, ledger.Locked(alice).Sign())

	require.NoError(t, ledger.Lock(alice, big.NewInt(40)))
	ledger.Unlock(alice, big.NewInt(100))
	assert.Equal(t, int64(40), ledger.Balance(alice).Int64())
	assert.Zero(t, ledger.Locked(alice).Sign())

	ledger.Reward(bob, big.NewInt(7))
	assert.Equal(t, int64(7), ledger.Balance(bob).Int64())
	assert.Equal(t, []common.Address{alice, bob}, ledger.Accounts())
}

// Package currency defines the bonding capability relayer games run against
// and an in-memory ledger implementing it.
package currency

//go:generate mockgen -source=currency.go -destination=mock_currency.go -package=currency

import (
	"errors"
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
)

// ErrInsufficientBalance is returned when an account cannot cover a lock.
var ErrInsufficientBalance = errors.New("insufficient balance")

// Currency moves funds between the free and the locked balance of accounts.
type Currency interface {
	// Lock reserves amount of the free balance of account.
	Lock(account common.Address, amount *big.Int) error

	// Unlock returns up to amount of the locked balance to the free balance.
	Unlock(account common.Address, amount *big.Int)

	// Slash burns up to amount of the locked balance and returns how much
	// was actually slashed.
	Slash(account common.Address, amount *big.Int) *big.Int

	// Reward credits amount to the free balance of account.
	Reward(account common.Address, amount *big.Int)
}

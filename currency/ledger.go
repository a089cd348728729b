package currency

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/dominant-strategies/go-relay/common"
)

type account struct {
	free   *big.Int
	locked *big.Int
}

// Ledger is an in-memory Currency.
type Ledger struct {
	mu       sync.Mutex
	accounts map[common.Address]*account
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{accounts: make(map[common.Address]*account)}
}

func (l *Ledger) get(addr common.Address) *account {
	acc, ok := l.accounts[addr]
	if !ok {
		acc = &account{free: new(big.Int), locked: new(big.Int)}
		l.accounts[addr] = acc
	}
	return acc
}

// Mint credits new funds to an account.
func (l *Ledger) Mint(addr common.Address, amount *big.Int) {
	l.Reward(addr, amount)
}

// Lock implements Currency.
func (l *Ledger) Lock(addr common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.get(addr)
	if acc.free.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %v, needs %v", ErrInsufficientBalance, addr, acc.free, amount)
	}
	acc.free.Sub(acc.free, amount)
	acc.locked.Add(acc.locked, amount)
	return nil
}

// Unlock implements Currency.
func (l *Ledger) Unlock(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.get(addr)
	value := minBig(acc.locked, amount)
	acc.locked.Sub(acc.locked, value)
	acc.free.Add(acc.free, value)
}

// Slash implements Currency.
func (l *Ledger) Slash(addr common.Address, amount *big.Int) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.get(addr)
	value := minBig(acc.locked, amount)
	acc.locked.Sub(acc.locked, value)
	return value
}

// Reward implements Currency.
func (l *Ledger) Reward(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acc := l.get(addr)
	acc.free.Add(acc.free, amount)
}

// Balance returns the free balance of an account.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[addr]; ok {
		return new(big.Int).Set(acc.free)
	}
	return new(big.Int)
}

// Locked returns the locked balance of an account.
func (l *Ledger) Locked(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acc, ok := l.accounts[addr]; ok {
		return new(big.Int).Set(acc.locked)
	}
	return new(big.Int)
}

// Accounts returns every account the ledger knows, ordered by address.
func (l *Ledger) Accounts() []common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()

	addrs := make([]common.Address, 0, len(l.accounts))
	for addr := range l.accounts {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Hex() < addrs[j].Hex() })
	return addrs
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

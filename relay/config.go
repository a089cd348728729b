package relay

import (
	"errors"
	"math/big"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/params"
	"github.com/dominant-strategies/go-relay/relayergame"
)

// Config holds the settings of a relay.
type Config struct {
	ConfirmPeriod    uint64
	MaxReorgDepth    uint64
	ApproveThreshold uint64
	RejectThreshold  uint64
	Members          []common.Address

	MaxRounds      uint64
	RoundDuration  uint64
	BaseBond       *big.Int
	MaxActiveGames int
	Treasury       common.Address
	TreasuryShare  uint64

	// MmrHasher names the MMR merge hash, keccak or blake3.
	MmrHasher string

	Ethash ethash.Config

	// Adjustor replaces the default adjustor built from the fields above.
	Adjustor relayergame.Adjustor

	ApproveOrigin core.Origin
	RejectOrigin  core.Origin
}

// DefaultConfig returns the relay defaults.
func DefaultConfig() *Config {
	return &Config{
		ConfirmPeriod:    params.DefaultConfirmPeriod,
		MaxReorgDepth:    params.DefaultMaxReorgDepth,
		ApproveThreshold: params.DefaultVoteThreshold,
		RejectThreshold:  params.DefaultVoteThreshold,
		MaxRounds:        params.DefaultMaxRounds,
		RoundDuration:    params.DefaultRoundDuration,
		BaseBond:         big.NewInt(params.DefaultBaseBond),
		MaxActiveGames:   int(params.DefaultMaxActiveGames),
		TreasuryShare:    params.DefaultTreasuryShare,
		MmrHasher:        "keccak",
	}
}

var errNotPositive = errors.New("must be positive")

func positive(value interface{}) error {
	if b, _ := value.(*big.Int); b != nil && b.Sign() <= 0 {
		return errNotPositive
	}
	return nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxReorgDepth, validation.Required),
		validation.Field(&c.ApproveThreshold, validation.Required, validation.Max(uint64(100))),
		validation.Field(&c.RejectThreshold, validation.Required, validation.Max(uint64(100))),
		validation.Field(&c.MaxRounds, validation.Required),
		validation.Field(&c.RoundDuration, validation.Required),
		validation.Field(&c.BaseBond, validation.Required, validation.By(positive)),
		validation.Field(&c.MaxActiveGames, validation.Required, validation.Min(1)),
		validation.Field(&c.TreasuryShare, validation.Max(uint64(100))),
		validation.Field(&c.MmrHasher, validation.In("keccak", "blake3")),
	)
}

// adjustor returns the configured adjustor.
func (c *Config) adjustor() relayergame.Adjustor {
	if c.Adjustor != nil {
		return c.Adjustor
	}
	return &relayergame.DefaultAdjustor{
		BaseBond:    c.BaseBond,
		Duration:    c.RoundDuration,
		Rounds:      c.MaxRounds,
		ActiveGames: c.MaxActiveGames,
		Treasury:    c.TreasuryShare,
	}
}

// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package params

import (
	"fmt"
	"math"
	"math/big"
	"sort"
)

// Different Network names
const (
	MainnetName = "mainnet"
	RopstenName = "ropsten"
	DevName     = "dev"
)

var (
	// MainnetChainConfig is the difficulty schedule of Ethereum mainnet up to
	// the Gray Glacier fork.
	MainnetChainConfig = &ChainConfig{
		Name: MainnetName,
		Ethash: &EthashConfig{
			MinimumDifficulty:                    big.NewInt(0x20000),
			DifficultyBoundDivisor:               big.NewInt(0x0800),
			DurationLimit:                        0x0d,
			HomesteadTransition:                  1_150_000,
			EIP100bTransition:                    4_370_000,
			DifficultyIncrementDivisor:           10,
			MetropolisDifficultyIncrementDivisor: 9,
			BombDefuseTransition:                 math.MaxUint64,
			BombDelays: []BombDelay{
				{Block: 4_370_000, Delay: 3_000_000},
				{Block: 7_280_000, Delay: 2_000_000},
				{Block: 9_200_000, Delay: 4_000_000},
				{Block: 12_965_000, Delay: 700_000},
				{Block: 13_773_000, Delay: 1_000_000},
				{Block: 15_050_000, Delay: 700_000},
			},
		},
	}

	// RopstenChainConfig is the difficulty schedule of the Ropsten test network.
	RopstenChainConfig = &ChainConfig{
		Name: RopstenName,
		Ethash: &EthashConfig{
			MinimumDifficulty:                    big.NewInt(0x20000),
			DifficultyBoundDivisor:               big.NewInt(0x0800),
			DurationLimit:                        0x0d,
			HomesteadTransition:                  0,
			EIP100bTransition:                    1_700_000,
			DifficultyIncrementDivisor:           10,
			MetropolisDifficultyIncrementDivisor: 9,
			BombDefuseTransition:                 math.MaxUint64,
			BombDelays: []BombDelay{
				{Block: 1_700_000, Delay: 3_000_000},
				{Block: 4_230_000, Delay: 2_000_000},
				{Block: 7_117_117, Delay: 4_000_000},
				{Block: 10_499_401, Delay: 700_000},
			},
		},
	}

	// DevChainConfig is a low difficulty schedule without difficulty bomb,
	// used by local development networks and tests.
	DevChainConfig = &ChainConfig{
		Name: DevName,
		Ethash: &EthashConfig{
			MinimumDifficulty:                    big.NewInt(16),
			DifficultyBoundDivisor:               big.NewInt(16),
			DurationLimit:                        0x0d,
			HomesteadTransition:                  0,
			EIP100bTransition:                    0,
			DifficultyIncrementDivisor:           10,
			MetropolisDifficultyIncrementDivisor: 9,
			BombDefuseTransition:                 0,
		},
	}
)

// ChainConfig selects the consensus rules of the relayed chain.
type ChainConfig struct {
	Name   string        `json:"name"`
	Ethash *EthashConfig `json:"ethash"`
}

// BombDelay postpones the difficulty bomb by Delay blocks from Block onwards.
type BombDelay struct {
	Block uint64 `json:"block"`
	Delay uint64 `json:"delay"`
}

// EthashConfig holds the difficulty adjustment parameters of an Ethash chain.
type EthashConfig struct {
	MinimumDifficulty      *big.Int `json:"minimumDifficulty"`
	DifficultyBoundDivisor *big.Int `json:"difficultyBoundDivisor"`
	// Frontier rule: blocks slower than this many seconds lower the difficulty.
	DurationLimit                        uint64      `json:"durationLimit"`
	HomesteadTransition                  uint64      `json:"homesteadTransition"`
	EIP100bTransition                    uint64      `json:"eip100bTransition"`
	DifficultyIncrementDivisor           uint64      `json:"difficultyIncrementDivisor"`
	MetropolisDifficultyIncrementDivisor uint64      `json:"metropolisDifficultyIncrementDivisor"`
	BombDefuseTransition                 uint64      `json:"bombDefuseTransition"`
	BombDelays                           []BombDelay `json:"bombDelays"`
}

func (c *ChainConfig) String() string {
	return fmt.Sprintf("{Name: %s Ethash: %v}", c.Name, c.Ethash)
}

func (c *EthashConfig) String() string {
	return fmt.Sprintf("{MinimumDifficulty: %v BoundDivisor: %v Homestead: %d EIP100b: %d BombDelays: %d}",
		c.MinimumDifficulty, c.DifficultyBoundDivisor, c.HomesteadTransition, c.EIP100bTransition, len(c.BombDelays))
}

// BombDelayAt returns the total bomb delay in effect at the given block.
func (c *EthashConfig) BombDelayAt(number uint64) uint64 {
	delays := make([]BombDelay, len(c.BombDelays))
	copy(delays, c.BombDelays)
	sort.Slice(delays, func(i, j int) bool { return delays[i].Block < delays[j].Block })

	var total uint64
	for _, d := range delays {
		if number >= d.Block {
			total += d.Delay
		}
	}
	return total
}

// ChainConfigByName returns the preset for a network name.
func ChainConfigByName(name string) (*ChainConfig, error) {
	switch name {
	case MainnetName:
		return MainnetChainConfig, nil
	case RopstenName:
		return RopstenChainConfig, nil
	case DevName:
		return DevChainConfig, nil
	}
	return nil, fmt.Errorf("unknown network %q", name)
}

// Copyright 2017 The go-ethereum Authors
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

package ethash

import (
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/params"
)

// maxDifficultyDrop caps the Homestead adjustment factor.
const maxDifficultyDrop = 99

// CalcDifficulty returns the difficulty a block created at time on top of
// parent must have under config.
//
// Frontier:
//
//	diff = parent_diff ± parent_diff / bound_divisor
//
// Homestead (EIP-2) and Byzantium (EIP-100):
//
//	diff = parent_diff + parent_diff / bound_divisor *
//	       max(threshold - (timestamp - parent_timestamp) // divisor, -99)
//
// where threshold is 2 after Byzantium if the parent has uncles, 1 otherwise.
// The difficulty bomb 2^(period - 2) is added on top, with period derived
// from the block number minus the configured bomb delays.
func CalcDifficulty(config *params.EthashConfig, time uint64, parent *types.Header) *big.Int {
	number := parent.Number + 1
	parentDifficulty := parent.Difficulty
	if parentDifficulty == nil {
		parentDifficulty = config.MinimumDifficulty
	}
	var elapsed uint64
	if time > parent.Time {
		elapsed = time - parent.Time
	}
	// holds intermediate values to make the algo easier to read & audit
	bound := new(big.Int).Div(parentDifficulty, config.DifficultyBoundDivisor)
	target := new(big.Int)

	if number < config.HomesteadTransition {
		if elapsed >= config.DurationLimit {
			target.Sub(parentDifficulty, bound)
		} else {
			target.Add(parentDifficulty, bound)
		}
	} else {
		divisor, threshold := config.DifficultyIncrementDivisor, uint64(1)
		if number >= config.EIP100bTransition {
			divisor = config.MetropolisDifficultyIncrementDivisor
			if parent.HasUncles() {
				threshold = 2
			}
		}
		increment := elapsed / divisor
		if increment <= threshold {
			target.Mul(bound, new(big.Int).SetUint64(threshold-increment))
			target.Add(parentDifficulty, target)
		} else {
			drop := increment - threshold
			if drop > maxDifficultyDrop {
				drop = maxDifficultyDrop
			}
			target.Mul(bound, new(big.Int).SetUint64(drop))
			target.Sub(parentDifficulty, target)
			if target.Sign() < 0 {
				target.SetUint64(0)
			}
		}
	}
	// minimum difficulty can ever be (before exponential factor)
	if target.Cmp(config.MinimumDifficulty) < 0 {
		target.Set(config.MinimumDifficulty)
	}
	if number < config.BombDefuseTransition {
		// calculate a fake block number for the ice-age delay
		fakeBlockNumber := uint64(0)
		if delay := config.BombDelayAt(number); number > delay {
			fakeBlockNumber = number - delay
		}
		// the exponential factor, commonly referred to as "the bomb"
		if period := fakeBlockNumber / params.ExpDiffPeriod; period > 1 {
			target.Add(target, new(big.Int).Lsh(common.Big1, uint(period-2)))
		}
	}
	return target
}

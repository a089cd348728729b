// Copyright 2015 The go-ethereum Authors
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

const (
	EpochLength          uint64 = 30000  // Blocks per Ethash epoch
	ExpDiffPeriod        uint64 = 100000 // Blocks per difficulty bomb doubling
	MaximumExtraDataSize uint64 = 32     // Maximum size extra data may be after Genesis.

	DefaultConfirmPeriod  uint64 = 0   // Local blocks a settled chain stays pending
	DefaultMaxReorgDepth  uint64 = 128 // Deepest governance reorg of the canonical chain
	DefaultRoundDuration  uint64 = 10  // Local blocks per relayer game round
	DefaultMaxRounds      uint64 = 3
	DefaultMaxActiveGames uint64 = 32
	DefaultTreasuryShare  uint64 = 20 // Percent of slashed bonds sent to the treasury
	DefaultVoteThreshold  uint64 = 60 // Percent of committee votes deciding a pending parcel

	DefaultBaseBond int64 = 1_000_000_000 // Round one bond per proposed header
)

const (
	DevDatasetRows uint64 = 1024 // Rows of the synthetic dataset of development networks
	DevDatasetSeed uint64 = 0
)

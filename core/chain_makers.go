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

package core

import (
	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/params"
)

// HeaderGen creates headers for testing.
// See GenerateChain for a detailed explanation.
type HeaderGen struct {
	i      int
	parent *types.Header
	header *types.Header
}

// SetCoinbase sets the coinbase of the generated header.
func (g *HeaderGen) SetCoinbase(addr common.Address) {
	g.header.Coinbase = addr
}

// SetExtra sets the extra data field of the generated header.
func (g *HeaderGen) SetExtra(data []byte) {
	g.header.Extra = data
}

// SetUncleHash marks the generated header as having uncles, which raises the
// difficulty of its child.
func (g *HeaderGen) SetUncleHash(hash common.Hash) {
	g.header.UncleHash = hash
}

// OffsetTime sets the timestamp of the header to seconds after its parent.
// The difficulty follows from it.
func (g *HeaderGen) OffsetTime(seconds uint64) {
	g.header.Time = g.parent.Time + seconds
}

// Number returns the block number of the header being generated.
func (g *HeaderGen) Number() uint64 {
	return g.header.Number
}

// PrevHeader returns the header generated before this one.
func (g *HeaderGen) PrevHeader() *types.Header {
	return g.parent
}

// Index returns the position of the header in the generated chain.
func (g *HeaderGen) Index() int {
	return g.i
}

// GenerateChain creates a chain of n mined headers on top of parent. The
// headers are sealed against dataset, so they verify with an engine whose DAG
// roots and dataset size come from it.
//
// The generator function is called with a new header generator for every
// header. By default headers are 10 seconds apart, which keeps the dev
// difficulty constant; gen can change the timestamp, coinbase and extra data
// before the header is mined. gen may be nil.
func GenerateChain(config *params.EthashConfig, parent *types.Header, dataset *ethash.TestDataset, n int, gen func(int, *HeaderGen)) []*types.HeaderThing {
	things := make([]*types.HeaderThing, 0, n)
	for i := 0; i < n; i++ {
		g := &HeaderGen{
			i:      i,
			parent: parent,
			header: &types.Header{
				ParentHash: parent.Hash(),
				UncleHash:  types.EmptyUncleHash,
				Number:     parent.Number + 1,
				GasLimit:   parent.GasLimit,
				Time:       parent.Time + 10,
			},
		}
		if gen != nil {
			gen(i, g)
		}
		g.header.Difficulty = ethash.CalcDifficulty(config, g.header.Time, parent)
		proof := dataset.Mine(g.header, 0)

		things = append(things, &types.HeaderThing{Header: g.header, Proof: proof})
		parent = g.header
	}
	return things
}

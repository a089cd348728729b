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

// Package consensus implements different Ethereum consensus engines.
package consensus

import (
	"context"
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/types"
)

// DagRootReader gives access to the trusted per-epoch DAG Merkle roots.
type DagRootReader interface {
	// DagRoot returns the committed root of the dataset for an epoch.
	DagRoot(epoch uint64) (common.H128, bool)
}

// Engine is a stateless proof-of-work verifier for relayed headers. All methods
// are safe for concurrent use and never touch chain state.
type Engine interface {
	// VerifyHeader checks the seal of header against the supplied dataset
	// proofs. If parent is non-nil the difficulty is also checked against
	// the adjustment formula.
	VerifyHeader(header, parent *types.Header, proof []types.DoubleNodeWithProof) error

	// VerifyHeaders verifies a linked sequence of header things concurrently.
	// parent is the header preceding things[0]. The error of the lowest
	// failing index is returned.
	VerifyHeaders(ctx context.Context, parent *types.Header, things []*types.HeaderThing) error

	// CalcDifficulty is the difficulty adjustment algorithm. It returns the
	// difficulty that a new block should have.
	CalcDifficulty(time uint64, parent *types.Header) *big.Int
}

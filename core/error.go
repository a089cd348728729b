// Copyright 2014 The go-ethereum Authors
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
	"errors"
)

var (
	// ErrNoGenesis is returned when there is no Genesis header.
	ErrNoGenesis = errors.New("genesis not found in chain")

	// ErrGenesisMismatch is returned when the database was initialised with
	// a different genesis header.
	ErrGenesisMismatch = errors.New("genesis header mismatch")

	// ErrEmptyChain is returned when a header chain without headers is
	// submitted for validation.
	ErrEmptyChain = errors.New("empty header chain")

	// ErrNonContiguousHeaders is returned when consecutive headers are not
	// linked by number and parent hash.
	ErrNonContiguousHeaders = errors.New("non contiguous headers")

	// ErrWrongDivergencePoint is returned when a chain does not start right
	// after the point it claims to extend.
	ErrWrongDivergencePoint = errors.New("wrong divergence point")

	// ErrTooDeepReorg is returned when a rewind would drop more canonical
	// headers than allowed.
	ErrTooDeepReorg = errors.New("reorg too deep")

	// ErrBadOrigin is returned when a governance call is made by a caller
	// the origin predicate does not accept.
	ErrBadOrigin = errors.New("bad origin")

	// ErrNotMember is returned when a vote is cast by an account outside of
	// the technical committee.
	ErrNotMember = errors.New("not a committee member")

	// ErrAlreadyVoted is returned when a member repeats its vote.
	ErrAlreadyVoted = errors.New("already voted")

	// ErrPendingParcelNotFound is returned when no settled chain is waiting
	// for confirmation at the given game.
	ErrPendingParcelNotFound = errors.New("pending parcel not found")
)

var chainErrors = []error{
	ErrEmptyChain,
	ErrNonContiguousHeaders,
	ErrWrongDivergencePoint,
	ErrTooDeepReorg,
}

// IsChainError reports whether err is a header chain rejection.
func IsChainError(err error) bool {
	for _, target := range chainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

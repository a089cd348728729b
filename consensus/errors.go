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

package consensus

import "errors"

var (
	// ErrUnknownEpoch is returned when no DAG root is committed for the
	// epoch of the header.
	ErrUnknownEpoch = errors.New("unknown ethash epoch")

	// ErrMerkleProofMismatch is returned when a dataset proof does not
	// recompute to the committed DAG root.
	ErrMerkleProofMismatch = errors.New("dag merkle proof mismatch")

	// ErrProofCountMismatch is returned when the number of supplied dataset
	// proofs differs from the number of hashimoto accesses.
	ErrProofCountMismatch = errors.New("wrong number of dag proofs")

	// ErrInvalidProofOfWork is returned when the seal does not satisfy the
	// difficulty of the header.
	ErrInvalidProofOfWork = errors.New("invalid proof-of-work")

	// ErrInvalidMixDigest is returned when the recomputed mix digest differs
	// from the one committed in the header.
	ErrInvalidMixDigest = errors.New("invalid mix digest")

	// ErrDifficultyOutOfBounds is returned when the difficulty is below the
	// chain minimum or does not follow from the parent.
	ErrDifficultyOutOfBounds = errors.New("difficulty out of bounds")

	// ErrOlderBlockTime is returned when a header is not younger than its parent.
	ErrOlderBlockTime = errors.New("timestamp older than parent")

	// ErrHeaderHashMismatch is returned when the hash delivered with a header
	// is not the hash of its fields.
	ErrHeaderHashMismatch = errors.New("header hash mismatch")

	// ErrUnknownAncestor is returned when validating a header requires the
	// retrieval of an unknown ancestor.
	ErrUnknownAncestor = errors.New("unknown ancestor")
)

var powErrors = []error{
	ErrUnknownEpoch,
	ErrMerkleProofMismatch,
	ErrProofCountMismatch,
	ErrInvalidProofOfWork,
	ErrInvalidMixDigest,
	ErrDifficultyOutOfBounds,
	ErrOlderBlockTime,
	ErrHeaderHashMismatch,
}

// IsPowError reports whether err is a proof-of-work rejection.
func IsPowError(err error) bool {
	for _, target := range powErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

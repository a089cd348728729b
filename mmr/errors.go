package mmr

import "errors"

var (
	// ErrPositionOutOfRange is returned when a proof is requested for a
	// position or size the MMR does not cover.
	ErrPositionOutOfRange = errors.New("mmr position out of range")

	// ErrInvalidMmrSize is returned for a node count no MMR can have.
	ErrInvalidMmrSize = errors.New("invalid mmr size")

	// ErrNotLeaf is returned when a proof is requested for an internal node.
	ErrNotLeaf = errors.New("mmr position is not a leaf")

	// ErrCorruptedProof is returned when a proof has too few or too many
	// items for its MMR size.
	ErrCorruptedProof = errors.New("corrupted mmr proof")

	// ErrInconsistentStore is returned when nodes are appended anywhere but
	// at the end of a store.
	ErrInconsistentStore = errors.New("inconsistent mmr store")
)

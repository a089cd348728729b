package mmr

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"lukechampine.com/blake3"

	"github.com/dominant-strategies/go-relay/common"
)

// Merger hashes two child nodes into their parent. The order matters: left
// is always the node at the lower position.
type Merger interface {
	Merge(left, right common.Hash) common.Hash
}

// KeccakMerger merges with keccak256(left || right).
type KeccakMerger struct{}

func (KeccakMerger) Merge(left, right common.Hash) common.Hash {
	return common.BytesToHash(crypto.Keccak256(left[:], right[:]))
}

// Blake3Merger merges with blake3-256(left || right).
type Blake3Merger struct{}

func (Blake3Merger) Merge(left, right common.Hash) common.Hash {
	var data [2 * common.HashLength]byte
	copy(data[:common.HashLength], left[:])
	copy(data[common.HashLength:], right[:])
	return common.Hash(blake3.Sum256(data[:]))
}

// MergerByName returns the merger configured by name.
func MergerByName(name string) (Merger, error) {
	switch name {
	case "", "keccak":
		return KeccakMerger{}, nil
	case "blake3":
		return Blake3Merger{}, nil
	}
	return nil, fmt.Errorf("unknown mmr hasher %q", name)
}

package ethash

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/sha256-simd"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/core/types"
)

// truncate keeps the low 16 bytes of a sha256 digest.
func truncate(sum [32]byte) common.H128 {
	var h common.H128
	copy(h[:], sum[16:])
	return h
}

// hashH128 combines two tree nodes. Each node is placed in the low half of a
// 32 byte word before hashing.
func hashH128(l, r common.H128) common.H128 {
	var data [64]byte
	copy(data[16:32], l[:])
	copy(data[48:64], r[:])
	return truncate(sha256.Sum256(data[:]))
}

// dagLeaf hashes a dataset row, in the byte order the proofs carry it.
func dagLeaf(nodes [2]common.H512) common.H128 {
	var data [2 * common.H512Length]byte
	copy(data[:common.H512Length], nodes[0][:])
	copy(data[common.H512Length:], nodes[1][:])
	return truncate(sha256.Sum256(data[:]))
}

// applyMerkleProof recomputes the DAG root from a dataset row and its path.
// Bit i of index selects whether the running hash is the left (0) or the
// right (1) operand at step i.
func applyMerkleProof(node *types.DoubleNodeWithProof, index uint64) common.H128 {
	leaf := dagLeaf(node.DagNodes)
	for i, sibling := range node.Proof {
		if (index>>uint(i))%2 == 0 {
			leaf = hashH128(leaf, sibling)
		} else {
			leaf = hashH128(sibling, leaf)
		}
	}
	return leaf
}

// nodeWords converts a proof node into the dataset's little endian words. The
// proof carries each 32 byte half of a node reversed.
func nodeWords(node common.H512) []uint32 {
	var data [common.H512Length]byte
	for i := 0; i < 32; i++ {
		data[i] = node[31-i]
		data[32+i] = node[63-i]
	}
	words := make([]uint32, hashWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

// provenLookup returns a hashimoto dataset lookup served from Merkle proven
// rows. Every row serves two consecutive lookups and its path is checked
// against root on the first one.
func provenLookup(root common.H128, proof []types.DoubleNodeWithProof) func(index uint32) ([]uint32, error) {
	calls := 0
	return func(index uint32) ([]uint32, error) {
		call := calls
		calls++
		if call/2 >= len(proof) {
			return nil, consensus.ErrProofCountMismatch
		}
		node := &proof[call/2]
		if call%2 == 0 {
			if got := applyMerkleProof(node, uint64(index/2)); got != root {
				return nil, fmt.Errorf("%w: row %d have %s want %s", consensus.ErrMerkleProofMismatch, index/2, got, root)
			}
		}
		return nodeWords(node.DagNodes[call%2]), nil
	}
}

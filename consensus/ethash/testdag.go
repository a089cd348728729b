package ethash

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/types"
)

// TestDataset is a tiny in-memory stand-in for an epoch dataset. It is
// committed to with the same Merkle layout as real DAG roots, so headers
// mined against it verify through the regular proven path once its root is
// registered for the epoch and its size is installed with Config.DatasetSize.
type TestDataset struct {
	items  [][]uint32      // 64 byte dataset items as little endian words
	layers [][]common.H128 // merkle tree, leaves first
}

// NewTestDataset generates a dataset of rows 128 byte rows from seed. rows
// must be a power of two.
func NewTestDataset(rows int, seed uint64) *TestDataset {
	if rows < 2 || rows&(rows-1) != 0 {
		panic(fmt.Sprintf("test dataset rows must be a power of two, have %d", rows))
	}
	keccak512 := makeHasher(sha3.NewLegacyKeccak512())

	d := &TestDataset{items: make([][]uint32, 2*rows)}
	var input [16]byte
	binary.LittleEndian.PutUint64(input[:], seed)
	item := make([]byte, hashBytes)
	for i := range d.items {
		binary.LittleEndian.PutUint64(input[8:], uint64(i))
		keccak512(item, input[:])
		words := make([]uint32, hashWords)
		for j := range words {
			words[j] = binary.LittleEndian.Uint32(item[j*4:])
		}
		d.items[i] = words
	}
	leaves := make([]common.H128, rows)
	for row := range leaves {
		leaves[row] = dagLeaf(d.nodes(uint32(row)))
	}
	d.layers = [][]common.H128{leaves}
	for level := leaves; len(level) > 1; {
		next := make([]common.H128, len(level)/2)
		for i := range next {
			next[i] = hashH128(level[2*i], level[2*i+1])
		}
		d.layers = append(d.layers, next)
		level = next
	}
	return d
}

// Root returns the DAG root committing to the dataset.
func (d *TestDataset) Root() common.H128 {
	return d.layers[len(d.layers)-1][0]
}

// Size returns the dataset size in bytes.
func (d *TestDataset) Size() uint64 {
	return uint64(len(d.items)) * hashBytes
}

// DatasetSize reports the dataset size for any epoch. It fits Config.DatasetSize.
func (d *TestDataset) DatasetSize(uint64) uint64 {
	return d.Size()
}

// RootTable returns a DAG root table with the dataset registered for the
// given number of epochs starting at zero.
func (d *TestDataset) RootTable(epochs int) *DagRootTable {
	roots := make([]common.H128, epochs)
	for i := range roots {
		roots[i] = d.Root()
	}
	return &DagRootTable{Roots: roots}
}

// nodes returns both items of a row in the byte order proofs carry them.
func (d *TestDataset) nodes(row uint32) [2]common.H512 {
	var nodes [2]common.H512
	for n := 0; n < 2; n++ {
		var data [hashBytes]byte
		for j, w := range d.items[2*row+uint32(n)] {
			binary.LittleEndian.PutUint32(data[j*4:], w)
		}
		for i := 0; i < 32; i++ {
			nodes[n][31-i] = data[i]
			nodes[n][63-i] = data[32+i]
		}
	}
	return nodes
}

// proof builds the Merkle path of a row.
func (d *TestDataset) proof(row uint32) types.DoubleNodeWithProof {
	path := make([]common.H128, 0, len(d.layers)-1)
	idx := row
	for _, level := range d.layers[:len(d.layers)-1] {
		path = append(path, level[idx^1])
		idx >>= 1
	}
	return types.DoubleNodeWithProof{DagNodes: d.nodes(row), Proof: path}
}

// Prove runs hashimoto for the header's seal and returns the mix digest and
// the proofs of every row read, in access order.
func (d *TestDataset) Prove(header *types.Header) (common.Hash, []types.DoubleNodeWithProof) {
	var rows []uint32
	lookup := func(index uint32) ([]uint32, error) {
		if index%2 == 0 {
			rows = append(rows, index/2)
		}
		return d.items[index], nil
	}
	digest, _, _ := hashimoto(header.SealHash(), header.Nonce.Uint64(), d.Size(), lookup)

	proofs := make([]types.DoubleNodeWithProof, len(rows))
	for i, row := range rows {
		proofs[i] = d.proof(row)
	}
	return common.BytesToHash(digest), proofs
}

// Mine searches nonces from start until the header's seal satisfies its
// difficulty. The header's nonce and mix digest are updated in place and the
// dataset proofs of the winning seal are returned.
func (d *TestDataset) Mine(header *types.Header, start uint64) []types.DoubleNodeWithProof {
	target := new(uint256.Int).Div(common.MaxU256, header.DifficultyU256())
	sealHash := header.SealHash()
	lookup := func(index uint32) ([]uint32, error) { return d.items[index], nil }

	for nonce := start; ; nonce++ {
		_, result, _ := hashimoto(sealHash, nonce, d.Size(), lookup)
		if new(uint256.Int).SetBytes(result).Cmp(target) <= 0 {
			header.Nonce = common.EncodeNonce(nonce)
			digest, proofs := d.Prove(header)
			header.MixDigest = digest
			return proofs
		}
	}
}

// ForgeNonce replaces the header's nonce with one whose seal misses the
// difficulty boundary, keeping the mix digest.
func ForgeNonce(header *types.Header) {
	target := new(uint256.Int).Div(common.MaxU256, header.DifficultyU256())
	sealHash := header.SealHash()
	for nonce := header.Nonce.Uint64() + 1; ; nonce++ {
		result := new(uint256.Int).SetBytes(quickResult(sealHash, nonce, header.MixDigest))
		if result.Gt(target) {
			header.Nonce = common.EncodeNonce(nonce)
			return
		}
	}
}

package mmr

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/rawdb"
)

func leafHash(i uint64) common.Hash {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return common.BytesToHash(crypto.Keccak256(b[:]))
}

func buildMMR(t require.TestingT, merger Merger, store Store, n uint64) *MMR {
	m := New(merger, store)
	for i := uint64(0); i < n; i++ {
		pos, err := m.Append(leafHash(i))
		require.NoError(t, err)
		require.Equal(t, LeafIndexToPos(i), pos)
	}
	return m
}

func TestEmptyRoot(t *testing.T) {
	m := New(KeccakMerger{}, NewMemoryStore())
	assert.Equal(t, common.Hash{}, m.Root())
	assert.Equal(t, uint64(0), m.LeafCount())

	_, err := m.GenProof(0, 0)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestKnownRoots(t *testing.T) {
	k := KeccakMerger{}
	l0, l1, l2 := leafHash(0), leafHash(1), leafHash(2)

	m := buildMMR(t, k, NewMemoryStore(), 1)
	assert.Equal(t, l0, m.Root())

	m = buildMMR(t, k, NewMemoryStore(), 3)
	assert.Equal(t, uint64(4), m.Size())
	assert.Equal(t, k.Merge(l2, k.Merge(l0, l1)), m.Root())

	want := common.BytesToHash(crypto.Keccak256(l2[:], crypto.Keccak256(l0[:], l1[:])))
	assert.Equal(t, want, m.Root())
}

func TestGenProofErrors(t *testing.T) {
	m := buildMMR(t, KeccakMerger{}, NewMemoryStore(), 5)

	_, err := m.GenProof(2, m.Size())
	assert.ErrorIs(t, err, ErrNotLeaf)
	_, err = m.GenProof(0, m.Size()+1)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
	_, err = m.GenProofForLeaf(3, 2)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
	_, err = m.GenProofForLeaf(1, 5)
	assert.ErrorIs(t, err, ErrPositionOutOfRange)
}

func TestInvalidSizeRejected(t *testing.T) {
	k := KeccakMerger{}
	forged := common.HexToHash("0xdeadbeef")

	m := buildMMR(t, k, NewMemoryStore(), 3)
	root := m.Root()
	// size 5 puts position 4 under no peak, the left peak alone bags to root
	proof := NewProof(5, []common.Hash{m.node(2), m.node(3)}, k)
	assert.False(t, proof.Verify(root, 4, forged))
	_, err := proof.CalculateRoot(4, forged)
	assert.ErrorIs(t, err, ErrInvalidMmrSize)

	single := buildMMR(t, k, NewMemoryStore(), 1)
	assert.False(t, NewProof(2, []common.Hash{leafHash(0)}, k).Verify(single.Root(), 1, forged))

	_, err = m.GenProof(1, 2)
	assert.ErrorIs(t, err, ErrInvalidMmrSize)
	_, err = m.RootAt(2)
	assert.ErrorIs(t, err, ErrInvalidMmrSize)

	root, err = m.RootAt(3)
	require.NoError(t, err)
	assert.Equal(t, m.node(2), root)
}

func TestProofRoundTrip(t *testing.T) {
	for _, merger := range []Merger{KeccakMerger{}, Blake3Merger{}} {
		rapid.Check(t, func(t *rapid.T) {
			n := rapid.Uint64Range(1, 300).Draw(t, "leaves").(uint64)
			m := buildMMR(t, merger, NewMemoryStore(), n)
			assert.Equal(t, n, m.LeafCount())

			last := rapid.Uint64Range(0, n-1).Draw(t, "last").(uint64)
			leaf := rapid.Uint64Range(0, last).Draw(t, "leaf").(uint64)

			proof, err := m.GenProofForLeaf(leaf, last)
			require.NoError(t, err)
			root, err := m.RootAt(LeafIndexToMmrSize(last))
			require.NoError(t, err)

			if !proof.Verify(root, LeafIndexToPos(leaf), leafHash(leaf)) {
				t.Fatalf("proof of leaf %d at last leaf %d does not verify", leaf, last)
			}
			if !VerifyLeaf(merger, root, last, leaf, leafHash(leaf), proof.Items) {
				t.Fatalf("leaf %d not verified by index", leaf)
			}
			if proof.Verify(root, LeafIndexToPos(leaf), leafHash(leaf+1)) {
				t.Fatalf("proof verifies a foreign leaf")
			}
			if len(proof.Items) == 0 {
				return
			}
			i := rapid.IntRange(0, len(proof.Items)-1).Draw(t, "item").(int)
			bit := rapid.IntRange(0, 255).Draw(t, "bit").(int)
			tampered := append([]common.Hash(nil), proof.Items...)
			tampered[i][bit/8] ^= 1 << (bit % 8)
			if NewProof(proof.MmrSize, tampered, merger).Verify(root, LeafIndexToPos(leaf), leafHash(leaf)) {
				t.Fatalf("tampered item %d still verifies", i)
			}
			if NewProof(proof.MmrSize, proof.Items[:len(proof.Items)-1], merger).Verify(root, LeafIndexToPos(leaf), leafHash(leaf)) {
				t.Fatalf("truncated proof still verifies")
			}
		})
	}
}

func TestEveryLeafVerifies(t *testing.T) {
	m := buildMMR(t, KeccakMerger{}, NewMemoryStore(), 37)
	root := m.Root()
	for i := uint64(0); i < 37; i++ {
		proof, err := m.GenProof(LeafIndexToPos(i), m.Size())
		require.NoError(t, err)
		assert.True(t, proof.Verify(root, LeafIndexToPos(i), leafHash(i)), "leaf %d", i)
	}
	proof, err := m.GenProof(0, m.Size())
	require.NoError(t, err)
	_, err = NewProof(proof.MmrSize, append(proof.Items, common.Hash{}), KeccakMerger{}).CalculateRoot(0, leafHash(0))
	assert.ErrorIs(t, err, ErrCorruptedProof)
}

func TestMergersDiffer(t *testing.T) {
	keccak := buildMMR(t, KeccakMerger{}, NewMemoryStore(), 4)
	blake := buildMMR(t, Blake3Merger{}, NewMemoryStore(), 4)
	assert.NotEqual(t, keccak.Root(), blake.Root())

	merger, err := MergerByName("blake3")
	require.NoError(t, err)
	assert.Equal(t, Blake3Merger{}, merger)
	_, err = MergerByName("sha1")
	assert.Error(t, err)
}

func TestDatabaseStore(t *testing.T) {
	db := rawdb.NewMemoryDatabase()
	m := buildMMR(t, KeccakMerger{}, NewDatabaseStore(db), 11)
	memory := buildMMR(t, KeccakMerger{}, NewMemoryStore(), 11)
	assert.Equal(t, memory.Root(), m.Root())
	assert.Equal(t, m.Size(), rawdb.ReadMmrSize(db))

	reopened := New(KeccakMerger{}, NewDatabaseStore(db))
	assert.Equal(t, m.Size(), reopened.Size())
	assert.Equal(t, m.Root(), reopened.Root())

	err := NewDatabaseStore(db).Append(3, []common.Hash{{1}})
	assert.ErrorIs(t, err, ErrInconsistentStore)
	assert.ErrorIs(t, NewMemoryStore().Append(1, nil), ErrInconsistentStore)
}

// Package mmr implements a Merkle Mountain Range, an append-only accumulator
// over hashes that produces compact membership proofs.
package mmr

import (
	"fmt"

	"github.com/dominant-strategies/go-relay/common"
)

// MMR is a Merkle Mountain Range over a node store. It is not safe for
// concurrent appends; readers may generate proofs for sizes already written.
type MMR struct {
	size   uint64
	merger Merger
	store  Store
}

// New opens the MMR held by store.
func New(merger Merger, store Store) *MMR {
	return &MMR{size: store.Size(), merger: merger, store: store}
}

// Size returns the number of nodes, the position the next leaf gets.
func (m *MMR) Size() uint64 {
	return m.size
}

// Merger returns the hash used to merge nodes.
func (m *MMR) Merger() Merger {
	return m.merger
}

// LeafCount returns the number of appended leaves.
func (m *MMR) LeafCount() uint64 {
	var leaves uint64
	for _, peak := range GetPeaks(m.size) {
		leaves += 1 << PosHeightInTree(peak)
	}
	return leaves
}

// Leaf returns the leaf with the given index.
func (m *MMR) Leaf(index uint64) (common.Hash, bool) {
	if index >= m.LeafCount() {
		return common.Hash{}, false
	}
	return m.store.Get(LeafIndexToPos(index))
}

// node reads a node that must exist. A missing node means the store and the
// size counter disagree.
func (m *MMR) node(pos uint64) common.Hash {
	hash, ok := m.store.Get(pos)
	if !ok {
		panic(fmt.Sprintf("mmr: node %d missing, size %d", pos, m.size))
	}
	return hash
}

// Append adds a leaf and merges every pair of peaks it completes. It returns
// the position of the leaf.
func (m *MMR) Append(leaf common.Hash) (uint64, error) {
	leafPos := m.size
	nodes := []common.Hash{leaf}

	get := func(pos uint64) common.Hash {
		if pos >= leafPos {
			return nodes[pos-leafPos]
		}
		return m.node(pos)
	}
	pos, height := leafPos, uint32(0)
	for PosHeightInTree(pos+1) > height {
		pos++
		left := pos - parentOffset(height)
		right := left + siblingOffset(height)
		nodes = append(nodes, m.merger.Merge(get(left), get(right)))
		height++
	}
	if err := m.store.Append(leafPos, nodes); err != nil {
		return 0, err
	}
	m.size = pos + 1
	return leafPos, nil
}

// Root bags the current peaks. The root of an empty MMR is the zero hash.
func (m *MMR) Root() common.Hash {
	root, _ := m.RootAt(m.size)
	return root
}

// RootAt returns the root the MMR had when it held size nodes.
func (m *MMR) RootAt(size uint64) (common.Hash, error) {
	if size > m.size {
		return common.Hash{}, fmt.Errorf("%w: size %d above %d", ErrPositionOutOfRange, size, m.size)
	}
	if !ValidMmrSize(size) {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrInvalidMmrSize, size)
	}
	if size == 0 {
		return common.Hash{}, nil
	}
	peaks := GetPeaks(size)
	hashes := make([]common.Hash, len(peaks))
	for i, peak := range peaks {
		hashes[i] = m.node(peak)
	}
	return bagPeaks(m.merger, hashes), nil
}

// bagPeaks folds peaks from the right: the two rightmost are merged as
// (right, left) until one hash remains.
func bagPeaks(merger Merger, peaks []common.Hash) common.Hash {
	if len(peaks) == 0 {
		return common.Hash{}
	}
	peaks = append([]common.Hash(nil), peaks...)
	for len(peaks) > 1 {
		right := peaks[len(peaks)-1]
		left := peaks[len(peaks)-2]
		peaks = append(peaks[:len(peaks)-2], merger.Merge(right, left))
	}
	return peaks[0]
}

// GenProof returns the proof of the leaf at pos against the root of the MMR
// when it held mmrSize nodes.
func (m *MMR) GenProof(pos, mmrSize uint64) (*Proof, error) {
	if mmrSize > m.size || pos >= mmrSize {
		return nil, fmt.Errorf("%w: position %d size %d, have %d", ErrPositionOutOfRange, pos, mmrSize, m.size)
	}
	if !ValidMmrSize(mmrSize) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMmrSize, mmrSize)
	}
	if PosHeightInTree(pos) != 0 {
		return nil, fmt.Errorf("%w: position %d", ErrNotLeaf, pos)
	}
	var items, rhs []common.Hash
	found := false
	for _, peak := range GetPeaks(mmrSize) {
		switch {
		case found:
			rhs = append(rhs, m.node(peak))
		case pos <= peak:
			items = append(items, m.peakPath(pos, peak)...)
			found = true
		default:
			items = append(items, m.node(peak))
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: position %d under no peak", ErrPositionOutOfRange, pos)
	}
	if len(rhs) > 0 {
		items = append(items, bagPeaks(m.merger, rhs))
	}
	return &Proof{MmrSize: mmrSize, Items: items, merger: m.merger}, nil
}

// GenProofForLeaf returns the proof of a leaf against the root the MMR had
// right after the leaf lastLeafIndex was appended.
func (m *MMR) GenProofForLeaf(leafIndex, lastLeafIndex uint64) (*Proof, error) {
	if leafIndex > lastLeafIndex {
		return nil, fmt.Errorf("%w: leaf %d after last leaf %d", ErrPositionOutOfRange, leafIndex, lastLeafIndex)
	}
	return m.GenProof(LeafIndexToPos(leafIndex), LeafIndexToMmrSize(lastLeafIndex))
}

// peakPath returns the siblings from the leaf at pos up to peak.
func (m *MMR) peakPath(pos, peak uint64) []common.Hash {
	var path []common.Hash
	height := uint32(0)
	for pos != peak {
		var sibling, parent uint64
		if PosHeightInTree(pos+1) > height {
			sibling, parent = pos-siblingOffset(height), pos+1
		} else {
			sibling, parent = pos+siblingOffset(height), pos+parentOffset(height)
		}
		path = append(path, m.node(sibling))
		pos = parent
		height++
	}
	return path
}

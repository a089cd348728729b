package mmr

import (
	"fmt"

	"github.com/dominant-strategies/go-relay/common"
)

// Proof is the membership proof of one leaf. Items holds, in order, the
// peaks left of the leaf, the siblings on the path from the leaf to its peak
// and the bagged peaks right of it.
type Proof struct {
	MmrSize uint64        `json:"mmrSize"`
	Items   []common.Hash `json:"items"`

	merger Merger
}

// NewProof assembles a proof received from elsewhere.
func NewProof(mmrSize uint64, items []common.Hash, merger Merger) *Proof {
	return &Proof{MmrSize: mmrSize, Items: items, merger: merger}
}

// CalculateRoot recomputes the root from the leaf at pos and the proof items.
func (p *Proof) CalculateRoot(pos uint64, leaf common.Hash) (common.Hash, error) {
	if !ValidMmrSize(p.MmrSize) {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrInvalidMmrSize, p.MmrSize)
	}
	if pos >= p.MmrSize {
		return common.Hash{}, fmt.Errorf("%w: position %d size %d", ErrPositionOutOfRange, pos, p.MmrSize)
	}
	if PosHeightInTree(pos) != 0 {
		return common.Hash{}, fmt.Errorf("%w: position %d", ErrNotLeaf, pos)
	}
	items := p.Items
	next := func() (common.Hash, bool) {
		if len(items) == 0 {
			return common.Hash{}, false
		}
		item := items[0]
		items = items[1:]
		return item, true
	}
	var (
		hashes []common.Hash
		found  bool
	)
	for _, peak := range GetPeaks(p.MmrSize) {
		if found {
			// the bagged right peaks stand in for all of them
			if rhs, ok := next(); ok {
				hashes = append(hashes, rhs)
			}
			break
		}
		if pos <= peak {
			root, err := p.peakRoot(pos, leaf, peak, next)
			if err != nil {
				return common.Hash{}, err
			}
			hashes = append(hashes, root)
			found = true
			continue
		}
		left, ok := next()
		if !ok {
			return common.Hash{}, ErrCorruptedProof
		}
		hashes = append(hashes, left)
	}
	if !found {
		return common.Hash{}, fmt.Errorf("%w: position %d under no peak", ErrCorruptedProof, pos)
	}
	if len(items) > 0 {
		return common.Hash{}, fmt.Errorf("%w: %d unused items", ErrCorruptedProof, len(items))
	}
	return bagPeaks(p.merger, hashes), nil
}

func (p *Proof) peakRoot(pos uint64, leaf common.Hash, peak uint64, next func() (common.Hash, bool)) (common.Hash, error) {
	hash := leaf
	height := uint32(0)
	for pos < peak {
		sibling, ok := next()
		if !ok {
			return common.Hash{}, ErrCorruptedProof
		}
		if PosHeightInTree(pos+1) > height {
			hash = p.merger.Merge(sibling, hash)
			pos++
		} else {
			hash = p.merger.Merge(hash, sibling)
			pos += parentOffset(height)
		}
		height++
	}
	if pos != peak {
		return common.Hash{}, ErrCorruptedProof
	}
	return hash, nil
}

// Verify reports whether the leaf at pos is committed to by root.
func (p *Proof) Verify(root common.Hash, pos uint64, leaf common.Hash) bool {
	calculated, err := p.CalculateRoot(pos, leaf)
	return err == nil && calculated == root
}

// VerifyLeaf checks that leaf is the leafIndex-th leaf of the MMR whose root
// was root right after lastLeafIndex was appended.
func VerifyLeaf(merger Merger, root common.Hash, lastLeafIndex, leafIndex uint64, leaf common.Hash, items []common.Hash) bool {
	if leafIndex > lastLeafIndex {
		return false
	}
	proof := NewProof(LeafIndexToMmrSize(lastLeafIndex), items, merger)
	return proof.Verify(root, LeafIndexToPos(leafIndex), leaf)
}

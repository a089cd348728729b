package mmr

import "math/bits"

// Positions are zero based and assigned in insertion order. A tree of height
// h spans 2^(h+1)-1 positions with its root at the last one.

// LeafIndexToPos returns the position of the leaf with the given index.
func LeafIndexToPos(index uint64) uint64 {
	// mmr size - trailing zeros of the leaf count - 1
	return LeafIndexToMmrSize(index) - uint64(bits.TrailingZeros64(index+1)) - 1
}

// LeafIndexToMmrSize returns the size of the MMR right after the leaf with
// the given index was appended.
func LeafIndexToMmrSize(index uint64) uint64 {
	leaves := index + 1
	peaks := uint64(bits.OnesCount64(leaves))
	return 2*leaves - peaks
}

// ValidMmrSize reports whether an MMR can hold exactly size nodes, that is
// whether size splits into perfect trees of distinct heights.
func ValidMmrSize(size uint64) bool {
	for height := 64 - bits.LeadingZeros64(size); height > 0 && size > 0; height-- {
		if tree := uint64(1)<<height - 1; size >= tree {
			size -= tree
		}
	}
	return size == 0
}

// PosHeightInTree returns the height of the node at pos, leaves being at
// height zero.
func PosHeightInTree(pos uint64) uint32 {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return uint32(64 - bits.LeadingZeros64(pos) - 1)
}

func allOnes(num uint64) bool {
	return num != 0 && bits.OnesCount64(num) == 64-bits.LeadingZeros64(num)
}

func jumpLeft(pos uint64) uint64 {
	bitLength := 64 - bits.LeadingZeros64(pos)
	mostSignificant := uint64(1) << (bitLength - 1)
	return pos - (mostSignificant - 1)
}

func parentOffset(height uint32) uint64 {
	return 2 << height
}

func siblingOffset(height uint32) uint64 {
	return (2 << height) - 1
}

// GetPeaks returns the positions of the peaks of an MMR of the given size,
// left to right.
func GetPeaks(mmrSize uint64) []uint64 {
	if mmrSize == 0 {
		return nil
	}
	height, pos := leftPeakHeightPos(mmrSize)
	peaks := []uint64{pos}
	for height > 0 {
		var ok bool
		height, pos, ok = rightPeak(height, pos, mmrSize)
		if !ok {
			break
		}
		peaks = append(peaks, pos)
	}
	return peaks
}

func peakPosByHeight(height uint32) uint64 {
	return (1 << (height + 1)) - 2
}

func leftPeakHeightPos(mmrSize uint64) (uint32, uint64) {
	height := uint32(1)
	prev := uint64(0)
	pos := peakPosByHeight(height)
	for pos < mmrSize {
		height++
		prev = pos
		pos = peakPosByHeight(height)
	}
	return height - 1, prev
}

func rightPeak(height uint32, pos, mmrSize uint64) (uint32, uint64, bool) {
	pos += siblingOffset(height)
	for pos > mmrSize-1 {
		if height == 0 {
			return 0, 0, false
		}
		pos -= parentOffset(height - 1)
		height--
	}
	return height, pos, true
}

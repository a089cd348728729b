package mmr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLeafIndexToPos(t *testing.T) {
	want := []uint64{0, 1, 3, 4, 7, 8, 10, 11, 15, 16, 18}
	for i, pos := range want {
		assert.Equal(t, pos, LeafIndexToPos(uint64(i)), "leaf %d", i)
	}
}

func TestLeafIndexToMmrSize(t *testing.T) {
	want := []uint64{1, 3, 4, 7, 8, 10, 11, 15, 16, 18, 19}
	for i, size := range want {
		assert.Equal(t, size, LeafIndexToMmrSize(uint64(i)), "leaf %d", i)
	}
}

func TestPosHeightInTree(t *testing.T) {
	want := []uint32{0, 0, 1, 0, 0, 1, 2, 0, 0, 1, 0, 0, 1, 2, 3}
	for pos, height := range want {
		assert.Equal(t, height, PosHeightInTree(uint64(pos)), "pos %d", pos)
	}
}

func TestGetPeaks(t *testing.T) {
	tests := []struct {
		size  uint64
		peaks []uint64
	}{
		{0, nil},
		{1, []uint64{0}},
		{3, []uint64{2}},
		{4, []uint64{2, 3}},
		{7, []uint64{6}},
		{8, []uint64{6, 7}},
		{10, []uint64{6, 9}},
		{11, []uint64{6, 9, 10}},
		{19, []uint64{14, 17, 18}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.peaks, GetPeaks(tt.size), "size %d", tt.size)
	}
}

func TestValidMmrSize(t *testing.T) {
	valid := map[uint64]bool{0: true}
	for i := uint64(0); LeafIndexToMmrSize(i) <= 64; i++ {
		valid[LeafIndexToMmrSize(i)] = true
	}
	for size := uint64(0); size <= 64; size++ {
		assert.Equal(t, valid[size], ValidMmrSize(size), "size %d", size)
	}
	rapid.Check(t, func(t *rapid.T) {
		leaf := rapid.Uint64Range(0, 1<<40).Draw(t, "leaf").(uint64)
		if !ValidMmrSize(LeafIndexToMmrSize(leaf)) {
			t.Fatalf("size after leaf %d rejected", leaf)
		}
	})
}

func TestLeafIndexToPosInjective(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Uint64Range(0, 1<<40).Draw(t, "a").(uint64)
		b := rapid.Uint64Range(0, 1<<40).Draw(t, "b").(uint64)
		if a == b {
			return
		}
		pa, pb := LeafIndexToPos(a), LeafIndexToPos(b)
		if pa == pb {
			t.Fatalf("leaves %d and %d share position %d", a, b, pa)
		}
		if (a < b) != (pa < pb) {
			t.Fatalf("positions not monotonic: %d -> %d, %d -> %d", a, pa, b, pb)
		}
		if PosHeightInTree(pa) != 0 {
			t.Fatalf("leaf %d maps to internal node %d", a, pa)
		}
	})
}

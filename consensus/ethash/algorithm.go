// Copyright 2017 The go-ethereum Authors
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

package ethash

import (
	"encoding/binary"
	"hash"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/params"
)

const (
	datasetInitBytes   = 1 << 30 // Bytes in dataset at genesis
	datasetGrowthBytes = 1 << 23 // Dataset growth per epoch
	mixBytes           = 128     // Width of mix
	hashBytes          = 64      // Hash length in bytes
	hashWords          = 16      // Number of 32 bit ints in a hash
	loopAccesses       = 64      // Number of accesses in hashimoto loop
)

// hasher is a repetitive hasher allowing the same hash data structures to be
// reused between hash runs instead of requiring new ones to be created.
type hasher func(dest []byte, data []byte)

// makeHasher creates a repetitive hasher, allowing the same hash data structures
// to be reused between hash runs instead of requiring new ones to be created.
func makeHasher(h hash.Hash) hasher {
	type readerHash interface {
		hash.Hash
		Read([]byte) (int, error)
	}
	rh, ok := h.(readerHash)
	if !ok {
		panic("can't find Read method on hash")
	}
	outputLen := rh.Size()
	return func(dest []byte, data []byte) {
		rh.Reset()
		rh.Write(data)
		rh.Read(dest[:outputLen])
	}
}

// epoch returns the ethash epoch of a block number.
func epoch(number uint64) uint64 {
	return number / params.EpochLength
}

// calcDatasetSize calculates the dataset size for epoch. The dataset size grows
// linearly, however we always take the highest prime below the linearly growing
// threshold in order to reduce the risk of accidental regularities leading to
// cyclic behavior.
func calcDatasetSize(epoch uint64) uint64 {
	size := uint64(datasetInitBytes) + datasetGrowthBytes*epoch - mixBytes
	for !new(big.Int).SetUint64(size / mixBytes).ProbablyPrime(1) {
		size -= 2 * mixBytes
	}
	return size
}

// fnv is an algorithm inspired by the FNV hash, which in some cases is used as
// a non-associative substitute for XOR. Note that we multiply the prime with
// the full 32-bit input, in contrast with the FNV-1 spec which multiplies the
// prime with one byte (octet) in turn.
func fnv(a, b uint32) uint32 {
	return a*0x01000193 ^ b
}

// fnvHash mixes in data into mix using the ethash fnv method.
func fnvHash(mix []uint32, data []uint32) {
	for i := 0; i < len(mix); i++ {
		mix[i] = mix[i]*0x01000193 ^ data[i]
	}
}

// seedHash is keccak512(sealHash || nonce) with the nonce in little endian.
func seedHash(keccak512 hasher, sealHash common.Hash, nonce uint64) []byte {
	input := make([]byte, 40)
	copy(input, sealHash[:])
	binary.LittleEndian.PutUint64(input[32:], nonce)

	seed := make([]byte, hashBytes)
	keccak512(seed, input)
	return seed
}

// powResult is keccak256(seed || mixDigest), the value compared against the
// difficulty boundary.
func powResult(keccak256 hasher, seed []byte, digest []byte) []byte {
	result := make([]byte, common.HashLength)
	keccak256(result, append(append(make([]byte, 0, len(seed)+len(digest)), seed...), digest...))
	return result
}

// quickResult recomputes the PoW result from the mix digest claimed by the
// header, without touching the dataset.
func quickResult(sealHash common.Hash, nonce uint64, mixDigest common.Hash) []byte {
	seed := seedHash(makeHasher(sha3.NewLegacyKeccak512()), sealHash, nonce)
	return powResult(makeHasher(sha3.NewLegacyKeccak256()), seed, mixDigest[:])
}

// hashimoto aggregates data from the full dataset in order to produce our final
// value for a particular header hash and nonce. Dataset items are obtained from
// lookup, which is called twice per access with consecutive 64 byte indexes.
func hashimoto(sealHash common.Hash, nonce uint64, size uint64, lookup func(index uint32) ([]uint32, error)) ([]byte, []byte, error) {
	// Calculate the number of theoretical rows (we use one buffer nonetheless)
	rows := uint32(size / mixBytes)

	// Combine header+nonce into a 64 byte seed
	seed := seedHash(makeHasher(sha3.NewLegacyKeccak512()), sealHash, nonce)
	seedHead := binary.LittleEndian.Uint32(seed)

	// Start the mix with replicated seed
	mix := make([]uint32, mixBytes/4)
	for i := 0; i < len(mix); i++ {
		mix[i] = binary.LittleEndian.Uint32(seed[i%16*4:])
	}
	// Mix in random dataset nodes
	temp := make([]uint32, len(mix))

	for i := 0; i < loopAccesses; i++ {
		parent := fnv(uint32(i)^seedHead, mix[i%len(mix)]) % rows
		for j := uint32(0); j < mixBytes/hashBytes; j++ {
			data, err := lookup(2*parent + j)
			if err != nil {
				return nil, nil, err
			}
			copy(temp[j*hashWords:], data)
		}
		fnvHash(mix, temp)
	}
	// Compress mix
	for i := 0; i < len(mix); i += 4 {
		mix[i/4] = fnv(fnv(fnv(mix[i], mix[i+1]), mix[i+2]), mix[i+3])
	}
	mix = mix[:len(mix)/4]

	digest := make([]byte, common.HashLength)
	for i, val := range mix {
		binary.LittleEndian.PutUint32(digest[i*4:], val)
	}
	return digest, powResult(makeHasher(sha3.NewLegacyKeccak256()), seed, digest), nil
}

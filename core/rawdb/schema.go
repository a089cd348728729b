// Copyright 2018 The go-ethereum Authors
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

// Package rawdb contains a collection of low level database accessors.
package rawdb

import (
	"encoding/binary"

	"github.com/dominant-strategies/go-relay/common"
)

// The fields below define the low level database schema prefixing.
var (
	// databaseVersionKey tracks the current database version.
	databaseVersionKey = []byte("DatabaseVersion")

	// headHeaderKey tracks the number of the canonical head header.
	headHeaderKey = []byte("LastHeader")

	// genesisHashKey tracks the hash of the trusted genesis header.
	genesisHashKey = []byte("GenesisHash")

	// activeGamesKey tracks the divergence points of all open relayer games.
	activeGamesKey = []byte("ActiveGames")

	// pendingParcelsKey tracks the games whose winning chain awaits confirmation.
	pendingParcelsKey = []byte("PendingParcels")

	// mmrSizeKey tracks the number of nodes in the merkle mountain range.
	mmrSizeKey = []byte("MmrSize")

	// localHeadKey tracks the last processed local block number.
	localHeadKey = []byte("LastLocalBlock")

	// Data item prefixes (use single byte to avoid mixing data types, avoid `i`, used for indexes).
	headerPrefix       = []byte("h") // headerPrefix + num (uint64 big endian) + hash -> header
	headerHashSuffix   = []byte("n") // headerPrefix + num (uint64 big endian) + headerHashSuffix -> hash
	headerNumberPrefix = []byte("H") // headerNumberPrefix + hash -> num (uint64 big endian)

	dagRootPrefix       = []byte("d")  // dagRootPrefix + epoch (uint64 big endian) -> dag root
	gamePrefix          = []byte("g")  // gamePrefix + divergence point (uint64 big endian) -> game record
	closedPointPrefix   = []byte("c")  // closedPointPrefix + num (uint64 big endian) -> closed flag
	pendingParcelPrefix = []byte("p")  // pendingParcelPrefix + game id (uint64 big endian) -> pending parcel
	mmrNodePrefix       = []byte("m")  // mmrNodePrefix + pos (uint64 big endian) -> node hash
	mmrRootPrefix       = []byte("mr") // mmrRootPrefix + local num (uint64 big endian) -> mmr root

	configPrefix = []byte("relay-config-") // config prefix for the db
)

// encodeBlockNumber encodes a block number as big endian uint64
func encodeBlockNumber(number uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, number)
	return enc
}

func prefixedNumberKey(prefix []byte, number uint64) []byte {
	return append(append([]byte{}, prefix...), encodeBlockNumber(number)...)
}

// headerKey = headerPrefix + num (uint64 big endian) + hash
func headerKey(number uint64, hash common.Hash) []byte {
	return append(prefixedNumberKey(headerPrefix, number), hash.Bytes()...)
}

// headerHashKey = headerPrefix + num (uint64 big endian) + headerHashSuffix
func headerHashKey(number uint64) []byte {
	return append(prefixedNumberKey(headerPrefix, number), headerHashSuffix...)
}

// headerNumberKey = headerNumberPrefix + hash
func headerNumberKey(hash common.Hash) []byte {
	return append(append([]byte{}, headerNumberPrefix...), hash.Bytes()...)
}

// dagRootKey = dagRootPrefix + epoch (uint64 big endian)
func dagRootKey(epoch uint64) []byte {
	return prefixedNumberKey(dagRootPrefix, epoch)
}

// gameKey = gamePrefix + divergence point (uint64 big endian)
func gameKey(id uint64) []byte {
	return prefixedNumberKey(gamePrefix, id)
}

// closedPointKey = closedPointPrefix + num (uint64 big endian)
func closedPointKey(number uint64) []byte {
	return prefixedNumberKey(closedPointPrefix, number)
}

// pendingParcelKey = pendingParcelPrefix + game id (uint64 big endian)
func pendingParcelKey(id uint64) []byte {
	return prefixedNumberKey(pendingParcelPrefix, id)
}

// mmrNodeKey = mmrNodePrefix + pos (uint64 big endian)
func mmrNodeKey(pos uint64) []byte {
	return prefixedNumberKey(mmrNodePrefix, pos)
}

// mmrRootKey = mmrRootPrefix + local num (uint64 big endian)
func mmrRootKey(number uint64) []byte {
	return prefixedNumberKey(mmrRootPrefix, number)
}

// configKey = configPrefix + hash
func configKey(hash common.Hash) []byte {
	return append(append([]byte{}, configPrefix...), hash.Bytes()...)
}

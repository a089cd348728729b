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

package rawdb

import (
	"encoding/binary"
	"encoding/json"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

// ReadDatabaseVersion retrieves the version number of the database.
func ReadDatabaseVersion(db ethdb.KeyValueReader) *uint64 {
	enc, _ := db.Get(databaseVersionKey)
	if len(enc) != 8 {
		return nil
	}
	version := binary.BigEndian.Uint64(enc)
	return &version
}

// WriteDatabaseVersion stores the version number of the database
func WriteDatabaseVersion(db ethdb.KeyValueWriter, version uint64) {
	if err := db.Put(databaseVersionKey, encodeBlockNumber(version)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store the database version")
	}
}

// ReadGenesisHash retrieves the hash of the trusted genesis header.
func ReadGenesisHash(db ethdb.KeyValueReader) common.Hash {
	data, _ := db.Get(genesisHashKey)
	if len(data) == 0 {
		return common.Hash{}
	}
	return common.BytesToHash(data)
}

// WriteGenesisHash stores the hash of the trusted genesis header.
func WriteGenesisHash(db ethdb.KeyValueWriter, hash common.Hash) {
	if err := db.Put(genesisHashKey, hash.Bytes()); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store genesis hash")
	}
}

// ReadChainConfig retrieves the consensus settings based on the given genesis hash.
func ReadChainConfig(db ethdb.KeyValueReader, hash common.Hash) *params.ChainConfig {
	data, _ := db.Get(configKey(hash))
	if len(data) == 0 {
		return nil
	}
	var config params.ChainConfig
	if err := json.Unmarshal(data, &config); err != nil {
		log.Global.WithFields(log.Fields{
			"hash": hash,
			"err":  err,
		}).Error("Invalid chain config JSON")
		return nil
	}
	return &config
}

// WriteChainConfig writes the chain config settings to the database.
func WriteChainConfig(db ethdb.KeyValueWriter, hash common.Hash, cfg *params.ChainConfig) {
	if cfg == nil {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		log.Global.WithField("err", err).Fatal("Failed to JSON encode chain config")
	}
	if err := db.Put(configKey(hash), data); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store chain config")
	}
}

// ReadDagRoot retrieves the committed dataset root of an epoch.
func ReadDagRoot(db ethdb.KeyValueReader, epoch uint64) (common.H128, bool) {
	data, _ := db.Get(dagRootKey(epoch))
	if len(data) != common.H128Length {
		return common.H128{}, false
	}
	return common.BytesToH128(data), true
}

// WriteDagRoots stores a contiguous run of epoch dataset roots.
func WriteDagRoots(db ethdb.KeyValueWriter, startEpoch uint64, roots []common.H128) {
	for i, root := range roots {
		if err := db.Put(dagRootKey(startEpoch+uint64(i)), root[:]); err != nil {
			log.Global.WithField("err", err).Fatal("Failed to store dag root")
		}
	}
}

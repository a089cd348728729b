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
	"fmt"
	"os"
	"path/filepath"

	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/ethdb/leveldb"
	"github.com/dominant-strategies/go-relay/ethdb/memorydb"
	"github.com/dominant-strategies/go-relay/ethdb/pebble"
	"github.com/dominant-strategies/go-relay/log"
)

const (
	DBPebble  = "pebble"
	DBLeveldb = "leveldb"
	DBMemory  = "memory"
)

// NewMemoryDatabase creates an ephemeral in-memory key-value database.
func NewMemoryDatabase() ethdb.Database {
	return memorydb.New()
}

// NewLevelDBDatabase creates a persistent key-value database backed by
// LevelDB.
func NewLevelDBDatabase(file string, cache int, handles int, readonly bool, logger log.Logger) (ethdb.Database, error) {
	db, err := leveldb.New(file, cache, handles, readonly, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", file).Info("Using LevelDB as the backing database")
	return db, nil
}

// NewPebbleDBDatabase creates a persistent key-value database backed by
// pebble.
func NewPebbleDBDatabase(file string, cache int, handles int, readonly bool, logger log.Logger) (ethdb.Database, error) {
	db, err := pebble.New(file, cache, handles, readonly, logger)
	if err != nil {
		return nil, err
	}
	logger.WithField("path", file).Info("Using pebble as the backing database")
	return db, nil
}

// hasPreexistingDb checks the given data directory whether a database is already
// instantiated at that location, and if so, returns the type of database (or the
// empty string).
func hasPreexistingDb(path string) string {
	if _, err := os.Stat(filepath.Join(path, "CURRENT")); err != nil {
		return "" // No pre-existing db
	}
	if matches, err := filepath.Glob(filepath.Join(path, "OPTIONS*")); len(matches) > 0 || err != nil {
		if err != nil {
			panic(err) // only possible if the pattern is malformed
		}
		return DBPebble
	}
	return DBLeveldb
}

// OpenOptions contains the options to apply when opening a database.
type OpenOptions struct {
	Type      string // "leveldb" | "pebble" | "memory"
	Directory string // the datadir
	Cache     int    // the capacity(in megabytes) of the data caching
	Handles   int    // number of files to be open simultaneously
	ReadOnly  bool
}

// Open opens a key-value database.
//
//	                      type == null          type != null
//	                   +----------------------------------------
//	db is non-existent |  leveldb default  |  specified type
//	db is existent     |  from db          |  specified type (if compatible)
func Open(o OpenOptions, logger log.Logger) (ethdb.Database, error) {
	if o.Type == DBMemory {
		logger.Info("Using an ephemeral in-memory database")
		return NewMemoryDatabase(), nil
	}
	existingDb := hasPreexistingDb(o.Directory)
	if len(existingDb) != 0 && len(o.Type) != 0 && o.Type != existingDb {
		return nil, fmt.Errorf("db.engine choice was %v but found pre-existing %v database in specified data directory", o.Type, existingDb)
	}
	if o.Type == DBPebble || existingDb == DBPebble {
		return NewPebbleDBDatabase(o.Directory, o.Cache, o.Handles, o.ReadOnly, logger)
	}
	if len(o.Type) != 0 && o.Type != DBLeveldb {
		return nil, fmt.Errorf("unknown db.engine %v", o.Type)
	}
	// Use leveldb, either as default (no explicit choice), or pre-existing, or chosen explicitly
	return NewLevelDBDatabase(o.Directory, o.Cache, o.Handles, o.ReadOnly, logger)
}

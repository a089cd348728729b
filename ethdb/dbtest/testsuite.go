// Copyright 2019 The go-ethereum Authors
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

// Package dbtest holds the behaviour every ethdb backend must share.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dominant-strategies/go-relay/ethdb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() ethdb.Database) {
	t.Run("KeyValueOperations", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("foo")

		got, err := db.Has(key)
		require.NoError(t, err)
		assert.False(t, got)

		_, err = db.Get(key)
		assert.ErrorIs(t, err, ethdb.ErrNotFound)

		value := []byte("hello world")
		require.NoError(t, db.Put(key, value))

		got, err = db.Has(key)
		require.NoError(t, err)
		assert.True(t, got)

		dat, err := db.Get(key)
		require.NoError(t, err)
		assert.Equal(t, value, dat)

		// the returned slice must not alias the stored value
		dat[0] = 'H'
		dat, err = db.Get(key)
		require.NoError(t, err)
		assert.Equal(t, value, dat)

		require.NoError(t, db.Put(key, []byte("overwritten")))
		dat, err = db.Get(key)
		require.NoError(t, err)
		assert.Equal(t, []byte("overwritten"), dat)

		require.NoError(t, db.Delete(key))
		got, err = db.Has(key)
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for _, k := range []string{"1", "2", "3", "4"} {
			require.NoError(t, b.Put([]byte(k), []byte(k+k)))
		}
		assert.Equal(t, 12, b.ValueSize())

		got, err := db.Has([]byte("1"))
		require.NoError(t, err)
		assert.False(t, got, "batch leaked before write")

		require.NoError(t, b.Write())
		for _, k := range []string{"1", "2", "3", "4"} {
			dat, err := db.Get([]byte(k))
			require.NoError(t, err)
			assert.Equal(t, []byte(k+k), dat)
		}

		b.Reset()
		assert.Zero(t, b.ValueSize())
		require.NoError(t, b.Delete([]byte("2")))
		require.NoError(t, b.Put([]byte("5"), []byte("55")))
		require.NoError(t, b.Write())

		got, err = db.Has([]byte("2"))
		require.NoError(t, err)
		assert.False(t, got)
		dat, err := db.Get([]byte("5"))
		require.NoError(t, err)
		assert.Equal(t, []byte("55"), dat)
	})
}

package mmr

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/ethdb"
)

// Store keeps MMR nodes by position. Nodes are only ever appended.
type Store interface {
	// Get returns the node at pos.
	Get(pos uint64) (common.Hash, bool)

	// Append stores nodes at consecutive positions starting at pos, which
	// must be the current end of the store.
	Append(pos uint64, nodes []common.Hash) error

	// Size returns the number of stored nodes.
	Size() uint64
}

// MemoryStore is a Store held in memory.
type MemoryStore struct {
	lock  sync.RWMutex
	nodes []common.Hash
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return new(MemoryStore)
}

func (s *MemoryStore) Get(pos uint64) (common.Hash, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if pos >= uint64(len(s.nodes)) {
		return common.Hash{}, false
	}
	return s.nodes[pos], true
}

func (s *MemoryStore) Append(pos uint64, nodes []common.Hash) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if pos != uint64(len(s.nodes)) {
		return fmt.Errorf("%w: append at %d, size %d", ErrInconsistentStore, pos, len(s.nodes))
	}
	s.nodes = append(s.nodes, nodes...)
	return nil
}

func (s *MemoryStore) Size() uint64 {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return uint64(len(s.nodes))
}

// DatabaseStore keeps nodes in a key-value database together with the size
// counter. Every append is a single batch.
type DatabaseStore struct {
	db ethdb.Database
}

// NewDatabaseStore returns a store over db.
func NewDatabaseStore(db ethdb.Database) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func (s *DatabaseStore) Get(pos uint64) (common.Hash, bool) {
	return rawdb.ReadMmrNode(s.db, pos)
}

func (s *DatabaseStore) Append(pos uint64, nodes []common.Hash) error {
	if size := rawdb.ReadMmrSize(s.db); pos != size {
		return fmt.Errorf("%w: append at %d, size %d", ErrInconsistentStore, pos, size)
	}
	batch := s.db.NewBatch()
	for i, node := range nodes {
		rawdb.WriteMmrNode(batch, pos+uint64(i), node)
	}
	rawdb.WriteMmrSize(batch, pos+uint64(len(nodes)))
	return errors.Wrap(batch.Write(), "append mmr nodes")
}

func (s *DatabaseStore) Size() uint64 {
	return rawdb.ReadMmrSize(s.db)
}

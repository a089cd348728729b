package rawdb

import (
	"encoding/binary"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
)

// ReadMmrNode retrieves the merkle mountain range node at a position.
func ReadMmrNode(db ethdb.KeyValueReader, pos uint64) (common.Hash, bool) {
	data, _ := db.Get(mmrNodeKey(pos))
	if len(data) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(data), true
}

// WriteMmrNode stores a merkle mountain range node.
func WriteMmrNode(db ethdb.KeyValueWriter, pos uint64, hash common.Hash) {
	if err := db.Put(mmrNodeKey(pos), hash.Bytes()); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store mmr node")
	}
}

// ReadMmrSize retrieves the node count of the merkle mountain range.
func ReadMmrSize(db ethdb.KeyValueReader) uint64 {
	data, _ := db.Get(mmrSizeKey)
	if len(data) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(data)
}

// WriteMmrSize stores the node count of the merkle mountain range.
func WriteMmrSize(db ethdb.KeyValueWriter, size uint64) {
	if err := db.Put(mmrSizeKey, encodeBlockNumber(size)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store mmr size")
	}
}

// ReadMmrRoot retrieves the merkle mountain range root recorded for a local
// block.
func ReadMmrRoot(db ethdb.KeyValueReader, number uint64) (common.Hash, bool) {
	data, _ := db.Get(mmrRootKey(number))
	if len(data) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(data), true
}

// WriteMmrRoot stores the merkle mountain range root of a local block.
func WriteMmrRoot(db ethdb.KeyValueWriter, number uint64, root common.Hash) {
	if err := db.Put(mmrRootKey(number), root.Bytes()); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store mmr root")
	}
}

// ReadLocalHead retrieves the last processed local block number.
func ReadLocalHead(db ethdb.KeyValueReader) *uint64 {
	data, _ := db.Get(localHeadKey)
	if len(data) != 8 {
		return nil
	}
	number := binary.BigEndian.Uint64(data)
	return &number
}

// WriteLocalHead stores the last processed local block number.
func WriteLocalHead(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Put(localHeadKey, encodeBlockNumber(number)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store local head")
	}
}

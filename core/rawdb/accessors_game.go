package rawdb

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
)

// ReadGame retrieves the relayer game opened at a divergence point.
func ReadGame(db ethdb.KeyValueReader, id uint64) *types.GameRecord {
	data, _ := db.Get(gameKey(id))
	if len(data) == 0 {
		return nil
	}
	game := new(types.GameRecord)
	if err := rlp.DecodeBytes(data, game); err != nil {
		log.Global.WithFields(log.Fields{
			"game": id,
			"err":  err,
		}).Error("Invalid relayer game RLP")
		return nil
	}
	return game
}

// WriteGame stores a relayer game.
func WriteGame(db ethdb.KeyValueWriter, game *types.GameRecord) {
	data, err := rlp.EncodeToBytes(game)
	if err != nil {
		log.Global.WithField("err", err).Fatal("Failed to RLP encode relayer game")
	}
	if err := db.Put(gameKey(game.ID), data); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store relayer game")
	}
}

// DeleteGame removes a relayer game.
func DeleteGame(db ethdb.KeyValueWriter, id uint64) {
	if err := db.Delete(gameKey(id)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to delete relayer game")
	}
}

// ReadActiveGames retrieves the divergence points of all open games.
func ReadActiveGames(db ethdb.KeyValueReader) []uint64 {
	return readNumberList(db, activeGamesKey)
}

// WriteActiveGames stores the divergence points of all open games.
func WriteActiveGames(db ethdb.KeyValueWriter, ids []uint64) {
	writeNumberList(db, activeGamesKey, ids)
}

// ReadClosedPoint reports whether the game at a divergence point was settled.
func ReadClosedPoint(db ethdb.KeyValueReader, number uint64) bool {
	has, err := db.Has(closedPointKey(number))
	return err == nil && has
}

// WriteClosedPoint marks a divergence point as settled.
func WriteClosedPoint(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Put(closedPointKey(number), []byte{0x01}); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store closed point")
	}
}

// DeleteClosedPoint reopens a divergence point.
func DeleteClosedPoint(db ethdb.KeyValueWriter, number uint64) {
	if err := db.Delete(closedPointKey(number)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to delete closed point")
	}
}

// ReadPendingParcel retrieves the settled chain of a game awaiting confirmation.
func ReadPendingParcel(db ethdb.KeyValueReader, id uint64) *types.PendingParcel {
	data, _ := db.Get(pendingParcelKey(id))
	if len(data) == 0 {
		return nil
	}
	parcel := new(types.PendingParcel)
	if err := rlp.DecodeBytes(data, parcel); err != nil {
		log.Global.WithFields(log.Fields{
			"game": id,
			"err":  err,
		}).Error("Invalid pending parcel RLP")
		return nil
	}
	return parcel
}

// WritePendingParcel stores a settled chain awaiting confirmation.
func WritePendingParcel(db ethdb.KeyValueWriter, parcel *types.PendingParcel) {
	data, err := rlp.EncodeToBytes(parcel)
	if err != nil {
		log.Global.WithField("err", err).Fatal("Failed to RLP encode pending parcel")
	}
	if err := db.Put(pendingParcelKey(parcel.GameID), data); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store pending parcel")
	}
}

// DeletePendingParcel removes a pending parcel.
func DeletePendingParcel(db ethdb.KeyValueWriter, id uint64) {
	if err := db.Delete(pendingParcelKey(id)); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to delete pending parcel")
	}
}

// ReadPendingParcelIDs retrieves the games with a pending parcel.
func ReadPendingParcelIDs(db ethdb.KeyValueReader) []uint64 {
	return readNumberList(db, pendingParcelsKey)
}

// WritePendingParcelIDs stores the games with a pending parcel.
func WritePendingParcelIDs(db ethdb.KeyValueWriter, ids []uint64) {
	writeNumberList(db, pendingParcelsKey, ids)
}

func readNumberList(db ethdb.KeyValueReader, key []byte) []uint64 {
	data, _ := db.Get(key)
	if len(data) == 0 {
		return nil
	}
	var list []uint64
	if err := rlp.DecodeBytes(data, &list); err != nil {
		log.Global.WithFields(log.Fields{
			"key": string(key),
			"err": err,
		}).Error("Invalid number list RLP")
		return nil
	}
	return list
}

func writeNumberList(db ethdb.KeyValueWriter, key []byte, list []uint64) {
	data, err := rlp.EncodeToBytes(list)
	if err != nil {
		log.Global.WithField("err", err).Fatal("Failed to RLP encode number list")
	}
	if err := db.Put(key, data); err != nil {
		log.Global.WithField("err", err).Fatal("Failed to store number list")
	}
}

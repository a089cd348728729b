package utils

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/relay"
)

// LocalBlockHash derives the hash of a simulated local block from its number
// and the MMR root left by its parent.
func LocalBlockHash(number uint64, parentRoot common.Hash) common.Hash {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], number)
	return common.Hash(crypto.Keccak256Hash(enc[:], parentRoot[:]))
}

// NextBlock applies the inbox and processes the next local block.
func NextBlock(ctx context.Context, r *relay.Relay, inbox *Inbox) (uint64, common.Hash, error) {
	if inbox != nil {
		if _, err := inbox.Drain(ctx, r); err != nil {
			return 0, common.Hash{}, err
		}
	}
	number := r.LocalHead() + 1
	parentRoot, _ := r.MMRRoot(number - 1)
	root, err := r.ProcessBlock(number, LocalBlockHash(number, parentRoot))
	return number, root, err
}

// RunBlockLoop produces a local block every interval until ctx is cancelled.
func RunBlockLoop(ctx context.Context, r *relay.Relay, inbox *Inbox, interval time.Duration, logger log.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			number, root, err := NextBlock(ctx, r, inbox)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.WithFields(log.Fields{"number": number, "err": err}).Error("Failed to process local block")
				return err
			}
			logger.WithFields(log.Fields{"number": number, "mmr": root}).Trace("Local block")
		}
	}
}

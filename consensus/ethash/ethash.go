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

// Package ethash verifies Ethash proof-of-work without the dataset, using
// Merkle proofs of the dataset rows read by hashimoto.
package ethash

import (
	"context"
	"fmt"
	"math/big"
	"runtime"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"golang.org/x/sync/errgroup"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

// Mode defines the type and amount of PoW verification an ethash engine makes.
type Mode uint

const (
	ModeNormal Mode = iota
	ModeFullFake
)

const (
	defaultCacheSize    = 4096
	datasetSizeCacheLen = 8
)

// Config are the configuration parameters of the ethash verifier.
type Config struct {
	PowMode Mode

	// CacheSize bounds the number of verified seals remembered.
	CacheSize int

	// DatasetSize overrides the dataset size of an epoch. Only tests and
	// development networks with a synthetic dataset set it.
	DatasetSize func(epoch uint64) uint64
}

// Ethash is a proof-of-work verifier based on Merkle proven dataset rows. It
// owns its caches and holds no chain state.
type Ethash struct {
	config config
	chain  *params.EthashConfig
	roots  consensus.DagRootReader

	verified *lru.Cache[sealKey, struct{}] // seals known to be valid under a root
	sizes    *lru.Cache[uint64, uint64]    // dataset size per epoch

	logger log.Logger
}

// sealKey ties a verified seal to the DAG root it was proven against, so a
// replaced root invalidates it.
type sealKey struct {
	hash common.Hash
	root common.H128
}

type config struct {
	Config
	datasetSize func(epoch uint64) uint64
}

// New creates an ethash verifier for a chain difficulty schedule and a DAG
// root table.
func New(chain *params.EthashConfig, roots consensus.DagRootReader, cfg Config, logger log.Logger) *Ethash {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	verified, _ := lru.New[sealKey, struct{}](cfg.CacheSize)
	sizes, _ := lru.New[uint64, uint64](datasetSizeCacheLen)

	datasetSize := cfg.DatasetSize
	if datasetSize == nil {
		datasetSize = calcDatasetSize
	}
	if cfg.PowMode == ModeFullFake {
		logger.Warn("Ethash used in full fake mode")
	}
	return &Ethash{
		config:   config{Config: cfg, datasetSize: datasetSize},
		chain:    chain,
		roots:    roots,
		verified: verified,
		sizes:    sizes,
		logger:   logger,
	}
}

// datasetSize returns the memoised dataset size of an epoch.
func (ethash *Ethash) datasetSize(epoch uint64) uint64 {
	if size, ok := ethash.sizes.Get(epoch); ok {
		return size
	}
	size := ethash.config.datasetSize(epoch)
	ethash.sizes.Add(epoch, size)
	ethash.logger.WithFields(log.Fields{"epoch": epoch, "size": size}).Trace("Computed ethash dataset size")
	return size
}

// CalcDifficulty implements consensus.Engine.
func (ethash *Ethash) CalcDifficulty(time uint64, parent *types.Header) *big.Int {
	return CalcDifficulty(ethash.chain, time, parent)
}

// VerifyHeader implements consensus.Engine.
func (ethash *Ethash) VerifyHeader(header, parent *types.Header, proof []types.DoubleNodeWithProof) error {
	hash := header.Hash()
	if claimed, ok := header.ClaimedHash(); ok && claimed != hash {
		return fmt.Errorf("%w: have %s want %s", consensus.ErrHeaderHashMismatch, claimed, hash)
	}
	if header.Difficulty == nil || header.Difficulty.Cmp(ethash.chain.MinimumDifficulty) < 0 || header.Difficulty.Sign() <= 0 {
		return fmt.Errorf("%w: difficulty %v below minimum %v", consensus.ErrDifficultyOutOfBounds, header.Difficulty, ethash.chain.MinimumDifficulty)
	}
	if ethash.config.PowMode != ModeFullFake {
		if err := ethash.verifySeal(hash, header, proof); err != nil {
			return err
		}
	}
	if parent == nil {
		return nil
	}
	if header.Time <= parent.Time {
		return fmt.Errorf("%w: %d <= %d", consensus.ErrOlderBlockTime, header.Time, parent.Time)
	}
	expected := ethash.CalcDifficulty(header.Time, parent)
	if expected.Cmp(header.Difficulty) != 0 {
		return fmt.Errorf("%w: have %v want %v", consensus.ErrDifficultyOutOfBounds, header.Difficulty, expected)
	}
	return nil
}

// verifySeal checks the cheap seal boundary first, then recomputes the mix
// digest with Merkle proven dataset rows.
func (ethash *Ethash) verifySeal(hash common.Hash, header *types.Header, proof []types.DoubleNodeWithProof) error {
	number := header.Number
	root, known := ethash.roots.DagRoot(epoch(number))
	if known {
		if _, ok := ethash.verified.Get(sealKey{hash, root}); ok {
			return nil
		}
	}
	sealHash := header.SealHash()
	nonce := header.Nonce.Uint64()

	target := new(uint256.Int).Div(common.MaxU256, header.DifficultyU256())
	result := new(uint256.Int).SetBytes(quickResult(sealHash, nonce, header.MixDigest))
	if result.Gt(target) {
		return consensus.ErrInvalidProofOfWork
	}
	if !known {
		return fmt.Errorf("%w: epoch %d", consensus.ErrUnknownEpoch, epoch(number))
	}
	if len(proof) != loopAccesses {
		return fmt.Errorf("%w: have %d want %d", consensus.ErrProofCountMismatch, len(proof), loopAccesses)
	}
	digest, _, err := hashimoto(sealHash, nonce, ethash.datasetSize(epoch(number)), provenLookup(root, proof))
	if err != nil {
		return err
	}
	if common.BytesToHash(digest) != header.MixDigest {
		return consensus.ErrInvalidMixDigest
	}
	ethash.verified.Add(sealKey{hash, root}, struct{}{})
	return nil
}

// VerifyHeaders implements consensus.Engine. Headers are verified on as many
// workers as allowed threads. Every header is checked so the reported error
// does not depend on scheduling.
func (ethash *Ethash) VerifyHeaders(ctx context.Context, parent *types.Header, things []*types.HeaderThing) error {
	if len(things) == 0 {
		return nil
	}
	workers := runtime.GOMAXPROCS(0)
	if len(things) < workers {
		workers = len(things)
	}
	errs := make([]error, len(things))

	var g errgroup.Group
	g.SetLimit(workers)
	for i := range things {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return err
			}
			prev := parent
			if i > 0 {
				prev = things[i-1].Header
			}
			errs[i] = ethash.VerifyHeader(things[i].Header, prev, things[i].Proof)
			return errs[i]
		})
	}
	g.Wait()

	for i, err := range errs {
		if err != nil {
			ethash.logger.WithFields(log.Fields{
				"number": things[i].Header.Number,
				"err":    err,
			}).Debug("Header failed verification")
			return err
		}
	}
	return nil
}

// DagRootTable is a contiguous run of trusted epoch DAG roots starting at
// StartEpoch.
type DagRootTable struct {
	StartEpoch uint64
	Roots      []common.H128
}

// DagRoot implements consensus.DagRootReader.
func (t *DagRootTable) DagRoot(epoch uint64) (common.H128, bool) {
	if epoch < t.StartEpoch || epoch-t.StartEpoch >= uint64(len(t.Roots)) {
		return common.H128{}, false
	}
	return t.Roots[epoch-t.StartEpoch], true
}

// Copyright 2014 The go-ethereum Authors
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

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

var errGenesisNoHeader = errors.New("genesis has no header")

// Genesis specifies the trusted starting point of a relay: the first
// canonical header and the DAG roots of the epochs it is expected to verify.
type Genesis struct {
	Network    string              `json:"network"`
	Config     *params.ChainConfig `json:"config,omitempty"`
	Header     *types.Header       `json:"header"`
	StartEpoch uint64              `json:"startEpoch"`
	DagRoots   []common.H128       `json:"dagRoots"`

	// Alloc seeds the bond ledger of networks without an external currency.
	Alloc GenesisAlloc `json:"alloc,omitempty"`
}

// GenesisAlloc specifies the initial free balances of relayer accounts.
type GenesisAlloc map[common.Address]*hexutil.Big

// ReadGenesis loads a genesis specification from a YAML (or JSON) file.
func ReadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "read genesis")
	}
	return DecodeGenesis(data)
}

// DecodeGenesis parses a YAML genesis specification. Header fields use the
// JSON-RPC hex encoding; hex scalars are kept verbatim even when unquoted.
func DecodeGenesis(data []byte) (*Genesis, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, pkgerrors.Wrap(err, "parse genesis")
	}
	value, err := yamlValue(&doc)
	if err != nil {
		return nil, err
	}
	enc, err := json.Marshal(value)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "convert genesis")
	}
	genesis := new(Genesis)
	if err := json.Unmarshal(enc, genesis); err != nil {
		return nil, pkgerrors.Wrap(err, "decode genesis")
	}
	if genesis.Header == nil {
		return nil, errGenesisNoHeader
	}
	if _, err := genesis.ChainConfig(); err != nil {
		return nil, err
	}
	return genesis, nil
}

// yamlValue converts a YAML tree into values encoding/json understands.
func yamlValue(node *yaml.Node) (interface{}, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return yamlValue(node.Content[0])
	case yaml.AliasNode:
		return yamlValue(node.Alias)
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			v, err := yamlValue(node.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[node.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			v, err := yamlValue(item)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	}
	if strings.HasPrefix(node.Value, "0x") || strings.HasPrefix(node.Value, "0X") {
		return node.Value, nil
	}
	var v interface{}
	if err := node.Decode(&v); err != nil {
		return nil, fmt.Errorf("genesis line %d: %v", node.Line, err)
	}
	return v, nil
}

// ChainConfig returns the explicit configuration or the preset of the network.
func (g *Genesis) ChainConfig() (*params.ChainConfig, error) {
	if g.Config != nil {
		if g.Config.Ethash == nil {
			return nil, fmt.Errorf("genesis config of %q has no ethash schedule", g.Config.Name)
		}
		return g.Config, nil
	}
	return params.ChainConfigByName(g.Network)
}

// DagRootTable returns the DAG roots carried by the genesis.
func (g *Genesis) DagRootTable() *ethash.DagRootTable {
	return &ethash.DagRootTable{StartEpoch: g.StartEpoch, Roots: g.DagRoots}
}

// Commit writes the genesis header as the canonical head, together with the
// chain configuration and the DAG roots.
func (g *Genesis) Commit(db ethdb.Database) (*types.Header, error) {
	if g.Header == nil {
		return nil, errGenesisNoHeader
	}
	config, err := g.ChainConfig()
	if err != nil {
		return nil, err
	}
	header := types.CopyHeader(g.Header)
	hash := header.Hash()

	batch := db.NewBatch()
	rawdb.WriteDatabaseVersion(batch, BlockChainVersion)
	rawdb.WriteHeader(batch, header)
	rawdb.WriteCanonicalHash(batch, hash, header.Number)
	rawdb.WriteHeadHeaderNumber(batch, header.Number)
	rawdb.WriteGenesisHash(batch, hash)
	rawdb.WriteChainConfig(batch, hash, config)
	rawdb.WriteDagRoots(batch, g.StartEpoch, g.DagRoots)
	if err := batch.Write(); err != nil {
		return nil, pkgerrors.Wrap(err, "commit genesis")
	}
	return header, nil
}

// SetupGenesis writes or checks the genesis of db.
//
//	                     genesis == nil       genesis != nil
//	                  +------------------------------------------
//	db has no genesis |  ErrNoGenesis       |  genesis
//	db has genesis    |  from DB            |  genesis (if identical)
func SetupGenesis(db ethdb.Database, genesis *Genesis, logger log.Logger) (*params.ChainConfig, *types.Header, error) {
	stored := rawdb.ReadGenesisHash(db)
	if stored == (common.Hash{}) {
		if genesis == nil {
			return nil, nil, ErrNoGenesis
		}
		header, err := genesis.Commit(db)
		if err != nil {
			return nil, nil, err
		}
		config, _ := genesis.ChainConfig()
		logger.WithFields(log.Fields{
			"network": config.Name,
			"number":  header.Number,
			"hash":    header.Hash(),
			"epochs":  len(genesis.DagRoots),
		}).Info("Writing genesis header")
		return config, header, nil
	}
	if genesis != nil {
		if hash := genesis.Header.Hash(); hash != stored {
			return nil, nil, fmt.Errorf("%w: database has %s, new %s", ErrGenesisMismatch, stored, hash)
		}
	}
	number := rawdb.ReadHeaderNumber(db, stored)
	if number == nil {
		return nil, nil, ErrNoGenesis
	}
	header := rawdb.ReadHeader(db, stored, *number)
	if header == nil {
		return nil, nil, ErrNoGenesis
	}
	config := rawdb.ReadChainConfig(db, stored)
	if config == nil {
		if genesis == nil {
			return nil, nil, fmt.Errorf("found genesis %s without chain config", stored)
		}
		logger.Warn("Found genesis header without chain config")
		config, _ = genesis.ChainConfig()
		rawdb.WriteChainConfig(db, stored, config)
	}
	return config, header, nil
}

// DevGenesis returns a genesis on the development schedule whose first epochs
// are all committed to dataset.
func DevGenesis(dataset *ethash.TestDataset, epochs int) *Genesis {
	return &Genesis{
		Network: params.DevName,
		Header: &types.Header{
			UncleHash:  types.EmptyUncleHash,
			Difficulty: big.NewInt(256),
			GasLimit:   8_000_000,
			Time:       1_600_000_000,
			Extra:      []byte("go-relay dev"),
		},
		DagRoots: dataset.RootTable(epochs).Roots,
	}
}

// DefaultDevGenesis returns the genesis of the local development network and
// the synthetic dataset its DAG roots commit to.
func DefaultDevGenesis() (*Genesis, *ethash.TestDataset) {
	dataset := NewDevDataset()
	genesis := DevGenesis(dataset, 4)
	genesis.Alloc = make(GenesisAlloc)
	for _, addr := range DevAccounts {
		genesis.Alloc[addr] = (*hexutil.Big)(new(big.Int).Set(devBalance))
	}
	return genesis, dataset
}

// DevAccounts are the relayers funded on the development network.
var DevAccounts = []common.Address{
	common.HexToAddress("0x00000000000000000000000000000000000000d1"),
	common.HexToAddress("0x00000000000000000000000000000000000000d2"),
	common.HexToAddress("0x00000000000000000000000000000000000000d3"),
}

var devBalance = new(big.Int).Mul(big.NewInt(params.DefaultBaseBond), big.NewInt(1_000_000))

// NewDevDataset builds the synthetic dataset of the development network.
func NewDevDataset() *ethash.TestDataset {
	return ethash.NewTestDataset(int(params.DevDatasetRows), params.DevDatasetSeed)
}

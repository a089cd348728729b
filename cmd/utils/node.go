package utils

import (
	"math/big"
	"path/filepath"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/common/constants"
	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/currency"
	"github.com/dominant-strategies/go-relay/ethdb"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
	"github.com/dominant-strategies/go-relay/relay"
)

const (
	databaseCache   = 128
	databaseHandles = 256
)

// LoadGenesis returns the genesis named by the genesis flag. Without one, only
// the dev network has a built-in genesis.
func LoadGenesis() (*core.Genesis, error) {
	network := viper.GetString(NetworkFlag.Name)
	if _, err := params.ChainConfigByName(network); err != nil {
		return nil, err
	}
	path := viper.GetString(GenesisFlag.Name)
	if path == "" {
		if network != params.DevName {
			return nil, pkgerrors.Errorf("network %s needs a --%s file", network, GenesisFlag.Name)
		}
		genesis, _ := core.DefaultDevGenesis()
		return genesis, nil
	}
	genesis, err := core.ReadGenesis(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "loading genesis %s", path)
	}
	if genesis.Network == "" {
		genesis.Network = network
	}
	if genesis.Network != network {
		return nil, pkgerrors.Errorf("genesis %s is for network %s, not %s", path, genesis.Network, network)
	}
	return genesis, nil
}

// EthashConfig returns the verifier settings for a genesis. Dev networks
// verify against the synthetic dev dataset.
func EthashConfig(genesis *core.Genesis) ethash.Config {
	var config ethash.Config
	if viper.GetBool(FakePoWFlag.Name) {
		config.PowMode = ethash.ModeFullFake
	}
	if genesis != nil && genesis.Network == params.DevName {
		config.DatasetSize = core.NewDevDataset().DatasetSize
	}
	return config
}

// MakeRelayConfig builds the relay settings from the bound flags.
func MakeRelayConfig(genesis *core.Genesis) (*relay.Config, error) {
	config := relay.DefaultConfig()
	config.ConfirmPeriod = viper.GetUint64(ConfirmPeriodFlag.Name)
	config.MaxReorgDepth = viper.GetUint64(MaxReorgDepthFlag.Name)
	config.MmrHasher = viper.GetString(MmrHasherFlag.Name)
	config.MaxRounds = viper.GetUint64(MaxRoundsFlag.Name)
	config.RoundDuration = viper.GetUint64(RoundDurationFlag.Name)
	config.MaxActiveGames = viper.GetInt(MaxActiveGamesFlag.Name)
	config.TreasuryShare = viper.GetUint64(TreasuryShareFlag.Name)

	if s := viper.GetString(BaseBondFlag.Name); s != "" {
		bond, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, pkgerrors.Errorf("invalid %s %q", BaseBondFlag.Name, s)
		}
		config.BaseBond = bond
	}

	if treasury := viper.GetString(TreasuryFlag.Name); treasury != "" {
		var addr common.Address
		if err := addr.UnmarshalText([]byte(treasury)); err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid %s", TreasuryFlag.Name)
		}
		config.Treasury = addr
	}
	config.Ethash = EthashConfig(genesis)
	if err := config.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "relay config")
	}
	return config, nil
}

// OpenDatabase opens the chain database in the data directory.
func OpenDatabase(logger log.Logger) (ethdb.Database, error) {
	dir := filepath.Join(viper.GetString(DataDirFlag.Name), constants.CHAINDATA_DIR_NAME)
	db, err := rawdb.Open(rawdb.OpenOptions{
		Type:      viper.GetString(DBEngineFlag.Name),
		Directory: dir,
		Cache:     databaseCache,
		Handles:   databaseHandles,
	}, logger)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "opening database %s", dir)
	}
	return db, nil
}

// MakeLedger funds the genesis allocation in a fresh ledger.
func MakeLedger(genesis *core.Genesis) *currency.Ledger {
	ledger := currency.NewLedger()
	if genesis == nil {
		return ledger
	}
	for addr, balance := range genesis.Alloc {
		if balance != nil {
			ledger.Mint(addr, balance.ToInt())
		}
	}
	return ledger
}

// InboxDir returns the submission inbox directory.
func InboxDir() string {
	if dir := viper.GetString(InboxFlag.Name); dir != "" {
		return dir
	}
	return filepath.Join(viper.GetString(DataDirFlag.Name), constants.INBOX_DIR_NAME)
}

package utils

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/common/constants"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/params"
)

var GlobalFlags = []Flag{
	ConfigDirFlag,
	DataDirFlag,
	LogLevelFlag,
	SaveConfigFlag,
	NetworkFlag,
	GenesisFlag,
	DBEngineFlag,
}

var RelayFlags = []Flag{
	ConfirmPeriodFlag,
	MaxReorgDepthFlag,
	MmrHasherFlag,
	FakePoWFlag,
}

var GameFlags = []Flag{
	MaxRoundsFlag,
	RoundDurationFlag,
	BaseBondFlag,
	MaxActiveGamesFlag,
	TreasuryFlag,
	TreasuryShareFlag,
}

var NodeFlags = []Flag{
	BlockTimeFlag,
	InboxFlag,
}

var MetricsFlags = []Flag{
	MetricsEnabledFlag,
	MetricsPortFlag,
}

var VerifyFlags = []Flag{
	FormatFlag,
}

// Flags are the groups written to the default config file.
var Flags = [][]Flag{
	RelayFlags,
	GameFlags,
	NodeFlags,
	MetricsFlags,
}

var (
	// ****************************************
	// **                                    **
	// **         GLOBAL FLAGS               **
	// **                                    **
	// ****************************************
	ConfigDirFlag = Flag{
		Name:         "config-dir",
		Abbreviation: "c",
		Value:        xdg.ConfigHome + "/" + constants.APP_NAME + "/",
		Usage:        "config directory" + generateEnvDoc("config-dir"),
	}

	DataDirFlag = Flag{
		Name:         "data-dir",
		Abbreviation: "d",
		Value:        xdg.DataHome + "/" + constants.APP_NAME + "/",
		Usage:        "data directory" + generateEnvDoc("data-dir"),
	}

	LogLevelFlag = Flag{
		Name:         "log-level",
		Abbreviation: "l",
		Value:        "info",
		Usage:        "log level (trace, debug, info, warn, error, fatal, panic)" + generateEnvDoc("log-level"),
	}

	SaveConfigFlag = Flag{
		Name:         "save-config",
		Abbreviation: "S",
		Value:        false,
		Usage:        "save/update config file with current config parameters" + generateEnvDoc("save-config"),
	}

	NetworkFlag = Flag{
		Name:         "network",
		Abbreviation: "n",
		Value:        params.DevName,
		Usage:        "host chain network (mainnet, ropsten, dev)" + generateEnvDoc("network"),
	}

	GenesisFlag = Flag{
		Name:         "genesis",
		Abbreviation: "g",
		Value:        "",
		Usage:        "genesis file (yaml or json), required outside the dev network" + generateEnvDoc("genesis"),
	}

	DBEngineFlag = Flag{
		Name:  "db-engine",
		Value: "",
		Usage: "database engine (leveldb, pebble, memory), defaults to the existing one" + generateEnvDoc("db-engine"),
	}

	// ****************************************
	// **                                    **
	// **         RELAY FLAGS                **
	// **                                    **
	// ****************************************
	ConfirmPeriodFlag = Flag{
		Name:  "confirm-period",
		Value: params.DefaultConfirmPeriod,
		Usage: "blocks a settled header waits before it becomes canonical, 0 extends at once" + generateEnvDoc("confirm-period"),
	}

	MaxReorgDepthFlag = Flag{
		Name:  "max-reorg-depth",
		Value: params.DefaultMaxReorgDepth,
		Usage: "deepest rewind of the canonical chain allowed" + generateEnvDoc("max-reorg-depth"),
	}

	MmrHasherFlag = Flag{
		Name:  "mmr-hasher",
		Value: "keccak",
		Usage: "merge hash of the block MMR (keccak, blake3)" + generateEnvDoc("mmr-hasher"),
	}

	FakePoWFlag = Flag{
		Name:  "fakepow",
		Value: false,
		Usage: "skip proof of work checks, for local testing only" + generateEnvDoc("fakepow"),
	}

	// ****************************************
	// **                                    **
	// **         GAME FLAGS                 **
	// **                                    **
	// ****************************************
	MaxRoundsFlag = Flag{
		Name:  "max-rounds",
		Value: params.DefaultMaxRounds,
		Usage: "rounds after which a contested game settles by total difficulty" + generateEnvDoc("max-rounds"),
	}

	RoundDurationFlag = Flag{
		Name:  "round-duration",
		Value: params.DefaultRoundDuration,
		Usage: "blocks a round stays open after the last submission" + generateEnvDoc("round-duration"),
	}

	BaseBondFlag = Flag{
		Name:  "base-bond",
		Value: big.NewInt(params.DefaultBaseBond),
		Usage: "bond locked per header in the first round" + generateEnvDoc("base-bond"),
	}

	MaxActiveGamesFlag = Flag{
		Name:  "max-active-games",
		Value: int(params.DefaultMaxActiveGames),
		Usage: "maximum number of games in progress" + generateEnvDoc("max-active-games"),
	}

	TreasuryFlag = Flag{
		Name:  "treasury",
		Value: new(common.Address),
		Usage: "account credited with the treasury share of slashed bonds" + generateEnvDoc("treasury"),
	}

	TreasuryShareFlag = Flag{
		Name:  "treasury-share",
		Value: params.DefaultTreasuryShare,
		Usage: "percentage of slashed bonds kept by the treasury" + generateEnvDoc("treasury-share"),
	}

	// ****************************************
	// **                                    **
	// **         NODE FLAGS                 **
	// **                                    **
	// ****************************************
	BlockTimeFlag = Flag{
		Name:  "block-time",
		Value: 6 * time.Second,
		Usage: "interval of the local block ticker" + generateEnvDoc("block-time"),
	}

	InboxFlag = Flag{
		Name:  "inbox",
		Value: "",
		Usage: "directory polled for relayer submissions, defaults to <data-dir>/inbox" + generateEnvDoc("inbox"),
	}

	// ****************************************
	// **                                    **
	// **        METRICS FLAGS               **
	// **                                    **
	// ****************************************
	MetricsEnabledFlag = Flag{
		Name:  "metrics",
		Value: false,
		Usage: "enable prometheus metrics" + generateEnvDoc("metrics"),
	}

	MetricsPortFlag = Flag{
		Name:  "metrics-port",
		Value: "2112",
		Usage: "port of the prometheus metrics endpoint" + generateEnvDoc("metrics-port"),
	}

	// ****************************************
	// **                                    **
	// **        VERIFY FLAGS                **
	// **                                    **
	// ****************************************
	FormatFlag = Flag{
		Name:         "format",
		Abbreviation: "f",
		Value:        "",
		Usage:        "header thing encoding (json, binary), guessed from the file extension when empty" + generateEnvDoc("format"),
	}
)

func CreateAndBindFlag(flag Flag, cmd *cobra.Command) {
	switch val := flag.Value.(type) {
	case string:
		cmd.PersistentFlags().StringP(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case bool:
		cmd.PersistentFlags().BoolP(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case []string:
		cmd.PersistentFlags().StringSliceP(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case time.Duration:
		cmd.PersistentFlags().DurationP(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case int:
		cmd.PersistentFlags().IntP(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case int64:
		cmd.PersistentFlags().Int64P(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case uint64:
		cmd.PersistentFlags().Uint64P(flag.GetName(), flag.GetAbbreviation(), val, flag.GetUsage())
	case *big.Int:
		cmd.PersistentFlags().VarP(newBigIntValue(new(big.Int).Set(val)), flag.GetName(), flag.GetAbbreviation(), flag.GetUsage())
	case *common.Address:
		addr := *val
		cmd.PersistentFlags().VarP(NewTextMarshalerValue(&addr), flag.GetName(), flag.GetAbbreviation(), flag.GetUsage())
	default:
		log.Global.Error("Flag type not supported: " + flag.GetName() + ", " + fmt.Sprintf("%T", val))
	}
	viper.BindPFlag(flag.GetName(), cmd.PersistentFlags().Lookup(flag.GetName()))
}

// helper function that given a cobra flag name, returns the corresponding
// help legend for the equivalent environment variable
func generateEnvDoc(flag string) string {
	envVar := constants.ENV_PREFIX + "_" + strings.ReplaceAll(strings.ToUpper(flag), "-", "_")
	return fmt.Sprintf(" [%s]", envVar)
}

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/go-relay/cmd/utils"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>...",
	Short: "verifies the proof of work of header things",
	Long: `verifies the proof of work of the header things stored in the given files against
the DAG roots of the genesis. JSON files hold one header thing or an array of them,
binary files an RLP list of them.`,
	Args:                       cobra.MinimumNArgs(1),
	RunE:                       runVerify,
	SilenceUsage:               true,
	SuggestionsMinimumDistance: 2,
	Example:                    `go-relay verify --network=mainnet --genesis=genesis.yaml headers.json`,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	for _, flag := range utils.VerifyFlags {
		utils.CreateAndBindFlag(flag, verifyCmd)
	}
	utils.CreateAndBindFlag(utils.FakePoWFlag, verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	genesis, err := utils.LoadGenesis()
	if err != nil {
		return err
	}
	return utils.VerifyFiles(cmd.OutOrStdout(), genesis, utils.EthashConfig(genesis), viper.GetString(utils.FormatFlag.Name), args, toolLogger(cmd))
}

package main

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dominant-strategies/go-relay/cmd/utils"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/relay"
)

var mmrCmd = &cobra.Command{
	Use:   "mmr",
	Short: "reads the local block MMR",
}

var mmrRootCmd = &cobra.Command{
	Use:          "root [block]",
	Short:        "prints the MMR root after a local block, the latest by default",
	Args:         cobra.MaximumNArgs(1),
	RunE:         runMmrRoot,
	SilenceUsage: true,
}

var mmrProofCmd = &cobra.Command{
	Use:          "proof <leaf> [last-leaf]",
	Short:        "prints the membership proof of a leaf against the MMR of last-leaf, the latest by default",
	Args:         cobra.RangeArgs(1, 2),
	RunE:         runMmrProof,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(mmrCmd)
	mmrCmd.AddCommand(mmrRootCmd, mmrProofCmd)

	for _, flagGroup := range utils.Flags {
		for _, flag := range flagGroup {
			utils.CreateAndBindFlag(flag, mmrCmd)
		}
	}
}

// openRelay opens the relay persisted in the data directory.
func openRelay(logger log.Logger) (*relay.Relay, func(), error) {
	genesis, err := utils.LoadGenesis()
	if err != nil {
		return nil, nil, err
	}
	config, err := utils.MakeRelayConfig(genesis)
	if err != nil {
		return nil, nil, err
	}
	db, err := utils.OpenDatabase(logger)
	if err != nil {
		return nil, nil, err
	}
	r, err := relay.New(db, nil, config, utils.MakeLedger(genesis), nil, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return r, func() {
		r.Stop()
		db.Close()
	}, nil
}

func parseNumber(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

func runMmrRoot(cmd *cobra.Command, args []string) error {
	r, closeRelay, err := openRelay(toolLogger(cmd))
	if err != nil {
		return err
	}
	defer closeRelay()

	number := r.LocalHead()
	if len(args) > 0 {
		if number, err = parseNumber(args[0]); err != nil {
			return err
		}
	}
	root, ok := r.MMRRoot(number)
	if !ok {
		return fmt.Errorf("no MMR root for local block %d", number)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d %s\n", number, root.Hex())
	return nil
}

func runMmrProof(cmd *cobra.Command, args []string) error {
	leaf, err := parseNumber(args[0])
	if err != nil {
		return err
	}
	r, closeRelay, err := openRelay(toolLogger(cmd))
	if err != nil {
		return err
	}
	defer closeRelay()

	if r.LocalHead() == 0 {
		return fmt.Errorf("no local blocks processed")
	}
	last := r.LocalHead() - 1
	if len(args) > 1 {
		if last, err = parseNumber(args[1]); err != nil {
			return err
		}
	}
	proof, err := r.MMRProof(leaf, last)
	if err != nil {
		return err
	}
	root, _ := r.MMRRoot(last + 1)

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Item", "Hash"})
	for i, item := range proof.Items {
		table.Append([]string{strconv.Itoa(i), item.Hex()})
	}
	table.SetFooter([]string{fmt.Sprintf("size %d", proof.MmrSize), root.Hex()})
	table.Render()
	return nil
}

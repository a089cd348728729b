package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dominant-strategies/go-relay/cmd/utils"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/metrics_config"
	"github.com/dominant-strategies/go-relay/relay"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "starts the relay",
	Long: `starts the go-relay daemon. The daemon bootstraps the genesis header, produces
a local block every --block-time and applies the relayer submissions dropped into
the --inbox directory before each block.`,
	RunE:                       runStart,
	SilenceUsage:               true,
	SuggestionsMinimumDistance: 2,
	Example:                    `go-relay start --log-level=debug`,
}

func init() {
	rootCmd.AddCommand(startCmd)

	for _, flagGroup := range utils.Flags {
		for _, flag := range flagGroup {
			utils.CreateAndBindFlag(flag, startCmd)
		}
	}
}

func runStart(cmd *cobra.Command, args []string) error {
	log.Global.Info("Starting go-relay")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	genesis, err := utils.LoadGenesis()
	if err != nil {
		return err
	}
	config, err := utils.MakeRelayConfig(genesis)
	if err != nil {
		return err
	}
	db, err := utils.OpenDatabase(log.Global)
	if err != nil {
		return err
	}
	defer db.Close()

	r, err := relay.New(db, genesis, config, utils.MakeLedger(genesis), nil, log.Global)
	if err != nil {
		log.Global.WithField("error", err).Error("error creating relay")
		return err
	}
	defer r.Stop()

	inbox, err := utils.NewInbox(utils.InboxDir(), log.Global)
	if err != nil {
		return err
	}

	if viper.GetBool(utils.MetricsEnabledFlag.Name) {
		log.Global.Info("Starting metrics")
		metrics_config.EnableMetrics()
		addr := net.JoinHostPort("", viper.GetString(utils.MetricsPortFlag.Name))
		if server := metrics_config.StartProcessMetrics(addr, log.Global); server != nil {
			defer server.Close()
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := utils.RunBlockLoop(ctx, r, inbox, viper.GetDuration(utils.BlockTimeFlag.Name), log.Global); err != nil {
			log.Global.WithField("error", err).Error("Block loop stopped")
			cancel()
		}
	}()

	// wait for a SIGINT or SIGTERM signal
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-ch:
		log.Global.Warn("Received 'stop' signal, shutting down gracefully...")
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	log.Global.Warn("Relay is offline")
	return nil
}

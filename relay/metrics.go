package relay

import (
	"github.com/dominant-strategies/go-relay/consensus"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/metrics_config"
	"github.com/dominant-strategies/go-relay/relayergame"
)

var (
	bestHeaderGauge     = metrics_config.NewGauge("relay_best_header_number", "Number of the canonical head")
	activeGamesGauge    = metrics_config.NewGauge("relay_active_games", "Relayer games in progress")
	mmrSizeGauge        = metrics_config.NewGauge("relay_mmr_size", "Nodes in the local header MMR")
	pendingParcelsGauge = metrics_config.NewGauge("relay_pending_parcels", "Settled chains waiting for confirmation")

	proposalCounter = metrics_config.NewCounterVec("relay_proposals_total", "Proposals and challenges by result", "result")
	settledCounter  = metrics_config.NewCounterVec("relay_games_settled_total", "Settled relayer games by outcome", "outcome")

	blockTimer = metrics_config.NewHistogram("relay_process_block_seconds", "Time spent processing a local block")
)

// proposalResult labels a submission outcome.
func proposalResult(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case types.IsCodecError(err):
		return "codec"
	case consensus.IsPowError(err):
		return "pow"
	case core.IsChainError(err):
		return "chain"
	case relayergame.IsGameError(err):
		return "game"
	}
	return "other"
}

// settleOutcome labels a settled game.
func settleOutcome(ev relayergame.SettledEvent) string {
	if len(ev.Slashes) == 0 {
		return "uncontested"
	}
	return "contested"
}

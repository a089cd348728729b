package relayergame

import (
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/log"
)

// settle closes a game in favour of winner. Proposals whose chain lies on the
// winning chain are honest and get their bond back plus a share of the
// slashed pool; the others lose the part of their bond the slash policy
// names. The treasury takes its share of the pool and any rounding dust.
// Callers hold mu.
func (rg *RelayerGame) settle(game *Game, winner *Proposal, now uint64) (*SettledEvent, error) {
	chain := game.Chain(winner.Index)
	if err := rg.chain.MaybeExtendCanonical(now, game.ID, chain); err != nil {
		return nil, err
	}
	line := game.chainSet(winner.Index)

	var (
		honest      []*Proposal
		slashes     []Payout
		pool        = new(big.Int)
		honestBonds = new(big.Int)
	)
	for _, p := range game.Proposals {
		if line.Contains(game.Tip(p.Index).Hash()) {
			honest = append(honest, p)
			honestBonds.Add(honestBonds, p.Bond)
			continue
		}
		p.Eliminated = true
		amount := new(big.Int).Mul(p.Bond, new(big.Int).SetUint64(rg.adjustor.SlashPolicy(p.Round)))
		amount.Div(amount, common.Big100)
		if amount.Cmp(p.Bond) > 0 {
			amount.Set(p.Bond)
		}
		slashed := rg.currency.Slash(p.Relayer, amount)
		rg.currency.Unlock(p.Relayer, new(big.Int).Sub(p.Bond, amount))
		pool.Add(pool, slashed)
		slashes = append(slashes, Payout{Account: p.Relayer, Amount: slashed})
	}

	treasury := new(big.Int).Mul(pool, new(big.Int).SetUint64(rg.adjustor.TreasuryShare()))
	treasury.Div(treasury, common.Big100)
	rewardPool := new(big.Int).Sub(pool, treasury)
	paid := new(big.Int)

	rewards := make([]Payout, 0, len(honest))
	for _, p := range honest {
		rg.currency.Unlock(p.Relayer, p.Bond)
		reward := new(big.Int)
		if honestBonds.Sign() > 0 {
			reward.Mul(rewardPool, p.Bond)
			reward.Div(reward, honestBonds)
		}
		if reward.Sign() > 0 {
			rg.currency.Reward(p.Relayer, reward)
		}
		paid.Add(paid, reward)
		rewards = append(rewards, Payout{Account: p.Relayer, Amount: reward})
	}
	treasury.Add(treasury, rewardPool.Sub(rewardPool, paid))
	if treasury.Sign() > 0 {
		rg.currency.Reward(rg.treasury, treasury)
	}

	delete(rg.games, game.ID)
	batch := rg.db.NewBatch()
	rawdb.DeleteGame(batch, game.ID)
	rawdb.WriteClosedPoint(batch, game.ID)
	rawdb.WriteActiveGames(batch, rg.activeIDs())
	if err := batch.Write(); err != nil {
		rg.logger.WithField("err", err).Fatal("Failed to store settled relayer game")
	}

	tip := chain[len(chain)-1]
	ev := SettledEvent{
		GameID:   game.ID,
		Round:    game.Round,
		Winner:   winner.Index,
		Relayer:  winner.Relayer,
		Number:   tip.Number,
		Rewards:  rewards,
		Slashes:  slashes,
		Treasury: treasury,
	}
	rg.logger.WithFields(log.Fields{
		"game":     game.ID,
		"round":    game.Round,
		"winner":   winner.Index,
		"relayer":  winner.Relayer,
		"number":   tip.Number,
		"hash":     tip.Hash(),
		"slashed":  pool,
		"treasury": treasury,
	}).Info("Relayer game settled")
	rg.settledFeed.Send(ev)
	return &ev, nil
}

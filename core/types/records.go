package types

import (
	"math/big"

	"github.com/dominant-strategies/go-relay/common"
)

// GameRecord is the persisted form of a relayer game. Headers is the arena
// shared by all proposals; proposals reference it by hash.
type GameRecord struct {
	ID        uint64
	Round     uint64
	Deadline  uint64
	Headers   []*Header
	Proposals []*ProposalRecord
}

// ProposalRecord is the persisted form of a proposal. Parent is the index of
// the extended proposal plus one, zero for round one proposals.
type ProposalRecord struct {
	Index      uint64
	Relayer    common.Address
	Round      uint64
	Parent     uint64
	Headers    []common.Hash
	Bond       *big.Int
	Eliminated bool
}

// PendingParcel is a settled header chain waiting out the confirm period.
type PendingParcel struct {
	GameID    uint64
	ConfirmAt uint64
	Headers   []*Header
	Ayes      []common.Address
	Nays      []common.Address
}

// Number is the block number the parcel would advance the canonical chain to.
func (p *PendingParcel) Number() uint64 {
	if len(p.Headers) == 0 {
		return p.GameID
	}
	return p.Headers[len(p.Headers)-1].Number
}

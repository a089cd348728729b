package core

import (
	"github.com/pkg/errors"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/core/rawdb"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/log"
)

// PendingParcels returns the settled chains waiting for confirmation, ordered
// by game.
func (hc *HeaderChain) PendingParcels() []*types.PendingParcel {
	hc.headermu.RLock()
	defer hc.headermu.RUnlock()

	parcels := make([]*types.PendingParcel, 0, len(hc.pending))
	for _, id := range hc.pendingIDs() {
		parcels = append(parcels, hc.pending[id])
	}
	return parcels
}

// PendingParcel returns the settled chain of a game waiting for confirmation.
func (hc *HeaderChain) PendingParcel(gameID uint64) *types.PendingParcel {
	hc.headermu.RLock()
	defer hc.headermu.RUnlock()
	return hc.pending[gameID]
}

// ConfirmPending makes canonical every pending parcel whose confirm time is
// not after now. It returns the confirmed games.
func (hc *HeaderChain) ConfirmPending(now uint64) ([]uint64, error) {
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	var confirmed []uint64
	for _, id := range hc.pendingIDs() {
		parcel := hc.pending[id]
		if parcel.ConfirmAt > now {
			continue
		}
		if err := hc.confirmParcel(parcel, "confirm period passed"); err != nil {
			return confirmed, err
		}
		confirmed = append(confirmed, id)
	}
	return confirmed, nil
}

// ApprovePending confirms a pending parcel ahead of its confirm time.
func (hc *HeaderChain) ApprovePending(caller common.Address, gameID uint64) error {
	if !allowed(hc.config.ApproveOrigin, caller) {
		return ErrBadOrigin
	}
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	parcel, ok := hc.pending[gameID]
	if !ok {
		return ErrPendingParcelNotFound
	}
	return hc.confirmParcel(parcel, "approved by origin")
}

// RejectPending discards a pending parcel and reopens its divergence point.
func (hc *HeaderChain) RejectPending(caller common.Address, gameID uint64) error {
	if !allowed(hc.config.RejectOrigin, caller) {
		return ErrBadOrigin
	}
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	parcel, ok := hc.pending[gameID]
	if !ok {
		return ErrPendingParcelNotFound
	}
	return hc.rejectParcel(parcel, "rejected by origin")
}

// VotePending records a committee member's vote on a pending parcel. A member
// may change sides; repeating a vote fails. The parcel is confirmed or
// rejected as soon as a threshold is met.
func (hc *HeaderChain) VotePending(member common.Address, gameID uint64, aye bool) error {
	if !hc.members.Contains(member) {
		return ErrNotMember
	}
	hc.headermu.Lock()
	defer hc.headermu.Unlock()

	parcel, ok := hc.pending[gameID]
	if !ok {
		return ErrPendingParcelNotFound
	}
	if aye {
		if containsAddress(parcel.Ayes, member) {
			return ErrAlreadyVoted
		}
		parcel.Nays = removeAddress(parcel.Nays, member)
		parcel.Ayes = append(parcel.Ayes, member)
	} else {
		if containsAddress(parcel.Nays, member) {
			return ErrAlreadyVoted
		}
		parcel.Ayes = removeAddress(parcel.Ayes, member)
		parcel.Nays = append(parcel.Nays, member)
	}
	hc.logger.WithFields(log.Fields{
		"game":   gameID,
		"member": member,
		"aye":    aye,
		"ayes":   len(parcel.Ayes),
		"nays":   len(parcel.Nays),
	}).Debug("Vote on pending parcel")

	members := uint64(hc.members.Cardinality())
	switch {
	case uint64(len(parcel.Ayes))*100 >= hc.config.ApproveThreshold*members:
		return hc.confirmParcel(parcel, "approved by committee")
	case uint64(len(parcel.Nays))*100 >= hc.config.RejectThreshold*members:
		return hc.rejectParcel(parcel, "rejected by committee")
	}
	return hc.storePending(parcel)
}

// confirmParcel writes a parcel as canonical. Callers hold headermu.
func (hc *HeaderChain) confirmParcel(parcel *types.PendingParcel, reason string) error {
	if err := hc.connects(parcel.Headers); err != nil {
		hc.rejectParcel(parcel, "no longer extends head")
		return err
	}
	hc.dropPending(parcel.GameID)
	if err := hc.writeCanonical(parcel.Headers); err != nil {
		return err
	}
	hc.logger.WithFields(log.Fields{
		"game":   parcel.GameID,
		"number": parcel.Number(),
		"reason": reason,
	}).Info("Pending parcel confirmed")
	hc.parcelFeed.Send(PendingParcelEvent{GameID: parcel.GameID, Number: parcel.Number(), Status: ParcelApproved, Reason: reason})
	return nil
}

// rejectParcel discards a parcel and reopens its divergence point for new
// games. Callers hold headermu.
func (hc *HeaderChain) rejectParcel(parcel *types.PendingParcel, reason string) error {
	if err := hc.dropPending(parcel.GameID); err != nil {
		return err
	}
	rawdb.DeleteClosedPoint(hc.db, parcel.GameID)

	hc.logger.WithFields(log.Fields{
		"game":   parcel.GameID,
		"number": parcel.Number(),
		"reason": reason,
	}).Warn("Pending parcel rejected")
	hc.parcelFeed.Send(PendingParcelEvent{GameID: parcel.GameID, Number: parcel.Number(), Status: ParcelRejected, Reason: reason})
	return nil
}

func (hc *HeaderChain) storePending(parcel *types.PendingParcel) error {
	batch := hc.db.NewBatch()
	rawdb.WritePendingParcel(batch, parcel)
	rawdb.WritePendingParcelIDs(batch, hc.pendingIDs())
	return errors.Wrap(batch.Write(), "store pending parcel")
}

func (hc *HeaderChain) dropPending(gameID uint64) error {
	delete(hc.pending, gameID)
	batch := hc.db.NewBatch()
	rawdb.DeletePendingParcel(batch, gameID)
	rawdb.WritePendingParcelIDs(batch, hc.pendingIDs())
	return errors.Wrap(batch.Write(), "drop pending parcel")
}

func containsAddress(list []common.Address, addr common.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func removeAddress(list []common.Address, addr common.Address) []common.Address {
	out := list[:0]
	for _, a := range list {
		if a != addr {
			out = append(out, a)
		}
	}
	return out
}

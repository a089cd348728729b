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
	"github.com/dominant-strategies/go-relay/core/types"
)

// ChainHeadEvent is posted when the canonical head moves, forwards or by a
// rewind.
type ChainHeadEvent struct {
	Header *types.Header
}

// ParcelStatus is the state a pending parcel moved to.
type ParcelStatus uint8

const (
	ParcelPended ParcelStatus = iota
	ParcelApproved
	ParcelRejected
)

func (s ParcelStatus) String() string {
	switch s {
	case ParcelPended:
		return "pended"
	case ParcelApproved:
		return "approved"
	case ParcelRejected:
		return "rejected"
	}
	return "unknown"
}

// PendingParcelEvent is posted when a settled chain enters or leaves the
// confirmation queue.
type PendingParcelEvent struct {
	GameID uint64
	Number uint64
	Status ParcelStatus
	Reason string
}

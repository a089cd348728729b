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

// Package types contains data types related to relayed Ethereum headers.
package types

import (
	"encoding/json"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/dominant-strategies/go-relay/common"
)

var (
	// EmptyUncleHash is the ommers hash of a header without uncles.
	EmptyUncleHash = rlpHash([]*Header(nil))
)

// Header represents a block header of the relayed Ethereum chain.
type Header struct {
	ParentHash  common.Hash       `json:"parentHash"`
	UncleHash   common.Hash       `json:"sha3Uncles"`
	Coinbase    common.Address    `json:"miner"`
	Root        common.Hash       `json:"stateRoot"`
	TxHash      common.Hash       `json:"transactionsRoot"`
	ReceiptHash common.Hash       `json:"receiptsRoot"`
	Bloom       common.Bloom      `json:"logsBloom"`
	Difficulty  *big.Int          `json:"difficulty"`
	Number      uint64            `json:"number"`
	GasLimit    uint64            `json:"gasLimit"`
	GasUsed     uint64            `json:"gasUsed"`
	Time        uint64            `json:"timestamp"`
	Extra       []byte            `json:"extraData"`
	MixDigest   common.Hash       `json:"mixHash"`
	Nonce       common.BlockNonce `json:"nonce"`

	// BaseFee was added by EIP-1559 and is ignored in legacy headers.
	BaseFee *big.Int `json:"baseFeePerGas" rlp:"optional"`

	// hash supplied alongside the header by the data feed, never trusted
	claimedHash *common.Hash
}

// Hash returns the keccak256 hash of the header's RLP encoding. It is always
// recomputed from the fields.
func (h *Header) Hash() common.Hash {
	return rlpHash(h)
}

// SealHash returns the hash of the header without its PoW seal (mix digest
// and nonce). This is the value mined over.
func (h *Header) SealHash() common.Hash {
	enc := []interface{}{
		h.ParentHash,
		h.UncleHash,
		h.Coinbase,
		h.Root,
		h.TxHash,
		h.ReceiptHash,
		h.Bloom,
		h.Difficulty,
		h.Number,
		h.GasLimit,
		h.GasUsed,
		h.Time,
		h.Extra,
	}
	if h.BaseFee != nil {
		enc = append(enc, h.BaseFee)
	}
	return rlpHash(enc)
}

// ClaimedHash returns the hash that accompanied the header on the wire, if any.
func (h *Header) ClaimedHash() (common.Hash, bool) {
	if h.claimedHash == nil {
		return common.Hash{}, false
	}
	return *h.claimedHash, true
}

// SetClaimedHash records the hash supplied by the data feed.
func (h *Header) SetClaimedHash(hash common.Hash) {
	h.claimedHash = &hash
}

// HasUncles reports whether the header commits to a non-empty uncle list.
func (h *Header) HasUncles() bool {
	return h.UncleHash != EmptyUncleHash
}

// DifficultyU256 returns the difficulty as a 256 bit integer.
func (h *Header) DifficultyU256() *uint256.Int {
	return common.BigToU256(h.Difficulty)
}

// CopyHeader creates a deep copy of a block header.
func CopyHeader(h *Header) *Header {
	cpy := *h
	cpy.Difficulty = common.BigCopy(h.Difficulty)
	cpy.BaseFee = common.BigCopy(h.BaseFee)
	cpy.Extra = common.CopyBytes(h.Extra)
	if h.claimedHash != nil {
		claimed := *h.claimedHash
		cpy.claimedHash = &claimed
	}
	return &cpy
}

// TotalDifficulty sums the difficulty of a header sequence.
func TotalDifficulty(headers []*Header) *uint256.Int {
	td := new(uint256.Int)
	for _, h := range headers {
		td.Add(td, h.DifficultyU256())
	}
	return td
}

type headerJSON struct {
	ParentHash  *common.Hash       `json:"parentHash"`
	UncleHash   *common.Hash       `json:"sha3Uncles"`
	Coinbase    *common.Address    `json:"miner"`
	Root        *common.Hash       `json:"stateRoot"`
	TxHash      *common.Hash       `json:"transactionsRoot"`
	ReceiptHash *common.Hash       `json:"receiptsRoot"`
	Bloom       *common.Bloom      `json:"logsBloom"`
	Difficulty  *hexutil.Big       `json:"difficulty"`
	Number      *hexutil.Uint64    `json:"number"`
	GasLimit    *hexutil.Uint64    `json:"gasLimit"`
	GasUsed     *hexutil.Uint64    `json:"gasUsed"`
	Time        *hexutil.Uint64    `json:"timestamp"`
	Extra       *hexutil.Bytes     `json:"extraData"`
	MixDigest   *common.Hash       `json:"mixHash"`
	Nonce       *common.BlockNonce `json:"nonce"`
	BaseFee     *hexutil.Big       `json:"baseFeePerGas,omitempty"`
	Hash        *common.Hash       `json:"hash,omitempty"`
}

// MarshalJSON marshals the header in the Ethereum JSON-RPC shape.
func (h *Header) MarshalJSON() ([]byte, error) {
	hash := h.Hash()
	number := hexutil.Uint64(h.Number)
	gasLimit := hexutil.Uint64(h.GasLimit)
	gasUsed := hexutil.Uint64(h.GasUsed)
	time := hexutil.Uint64(h.Time)
	extra := hexutil.Bytes(h.Extra)
	enc := headerJSON{
		ParentHash:  &h.ParentHash,
		UncleHash:   &h.UncleHash,
		Coinbase:    &h.Coinbase,
		Root:        &h.Root,
		TxHash:      &h.TxHash,
		ReceiptHash: &h.ReceiptHash,
		Bloom:       &h.Bloom,
		Difficulty:  (*hexutil.Big)(h.Difficulty),
		Number:      &number,
		GasLimit:    &gasLimit,
		GasUsed:     &gasUsed,
		Time:        &time,
		Extra:       &extra,
		MixDigest:   &h.MixDigest,
		Nonce:       &h.Nonce,
		BaseFee:     (*hexutil.Big)(h.BaseFee),
		Hash:        &hash,
	}
	return json.Marshal(&enc)
}

// UnmarshalJSON decodes a header from the Ethereum JSON-RPC shape. Every
// consensus field is required.
func (h *Header) UnmarshalJSON(input []byte) error {
	var dec headerJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.ParentHash == nil {
		return errors.New("missing required field 'parentHash' for Header")
	}
	if dec.UncleHash == nil {
		return errors.New("missing required field 'sha3Uncles' for Header")
	}
	if dec.Coinbase == nil {
		return errors.New("missing required field 'miner' for Header")
	}
	if dec.Root == nil {
		return errors.New("missing required field 'stateRoot' for Header")
	}
	if dec.TxHash == nil {
		return errors.New("missing required field 'transactionsRoot' for Header")
	}
	if dec.ReceiptHash == nil {
		return errors.New("missing required field 'receiptsRoot' for Header")
	}
	if dec.Bloom == nil {
		return errors.New("missing required field 'logsBloom' for Header")
	}
	if dec.Difficulty == nil {
		return errors.New("missing required field 'difficulty' for Header")
	}
	if dec.Number == nil {
		return errors.New("missing required field 'number' for Header")
	}
	if dec.GasLimit == nil {
		return errors.New("missing required field 'gasLimit' for Header")
	}
	if dec.GasUsed == nil {
		return errors.New("missing required field 'gasUsed' for Header")
	}
	if dec.Time == nil {
		return errors.New("missing required field 'timestamp' for Header")
	}
	if dec.Extra == nil {
		return errors.New("missing required field 'extraData' for Header")
	}
	if dec.MixDigest == nil {
		return errors.New("missing required field 'mixHash' for Header")
	}
	if dec.Nonce == nil {
		return errors.New("missing required field 'nonce' for Header")
	}
	*h = Header{
		ParentHash:  *dec.ParentHash,
		UncleHash:   *dec.UncleHash,
		Coinbase:    *dec.Coinbase,
		Root:        *dec.Root,
		TxHash:      *dec.TxHash,
		ReceiptHash: *dec.ReceiptHash,
		Bloom:       *dec.Bloom,
		Difficulty:  (*big.Int)(dec.Difficulty),
		Number:      uint64(*dec.Number),
		GasLimit:    uint64(*dec.GasLimit),
		GasUsed:     uint64(*dec.GasUsed),
		Time:        uint64(*dec.Time),
		Extra:       *dec.Extra,
		MixDigest:   *dec.MixDigest,
		Nonce:       *dec.Nonce,
	}
	if dec.BaseFee != nil {
		h.BaseFee = (*big.Int)(dec.BaseFee)
	}
	if dec.Hash != nil {
		h.SetClaimedHash(*dec.Hash)
	}
	return nil
}

package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/dominant-strategies/go-relay/common"
)

// Format identifies a HeaderThing wire encoding.
type Format int

const (
	// FormatBinary is the compact RLP encoding.
	FormatBinary Format = iota
	// FormatJSON mirrors the shape returned by the header proof service.
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// ParseFormat parses a format name ("binary", "rlp" or "json").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "binary", "rlp", "bin":
		return FormatBinary, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, fmt.Errorf("unknown header thing format %q", s)
}

// CodecError reports a malformed HeaderThing. It is always the submitter's
// fault and is raised before any state is touched.
type CodecError struct {
	Format Format
	Err    error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("invalid %s header thing: %v", e.Format, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// IsCodecError reports whether err was produced by the header codec.
func IsCodecError(err error) bool {
	var ce *CodecError
	return errors.As(err, &ce)
}

// DoubleNodeWithProof is a pair of 64 byte dataset elements (one 128 byte
// dataset row) with the Merkle path proving the row against the epoch DAG
// root. Each 32 byte half of a node is stored byte-reversed, as produced by
// the proof service.
type DoubleNodeWithProof struct {
	DagNodes [2]common.H512 `json:"dag_nodes"`
	Proof    []common.H128  `json:"proof"`
}

type doubleNodeJSON struct {
	DagNodes []common.H512 `json:"dag_nodes"`
	Proof    []common.H128 `json:"proof"`
}

// UnmarshalJSON requires exactly two dataset nodes.
func (d *DoubleNodeWithProof) UnmarshalJSON(input []byte) error {
	var dec doubleNodeJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if len(dec.DagNodes) != 2 {
		return fmt.Errorf("expected 2 dag nodes, got %d", len(dec.DagNodes))
	}
	if dec.Proof == nil {
		return errors.New("missing required field 'proof' for DoubleNodeWithProof")
	}
	d.DagNodes = [2]common.H512{dec.DagNodes[0], dec.DagNodes[1]}
	d.Proof = dec.Proof
	return nil
}

// HeaderThing is the unit a relayer submits: a header plus the Ethash proof
// material needed to verify its seal. Ancestry is expressed by ParentHash and
// resolved against the header arena of the game the proposal belongs to.
type HeaderThing struct {
	Header *Header
	Proof  []DoubleNodeWithProof
}

// RawHeaderThing is the binary encoding of a HeaderThing.
type RawHeaderThing []byte

type headerThingJSON struct {
	Header      *Header               `json:"eth_header"`
	Proof       []DoubleNodeWithProof `json:"proof,omitempty"`
	EthashProof []DoubleNodeWithProof `json:"ethash_proof,omitempty"`
}

// MarshalJSON encodes the thing as {"eth_header": ..., "proof": [...]}.
func (t *HeaderThing) MarshalJSON() ([]byte, error) {
	proof := t.Proof
	if proof == nil {
		proof = []DoubleNodeWithProof{}
	}
	return json.Marshal(&headerThingJSON{Header: t.Header, Proof: proof})
}

// UnmarshalJSON accepts the proof array under either "proof" or "ethash_proof".
func (t *HeaderThing) UnmarshalJSON(input []byte) error {
	var dec headerThingJSON
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	if dec.Header == nil {
		return errors.New("missing required field 'eth_header' for HeaderThing")
	}
	t.Header = dec.Header
	t.Proof = dec.Proof
	if t.Proof == nil {
		t.Proof = dec.EthashProof
	}
	return nil
}

// Encode returns the binary encoding of the thing.
func (t *HeaderThing) Encode() (RawHeaderThing, error) {
	if t.Header == nil {
		return nil, &CodecError{Format: FormatBinary, Err: errors.New("nil header")}
	}
	enc, err := rlp.EncodeToBytes(t)
	if err != nil {
		return nil, &CodecError{Format: FormatBinary, Err: err}
	}
	return enc, nil
}

// DecodeHeaderThing decodes a single HeaderThing in the given format.
func DecodeHeaderThing(format Format, data []byte) (*HeaderThing, error) {
	thing := new(HeaderThing)
	switch format {
	case FormatBinary:
		if err := rlp.DecodeBytes(data, thing); err != nil {
			return nil, &CodecError{Format: format, Err: err}
		}
		if thing.Header == nil {
			return nil, &CodecError{Format: format, Err: errors.New("missing header")}
		}
	case FormatJSON:
		if err := json.Unmarshal(data, thing); err != nil {
			return nil, &CodecError{Format: format, Err: err}
		}
	default:
		return nil, &CodecError{Format: format, Err: errors.New("unsupported format")}
	}
	if thing.Header.Difficulty == nil {
		return nil, &CodecError{Format: format, Err: errors.New("missing difficulty")}
	}
	return thing, nil
}

// DecodeHeaderThings decodes a proposal. The whole batch fails on the first
// malformed element.
func DecodeHeaderThings(format Format, raws [][]byte) ([]*HeaderThing, error) {
	things := make([]*HeaderThing, 0, len(raws))
	for i, raw := range raws {
		thing, err := DecodeHeaderThing(format, raw)
		if err != nil {
			return nil, fmt.Errorf("header thing %d: %w", i, err)
		}
		things = append(things, thing)
	}
	return things, nil
}

// Headers strips the proof material of a proposal.
func Headers(things []*HeaderThing) []*Header {
	headers := make([]*Header, len(things))
	for i, thing := range things {
		headers[i] = thing.Header
	}
	return headers
}

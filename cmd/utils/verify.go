package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/olekukonko/tablewriter"
	pkgerrors "github.com/pkg/errors"

	"github.com/dominant-strategies/go-relay/consensus/ethash"
	"github.com/dominant-strategies/go-relay/core"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/log"
)

// FileFormat returns the HeaderThing encoding of a file. An empty name
// guesses from the extension, .json is JSON and anything else binary.
func FileFormat(path, name string) (types.Format, error) {
	if name != "" {
		return types.ParseFormat(name)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return types.FormatJSON, nil
	}
	return types.FormatBinary, nil
}

// SplitHeaderThings splits a file into encoded HeaderThings. JSON files hold
// one object or an array of them, binary files an RLP list of them.
func SplitHeaderThings(format types.Format, data []byte) ([][]byte, error) {
	switch format {
	case types.FormatJSON:
		trimmed := strings.TrimSpace(string(data))
		if !strings.HasPrefix(trimmed, "[") {
			return [][]byte{[]byte(trimmed)}, nil
		}
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, &types.CodecError{Format: format, Err: err}
		}
		raws := make([][]byte, len(items))
		for i, item := range items {
			raws[i] = item
		}
		return raws, nil
	case types.FormatBinary:
		content, _, err := rlp.SplitList(data)
		if err != nil {
			return nil, &types.CodecError{Format: format, Err: err}
		}
		var raws [][]byte
		for len(content) > 0 {
			_, _, rest, err := rlp.Split(content)
			if err != nil {
				return nil, &types.CodecError{Format: format, Err: err}
			}
			raws = append(raws, content[:len(content)-len(rest)])
			content = rest
		}
		return raws, nil
	}
	return nil, fmt.Errorf("unsupported format %v", format)
}

// VerifyFiles checks the proof of work of every HeaderThing in the files
// against the DAG roots of genesis and prints one table row per header. A
// header is also checked against its predecessor in the same file, or the
// genesis header, when it builds on it.
func VerifyFiles(w io.Writer, genesis *core.Genesis, config ethash.Config, format string, paths []string, logger log.Logger) error {
	chainConfig, err := genesis.ChainConfig()
	if err != nil {
		return err
	}
	engine := ethash.New(chainConfig.Ethash, genesis.DagRootTable(), config, logger)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"File", "Number", "Hash", "Difficulty", "Result"})
	failed, total := 0, 0
	for _, path := range paths {
		things, err := readHeaderThings(path, format)
		if err != nil {
			table.Append([]string{path, "", "", "", err.Error()})
			failed++
			total++
			continue
		}
		parent := genesis.Header
		for _, thing := range things {
			prev := parent
			if prev == nil || thing.Header.ParentHash != prev.Hash() {
				prev = nil
			}
			result := "ok"
			if err := engine.VerifyHeader(thing.Header, prev, thing.Proof); err != nil {
				result = err.Error()
				failed++
			}
			total++
			table.Append([]string{
				filepath.Base(path),
				fmt.Sprint(thing.Header.Number),
				thing.Header.Hash().TerminalString(),
				thing.Header.Difficulty.String(),
				result,
			})
			parent = thing.Header
		}
	}
	table.SetFooter([]string{"", "", "", "Failed", fmt.Sprintf("%d/%d", failed, total)})
	table.Render()
	if failed > 0 {
		return fmt.Errorf("%d of %d header things failed verification", failed, total)
	}
	return nil
}

func readHeaderThings(path, name string) ([]*types.HeaderThing, error) {
	format, err := FileFormat(path, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "reading %s", path)
	}
	raws, err := SplitHeaderThings(format, data)
	if err != nil {
		return nil, err
	}
	return types.DecodeHeaderThings(format, raws)
}

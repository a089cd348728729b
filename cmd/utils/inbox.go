package utils

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/dominant-strategies/go-relay/common"
	"github.com/dominant-strategies/go-relay/common/constants"
	"github.com/dominant-strategies/go-relay/core/types"
	"github.com/dominant-strategies/go-relay/log"
	"github.com/dominant-strategies/go-relay/relayergame"
)

// Submission is a relayer message dropped into the inbox. Without a game it
// proposes headers following the canonical head, otherwise it challenges the
// game extending the given parent proposal.
type Submission struct {
	Relayer common.Address    `json:"relayer"`
	Game    *uint64           `json:"game,omitempty"`
	Parent  *int              `json:"parent,omitempty"`
	Headers []json.RawMessage `json:"headers"`
}

// Submitter accepts relayer submissions.
type Submitter interface {
	SubmitRawProposal(ctx context.Context, relayer common.Address, raws [][]byte, format types.Format) (*relayergame.Proposal, error)
	Challenge(ctx context.Context, relayer common.Address, gameID uint64, parent int, things []*types.HeaderThing) (*relayergame.Proposal, error)
}

// Inbox is a directory of pending submission files. Applied files are moved
// to its done directory, rejected ones to its failed directory next to a
// .err file holding the reason.
type Inbox struct {
	dir    string
	logger log.Logger
}

// NewInbox creates the inbox directories when missing.
func NewInbox(dir string, logger log.Logger) (*Inbox, error) {
	for _, sub := range []string{"", constants.INBOX_DONE_DIR, constants.INBOX_FAILED_DIR} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, pkgerrors.Wrap(err, "creating inbox")
		}
	}
	return &Inbox{dir: dir, logger: logger.WithField("inbox", dir)}, nil
}

// Pending lists the submission files waiting in the inbox, in name order.
func (in *Inbox) Pending() ([]string, error) {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "reading inbox")
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

// Drain applies every pending submission and returns how many were accepted.
func (in *Inbox) Drain(ctx context.Context, s Submitter) (int, error) {
	files, err := in.Pending()
	if err != nil {
		return 0, err
	}
	accepted := 0
	for _, name := range files {
		if ctx.Err() != nil {
			return accepted, ctx.Err()
		}
		proposal, err := in.apply(ctx, s, filepath.Join(in.dir, name))
		if err != nil {
			in.logger.WithFields(log.Fields{"file": name, "err": err}).Warn("Rejected submission")
			if err := in.move(name, constants.INBOX_FAILED_DIR); err != nil {
				return accepted, err
			}
			reason := filepath.Join(in.dir, constants.INBOX_FAILED_DIR, name+".err")
			if err := os.WriteFile(reason, []byte(err.Error()+"\n"), 0644); err != nil {
				return accepted, pkgerrors.Wrap(err, "writing rejection reason")
			}
			continue
		}
		in.logger.WithFields(log.Fields{
			"file":     name,
			"relayer":  proposal.Relayer,
			"round":    proposal.Round,
			"proposal": proposal.Index,
		}).Info("Applied submission")
		if err := in.move(name, constants.INBOX_DONE_DIR); err != nil {
			return accepted, err
		}
		accepted++
	}
	return accepted, nil
}

func (in *Inbox) apply(ctx context.Context, s Submitter, path string) (*relayergame.Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sub Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		return nil, pkgerrors.Wrap(err, "decoding submission")
	}
	raws := make([][]byte, len(sub.Headers))
	for i, raw := range sub.Headers {
		raws[i] = raw
	}
	if sub.Game == nil {
		return s.SubmitRawProposal(ctx, sub.Relayer, raws, types.FormatJSON)
	}
	if sub.Parent == nil {
		return nil, pkgerrors.New("challenge without a parent proposal")
	}
	things, err := types.DecodeHeaderThings(types.FormatJSON, raws)
	if err != nil {
		return nil, err
	}
	return s.Challenge(ctx, sub.Relayer, *sub.Game, *sub.Parent, things)
}

func (in *Inbox) move(name, sub string) error {
	if err := os.Rename(filepath.Join(in.dir, name), filepath.Join(in.dir, sub, name)); err != nil {
		return pkgerrors.Wrapf(err, "moving %s to %s", name, sub)
	}
	return nil
}

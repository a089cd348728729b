package relayergame

import "errors"

var (
	// ErrGameAlreadySettled is returned when a chain is proposed at a
	// divergence point whose game has already been settled.
	ErrGameAlreadySettled = errors.New("game already settled")

	// ErrProposalTooShort is returned when a challenge does not carry more
	// evidence than its competitors: fewer headers, or as many headers with
	// no more cumulative difficulty.
	ErrProposalTooShort = errors.New("proposal too short")

	// ErrInsufficientBond is returned when the relayer cannot lock the bond
	// of its proposal.
	ErrInsufficientBond = errors.New("insufficient bond")

	// ErrEmptyProposal is returned when a proposal carries no headers.
	ErrEmptyProposal = errors.New("empty proposal")

	// ErrProposalDuplicated is returned when the same chain has already been
	// proposed in the game.
	ErrProposalDuplicated = errors.New("proposal duplicated")

	// ErrNoConflict is returned when a new proposal agrees with an existing
	// one, so there is nothing to dispute.
	ErrNoConflict = errors.New("proposal does not conflict")

	// ErrRoundMismatch is returned when a proposal is made in a round that
	// does not accept it.
	ErrRoundMismatch = errors.New("round mismatch")

	// ErrTooManyActiveGames is returned when opening a game would exceed the
	// active game limit.
	ErrTooManyActiveGames = errors.New("too many active games")

	// ErrGameNotFound is returned when no active game exists at a divergence
	// point.
	ErrGameNotFound = errors.New("game not found")

	// ErrProposalNotFound is returned when a challenge references a proposal
	// the game does not have.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrProposalEliminated is returned when a challenge extends a proposal
	// that already lost.
	ErrProposalEliminated = errors.New("proposal eliminated")
)

var gameErrors = []error{
	ErrGameAlreadySettled,
	ErrProposalTooShort,
	ErrInsufficientBond,
	ErrEmptyProposal,
	ErrProposalDuplicated,
	ErrNoConflict,
	ErrRoundMismatch,
	ErrTooManyActiveGames,
	ErrGameNotFound,
	ErrProposalNotFound,
	ErrProposalEliminated,
}

// IsGameError reports whether err is a relayer game rejection.
func IsGameError(err error) bool {
	for _, target := range gameErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package tiprerr defines the closed, stable error-code enumeration shared by
// every core package. Each Kind is a 16-bit code with a fixed
// wire value; adding a new one means appending to the const block below and
// to the stringer table, never renumbering an existing entry.
package tiprerr

import "fmt"

// Kind identifies one of the core's stable failure codes.
type Kind uint16

// The enumeration is grouped by concern: arithmetic, configuration,
// registry/weights, snapshots, voting, verification,
// routing/distribution, lifecycle.
const (
	ErrArithmeticOverflow Kind = iota
	ErrArithmeticUnderflow
	ErrDivisionByZero
	ErrCastError

	ErrFeeCapExceeded
	ErrTotalFeesCannotBeZero
	ErrInvalidEpochsBeforeStall
	ErrInvalidEpochsBeforeClose
	ErrInvalidSlotsAfterConsensus
	ErrInvalidDaoWallet

	ErrMintInTable
	ErrMintEntryNotFound
	ErrVaultIndexAlreadyInUse
	ErrNoFeedWeightOrSwitchboardFeed
	ErrWeightTableNotFinalized
	ErrWeightAlreadySet
	ErrStaleFeed
	ErrBadFeedValue
	ErrListFull

	ErrSnapshotFinalized
	ErrOperatorIsNotInSnapshot
	ErrEpochSnapshotNotFinalized

	ErrDuplicateVote
	ErrBallotTallyFull
	ErrOperatorVotesFull
	ErrConsensusAlreadyReached
	ErrConsensusNotReached
	ErrVotingIsNotOver
	ErrVotingIsOver
	ErrTieBreakerNotInPriorVotes

	ErrInvalidMerkleProof
	ErrInvalidOperatorVoter

	ErrNoRewards
	ErrRouterStillRouting
	ErrDestinationMismatch
	ErrFeeNotActive

	ErrEpochIsClosingDown
	ErrAccountAlreadyInitialized
	ErrCannotCloseAccount
	ErrCannotCloseAccountAlreadyClosed
	ErrCannotCloseAccountNotEnoughEpochs
	ErrCannotCloseEpochStateAccount
	ErrInvalidAccountToCloseDiscriminator
	ErrInvalidAccountStatus
	ErrInvalidStateTransition
	ErrInvalidAccountData
	ErrReservedBytesNonZero

	numKinds
)

var kindStrings = [numKinds]string{
	ErrArithmeticOverflow:                 "ArithmeticOverflow",
	ErrArithmeticUnderflow:                "ArithmeticUnderflow",
	ErrDivisionByZero:                     "DivisionByZero",
	ErrCastError:                          "CastError",
	ErrFeeCapExceeded:                     "FeeCapExceeded",
	ErrTotalFeesCannotBeZero:              "TotalFeesCannotBeZero",
	ErrInvalidEpochsBeforeStall:           "InvalidEpochsBeforeStall",
	ErrInvalidEpochsBeforeClose:           "InvalidEpochsBeforeClose",
	ErrInvalidSlotsAfterConsensus:         "InvalidSlotsAfterConsensus",
	ErrInvalidDaoWallet:                   "InvalidDaoWallet",
	ErrMintInTable:                        "MintInTable",
	ErrMintEntryNotFound:                  "MintEntryNotFound",
	ErrVaultIndexAlreadyInUse:             "VaultIndexAlreadyInUse",
	ErrNoFeedWeightOrSwitchboardFeed:      "NoFeedWeightOrSwitchboardFeed",
	ErrWeightTableNotFinalized:            "WeightTableNotFinalized",
	ErrWeightAlreadySet:                   "WeightAlreadySet",
	ErrStaleFeed:                          "StaleFeed",
	ErrBadFeedValue:                       "BadFeedValue",
	ErrListFull:                           "ListFull",
	ErrSnapshotFinalized:                  "SnapshotFinalized",
	ErrOperatorIsNotInSnapshot:            "OperatorIsNotInSnapshot",
	ErrEpochSnapshotNotFinalized:          "EpochSnapshotNotFinalized",
	ErrDuplicateVote:                      "DuplicateVote",
	ErrBallotTallyFull:                    "BallotTallyFull",
	ErrOperatorVotesFull:                  "OperatorVotesFull",
	ErrConsensusAlreadyReached:            "ConsensusAlreadyReached",
	ErrConsensusNotReached:                "ConsensusNotReached",
	ErrVotingIsNotOver:                    "VotingIsNotOver",
	ErrVotingIsOver:                       "VotingIsOver",
	ErrTieBreakerNotInPriorVotes:          "TieBreakerNotInPriorVotes",
	ErrInvalidMerkleProof:                 "InvalidMerkleProof",
	ErrInvalidOperatorVoter:               "InvalidOperatorVoter",
	ErrNoRewards:                          "NoRewards",
	ErrRouterStillRouting:                 "RouterStillRouting",
	ErrDestinationMismatch:                "DestinationMismatch",
	ErrFeeNotActive:                       "FeeNotActive",
	ErrEpochIsClosingDown:                 "EpochIsClosingDown",
	ErrAccountAlreadyInitialized:          "AccountAlreadyInitialized",
	ErrCannotCloseAccount:                 "CannotCloseAccount",
	ErrCannotCloseAccountAlreadyClosed:    "CannotCloseAccountAlreadyClosed",
	ErrCannotCloseAccountNotEnoughEpochs:  "CannotCloseAccountNotEnoughEpochs",
	ErrCannotCloseEpochStateAccount:       "CannotCloseEpochStateAccount",
	ErrInvalidAccountToCloseDiscriminator: "InvalidAccountToCloseDiscriminator",
	ErrInvalidAccountStatus:               "InvalidAccountStatus",
	ErrInvalidStateTransition:             "InvalidStateTransition",
	ErrInvalidAccountData:                 "InvalidAccountData",
	ErrReservedBytesNonZero:               "ReservedBytesNonZero",
}

// String implements fmt.Stringer. An out-of-range Kind (which should never
// happen for a value produced by this package) prints its numeric form.
func (k Kind) String() string {
	if int(k) < 0 || k >= numKinds {
		return fmt.Sprintf("Unknown ErrorKind (%d)", uint16(k))
	}
	return kindStrings[k]
}

// Error pairs a stable Kind with a human-readable description. It is the
// error type the core's own checks return.
type Error struct {
	Kind Kind
	Desc string
}

func (e Error) Error() string {
	if e.Desc == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Desc)
}

// Is reports whether target is an Error of the same Kind (target itself
// is not unwrapped), enabling errors.Is(err, tiprerr.New(ErrDuplicateVote))
// comparisons that ignore the description text.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error with no extra description.
func New(kind Kind) error {
	return Error{Kind: kind}
}

// Newf constructs an Error with a formatted description.
func Newf(kind Kind, format string, args ...any) error {
	return Error{Kind: kind, Desc: fmt.Sprintf(format, args...)}
}

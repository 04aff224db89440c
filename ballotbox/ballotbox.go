// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ballotbox implements the per-(NCN, epoch) vote tally and
// 2/3-stake-weighted consensus detector, with an admin tie-break path
// for stalled epochs.
package ballotbox

import (
	"math"

	"github.com/decred/dcrd/container/apbf"
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// MaxOperators bounds the fixed operator-vote and tally arrays.
const MaxOperators = 256

// emptyIndex is the sentinel marking an unoccupied slot; 0 is a valid
// slot index, so the all-ones value marks empty instead.
const emptyIndex = math.MaxUint16

// Ballot is a single 32-byte merkle root proposal.
type Ballot struct {
	Root [32]byte
}

// BallotTally accumulates votes for one proposed Ballot.
type BallotTally struct {
	index       uint16
	Ballot      Ballot
	StakeWeight amount.U128
	Count       uint64
}

func emptyTally() BallotTally { return BallotTally{index: emptyIndex} }

func (t BallotTally) isEmpty() bool { return t.index == emptyIndex }

// OperatorVote records one operator's most recent vote.
type OperatorVote struct {
	ballotIndex uint16
	Operator    pubkey.Key
	SlotVoted   uint64
	StakeWeight amount.U128
}

func emptyOperatorVote() OperatorVote { return OperatorVote{ballotIndex: emptyIndex} }

func (v OperatorVote) isEmpty() bool { return v.ballotIndex == emptyIndex }

// seenFilterMaxItems sizes the duplicate-vote pre-check filter to hold
// several generations of vote changes across a full operator set;
// seenFilterFPRate bounds how often a never-cast pair still falls
// through to the authoritative comparison.
const (
	seenFilterMaxItems = 4 * MaxOperators
	seenFilterFPRate   = 0.00001
)

// BallotBox is the per-(NCN, epoch) vote tally.
type BallotBox struct {
	NCN                  pubkey.Key
	Epoch                uint64
	SlotConsensusReached uint64
	OperatorsVoted       uint64
	UniqueBallots        uint64
	hasWinningBallot     bool
	WinningBallot        BallotTally

	votes   [MaxOperators]OperatorVote
	tallies [MaxOperators]BallotTally

	// seen is a non-authoritative fast-reject filter over previously cast
	// (operator, root) pairs: a negative lookup proves the pair is new and
	// lets CastVote skip comparing the operator's prior tally against the
	// new ballot; a positive lookup still falls through to the
	// authoritative arrays below since the filter can false-positive.
	seen *apbf.Filter
}

// New creates an empty BallotBox.
func New(ncn pubkey.Key, epoch uint64) *BallotBox {
	b := &BallotBox{NCN: ncn, Epoch: epoch}
	for i := range b.votes {
		b.votes[i] = emptyOperatorVote()
	}
	for i := range b.tallies {
		b.tallies[i] = emptyTally()
	}
	b.seen = apbf.NewFilter(seenFilterMaxItems, seenFilterFPRate)
	return b
}

// HasWinningBallot reports whether consensus has ever been recorded.
func (b *BallotBox) HasWinningBallot() bool { return b.hasWinningBallot }

func votedKey(operator pubkey.Key, root [32]byte) []byte {
	key := make([]byte, 0, pubkey.Size+32)
	key = append(key, operator[:]...)
	key = append(key, root[:]...)
	return key
}

func (b *BallotBox) findOrCreateTally(ballot Ballot, stakeWeight amount.U128) (int, error) {
	for i := range b.tallies {
		if !b.tallies[i].isEmpty() && b.tallies[i].Ballot == ballot {
			sw, err := b.tallies[i].StakeWeight.Add(stakeWeight)
			if err != nil {
				return 0, err
			}
			b.tallies[i].StakeWeight = sw
			b.tallies[i].Count++
			return i, nil
		}
	}
	for i := range b.tallies {
		if b.tallies[i].isEmpty() {
			b.tallies[i] = BallotTally{index: uint16(i), Ballot: ballot, StakeWeight: stakeWeight, Count: 1}
			b.UniqueBallots++
			return i, nil
		}
	}
	return 0, tiprerr.New(tiprerr.ErrBallotTallyFull)
}

func (b *BallotBox) removeFromTally(index int, stakeWeight amount.U128) error {
	sw, err := b.tallies[index].StakeWeight.Sub(stakeWeight)
	if err != nil {
		return err
	}
	b.tallies[index].StakeWeight = sw
	b.tallies[index].Count--
	return nil
}

// CastVote records a vote for ballot by operator with the given stake
// weight, updating the ballot tallies; consensus is evaluated
// separately by TallyVotes. Changing an existing vote to a new ballot is
// permitted, decrementing the operator's prior tally; re-casting the
// identical ballot fails with DuplicateVote.
func (b *BallotBox) CastVote(operator pubkey.Key, ballot Ballot, stakeWeight amount.U128, currentSlot, validSlotsAfterConsensus uint64) error {
	if b.hasWinningBallot && currentSlot > b.SlotConsensusReached+validSlotsAfterConsensus {
		return tiprerr.New(tiprerr.ErrVotingIsOver)
	}

	key := votedKey(operator, ballot.Root)
	maybeDuplicate := b.seen.Contains(key)

	for i := range b.votes {
		if b.votes[i].isEmpty() {
			continue
		}
		if b.votes[i].Operator != operator {
			continue
		}
		// seen is a negative-authoritative pre-check: if it has never seen
		// this (operator, root) pair, the pair cannot be a duplicate and
		// the tally-equality comparison below is skipped outright; a
		// positive still requires the real comparison since apbf can
		// false-positive.
		if maybeDuplicate && b.tallies[b.votes[i].ballotIndex].Ballot == ballot {
			return tiprerr.New(tiprerr.ErrDuplicateVote)
		}
		if err := b.removeFromTally(int(b.votes[i].ballotIndex), b.votes[i].StakeWeight); err != nil {
			return err
		}

		idx, err := b.findOrCreateTally(ballot, stakeWeight)
		if err != nil {
			return err
		}
		b.votes[i] = OperatorVote{ballotIndex: uint16(idx), Operator: operator, SlotVoted: currentSlot, StakeWeight: stakeWeight}
		b.seen.Add(key)
		return nil
	}

	idx, err := b.findOrCreateTally(ballot, stakeWeight)
	if err != nil {
		return err
	}
	for i := range b.votes {
		if b.votes[i].isEmpty() {
			b.votes[i] = OperatorVote{ballotIndex: uint16(idx), Operator: operator, SlotVoted: currentSlot, StakeWeight: stakeWeight}
			b.OperatorsVoted++
			b.seen.Add(key)
			return nil
		}
	}
	return tiprerr.New(tiprerr.ErrOperatorVotesFull)
}

// TallyVotes re-evaluates whether any tally now meets the 2/3
// supermajority threshold. Once a winning ballot is recorded it is never
// overwritten, even if a later tally's stake weight surpasses it.
func (b *BallotBox) TallyVotes(totalStakeWeight amount.U128, currentSlot uint64) {
	if b.hasWinningBallot {
		return
	}

	var maxTally *BallotTally
	for i := range b.tallies {
		if b.tallies[i].isEmpty() {
			continue
		}
		if maxTally == nil || b.tallies[i].StakeWeight.Cmp(maxTally.StakeWeight) > 0 {
			maxTally = &b.tallies[i]
		}
	}
	if maxTally == nil {
		return
	}

	if amount.PreciseConsensusReached(maxTally.StakeWeight, totalStakeWeight) {
		b.hasWinningBallot = true
		b.WinningBallot = *maxTally
		b.SlotConsensusReached = currentSlot
	}
}

// TieBreak admin-selects chosenRoot as the winning ballot when voting
// has stalled. Permitted only once currentEpoch >= Epoch +
// epochsBeforeStall and no winning ballot is yet recorded; chosenRoot must
// already have at least one vote. slot_consensus_reached is left at zero,
// the sentinel for "set by tie-break".
func (b *BallotBox) TieBreak(chosenRoot Ballot, currentEpoch, epochsBeforeStall uint64) error {
	if currentEpoch < b.Epoch+epochsBeforeStall {
		return tiprerr.New(tiprerr.ErrVotingIsNotOver)
	}
	if b.hasWinningBallot {
		return tiprerr.New(tiprerr.ErrConsensusAlreadyReached)
	}

	for i := range b.tallies {
		if !b.tallies[i].isEmpty() && b.tallies[i].Ballot == chosenRoot && b.tallies[i].Count > 0 {
			b.hasWinningBallot = true
			b.WinningBallot = b.tallies[i]
			b.SlotConsensusReached = 0
			return nil
		}
	}
	return tiprerr.New(tiprerr.ErrTieBreakerNotInPriorVotes)
}

// Tallies returns every occupied BallotTally.
func (b *BallotBox) Tallies() []BallotTally {
	out := make([]BallotTally, 0, MaxOperators)
	for _, t := range b.tallies {
		if !t.isEmpty() {
			out = append(out, t)
		}
	}
	return out
}

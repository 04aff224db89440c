// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ballotbox_test

import (
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/ballotbox"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

func root(b byte) ballotbox.Ballot {
	var ballot ballotbox.Ballot
	ballot.Root[0] = b
	return ballot
}

// A single operator holding the full stake reaches consensus trivially.
func TestSingleOperatorConsensus(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	stake := amount.U128FromU64(1_000_000)

	if err := box.CastVote(key(2), root(0xAA), stake, 100, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(stake, 100)

	if !box.HasWinningBallot() {
		t.Fatal("expected consensus with a trivial supermajority")
	}
	if box.SlotConsensusReached != 100 {
		t.Fatalf("SlotConsensusReached = %d, want 100", box.SlotConsensusReached)
	}
	if box.WinningBallot.Ballot != root(0xAA) {
		t.Fatal("winning ballot root mismatch")
	}
}

// Three operators, two ballots: 70/100 stake reaches consensus on the
// second vote for the leading root.
func TestSplitVoteSupermajority(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	total := amount.U128FromU64(100)

	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(40), 1, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(total, 1)
	if box.HasWinningBallot() {
		t.Fatal("40/100 must not reach consensus")
	}

	if err := box.CastVote(key(3), root(0xBB), amount.U128FromU64(30), 2, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(total, 2)
	if box.HasWinningBallot() {
		t.Fatal("40/30 split must not reach consensus")
	}

	if err := box.CastVote(key(4), root(0xAA), amount.U128FromU64(30), 3, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(total, 3)
	if !box.HasWinningBallot() {
		t.Fatal("70/100 must reach consensus")
	}
	if box.WinningBallot.Ballot != root(0xAA) {
		t.Fatal("expected root 0xAA to win")
	}
	if box.SlotConsensusReached != 3 {
		t.Fatalf("SlotConsensusReached = %d, want 3", box.SlotConsensusReached)
	}
}

func TestCastVoteRejectsDuplicateIdenticalBallot(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(1), 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(1), 2, 50); err == nil {
		t.Fatal("expected DuplicateVote")
	}
}

func TestCastVoteAllowsChangingVote(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(5), 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.CastVote(key(2), root(0xBB), amount.U128FromU64(5), 2, 50); err != nil {
		t.Fatalf("expected vote change to succeed, got %v", err)
	}

	tallies := box.Tallies()
	var aa, bb amount.U128
	for _, tl := range tallies {
		if tl.Ballot == root(0xAA) {
			aa = tl.StakeWeight
		}
		if tl.Ballot == root(0xBB) {
			bb = tl.StakeWeight
		}
	}
	if !aa.IsZero() {
		t.Fatalf("expected old tally decremented to zero after vote change, "+
			"tallies: %s", spew.Sdump(tallies))
	}
	if bb.Cmp(amount.U128FromU64(5)) != 0 {
		t.Fatalf("expected new tally credited with the operator's stake "+
			"weight, tallies: %s", spew.Sdump(tallies))
	}
}

// Three operators split three ways never reach a supermajority; the
// tie-break admin resolves the stall.
func TestStalledVoteTieBreak(t *testing.T) {
	box := ballotbox.New(key(1), 10)

	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(50), 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.CastVote(key(3), root(0xBB), amount.U128FromU64(30), 2, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.CastVote(key(4), root(0xCC), amount.U128FromU64(20), 3, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(amount.U128FromU64(100), 3)
	if box.HasWinningBallot() {
		t.Fatal("no tally should reach 2/3 of 100")
	}

	epochsBeforeStall := uint64(5)
	if err := box.TieBreak(root(0xBB), 10+epochsBeforeStall, epochsBeforeStall); err != nil {
		t.Fatal(err)
	}
	if box.WinningBallot.Ballot != root(0xBB) {
		t.Fatal("expected tie-break to select root 0xBB")
	}
	if box.SlotConsensusReached != 0 {
		t.Fatal("tie-break must leave slot_consensus_reached at the zero sentinel")
	}

	if err := box.TieBreak(root(0xAA), 20, epochsBeforeStall); err == nil {
		t.Fatal("expected ConsensusAlreadyReached on a second tie-break")
	}
}

func TestTieBreakRejectsUnknownRoot(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(1), 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.TieBreak(root(0xFF), 20, 5); err == nil {
		t.Fatal("expected TieBreakerNotInPriorVotes")
	}
}

func TestTieBreakRejectsBeforeStallWindow(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	if err := box.CastVote(key(2), root(0xAA), amount.U128FromU64(1), 1, 50); err != nil {
		t.Fatal(err)
	}
	if err := box.TieBreak(root(0xAA), 12, 5); err == nil {
		t.Fatal("expected VotingIsNotOver before current_epoch >= epoch+epochs_before_stall")
	}
}

func TestCastVoteRejectsAfterVotingWindowCloses(t *testing.T) {
	box := ballotbox.New(key(1), 10)
	stake := amount.U128FromU64(1_000_000)
	if err := box.CastVote(key(2), root(0xAA), stake, 100, 50); err != nil {
		t.Fatal(err)
	}
	box.TallyVotes(stake, 100)

	if err := box.CastVote(key(3), root(0xBB), amount.U128FromU64(1), 200, 50); err == nil {
		t.Fatal("expected VotingIsOver once past slot_consensus_reached+valid_slots_after_consensus")
	}
}

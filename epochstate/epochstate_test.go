// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package epochstate_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/epochstate"
)

func TestOpenWeightTableRequiresStartingEpoch(t *testing.T) {
	s := epochstate.New(5)
	if err := s.OpenWeightTable(4, 5); err == nil {
		t.Fatal("expected rejection before starting_valid_epoch")
	}
	if err := s.OpenWeightTable(5, 5); err != nil {
		t.Fatal(err)
	}
	if s.Status(epochstate.SlotWeightTable) != epochstate.StatusOpen {
		t.Fatal("expected weight table slot Open")
	}
}

func TestOpenWeightTableRejectsDoubleOpen(t *testing.T) {
	s := epochstate.New(0)
	if err := s.OpenWeightTable(0, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.OpenWeightTable(0, 0); err == nil {
		t.Fatal("expected AccountAlreadyInitialized on re-open")
	}
}

func TestOpenEpochSnapshotRequiresFinalizedWeightTable(t *testing.T) {
	s := epochstate.New(0)
	if err := s.OpenEpochSnapshot(false); err == nil {
		t.Fatal("expected WeightTableNotFinalized")
	}
	if err := s.OpenEpochSnapshot(true); err != nil {
		t.Fatal(err)
	}
}

func TestCastVoteGateRequiresOpenBallotBoxAndFinalizedSnapshot(t *testing.T) {
	s := epochstate.New(0)
	if err := s.RequireCastVoteOpen(true); err == nil {
		t.Fatal("expected rejection: ballot box not open")
	}

	if err := s.OpenEpochSnapshot(true); err != nil {
		t.Fatal(err)
	}
	if err := s.OpenBallotBox(true); err != nil {
		t.Fatal(err)
	}
	if err := s.RequireCastVoteOpen(false); err == nil {
		t.Fatal("expected EpochSnapshotNotFinalized")
	}
	if err := s.RequireCastVoteOpen(true); err != nil {
		t.Fatal(err)
	}
}

func TestCloseEpochStateRequiresEverySlotClosed(t *testing.T) {
	s := epochstate.New(0)
	if err := s.OpenWeightTable(0, 0); err != nil {
		t.Fatal(err)
	}

	if err := s.CloseGlobalSlot(epochstate.SlotEpochState, 10, 1, 0); err == nil {
		t.Fatal("expected CannotCloseEpochStateAccount while weight table is still open")
	}

	if err := s.CloseGlobalSlot(epochstate.SlotWeightTable, 10, 1, 0); err != nil {
		t.Fatal(err)
	}
	if err := s.CloseGlobalSlot(epochstate.SlotEpochState, 10, 1, 0); err != nil {
		t.Fatal(err)
	}
}

func TestCloseGlobalSlotRequiresWaitEpochs(t *testing.T) {
	s := epochstate.New(0)
	if err := s.CloseGlobalSlot(epochstate.SlotEpochState, 0, 5, 0); err == nil {
		t.Fatal("expected CannotCloseAccountNotEnoughEpochs")
	}
}

func TestStateBytesRoundTrip(t *testing.T) {
	s := epochstate.New(7)
	if err := s.OpenWeightTable(7, 7); err != nil {
		t.Fatal(err)
	}

	data, err := s.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	got, err := epochstate.Load(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Epoch != s.Epoch {
		t.Fatalf("Load round trip mismatch: Epoch = %d, want %d", got.Epoch, s.Epoch)
	}
	if got.Status(epochstate.SlotWeightTable) != epochstate.StatusOpen {
		t.Fatal("Load round trip lost the weight table slot's Open status")
	}
}

func TestStateLoadRejectsNonZeroReserved(t *testing.T) {
	s := epochstate.New(7)
	data, err := s.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] = 0xff // corrupt the trailing reserved byte

	if _, err := epochstate.Load(data); err == nil {
		t.Fatal("expected ReservedBytesNonZero rejection")
	}
}

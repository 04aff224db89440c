// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package epochstate implements the per-(NCN, epoch) gate that every
// other component consults before advancing. Account slots move
// DNE -> Open -> Closed; every instruction besides the slot's own
// constructor/closer reads and updates a progress counter instead of
// the slot status.
package epochstate

import (
	"encoding/binary"

	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Status is one account slot's lifecycle state.
type Status byte

const (
	// StatusDNE is the initial state: the account does not exist yet.
	StatusDNE Status = iota
	StatusOpen
	StatusClosed
)

// Slot names the per-epoch account families tracked by account_status.
type Slot int

const (
	SlotEpochState Slot = iota
	SlotWeightTable
	SlotEpochSnapshot
	SlotBallotBox
	SlotBaseRewardRouter
	numGlobalSlots
)

// MaxOperators bounds the per-operator slot arrays.
const MaxOperators = 256

// NcnFeeGroupCount mirrors feegroup.NcnFeeGroupCount; restated here to
// avoid a dependency cycle since feegroup has no need of epochstate.
const NcnFeeGroupCount = 8

// Progress tracks a (tally, total) counter pair for one of the
// multi-step phases of an epoch: set_weight, epoch_snapshot, voting,
// validation, upload, base_distribution, and total_distribution.
type Progress struct {
	Tally uint64
	Total uint64
}

// Done reports whether every unit of work for this phase has completed.
func (p Progress) Done() bool { return p.Total > 0 && p.Tally >= p.Total }

// ProgressKind enumerates the tracked phases.
type ProgressKind int

const (
	ProgressSetWeight ProgressKind = iota
	ProgressEpochSnapshot
	ProgressVoting
	ProgressValidation
	ProgressUpload
	ProgressBaseDistribution
	ProgressTotalDistribution
	numProgressKinds
)

// State is the per-(NCN, epoch) gate.
type State struct {
	Epoch    uint64
	slots    [numGlobalSlots]Status
	opSlots  [MaxOperators]Status
	ncnSlots [MaxOperators][NcnFeeGroupCount]Status
	progress [numProgressKinds]Progress

	// reserved is trailing wire-layout padding for future fields.
	// Always written as zero; Load rejects any stored value where it
	// is not.
	reserved [32]byte
}

// New creates a State with every slot at DNE.
func New(epoch uint64) *State {
	return &State{Epoch: epoch}
}

// stateSize is the fixed wire size of a serialized State: the epoch,
// one status byte per slot, the progress counter pairs, and the trailing
// reserved region.
const stateSize = 8 +
	int(numGlobalSlots) +
	MaxOperators +
	MaxOperators*NcnFeeGroupCount +
	int(numProgressKinds)*16 +
	32

// Bytes serializes s to its fixed little-endian wire layout, trailing
// reserved padding included, for storage in ledgerstore.
func (s *State) Bytes() ([]byte, error) {
	buf := make([]byte, 0, stateSize)
	var u [8]byte
	binary.LittleEndian.PutUint64(u[:], s.Epoch)
	buf = append(buf, u[:]...)
	for _, st := range s.slots {
		buf = append(buf, byte(st))
	}
	for _, st := range s.opSlots {
		buf = append(buf, byte(st))
	}
	for _, row := range s.ncnSlots {
		for _, st := range row {
			buf = append(buf, byte(st))
		}
	}
	for _, p := range s.progress {
		binary.LittleEndian.PutUint64(u[:], p.Tally)
		buf = append(buf, u[:]...)
		binary.LittleEndian.PutUint64(u[:], p.Total)
		buf = append(buf, u[:]...)
	}
	buf = append(buf, s.reserved[:]...)
	return buf, nil
}

func loadStatus(b byte) (Status, error) {
	if b > byte(StatusClosed) {
		return 0, tiprerr.New(tiprerr.ErrInvalidAccountStatus)
	}
	return Status(b), nil
}

// Load decodes a State previously written by Bytes, rejecting the account
// if any status byte is out of range or the reserved region is not
// all-zero.
func Load(data []byte) (*State, error) {
	if len(data) != stateSize {
		return nil, tiprerr.New(tiprerr.ErrInvalidAccountData)
	}

	var s State
	s.Epoch = binary.LittleEndian.Uint64(data[:8])
	off := 8
	for i := range s.slots {
		st, err := loadStatus(data[off])
		if err != nil {
			return nil, err
		}
		s.slots[i] = st
		off++
	}
	for i := range s.opSlots {
		st, err := loadStatus(data[off])
		if err != nil {
			return nil, err
		}
		s.opSlots[i] = st
		off++
	}
	for i := range s.ncnSlots {
		for j := range s.ncnSlots[i] {
			st, err := loadStatus(data[off])
			if err != nil {
				return nil, err
			}
			s.ncnSlots[i][j] = st
			off++
		}
	}
	for i := range s.progress {
		s.progress[i].Tally = binary.LittleEndian.Uint64(data[off:])
		s.progress[i].Total = binary.LittleEndian.Uint64(data[off+8:])
		off += 16
	}
	for _, b := range data[off:] {
		if b != 0 {
			return nil, tiprerr.New(tiprerr.ErrReservedBytesNonZero)
		}
	}
	return &s, nil
}

// Status returns a global slot's current status.
func (s *State) Status(slot Slot) Status { return s.slots[slot] }

// OperatorSnapshotStatus returns operator snapshot slot op's status.
func (s *State) OperatorSnapshotStatus(op int) Status { return s.opSlots[op] }

// NcnRewardRouterStatus returns the (op, group) NCN router slot's status.
func (s *State) NcnRewardRouterStatus(op int, group int) Status { return s.ncnSlots[op][group] }

// Progress returns the counter pair for kind.
func (s *State) Progress(kind ProgressKind) Progress { return s.progress[kind] }

// AdvanceProgress records progress for kind. A call with a nonzero total
// sets the phase's total on first use and counts no unit of work; a
// call with total 0 increments the tally, capped at the total once one
// is set. A phase with no total keeps counting, but Done never reports
// it complete.
func (s *State) AdvanceProgress(kind ProgressKind, total uint64) {
	p := &s.progress[kind]
	if total != 0 {
		if p.Total == 0 {
			p.Total = total
		}
		return
	}
	if p.Total == 0 || p.Tally < p.Total {
		p.Tally++
	}
}

func open(current Status) error {
	if current != StatusDNE {
		return tiprerr.New(tiprerr.ErrAccountAlreadyInitialized)
	}
	return nil
}

// OpenEpochState transitions the epoch state's own slot DNE -> Open,
// completing initialize_epoch_state.
func (s *State) OpenEpochState() error {
	if err := open(s.slots[SlotEpochState]); err != nil {
		return err
	}
	s.slots[SlotEpochState] = StatusOpen
	return nil
}

// OpenWeightTable transitions the weight table slot DNE -> Open. Requires
// currentEpoch >= startingValidEpoch.
func (s *State) OpenWeightTable(currentEpoch, startingValidEpoch uint64) error {
	if currentEpoch < startingValidEpoch {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if err := open(s.slots[SlotWeightTable]); err != nil {
		return err
	}
	s.slots[SlotWeightTable] = StatusOpen
	return nil
}

// OpenEpochSnapshot transitions the epoch snapshot slot DNE -> Open.
// Requires the weight table to be finalized.
func (s *State) OpenEpochSnapshot(weightTableFinalized bool) error {
	if !weightTableFinalized {
		return tiprerr.New(tiprerr.ErrWeightTableNotFinalized)
	}
	if err := open(s.slots[SlotEpochSnapshot]); err != nil {
		return err
	}
	s.slots[SlotEpochSnapshot] = StatusOpen
	return nil
}

// OpenOperatorSnapshot transitions operator snapshot slot op DNE -> Open.
// Requires the epoch snapshot to be open.
func (s *State) OpenOperatorSnapshot(op int) error {
	if s.slots[SlotEpochSnapshot] != StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if err := open(s.opSlots[op]); err != nil {
		return err
	}
	s.opSlots[op] = StatusOpen
	return nil
}

// OpenBallotBox transitions the ballot box slot DNE -> Open. Requires a
// finalized epoch snapshot.
func (s *State) OpenBallotBox(epochSnapshotFinalized bool) error {
	if !epochSnapshotFinalized {
		return tiprerr.New(tiprerr.ErrEpochSnapshotNotFinalized)
	}
	if err := open(s.slots[SlotBallotBox]); err != nil {
		return err
	}
	s.slots[SlotBallotBox] = StatusOpen
	return nil
}

// RequireCastVoteOpen validates cast_vote's preconditions: ballot box
// open and epoch snapshot finalized.
func (s *State) RequireCastVoteOpen(epochSnapshotFinalized bool) error {
	if s.slots[SlotBallotBox] != StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	if !epochSnapshotFinalized {
		return tiprerr.New(tiprerr.ErrEpochSnapshotNotFinalized)
	}
	return nil
}

// OpenBaseRewardRouter transitions the base reward router slot
// DNE -> Open. Requires a winning ballot.
func (s *State) OpenBaseRewardRouter(hasWinningBallot bool) error {
	if !hasWinningBallot {
		return tiprerr.New(tiprerr.ErrConsensusNotReached)
	}
	if err := open(s.slots[SlotBaseRewardRouter]); err != nil {
		return err
	}
	s.slots[SlotBaseRewardRouter] = StatusOpen
	return nil
}

// RequireRouteBaseOpen validates route_base's precondition: the base
// reward router slot is open.
func (s *State) RequireRouteBaseOpen() error {
	if s.slots[SlotBaseRewardRouter] != StatusOpen {
		return tiprerr.New(tiprerr.ErrInvalidStateTransition)
	}
	return nil
}

// RequireRouteNcnOpen validates route_ncn(op, group)'s precondition: the
// base router has fully routed to that operator/group's route, signaled
// by the caller via baseFullyRouted.
func (s *State) RequireRouteNcnOpen(baseFullyRouted bool) error {
	if !baseFullyRouted {
		return tiprerr.New(tiprerr.ErrRouterStillRouting)
	}
	return nil
}

// OpenNcnRewardRouter transitions the (op, group) NCN router slot
// DNE -> Open the first time a base-router route is distributed into it
// (the NCN router's initialization is folded into its first
// route/distribute entry point rather than a separate opcode).
func (s *State) OpenNcnRewardRouter(op, group int) error {
	if err := open(s.ncnSlots[op][group]); err != nil {
		return err
	}
	s.ncnSlots[op][group] = StatusOpen
	return nil
}

// CloseOperatorSlot transitions operator snapshot slot op Open -> Closed,
// subject to the same epochs-after-consensus wait as a global slot.
func (s *State) CloseOperatorSlot(op int, currentEpoch, epochsAfterConsensusBeforeClose, closedAtEpoch uint64) error {
	if currentEpoch < closedAtEpoch+epochsAfterConsensusBeforeClose {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountNotEnoughEpochs)
	}
	if s.opSlots[op] == StatusClosed {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountAlreadyClosed)
	}
	s.opSlots[op] = StatusClosed
	return nil
}

// CloseNcnRouterSlot transitions the (op, group) NCN router slot
// Open -> Closed, subject to the same epochs-after-consensus wait.
func (s *State) CloseNcnRouterSlot(op, group int, currentEpoch, epochsAfterConsensusBeforeClose, closedAtEpoch uint64) error {
	if currentEpoch < closedAtEpoch+epochsAfterConsensusBeforeClose {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountNotEnoughEpochs)
	}
	if s.ncnSlots[op][group] == StatusClosed {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountAlreadyClosed)
	}
	s.ncnSlots[op][group] = StatusClosed
	return nil
}

// CloseGlobalSlot transitions a global slot Open -> Closed, subject to
// the epochs-after-consensus wait and, for EpochState itself, the
// requirement that every other slot for this epoch already be Closed.
func (s *State) CloseGlobalSlot(slot Slot, currentEpoch, epochsAfterConsensusBeforeClose, closedAtEpoch uint64) error {
	if currentEpoch < closedAtEpoch+epochsAfterConsensusBeforeClose {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountNotEnoughEpochs)
	}
	if s.slots[slot] == StatusClosed {
		return tiprerr.New(tiprerr.ErrCannotCloseAccountAlreadyClosed)
	}
	if slot == SlotEpochState {
		for sl := Slot(0); sl < numGlobalSlots; sl++ {
			if sl == SlotEpochState {
				continue
			}
			if s.slots[sl] != StatusDNE && s.slots[sl] != StatusClosed {
				return tiprerr.New(tiprerr.ErrCannotCloseEpochStateAccount)
			}
		}
		for _, st := range s.opSlots {
			if st != StatusDNE && st != StatusClosed {
				return tiprerr.New(tiprerr.ErrCannotCloseEpochStateAccount)
			}
		}
		for _, row := range s.ncnSlots {
			for _, st := range row {
				if st != StatusDNE && st != StatusClosed {
					return tiprerr.New(tiprerr.ErrCannotCloseEpochStateAccount)
				}
			}
		}
	}
	s.slots[slot] = StatusClosed
	return nil
}

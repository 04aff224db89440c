// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package external declares the read-only collaborator interfaces the
// core calls through: the restaking program, the vault program, the
// price feed, and the distribution programs that receive verified
// merkle roots. The core never writes through these interfaces; it
// only reads state or issues a single outbound call.
package external

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Clock models the clock sysvar fields instructions read at entry.
type Clock struct {
	CurrentSlot  uint64
	CurrentEpoch uint64
}

// OperatorOptIn reports one operator's mutual opt-in status with an NCN,
// sourced from the restaking program's NcnOperatorState. Both tickets
// must be active for the operator to count as active in a given epoch's
// snapshot.
type OperatorOptIn struct {
	NcnOptedInOperator bool
	OperatorOptedInNcn bool
}

func (o OperatorOptIn) Active() bool { return o.NcnOptedInOperator && o.OperatorOptedInNcn }

// RestakingReader is the read-only view onto the external restaking
// program: source of the Ncn, Operator, NcnOperatorState, NcnVaultTicket,
// and Config accounts. The core only reads these; it never writes.
type RestakingReader interface {
	OperatorOptIn(ncn, operator pubkey.Key, atSlot uint64) (OperatorOptIn, error)
	OperatorFeeBps(operator pubkey.Key) (uint64, error)
	// NcnOperatorCount returns the number of operators registered against
	// ncn (the restaking program's Ncn account tracks this count), sizing
	// EpochSnapshot.OperatorCount at initialize_epoch_snapshot.
	NcnOperatorCount(ncn pubkey.Key) (int, error)
}

// VaultDelegation is one vault's delegated amount to an operator,
// sourced from the vault program's VaultOperatorDelegation.
type VaultDelegation struct {
	Vault      pubkey.Key
	Operator   pubkey.Key
	StMint     pubkey.Key
	Delegation uint64
}

// VaultReader is the read-only view onto the external vault program:
// source of the Vault, VaultNcnTicket, and VaultOperatorDelegation
// accounts.
type VaultReader interface {
	Delegation(vault, operator pubkey.Key) (VaultDelegation, error)
}

// FeedReading is a price feed's signed decimal value with its staleness
// slot.
type FeedReading struct {
	Value     int64
	Decimals  int32
	SlotStamp uint64
}

// PriceFeedReader is the read-only view onto an external price feed
// account.
type PriceFeedReader interface {
	Read(feed pubkey.Key) (FeedReading, error)
}

// DistributionAccount is the slice of one validator's distribution
// account the core reads before uploading a root: the lamports
// accumulated on it and the commission the validator charges.
type DistributionAccount struct {
	TotalTips    uint64
	ValidatorBps uint16
}

// DistributionTarget is the destination of a verified merkle claim.
// Tip claims and priority-fee claims are recorded by two structurally
// identical but separately addressed external programs; modeling both
// as one interface lets set_merkle_root stay target-agnostic.
type DistributionTarget interface {
	// DeriveAddress returns the deterministic distribution account key
	// for validator at epoch under this target's program.
	DeriveAddress(validator pubkey.Key, epoch uint64) pubkey.Key
	// TotalTips reads the lamports accumulated on validator's
	// distribution account for epoch.
	TotalTips(validator pubkey.Key, epoch uint64) (uint64, error)
	// ValidatorBps reads the commission, in basis points, validator
	// charges on its distribution account for epoch.
	ValidatorBps(validator pubkey.Key, epoch uint64) (uint16, error)
	// MerkleRootAuthority returns the only key authorized to upload a
	// merkle root to this target's accounts.
	MerkleRootAuthority() pubkey.Key
	// UploadRoot performs the cross-program call that records
	// (validator, merkleRoot, maxTotalClaim, maxNumNodes) on the target
	// program, terminating without re-entering the caller.
	UploadRoot(validator pubkey.Key, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64) error
}

// Seed tags distinguishing the two distribution programs' account
// families.
const (
	tipDistributionSeed         = "tip_distribution_account"
	priorityFeeDistributionSeed = "priority_fee_distribution_account"
)

// deriveDistributionAddress hashes (program, seed, validator, epoch_le)
// into a distribution account key, the same derivation shape the core's
// own pdaddr families use.
func deriveDistributionAddress(programID pubkey.Key, seed string, validator pubkey.Key, epoch uint64) pubkey.Key {
	h := sha256.New()
	h.Write(programID[:])
	h.Write([]byte(seed))
	h.Write(validator[:])
	var epochLE [8]byte
	binary.LittleEndian.PutUint64(epochLE[:], epoch)
	h.Write(epochLE[:])
	var k pubkey.Key
	copy(k[:], h.Sum(nil))
	return k
}

// TipDistribution targets the external tip-distribution program.
// Accounts holds the per-validator distribution accounts keyed by their
// derived address, standing in for the program's on-ledger state.
type TipDistribution struct {
	ProgramID     pubkey.Key
	RootAuthority pubkey.Key
	Accounts      map[pubkey.Key]DistributionAccount
	Upload        func(validator pubkey.Key, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64) error
}

func (t TipDistribution) DeriveAddress(validator pubkey.Key, epoch uint64) pubkey.Key {
	return deriveDistributionAddress(t.ProgramID, tipDistributionSeed, validator, epoch)
}

func (t TipDistribution) TotalTips(validator pubkey.Key, epoch uint64) (uint64, error) {
	acc, ok := t.Accounts[t.DeriveAddress(validator, epoch)]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrDestinationMismatch)
	}
	return acc.TotalTips, nil
}

func (t TipDistribution) ValidatorBps(validator pubkey.Key, epoch uint64) (uint16, error) {
	acc, ok := t.Accounts[t.DeriveAddress(validator, epoch)]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrDestinationMismatch)
	}
	return acc.ValidatorBps, nil
}

func (t TipDistribution) MerkleRootAuthority() pubkey.Key { return t.RootAuthority }

func (t TipDistribution) UploadRoot(validator pubkey.Key, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64) error {
	return t.Upload(validator, merkleRoot, maxTotalClaim, maxNumNodes)
}

// PriorityFeeDistribution targets the priority-fee claim program.
// Structurally identical to TipDistribution but addressed under its own
// program and seed tag, since priority-fee tips and block-engine tips
// are claimed from distinct external programs.
type PriorityFeeDistribution struct {
	ProgramID     pubkey.Key
	RootAuthority pubkey.Key
	Accounts      map[pubkey.Key]DistributionAccount
	Upload        func(validator pubkey.Key, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64) error
}

func (t PriorityFeeDistribution) DeriveAddress(validator pubkey.Key, epoch uint64) pubkey.Key {
	return deriveDistributionAddress(t.ProgramID, priorityFeeDistributionSeed, validator, epoch)
}

func (t PriorityFeeDistribution) TotalTips(validator pubkey.Key, epoch uint64) (uint64, error) {
	acc, ok := t.Accounts[t.DeriveAddress(validator, epoch)]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrDestinationMismatch)
	}
	return acc.TotalTips, nil
}

func (t PriorityFeeDistribution) ValidatorBps(validator pubkey.Key, epoch uint64) (uint16, error) {
	acc, ok := t.Accounts[t.DeriveAddress(validator, epoch)]
	if !ok {
		return 0, tiprerr.New(tiprerr.ErrDestinationMismatch)
	}
	return acc.ValidatorBps, nil
}

func (t PriorityFeeDistribution) MerkleRootAuthority() pubkey.Key { return t.RootAuthority }

func (t PriorityFeeDistribution) UploadRoot(validator pubkey.Key, merkleRoot [32]byte, maxTotalClaim, maxNumNodes uint64) error {
	return t.Upload(validator, merkleRoot, maxTotalClaim, maxNumNodes)
}

// StakePoolDeposit is the CPI target of distribute_base_fee_group_rewards:
// an external stake-pool deposit instruction.
type StakePoolDeposit interface {
	Deposit(feeWallet pubkey.Key, lamports uint64) error
}

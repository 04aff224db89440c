// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package snapshot implements the per-epoch record of operator stake
// delegations used to weight votes and reward routing: one EpochSnapshot
// aggregating totals, and one OperatorSnapshot per operator holding that
// operator's per-vault delegations.
package snapshot

import (
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
	"github.com/ncn-labs/tip-router-core/vaultregistry"
	"github.com/ncn-labs/tip-router-core/weighttable"
)

// MaxVaultOperatorDelegations bounds the per-operator delegation list.
const MaxVaultOperatorDelegations = vaultregistry.MaxVaults

// VaultOperatorDelegation is one vault's contribution to an operator's
// snapshot.
type VaultOperatorDelegation struct {
	Vault              pubkey.Key
	StMint             pubkey.Key
	Delegation         uint64
	Weight             uint64
	NcnFeeGroup        feegroup.NcnFeeGroup
	StakeWeight        amount.U128
	StakeWeightByGroup [feegroup.NcnFeeGroupCount]amount.U128
}

// OperatorSnapshot is the per-(NCN, epoch, operator) snapshot.
type OperatorSnapshot struct {
	Operator         pubkey.Key
	OperatorFeeBps   uint64
	IsActive         bool
	delegations      []VaultOperatorDelegation
	vaultCount       int
	StakeWeightSum   amount.U128
	GroupStakeWeight [feegroup.NcnFeeGroupCount]amount.U128
}

// NewOperatorSnapshot creates an operator's snapshot. isActive reflects
// the mutual opt-in check against the restaking program; an inactive
// operator's snapshot is immediately finalized with zero stake weight.
func NewOperatorSnapshot(operator pubkey.Key, operatorFeeBps uint64, isActive bool, vaultCount int) *OperatorSnapshot {
	return &OperatorSnapshot{
		Operator:       operator,
		OperatorFeeBps: operatorFeeBps,
		IsActive:       isActive,
		vaultCount:     vaultCount,
	}
}

// Finalized reports whether every valid delegation has been recorded, or
// the operator is inactive.
func (o *OperatorSnapshot) Finalized() bool {
	if !o.IsActive {
		return true
	}
	return len(o.delegations) == o.vaultCount
}

// Delegations returns every recorded VaultOperatorDelegation.
func (o *OperatorSnapshot) Delegations() []VaultOperatorDelegation {
	out := make([]VaultOperatorDelegation, len(o.delegations))
	copy(out, o.delegations)
	return out
}

// RecordDelegation appends one VaultOperatorDelegation, updating the
// operator's aggregate and per-group stake weight sums.
func (o *OperatorSnapshot) RecordDelegation(vault, stMint pubkey.Key, vaultIndex uint64, delegation uint64, registry *vaultregistry.Registry, table *weighttable.Table) (VaultOperatorDelegation, error) {
	if !o.IsActive {
		return VaultOperatorDelegation{}, tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	if o.Finalized() {
		return VaultOperatorDelegation{}, tiprerr.New(tiprerr.ErrSnapshotFinalized)
	}

	entry, err := registry.GetStMint(stMint)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}

	weight, err := table.Weight(stMint)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}

	// reward_multiplier_bps scales the raw delegation before weighting;
	// an unset multiplier (0) defaults to the identity 10,000 bps.
	multiplierBps := entry.RewardMultiplierBps
	if multiplierBps == 0 {
		multiplierBps = amount.BpsDenominator
	}
	scaledDelegation, err := amount.ApplyBps(delegation, multiplierBps)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}

	stakeWeight, err := amount.WeightOf(scaledDelegation, weight)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}

	d := VaultOperatorDelegation{
		Vault:       vault,
		StMint:      stMint,
		Delegation:  delegation,
		Weight:      weight,
		NcnFeeGroup: entry.NcnFeeGroup,
		StakeWeight: stakeWeight,
	}
	d.StakeWeightByGroup[entry.NcnFeeGroup.Index()] = stakeWeight

	sum, err := o.StakeWeightSum.Add(stakeWeight)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}
	groupSum, err := o.GroupStakeWeight[entry.NcnFeeGroup.Index()].Add(stakeWeight)
	if err != nil {
		return VaultOperatorDelegation{}, err
	}

	o.delegations = append(o.delegations, d)
	o.StakeWeightSum = sum
	o.GroupStakeWeight[entry.NcnFeeGroup.Index()] = groupSum
	return d, nil
}

// EpochSnapshot is the per-(NCN, epoch) aggregate snapshot.
type EpochSnapshot struct {
	Epoch                              uint64
	OperatorCount                      int
	VaultCount                         int
	operatorsRegistered                int
	vaultOperatorDelegationsRegistered int
	TotalStakeWeight                   amount.U128
	OperatorStakeWeights               map[pubkey.Key]amount.U128
	FeeSchedule                        feeschedule.Fees
	operators                          map[pubkey.Key]*OperatorSnapshot
}

// New creates an EpochSnapshot, freezing feeSchedule as the fee schedule
// active at this epoch.
func New(epoch uint64, operatorCount, vaultCount int, feeSchedule feeschedule.Fees) *EpochSnapshot {
	return &EpochSnapshot{
		Epoch:                epoch,
		OperatorCount:        operatorCount,
		VaultCount:           vaultCount,
		OperatorStakeWeights: make(map[pubkey.Key]amount.U128),
		FeeSchedule:          feeSchedule,
		operators:            make(map[pubkey.Key]*OperatorSnapshot),
	}
}

// RegisterOperator records an operator's snapshot, incrementing
// operators_registered. Rejects a second registration for the same
// operator and any registration beyond OperatorCount.
func (e *EpochSnapshot) RegisterOperator(op *OperatorSnapshot) error {
	if _, exists := e.operators[op.Operator]; exists {
		return tiprerr.New(tiprerr.ErrAccountAlreadyInitialized)
	}
	if e.operatorsRegistered >= e.OperatorCount {
		return tiprerr.New(tiprerr.ErrListFull)
	}
	e.operators[op.Operator] = op
	e.operatorsRegistered++
	e.OperatorStakeWeights[op.Operator] = op.StakeWeightSum
	return nil
}

// Operator returns the registered snapshot for op.
func (e *EpochSnapshot) Operator(op pubkey.Key) (*OperatorSnapshot, error) {
	snap, ok := e.operators[op]
	if !ok {
		return nil, tiprerr.New(tiprerr.ErrOperatorIsNotInSnapshot)
	}
	return snap, nil
}

// NoteDelegationRegistered increments vault_operator_delegations_registered
// and folds stakeWeight into the epoch's total and the operator's running
// sum; called once per successful OperatorSnapshot.RecordDelegation.
func (e *EpochSnapshot) NoteDelegationRegistered(operator pubkey.Key, stakeWeight amount.U128) error {
	e.vaultOperatorDelegationsRegistered++

	sum, err := e.OperatorStakeWeights[operator].Add(stakeWeight)
	if err != nil {
		return err
	}
	e.OperatorStakeWeights[operator] = sum

	total, err := e.TotalStakeWeight.Add(stakeWeight)
	if err != nil {
		return err
	}
	e.TotalStakeWeight = total
	return nil
}

// Finalized reports whether every registered operator's snapshot is
// finalized and all operators are registered.
func (e *EpochSnapshot) Finalized() bool {
	if e.operatorsRegistered != e.OperatorCount {
		return false
	}
	for _, op := range e.operators {
		if !op.Finalized() {
			return false
		}
	}
	return true
}

// Operators returns every registered OperatorSnapshot.
func (e *EpochSnapshot) Operators() []*OperatorSnapshot {
	out := make([]*OperatorSnapshot, 0, len(e.operators))
	for _, op := range e.operators {
		out = append(out, op)
	}
	return out
}

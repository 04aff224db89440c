// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package instruction_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/external"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/instruction"
	"github.com/ncn-labs/tip-router-core/merkleproof"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

// restakingStub answers OperatorOptIn/OperatorFeeBps/NcnOperatorCount from
// fixed tables, standing in for the external restaking program.
type restakingStub struct {
	operators []pubkey.Key
	feeBps    map[pubkey.Key]uint64
}

func (r restakingStub) OperatorOptIn(ncn, operator pubkey.Key, atSlot uint64) (external.OperatorOptIn, error) {
	return external.OperatorOptIn{NcnOptedInOperator: true, OperatorOptedInNcn: true}, nil
}

func (r restakingStub) OperatorFeeBps(operator pubkey.Key) (uint64, error) {
	return r.feeBps[operator], nil
}

func (r restakingStub) NcnOperatorCount(ncn pubkey.Key) (int, error) {
	return len(r.operators), nil
}

// vaultReaderStub answers Delegation from a fixed table keyed by
// (vault, operator), standing in for the external vault program.
type vaultReaderStub struct {
	delegations map[[2]pubkey.Key]external.VaultDelegation
}

func (v vaultReaderStub) Delegation(vault, operator pubkey.Key) (external.VaultDelegation, error) {
	return v.delegations[[2]pubkey.Key{vault, operator}], nil
}

// stakePoolStub records every deposit made to it.
type stakePoolStub struct {
	deposits map[pubkey.Key]uint64
}

func (s *stakePoolStub) Deposit(feeWallet pubkey.Key, lamports uint64) error {
	s.deposits[feeWallet] += lamports
	return nil
}

// TestEngineEndToEndLifecycle drives one epoch through every instruction
// family for a two-operator NCN, checking the exact base-router and
// NCN-router amounts through the real Engine wiring (the unit packages
// already verify the router math in isolation; this proves the Engine
// assembles it into the full account lifecycle correctly).
func TestEngineEndToEndLifecycle(t *testing.T) {
	ncn := key(1)
	op1, op2 := key(10), key(11)
	vault1, vault2 := key(20), key(21)
	mint := key(30)
	feeWallet := key(40)

	restaking := restakingStub{
		operators: []pubkey.Key{op1, op2},
		feeBps:    map[pubkey.Key]uint64{op1: 1000, op2: 500},
	}
	delegs := vaultReaderStub{delegations: map[[2]pubkey.Key]external.VaultDelegation{
		{vault1, op1}: {Vault: vault1, Operator: op1, StMint: mint, Delegation: 6},
		{vault2, op2}: {Vault: vault2, Operator: op2, StMint: mint, Delegation: 4},
	}}
	stakePool := &stakePoolStub{deposits: make(map[pubkey.Key]uint64)}

	eng := instruction.NewEngine(ncn, restaking, delegs, nil, stakePool)

	fees := feeschedule.Fees{
		BlockEngineFeeBps: 100,
		DaoFeeBps:         300,
		NcnFeeBps:         [feegroup.NcnFeeGroupCount]uint64{600},
		FeeWallet:         feeWallet,
	}
	if err := eng.InitializeConfig(key(2), key(3), 0, 10, 2, 50, fees); err != nil {
		t.Fatalf("InitializeConfig: %v", err)
	}
	if err := eng.InitializeVaultRegistry(); err != nil {
		t.Fatalf("InitializeVaultRegistry: %v", err)
	}
	noFeedWeight := uint64(1_000_000_000_000) // WeightPrecision: stake_weight == delegation
	group0, err := feegroup.NewNcnFeeGroup(0)
	if err != nil {
		t.Fatal(err)
	}
	if err := eng.AdminRegisterStMint(mint, group0, 0, nil, &noFeedWeight); err != nil {
		t.Fatalf("AdminRegisterStMint: %v", err)
	}
	if err := eng.RegisterVault(mint, 0); err != nil {
		t.Fatalf("RegisterVault: %v", err)
	}

	const epoch = 5
	if err := eng.InitializeEpochState(epoch); err != nil {
		t.Fatalf("InitializeEpochState: %v", err)
	}
	if err := eng.InitializeWeightTable(epoch, epoch); err != nil {
		t.Fatalf("InitializeWeightTable: %v", err)
	}
	if err := eng.AdminSetWeight(epoch, mint, noFeedWeight); err != nil {
		t.Fatalf("AdminSetWeight: %v", err)
	}
	if err := eng.InitializeEpochSnapshot(epoch); err != nil {
		t.Fatalf("InitializeEpochSnapshot: %v", err)
	}
	if err := eng.InitializeOperatorSnapshot(epoch, op1, 100); err != nil {
		t.Fatalf("InitializeOperatorSnapshot(op1): %v", err)
	}
	if err := eng.InitializeOperatorSnapshot(epoch, op2, 100); err != nil {
		t.Fatalf("InitializeOperatorSnapshot(op2): %v", err)
	}
	if err := eng.SnapshotVaultOperatorDelegation(epoch, op1, vault1); err != nil {
		t.Fatalf("SnapshotVaultOperatorDelegation(op1): %v", err)
	}
	if err := eng.SnapshotVaultOperatorDelegation(epoch, op2, vault2); err != nil {
		t.Fatalf("SnapshotVaultOperatorDelegation(op2): %v", err)
	}

	if err := eng.InitializeBallotBox(epoch); err != nil {
		t.Fatalf("InitializeBallotBox: %v", err)
	}
	var root [32]byte
	root[0] = 0xAA
	validator := key(50)
	leaf := merkleproof.Leaf{ValidatorTipDistributionAccount: validator, ValidatorMerkleRoot: root, MaxTotalClaim: 1, MaxNumNodes: 1}
	metaRoot, proofs := merkleproof.BuildTree([]merkleproof.Leaf{leaf})
	if err := eng.CastVote(epoch, op1, metaRoot, 200); err != nil {
		t.Fatalf("CastVote(op1): %v", err)
	}
	if err := eng.CastVote(epoch, op2, metaRoot, 201); err != nil {
		t.Fatalf("CastVote(op2): %v", err)
	}

	var uploaded bool
	target := external.TipDistribution{
		ProgramID:     key(60),
		RootAuthority: key(61),
		Upload: func(pubkey.Key, [32]byte, uint64, uint64) error {
			uploaded = true
			return nil
		},
	}
	if err := eng.SetMerkleRoot(epoch, validator, proofs[0], root, 1, 1, target); err != nil {
		t.Fatalf("SetMerkleRoot: %v", err)
	}
	if !uploaded {
		t.Fatal("expected tip-distribution CPI to fire")
	}

	// Scenario S4's exact base-router numbers, now produced by the engine.
	if err := eng.RouteBase(epoch, 10_000); err != nil {
		t.Fatalf("RouteBase: %v", err)
	}
	if err := eng.DistributeBaseFeeGroupRewards(epoch, feegroup.DAOFeeGroup); err != nil {
		t.Fatalf("DistributeBaseFeeGroupRewards: %v", err)
	}
	if got := stakePool.deposits[feeWallet]; got != 297 {
		t.Fatalf("DAO fee deposit = %d, want 297", got)
	}
	if err := eng.DistributeBaseNcnRewardRoute(epoch, op1, group0); err != nil {
		t.Fatalf("DistributeBaseNcnRewardRoute(op1): %v", err)
	}
	if err := eng.DistributeBaseNcnRewardRoute(epoch, op2, group0); err != nil {
		t.Fatalf("DistributeBaseNcnRewardRoute(op2): %v", err)
	}

	if err := eng.RouteNcn(epoch, op1, group0); err != nil {
		t.Fatalf("RouteNcn(op1): %v", err)
	}
	if err := eng.RouteNcn(epoch, op2, group0); err != nil {
		t.Fatalf("RouteNcn(op2): %v", err)
	}

	opReward1, err := eng.DistributeOperatorRewards(epoch, op1, group0)
	if err != nil {
		t.Fatalf("DistributeOperatorRewards(op1): %v", err)
	}
	if opReward1 != 34 {
		t.Fatalf("operator1 reward = %d, want 34", opReward1)
	}
	vaultReward1, err := eng.DistributeVaultRewardRoute(epoch, op1, group0, vault1)
	if err != nil {
		t.Fatalf("DistributeVaultRewardRoute(op1): %v", err)
	}
	if vaultReward1 != 311 {
		t.Fatalf("vault1 reward = %d, want 311", vaultReward1)
	}

	opReward2, err := eng.DistributeOperatorRewards(epoch, op2, group0)
	if err != nil {
		t.Fatalf("DistributeOperatorRewards(op2): %v", err)
	}
	if opReward2 != 11 {
		t.Fatalf("operator2 reward = %d, want 11", opReward2)
	}
	vaultReward2, err := eng.DistributeVaultRewardRoute(epoch, op2, group0, vault2)
	if err != nil {
		t.Fatalf("DistributeVaultRewardRoute(op2): %v", err)
	}
	if vaultReward2 != 219 {
		t.Fatalf("vault2 reward = %d, want 219", vaultReward2)
	}

	// Every router has now paid out everything it processed; the close
	// lifecycle should accept the NCN-router closes once the
	// epochs-after-consensus wait has elapsed.
	const closeEpoch = epoch + 2
	if err := eng.CloseNcnRewardRouter(epoch, op1, group0, closeEpoch, 0); err != nil {
		t.Fatalf("CloseNcnRewardRouter(op1): %v", err)
	}
	if err := eng.CloseNcnRewardRouter(epoch, op2, group0, closeEpoch, 0); err != nil {
		t.Fatalf("CloseNcnRewardRouter(op2): %v", err)
	}
}

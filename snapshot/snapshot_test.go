// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapshot_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/snapshot"
	"github.com/ncn-labs/tip-router-core/vaultregistry"
	"github.com/ncn-labs/tip-router-core/weighttable"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

// A single operator with a single vault: delegation 1_000_000 at weight
// 10^12 yields stake weight 1_000_000 and finalizes the snapshot.
func TestSingleDelegationStakeWeight(t *testing.T) {
	mint := key(3)
	registry := vaultregistry.New(key(1))
	staticWeight := uint64(1)
	if err := registry.RegisterStMint(mint, feegroup.AllNcnFeeGroups()[0], 10_000, nil, &staticWeight); err != nil {
		t.Fatal(err)
	}
	if err := registry.RegisterVault(mint, 0); err != nil {
		t.Fatal(err)
	}

	table := weighttable.New(1, registry)
	if err := table.AdminSetWeight(mint, 1_000_000_000_000); err != nil {
		t.Fatal(err)
	}

	op := snapshot.NewOperatorSnapshot(key(2), 100, true, 1)
	d, err := op.RecordDelegation(key(4), mint, 0, 1_000_000, registry, table)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.StakeWeight.AsU64()
	if err != nil {
		t.Fatal(err)
	}
	if got != 1_000_000 {
		t.Fatalf("stake weight = %d, want 1_000_000", got)
	}
	if !op.Finalized() {
		t.Fatal("operator snapshot with every vault delegated must be finalized")
	}
}

func TestInactiveOperatorIsImmediatelyFinalized(t *testing.T) {
	op := snapshot.NewOperatorSnapshot(key(2), 100, false, 3)
	if !op.Finalized() {
		t.Fatal("inactive operator snapshot must finalize immediately")
	}
}

func TestRecordDelegationRejectsAfterFinalized(t *testing.T) {
	mint := key(3)
	registry := vaultregistry.New(key(1))
	staticWeight := uint64(1)
	if err := registry.RegisterStMint(mint, feegroup.AllNcnFeeGroups()[0], 10_000, nil, &staticWeight); err != nil {
		t.Fatal(err)
	}

	table := weighttable.New(1, registry)
	if err := table.AdminSetWeight(mint, 1); err != nil {
		t.Fatal(err)
	}

	op := snapshot.NewOperatorSnapshot(key(2), 100, true, 1)
	if _, err := op.RecordDelegation(key(4), mint, 0, 100, registry, table); err != nil {
		t.Fatal(err)
	}
	if _, err := op.RecordDelegation(key(5), mint, 1, 100, registry, table); err == nil {
		t.Fatal("expected SnapshotFinalized on delegation past vault_count")
	}
}

func TestEpochSnapshotFinalization(t *testing.T) {
	fees := feeschedule.Fees{DaoFeeBps: 100, FeeWallet: key(9)}
	epoch := snapshot.New(7, 1, 1, fees)

	op := snapshot.NewOperatorSnapshot(key(2), 100, true, 0)
	if err := epoch.RegisterOperator(op); err != nil {
		t.Fatal(err)
	}
	if !epoch.Finalized() {
		t.Fatal("expected epoch snapshot finalized once its only operator (no vaults) is finalized")
	}
}

func TestRegisterOperatorRejectsDuplicate(t *testing.T) {
	fees := feeschedule.Fees{DaoFeeBps: 100, FeeWallet: key(9)}
	epoch := snapshot.New(7, 2, 0, fees)

	op := snapshot.NewOperatorSnapshot(key(2), 100, true, 0)
	if err := epoch.RegisterOperator(op); err != nil {
		t.Fatal(err)
	}
	if err := epoch.RegisterOperator(op); err == nil {
		t.Fatal("expected error re-registering the same operator")
	}
}

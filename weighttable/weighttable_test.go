// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package weighttable_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/vaultregistry"
	"github.com/ncn-labs/tip-router-core/weighttable"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

func registryWithMint(t *testing.T, mint pubkey.Key) *vaultregistry.Registry {
	t.Helper()
	r := vaultregistry.New(key(1))
	weight := uint64(10)
	if err := r.RegisterStMint(mint, feegroup.AllNcnFeeGroups()[0], 10_000, nil, &weight); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAdminSetWeightRejectsDoubleSet(t *testing.T) {
	mint := key(2)
	table := weighttable.New(5, registryWithMint(t, mint))

	if err := table.AdminSetWeight(mint, 1_000_000_000_000); err != nil {
		t.Fatal(err)
	}
	if err := table.AdminSetWeight(mint, 1); err == nil {
		t.Fatal("expected WeightAlreadySet")
	}
}

func TestFinalizedRequiresEveryEntryPositive(t *testing.T) {
	mint := key(2)
	table := weighttable.New(5, registryWithMint(t, mint))

	if table.Finalized() {
		t.Fatal("empty-weight table must not be finalized")
	}
	if err := table.AdminSetWeight(mint, 42); err != nil {
		t.Fatal(err)
	}
	if !table.Finalized() {
		t.Fatal("table with every entry positive must be finalized")
	}
}

func TestSetWeightFromFeedRejectsStale(t *testing.T) {
	mint := key(2)
	table := weighttable.New(5, registryWithMint(t, mint))

	if err := table.SetWeightFromFeed(mint, 100, 0, 50, 10); err == nil {
		t.Fatal("expected StaleFeed rejection")
	}
}

func TestSetWeightFromFeedRejectsNonPositive(t *testing.T) {
	mint := key(2)
	table := weighttable.New(5, registryWithMint(t, mint))

	if err := table.SetWeightFromFeed(mint, 0, 0, 1, 10); err == nil {
		t.Fatal("expected BadFeedValue rejection")
	}
}

func TestSetWeightFromFeedScalesDecimals(t *testing.T) {
	mint := key(2)
	table := weighttable.New(5, registryWithMint(t, mint))

	// A feed reporting 1.5 (value 15, decimals 1) scales to
	// 1.5 * WeightPrecision = 1_500_000_000_000 weight units.
	if err := table.SetWeightFromFeed(mint, 15, 1, 0, 10); err != nil {
		t.Fatal(err)
	}
	got, err := table.Weight(mint)
	if err != nil {
		t.Fatal(err)
	}
	if want := uint64(1_500_000_000_000); got != want {
		t.Fatalf("Weight = %d, want %d", got, want)
	}
}

func TestWeightUnknownMint(t *testing.T) {
	table := weighttable.New(5, registryWithMint(t, key(2)))
	if _, err := table.Weight(key(9)); err == nil {
		t.Fatal("expected MintEntryNotFound for unregistered mint")
	}
}

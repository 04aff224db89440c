// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package feeschedule_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func wallet() pubkey.Key {
	var k pubkey.Key
	k[0] = 1
	return k
}

func TestUpdateFeesRejectsCapExceeded(t *testing.T) {
	cfg, err := feeschedule.NewFeeConfig(feeschedule.Fees{
		BlockEngineFeeBps: 100,
		DaoFeeBps:         300,
		FeeWallet:         wallet(),
	})
	if err != nil {
		t.Fatal(err)
	}

	bad := feeschedule.Fees{BlockEngineFeeBps: 9_000, DaoFeeBps: 1_500, FeeWallet: wallet()}
	if err := cfg.UpdateFees(bad, 10); err == nil {
		t.Fatal("expected fee cap rejection")
	}
}

func TestUpdateFeesPromotesStaleNext(t *testing.T) {
	cfg, err := feeschedule.NewFeeConfig(feeschedule.Fees{DaoFeeBps: 100, FeeWallet: wallet()})
	if err != nil {
		t.Fatal(err)
	}

	if err := cfg.UpdateFees(feeschedule.Fees{DaoFeeBps: 200, FeeWallet: wallet()}, 5); err != nil {
		t.Fatal(err)
	}
	// Next activates at epoch 6; reading at epoch 10 (past activation) and
	// then updating again must promote it into Current first.
	if got := cfg.CurrentFees(10).DaoFeeBps; got != 200 {
		t.Fatalf("CurrentFees(10).DaoFeeBps = %d, want 200", got)
	}

	if err := cfg.UpdateFees(feeschedule.Fees{DaoFeeBps: 300, FeeWallet: wallet()}, 10); err != nil {
		t.Fatal(err)
	}
	if got := cfg.Current.DaoFeeBps; got != 200 {
		t.Fatalf("Current.DaoFeeBps after promotion = %d, want 200", got)
	}
	if got := cfg.Next.DaoFeeBps; got != 300 {
		t.Fatalf("Next.DaoFeeBps = %d, want 300", got)
	}
}

func TestUpdateFeesRejectsZeroWallet(t *testing.T) {
	cfg, err := feeschedule.NewFeeConfig(feeschedule.Fees{DaoFeeBps: 100, FeeWallet: wallet()})
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.UpdateFees(feeschedule.Fees{DaoFeeBps: 100}, 1); err == nil {
		t.Fatal("expected invalid dao wallet rejection")
	}
}

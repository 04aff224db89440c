// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package accountpayer_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/accountpayer"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

func TestPayRentRejectsUnderfunded(t *testing.T) {
	p := accountpayer.New(key(1))
	p.Fund(100)
	if err := p.PayRent(200); err == nil {
		t.Fatal("expected rejection of underfunded rent payment")
	}
}

func TestPayRentAndReclaim(t *testing.T) {
	p := accountpayer.New(key(1))
	p.Fund(1_000)
	if err := p.PayRent(300); err != nil {
		t.Fatal(err)
	}
	if p.Lamports != 700 {
		t.Fatalf("Lamports = %d, want 700", p.Lamports)
	}
	p.Reclaim(300)
	if p.Lamports != 1_000 {
		t.Fatalf("Lamports after reclaim = %d, want 1_000", p.Lamports)
	}
}

func TestCloseEpochAccountRequiresWaitEpochs(t *testing.T) {
	acc := accountpayer.Closeable{Status: accountpayer.CloseStatusOpen}
	if _, err := accountpayer.CloseEpochAccount(acc, 5, 5, 10, 1000); err == nil {
		t.Fatal("expected CannotCloseAccountNotEnoughEpochs")
	}
}

func TestCloseEpochAccountRejectsAlreadyClosed(t *testing.T) {
	acc := accountpayer.Closeable{Status: accountpayer.CloseStatusClosed}
	if _, err := accountpayer.CloseEpochAccount(acc, 100, 5, 10, 1000); err == nil {
		t.Fatal("expected CannotCloseAccountAlreadyClosed")
	}
}

func TestCloseEpochAccountRejectsUndistributedRewards(t *testing.T) {
	acc := accountpayer.Closeable{Status: accountpayer.CloseStatusOpen, RewardPool: 50}
	if _, err := accountpayer.CloseEpochAccount(acc, 100, 5, 10, 1000); err == nil {
		t.Fatal("expected rejection while reward_pool is nonzero")
	}
}

func TestCloseEpochStateRequiresOtherSlotsClosed(t *testing.T) {
	acc := accountpayer.Closeable{Status: accountpayer.CloseStatusOpen, IsEpochState: true, OtherSlotsClosed: false}
	if _, err := accountpayer.CloseEpochAccount(acc, 100, 5, 10, 1000); err == nil {
		t.Fatal("expected CannotCloseEpochStateAccount")
	}

	acc.OtherSlotsClosed = true
	lamports, err := accountpayer.CloseEpochAccount(acc, 100, 5, 10, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if lamports != 1000 {
		t.Fatalf("lamports returned = %d, want 1000", lamports)
	}
}

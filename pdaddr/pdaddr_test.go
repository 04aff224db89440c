// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pdaddr_test

import (
	"encoding/hex"
	"testing"

	"github.com/ncn-labs/tip-router-core/pdaddr"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func key(b byte) pubkey.Key {
	var k pubkey.Key
	k[0] = b
	return k
}

func TestAddressIsDeterministic(t *testing.T) {
	var program, ncn pubkey.Key
	program[0], ncn[1] = 7, 9
	r := pdaddr.NewResolver(program, 16)

	a := r.Address(pdaddr.EpochStateSeeds(ncn, 100))
	b := r.Address(pdaddr.EpochStateSeeds(ncn, 100))
	if a != b {
		t.Fatalf("expected deterministic address, got %v != %v", a, b)
	}
}

func TestAddressesDoNotCollideAcrossKinds(t *testing.T) {
	var program, ncn pubkey.Key
	r := pdaddr.NewResolver(program, 16)

	epochState := r.Address(pdaddr.EpochStateSeeds(ncn, 5))
	weightTable := r.Address(pdaddr.WeightTableSeeds(ncn, 5))
	if epochState == weightTable {
		t.Fatal("expected distinct addresses for distinct PDA kinds at the same epoch")
	}
}

func TestAddressesDoNotCollideAcrossEpochs(t *testing.T) {
	var program, ncn pubkey.Key
	r := pdaddr.NewResolver(program, 16)

	e1 := r.Address(pdaddr.EpochStateSeeds(ncn, 1))
	e2 := r.Address(pdaddr.EpochStateSeeds(ncn, 2))
	if e1 == e2 {
		t.Fatal("expected distinct addresses across epochs")
	}
}

// TestSeedOrderGoldenDigests pins the per-family seed tuple order with
// fixed digests: the operator key (and the group byte for the NCN
// reward families) hashes before the NCN key. A reordering of the seed
// writes changes these values.
func TestSeedOrderGoldenDigests(t *testing.T) {
	program, ncn, operator := key(7), key(9), key(3)
	r := pdaddr.NewResolver(program, 16)

	tests := []struct {
		name  string
		seeds pdaddr.Seeds
		want  string
	}{
		{
			"operator snapshot",
			pdaddr.OperatorSnapshotSeeds(operator, ncn, 100),
			"c5f7df7b77abc12b98be233363cdbe398e5b3b76228f6a1ada4e1d65cf457af6",
		},
		{
			"ncn reward router",
			pdaddr.NcnRewardRouterSeeds(2, operator, ncn, 100),
			"e189ea2036c53e0dcfa931dd3a98ecd3c5b905fd0d2ffee8cac189dd834ca117",
		},
	}
	for _, test := range tests {
		addr := r.Address(test.seeds)
		if got := hex.EncodeToString(addr[:]); got != test.want {
			t.Errorf("%s: address = %s, want %s", test.name, got, test.want)
		}
	}
}

// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package merkleproof_test

import (
	"testing"

	"github.com/ncn-labs/tip-router-core/merkleproof"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

func leaf(b byte) merkleproof.Leaf {
	var l merkleproof.Leaf
	l.ValidatorTipDistributionAccount[0] = b
	l.MaxTotalClaim = uint64(b) * 1000
	l.MaxNumNodes = uint64(b)
	return l
}

// TestRoundTrip checks the proof round trip: every leaf verifies
// against the root built over it.
func TestRoundTrip(t *testing.T) {
	leaves := []merkleproof.Leaf{leaf(1), leaf(2), leaf(3), leaf(4), leaf(5)}
	root, proofs := merkleproof.BuildTree(leaves)

	for i, l := range leaves {
		if !merkleproof.Verify(proofs[i], l, root) {
			t.Fatalf("leaf %d failed to verify against the built root", i)
		}
	}
}

func TestAlteredLeafFailsVerification(t *testing.T) {
	leaves := []merkleproof.Leaf{leaf(1), leaf(2), leaf(3)}
	root, proofs := merkleproof.BuildTree(leaves)

	tampered := leaves[0]
	tampered.MaxTotalClaim++
	if merkleproof.Verify(proofs[0], tampered, root) {
		t.Fatal("expected verification to fail for an altered leaf")
	}
}

func TestAlteredProofNodeFailsVerification(t *testing.T) {
	leaves := []merkleproof.Leaf{leaf(1), leaf(2), leaf(3), leaf(4)}
	root, proofs := merkleproof.BuildTree(leaves)

	tamperedProof := append([][32]byte{}, proofs[0]...)
	tamperedProof[0][0] ^= 0xFF
	if merkleproof.Verify(tamperedProof, leaves[0], root) {
		t.Fatal("expected verification to fail for a tampered proof node")
	}
}

func TestAlteredRootFailsVerification(t *testing.T) {
	leaves := []merkleproof.Leaf{leaf(1), leaf(2)}
	root, proofs := merkleproof.BuildTree(leaves)
	root[0] ^= 0xFF

	if merkleproof.Verify(proofs[0], leaves[0], root) {
		t.Fatal("expected verification to fail against a tampered root")
	}
}

func TestSingleLeafTree(t *testing.T) {
	leaves := []merkleproof.Leaf{leaf(7)}
	root, proofs := merkleproof.BuildTree(leaves)
	if !merkleproof.Verify(proofs[0], leaves[0], root) {
		t.Fatal("single-leaf tree must verify with an empty proof")
	}
	if len(proofs[0]) != 0 {
		t.Fatal("single-leaf tree proof should be empty")
	}
}

func TestLeafBytesIncludesAllFields(t *testing.T) {
	var l merkleproof.Leaf
	l.ValidatorTipDistributionAccount = pubkey.Key{1}
	l.MaxTotalClaim = 42
	l.MaxNumNodes = 7
	b := l.Bytes()
	if len(b) != pubkey.Size+32+8+8 {
		t.Fatalf("Bytes() length = %d, want %d", len(b), pubkey.Size+32+8+8)
	}
}

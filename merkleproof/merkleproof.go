// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package merkleproof implements domain-tagged merkle proof verification
// for validator tip-distribution claims.
package merkleproof

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/ncn-labs/tip-router-core/pubkey"
)

const (
	leafTag         = 0x00
	intermediateTag = 0x01
)

// Leaf is the deterministic serialization input for one validator's
// claim entry.
type Leaf struct {
	ValidatorTipDistributionAccount pubkey.Key
	ValidatorMerkleRoot             [32]byte
	MaxTotalClaim                   uint64
	MaxNumNodes                     uint64
}

// Bytes serializes the leaf fields in declaration order, little-endian.
func (l Leaf) Bytes() []byte {
	buf := make([]byte, 0, pubkey.Size+32+8+8)
	buf = append(buf, l.ValidatorTipDistributionAccount[:]...)
	buf = append(buf, l.ValidatorMerkleRoot[:]...)
	var amt [8]byte
	binary.LittleEndian.PutUint64(amt[:], l.MaxTotalClaim)
	buf = append(buf, amt[:]...)
	var nodes [8]byte
	binary.LittleEndian.PutUint64(nodes[:], l.MaxNumNodes)
	buf = append(buf, nodes[:]...)
	return buf
}

func hashLeaf(leafBytes []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte{leafTag})
	h.Write(leafBytes)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func hashIntermediate(a, b [32]byte) [32]byte {
	lo, hi := a, b
	if bytes.Compare(lo[:], hi[:]) > 0 {
		lo, hi = hi, lo
	}
	h := sha256.New()
	h.Write([]byte{intermediateTag})
	h.Write(lo[:])
	h.Write(hi[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Verify computes the merkle root by folding proof into leaf's hash and
// compares it against root.
func Verify(proof [][32]byte, leaf Leaf, root [32]byte) bool {
	node := hashLeaf(leaf.Bytes())
	for _, sibling := range proof {
		node = hashIntermediate(node, sibling)
	}
	return node == root
}

// BuildTree constructs a deterministic merkle tree over leaves, returning
// the root and, for each leaf index, the proof path needed to verify it.
// Used by test harnesses and the off-chain keeper that uploads roots, not
// by the on-chain Verify path itself.
func BuildTree(leaves []Leaf) (root [32]byte, proofs [][][32]byte) {
	if len(leaves) == 0 {
		return [32]byte{}, nil
	}

	level := make([][32]byte, len(leaves))
	for i, l := range leaves {
		level[i] = hashLeaf(l.Bytes())
	}

	proofs = make([][][32]byte, len(leaves))
	// index[n] tracks where original leaf n currently sits in level.
	index := make([]int, len(leaves))
	for i := range index {
		index[i] = i
	}

	for len(level) > 1 {
		nextLevel := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				nextLevel = append(nextLevel, level[i])
				continue
			}
			for n, idx := range index {
				switch idx {
				case i:
					proofs[n] = append(proofs[n], level[i+1])
				case i + 1:
					proofs[n] = append(proofs[n], level[i])
				}
			}
			nextLevel = append(nextLevel, hashIntermediate(level[i], level[i+1]))
		}
		for n, idx := range index {
			index[n] = idx / 2
		}
		level = nextLevel
	}

	return level[0], proofs
}

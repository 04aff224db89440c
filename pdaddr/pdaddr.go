// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pdaddr derives the deterministic, content-addressed account key
// for every per-NCN and per-epoch account family. Each account is
// addressable as a pure function of (program, kind, keys...); two
// distinct key tuples never collide because the seed table below tags
// every family with a unique prefix before hashing.
//
// This models the host runtime's find_program_address; the real
// bump-seed search and curve-point validation belong to the ledger
// runtime and are stood in for by a deterministic hash here.
package pdaddr

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/decred/dcrd/lru"
	"github.com/ncn-labs/tip-router-core/pubkey"
)

// Kind tags one of the derived account families.
type Kind byte

const (
	KindConfig Kind = iota
	KindVaultRegistry
	KindAccountPayer
	KindEpochState
	KindWeightTable
	KindEpochSnapshot
	KindOperatorSnapshot
	KindBallotBox
	KindBaseRewardRouter
	KindBaseRewardReceiver
	KindNcnRewardRouter
	KindNcnRewardReceiver
)

var seedPrefix = map[Kind]string{
	KindConfig:             "config",
	KindVaultRegistry:      "vault_registry",
	KindAccountPayer:       "account_payer",
	KindEpochState:         "epoch_state",
	KindWeightTable:        "weight_table",
	KindEpochSnapshot:      "epoch_snapshot",
	KindOperatorSnapshot:   "operator_snapshot",
	KindBallotBox:          "ballot_box",
	KindBaseRewardRouter:   "base_reward_router",
	KindBaseRewardReceiver: "base_reward_receiver",
	KindNcnRewardRouter:    "ncn_reward_router",
	KindNcnRewardReceiver:  "ncn_reward_receiver",
}

// Seeds is an ordered list of seed components feeding one address
// derivation.
type Seeds struct {
	Kind     Kind
	NCN      pubkey.Key
	Epoch    uint64
	HasEpoch bool
	Operator pubkey.Key
	HasOp    bool
	Group    byte
	HasGroup bool
}

// cacheKey is a fixed-size value usable as a map/LRU key, built from Seeds.
type cacheKey struct {
	kind     Kind
	ncn      pubkey.Key
	epoch    uint64
	operator pubkey.Key
	group    byte
	flags    byte
}

func (s Seeds) cacheKey() cacheKey {
	var flags byte
	if s.HasEpoch {
		flags |= 1
	}
	if s.HasOp {
		flags |= 2
	}
	if s.HasGroup {
		flags |= 4
	}
	return cacheKey{kind: s.Kind, ncn: s.NCN, epoch: s.Epoch, operator: s.Operator, group: s.Group, flags: flags}
}

// Resolver derives program addresses, caching recent lookups. The cache is
// purely an optimization: every Address call is a pure function of its
// Seeds and recomputing it from scratch always yields the same key.
type Resolver struct {
	programID pubkey.Key
	cache     lru.KVCache
}

// NewResolver constructs a Resolver for the given program, caching up to
// cacheLimit recently derived addresses.
func NewResolver(programID pubkey.Key, cacheLimit uint) *Resolver {
	return &Resolver{
		programID: programID,
		cache:     lru.NewKVCache(cacheLimit),
	}
}

// Address derives the deterministic account key for the given seeds.
func (r *Resolver) Address(s Seeds) pubkey.Key {
	key := s.cacheKey()
	if addr, ok := r.cache.Lookup(key); ok {
		return addr.(pubkey.Key)
	}

	// Seed components hash in each family's tuple order: the prefix,
	// then the group byte and operator key for the families that carry
	// them, then the NCN, then the epoch. OperatorSnapshot is
	// (prefix, operator, ncn, epoch_le) and the NCN reward families are
	// (prefix, group_byte, operator, ncn, epoch_le); every other family
	// is (prefix, ncn[, epoch_le]).
	h := sha256.New()
	h.Write(r.programID[:])
	h.Write([]byte(seedPrefix[s.Kind]))
	if s.HasGroup {
		h.Write([]byte{s.Group})
	}
	if s.HasOp {
		h.Write(s.Operator[:])
	}
	h.Write(s.NCN[:])
	if s.HasEpoch {
		var epochLE [8]byte
		binary.LittleEndian.PutUint64(epochLE[:], s.Epoch)
		h.Write(epochLE[:])
	}
	sum := h.Sum(nil)
	addr, _ := pubkey.FromBytes(sum)

	r.cache.Add(key, addr)
	return addr
}

// Convenience constructors for each account family's seed tuple.

func ConfigSeeds(ncn pubkey.Key) Seeds { return Seeds{Kind: KindConfig, NCN: ncn} }

func VaultRegistrySeeds(ncn pubkey.Key) Seeds { return Seeds{Kind: KindVaultRegistry, NCN: ncn} }

func AccountPayerSeeds(ncn pubkey.Key) Seeds { return Seeds{Kind: KindAccountPayer, NCN: ncn} }

func EpochStateSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindEpochState, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func WeightTableSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindWeightTable, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func EpochSnapshotSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindEpochSnapshot, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func OperatorSnapshotSeeds(operator, ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindOperatorSnapshot, NCN: ncn, Operator: operator, HasOp: true, Epoch: epoch, HasEpoch: true}
}

func BallotBoxSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindBallotBox, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func BaseRewardRouterSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindBaseRewardRouter, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func BaseRewardReceiverSeeds(ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindBaseRewardReceiver, NCN: ncn, Epoch: epoch, HasEpoch: true}
}

func NcnRewardRouterSeeds(group byte, operator, ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindNcnRewardRouter, NCN: ncn, Operator: operator, HasOp: true, Epoch: epoch, HasEpoch: true, Group: group, HasGroup: true}
}

func NcnRewardReceiverSeeds(group byte, operator, ncn pubkey.Key, epoch uint64) Seeds {
	return Seeds{Kind: KindNcnRewardReceiver, NCN: ncn, Operator: operator, HasOp: true, Epoch: epoch, HasEpoch: true, Group: group, HasGroup: true}
}

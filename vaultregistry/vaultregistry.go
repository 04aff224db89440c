// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package vaultregistry implements the per-NCN registry of staked-token
// mints and the vaults that hold them. Both lists are fixed-capacity and
// append-only; a vault may not be registered before its mint.
package vaultregistry

import (
	"math"

	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// MaxStMints is the fixed capacity of the mint list.
const MaxStMints = 64

// MaxVaults is the fixed capacity of the vault list.
const MaxVaults = 64

// VaultIndexEmpty is the sentinel marking an unoccupied VaultEntry slot,
// kept from vault_registry.rs's u64::MAX rather than zero because 0 is a
// valid vault index.
const VaultIndexEmpty = math.MaxUint64

// StMintEntry describes one registered staked-token mint.
type StMintEntry struct {
	Mint                pubkey.Key
	NcnFeeGroup         feegroup.NcnFeeGroup
	RewardMultiplierBps uint64
	SwitchboardFeed     pubkey.Key
	HasSwitchboardFeed  bool
	NoFeedWeight        uint64
	HasNoFeedWeight     bool
}

func (e StMintEntry) isEmpty() bool { return e.Mint.IsDefault() }

// VaultEntry binds a vault index to the mint it holds.
type VaultEntry struct {
	Mint       pubkey.Key
	VaultIndex uint64
}

func emptyVaultEntry() VaultEntry { return VaultEntry{VaultIndex: VaultIndexEmpty} }

func (e VaultEntry) isEmpty() bool { return e.VaultIndex == VaultIndexEmpty }

// Registry is the per-NCN singleton vault/mint registry.
type Registry struct {
	NCN     pubkey.Key
	stMints [MaxStMints]StMintEntry
	vaults  [MaxVaults]VaultEntry
}

// New constructs an empty Registry for ncn.
func New(ncn pubkey.Key) *Registry {
	r := &Registry{NCN: ncn}
	for i := range r.vaults {
		r.vaults[i] = emptyVaultEntry()
	}
	return r
}

// HasStMint reports whether mint is already registered.
func (r *Registry) HasStMint(mint pubkey.Key) bool {
	for _, e := range r.stMints {
		if !e.isEmpty() && e.Mint == mint {
			return true
		}
	}
	return false
}

// RegisterStMint appends a new StMintEntry. It fails with MintInTable if
// mint is already registered, NoFeedWeightOrSwitchboardFeed if neither a
// feed nor a static weight is supplied, and ListFull if the table has no
// empty slot.
func (r *Registry) RegisterStMint(mint pubkey.Key, group feegroup.NcnFeeGroup, rewardMultiplierBps uint64, switchboardFeed *pubkey.Key, noFeedWeight *uint64) error {
	if r.HasStMint(mint) {
		return tiprerr.New(tiprerr.ErrMintInTable)
	}
	if switchboardFeed == nil && noFeedWeight == nil {
		return tiprerr.New(tiprerr.ErrNoFeedWeightOrSwitchboardFeed)
	}

	for i := range r.stMints {
		if r.stMints[i].isEmpty() {
			entry := StMintEntry{Mint: mint, NcnFeeGroup: group, RewardMultiplierBps: rewardMultiplierBps}
			if switchboardFeed != nil {
				entry.SwitchboardFeed = *switchboardFeed
				entry.HasSwitchboardFeed = true
			}
			if noFeedWeight != nil {
				entry.NoFeedWeight = *noFeedWeight
				entry.HasNoFeedWeight = true
			}
			r.stMints[i] = entry
			return nil
		}
	}
	return tiprerr.New(tiprerr.ErrListFull)
}

// SetStMint replaces any subset of an existing entry's mutable fields.
// The mint itself and its slot index are immutable; nil arguments leave
// their field untouched.
func (r *Registry) SetStMint(mint pubkey.Key, group *feegroup.NcnFeeGroup, rewardMultiplierBps *uint64, switchboardFeed *pubkey.Key) error {
	for i := range r.stMints {
		if !r.stMints[i].isEmpty() && r.stMints[i].Mint == mint {
			if group != nil {
				r.stMints[i].NcnFeeGroup = *group
			}
			if rewardMultiplierBps != nil {
				r.stMints[i].RewardMultiplierBps = *rewardMultiplierBps
			}
			if switchboardFeed != nil {
				r.stMints[i].SwitchboardFeed = *switchboardFeed
				r.stMints[i].HasSwitchboardFeed = true
			}
			return nil
		}
	}
	return tiprerr.New(tiprerr.ErrMintEntryNotFound)
}

// GetStMint returns the registered entry for mint.
func (r *Registry) GetStMint(mint pubkey.Key) (StMintEntry, error) {
	for _, e := range r.stMints {
		if !e.isEmpty() && e.Mint == mint {
			return e, nil
		}
	}
	return StMintEntry{}, tiprerr.New(tiprerr.ErrMintEntryNotFound)
}

// StMintEntries returns every registered mint entry.
func (r *Registry) StMintEntries() []StMintEntry {
	out := make([]StMintEntry, 0, MaxStMints)
	for _, e := range r.stMints {
		if !e.isEmpty() {
			out = append(out, e)
		}
	}
	return out
}

// RegisterVault binds vaultIndex to mint. A vault may not be registered
// before its mint. Re-registering the identical (mint, vaultIndex) pair
// is a no-op.
func (r *Registry) RegisterVault(mint pubkey.Key, vaultIndex uint64) error {
	if !r.HasStMint(mint) {
		return tiprerr.New(tiprerr.ErrMintEntryNotFound)
	}

	for _, e := range r.vaults {
		if !e.isEmpty() && e.Mint == mint && e.VaultIndex == vaultIndex {
			return nil
		}
	}
	for _, e := range r.vaults {
		if !e.isEmpty() && e.VaultIndex == vaultIndex {
			return tiprerr.New(tiprerr.ErrVaultIndexAlreadyInUse)
		}
	}
	for i := range r.vaults {
		if r.vaults[i].isEmpty() {
			r.vaults[i] = VaultEntry{Mint: mint, VaultIndex: vaultIndex}
			return nil
		}
	}
	return tiprerr.New(tiprerr.ErrListFull)
}

// VaultCount returns the number of occupied vault slots.
func (r *Registry) VaultCount() int {
	n := 0
	for _, e := range r.vaults {
		if !e.isEmpty() {
			n++
		}
	}
	return n
}

// VaultEntries returns every registered vault entry.
func (r *Registry) VaultEntries() []VaultEntry {
	out := make([]VaultEntry, 0, MaxVaults)
	for _, e := range r.vaults {
		if !e.isEmpty() {
			out = append(out, e)
		}
	}
	return out
}

// GetVault returns the registered mint for vaultIndex.
func (r *Registry) GetVault(vaultIndex uint64) (VaultEntry, error) {
	for _, e := range r.vaults {
		if !e.isEmpty() && e.VaultIndex == vaultIndex {
			return e, nil
		}
	}
	return VaultEntry{}, tiprerr.New(tiprerr.ErrMintEntryNotFound)
}

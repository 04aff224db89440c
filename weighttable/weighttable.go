// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package weighttable implements the per-epoch table binding each
// registered staked-token mint to a stake weight, sized to the vault
// registry at initialization and populated either by the weight admin
// or a price feed reading.
package weighttable

import (
	"github.com/jrick/bitset"
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
	"github.com/ncn-labs/tip-router-core/vaultregistry"
)

// Source identifies how a WeightEntry's value was installed.
type Source byte

const (
	// SourceAdmin marks a weight written by admin_set_weight.
	SourceAdmin Source = iota
	// SourceFeed marks a weight derived from a price feed reading.
	SourceFeed
)

// WeightEntry is one mint's stake weight for an epoch.
type WeightEntry struct {
	Mint   pubkey.Key
	Weight uint64
	Source Source
	isSet  bool
}

// Table is the per (NCN, epoch) weight table.
type Table struct {
	Epoch   uint64
	entries []WeightEntry
	set     bitset.Bytes // tracks which entries have had a weight installed
}

// New sizes a Table to the registry's currently registered mints, all
// entries starting at weight 0.
func New(epoch uint64, registry *vaultregistry.Registry) *Table {
	mints := registry.StMintEntries()
	entries := make([]WeightEntry, len(mints))
	for i, m := range mints {
		entries[i] = WeightEntry{Mint: m.Mint}
	}
	return &Table{Epoch: epoch, entries: entries, set: bitset.NewBytes(len(entries))}
}

func (t *Table) indexOf(mint pubkey.Key) int {
	for i, e := range t.entries {
		if e.Mint == mint {
			return i
		}
	}
	return -1
}

// AdminSetWeight installs weight for mint directly.
func (t *Table) AdminSetWeight(mint pubkey.Key, weight uint64) error {
	return t.setWeight(mint, weight, SourceAdmin)
}

// SetWeightFromFeed installs a weight derived from a price feed reading,
// after validating it is non-stale and rescaling it from the feed's own
// decimal precision into WeightPrecision units. staleSlots
// is currentSlot-readingSlot; maxStaleSlots bounds the acceptable age.
func (t *Table) SetWeightFromFeed(mint pubkey.Key, value int64, decimals int32, staleSlots, maxStaleSlots uint64) error {
	if staleSlots > maxStaleSlots {
		return tiprerr.New(tiprerr.ErrStaleFeed)
	}
	weight, err := amount.ScaleToWeightPrecision(value, decimals)
	if err != nil {
		return err
	}
	return t.setWeight(mint, weight, SourceFeed)
}

// SetNoFeedWeight installs a registry-configured static weight directly,
// used when the mint's StMintEntry carries no_feed_weight instead of a
// switchboard feed.
func (t *Table) SetNoFeedWeight(mint pubkey.Key, weight uint64) error {
	return t.setWeight(mint, weight, SourceAdmin)
}

func (t *Table) setWeight(mint pubkey.Key, weight uint64, source Source) error {
	idx := t.indexOf(mint)
	if idx < 0 {
		return tiprerr.New(tiprerr.ErrMintEntryNotFound)
	}
	if t.set.Get(idx) {
		return tiprerr.New(tiprerr.ErrWeightAlreadySet)
	}
	t.entries[idx].Weight = weight
	t.entries[idx].Source = source
	t.entries[idx].isSet = true
	t.set.Set(idx)
	return nil
}

// Weight returns the installed weight for mint.
func (t *Table) Weight(mint pubkey.Key) (uint64, error) {
	idx := t.indexOf(mint)
	if idx < 0 {
		return 0, tiprerr.New(tiprerr.ErrMintEntryNotFound)
	}
	if !t.entries[idx].isSet || t.entries[idx].Weight == 0 {
		return 0, tiprerr.New(tiprerr.ErrWeightTableNotFinalized)
	}
	return t.entries[idx].Weight, nil
}

// Finalized reports whether every entry has a positive weight
// installed.
func (t *Table) Finalized() bool {
	for _, e := range t.entries {
		if e.Weight == 0 {
			return false
		}
	}
	return true
}

// Entries returns every WeightEntry in the table.
func (t *Table) Entries() []WeightEntry {
	out := make([]WeightEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feegroup defines the two closed fee-group enumerations,
// BaseFeeGroup (only DAO is active) and NcnFeeGroup. Both are tagged
// byte values rather than interfaces so they keep a fixed numeric wire
// representation.
package feegroup

import "github.com/ncn-labs/tip-router-core/tiprerr"

// BaseFeeGroupCount is the fixed number of base fee group slots.
const BaseFeeGroupCount = 8

// NcnFeeGroupCount is the fixed number of NCN fee group slots.
const NcnFeeGroupCount = 8

// BaseFeeGroup identifies one of the fixed base-fee-schedule slots. Only
// group 0 ("DAO") is active; the rest are declared but inert until a
// future schedule activates them.
type BaseFeeGroup struct {
	index uint8
}

// DAOFeeGroup is the sole active base fee group.
var DAOFeeGroup = BaseFeeGroup{index: 0}

// NewBaseFeeGroup validates and wraps a raw base-fee-group index.
func NewBaseFeeGroup(index uint8) (BaseFeeGroup, error) {
	if index >= BaseFeeGroupCount {
		return BaseFeeGroup{}, tiprerr.Newf(tiprerr.ErrFeeNotActive, "base fee group %d out of range", index)
	}
	return BaseFeeGroup{index: index}, nil
}

// Index returns the group's numeric slot.
func (g BaseFeeGroup) Index() uint8 { return g.index }

// Active reports whether the group currently participates in routing.
// Only the DAO group is active.
func (g BaseFeeGroup) Active() bool { return g.index == DAOFeeGroup.index }

// AllBaseFeeGroups returns every declared base fee group slot, active or not.
func AllBaseFeeGroups() []BaseFeeGroup {
	groups := make([]BaseFeeGroup, BaseFeeGroupCount)
	for i := range groups {
		groups[i] = BaseFeeGroup{index: uint8(i)}
	}
	return groups
}

// NcnFeeGroup identifies one of the fixed per-operator reward-routing
// groups.
type NcnFeeGroup struct {
	index uint8
}

// NewNcnFeeGroup validates and wraps a raw NCN-fee-group index.
func NewNcnFeeGroup(index uint8) (NcnFeeGroup, error) {
	if index >= NcnFeeGroupCount {
		return NcnFeeGroup{}, tiprerr.Newf(tiprerr.ErrFeeNotActive, "ncn fee group %d out of range", index)
	}
	return NcnFeeGroup{index: index}, nil
}

// Index returns the group's numeric slot.
func (g NcnFeeGroup) Index() uint8 { return g.index }

// AllNcnFeeGroups returns every declared NCN fee group slot.
func AllNcnFeeGroups() []NcnFeeGroup {
	groups := make([]NcnFeeGroup, NcnFeeGroupCount)
	for i := range groups {
		groups[i] = NcnFeeGroup{index: uint8(i)}
	}
	return groups
}

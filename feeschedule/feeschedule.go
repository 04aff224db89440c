// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package feeschedule implements the fee schedule: two immutable Fees
// records, "current" and "next", with self-healing promotion on update
// so that the schedule a router reads is always the one that was active
// the moment the epoch snapshot for that epoch was taken.
package feeschedule

import (
	"github.com/ncn-labs/tip-router-core/amount"
	"github.com/ncn-labs/tip-router-core/feegroup"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Fees is one immutable fee snapshot.
type Fees struct {
	BlockEngineFeeBps uint64
	DaoFeeBps         uint64
	NcnFeeBps         [feegroup.NcnFeeGroupCount]uint64
	FeeWallet         pubkey.Key
	ActivationEpoch   uint64
}

// validate checks the invariants every Fees record must satisfy.
func (f Fees) validate() error {
	if f.BlockEngineFeeBps > amount.BpsDenominator || f.DaoFeeBps > amount.BpsDenominator {
		return tiprerr.New(tiprerr.ErrFeeCapExceeded)
	}
	total := f.BlockEngineFeeBps + f.DaoFeeBps
	for _, bps := range f.NcnFeeBps {
		if bps > amount.BpsDenominator {
			return tiprerr.New(tiprerr.ErrFeeCapExceeded)
		}
		total += bps
	}
	if total > amount.BpsDenominator {
		return tiprerr.New(tiprerr.ErrFeeCapExceeded)
	}
	if total == 0 {
		return tiprerr.New(tiprerr.ErrTotalFeesCannotBeZero)
	}
	if f.FeeWallet.IsDefault() {
		return tiprerr.New(tiprerr.ErrInvalidDaoWallet)
	}
	return nil
}

// FeeConfig holds the current and next Fees records for an NCN.
type FeeConfig struct {
	Current Fees
	Next    Fees
}

// NewFeeConfig validates and wraps the initial fee schedule, which applies
// starting at epoch 0 with no scheduled change.
func NewFeeConfig(initial Fees) (FeeConfig, error) {
	initial.ActivationEpoch = 0
	if err := initial.validate(); err != nil {
		return FeeConfig{}, err
	}
	return FeeConfig{Current: initial, Next: initial}, nil
}

// CurrentFees returns the Fees record whose ActivationEpoch is the latest
// one not after epoch.
func (c FeeConfig) CurrentFees(epoch uint64) Fees {
	if c.Next.ActivationEpoch <= epoch {
		return c.Next
	}
	return c.Current
}

// UpdateFees writes newFees into the "next" slot, activating at
// currentEpoch+1. If the existing "next" has already activated (its
// ActivationEpoch <= currentEpoch), it is first promoted into "current" so
// no schedule is ever skipped.
func (c *FeeConfig) UpdateFees(newFees Fees, currentEpoch uint64) error {
	newFees.ActivationEpoch = currentEpoch + 1
	if err := newFees.validate(); err != nil {
		return err
	}

	if c.Next.ActivationEpoch <= currentEpoch {
		c.Current = c.Next
	}
	c.Next = newFees
	return nil
}

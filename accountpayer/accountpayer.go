// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package accountpayer implements the lamport-only PDA that funds
// per-epoch account creation rent and reclaims it on close, and the
// close_epoch_account preconditions shared by every closeable account
// kind.
package accountpayer

import (
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Payer is the per-NCN lamport-only funding account. It never holds
// deserializable state.
type Payer struct {
	NCN      pubkey.Key
	Lamports uint64
}

// New creates an empty Payer for ncn.
func New(ncn pubkey.Key) *Payer { return &Payer{NCN: ncn} }

// Fund adds lamports transferred in by an admin or keeper.
func (p *Payer) Fund(lamports uint64) { p.Lamports += lamports }

// PayRent transfers rent lamports out to fund a new account's creation.
// Fails with CannotCloseAccount (reused here for "insufficient payer
// balance", since the core's only funding failure mode is underfunding)
// if the payer cannot cover it.
func (p *Payer) PayRent(rent uint64) error {
	if rent > p.Lamports {
		return tiprerr.New(tiprerr.ErrCannotCloseAccount)
	}
	p.Lamports -= rent
	return nil
}

// Reclaim returns lamports from a closed account back to the payer.
func (p *Payer) Reclaim(lamports uint64) { p.Lamports += lamports }

// Closeable describes the subset of state close_epoch_account needs
// from any closeable per-epoch account.
type Closeable struct {
	Status           CloseStatus
	RewardPool       uint64
	RewardsProcessed uint64
	IsEpochState     bool
	OtherSlotsClosed bool // true iff every other per-epoch slot for E is Closed
}

// CloseStatus mirrors epochstate.Status without importing it, since
// accountpayer only needs to distinguish "already closed".
type CloseStatus byte

const (
	CloseStatusOpen CloseStatus = iota
	CloseStatusClosed
)

// CloseEpochAccount validates and performs close_epoch_account's
// preconditions, returning the lamports to zero out and reclaim into
// the payer.
func CloseEpochAccount(acc Closeable, currentEpoch, closedAtEpoch, epochsAfterConsensusBeforeClose, lamportBalance uint64) (uint64, error) {
	if currentEpoch < closedAtEpoch+epochsAfterConsensusBeforeClose {
		return 0, tiprerr.New(tiprerr.ErrCannotCloseAccountNotEnoughEpochs)
	}
	if acc.Status == CloseStatusClosed {
		return 0, tiprerr.New(tiprerr.ErrCannotCloseAccountAlreadyClosed)
	}
	if acc.IsEpochState {
		if !acc.OtherSlotsClosed {
			return 0, tiprerr.New(tiprerr.ErrCannotCloseEpochStateAccount)
		}
	} else if acc.RewardPool != 0 || acc.RewardsProcessed != 0 {
		return 0, tiprerr.New(tiprerr.ErrCannotCloseAccount)
	}
	return lamportBalance, nil
}

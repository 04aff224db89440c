// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package ncnconfig implements the Config singleton: the one account per
// NCN holding its admin keys, consensus timing parameters and fee
// schedule. Created once at genesis and mutated only through the narrow
// AdminSet* entry points.
package ncnconfig

import (
	"bytes"
	"encoding/binary"

	"github.com/ncn-labs/tip-router-core/feeschedule"
	"github.com/ncn-labs/tip-router-core/pubkey"
	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// Config is the per-NCN admin and timing singleton.
type Config struct {
	NCN                             pubkey.Key
	TieBreakerAdmin                 pubkey.Key
	FeeAdmin                        pubkey.Key
	StartingValidEpoch              uint64
	EpochsBeforeStall               uint64
	EpochsAfterConsensusBeforeClose uint64
	ValidSlotsAfterConsensus        uint64
	FeeConfig                       feeschedule.FeeConfig

	// Reserved is trailing wire-layout padding for future fields. It is
	// always written as zero; LoadConfig rejects any stored value where
	// it is not.
	Reserved [32]byte
}

// Bytes serializes c to its fixed little-endian wire layout, trailing
// Reserved padding included, for storage in ledgerstore. Every field is
// exported and fixed-size, so the stdlib binary codec emits the exact
// declaration-order layout.
func (c Config) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadConfig decodes a Config previously written by Bytes, rejecting the
// account if its Reserved region is not all-zero.
func LoadConfig(data []byte) (*Config, error) {
	var c Config
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &c); err != nil {
		return nil, tiprerr.New(tiprerr.ErrInvalidAccountData)
	}
	for _, b := range c.Reserved {
		if b != 0 {
			return nil, tiprerr.New(tiprerr.ErrReservedBytesNonZero)
		}
	}
	return &c, nil
}

// New constructs a Config at genesis, validating the admin keys, the
// non-zero timing parameters, and the initial fee schedule.
func New(ncn, tieBreakerAdmin, feeAdmin pubkey.Key, startingValidEpoch, epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus uint64, initialFees feeschedule.Fees) (*Config, error) {
	if ncn.IsDefault() || tieBreakerAdmin.IsDefault() || feeAdmin.IsDefault() {
		return nil, tiprerr.New(tiprerr.ErrInvalidDaoWallet)
	}
	if epochsBeforeStall == 0 {
		return nil, tiprerr.New(tiprerr.ErrInvalidEpochsBeforeStall)
	}
	if epochsAfterConsensusBeforeClose == 0 {
		return nil, tiprerr.New(tiprerr.ErrInvalidEpochsBeforeClose)
	}

	feeCfg, err := feeschedule.NewFeeConfig(initialFees)
	if err != nil {
		return nil, err
	}

	return &Config{
		NCN:                             ncn,
		TieBreakerAdmin:                 tieBreakerAdmin,
		FeeAdmin:                        feeAdmin,
		StartingValidEpoch:              startingValidEpoch,
		EpochsBeforeStall:               epochsBeforeStall,
		EpochsAfterConsensusBeforeClose: epochsAfterConsensusBeforeClose,
		ValidSlotsAfterConsensus:        validSlotsAfterConsensus,
		FeeConfig:                       feeCfg,
	}, nil
}

// SetParameters applies an admin_set_parameters update. Each pointer
// argument is independently optional; nil leaves the field untouched.
func (c *Config) SetParameters(epochsBeforeStall, epochsAfterConsensusBeforeClose, validSlotsAfterConsensus, startingValidEpoch *uint64) error {
	if epochsBeforeStall != nil {
		if *epochsBeforeStall == 0 {
			return tiprerr.New(tiprerr.ErrInvalidEpochsBeforeStall)
		}
		c.EpochsBeforeStall = *epochsBeforeStall
	}
	if epochsAfterConsensusBeforeClose != nil {
		if *epochsAfterConsensusBeforeClose == 0 {
			return tiprerr.New(tiprerr.ErrInvalidEpochsBeforeClose)
		}
		c.EpochsAfterConsensusBeforeClose = *epochsAfterConsensusBeforeClose
	}
	if validSlotsAfterConsensus != nil {
		c.ValidSlotsAfterConsensus = *validSlotsAfterConsensus
	}
	if startingValidEpoch != nil {
		c.StartingValidEpoch = *startingValidEpoch
	}
	return nil
}

// SetNewAdmin reassigns either the tie-breaker or fee admin key.
func (c *Config) SetNewAdmin(newTieBreakerAdmin, newFeeAdmin *pubkey.Key) {
	if newTieBreakerAdmin != nil {
		c.TieBreakerAdmin = *newTieBreakerAdmin
	}
	if newFeeAdmin != nil {
		c.FeeAdmin = *newFeeAdmin
	}
}

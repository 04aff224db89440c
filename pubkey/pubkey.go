// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pubkey provides the 32-byte key type used throughout the core to
// address NCNs, operators, vaults, mints, and validators.
package pubkey

import (
	"encoding/hex"
	"fmt"

	"github.com/decred/base58"
)

// Size is the fixed length, in bytes, of every Key.
const Size = 32

// Key is a 32-byte content-addressable identifier. It is used for every
// entity the core reasons about — NCNs, operators, vaults, mints, program
// addresses, and validators — so that account derivation (package pdaddr)
// can treat all of them uniformly.
type Key [Size]byte

// Default is the all-zero sentinel key. Several fixed-size slots (for
// example an empty VaultEntry) use it to signal "unoccupied".
var Default Key

// IsDefault reports whether k is the all-zero sentinel.
func (k Key) IsDefault() bool {
	return k == Default
}

// String renders k the way a Solana-style pubkey prints: base58, no padding.
func (k Key) String() string {
	return base58.Encode(k[:])
}

// Hex renders k as a lowercase hex string, primarily for log lines where
// base58's variable width is unwelcome.
func (k Key) Hex() string {
	return hex.EncodeToString(k[:])
}

// Parse decodes a base58-encoded key, failing if the decoded length is not
// exactly Size bytes.
func Parse(s string) (Key, error) {
	var k Key
	decoded := base58.Decode(s)
	if len(decoded) != Size {
		return k, errInvalidKeyLength(len(decoded))
	}
	copy(k[:], decoded)
	return k, nil
}

// FromBytes copies b into a new Key. It fails if b is not exactly Size bytes.
func FromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != Size {
		return k, errInvalidKeyLength(len(b))
	}
	copy(k[:], b)
	return k, nil
}

type errInvalidKeyLength int

func (e errInvalidKeyLength) Error() string {
	return fmt.Sprintf("pubkey: invalid key length %d, want %d", int(e), Size)
}

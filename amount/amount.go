// Copyright (c) 2025 The NCN Labs developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package amount implements the checked, floor-rounding fixed-point
// arithmetic behind every monetary calculation in the core:
// basis-point fee application, delegation-to-weight scaling, and
// pool-share splitting. Every operation here either returns an exact result
// or a tiprerr.Error; nothing silently wraps or truncates.
//
// Go has no native 128-bit integer, so stake weights are represented here as
// U128, a pair of uint64 limbs built on math/bits primitives. No library in
// the retrieved pack offers a narrower dependency for this; see DESIGN.md.
package amount

import (
	"math/bits"

	"github.com/ncn-labs/tip-router-core/tiprerr"
)

// BpsDenominator is the basis-point scale: 10,000 bps == 100%.
const BpsDenominator = 10_000

// WeightPrecision scales per-mint weights.
const WeightPrecision = 1_000_000_000_000 // 10^12

// U128 is an unsigned 128-bit integer, stored as two 64-bit limbs.
type U128 struct {
	Hi, Lo uint64
}

// U128FromU64 widens a u64 into a U128.
func U128FromU64(v uint64) U128 { return U128{Lo: v} }

// IsZero reports whether v is zero.
func (v U128) IsZero() bool { return v.Hi == 0 && v.Lo == 0 }

// Cmp returns -1, 0, or 1 as v is less than, equal to, or greater than w.
func (v U128) Cmp(w U128) int {
	switch {
	case v.Hi != w.Hi:
		if v.Hi < w.Hi {
			return -1
		}
		return 1
	case v.Lo != w.Lo:
		if v.Lo < w.Lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// Add returns v+w, failing on overflow past 128 bits.
func (v U128) Add(w U128) (U128, error) {
	lo, carry := bits.Add64(v.Lo, w.Lo, 0)
	hi, carry2 := bits.Add64(v.Hi, w.Hi, carry)
	if carry2 != 0 {
		return U128{}, tiprerr.New(tiprerr.ErrArithmeticOverflow)
	}
	return U128{Hi: hi, Lo: lo}, nil
}

// Sub returns v-w, failing on underflow.
func (v U128) Sub(w U128) (U128, error) {
	lo, borrow := bits.Sub64(v.Lo, w.Lo, 0)
	hi, borrow2 := bits.Sub64(v.Hi, w.Hi, borrow)
	if borrow2 != 0 {
		return U128{}, tiprerr.New(tiprerr.ErrArithmeticUnderflow)
	}
	return U128{Hi: hi, Lo: lo}, nil
}

// AsU64 narrows v to a u64, failing if it does not fit.
func (v U128) AsU64() (uint64, error) {
	if v.Hi != 0 {
		return 0, tiprerr.New(tiprerr.ErrCastError)
	}
	return v.Lo, nil
}

// ApplyBps computes floor(amount * bps / 10_000) for a u64 lamport amount,
// failing on an out-of-range bps.
func ApplyBps(amount uint64, bps uint64) (uint64, error) {
	if bps > BpsDenominator {
		return 0, tiprerr.Newf(tiprerr.ErrFeeCapExceeded, "bps %d exceeds %d", bps, BpsDenominator)
	}
	hi, lo := bits.Mul64(amount, bps)
	q, _ := div128By64(hi, lo, BpsDenominator)
	return q, nil
}

// WeightOf computes floor(delegation * weight / WeightPrecision) as a u128
// stake weight. delegation and weight are both u64 (weight scaled by
// WeightPrecision), but their product can span more than 64
// bits once divided by WeightPrecision whenever weight is itself large, so
// the division is done with divWide128By64 rather than a single
// bits.Div64 call, which would panic once the product's high limb reaches
// WeightPrecision.
func WeightOf(delegation uint64, weight uint64) (U128, error) {
	hi, lo := bits.Mul64(delegation, weight)
	q, _ := divWide128By64(hi, lo, WeightPrecision)
	return q, nil
}

// weightPrecisionExponent is the power of ten WeightPrecision equals
// (10^12), used to rescale a price feed's decimal reading into weight
// units.
const weightPrecisionExponent = 12

// ScaleToWeightPrecision converts a price feed reading into a weight in
// WeightPrecision units. value's real price is
// value / 10^decimals, so the weight is value * 10^(12 - decimals),
// floor-rounded when decimals exceeds 12. Fails with BadFeedValue if
// value is not positive and ArithmeticOverflow if the rescaled value
// cannot fit in a uint64.
func ScaleToWeightPrecision(value int64, decimals int32) (uint64, error) {
	if value <= 0 {
		return 0, tiprerr.New(tiprerr.ErrBadFeedValue)
	}
	v := uint64(value)
	exp := weightPrecisionExponent - decimals
	if exp == 0 {
		return v, nil
	}
	if exp > 0 {
		scale, err := pow10(exp)
		if err != nil {
			return 0, err
		}
		hi, lo := bits.Mul64(v, scale)
		if hi != 0 {
			return 0, tiprerr.New(tiprerr.ErrArithmeticOverflow)
		}
		return lo, nil
	}
	scale, err := pow10(-exp)
	if err != nil {
		return 0, err
	}
	return v / scale, nil
}

// pow10 computes 10^exp as a uint64, failing rather than silently wrapping
// once the result would no longer fit.
func pow10(exp int32) (uint64, error) {
	p := uint64(1)
	for i := int32(0); i < exp; i++ {
		next := p * 10
		if next/10 != p {
			return 0, tiprerr.New(tiprerr.ErrArithmeticOverflow)
		}
		p = next
	}
	return p, nil
}

// Share computes floor(pool * numerator / denominator), failing with
// DivisionByZero when denominator is zero and ArithmeticOverflow if the
// floored quotient cannot fit back into a u64 (it never can exceed pool,
// but a malformed denominator smaller than numerator could otherwise wrap).
func Share(pool uint64, numerator, denominator U128) (uint64, error) {
	if denominator.IsZero() {
		return 0, tiprerr.New(tiprerr.ErrDivisionByZero)
	}
	if numerator.IsZero() || pool == 0 {
		return 0, nil
	}

	// product = pool * numerator, a value that can span up to 192 bits.
	product := mul128By64(numerator, pool)
	quot, _ := product.divBy128(denominator)
	if quot.hi2 != 0 || quot.hi1 != 0 {
		return 0, tiprerr.New(tiprerr.ErrArithmeticOverflow)
	}
	return quot.lo, nil
}

func div128By64(hi, lo uint64, divisor uint64) (uint64, uint64) {
	if hi == 0 {
		return lo / divisor, lo % divisor
	}
	return bits.Div64(hi, lo, divisor)
}

// divWide128By64 divides the 128-bit (hi, lo) dividend by a nonzero 64-bit
// divisor, returning a full U128 quotient and the u64 remainder. Unlike a
// bare bits.Div64(hi, lo, divisor) call, this never panics: it first peels
// off hi/divisor as the quotient's high limb and reduces hi to hi%divisor
// (which is always < divisor) before calling bits.Div64 on the low limb, so
// the "quotient overflows a uint64" precondition bits.Div64 panics on can
// never be reached.
func divWide128By64(hi, lo uint64, divisor uint64) (U128, uint64) {
	qHi := hi / divisor
	rHi := hi % divisor
	qLo, rLo := bits.Div64(rHi, lo, divisor)
	return U128{Hi: qHi, Lo: qLo}, rLo
}

// big192 holds an unsigned value up to 192 bits as three 64-bit limbs,
// least significant first.
type big192 struct {
	lo, hi1, hi2 uint64
}

// mul128By64 computes numerator(128 bits) * factor(64 bits) as a 192-bit
// product.
func mul128By64(numerator U128, factor uint64) big192 {
	loHi, loLo := bits.Mul64(numerator.Lo, factor)
	hiHi, hiLo := bits.Mul64(numerator.Hi, factor)

	mid, carry := bits.Add64(loHi, hiLo, 0)
	top, _ := bits.Add64(hiHi, 0, carry)
	return big192{lo: loLo, hi1: mid, hi2: top}
}

// divBy128 divides the 192-bit receiver by a 128-bit divisor using
// schoolbook binary long division, returning the quotient and whether a
// nonzero remainder was dropped. The only caller, Share, discards the
// remainder because every share computation floors toward zero.
func (v big192) divBy128(div U128) (big192, bool) {
	var rem big192
	var quot big192
	const totalBits = 192
	for i := totalBits - 1; i >= 0; i-- {
		rem = rem.shl1(v.bit(i))
		if rem.geU128(div) {
			rem = rem.subU128(div)
			quot = quot.setBit(i)
		}
	}
	return quot, !rem.isZero()
}

func (v big192) bit(i int) uint64 {
	limbs := [3]uint64{v.lo, v.hi1, v.hi2}
	return (limbs[i/64] >> uint(i%64)) & 1
}

func (v big192) setBit(i int) big192 {
	limbs := [3]uint64{v.lo, v.hi1, v.hi2}
	limbs[i/64] |= 1 << uint(i%64)
	return big192{lo: limbs[0], hi1: limbs[1], hi2: limbs[2]}
}

func (v big192) shl1(carryIn uint64) big192 {
	limbs := [3]uint64{v.lo, v.hi1, v.hi2}
	var out [3]uint64
	carry := carryIn
	for i := 0; i < 3; i++ {
		out[i] = (limbs[i] << 1) | carry
		carry = limbs[i] >> 63
	}
	return big192{lo: out[0], hi1: out[1], hi2: out[2]}
}

func (v big192) geU128(div U128) bool {
	if v.hi2 != 0 {
		return true
	}
	if v.hi1 != div.Hi {
		return v.hi1 > div.Hi
	}
	return v.lo >= div.Lo
}

func (v big192) subU128(div U128) big192 {
	lo, borrow := bits.Sub64(v.lo, div.Lo, 0)
	hi1, borrow := bits.Sub64(v.hi1, div.Hi, borrow)
	hi2, _ := bits.Sub64(v.hi2, 0, borrow)
	return big192{lo: lo, hi1: hi1, hi2: hi2}
}

func (v big192) isZero() bool {
	return v.lo == 0 && v.hi1 == 0 && v.hi2 == 0
}

func (v big192) cmp(w big192) int {
	switch {
	case v.hi2 != w.hi2:
		if v.hi2 < w.hi2 {
			return -1
		}
		return 1
	case v.hi1 != w.hi1:
		if v.hi1 < w.hi1 {
			return -1
		}
		return 1
	case v.lo != w.lo:
		if v.lo < w.lo {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// PreciseConsensusReached reports whether stakeWeight / totalStakeWeight
// has reached the 2/3 supermajority, computed as stakeWeight*3 >=
// totalStakeWeight*2 so the comparison is exact rather than
// floating-point.
func PreciseConsensusReached(stakeWeight, totalStakeWeight U128) bool {
	lhs := mul128By64(stakeWeight, 3)
	rhs := mul128By64(totalStakeWeight, 2)
	return lhs.cmp(rhs) >= 0
}

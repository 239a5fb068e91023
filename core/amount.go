package core

import (
	"encoding/json"
	"math/big"
)

// maxU128 is the inclusive upper bound for a registered balance entry or
// custody sum. Amounts are modeled with math/big so every add/sub below is
// an explicit checked operation instead of an implicit machine-word wrap.
var maxU128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// Amount is an unsigned 128-bit token quantity.
type Amount struct{ v big.Int }

// ZeroAmount returns the additive identity.
func ZeroAmount() Amount { return Amount{} }

// AmountFromUint64 lifts a machine-word quantity into an Amount.
func AmountFromUint64(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// AmountFromString parses a base-10 unsigned integer.
func AmountFromString(s string) (Amount, bool) {
	var a Amount
	_, ok := a.v.SetString(s, 10)
	if !ok || a.v.Sign() < 0 || a.v.Cmp(maxU128) > 0 {
		return Amount{}, false
	}
	return a, true
}

func (a Amount) String() string { return a.v.String() }

// MarshalJSON encodes the amount as its base-10 decimal string, so it
// survives event logging and API responses without losing precision the
// way a JSON number would above 2^53.
func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.v.String()) }

// UnmarshalJSON accepts the decimal string MarshalJSON produces.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, ok := AmountFromString(s)
	if !ok {
		return ErrDecodeFailed
	}
	*a = v
	return nil
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool { return a.v.Sign() == 0 }

// Cmp compares two amounts the way big.Int.Cmp does.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// CheckedAdd returns a+b, or ErrBalanceOverflow if the sum exceeds 2^128-1.
func (a Amount) CheckedAdd(b Amount) (Amount, error) {
	var out Amount
	out.v.Add(&a.v, &b.v)
	if out.v.Cmp(maxU128) > 0 {
		return Amount{}, ErrBalanceOverflow
	}
	return out, nil
}

// CheckedSub returns a-b, or ErrBalanceUnderflow if b > a.
func (a Amount) CheckedSub(b Amount) (Amount, error) {
	if a.v.Cmp(&b.v) < 0 {
		return Amount{}, ErrBalanceUnderflow
	}
	var out Amount
	out.v.Sub(&a.v, &b.v)
	return out, nil
}

// mulAmount multiplies two amounts, failing if the product would not fit a
// registered balance entry (used for byte-delta * byte-cost charges, which
// can legitimately exceed 128 bits only for pathological byte-cost configs).
func (a Amount) mulAmount(b Amount) (Amount, error) {
	var out Amount
	out.v.Mul(&a.v, &b.v)
	if out.v.Cmp(maxU128) > 0 {
		return Amount{}, ErrBalanceOverflow
	}
	return out, nil
}

// divUint64 returns a / b (integer division), 0 if b is zero.
func (a Amount) divUint64(b Amount) uint64 {
	if b.v.Sign() == 0 {
		return 0
	}
	var q big.Int
	q.Div(&a.v, &b.v)
	if !q.IsUint64() {
		return ^uint64(0)
	}
	return q.Uint64()
}

// Bytes16 encodes the amount as 16-byte little-endian, the borsh u128 form.
func (a Amount) Bytes16() [16]byte {
	var out [16]byte
	b := a.v.Bytes() // big-endian, no leading zeros
	for i := 0; i < len(b) && i < 16; i++ {
		out[i] = b[len(b)-1-i]
	}
	return out
}

// AmountFromBytes16 decodes a borsh u128 (16-byte little-endian) value.
func AmountFromBytes16(b [16]byte) Amount {
	var a Amount
	be := make([]byte, 16)
	for i := 0; i < 16; i++ {
		be[15-i] = b[i]
	}
	a.v.SetBytes(be)
	return a
}

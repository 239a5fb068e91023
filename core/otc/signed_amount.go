package otc

import (
	"math/big"

	core "synnergy-network/core"
)

// signedAmount accumulates a per-asset net change across a match batch.
// math/big.Int carries no fixed-width overflow ceiling, which is what
// SPEC_FULL's "use signed 256-bit arithmetic to avoid overflow" requirement
// is actually asking for — a bound wide enough that summing every intent's
// amount_in/amount_out in one match batch can never wrap.
type signedAmount struct{ v big.Int }

func newSignedAmount() *signedAmount { return &signedAmount{} }

func (s *signedAmount) add(a core.Amount) {
	var v big.Int
	v.SetString(a.String(), 10)
	s.v.Add(&s.v, &v)
}

func (s *signedAmount) sub(a core.Amount) {
	var v big.Int
	v.SetString(a.String(), 10)
	s.v.Sub(&s.v, &v)
}

func (s *signedAmount) isZero() bool { return s.v.Sign() == 0 }

func (s *signedAmount) String() string { return s.v.String() }

package core

// A small borsh-subset codec.
//
// No borsh implementation exists in the available ecosystem libraries, so
// this is a hand-rolled standard-library fallback: little-endian fixed-width
// integers, u32-length-prefixed byte strings/vectors, and u8 enum
// discriminants, matching the wire shape near_sdk's #[near(borsh)]
// derive produces for SwapRequest/SwapResponse/DexCallRequest/
// DexCallResponse.

import (
	"encoding/binary"
	"fmt"
)

// borshWriter accumulates a borsh-encoded payload.
type borshWriter struct{ buf []byte }

func (w *borshWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *borshWriter) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *borshWriter) u64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }
func (w *borshWriter) u128(a Amount) {
	b := a.Bytes16()
	w.buf = append(w.buf, b[:]...)
}
func (w *borshWriter) bytes(b []byte) {
	w.u32(uint32(len(b)))
	w.buf = append(w.buf, b...)
}
func (w *borshWriter) str(s string)     { w.bytes([]byte(s)) }
func (w *borshWriter) bytesOut() []byte { return w.buf }

// borshReader consumes a borsh-encoded payload sequentially.
type borshReader struct {
	buf []byte
	pos int
}

func newBorshReader(b []byte) *borshReader { return &borshReader{buf: b} }

func (r *borshReader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrDecodeFailed, n, len(r.buf)-r.pos)
	}
	return nil
}

func (r *borshReader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *borshReader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *borshReader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *borshReader) u128() (Amount, error) {
	if err := r.need(16); err != nil {
		return Amount{}, err
	}
	var b [16]byte
	copy(b[:], r.buf[r.pos:r.pos+16])
	r.pos += 16
	return AmountFromBytes16(b), nil
}

func (r *borshReader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return out, nil
}

func (r *borshReader) str() (string, error) {
	b, err := r.bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *borshReader) done() bool { return r.pos >= len(r.buf) }

// SwapRequestAmount is the ExactIn/ExactOut discriminated amount carried
// across the swap host ABI boundary.
type SwapRequestAmount struct {
	ExactOut bool // false => ExactIn
	Amount   Amount
}

// SwapRequest is the borsh payload passed to a tenant's exported `swap`.
type SwapRequest struct {
	Message  []byte
	AssetIn  AssetId
	AssetOut AssetId
	Amount   SwapRequestAmount
}

func (r SwapRequest) Encode() []byte {
	w := &borshWriter{}
	w.bytes(r.Message)
	w.str(r.AssetIn.String())
	w.str(r.AssetOut.String())
	if r.Amount.ExactOut {
		w.u8(1)
	} else {
		w.u8(0)
	}
	w.u128(r.Amount.Amount)
	return w.bytesOut()
}

// SwapResponse is the borsh payload a tenant's `swap` export returns.
type SwapResponse struct {
	AmountIn  Amount
	AmountOut Amount
}

func DecodeSwapResponse(b []byte) (SwapResponse, error) {
	r := newBorshReader(b)
	in, err := r.u128()
	if err != nil {
		return SwapResponse{}, err
	}
	out, err := r.u128()
	if err != nil {
		return SwapResponse{}, err
	}
	return SwapResponse{AmountIn: in, AmountOut: out}, nil
}

// DexCallRequest is the borsh payload passed to an arbitrary tenant export
// invoked via DexCall.
type DexCallRequest struct {
	AttachedAssets map[string]Amount // AssetId.String() -> amount, sorted on encode
	Args           []byte
}

func (r DexCallRequest) Encode() []byte {
	w := &borshWriter{}
	keys := sortedKeys(r.AttachedAssets)
	w.u32(uint32(len(keys)))
	for _, k := range keys {
		w.str(k)
		w.u128(r.AttachedAssets[k])
	}
	w.bytes(r.Args)
	return w.bytesOut()
}

// AssetWithdrawalKind discriminates the three destinations a tenant may
// route a withdraw request to.
type AssetWithdrawalKind uint8

const (
	WithdrawToUserBalance AssetWithdrawalKind = iota
	WithdrawToDexBalance
	WithdrawExternal
)

// AssetWithdrawRequest is one entry of a DexCallResponse's withdraw list.
type AssetWithdrawRequest struct {
	AssetID AssetId
	Amount  Amount
	Kind    AssetWithdrawalKind
	To      string // account for ToUserBalance/WithdrawExternal, dex id for ToDexBalance
}

// DexCallResponse is the borsh payload an arbitrary tenant export returns.
type DexCallResponse struct {
	WithdrawRequests  []AssetWithdrawRequest
	AddStorageDeposit Amount
	Response          []byte
}

func DecodeDexCallResponse(b []byte) (DexCallResponse, error) {
	r := newBorshReader(b)
	n, err := r.u32()
	if err != nil {
		return DexCallResponse{}, err
	}
	reqs := make([]AssetWithdrawRequest, 0, n)
	for i := uint32(0); i < n; i++ {
		assetStr, err := r.str()
		if err != nil {
			return DexCallResponse{}, err
		}
		asset, err := ParseAssetId(assetStr)
		if err != nil {
			return DexCallResponse{}, err
		}
		amt, err := r.u128()
		if err != nil {
			return DexCallResponse{}, err
		}
		kind, err := r.u8()
		if err != nil {
			return DexCallResponse{}, err
		}
		to, err := r.str()
		if err != nil {
			return DexCallResponse{}, err
		}
		reqs = append(reqs, AssetWithdrawRequest{AssetID: asset, Amount: amt, Kind: AssetWithdrawalKind(kind), To: to})
	}
	deposit, err := r.u128()
	if err != nil {
		return DexCallResponse{}, err
	}
	resp, err := r.bytes()
	if err != nil {
		return DexCallResponse{}, err
	}
	return DexCallResponse{WithdrawRequests: reqs, AddStorageDeposit: deposit, Response: resp}, nil
}

func sortedKeys(m map[string]Amount) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	// simple insertion sort: attached-asset maps are small (a handful of
	// entries at most), so this avoids pulling in sort for one call site.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

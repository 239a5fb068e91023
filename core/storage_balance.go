package core

import "fmt"

// StorageMinBound is the minimum registration-only deposit, 0.01 native
// units, matching the Rust prototype's STORAGE_MIN_BOUND.
var StorageMinBound = AmountFromUint64(10_000_000_000_000_000_000_000) // 0.01 * 1e24

// defaultStorageByteCost is the price of one byte of persistent storage,
// expressed in the same native-unit base as StorageMinBound.
// NewStorageBalances falls back to it when given a zero byteCost; production deployments source it from the
// host chain the way the Rust prototype reads near_sdk::env::storage_byte_cost.
var defaultStorageByteCost = AmountFromUint64(10_000_000_000_000_000_000) // 1e19, NEAR's per-byte price

// StorageUsed tracks one principal's prepaid storage pool: total deposited,
// and the portion currently billed against live bytes.
type StorageUsed struct {
	Total Amount
	Used  Amount
}

// Available is Total - Used.
func (s StorageUsed) Available() (Amount, error) { return s.Total.CheckedSub(s.Used) }

// StorageBalances is a generic-over-key prepaid storage pool, one entry per
// principal (user account string or DexId string), grounded on the Rust
// StorageBalances<K> wrapper around a LookupMap.
type StorageBalances struct {
	byteCost Amount
	entries  map[string]StorageUsed
}

// NewStorageBalances constructs an empty pool billing at byteCost per byte.
func NewStorageBalances(byteCost Amount) *StorageBalances {
	if byteCost.IsZero() {
		byteCost = defaultStorageByteCost
	}
	return &StorageBalances{byteCost: byteCost, entries: make(map[string]StorageUsed)}
}

// Deposit increases `total` for key by amount (no registration requirement).
func (s *StorageBalances) Deposit(key string, amount Amount) error {
	e := s.entries[key]
	total, err := e.Total.CheckedAdd(amount)
	if err != nil {
		return fmt.Errorf("storage deposit %s: %w", key, err)
	}
	e.Total = total
	s.entries[key] = e
	return nil
}

// Charge bills (or refunds) the byte-delta between before and after,
// failing with ErrStorageExceeded if growth would push used above total.
func (s *StorageBalances) Charge(key string, bytesBefore, bytesAfter int64) error {
	e := s.entries[key]
	switch {
	case bytesAfter > bytesBefore:
		delta := AmountFromUint64(uint64(bytesAfter - bytesBefore))
		cost, err := delta.mulAmount(s.byteCost)
		if err != nil {
			return err
		}
		used, err := e.Used.CheckedAdd(cost)
		if err != nil {
			return fmt.Errorf("storage charge %s: %w", key, err)
		}
		if used.Cmp(e.Total) > 0 {
			return fmt.Errorf("%w: %s used %s exceeds total %s", ErrStorageExceeded, key, used, e.Total)
		}
		e.Used = used
	case bytesAfter < bytesBefore:
		delta := AmountFromUint64(uint64(bytesBefore - bytesAfter))
		cost, err := delta.mulAmount(s.byteCost)
		if err != nil {
			return err
		}
		used, err := e.Used.CheckedSub(cost)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrStorageUnderflow, key, err)
		}
		e.Used = used
	}
	s.entries[key] = e
	metricStorageBytesUsed.WithLabelValues(key).Set(float64(s.BytesUsed(key)))
	return nil
}

// BytesUsed reports the billed byte count implied by Used / byteCost.
func (s *StorageBalances) BytesUsed(key string) uint64 {
	e, ok := s.entries[key]
	if !ok || s.byteCost.IsZero() {
		return 0
	}
	return e.Used.divUint64(s.byteCost)
}

// BalanceOf returns the entry for key, if any.
func (s *StorageBalances) BalanceOf(key string) (StorageUsed, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Withdraw reduces `total` by amount (or by the full available balance when
// withdrawAll is set), never below `used`.
func (s *StorageBalances) Withdraw(key string, amount Amount, withdrawAll bool) (Amount, error) {
	e, ok := s.entries[key]
	if !ok {
		return Amount{}, fmt.Errorf("%w: storage balance for %s", ErrNotRegistered, key)
	}
	avail, err := e.Available()
	if err != nil {
		return Amount{}, err
	}
	out := amount
	if withdrawAll {
		out = avail
	} else if out.Cmp(avail) > 0 {
		return Amount{}, fmt.Errorf("%w: requested %s exceeds available %s", ErrInsufficientBalance, out, avail)
	}
	total, err := e.Total.CheckedSub(out)
	if err != nil {
		return Amount{}, err
	}
	e.Total = total
	s.entries[key] = e
	return out, nil
}

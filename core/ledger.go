package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// BalanceUpdate is the WAL record and event payload for a single balance
// mutation. Replaying a WAL sets the entry (or, for a custody record, the
// custody sum) each record names to its NewAmount; the records the Ledger
// itself appends leave Delta empty.
type BalanceUpdate struct {
	Principal string `json:"principal"`
	Asset     string `json:"asset"`
	Delta     string `json:"delta"` // signed decimal, may be negative
	NewAmount string `json:"new_amount"`
	Custody   bool   `json:"custody"` // true if the custody sum moved with it
}

// Ledger is the double-entry balance store described in SPEC_FULL §4.2. It
// is guarded by a single mutex: every entry call into the engine serializes
// through it, the same single-writer discipline a block-append path needs.
type Ledger struct {
	mu sync.Mutex

	balances map[balanceKey]Amount
	custody  map[string]Amount // keyed by AssetId.String()

	log     *logrus.Logger
	walFile *os.File
}

// LedgerConfig configures persistence. WALPath may be empty for a
// purely in-memory ledger (used throughout the test suite).
type LedgerConfig struct {
	WALPath string
	Logger  *logrus.Logger
}

// NewLedger opens (or creates) the WAL at cfg.WALPath and replays it to
// reconstruct balances and custody sums, a WAL-replay pattern keyed on
// balance deltas instead of blocks.
func NewLedger(cfg LedgerConfig) (*Ledger, error) {
	lg := cfg.Logger
	if lg == nil {
		lg = logrus.StandardLogger()
	}
	l := &Ledger{
		balances: make(map[balanceKey]Amount),
		custody:  make(map[string]Amount),
		log:      lg,
	}
	if cfg.WALPath == "" {
		return l, nil
	}
	wal, err := os.OpenFile(cfg.WALPath, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open ledger WAL: %w", err)
	}
	scanner := bufio.NewScanner(wal)
	for scanner.Scan() {
		var rec BalanceUpdate
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			wal.Close()
			return nil, fmt.Errorf("ledger WAL unmarshal: %w", err)
		}
		amt, ok := AmountFromString(rec.NewAmount)
		if !ok {
			wal.Close()
			return nil, fmt.Errorf("ledger WAL: bad amount %q", rec.NewAmount)
		}
		if rec.Custody {
			l.custody[rec.Asset] = amt
		} else {
			l.balances[balanceKey{principal: rec.Principal, asset: rec.Asset}] = amt
		}
	}
	if err := scanner.Err(); err != nil {
		wal.Close()
		return nil, fmt.Errorf("ledger WAL scan: %w", err)
	}
	l.walFile = wal
	lg.Infof("ledger: replayed WAL at %s", cfg.WALPath)
	return l, nil
}

func (l *Ledger) appendWAL(rec BalanceUpdate) {
	if l.walFile == nil {
		return
	}
	b, _ := json.Marshal(rec)
	b = append(b, '\n')
	if _, err := l.walFile.Write(b); err != nil {
		l.log.Warnf("ledger: WAL write failed: %v", err)
	}
}

// IsRegistered reports whether a balance entry exists for (p, a).
func (l *Ledger) IsRegistered(p Principal, a AssetId) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.balances[keyOf(p, a)]
	return ok
}

// AssertRegistered fails unless a balance entry exists for (p, a).
func (l *Ledger) AssertRegistered(p Principal, a AssetId) error {
	if !l.IsRegistered(p, a) {
		return fmt.Errorf("%w: %s / %s", ErrNotRegistered, p, a)
	}
	return nil
}

// BalanceOf returns the current balance, or an error if unregistered.
func (l *Ledger) BalanceOf(p Principal, a AssetId) (Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	amt, ok := l.balances[keyOf(p, a)]
	if !ok {
		return Amount{}, fmt.Errorf("%w: %s / %s", ErrNotRegistered, p, a)
	}
	return amt, nil
}

// AssertHasEnough fails unless the entry exists and balance >= amt.
func (l *Ledger) AssertHasEnough(p Principal, a AssetId, amt Amount) error {
	bal, err := l.BalanceOf(p, a)
	if err != nil {
		return err
	}
	if bal.Cmp(amt) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, p, bal, amt)
	}
	return nil
}

// TotalInCustody returns the custody sum for an asset (zero if unregistered).
func (l *Ledger) TotalInCustody(a AssetId) Amount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.custody[a.String()]
}

// Register creates missing balance entries (initialised to zero) for the
// given assets under `for_`, and a matching custody-sum entry if one is not
// already present. Already-registered assets are left untouched.
func (l *Ledger) Register(assets []AssetId, for_ Principal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, a := range assets {
		k := keyOf(for_, a)
		if _, ok := l.balances[k]; !ok {
			l.balances[k] = ZeroAmount()
		}
		if _, ok := l.custody[a.String()]; !ok {
			l.custody[a.String()] = ZeroAmount()
		}
	}
}

// Increase adds amt to an existing entry and, unless skipCustody, to the
// matching custody sum. The entry must already exist.
func (l *Ledger) Increase(p Principal, a AssetId, amt Amount, skipCustody bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := keyOf(p, a)
	bal, ok := l.balances[k]
	if !ok {
		return fmt.Errorf("%w: %s / %s", ErrNotRegistered, p, a)
	}
	newBal, err := bal.CheckedAdd(amt)
	if err != nil {
		return fmt.Errorf("increase %s/%s: %w", p, a, err)
	}
	l.balances[k] = newBal
	if !skipCustody {
		cur := l.custody[a.String()]
		newCustody, err := cur.CheckedAdd(amt)
		if err != nil {
			return fmt.Errorf("increase custody %s: %w", a, err)
		}
		l.custody[a.String()] = newCustody
		l.appendWAL(BalanceUpdate{Asset: a.String(), NewAmount: newCustody.String(), Custody: true})
	}
	l.appendWAL(BalanceUpdate{Principal: p.String(), Asset: a.String(), NewAmount: newBal.String()})
	l.log.Debugf("ledger: %s %s balance -> %s", p, a, newBal)
	return nil
}

// Decrease subtracts amt from an existing entry and, unless skipCustody,
// from the matching custody sum.
func (l *Ledger) Decrease(p Principal, a AssetId, amt Amount, skipCustody bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := keyOf(p, a)
	bal, ok := l.balances[k]
	if !ok {
		return fmt.Errorf("%w: %s / %s", ErrNotRegistered, p, a)
	}
	newBal, err := bal.CheckedSub(amt)
	if err != nil {
		return fmt.Errorf("decrease %s/%s: %w", p, a, err)
	}
	l.balances[k] = newBal
	if !skipCustody {
		cur := l.custody[a.String()]
		newCustody, err := cur.CheckedSub(amt)
		if err != nil {
			return fmt.Errorf("decrease custody %s: %w", a, err)
		}
		l.custody[a.String()] = newCustody
		l.appendWAL(BalanceUpdate{Asset: a.String(), NewAmount: newCustody.String(), Custody: true})
	}
	l.appendWAL(BalanceUpdate{Principal: p.String(), Asset: a.String(), NewAmount: newBal.String()})
	l.log.Debugf("ledger: %s %s balance -> %s", p, a, newBal)
	return nil
}

// Transfer moves amt from `from` to `to` without touching the custody sum.
// A zero amount is a no-op.
func (l *Ledger) Transfer(from, to Principal, a AssetId, amt Amount) error {
	if amt.IsZero() {
		return nil
	}
	if err := l.Decrease(from, a, amt, true); err != nil {
		return err
	}
	if err := l.Increase(to, a, amt, true); err != nil {
		// best-effort rollback of the debit side; the caller is expected to
		// abort the whole entry call on any pipeline error regardless.
		_ = l.Increase(from, a, amt, true)
		return err
	}
	return nil
}

// CreditCustody adds amt to an asset's custody sum without touching any
// balance entry — used when funds genuinely enter the engine from outside
// (an ft_on_transfer-style deposit callback) before the pipeline decides
// which balance entry they ultimately land in.
func (l *Ledger) CreditCustody(a AssetId, amt Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.custody[a.String()]
	next, err := cur.CheckedAdd(amt)
	if err != nil {
		return fmt.Errorf("credit custody %s: %w", a, err)
	}
	l.custody[a.String()] = next
	l.appendWAL(BalanceUpdate{Asset: a.String(), NewAmount: next.String(), Custody: true})
	return nil
}

// DebitCustody reverses CreditCustody — used to unwind an external deposit
// that a sandboxed operation batch rejected in full.
func (l *Ledger) DebitCustody(a AssetId, amt Amount) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.custody[a.String()]
	next, err := cur.CheckedSub(amt)
	if err != nil {
		return fmt.Errorf("debit custody %s: %w", a, err)
	}
	l.custody[a.String()] = next
	l.appendWAL(BalanceUpdate{Asset: a.String(), NewAmount: next.String(), Custody: true})
	return nil
}

// CheckConservation verifies invariant 1: for every asset with a custody
// entry, the sum of every balance entry for that asset equals the custody
// sum. Intended for tests and diagnostics, not the hot path.
func (l *Ledger) CheckConservation() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	sums := make(map[string]Amount, len(l.custody))
	for k, bal := range l.balances {
		cur := sums[k.asset]
		next, err := cur.CheckedAdd(bal)
		if err != nil {
			return fmt.Errorf("conservation: summing %s overflowed", k.asset)
		}
		sums[k.asset] = next
	}
	for asset, custody := range l.custody {
		if sums[asset].Cmp(custody) != 0 {
			return fmt.Errorf("conservation violated for %s: balances sum to %s, custody is %s", asset, sums[asset], custody)
		}
	}
	return nil
}

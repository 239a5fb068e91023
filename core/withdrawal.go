package core

// Asynchronous withdrawal gateway (SPEC_FULL §4.4).
//
// Real cross-contract promise dispatch to ft_transfer/nft_transfer/
// mt_transfer is explicitly out of scope (spec §1): the external token
// contracts are modeled as a TokenTransferer collaborator — a small
// interface with a production implementation left to the embedder and a
// deterministic fake used throughout the test suite.

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sirupsen/logrus"
)

// TokenTransferer dispatches one outbound asset transfer to the external
// world and reports whether the chain-level callback observed success.
type TokenTransferer interface {
	Transfer(ctx context.Context, asset AssetId, to string, amount Amount, gas Gas) (ok bool, err error)
}

// FakeTransferer is a deterministic TokenTransferer for tests: transfers to
// any account present in Registered succeed, everything else fails,
// mirroring scenario S3's "withdraw to unregistered account" setup.
type FakeTransferer struct {
	Registered map[string]bool
}

func NewFakeTransferer() *FakeTransferer { return &FakeTransferer{Registered: make(map[string]bool)} }

func (f *FakeTransferer) Transfer(_ context.Context, _ AssetId, to string, _ Amount, _ Gas) (bool, error) {
	return f.Registered[to], nil
}

// WithdrawalGateway debits the ledger synchronously, dispatches the
// outbound transfer, and re-credits inline in Withdraw when the transfer
// reports failure.
type WithdrawalGateway struct {
	ledger   *Ledger
	transfer TokenTransferer
	events   *EventEmitter
	log      *logrus.Logger
	limiters map[string]*rate.Limiter
}

func NewWithdrawalGateway(l *Ledger, t TokenTransferer, ev *EventEmitter, log *logrus.Logger) *WithdrawalGateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &WithdrawalGateway{ledger: l, transfer: t, events: ev, log: log, limiters: make(map[string]*rate.Limiter)}
}

func (g *WithdrawalGateway) limiterFor(contract string) *rate.Limiter {
	l, ok := g.limiters[contract]
	if !ok {
		l = rate.NewLimiter(rate.Limit(50), 20) // 50 withdrawals/s per contract, burst 20
		g.limiters[contract] = l
	}
	return l
}

// Withdraw executes a single withdrawal: debits `from`'s entry and the
// custody sum, dispatches the transfer, and on failure re-credits either
// `from` (if still registered) or rescueAddress (sandboxed mode).
//
// A zero amount is an immediate success with no transfer dispatched.
func (g *WithdrawalGateway) Withdraw(ctx context.Context, from Principal, asset AssetId, amount Amount, to string, rescue *Principal) (bool, error) {
	if amount.IsZero() {
		return true, nil
	}
	if err := g.ledger.Decrease(from, asset, amount, false); err != nil {
		return false, err
	}

	if !g.limiterFor(asset.Contract).Allow() {
		g.log.Warnf("withdrawal gateway: rate limited transfer of %s %s to %s", amount, asset, to)
	}

	ok, err := g.transfer.Transfer(ctx, asset, to, amount, TransferGasBudget)
	if err != nil {
		g.log.Errorf("withdrawal gateway: transfer dispatch error: %v", err)
		ok = false
	}
	if ok {
		g.events.Withdraw(from.String(), to, asset.String(), amount.String())
		return true, nil
	}

	metricWithdrawalsTotal.WithLabelValues("failed").Inc()
	g.log.Warnf("withdrawal gateway: transfer of %s %s from %s to %s failed, re-crediting", amount, asset, from, to)
	if g.ledger.IsRegistered(from, asset) {
		if err := g.ledger.Increase(from, asset, amount, false); err != nil {
			return false, fmt.Errorf("withdrawal refund to %s failed: %w", from, err)
		}
		return false, nil
	}
	if rescue == nil {
		return false, fmt.Errorf("%w: %s", ErrRescueUnregistered, from)
	}
	if !g.ledger.IsRegistered(*rescue, asset) {
		return false, fmt.Errorf("%w: %s", ErrRescueUnregistered, *rescue)
	}
	if err := g.ledger.Increase(*rescue, asset, amount, false); err != nil {
		return false, fmt.Errorf("withdrawal refund to rescue address %s failed: %w", *rescue, err)
	}
	return false, nil
}

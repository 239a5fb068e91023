package core

// Trade and arbitrary-call entry points (SPEC_FULL §4.1.1/§4.3): a tenant's
// exported `swap`/method body is pure calculation over the borsh request it
// receives, never a direct ledger mutation — the engine moves balances
// itself once the guest returns, the same separation the host ABI's
// storage_* functions keep between "tenant KV" and "ledger entry".

import (
	"context"
	"fmt"
)

// swapSimple drives one SwapSimple operation end to end: invoke the
// tenant's `swap` export, validate its response against the amount the
// caller requested, then move the ledger (or sandboxed bundle) balances it
// implies.
func (e *Engine) swapSimple(ctx context.Context, op SwapSimpleOp, amount SwapRequestAmount, actor Principal, isSandboxed bool, sandboxed SandboxedAssets) (SwapResponse, error) {
	req := SwapRequest{Message: op.Message, AssetIn: op.AssetIn, AssetOut: op.AssetOut, Amount: amount}
	inv, err := e.Invoke(ctx, ExecTrade, op.DexID, "swap", req.Encode(), "", false)
	if err != nil {
		return SwapResponse{}, err
	}
	resp, err := DecodeSwapResponse(inv.output)
	if err != nil {
		return SwapResponse{}, err
	}
	if amount.ExactOut {
		if resp.AmountOut.Cmp(amount.Amount) != 0 {
			return SwapResponse{}, fmt.Errorf("%w: requested exact-out %s, got %s", ErrSwapMismatch, amount.Amount, resp.AmountOut)
		}
	} else if resp.AmountIn.Cmp(amount.Amount) != 0 {
		return SwapResponse{}, fmt.Errorf("%w: requested exact-in %s, got %s", ErrSwapMismatch, amount.Amount, resp.AmountIn)
	}

	dexP := DexPrincipal(op.DexID)
	if isSandboxed {
		if err := sandboxed.debit(op.AssetIn, resp.AmountIn); err != nil {
			return SwapResponse{}, err
		}
		if err := e.Ledger.Increase(dexP, op.AssetIn, resp.AmountIn, true); err != nil {
			return SwapResponse{}, err
		}
		if err := e.Ledger.Decrease(dexP, op.AssetOut, resp.AmountOut, true); err != nil {
			return SwapResponse{}, err
		}
		sandboxed.credit(op.AssetOut, resp.AmountOut)
	} else {
		if err := e.Ledger.Transfer(actor, dexP, op.AssetIn, resp.AmountIn); err != nil {
			return SwapResponse{}, err
		}
		if err := e.Ledger.Transfer(dexP, actor, op.AssetOut, resp.AmountOut); err != nil {
			return SwapResponse{}, err
		}
	}

	e.Events.Swap(op.DexID.String(), resp.AmountIn.String(), resp.AmountOut.String(), actor.String())
	return resp, nil
}

// dexCall drives one DexCall operation: moves attached assets from actor
// into the tenant's ledger entry, invokes the arbitrary export, then
// processes the response's withdraw requests and storage-deposit top-up in
// the fixed order SPEC_FULL §4.3 specifies (transfers, then withdrawals,
// then storage deposit).
func (e *Engine) dexCall(ctx context.Context, op DexCallOp, actor Principal) ([]AssetWithdrawRequest, error) {
	dexP := DexPrincipal(op.DexID)
	for _, k := range sortedKeys(op.AttachedAssets) {
		asset, err := ParseAssetId(k)
		if err != nil {
			return nil, err
		}
		amt := op.AttachedAssets[k]
		if amt.IsZero() {
			continue
		}
		if err := e.Ledger.Transfer(actor, dexP, asset, amt); err != nil {
			return nil, err
		}
	}

	req := DexCallRequest{AttachedAssets: op.AttachedAssets, Args: op.Args}
	inv, err := e.Invoke(ctx, ExecCall, op.DexID, op.Method, req.Encode(), actor.String(), true)
	if err != nil {
		return nil, err
	}
	resp, err := DecodeDexCallResponse(inv.output)
	if err != nil {
		return nil, err
	}

	for _, wr := range resp.WithdrawRequests {
		switch wr.Kind {
		case WithdrawToUserBalance:
			if err := e.Ledger.Transfer(dexP, UserPrincipal(wr.To), wr.AssetID, wr.Amount); err != nil {
				return nil, err
			}
		case WithdrawToDexBalance:
			target, err := ParseDexId(wr.To)
			if err != nil {
				return nil, err
			}
			if err := e.Ledger.Transfer(dexP, DexPrincipal(target), wr.AssetID, wr.Amount); err != nil {
				return nil, err
			}
		case WithdrawExternal:
			if _, err := e.Withdrawals.Withdraw(ctx, dexP, wr.AssetID, wr.Amount, wr.To, nil); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("dex call %s: unknown withdraw request kind", op.DexID)
		}
	}

	if !resp.AddStorageDeposit.IsZero() {
		if err := e.Ledger.Decrease(dexP, NativeAsset(), resp.AddStorageDeposit, false); err != nil {
			return nil, err
		}
		if err := e.DexStorage.Deposit(op.DexID.String(), resp.AddStorageDeposit); err != nil {
			return nil, err
		}
	}

	e.Events.DexEvent(op.DexID.String(), fmt.Sprintf("%x", resp.Response))
	return resp.WithdrawRequests, nil
}

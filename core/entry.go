package core

// Public entry surface (SPEC_FULL §6): the methods an outer transport
// (CLI, HTTP handler, test) calls into the engine through. Each wraps the
// ledger/pipeline/storage collaborators directly — thin, single-purpose,
// named after what they do.

import (
	"context"
	"fmt"
)

// RegisterAssets is the single-operation convenience wrapper around
// ExecuteOperations for the common case of registering balance entries
// with no sandboxed funds in play.
func (e *Engine) RegisterAssets(assets []AssetId, actor Principal, for_ *Principal) error {
	_, err := e.ExecuteOperations(context.Background(), []Operation{{
		Kind:     OpRegisterAssets,
		Register: RegisterAssetsOp{AssetIDs: assets, For: for_},
	}}, actor, nil)
	return err
}

// DeployDexCode uploads code under (actor, shortID) and seeds its storage
// balance footprint accounting.
func (e *Engine) DeployDexCode(actor Principal, shortID string, code []byte) (DexId, error) {
	_, err := e.ExecuteOperations(context.Background(), []Operation{{
		Kind:   OpDeployDexCode,
		Deploy: DeployDexCodeOp{ShortID: shortID, Code: code},
	}}, actor, nil)
	if err != nil {
		return DexId{}, err
	}
	return DexId{Deployer: actor.Account, ShortID: shortID}, nil
}

// Withdraw dispatches a single asynchronous withdrawal on behalf of actor.
func (e *Engine) Withdraw(ctx context.Context, actor Principal, asset AssetId, amount *Amount, to *string, rescue *Principal) error {
	_, err := e.ExecuteOperations(ctx, []Operation{{
		Kind:     OpWithdraw,
		Withdraw: WithdrawOp{AssetID: asset, Amount: amount, To: to, Rescue: rescue},
	}}, actor, nil)
	return err
}

// SwapSimpleExactIn requests a swap where amount_in is fixed and
// amount_out is whatever the tenant computes.
func (e *Engine) SwapSimpleExactIn(ctx context.Context, actor Principal, dexID DexId, message []byte, assetIn, assetOut AssetId, amountIn Amount) (SwapResponse, error) {
	return e.swapSimple(ctx, SwapSimpleOp{DexID: dexID, Message: message, AssetIn: assetIn, AssetOut: assetOut}, SwapRequestAmount{ExactOut: false, Amount: amountIn}, actor, false, nil)
}

// SwapSimpleExactOut requests a swap where amount_out is fixed.
func (e *Engine) SwapSimpleExactOut(ctx context.Context, actor Principal, dexID DexId, message []byte, assetIn, assetOut AssetId, amountOut Amount) (SwapResponse, error) {
	return e.swapSimple(ctx, SwapSimpleOp{DexID: dexID, Message: message, AssetIn: assetIn, AssetOut: assetOut}, SwapRequestAmount{ExactOut: true, Amount: amountOut}, actor, false, nil)
}

// DexCallAuthorized invokes an arbitrary tenant export with attached
// assets, processing its withdraw requests and storage top-up.
func (e *Engine) DexCallAuthorized(ctx context.Context, actor Principal, dexID DexId, method string, args []byte, attached map[string]Amount) ([]AssetWithdrawRequest, error) {
	return e.dexCall(ctx, DexCallOp{DexID: dexID, Method: method, Args: args, AttachedAssets: attached}, actor)
}

// TransferAsset moves a registered balance between two principals.
func (e *Engine) TransferAsset(from, to Principal, asset AssetId, amount Amount) error {
	_, err := e.ExecuteOperations(context.Background(), []Operation{{
		Kind:     OpTransferAsset,
		Transfer: TransferAssetOp{To: to, AssetID: asset, Amount: amount},
	}}, from, nil)
	return err
}

// AssetBalanceOf is a read-only ledger lookup.
func (e *Engine) AssetBalanceOf(p Principal, a AssetId) (Amount, error) {
	return e.Ledger.BalanceOf(p, a)
}

// TotalInCustody is a read-only custody-sum lookup.
func (e *Engine) TotalInCustody(a AssetId) Amount { return e.Ledger.TotalInCustody(a) }

// UserStorageDeposit increases a user's prepaid storage total, enforcing
// the registration-only minimum bound (StorageMinBound) the
// first time a user deposits.
func (e *Engine) UserStorageDeposit(account string, amount Amount) error {
	key := account
	if _, ok := e.UserStorage.BalanceOf(key); !ok && amount.Cmp(StorageMinBound) < 0 {
		return fmt.Errorf("%w: %s deposited %s, need at least %s", ErrBelowMinStorage, account, amount, StorageMinBound)
	}
	return e.UserStorage.Deposit(key, amount)
}

// UserStorageWithdraw withdraws from a user's available (unused) storage
// balance.
func (e *Engine) UserStorageWithdraw(account string, amount Amount, all bool) (Amount, error) {
	return e.UserStorage.Withdraw(account, amount, all)
}

// UserStorageBalanceOf is a read-only lookup.
func (e *Engine) UserStorageBalanceOf(account string) (StorageUsed, bool) {
	return e.UserStorage.BalanceOf(account)
}

// DexStorageDeposit increases a deployed tenant's prepaid storage total.
// Any actor may fund it; only withdrawal (DexStorageWithdraw) is limited to
// the deployer, mirroring the Rust prototype's deployer-only check on
// dex_storage_withdraw.
func (e *Engine) DexStorageDeposit(actor Principal, dexID DexId, amount Amount) error {
	return e.DexStorage.Deposit(dexID.String(), amount)
}

// DexStorageWithdraw withdraws from a dex's available storage balance;
// fails unless actor is the dex's deployer.
func (e *Engine) DexStorageWithdraw(actor Principal, dexID DexId, amount Amount, all bool) (Amount, error) {
	if actor.Kind != PrincipalUser || actor.Account != dexID.Deployer {
		return Amount{}, fmt.Errorf("%w: only %s may withdraw %s's storage balance", ErrUnauthorized, dexID.Deployer, dexID)
	}
	return e.DexStorage.Withdraw(dexID.String(), amount, all)
}

// DexStorageBalanceOf is a read-only lookup.
func (e *Engine) DexStorageBalanceOf(dexID DexId) (StorageUsed, bool) {
	return e.DexStorage.BalanceOf(dexID.String())
}

// FtOnTransfer models the fungible-token deposit callback: funds have
// already arrived at the engine's external account, so the amount is
// credited to custody and made available as a sandboxed bundle for ops to
// consume. Any pipeline failure reverts the whole deposit — the bundle
// (and its custody credit) is unwound and the full amount is reported back
// to the caller as the "unused" refund, the NEP-141 on_transfer contract.
func (e *Engine) FtOnTransfer(ctx context.Context, sender string, assetContract string, amount Amount, ops []Operation) (refund Amount, err error) {
	asset := FungibleAsset(assetContract)
	if err := e.Ledger.CreditCustody(asset, amount); err != nil {
		return Amount{}, err
	}
	bundle := SandboxedAssets{asset.String(): amount}
	if _, err := e.ExecuteOperations(ctx, ops, UserPrincipal(sender), bundle); err != nil {
		if rbErr := e.Ledger.DebitCustody(asset, amount); rbErr != nil {
			return Amount{}, fmt.Errorf("deposit rejected (%v) and rollback failed: %w", err, rbErr)
		}
		return amount, nil
	}
	return ZeroAmount(), nil
}

// DepositNear models the native-token deposit entry point: the attached
// amount has already arrived, so it is credited to custody and, when ops is
// non-empty, made available to them as a sandboxed bundle; with no ops it is
// credited straight to depositor's own balance entry. Either way a failure
// unwinds the custody credit.
func (e *Engine) DepositNear(ctx context.Context, depositor string, amount Amount, ops []Operation) error {
	asset := NativeAsset()
	if err := e.Ledger.CreditCustody(asset, amount); err != nil {
		return err
	}
	actor := UserPrincipal(depositor)
	if len(ops) == 0 {
		if err := e.Ledger.Increase(actor, asset, amount, true); err != nil {
			if rbErr := e.Ledger.DebitCustody(asset, amount); rbErr != nil {
				return fmt.Errorf("deposit credit failed (%v) and rollback failed: %w", err, rbErr)
			}
			return err
		}
		return nil
	}
	bundle := SandboxedAssets{asset.String(): amount}
	if _, err := e.ExecuteOperations(ctx, ops, actor, bundle); err != nil {
		if rbErr := e.Ledger.DebitCustody(asset, amount); rbErr != nil {
			return fmt.Errorf("deposit rejected (%v) and rollback failed: %w", err, rbErr)
		}
		return err
	}
	return nil
}

// NftOnTransfer models the NFT deposit callback: credits a single token to
// prevOwner and, when ops is non-empty, runs them in sandboxed mode —
// requiring sender == prevOwner, since only the token's new owner may
// authorize spending it. The bool return is the NEP-171
// should-return-to-sender signal: true means the deposit is rejected.
func (e *Engine) NftOnTransfer(ctx context.Context, sender, prevOwner, contract, tokenID string, ops []Operation) (reject bool, err error) {
	asset := NonFungibleAsset(contract, tokenID)
	qty := AmountFromUint64(1)
	if err := e.Ledger.CreditCustody(asset, qty); err != nil {
		return true, err
	}
	actor := UserPrincipal(prevOwner)
	if len(ops) == 0 {
		if err := e.Ledger.Increase(actor, asset, qty, true); err != nil {
			if rbErr := e.Ledger.DebitCustody(asset, qty); rbErr != nil {
				return true, fmt.Errorf("nft credit failed (%v) and rollback failed: %w", err, rbErr)
			}
			return true, err
		}
		return false, nil
	}
	if sender != prevOwner {
		if rbErr := e.Ledger.DebitCustody(asset, qty); rbErr != nil {
			return true, fmt.Errorf("%w: sandboxed nft operations require sender == prev_owner, and rollback failed: %v", ErrUnauthorized, rbErr)
		}
		return true, fmt.Errorf("%w: sandboxed nft operations require sender == prev_owner", ErrUnauthorized)
	}
	bundle := SandboxedAssets{asset.String(): qty}
	if _, err := e.ExecuteOperations(ctx, ops, actor, bundle); err != nil {
		if rbErr := e.Ledger.DebitCustody(asset, qty); rbErr != nil {
			return true, fmt.Errorf("nft deposit rejected (%v) and rollback failed: %w", err, rbErr)
		}
		return true, nil
	}
	return false, nil
}

// MtOnTransfer models the multi-token deposit callback: each element credits
// its own prevOwners[i]/tokenIDs[i]/amounts[i] triple independently. When ops
// is non-empty, every prevOwner in the batch must equal sender — the
// sandboxed operations run once, as sender, over the union of credited
// balances. The bool return mirrors NftOnTransfer's reject signal.
func (e *Engine) MtOnTransfer(ctx context.Context, sender string, prevOwners, tokenIDs []string, amounts []Amount, contract string, ops []Operation) (reject bool, err error) {
	if len(prevOwners) != len(tokenIDs) || len(prevOwners) != len(amounts) {
		return true, fmt.Errorf("mt_on_transfer: prev_owners/token_ids/amounts length mismatch")
	}

	assets := make([]AssetId, len(prevOwners))
	credited := 0
	rollback := func() {
		for i := 0; i < credited; i++ {
			_ = e.Ledger.DebitCustody(assets[i], amounts[i])
		}
	}
	for i := range prevOwners {
		assets[i] = MultiTokenAsset(contract, tokenIDs[i])
		if amounts[i].IsZero() {
			continue
		}
		if err := e.Ledger.CreditCustody(assets[i], amounts[i]); err != nil {
			rollback()
			return true, err
		}
		credited = i + 1
	}

	if len(ops) == 0 {
		for i := range prevOwners {
			if amounts[i].IsZero() {
				continue
			}
			if err := e.Ledger.Increase(UserPrincipal(prevOwners[i]), assets[i], amounts[i], true); err != nil {
				rollback()
				return true, err
			}
		}
		return false, nil
	}

	for _, p := range prevOwners {
		if p != sender {
			rollback()
			return true, fmt.Errorf("%w: sandboxed mt operations require every prev_owner == sender", ErrUnauthorized)
		}
	}
	bundle := make(SandboxedAssets, len(assets))
	for i := range assets {
		bundle.credit(assets[i], amounts[i])
	}
	if _, err := e.ExecuteOperations(ctx, ops, UserPrincipal(sender), bundle); err != nil {
		rollback()
		return true, nil
	}
	return false, nil
}

// DexView drives a read-only invocation of a tenant export: no attached
// assets, no storage mutation permitted (enforced by the host ABI's
// ExecView guard), no storage billing.
func (e *Engine) DexView(ctx context.Context, dexID DexId, export string, input []byte) ([]byte, error) {
	res, err := e.Invoke(ctx, ExecView, dexID, export, input, "", false)
	if err != nil {
		return nil, err
	}
	return res.output, nil
}

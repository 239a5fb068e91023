package core

// Operation pipeline (SPEC_FULL §4.3): a composable list of primitive
// actions executed atomically against the ledger, either against a fully
// authorized principal or a restricted sandboxed principal (funds just
// received via a deposit callback).

import (
	"context"
	"fmt"
)

// bytesPerBalanceEntry approximates the marginal storage cost of a single
// (principal, asset) balance entry for billing RegisterAssets; the engine
// has no real serialized-size figure to consult outside an actual guest
// invocation, so a fixed estimate stands in, the same way a flat gas cost
// stands in for an un-priced opcode.
const bytesPerBalanceEntry = 40

// OperationKind discriminates the seven members of the Operation union.
type OperationKind uint8

const (
	OpRegisterAssets OperationKind = iota
	OpDeployDexCode
	OpWithdraw
	OpSwapSimple
	OpDexCall
	OpTransferAsset
	OpStorageDeposit
)

// SwapAmountKind discriminates SwapSimple's amount resolution strategy.
type SwapAmountKind uint8

const (
	SwapExact SwapAmountKind = iota
	SwapOutputOfPreviousSwap
	SwapEntireBalanceIn
)

type RegisterAssetsOp struct {
	AssetIDs []AssetId
	For      *Principal // nil => acting principal
}

type DeployDexCodeOp struct {
	ShortID string
	Code    []byte
}

type WithdrawOp struct {
	AssetID AssetId
	Amount  *Amount // nil => entire balance
	To      *string // nil => acting principal's own account
	Rescue  *Principal
}

type SwapSimpleOp struct {
	DexID      DexId
	Message    []byte
	AssetIn    AssetId
	AssetOut   AssetId
	AmountKind SwapAmountKind
	Exact      SwapRequestAmount // valid when AmountKind == SwapExact
}

type DexCallOp struct {
	DexID          DexId
	Method         string
	Args           []byte
	AttachedAssets map[string]Amount
}

type TransferAssetOp struct {
	To      Principal
	AssetID AssetId
	Amount  Amount
}

type StorageDepositOp struct {
	Amount Amount
	For    *Principal
}

// Operation is the tagged union executed by the pipeline.
type Operation struct {
	Kind     OperationKind
	Register RegisterAssetsOp
	Deploy   DeployDexCodeOp
	Withdraw WithdrawOp
	Swap     SwapSimpleOp
	Call     DexCallOp
	Transfer TransferAssetOp
	StoreDep StorageDepositOp
}

// SandboxedAssets is the mutable bundle a deposit callback makes available
// when executing in restricted mode; it must be fully drained by the end
// of the batch (SPEC_FULL invariant 7).
type SandboxedAssets map[string]Amount

func (s SandboxedAssets) debit(a AssetId, amt Amount) error {
	cur := s[a.String()]
	next, err := cur.CheckedSub(amt)
	if err != nil {
		return fmt.Errorf("sandboxed debit %s: %w", a, err)
	}
	s[a.String()] = next
	return nil
}

func (s SandboxedAssets) credit(a AssetId, amt Amount) {
	cur := s[a.String()]
	next, _ := cur.CheckedAdd(amt) // sandboxed bundles are bounded by what was just deposited
	s[a.String()] = next
}

func (s SandboxedAssets) balance(a AssetId) Amount { return s[a.String()] }

// AssertEmpty fails unless every entry in the bundle is exactly zero.
func (s SandboxedAssets) AssertEmpty() error {
	for k, v := range s {
		if !v.IsZero() {
			return fmt.Errorf("%w: %s still holds %s", ErrSandboxNotEmpty, k, v)
		}
	}
	return nil
}

type lastSwapOutput struct {
	asset  AssetId
	amount Amount
	valid  bool
}

// ExecuteOperations runs ops in order against actor. sandboxed, when
// non-nil, restricts execution to the "sandboxed" mode of SPEC_FULL §4.3:
// RegisterAssets/DeployDexCode/DexCall are forbidden, and Withdraw/
// TransferAsset/SwapSimple(EntireBalanceIn) draw from the bundle rather
// than actor's inner balance.
func (e *Engine) ExecuteOperations(ctx context.Context, ops []Operation, actor Principal, sandboxed SandboxedAssets) ([]AssetWithdrawRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	isSandboxed := sandboxed != nil
	var last lastSwapOutput
	var outRequests []AssetWithdrawRequest

	for i, op := range ops {
		switch op.Kind {
		case OpRegisterAssets:
			if isSandboxed {
				return nil, fmt.Errorf("%w: RegisterAssets", ErrSandboxForbidden)
			}
			for_ := actor
			if op.Register.For != nil {
				for_ = *op.Register.For
			}
			before := 0
			for _, a := range op.Register.AssetIDs {
				if !e.Ledger.IsRegistered(for_, a) {
					before++
				}
			}
			e.Ledger.Register(op.Register.AssetIDs, for_)
			if before > 0 {
				key := storageKeyFor(actor)
				pool := storagePoolFor(e, actor)
				if err := pool.Charge(key, 0, int64(before*bytesPerBalanceEntry)); err != nil {
					return nil, err
				}
			}
			last = lastSwapOutput{}

		case OpDeployDexCode:
			if isSandboxed {
				return nil, fmt.Errorf("%w: DeployDexCode", ErrSandboxForbidden)
			}
			id := DexId{Deployer: actor.Account, ShortID: op.Deploy.ShortID}
			existing, _ := e.Code.Get(id)
			hash, err := e.Code.Deploy(id, op.Deploy.Code)
			if err != nil {
				return nil, err
			}
			if err := e.DexStorage.Charge(id.String(), int64(len(existing)), int64(len(op.Deploy.Code))); err != nil {
				return nil, err
			}
			e.Events.DexDeployed(id.String(), fmt.Sprintf("%x", hash))
			last = lastSwapOutput{}

		case OpWithdraw:
			to := actor.Account
			if op.Withdraw.To != nil {
				to = *op.Withdraw.To
			}
			var amt Amount
			if isSandboxed {
				amt = sandboxed.balance(op.Withdraw.AssetID)
				if op.Withdraw.Amount != nil {
					amt = *op.Withdraw.Amount
				}
				if amt.IsZero() {
					last = lastSwapOutput{}
					continue
				}
				if err := sandboxed.debit(op.Withdraw.AssetID, amt); err != nil {
					return nil, err
				}
				ok, err := e.withdrawFromBundle(ctx, op.Withdraw.AssetID, amt, to, op.Withdraw.Rescue, actor)
				if err != nil {
					return nil, err
				}
				_ = ok
			} else {
				if op.Withdraw.Amount != nil {
					amt = *op.Withdraw.Amount
				} else {
					bal, err := e.Ledger.BalanceOf(actor, op.Withdraw.AssetID)
					if err != nil {
						return nil, err
					}
					amt = bal
				}
				if amt.IsZero() {
					last = lastSwapOutput{}
					continue
				}
				var rescue *Principal
				if op.Withdraw.Rescue != nil {
					rescue = op.Withdraw.Rescue
				}
				if _, err := e.Withdrawals.Withdraw(ctx, actor, op.Withdraw.AssetID, amt, to, rescue); err != nil {
					return nil, err
				}
			}
			last = lastSwapOutput{}

		case OpSwapSimple:
			amount, err := e.resolveSwapAmount(op.Swap, last, actor, isSandboxed, sandboxed)
			if err != nil {
				return nil, err
			}
			resp, err := e.swapSimple(ctx, op.Swap, amount, actor, isSandboxed, sandboxed)
			if err != nil {
				return nil, err
			}
			outAmt := resp.AmountOut
			if amount.ExactOut {
				outAmt = amount.Amount
			}
			last = lastSwapOutput{asset: op.Swap.AssetOut, amount: outAmt, valid: true}

		case OpDexCall:
			if isSandboxed {
				return nil, fmt.Errorf("%w: DexCall", ErrSandboxForbidden)
			}
			reqs, err := e.dexCall(ctx, op.Call, actor)
			if err != nil {
				return nil, err
			}
			outRequests = append(outRequests, reqs...)
			last = lastSwapOutput{}

		case OpTransferAsset:
			if isSandboxed {
				if err := sandboxed.debit(op.Transfer.AssetID, op.Transfer.Amount); err != nil {
					return nil, err
				}
				if err := e.Ledger.Increase(op.Transfer.To, op.Transfer.AssetID, op.Transfer.Amount, true); err != nil {
					return nil, err
				}
			} else {
				if err := e.Ledger.Transfer(actor, op.Transfer.To, op.Transfer.AssetID, op.Transfer.Amount); err != nil {
					return nil, err
				}
			}
			last = lastSwapOutput{}

		case OpStorageDeposit:
			for_ := actor
			if op.StoreDep.For != nil {
				for_ = *op.StoreDep.For
			}
			if isSandboxed {
				if err := sandboxed.debit(NativeAsset(), op.StoreDep.Amount); err != nil {
					return nil, err
				}
			}
			pool := storagePoolFor(e, for_)
			if err := pool.Deposit(storageKeyFor(for_), op.StoreDep.Amount); err != nil {
				return nil, err
			}
			last = lastSwapOutput{}

		default:
			return nil, fmt.Errorf("unknown operation kind at index %d", i)
		}
	}

	if isSandboxed {
		if err := sandboxed.AssertEmpty(); err != nil {
			return nil, err
		}
	}
	return outRequests, nil
}

func storageKeyFor(p Principal) string {
	if p.Kind == PrincipalDex {
		return p.Dex.String()
	}
	return p.Account
}

func storagePoolFor(e *Engine, p Principal) *StorageBalances {
	if p.Kind == PrincipalDex {
		return e.DexStorage
	}
	return e.UserStorage
}

func (e *Engine) resolveSwapAmount(op SwapSimpleOp, last lastSwapOutput, actor Principal, isSandboxed bool, sandboxed SandboxedAssets) (SwapRequestAmount, error) {
	switch op.AmountKind {
	case SwapExact:
		return op.Exact, nil
	case SwapOutputOfPreviousSwap:
		if !last.valid || last.asset.String() != op.AssetIn.String() {
			return SwapRequestAmount{}, ErrNoPreviousSwap
		}
		return SwapRequestAmount{ExactOut: false, Amount: last.amount}, nil
	case SwapEntireBalanceIn:
		if isSandboxed {
			return SwapRequestAmount{ExactOut: false, Amount: sandboxed.balance(op.AssetIn)}, nil
		}
		bal, err := e.Ledger.BalanceOf(actor, op.AssetIn)
		if err != nil {
			return SwapRequestAmount{}, err
		}
		return SwapRequestAmount{ExactOut: false, Amount: bal}, nil
	default:
		return SwapRequestAmount{}, fmt.Errorf("unknown swap amount kind")
	}
}

// withdrawFromBundle dispatches a withdrawal whose source of funds is the
// sandboxed bundle rather than a ledger entry: there is no principal entry
// to debit, but the custody sum must still move in step with the transfer,
// mirroring WithdrawalGateway.Withdraw's debit-before-dispatch discipline.
func (e *Engine) withdrawFromBundle(ctx context.Context, asset AssetId, amount Amount, to string, rescue *Principal, actor Principal) (bool, error) {
	if amount.IsZero() {
		return true, nil
	}
	if err := e.Ledger.DebitCustody(asset, amount); err != nil {
		return false, err
	}

	ok, err := e.Withdrawals.transfer.Transfer(ctx, asset, to, amount, TransferGasBudget)
	if err != nil {
		ok = false
	}
	if ok {
		e.Events.Withdraw(actor.String(), to, asset.String(), amount.String())
		return true, nil
	}
	if rescue != nil && e.Ledger.IsRegistered(*rescue, asset) {
		if err := e.Ledger.Increase(*rescue, asset, amount, false); err != nil {
			return false, fmt.Errorf("sandboxed withdrawal refund to rescue address %s failed: %w", *rescue, err)
		}
		return false, nil
	}
	if err := e.Ledger.CreditCustody(asset, amount); err != nil {
		return false, fmt.Errorf("sandboxed withdrawal custody restore failed: %w", err)
	}
	return false, fmt.Errorf("%w: %s", ErrRescueUnregistered, actor)
}

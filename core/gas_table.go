// SPDX-License-Identifier: BUSL-1.1
//
// Gas budgets for the dex engine's asynchronous withdrawal gateway.
//
// The host chain's real gas metering is out of scope: these are the two
// fixed budgets mirroring the Rust prototype's GAS_FOR_*_TRANSFER /
// GAS_FOR_WITHDRAWAL_CALLBACK constants. Only TransferGasBudget is passed
// along when the gateway dispatches an outbound token transfer.
package core

// Gas is a budget in raw gas units (1 Tgas = 10^12), a typed alias rather than bare
// uint64 literals scattered by call site.
type Gas uint64

const (
	// TransferGasBudget is attached to every outbound ft_transfer /
	// nft_transfer / mt_transfer / native transfer dispatch.
	TransferGasBudget Gas = 10_000_000_000_000 // 10 Tgas

	// CallbackGasBudget mirrors the prototype's withdrawal-callback budget.
	// The gateway handles a transfer's outcome inline in Withdraw and does
	// not pass this constant anywhere.
	CallbackGasBudget Gas = 5_000_000_000_000 // 5 Tgas

	// PrepaidGas is the total budget surfaced to a guest module via the
	// prepaid_gas host function; the residual after TransferGasBudget
	// funds guest execution proper.
	PrepaidGas Gas = 300_000_000_000_000 // 300 Tgas
)

package core

import "errors"

// Sentinel errors for the dex engine. Each error taxonomy entry from the
// design notes has exactly one sentinel below; call sites wrap it with
// fmt.Errorf("...: %w", ErrX) to attach the offending principal/asset.
var (
	ErrNotRegistered       = errors.New("balance entry not registered")
	ErrAlreadyRegistered   = errors.New("balance entry already registered")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrBalanceUnderflow    = errors.New("balance underflow")
	ErrStorageExceeded     = errors.New("storage used would exceed total")
	ErrStorageUnderflow    = errors.New("storage refund underflow")
	ErrBelowMinStorage     = errors.New("deposit below storage minimum bound")
	ErrSandboxForbidden    = errors.New("operation only available in execute_operations")
	ErrSandboxNotEmpty     = errors.New("sandboxed assets must be empty after execution")
	ErrSwapMismatch        = errors.New("swap response does not match requested amount")
	ErrNoPreviousSwap      = errors.New("no compatible previous swap for OutputOfPreviousSwap")
	ErrCodeNotFound        = errors.New("dex code not found")
	ErrExportNotFound      = errors.New("exported function not found")
	ErrForbiddenExport     = errors.New("swap is a reserved export name")
	ErrGuestPanic          = errors.New("guest module panicked")
	ErrViewMutation        = errors.New("view invocation attempted a storage mutation")
	ErrUnauthorized        = errors.New("predecessor not authorized")
	ErrSignatureInvalid    = errors.New("signature verification failed")
	ErrNonceUsed           = errors.New("nonce already used")
	ErrIntentExpired       = errors.New("intent expired")
	ErrNotWhitelisted      = errors.New("counterparty not whitelisted")
	ErrNetNotZero          = errors.New("intent batch does not net to zero")
	ErrAttachedMismatch    = errors.New("attached assets do not match intent batch")
	ErrRescueUnregistered  = errors.New("rescue address has no registered balance entry")
	ErrDecodeFailed        = errors.New("borsh decode failed")
)

package common

// Vault contract signals errors by panicking. Messages below are stable and
// matched by off-chain callers.
const (
	// ErrUnauthorized appears when a method restricted to the vault owner
	// is invoked by anybody else.
	ErrUnauthorized = "unauthorized"
	// ErrNotRegistered appears when an operation refers to an account that
	// has never deposited into the vault.
	ErrNotRegistered = "relay is not registered"
	// ErrInsufficientBalance appears when a debit exceeds the available
	// balance.
	ErrInsufficientBalance = "insufficient balance"
	// ErrTransferFailed appears when the asset contract rejects a transfer.
	ErrTransferFailed = "failed to transfer assets"
)

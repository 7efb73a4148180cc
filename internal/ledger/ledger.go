package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/kolo-save/kolo/internal/wallet"
)

var (
	// ErrInvalidAmount rejects amounts that are not positive or carry more than two decimal places.
	ErrInvalidAmount = wallet.ErrInvalidAmount

	// ErrInvalidReference rejects empty or oversized idempotence references.
	ErrInvalidReference = errors.New("reference must be 1 to 64 characters")

	// ErrInsufficientFunds occurs when the funding source declines a daily saving charge.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientBalance occurs when a lock or unlock exceeds the available amount.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyProcessed indicates a daily saving for the same user and date already succeeded.
	ErrAlreadyProcessed = errors.New("daily saving already processed")

	// ErrOutOfOrder rejects a daily saving dated before the last processed one.
	ErrOutOfOrder = errors.New("date precedes last daily saving")

	// ErrDuplicateTransaction indicates the reference was already applied; the
	// current wallet is returned alongside so callers can treat it as idempotent.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrWalletInactive rejects mutations on suspended wallets.
	ErrWalletInactive = errors.New("wallet is not active")

	// ErrTimeout wraps a store or funding call that exceeded its deadline. Retrying is safe.
	ErrTimeout = errors.New("operation timed out")
)

const maxReferenceLength = 64

// FundingSource debits the external account that finances daily savings.
// Implementations must return an error wrapping ErrInsufficientFunds on decline
// and must treat reference as an idempotence key.
type FundingSource interface {
	Charge(ctx context.Context, userID string, amount decimal.Decimal, reference string) error
}

// Result captures the outcome of a ledger mutation.
type Result struct {
	Wallet wallet.Wallet
	Entry  wallet.Entry
}

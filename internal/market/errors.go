package market

import (
	"errors"
	"fmt"
)

// Orchestration error kinds. Gateway failures are wrapped so the kind and the
// verbatim underlying error are both visible to errors.Is. No operation in
// this package retries on its own; every failure goes back to the caller.
var (
	// ErrPrecondition rejects a write attempted with no connected account,
	// before any gateway call is made.
	ErrPrecondition = errors.New("no account connected")

	// ErrInvalidInput rejects malformed ids, prices, and amounts before any
	// gateway call is made.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMalformedResponse marks a read whose result did not decode into the
	// expected shape.
	ErrMalformedResponse = errors.New("malformed contract response")

	// ErrWriteRejected marks a write the user or contract rejected, including
	// insufficient funds, failed assertions, and ownership mismatches.
	ErrWriteRejected = errors.New("write rejected")

	// ErrBusy rejects a re-entrant invocation while a prior invocation of the
	// same operation kind is still outstanding.
	ErrBusy = errors.New("operation already in flight")

	// ErrBadState rejects a purchase-machine transition from the wrong state.
	ErrBadState = errors.New("invalid purchase state for operation")

	// ErrMissingHouseDetail rejects a purchase confirmation when no house
	// detail snapshot with the listing price has been fetched.
	ErrMissingHouseDetail = errors.New("house detail not fetched")

	// ErrApprovalFailed marks a failed token-spend approval. The purchase may
	// be retried from confirmation.
	ErrApprovalFailed = errors.New("token approval failed")

	// ErrPurchaseFailed marks a failed purchase with no approval granted.
	ErrPurchaseFailed = errors.New("purchase failed")

	// ErrPurchaseAfterApproval marks a purchase that failed after the spend
	// approval settled on chain. The allowance stands and is not revoked;
	// callers must surface that exposure to the user. Matches both itself and
	// ErrPurchaseFailed under errors.Is.
	ErrPurchaseAfterApproval = fmt.Errorf("%w after approval was granted; token allowance remains on chain", ErrPurchaseFailed)
)

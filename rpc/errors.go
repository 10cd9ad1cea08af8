package rpc

import (
	"errors"

	"escrowd/native/common"
	"escrowd/native/fees"
	"escrowd/native/ledger"
	"escrowd/native/market"
	"escrowd/native/params"
	"escrowd/native/payments"
)

// codeForError maps sentinel errors from the settlement engines onto the
// module error codes. Unknown errors fall through as internal.
func codeForError(err error) int {
	switch {
	case errors.Is(err, market.ErrNotAuthorized),
		errors.Is(err, payments.ErrNotAuthorized),
		errors.Is(err, ledger.ErrNotAuthorized),
		errors.Is(err, params.ErrNotAuthorized),
		errors.Is(err, params.ErrAdminUnset):
		return codeNotAuthorized
	case errors.Is(err, market.ErrListingNotFound),
		errors.Is(err, market.ErrPurchaseNotFound),
		errors.Is(err, payments.ErrNotFound):
		return codeNotFound
	case errors.Is(err, market.ErrListingExpired),
		errors.Is(err, market.ErrListingInactive),
		errors.Is(err, market.ErrAlreadyConfirmed),
		errors.Is(err, market.ErrPurchaseDisputed),
		errors.Is(err, market.ErrAlreadyRefunded),
		errors.Is(err, market.ErrInvalidState),
		errors.Is(err, payments.ErrInvalidState),
		errors.Is(err, common.ErrModulePaused):
		return codeInvalidState
	case errors.Is(err, payments.ErrAlreadyExists),
		errors.Is(err, payments.ErrHistoryFull):
		return codeConflict
	case errors.Is(err, market.ErrPaymentFailed),
		errors.Is(err, market.ErrRefundFailed),
		errors.Is(err, payments.ErrPaymentFailed),
		errors.Is(err, payments.ErrRefundFailed),
		errors.Is(err, payments.ErrInsufficientBal),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNothingToWithdraw):
		return codePayment
	case errors.Is(err, market.ErrInvalidPrice),
		errors.Is(err, market.ErrInvalidInventory),
		errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrInvalidQuantity),
		errors.Is(err, market.ErrInsufficientInventory),
		errors.Is(err, payments.ErrInvalidID),
		errors.Is(err, payments.ErrInvalidAmount),
		errors.Is(err, payments.ErrUnsupportedAsset),
		errors.Is(err, payments.ErrInvalidParty),
		errors.Is(err, params.ErrInvalidAsset),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, fees.ErrBpsOutOfRange):
		return codeInvalidParams
	default:
		return codeInternal
	}
}

func errorResponse(err error) *RPCError {
	return &RPCError{Code: codeForError(err), Message: err.Error()}
}

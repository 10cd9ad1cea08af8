package market

import "errors"

var (
	ErrNilState              = errors.New("market: state not configured")
	ErrNotAuthorized         = errors.New("market: unauthorized caller")
	ErrListingNotFound       = errors.New("market: listing not found")
	ErrPurchaseNotFound      = errors.New("market: purchase not found")
	ErrListingExpired        = errors.New("market: listing expired")
	ErrListingInactive       = errors.New("market: listing not active")
	ErrInvalidPrice          = errors.New("market: price must be positive")
	ErrInvalidInventory      = errors.New("market: inventory must be positive")
	ErrInvalidDuration       = errors.New("market: duration must be positive")
	ErrInvalidQuantity       = errors.New("market: quantity must be positive")
	ErrInsufficientInventory = errors.New("market: insufficient inventory")
	ErrPaymentFailed         = errors.New("market: payment transfer rejected")
	ErrRefundFailed          = errors.New("market: refund transfer rejected")
	ErrAlreadyConfirmed      = errors.New("market: purchase already confirmed")
	ErrPurchaseDisputed      = errors.New("market: purchase under dispute")
	ErrAlreadyRefunded       = errors.New("market: purchase already refunded")
	ErrInvalidState          = errors.New("market: status transition not allowed")
)

package payments

import "errors"

var (
	ErrNilState         = errors.New("payments: state not configured")
	ErrNilTreasury      = errors.New("payments: fee treasury not configured")
	ErrNotAuthorized    = errors.New("payments: unauthorized caller")
	ErrNotFound         = errors.New("payments: payment not found")
	ErrInvalidID        = errors.New("payments: payment id required")
	ErrInvalidAmount    = errors.New("payments: amount must be positive")
	ErrAlreadyExists    = errors.New("payments: payment id already exists")
	ErrUnsupportedAsset = errors.New("payments: asset not supported")
	ErrPaymentFailed    = errors.New("payments: deposit transfer rejected")
	ErrRefundFailed     = errors.New("payments: refund transfer rejected")
	ErrInvalidState     = errors.New("payments: status transition not allowed")
	ErrHistoryFull      = errors.New("payments: account history capacity reached")
	ErrInsufficientBal  = errors.New("payments: insufficient balance")
	ErrSelfTransfer     = errors.New("payments: transfer from and to must differ")
	ErrInvalidParty     = errors.New("payments: module vault cannot be a counterparty")
)

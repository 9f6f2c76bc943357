package errors

var (
	ErrHoldNotFound = &DomainError{
		Code:    "HOLD_NOT_FOUND",
		Message: "hold not found",
		Kind:    KindNotFound,
	}
	ErrReceiptNotFound = &DomainError{
		Code:    "RECEIPT_NOT_FOUND",
		Message: "receipt not found",
		Kind:    KindNotFound,
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
		Kind:    KindNotFound,
	}
	ErrMerchantNotFound = &DomainError{
		Code:    "MERCHANT_NOT_FOUND",
		Message: "merchant not found",
		Kind:    KindNotFound,
	}
	ErrHoldNotPending = &DomainError{
		Code:    "HOLD_NOT_PENDING",
		Message: "hold is already finalized",
		Kind:    KindConflict,
	}
	ErrInvalidRequest = &DomainError{
		Code:    "INVALID_REQUEST",
		Message: "invalid request",
		Kind:    KindBadRequest,
	}
	ErrInvalidMode = &DomainError{
		Code:    "INVALID_MODE",
		Message: "mode must be EARN or REDEEM",
		Kind:    KindBadRequest,
	}
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "invalid amount",
		Kind:    KindBadRequest,
	}
	ErrInsufficientPoints = &DomainError{
		Code:    "INSUFFICIENT_POINTS",
		Message: "adjustment would take the balance below zero",
		Kind:    KindBadRequest,
	}
	ErrIdempotencyKeyReused = &DomainError{
		Code:    "IDEMPOTENCY_KEY_REUSED",
		Message: "idempotency key was already used for another operation",
		Kind:    KindConflict,
	}
)

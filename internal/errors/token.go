package errors

var (
	ErrInvalidToken = &DomainError{
		Code:    "INVALID_TOKEN",
		Message: "invalid customer token",
		Kind:    KindBadRequest,
	}
	ErrTokenAudience = &DomainError{
		Code:    "TOKEN_AUDIENCE_MISMATCH",
		Message: "customer token was issued for another merchant",
		Kind:    KindBadRequest,
	}
	// ErrTokenExpired is kept distinct from ErrInvalidToken so callers can
	// prompt the customer to re-issue the QR code.
	ErrTokenExpired = &DomainError{
		Code:    "TOKEN_EXPIRED",
		Message: "customer token has expired",
		Kind:    KindBadRequest,
	}
	ErrTokenAlreadyUsed = &DomainError{
		Code:    "TOKEN_ALREADY_USED",
		Message: "QR code has already been used",
		Kind:    KindTokenAlreadyUsed,
	}
	ErrInvalidAPIKey = &DomainError{
		Code:    "INVALID_API_KEY",
		Message: "invalid API key",
		Kind:    KindUnauthorized,
	}
)

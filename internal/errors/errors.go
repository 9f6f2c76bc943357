// Package errors defines the typed failures the ledger returns to its callers.
// Every failure carries a stable Code the request layer translates into a
// user-facing message, and a Kind that selects the transport status.
package errors

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindConflict         Kind = "conflict"
	KindBadRequest       Kind = "bad_request"
	KindTokenAlreadyUsed Kind = "token_already_used"
	KindUnauthorized     Kind = "unauthorized"
)

// DomainError is a failure with a stable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Kind    Kind   `json:"-"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code so wrapped copies created by WithDetail still satisfy
// errors.Is against the package-level sentinels.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e whose message carries extra context.
func (e *DomainError) WithDetail(format string, args ...interface{}) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: fmt.Sprintf("%s: %s", e.Message, fmt.Sprintf(format, args...)),
		Kind:    e.Kind,
	}
}

// As extracts the DomainError from a wrapped chain.
func As(err error) (*DomainError, bool) {
	var de *DomainError
	if pkgerrors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf reports the Kind of err, or "" when err is not a DomainError.
func KindOf(err error) Kind {
	if de, ok := As(err); ok {
		return de.Kind
	}
	return ""
}

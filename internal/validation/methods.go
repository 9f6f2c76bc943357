// Package validation checks request fields at the boundary, before any
// state is read or written.
package validation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	apperrors "loyalty/internal/errors"
)

// Validator collects field errors.
type Validator struct {
	Errors      map[string]string
	amountError bool
}

// New creates a new validator
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid checks if there are any validation errors
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError adds an error to the validator
func (v *Validator) AddError(field, message string) {
	if _, exists := v.Errors[field]; !exists {
		v.Errors[field] = message
	}
}

// Check adds an error if the condition is false
func (v *Validator) Check(ok bool, field, message string) {
	if !ok {
		v.AddError(field, message)
	}
}

// Required checks that a string is not blank.
func (v *Validator) Required(field, value string) {
	v.Check(strings.TrimSpace(value) != "", field, "must not be empty")
}

// MaxLength checks if a string has at most n characters
func (v *Validator) MaxLength(field string, value string, n int) {
	v.Check(len(value) <= n, field, fmt.Sprintf("must not be more than %d characters long", n))
}

// Amount checks that a monetary amount is finite and not negative.
func (v *Validator) Amount(field string, value float64) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		v.amountError = true
		v.AddError(field, "must be a finite number")
		return
	}
	if value < 0 {
		v.amountError = true
		v.AddError(field, "must not be negative")
	}
}

// Range checks if a number is between min and max
func (v *Validator) Range(field string, value float64, min, max float64) {
	v.Check(value >= min && value <= max, field, fmt.Sprintf("must be between %v and %v", min, max))
}

// Err returns nil when valid, otherwise a BadRequest domain error listing
// every failing field. Amount failures use the INVALID_AMOUNT code.
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	fields := make([]string, 0, len(v.Errors))
	for field := range v.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = field + " " + v.Errors[field]
	}
	base := apperrors.ErrInvalidRequest
	if v.amountError {
		base = apperrors.ErrInvalidAmount
	}
	return base.WithDetail("%s", strings.Join(parts, "; "))
}

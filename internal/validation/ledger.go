package validation

import (
	"strings"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
)

// Field limits follow the column sizes.
const (
	MaxOrderIDLength       = 128
	MaxReceiptNumberLength = 128
	MaxIdempotencyKeyLen   = 128
	MaxAttributionLength   = 64
)

// ParseMode maps the wire value onto the closed Mode enum.
func ParseMode(raw string) (models.Mode, error) {
	switch models.Mode(strings.ToUpper(strings.TrimSpace(raw))) {
	case models.ModeEarn:
		return models.ModeEarn, nil
	case models.ModeRedeem:
		return models.ModeRedeem, nil
	default:
		return "", apperrors.ErrInvalidMode.WithDetail("got %q", raw)
	}
}

// Optional checks the length of an optional attribution field.
func (v *Validator) Optional(field string, value *string, n int) {
	if value != nil {
		v.MaxLength(field, *value, n)
	}
}

// RedeemPercent checks an item level redeem override.
func (v *Validator) RedeemPercent(field string, value *int) {
	if value != nil {
		v.Range(field, float64(*value), 0, 100)
	}
}

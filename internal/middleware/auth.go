// Package middleware provides HTTP middleware for the fiber transport.
package middleware

import (
	"loyalty/internal/models"
	"loyalty/internal/services/auth"
	"loyalty/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

const (
	// APIKeyHeader carries the merchant API key.
	APIKeyHeader = "X-Api-Key"

	merchantLocal = "merchant"
)

// APIKeyMiddleware authenticates merchants by API key and stores the
// merchant in the request locals.
type APIKeyMiddleware struct {
	keys *auth.APIKeyService
}

func NewAPIKeyMiddleware(keys *auth.APIKeyService) *APIKeyMiddleware {
	if keys == nil {
		panic("api key service is required")
	}
	return &APIKeyMiddleware{keys: keys}
}

func (m *APIKeyMiddleware) Handler(c *fiber.Ctx) error {
	key := c.Get(APIKeyHeader)
	if key == "" {
		return utils.Unauthorized(c, "missing API key")
	}

	merchant, err := m.keys.Verify(c.Context(), key)
	if err != nil {
		log.Warn().Err(err).Str("ip", c.IP()).Str("path", c.Path()).Msg("api key rejected")
		return utils.Error(c, err)
	}

	c.Locals(merchantLocal, merchant)
	return c.Next()
}

// Merchant returns the merchant authenticated for this request.
func Merchant(c *fiber.Ctx) (*models.Merchant, bool) {
	merchant, ok := c.Locals(merchantLocal).(*models.Merchant)
	return merchant, ok && merchant != nil
}

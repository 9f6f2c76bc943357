// Package auth resolves customer identities from QR tokens and verifies
// merchant API keys.
package auth

import (
	"strings"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const tokenIssuer = "loyalty"

// maxCustomerIDLength matches the customer_id column size.
const maxCustomerIDLength = 64

// Customer is the identity behind a customer token.
type Customer struct {
	ID string
	// Jti is set when the token was a signed QR token; it is single use.
	Jti       string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
}

// Signed reports whether the identity came from a signed token.
func (c *Customer) Signed() bool {
	return c.Jti != ""
}

// TokenService issues and parses customer QR tokens (HS256 JWTs with
// sub = customer, aud = merchant and a jti nonce).
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if secret == "" {
		panic("token secret is required")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a fresh single-use token for customerID at merchantID.
func (s *TokenService) Issue(merchantID, customerID string) (string, *models.CustomerClaims, error) {
	now := s.now()
	claims := &models.CustomerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   customerID,
			Audience:  jwt.ClaimStrings{merchantID},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		WalletType: models.WalletTypePoints,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "sign customer token")
	}
	return token, claims, nil
}

// Resolve turns a customer token into an identity. A value that is not a
// JWT is taken as a plain customer id. Signed tokens must be addressed to
// merchantID and unexpired.
func (s *TokenService) Resolve(raw, merchantID string) (*Customer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrInvalidToken.WithDetail("customer token is required")
	}
	if strings.Count(raw, ".") != 2 {
		if len(raw) > maxCustomerIDLength {
			return nil, apperrors.ErrInvalidToken.WithDetail("customer id too long")
		}
		return &Customer{ID: raw}, nil
	}
	return s.parse(raw, merchantID)
}

func (s *TokenService) parse(raw, merchantID string) (*Customer, error) {
	claims := &models.CustomerClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken.WithDetail("%v", err)
	}
	if claims.Subject == "" {
		return nil, apperrors.ErrInvalidToken.WithDetail("token has no subject")
	}
	if !audienceContains(claims.Audience, merchantID) {
		return nil, apperrors.ErrTokenAudience
	}

	customer := &Customer{ID: claims.Subject, Jti: claims.ID}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		customer.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		customer.ExpiresAt = &t
	}
	return customer, nil
}

func audienceContains(aud jwt.ClaimStrings, merchantID string) bool {
	for _, a := range aud {
		if a == merchantID {
			return true
		}
	}
	return false
}

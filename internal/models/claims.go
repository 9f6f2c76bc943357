package models

import "github.com/golang-jwt/jwt/v5"

// CustomerClaims is the payload of a customer QR token. Subject is the
// customer id, Audience the single merchant the token may be redeemed at,
// and ID (jti) the single-use nonce.
type CustomerClaims struct {
	jwt.RegisteredClaims
	WalletType string `json:"wallet_type,omitempty"`
}

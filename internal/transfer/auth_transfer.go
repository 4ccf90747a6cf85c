package transfer

import "github.com/golang-jwt/jwt/v5"

// AuthClaims are the claims of the bearer tokens issued by the auth provider.
// The user id is carried in the standard "sub" claim.
type AuthClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

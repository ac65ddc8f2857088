package api

import "crypto/subtle"

// Authentication defines an interface for authentication methods.
type Authentication interface {
	// Authenticate checks if the provided token is valid.
	Authenticate(token string) bool
}

// SecretBasedAuthentication implements the Authentication interface by comparing tokens with a
// shared secret.
type SecretBasedAuthentication struct {
	secret []byte
}

// NewSecretBasedAuthentication creates a new SecretBasedAuthentication instance
// with the given secret token.
func NewSecretBasedAuthentication(secret string) *SecretBasedAuthentication {
	return &SecretBasedAuthentication{secret: []byte(secret)}
}

// Authenticate compares the token in constant time. An empty secret rejects every token.
func (authentication *SecretBasedAuthentication) Authenticate(token string) bool {
	if len(authentication.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare(authentication.secret, []byte(token)) == 1
}

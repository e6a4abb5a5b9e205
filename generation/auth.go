package generation

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Secret hashing configuration
const (
	// DefaultCost is the bcrypt cost used by HashSecret.
	DefaultCost = 12

	// MinCost is the lowest cost accepted by HashSecretWithCost.
	MinCost = bcrypt.MinCost
)

var (
	// ErrEmptySecret is returned when hashing an empty secret.
	ErrEmptySecret = errors.New("generation: secret cannot be empty")

	// ErrInvalidHash is returned for a malformed configured hash.
	ErrInvalidHash = errors.New("generation: invalid secret hash format")
)

// HashSecret creates a bcrypt hash of secret suitable for GENERATION_SECRET_HASH.
func HashSecret(secret string) (string, error) {
	return HashSecretWithCost(secret, DefaultCost)
}

// HashSecretWithCost creates a bcrypt hash with an explicit cost factor.
func HashSecretWithCost(secret string, cost int) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if cost < MinCost || cost > bcrypt.MaxCost {
		return "", bcrypt.InvalidCostError(cost)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticator verifies generation credentials against a configured account.
// The zero value accepts any non-empty credentials.
type Authenticator struct {
	user       string
	secretHash string
}

// NewAuthenticator creates an authenticator for one account.
// An empty user disables verification.
func NewAuthenticator(user, secretHash string) (*Authenticator, error) {
	if user != "" {
		if _, err := bcrypt.Cost([]byte(secretHash)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHash, err)
		}
	}
	return &Authenticator{user: user, secretHash: secretHash}, nil
}

// Enabled reports whether an account is configured.
func (a *Authenticator) Enabled() bool {
	return a != nil && a.user != ""
}

// Verify checks the credentials. Failures wrap ErrAuthorizationFailed and
// never reveal which of user or secret was wrong.
func (a *Authenticator) Verify(user, secret string) error {
	if user == "" || secret == "" {
		return fmt.Errorf("%w: credentials missing", ErrAuthorizationFailed)
	}
	if !a.Enabled() {
		return nil
	}
	if user != a.user {
		return fmt.Errorf("%w: credentials rejected", ErrAuthorizationFailed)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.secretHash), []byte(secret)); err != nil {
		return fmt.Errorf("%w: credentials rejected", ErrAuthorizationFailed)
	}
	return nil
}

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// Identity is the authenticated account. Subject doubles as the ledger scope.
type Identity struct {
	Subject string
	Name    string
}

// Authenticator verifies login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*Identity, error)
}

// CredentialsAuthenticator accepts a single configured account whose
// password is stored as a bcrypt hash.
type CredentialsAuthenticator struct {
	username     string
	displayName  string
	passwordHash []byte
}

func NewCredentialsAuthenticator(username, passwordHash, displayName string) *CredentialsAuthenticator {
	if displayName == "" {
		displayName = username
	}
	return &CredentialsAuthenticator{
		username:     username,
		displayName:  displayName,
		passwordHash: []byte(passwordHash),
	}
}

func (a *CredentialsAuthenticator) Authenticate(_ context.Context, username, password string) (*Identity, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	// The hash is always checked so a wrong username costs as much as a wrong password.
	passErr := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password))
	if !userOK || passErr != nil {
		return nil, ErrInvalidCredentials
	}
	return &Identity{Subject: a.username, Name: a.displayName}, nil
}

// HashPassword returns a bcrypt hash suitable for AUTH_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	if len(password) < 8 {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

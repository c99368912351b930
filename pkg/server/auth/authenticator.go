package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simple-secrets/simple-secrets/pkg/server/datastore"
)

var (
	// ErrInvalidCredentials is returned on login with an unknown user or a
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken is returned when a session token is unknown or
	// expired.
	ErrInvalidToken = errors.New("invalid session token")
)

// Authenticator verifies user passwords and manages session tokens in the
// datastore. User password hashes live at /users/<name>/password; issued
// tokens at /session_tokens/<token> with the configured TTL.
type Authenticator struct {
	DataStore datastore.DataStore
	TokenTTL  time.Duration
}

// Login verifies the user's password and, on success, issues and stores a
// fresh session token.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	encodedHash, err := a.DataStore.Get(ctx, userPasswordKey(username))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	ok, err := VerifyPassword(encodedHash, password)
	if err != nil || !ok {
		return "", ErrInvalidCredentials
	}

	token, err := GenerateToken()
	if err != nil {
		return "", fmt.Errorf("unable to generate session token: %w", err)
	}
	if err := a.DataStore.SetWithTTL(ctx, sessionTokenKey(token), username, a.TokenTTL); err != nil {
		return "", fmt.Errorf("unable to store session token: %w", err)
	}
	return token, nil
}

// ValidateToken resolves a session token to its username.
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (string, error) {
	username, err := a.DataStore.Get(ctx, sessionTokenKey(token))
	if err != nil {
		if errors.Is(err, datastore.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	return username, nil
}

func userPasswordKey(username string) string {
	return fmt.Sprintf("/users/%s/password", username)
}

func sessionTokenKey(token string) string {
	return fmt.Sprintf("/session_tokens/%s", token)
}

package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"finledger/internal/core"
	"finledger/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

// SessionTTL is how long a login session stays valid.
const SessionTTL = 7 * 24 * time.Hour

// AuthService handles registration, login and session resolution.
type AuthService struct {
	store *storage.Store
}

func NewAuthService(store *storage.Store) *AuthService {
	return &AuthService{store: store}
}

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates a user. The password hash covers email+password, and
// names are stored capitalized.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (core.User, error) {
	if in.Email == "" || in.Password == "" || in.FirstName == "" || in.LastName == "" {
		return core.User{}, fmt.Errorf("%w: email, password and names are required", core.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Email+in.Password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u := core.User{
		ID:        core.NewID(),
		Email:     in.Email,
		Password:  string(hash),
		FirstName: capitalize(in.FirstName),
		LastName:  capitalize(in.LastName),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return core.User{}, err
	}
	return u, nil
}

// Login verifies the credentials and mints a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (core.User, string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, "", fmt.Errorf("%w: user does not exist", core.ErrUnauthorized)
	}
	if err != nil {
		return core.User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(email+password)) != nil {
		return core.User{}, "", fmt.Errorf("%w: email/password do not match", core.ErrUnauthorized)
	}

	token, err := newSessionToken()
	if err != nil {
		return core.User{}, "", fmt.Errorf("generate session token: %w", err)
	}
	if err := s.store.CreateSession(ctx, token, u.ID, time.Now().Add(SessionTTL)); err != nil {
		return core.User{}, "", err
	}
	return u, token, nil
}

// Logout invalidates the session token. Unknown tokens are not an
// error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return core.ErrUnauthorized
	}
	return s.store.DeleteSession(ctx, token)
}

// CurrentUser resolves a session token to its user.
func (s *AuthService) CurrentUser(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrUnauthorized
	}
	u, err := s.store.GetUserBySession(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUnauthorized
	}
	return u, err
}

// CleanExpiredSessions drops sessions past their expiry; the server
// runs it periodically.
func (s *AuthService) CleanExpiredSessions(ctx context.Context) error {
	return s.store.CleanExpiredSessions(ctx)
}

func newSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

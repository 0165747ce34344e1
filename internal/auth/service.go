// Package auth implements account registration and cookie-based login
// sessions. Passwords are stored as bcrypt hashes only; sessions live
// server-side and expire after a fixed TTL.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AxelGiff/medicial/internal/models"
	"github.com/AxelGiff/medicial/internal/store"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNoSession          = errors.New("no valid session")
)

// Service owns accounts and login sessions.
type Service struct {
	users      *store.UserStore
	sessions   *store.AuthSessionStore
	sessionTTL time.Duration
}

func NewService(users *store.UserStore, sessions *store.AuthSessionStore, sessionTTL time.Duration) *Service {
	return &Service{users: users, sessions: sessions, sessionTTL: sessionTTL}
}

// Register creates an account. Role defaults to the regular user role;
// only the admin role is accepted as an override.
func (s *Service) Register(req models.RegisterRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := models.RoleUserAccount
	if req.Role == models.RoleAdmin {
		role = models.RoleAdmin
	}

	u := &models.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    time.Now().Unix(),
	}
	if err := s.users.Insert(u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// Login verifies credentials and opens a session. The same error comes
// back for an unknown email and a wrong password.
func (s *Service) Login(req models.LoginRequest) (*models.User, *models.AuthSession, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	now := time.Now()
	sess := &models.AuthSession{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.sessionTTL).Unix(),
	}
	if err := s.sessions.Insert(sess); err != nil {
		return nil, nil, fmt.Errorf("insert session: %w", err)
	}
	return u, sess, nil
}

// Logout closes the session. Unknown session IDs are not an error.
func (s *Service) Logout(sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// UserForSession resolves a session cookie to its account.
func (s *Service) UserForSession(sessionID string) (*models.User, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	sess, err := s.sessions.GetValid(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess == nil {
		return nil, ErrNoSession
	}
	u, err := s.users.GetByID(sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		return nil, ErrNoSession
	}
	return u, nil
}

// SessionTTL exposes the configured session lifetime for cookie expiry.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

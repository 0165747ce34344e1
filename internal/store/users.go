package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/AxelGiff/medicial/internal/models"
)

// UserStore handles account rows on SQLite.
type UserStore struct {
	db *DB
}

func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

// Insert stores a new user. Fails on duplicate email (unique index).
func (s *UserStore) Insert(u *models.User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, prenom, nom, email, password_hash, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.FirstName, u.LastName, u.Email, u.PasswordHash, u.Role, u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetByEmail fetches a user by email, or nil when absent.
func (s *UserStore) GetByEmail(email string) (*models.User, error) {
	return s.scan(s.db.QueryRow(`
		SELECT id, prenom, nom, email, password_hash, role, created_at
		FROM users WHERE email = ?
	`, email))
}

// GetByID fetches a user by id, or nil when absent.
func (s *UserStore) GetByID(id string) (*models.User, error) {
	return s.scan(s.db.QueryRow(`
		SELECT id, prenom, nom, email, password_hash, role, created_at
		FROM users WHERE id = ?
	`, id))
}

func (s *UserStore) scan(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// AuthSessionStore handles server-side login sessions.
type AuthSessionStore struct {
	db *DB
}

func NewAuthSessionStore(db *DB) *AuthSessionStore {
	return &AuthSessionStore{db: db}
}

// Insert stores a new session.
func (s *AuthSessionStore) Insert(sess *models.AuthSession) error {
	_, err := s.db.Exec(`
		INSERT INTO auth_sessions (id, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, sess.ID, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert auth session: %w", err)
	}
	return nil
}

// GetValid fetches an unexpired session by id, or nil.
func (s *AuthSessionStore) GetValid(id string) (*models.AuthSession, error) {
	var sess models.AuthSession
	err := s.db.QueryRow(`
		SELECT id, user_id, created_at, expires_at
		FROM auth_sessions WHERE id = ? AND expires_at > ?
	`, id, time.Now().Unix()).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get auth session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session (logout). Missing sessions are not an error.
func (s *AuthSessionStore) Delete(id string) error {
	if _, err := s.db.Exec("DELETE FROM auth_sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete auth session: %w", err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry.
func (s *AuthSessionStore) PurgeExpired() error {
	if _, err := s.db.Exec("DELETE FROM auth_sessions WHERE expires_at <= ?", time.Now().Unix()); err != nil {
		return fmt.Errorf("purge auth sessions: %w", err)
	}
	return nil
}

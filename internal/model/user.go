package model

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"gowalink/database"
)

// User represents an account that owns linked-device sessions.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     sql.NullString
	Role         string // 'admin' or 'user'
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  sql.NullTime
}

// UserResponse is the JSON shape for user data without sensitive fields.
type UserResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateUserRequest is the request payload for registration.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role,omitempty"`
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FullName:  u.FullName.String,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

// CreateUser inserts a new user.
func CreateUser(user *User) error {
	db := database.AppDB

	query := `
		INSERT INTO users (username, email, password_hash, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	err := db.QueryRow(
		query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.IsActive,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserAlreadyExists
		}
		return err
	}
	return nil
}

// GetUserByUsername retrieves a user by username.
func GetUserByUsername(username string) (*User, error) {
	return getUserBy("username", username)
}

// GetUserByEmail retrieves a user by email.
func GetUserByEmail(email string) (*User, error) {
	return getUserBy("email", email)
}

// GetUserByID retrieves a user by id.
func GetUserByID(id int64) (*User, error) {
	db := database.AppDB
	u := &User{}
	err := db.QueryRow(userSelect+` WHERE id = $1`, id).Scan(userFields(u)...)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

const userSelect = `
	SELECT id, username, email, password_hash, full_name, role, is_active,
		created_at, updated_at, last_login_at
	FROM users`

func userFields(u *User) []interface{} {
	return []interface{}{
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FullName,
		&u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	}
}

func getUserBy(column, value string) (*User, error) {
	db := database.AppDB
	u := &User{}
	err := db.QueryRow(userSelect+` WHERE `+column+` = $1`, value).Scan(userFields(u)...)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// TouchLastLogin updates the user's last login timestamp.
func TouchLastLogin(userID int64) error {
	db := database.AppDB
	_, err := db.Exec(`UPDATE users SET last_login_at = NOW() WHERE id = $1`, userID)
	return err
}

func isUniqueViolation(err error) bool {
	// lib/pq unique_violation is SQLSTATE 23505; the error text carries
	// the constraint name.
	return err != nil && (strings.Contains(err.Error(), "duplicate key value") || strings.Contains(err.Error(), "23505"))
}

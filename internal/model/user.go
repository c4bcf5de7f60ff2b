// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a library account. PasswordHash never leaves the server: it is
// tagged out of JSON and only the credential store reads it.
type User struct {
	ID           int64      `json:"user_id"    db:"user_id"`
	Username     string     `json:"username"   db:"username"`
	Email        string     `json:"email"      db:"email"`
	PasswordHash string     `json:"-"          db:"password_hash"`
	IsAdmin      bool       `json:"is_admin"   db:"is_admin"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"` // nil until the first login
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// UserPatch lists the user fields that may change after registration.
// A nil pointer leaves the column untouched.
type UserPatch struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// Empty reports whether the patch would change nothing.
func (p UserPatch) Empty() bool {
	return p.Username == nil && p.Email == nil && p.PasswordHash == nil
}

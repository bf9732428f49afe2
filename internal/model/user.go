// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account.
//
// Email is the login identifier and is stored lower-cased so uniqueness is
// case-insensitive. PasswordHash holds the bcrypt hash — never the plain
// password — and is excluded from JSON output.
//
// LastVerificationEmailSent is a *time.Time rather than a time.Time because
// "never sent" is a meaningful state: a nil pointer means the resend
// cooldown does not apply yet.
type User struct {
	ID                        int64      `json:"id"         db:"id"`
	Email                     string     `json:"email"      db:"email"`
	PasswordHash              string     `json:"-"          db:"password_hash"`
	FirstName                 string     `json:"firstName"  db:"first_name"`
	LastName                  string     `json:"lastName"   db:"last_name"`
	IsAdmin                   bool       `json:"isAdmin"    db:"is_admin"`
	IsVerified                bool       `json:"isVerified" db:"is_verified"`
	DateJoined                time.Time  `json:"dateJoined" db:"date_joined"`
	LastVerificationEmailSent *time.Time `json:"-"          db:"last_verification_email_sent"`
}

// FullName returns "First Last" for display.
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

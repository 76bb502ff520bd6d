package models

import (
	"regexp"
	"strings"
)

// LoginRequest is the body of the login endpoint
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Profile is the body of the register endpoint
type Profile struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// AuthResponse is returned by both login and register
type AuthResponse struct {
	Token string         `json:"token"`
	User  map[string]any `json:"user,omitempty"`
}

var whitespace = regexp.MustCompile(`\s+`)

// DefaultUsername derives a username when the user did not pick one:
// the first name without whitespace, else the local part of the email.
func DefaultUsername(firstName, email string) string {
	if base := strings.TrimSpace(firstName); base != "" {
		return strings.ToLower(whitespace.ReplaceAllString(base, ""))
	}
	if local, _, _ := strings.Cut(email, "@"); local != "" {
		return local
	}
	return "user"
}

package models

import "time"

// User is the identity root. Credential material and the avatar blob are
// hidden from every JSON representation; the avatar is served through its
// own binary endpoint.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Age           int       `json:"age"`
	PasswordHash  string    `json:"-"`
	SessionTokens []string  `json:"-"`
	Avatar        []byte    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// HasSessionToken reports whether the exact token string is an active session.
func (u User) HasSessionToken(token string) bool {
	for _, t := range u.SessionTokens {
		if t == token {
			return true
		}
	}
	return false
}

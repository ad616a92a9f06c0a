// Package models holds the server-side data model for the account backend.
package models

import "time"

// User is the persisted account record.
//
// Username, Email and FullName are stored lowercase-normalized; username and
// email carry unique indexes in the store. PasswordHash and CurrentRefreshToken
// never appear in JSON output.
//
// CurrentRefreshToken holds the single refresh token currently valid for the
// user: last refresh wins, there is no multi-device token list. This is a
// deliberate scope limitation of the session model, not an oversight.
type User struct {
	ID                  string    `json:"id"`
	Username            string    `json:"username"`
	Email               string    `json:"email"`
	FullName            string    `json:"fullName"`
	AvatarURL           string    `json:"avatarUrl"`
	CoverImageURL       *string   `json:"coverImageUrl,omitempty"`
	PasswordHash        string    `json:"-"`
	CurrentRefreshToken *string   `json:"-"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// Sanitized returns a copy safe to hand to callers: the password hash and the
// stored refresh token are stripped even if a struct ends up serialized by a
// path that ignores the json tags.
func (u *User) Sanitized() *User {
	c := *u
	c.PasswordHash = ""
	c.CurrentRefreshToken = nil
	return &c
}

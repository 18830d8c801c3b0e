package domain

import "time"

// User holds the profile claims served by the UserInfo endpoint and embedded
// in ID tokens. Which fields are released is gated by the granted scopes, not
// by this struct.
type User struct {
	ID            string
	Name          string
	GivenName     string
	FamilyName    string
	Picture       string
	Email         string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

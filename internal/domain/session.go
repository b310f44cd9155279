package domain

import "time"

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Session is the authenticated state of the current user. An empty
// AccessToken means the user is not authenticated.
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresAt is zero when the access token carries no expiry.
	ExpiresAt time.Time
}

func (s Session) IsAuthenticated() bool {
	return s.AccessToken != ""
}

func (s Session) ExpiringWithin(now time.Time, skew time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now.Add(skew))
}

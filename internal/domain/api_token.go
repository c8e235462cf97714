package domain

import "time"

// APIToken is a personal access token for the admin API. Only the sha256 hash
// of the plain token is stored.
type APIToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

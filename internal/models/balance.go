package models

import "time"

// Balance is one user's current credit balance. Rows are created lazily on
// first credit and only ever mutated through the store's atomic increment.
type Balance struct {
	UserID        string    `json:"user_id"`
	Credits       int64     `json:"credits"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

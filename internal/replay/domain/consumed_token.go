package domain

import "time"

// ConsumedToken records that a bootstrap token id has been redeemed. At most one row exists per TokenID.
type ConsumedToken struct {
	TokenID   string
	ExpiresAt time.Time // token expiry plus grace; the row may be purged after this
	CreatedAt time.Time
}

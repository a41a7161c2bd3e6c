package models

import "time"

// InviteTTL is the redemption window of an invite token.
const InviteTTL = 24 * time.Hour

// InviteToken is a single-use grant to join one session. Only the hash of
// the token is stored. Issuing a new invite revokes the session's earlier
// unused ones; revoked tokens are used but never redeemable.
type InviteToken struct {
	ID        string    `bson:"_id"`
	TokenHash string    `bson:"tokenHash"`
	SessionID string    `bson:"session"`
	CreatedBy string    `bson:"createdBy"`
	Used      bool      `bson:"used"`
	Revoked   bool      `bson:"revoked,omitempty"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

func (t *InviteToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IssuedInvite carries the plaintext token back to the host exactly once.
type IssuedInvite struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

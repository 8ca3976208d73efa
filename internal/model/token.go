package model

import "time"

// Token is a bearer credential. The ID itself is what clients present.
// Expires is in milliseconds since the Unix epoch.
type Token struct {
	ID       string `db:"id" json:"id"`
	UserID   string `db:"user_id" json:"user_id"`
	Username string `db:"username" json:"username"`
	Expires  int64  `db:"expires" json:"expires"`
}

// IsExpired reports whether the token is no longer valid at now
func (t *Token) IsExpired(now time.Time) bool {
	return t.Expires <= now.UnixMilli()
}

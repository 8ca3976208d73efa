package model

// User represents a registered account
type User struct {
	ID           string `db:"id" json:"id"`
	Username     string `db:"username" json:"username"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Created      int64  `db:"created" json:"created"`
}

// Author is the public identity embedded into posts
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Author returns the denormalized identity of the user
func (u *User) Author() Author {
	return Author{ID: u.ID, Username: u.Username, Email: u.Email}
}

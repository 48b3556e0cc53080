package models

// User is an authenticated learner. Credentials are issued by the external
// identity provider; only the stable subject and email are kept.
type User struct {
	ID    string
	Email string
	Name  string
}

package users

import "time"

// User is the contact identity of a run owner. The pipeline only reads it.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	EmailOptOut bool      `json:"emailOptOut"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// DisplayName returns the name to greet the user with.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return "there"
}

package domain

import "time"

type UserRole string

const (
	UserRoleAdmin  UserRole = "admin"
	UserRoleStaff  UserRole = "staff"
	UserRolePatron UserRole = "patron"
)

// IsStaff reports whether the role may drive loan transitions.
func (r UserRole) IsStaff() bool {
	return r == UserRoleAdmin || r == UserRoleStaff
}

type User struct {
	ID           int32     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	PatronID     *int32    `json:"patron_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Actor identifies who performs an operation and from where. It is always
// passed explicitly; nothing in the ledger reads an ambient session.
type Actor struct {
	UserID    *int32
	Role      UserRole
	PatronID  *int32 // set when the user is linked to a patron record
	IPAddress string
	UserAgent string
	RequestID string
}

// SystemActor is used by scheduled jobs and maintenance commands.
func SystemActor() Actor {
	return Actor{UserAgent: "system"}
}

func (a Actor) IsStaff() bool {
	return a.UserID != nil && a.Role.IsStaff()
}

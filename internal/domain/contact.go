package domain

import "time"

// Role is the fixed authorization role set stored on every contact.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleUser      Role = "user"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleUser:
		return true
	}
	return false
}

// Contact is the persisted account/address-book entry.
type Contact struct {
	ID                  int64
	FirstName           string
	LastName            string
	Email               string
	Phone               int64
	Birthday            time.Time
	PasswordHash        string
	AvatarURL           string
	RefreshToken        *string
	ResetPasswordToken  *string
	ResetTokenExpiresAt *time.Time
	Role                Role
	Confirmed           bool
	CreatedAt           time.Time
}

package auth

import "time"

// Role is the coarse access level carried inside issued tokens.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole validates a role string. The empty string maps to RoleUser.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case "":
		return RoleUser, nil
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrInvalidInput
	}
}

// Account is a registered user. Username is unique, case-sensitive and
// immutable after creation. PasswordHash is a bcrypt hash with the salt
// embedded; the plaintext is never stored.
type Account struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the identity bound to a request after successful
// authentication. Role is taken from the token, not re-read from the
// store: role changes only take effect once the old token expires or
// is revoked.
type Principal struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

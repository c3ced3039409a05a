package access

import (
	"errors"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("access: actor is not allowed to perform this action")
	ErrUnknownRole    = errors.New("access: unknown role")
	ErrAnonymousActor = errors.New("access: principal required")
)

type Role string

const (
	RoleUser          Role = "user"
	RolePropertyOwner Role = "property_owner"
	RoleAdmin         Role = "admin"
	// RoleSystem is never issued to clients; background jobs use it.
	RoleSystem Role = "system"
)

// ParseRole accepts the roles an authentication layer may issue.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleUser:
		return RoleUser, nil
	case RolePropertyOwner:
		return RolePropertyOwner, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", ErrUnknownRole
	}
}

// Principal is the authenticated caller as supplied by the authentication layer.
type Principal struct {
	UserID string
	Role   Role
}

// System is the principal used by scheduled sweeps.
func System() Principal {
	return Principal{UserID: "system", Role: RoleSystem}
}

// IsZero reports a principal without a user id, which is anonymous.
func (p Principal) IsZero() bool {
	return strings.TrimSpace(p.UserID) == ""
}

// IsAdmin and IsSystem compare the role only.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsSystem() bool {
	return p.Role == RoleSystem
}

// CanBook reports whether the principal may request stays.
func (p Principal) CanBook() bool {
	return p.Role == RoleUser || p.Role == RoleAdmin
}

// Require returns ErrAnonymousActor for an empty principal.
func (p Principal) Require() error {
	if p.IsZero() || p.Role == "" {
		return ErrAnonymousActor
	}
	return nil
}

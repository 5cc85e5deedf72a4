// Package claims turns a stored user into the role set the data layer
// authorizes against.
package claims

import (
	"slices"
	"strconv"

	"go-auth-webhook/internal/model"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// StructuralRoles derives roles from the superuser and staff flags alone.
// Superuser wins over staff.
func StructuralRoles(user model.User) []string {
	switch {
	case user.IsSuperuser:
		return []string{RoleAdmin, RoleUser}
	case user.IsStaff:
		return []string{RoleStaff, RoleUser}
	default:
		return []string{RoleUser}
	}
}

// Resolve builds the claim set for user. requestedRole becomes the default
// role only if the user actually holds it; anything else falls back to
// RoleUser.
func Resolve(user model.User, requestedRole string) model.ClaimSet {
	roles := StructuralRoles(user)
	for _, group := range user.Groups {
		roles = append(roles, group.Name)
	}

	defaultRole := RoleUser
	if requestedRole != "" && slices.Contains(roles, requestedRole) {
		defaultRole = requestedRole
	}

	return model.ClaimSet{
		DefaultRole:  defaultRole,
		AllowedRoles: roles,
		UserID:       strconv.FormatInt(user.ID, 10),
	}
}

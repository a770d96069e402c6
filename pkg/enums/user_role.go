package enums

import "strings"

// UserRole is the role claim carried on access tokens.
type UserRole string

const (
	RoleSuperAdmin     UserRole = "super_admin"
	RoleContentManager UserRole = "content_manager"
	RoleViewer         UserRole = "viewer"
)

var catalogEditors = []UserRole{RoleSuperAdmin, RoleContentManager}

// CanEditCatalog reports whether the role may mutate catalog entries.
func (r UserRole) CanEditCatalog() bool {
	for _, candidate := range catalogEditors {
		if strings.EqualFold(string(candidate), string(r)) {
			return true
		}
	}
	return false
}

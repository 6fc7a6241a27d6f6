// internal/app/system/authz/roles.go
package authz

import "github.com/dalemusser/projecthub/internal/domain/models"

// StaffRoles are the roles allowed on course-wide routes.
var StaffRoles = []string{models.RoleLecturer, models.RoleAdmin}

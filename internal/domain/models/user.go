// internal/domain/models/user.go
package models

// User roles. Students act on their own membership; lecturers and admins
// provision, allocate and repair groups.
const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
	RoleAdmin    = "admin"
)

// User is the signed-in identity carried by the session.
//
// NOTE:
//   - Users are owned by the external identity service; this service only
//     reads the id and role from the session and never persists users.
type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     string `json:"role"` // student | lecturer | admin
}

// IsStaff reports whether the user may run course-wide group operations.
func (u User) IsStaff() bool {
	return u.Role == RoleLecturer || u.Role == RoleAdmin
}

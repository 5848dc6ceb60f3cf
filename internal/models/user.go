package models

// RoleAdmin is the role value granting console access.
const RoleAdmin = "admin"

// User is the identity returned by the remote /entities/User/me endpoint.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// IsAdmin reports whether u may use the admin console.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

package models

type Role string

const (
	RoleDonor     Role = "donante"
	RoleCollector Role = "recolector"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleCollector, RoleAdmin:
		return true
	}
	return false
}

// User is the sender identity carried by a typing event.
type User struct {
	Name  string `json:"nombre,omitempty"`
	Email string `json:"email,omitempty"`
}

func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return "Alguien"
	case u.Name != "":
		return u.Name
	case u.Email != "":
		return u.Email
	default:
		return "Alguien"
	}
}

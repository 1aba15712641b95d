package domain

// Principal is the authenticated identity supplied by the external identity
// provider. Credentials are trusted as given and never re-validated here.
type Principal struct {
	Subject string
	Role    Role
}

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleAuditor  Role = "auditor"
	RoleOperator Role = "operator"
)

func ValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleAuditor, RoleOperator:
		return true
	}
	return false
}

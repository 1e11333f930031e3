package auth

import "strings"

// Role is the single kind of actor a principal acts as.
type Role string

const (
	RoleDonor    Role = "donor"
	RolePatient  Role = "patient"
	RoleHospital Role = "hospital"
	RoleAdmin    Role = "admin"
)

// ParseRole normalises a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleDonor, RolePatient, RoleHospital, RoleAdmin:
		return r, nil
	}
	return "", ErrInvalidRole
}

// Principal is an authenticated actor, resolved once per call and passed to
// the engine as a capability. SubjectID is the donor, patient or hospital id
// the principal acts for; admins may leave it empty.
type Principal struct {
	Role      Role   `json:"role"`
	SubjectID string `json:"subject_id"`
}

func Admin() Principal { return Principal{Role: RoleAdmin} }
func Donor(id string) Principal { return Principal{Role: RoleDonor, SubjectID: id} }
func Patient(id string) Principal { return Principal{Role: RolePatient, SubjectID: id} }
func Hospital(id string) Principal { return Principal{Role: RoleHospital, SubjectID: id} }
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }
func (p Principal) Is(role Role) bool { return p.Role == role }

// Acts reports whether p is the given role acting for subject id.
func (p Principal) Acts(role Role, id string) bool {
	return p.Role == role && p.SubjectID != "" && p.SubjectID == id
}

// Valid reports whether the principal is well formed: a known role and, for
// everything but admin, a subject.
func (p Principal) Valid() bool {
	if _, err := ParseRole(string(p.Role)); err != nil {
		return false
	}
	return p.Role == RoleAdmin || strings.TrimSpace(p.SubjectID) != ""
}

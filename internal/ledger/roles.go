package ledger

// Role is the single role carried by an authenticated principal.  The
// set matches the accounts the rental operation runs with; "utilisateur"
// and "etudiant" are regular requesters, "staff" is non-deciding
// personnel, and manager/admin hold the decision capabilities.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleManager     Role = "manager"
	RoleUtilisateur Role = "utilisateur"
	RoleEtudiant    Role = "etudiant"
	RoleStaff       Role = "staff"
)

// KnownRole reports whether r is one of the five recognised roles.
func KnownRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUtilisateur, RoleEtudiant, RoleStaff:
		return true
	}
	return false
}

// Actor identifies the principal invoking a ledger operation.  Every
// mutating operation takes the actor explicitly; nothing in this
// package consults ambient session state.
type Actor struct {
	Email string // login identity, matched against reservations' requester email
	Role  Role
}

// CanReserve reports whether the role may submit reservation requests.
func (r Role) CanReserve() bool { return KnownRole(r) }

// CanDecide reports whether the role may approve, reject, reset or
// complete reservations and manage the fleet.
func (r Role) CanDecide() bool { return r == RoleManager || r == RoleAdmin }

// CanExport reports whether the role may pull inventory and reservation
// exports.  Students are view-only.
func (r Role) CanExport() bool { return KnownRole(r) && r != RoleEtudiant }

// CanManageStaff reports whether the role may administer user accounts.
func (r Role) CanManageStaff() bool { return r == RoleAdmin }

// owns reports whether the actor is the requesting principal of res.
// Ownership is a logical match on the stored requester email, not a
// managed relation.
func (a Actor) owns(res *Reservation) bool {
	return a.Email != "" && a.Email == res.RequesterEmail
}

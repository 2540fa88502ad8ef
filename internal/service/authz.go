package service

import "github.com/nafis/campus-hub/internal/model"

// Capability is a closed enum of named permissions.
//
// ONE GATE, NOT SCATTERED CHECKS:
// Every protected action in the portal names a capability and asks the gate.
// The alternative — each endpoint hand-rolling its own `role == "admin"` or
// flag check — is how inconsistencies creep in (one endpoint checks the
// role, another checks a stale boolean, a third forgets the anonymous
// case). Here the policy lives in one function and is tested once.
type Capability string

const (
	// CapManageUsers covers role changes, capability grants, and manual
	// coin grants. Admin only.
	CapManageUsers Capability = "manage_users"

	// CapSubmitProject allows uploading a project. Granted per user via the
	// upload_project flag — note that admins do NOT implicitly hold it; the
	// flag is an explicit, individually granted capability.
	CapSubmitProject Capability = "submit_project"

	// CapManageContent covers approving questions and curating submissions.
	// Admin only.
	CapManageContent Capability = "manage_content"
)

// ValidCapability reports whether c names a known capability.
func ValidCapability(c Capability) bool {
	switch c {
	case CapManageUsers, CapSubmitProject, CapManageContent:
		return true
	}
	return false
}

// Decision is the outcome of an authorization check. A deny is a NORMAL
// outcome — the caller renders it as a user-visible message, it is never an
// error and never persisted.
type Decision struct {
	Allow      bool       `json:"allow"`
	Capability Capability `json:"capability"`
}

// Authorize evaluates whether the user may exercise the capability.
//
// PURE FUNCTION, ON PURPOSE:
// The gate works on the User snapshot it is handed — it never re-fetches
// the record and has no side effects. Two consequences:
//
//   - Concurrent authorization checks can never race against a concurrent
//     write to the user record; every check in a request sees the one
//     snapshot the identity resolver took.
//   - It is trivially testable: a table of (user, capability) pairs.
//
// Anonymous (nil user) denies everything. Unknown capabilities deny —
// a typo in a capability name must fail closed, not open.
func Authorize(user *model.User, capability Capability) Decision {
	d := Decision{Capability: capability}

	if user == nil {
		return d
	}

	switch capability {
	case CapManageUsers, CapManageContent:
		d.Allow = user.Role == model.RoleAdmin
	case CapSubmitProject:
		d.Allow = user.UploadProject
	}

	return d
}

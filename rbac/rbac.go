// Package rbac maps a resolved identity to permitted operations. Two
// roles exist: every authenticated user, and an elevated role granted
// by membership in one designated IdP group. The gate is a pure
// function over the user context and a static operation table.
package rbac

import (
	"github.com/jrsteele09/go-oauth-proxy/identity"
	"github.com/jrsteele09/go-oauth-proxy/internal/errors"
)

// Operation names one gated action a tool endpoint can perform.
type Operation string

const (
	OpWhoAmI         Operation = "me.read"
	OpPersonnelRead  Operation = "personnel.read"
	OpIncidentsRead  Operation = "incidents.read"
	OpIncidentReview Operation = "incidents.review"
	OpDispatchDelete Operation = "dispatch.delete"
)

// Role is the access tier an operation requires.
type Role int

const (
	// RoleAuthenticated permits any resolved identity.
	RoleAuthenticated Role = iota
	// RoleElevated additionally requires the designated group.
	RoleElevated
)

var operationRoles = map[Operation]Role{
	OpWhoAmI:         RoleAuthenticated,
	OpPersonnelRead:  RoleAuthenticated,
	OpIncidentsRead:  RoleAuthenticated,
	OpIncidentReview: RoleElevated,
	OpDispatchDelete: RoleElevated,
}

// Gate authorizes operations for resolved users.
type Gate struct {
	elevatedGroupID string
}

// NewGate creates a gate. An empty elevatedGroupID means no user holds
// the elevated role, which is the safe default.
func NewGate(elevatedGroupID string) *Gate {
	return &Gate{elevatedGroupID: elevatedGroupID}
}

// Authorize returns nil when the user may perform the operation and
// errors.ErrForbidden otherwise. Unknown operations are denied.
func (g *Gate) Authorize(user identity.UserContext, op Operation) error {
	role, known := operationRoles[op]
	if !known {
		return errors.Wrapf(errors.ErrForbidden, "unknown operation %q", op)
	}
	if role == RoleElevated && !g.IsElevated(user) {
		return errors.Wrapf(errors.ErrForbidden, "operation %q requires the elevated role", op)
	}
	return nil
}

// IsElevated reports whether the user holds the elevated role.
func (g *Gate) IsElevated(user identity.UserContext) bool {
	return g.elevatedGroupID != "" && user.HasGroup(g.elevatedGroupID)
}

package service

import (
	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

// Capability is a class of action granted to roles by the policy table.
type Capability string

const (
	CapabilityReadCatalog   Capability = "catalog:read"
	CapabilityEnroll        Capability = "course:enroll"
	CapabilityAuthorCourses Capability = "course:author"
	CapabilityReadAudit     Capability = "audit:read"
)

// Policy maps each role to the capabilities it holds.
type Policy map[models.UserRole][]Capability

// DefaultPolicy is the marketplace role table. Admin holds everything a teacher does, on any
// course, plus the audit trail; it does not hold enroll.
var DefaultPolicy = Policy{
	models.RoleStudent: {CapabilityReadCatalog, CapabilityEnroll},
	models.RoleTeacher: {CapabilityReadCatalog, CapabilityAuthorCourses},
	models.RoleAdmin:   {CapabilityReadCatalog, CapabilityAuthorCourses, CapabilityReadAudit},
}

var roleOrder = []models.UserRole{models.RoleStudent, models.RoleTeacher, models.RoleAdmin}

// Roles returns the roles holding the capability, in a stable order.
func (p Policy) Roles(capability Capability) []models.UserRole {
	var roles []models.UserRole
	for _, role := range roleOrder {
		for _, granted := range p[role] {
			if granted == capability {
				roles = append(roles, role)
				break
			}
		}
	}
	return roles
}

// Gate decides whether an identity may perform an operation.
type Gate struct {
	policy Policy
}

// NewGate builds a gate over the policy, falling back to DefaultPolicy.
func NewGate(policy Policy) *Gate {
	if policy == nil {
		policy = DefaultPolicy
	}
	return &Gate{policy: policy}
}

// Authorize passes when the identity's role is in requiredRoles and, if ownerID is given, the
// identity owns the resource or is an admin. Every denial is the same Forbidden error.
func (g *Gate) Authorize(identity models.Identity, requiredRoles []models.UserRole, ownerID ...string) error {
	if !hasRole(identity.Role, requiredRoles) {
		return appErrors.ErrForbidden
	}
	if len(ownerID) > 0 && identity.Role != models.RoleAdmin && identity.ID != ownerID[0] {
		return appErrors.ErrForbidden
	}
	return nil
}

// Require checks a capability from the policy table.
func (g *Gate) Require(identity models.Identity, capability Capability) error {
	return g.Authorize(identity, g.policy.Roles(capability))
}

// RequireOwner checks a capability and ownership of the resource.
func (g *Gate) RequireOwner(identity models.Identity, capability Capability, ownerID string) error {
	return g.Authorize(identity, g.policy.Roles(capability), ownerID)
}

// Can reports whether the role holds the capability.
func (g *Gate) Can(role models.UserRole, capability Capability) bool {
	return hasRole(role, g.policy.Roles(capability))
}

func hasRole(role models.UserRole, roles []models.UserRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

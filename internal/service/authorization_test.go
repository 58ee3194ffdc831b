package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

func TestPolicyRoles(t *testing.T) {
	assert.Equal(t, []models.UserRole{models.RoleStudent}, DefaultPolicy.Roles(CapabilityEnroll))
	assert.Equal(t, []models.UserRole{models.RoleTeacher, models.RoleAdmin}, DefaultPolicy.Roles(CapabilityAuthorCourses))
	assert.Equal(t, []models.UserRole{models.RoleAdmin}, DefaultPolicy.Roles(CapabilityReadAudit))
	assert.Len(t, DefaultPolicy.Roles(CapabilityReadCatalog), 3)
}

func TestGateAuthorize(t *testing.T) {
	gate := NewGate(nil)
	student := models.Identity{ID: "s1", Role: models.RoleStudent}
	teacher := models.Identity{ID: "t1", Role: models.RoleTeacher}
	other := models.Identity{ID: "t2", Role: models.RoleTeacher}
	admin := models.Identity{ID: "a1", Role: models.RoleAdmin}

	tests := []struct {
		name    string
		check   func() error
		allowed bool
	}{
		{"student enrolls", func() error { return gate.Require(student, CapabilityEnroll) }, true},
		{"admin cannot enroll", func() error { return gate.Require(admin, CapabilityEnroll) }, false},
		{"teacher cannot enroll", func() error { return gate.Require(teacher, CapabilityEnroll) }, false},
		{"owner mutates", func() error { return gate.RequireOwner(teacher, CapabilityAuthorCourses, "t1") }, true},
		{"non owner denied", func() error { return gate.RequireOwner(other, CapabilityAuthorCourses, "t1") }, false},
		{"admin overrides ownership", func() error { return gate.RequireOwner(admin, CapabilityAuthorCourses, "t1") }, true},
		{"student cannot author", func() error { return gate.RequireOwner(student, CapabilityAuthorCourses, "s1") }, false},
		{"teacher cannot read audit", func() error { return gate.Require(teacher, CapabilityReadAudit) }, false},
		{"admin reads audit", func() error { return gate.Require(admin, CapabilityReadAudit) }, true},
		{"unknown role", func() error {
			return gate.Require(models.Identity{ID: "x", Role: "guest"}, CapabilityReadCatalog)
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check()
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, appErrors.ErrForbidden)
		})
	}
}

func TestGateDenialsAreIndistinguishable(t *testing.T) {
	gate := NewGate(nil)
	wrongRole := gate.Authorize(models.Identity{ID: "s1", Role: models.RoleStudent}, []models.UserRole{models.RoleTeacher}, "s1")
	notOwner := gate.Authorize(models.Identity{ID: "t2", Role: models.RoleTeacher}, []models.UserRole{models.RoleTeacher}, "t1")
	assert.Equal(t, wrongRole, notOwner)
}

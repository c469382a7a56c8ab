package users

import (
	"strings"
	"time"

	"github.com/dietops/backend/internal/auth"
)

// Roles a profile can hold.
const (
	RoleAdmin   = auth.RoleAdmin
	RoleCoach   = auth.RoleCoach
	RoleAthlete = auth.RoleAthlete
)

// Identity maps a provider-specific login to a canonical user id and role.
type Identity struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	UserID      string    `gorm:"column:user_id;size:190;not null;index"`
	Role        string    `gorm:"column:role;size:20;not null;default:'coach'"`
	Email       string    `gorm:"column:user_email;size:320"`
	DisplayName string    `gorm:"column:user_display_name;size:320"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;autoUpdateTime"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user identities.
func (Identity) TableName() string {
	return "user_identities"
}

// Profile is the resolved caller of a request.
type Profile struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// CanEditPlans reports whether the profile may create and edit plans.
func (p Profile) CanEditPlans() bool {
	return p.Role == RoleAdmin || p.Role == RoleCoach
}

// CanManageCatalog reports whether the profile may change foods and knowledge entries.
func (p Profile) CanManageCatalog() bool {
	return p.Role == RoleAdmin || p.Role == RoleCoach
}

// CanAssignCoaches reports whether the profile may hand clients to another coach.
func (p Profile) CanAssignCoaches() bool {
	return p.Role == RoleAdmin
}

// SeesAllClients reports whether roster reads span every coach.
func (p Profile) SeesAllClients() bool {
	return p.Role == RoleAdmin
}

// roleFromClaims returns the first recognised role.
func roleFromClaims(roles []string) string {
	for _, role := range roles {
		if canonical, ok := auth.CanonicalRole(role); ok {
			return canonical
		}
	}
	return ""
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}

package users

import (
	"fmt"
	"testing"
	"time"

	"github.com/dietops/backend/internal/auth"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:users_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Identity{}); err != nil {
		t.Fatalf("failed to migrate identity schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service, db
}

func TestResolveProfileStripsProviderPrefix(t *testing.T) {
	service, db := newTestService(t)

	claims := auth.SessionClaims{
		UserID:          "google:12345",
		UserEmail:       "user@example.com",
		UserDisplayName: "Example User",
	}
	profile, err := service.ResolveProfile(claims)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if profile.UserID != "12345" {
		t.Fatalf("expected canonical user id without provider prefix, got %q", profile.UserID)
	}
	if profile.Role != RoleCoach {
		t.Fatalf("expected default coach role, got %q", profile.Role)
	}

	// second call should hit cache and not create a duplicate record.
	profile, err = service.ResolveProfile(claims)
	if err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}
	if profile.UserID != "12345" {
		t.Fatalf("expected canonical user id to remain stable, got %q", profile.UserID)
	}
	var count int64
	if err := db.Model(&Identity{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one identity, got %d", count)
	}
}

func TestResolveProfileAppliesRoleClaims(t *testing.T) {
	service, db := newTestService(t)

	athlete, err := service.ResolveProfile(auth.SessionClaims{UserID: "athlete-1", UserRoles: []string{"viewer", "Athlete"}})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if athlete.Role != RoleAthlete || athlete.CanEditPlans() {
		t.Fatalf("expected read-only athlete, got %+v", athlete)
	}

	promoted, err := service.ResolveProfile(auth.SessionClaims{UserID: "athlete-1", UserRoles: []string{"admin"}})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if promoted.Role != RoleAdmin || !promoted.CanManageCatalog() {
		t.Fatalf("expected admin profile, got %+v", promoted)
	}
	var stored Identity
	if err := db.Where("subject = ?", "athlete-1").First(&stored).Error; err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stored.Role != RoleAdmin {
		t.Fatalf("expected stored role to update, got %q", stored.Role)
	}
}

func TestResolveProfileRejectsEmptyClaims(t *testing.T) {
	service, _ := newTestService(t)
	if _, err := service.ResolveProfile(auth.SessionClaims{}); err != ErrInvalidIdentity {
		t.Fatalf("expected ErrInvalidIdentity, got %v", err)
	}
}

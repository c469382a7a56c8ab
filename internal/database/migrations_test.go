package database

import (
	"path/filepath"
	"testing"

	"github.com/dietops/backend/internal/foods"
	"go.uber.org/zap"
)

func TestOpenSQLiteSeedsCommonFoodsOnce(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "migration.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}

	var count int64
	if err := database.Model(&foods.Food{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count foods: %v", err)
	}
	if count != int64(len(commonFoods)) {
		testContext.Fatalf("expected %d seeded foods, got %d", len(commonFoods), count)
	}

	var oil foods.Food
	if err := database.Where("id = ?", "seed-olive-oil").Take(&oil).Error; err != nil {
		testContext.Fatalf("failed to load seeded food: %v", err)
	}
	if oil.Unit != "ml" || oil.ServingSize != 100 {
		testContext.Fatalf("unexpected seeded food %+v", oil)
	}

	if err := database.Where("id = ?", "seed-banana").Delete(&foods.Food{}).Error; err != nil {
		testContext.Fatalf("failed to delete seeded food: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to re-apply migrations: %v", err)
	}
	if err := database.Model(&foods.Food{}).Count(&count).Error; err != nil {
		testContext.Fatalf("failed to count foods: %v", err)
	}
	if count != int64(len(commonFoods))-1 {
		testContext.Fatalf("expected recorded migration to be skipped, got %d foods", count)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedCommonFoods).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

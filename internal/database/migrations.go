package database

import (
	"errors"
	"time"

	"github.com/dietops/backend/internal/foods"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const migrationSeedCommonFoods = "2026-09-01_seed_common_foods"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedCommonFoods, apply: seedCommonFoods},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// commonFoods are per-100g reference values.
var commonFoods = []foods.Food{
	{ID: "seed-chicken-breast", Name: "Chicken breast", Category: "protein", Calories: 165, Protein: 31, Carbs: 0, Fats: 3.6},
	{ID: "seed-white-rice", Name: "White rice, cooked", Category: "carbohydrate", Calories: 130, Protein: 2.7, Carbs: 28, Fats: 0.3},
	{ID: "seed-rolled-oats", Name: "Rolled oats", Category: "carbohydrate", Calories: 389, Protein: 16.9, Carbs: 66.3, Fats: 6.9},
	{ID: "seed-whole-egg", Name: "Whole egg", Category: "protein", Calories: 155, Protein: 13, Carbs: 1.1, Fats: 11},
	{ID: "seed-banana", Name: "Banana", Category: "fruit", Calories: 89, Protein: 1.1, Carbs: 22.8, Fats: 0.3},
	{ID: "seed-broccoli", Name: "Broccoli", Category: "vegetable", Calories: 34, Protein: 2.8, Carbs: 6.6, Fats: 0.4},
	{ID: "seed-olive-oil", Name: "Olive oil", Category: "fat", Calories: 884, Protein: 0, Carbs: 0, Fats: 100, Unit: "ml"},
	{ID: "seed-greek-yogurt", Name: "Greek yogurt, plain", Category: "dairy", Calories: 97, Protein: 9, Carbs: 3.9, Fats: 5},
}

func seedCommonFoods(db *gorm.DB) error {
	createdAt := time.Now().UTC().Unix()
	rows := make([]foods.Food, 0, len(commonFoods))
	for _, food := range commonFoods {
		if food.Unit == "" {
			food.Unit = "g"
		}
		food.ServingSize = 100
		food.CreatedAtSeconds = createdAt
		rows = append(rows, food)
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

package database

import (
	"fmt"

	"github.com/dietops/backend/internal/clients"
	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/knowledge"
	"github.com/dietops/backend/internal/plans"
	"github.com/dietops/backend/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(Models()...); err != nil {
		return nil, err
	}

	if err := applyMigrations(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("path", path))
	}

	return db, nil
}

// Models lists every persistent model of the service.
func Models() []interface{} {
	models := []interface{}{&foods.Food{}, &clients.Client{}}
	models = append(models, plans.Models()...)
	models = append(models, &knowledge.Principle{}, &users.Identity{}, &migrationRecord{})
	return models
}

package foods

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dietops/backend/internal/bulk"
	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSearchLimit bounds search results when the caller does not supply a limit.
const DefaultSearchLimit = 10

const maxSearchLimit = 100

const (
	opServiceNew = "foods.service.new"
	opSearch     = "foods.search"
	opGetMany    = "foods.get_many"
	opCreate     = "foods.create"
	opUpdate     = "foods.update"
	opDeleteMany = "foods.delete_many"
	opCount      = "foods.count"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

// ServiceConfig describes the dependencies of the food catalog.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider identifiers.Provider
	Logger     *zap.Logger
}

// Service reads and maintains the food catalog.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider identifiers.Provider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Search performs a case-insensitive substring match on the food name.
// An empty query returns the first foods by name.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Food, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	statement := s.db.WithContext(ctx).Model(&Food{})
	if trimmed := strings.ToLower(strings.TrimSpace(query)); trimmed != "" {
		statement = statement.Where("LOWER(name) LIKE ?", "%"+trimmed+"%")
	}

	var results []Food
	if err := statement.Order("name ASC").Limit(limit).Find(&results).Error; err != nil {
		s.logError(opSearch, "query_failed", err, zap.String("query", query))
		return nil, serviceerror.New(opSearch, "query_failed", err)
	}
	return results, nil
}

// Get returns a single food by identifier.
func (s *Service) Get(ctx context.Context, foodID string) (Food, error) {
	found, err := s.GetMany(ctx, []string{foodID})
	if err != nil {
		return Food{}, err
	}
	food, ok := found[foodID]
	if !ok {
		return Food{}, ErrFoodNotFound
	}
	return food, nil
}

// GetMany returns the foods found for the identifiers keyed by id; unknown ids are absent.
func (s *Service) GetMany(ctx context.Context, foodIDs []string) (map[string]Food, error) {
	result := make(map[string]Food, len(foodIDs))
	if len(foodIDs) == 0 {
		return result, nil
	}
	var rows []Food
	if err := s.db.WithContext(ctx).Where("id IN ?", foodIDs).Find(&rows).Error; err != nil {
		s.logError(opGetMany, "query_failed", err, zap.Int("food_count", len(foodIDs)))
		return nil, serviceerror.New(opGetMany, "query_failed", err)
	}
	for _, row := range rows {
		result[row.ID] = row
	}
	return result, nil
}

// Create validates and stores a new food.
func (s *Service) Create(ctx context.Context, input FoodInput) (Food, error) {
	normalized, err := input.normalized()
	if err != nil {
		return Food{}, err
	}
	foodID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return Food{}, serviceerror.New(opCreate, "id_generation_failed", err)
	}
	food := Food{
		ID:               foodID,
		Name:             normalized.Name,
		Brand:            normalized.Brand,
		Category:         normalized.Category,
		Calories:         normalized.Calories,
		Protein:          normalized.Protein,
		Carbs:            normalized.Carbs,
		Fats:             normalized.Fats,
		Unit:             normalized.Unit,
		ServingSize:      normalized.ServingSize,
		CreatedAtSeconds: s.clock().UTC().Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&food).Error; err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("food_id", foodID))
		return Food{}, serviceerror.New(opCreate, "insert_failed", err)
	}
	return food, nil
}

// Update applies the provided fields to an existing food.
func (s *Service) Update(ctx context.Context, foodID string, update FoodUpdate) (Food, error) {
	var updated Food
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Food
		err := tx.Where("id = ?", foodID).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFoodNotFound
		}
		if err != nil {
			s.logError(opUpdate, "select_failed", err, zap.String("food_id", foodID))
			return serviceerror.New(opUpdate, "select_failed", err)
		}
		normalized, err := update.applyTo(existing).normalized()
		if err != nil {
			return err
		}
		existing.Name = normalized.Name
		existing.Brand = normalized.Brand
		existing.Category = normalized.Category
		existing.Calories = normalized.Calories
		existing.Protein = normalized.Protein
		existing.Carbs = normalized.Carbs
		existing.Fats = normalized.Fats
		existing.Unit = normalized.Unit
		existing.ServingSize = normalized.ServingSize
		if err := tx.Save(&existing).Error; err != nil {
			s.logError(opUpdate, "save_failed", err, zap.String("food_id", foodID))
			return serviceerror.New(opUpdate, "save_failed", err)
		}
		updated = existing
		return nil
	})
	if txErr != nil {
		return Food{}, txErr
	}
	return updated, nil
}

// DeleteMany removes each food independently and reports per-id outcomes.
func (s *Service) DeleteMany(ctx context.Context, foodIDs []string) bulk.Result {
	result := bulk.NewResult()
	for _, foodID := range foodIDs {
		outcome := s.db.WithContext(ctx).Where("id = ?", foodID).Delete(&Food{})
		if outcome.Error != nil {
			s.logError(opDeleteMany, "delete_failed", outcome.Error, zap.String("food_id", foodID))
			result.Fail(foodID, "delete_failed")
			continue
		}
		if outcome.RowsAffected == 0 {
			result.Fail(foodID, "not_found")
			continue
		}
		result.Succeed(foodID)
	}
	return result
}

// Count returns the size of the catalog.
func (s *Service) Count(ctx context.Context) (int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&Food{}).Count(&total).Error; err != nil {
		s.logError(opCount, "query_failed", err)
		return 0, serviceerror.New(opCount, "query_failed", err)
	}
	return total, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("foods service error", attrs...)
}

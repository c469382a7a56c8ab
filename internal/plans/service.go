package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dietops/backend/internal/bulk"
	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/serviceerror"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opServiceNew  = "plans.service.new"
	opCreatePlan  = "plans.create_plan"
	opListPlans   = "plans.list_plans"
	opLoadPlan    = "plans.load_plan"
	opSavePlan    = "plans.save_plan"
	opUpdatePlan  = "plans.update_plan"
	opDeletePlans = "plans.delete_plans"
	opCountActive = "plans.count_active"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingFoodLookup = errors.New("food lookup is required")
	errMissingOwnerID    = errors.New("owner identifier is required")
	errMissingDayID      = errors.New("day identifier is required")
	noOpLogger           = zap.NewNop()
)

// FoodLookup resolves the foods referenced by stored items.
type FoodLookup interface {
	GetMany(ctx context.Context, foodIDs []string) (map[string]foods.Food, error)
}

// ClientDirectory resolves the roster entry a plan is assigned to.
type ClientDirectory interface {
	ClientName(ctx context.Context, clientID string) (string, bool, error)
}

// ServiceConfig describes the dependencies of the plan repository. Without Clients the
// client id and name of a plan are stored as given.
type ServiceConfig struct {
	Database   *gorm.DB
	Foods      FoodLookup
	Clients    ClientDirectory
	Clock      func() time.Time
	IDProvider identifiers.Provider
	Logger     *zap.Logger
}

// Service persists plans and their day/meal/item trees.
type Service struct {
	db         *gorm.DB
	foods      FoodLookup
	clients    ClientDirectory
	clock      func() time.Time
	idProvider identifiers.Provider
	logger     *zap.Logger
}

// PlanInput carries the fields accepted when creating a plan.
type PlanInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Objective   string `json:"objective"`
	ClientID    string `json:"client_id"`
	ClientName  string `json:"client_name"`
}

// PlanUpdate carries the optional header fields accepted when updating a plan.
type PlanUpdate struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Type        *string `json:"type"`
	Objective   *string `json:"objective"`
	ClientID    *string `json:"client_id"`
	ClientName  *string `json:"client_name"`
	IsActive    *bool   `json:"is_active"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, serviceerror.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, serviceerror.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Foods == nil {
		return nil, serviceerror.New(opServiceNew, "missing_food_lookup", errMissingFoodLookup)
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
		foods:      cfg.Foods,
		clients:    cfg.Clients,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// CreatePlan stores a new plan with one default day per weekday.
func (s *Service) CreatePlan(ctx context.Context, ownerID string, input PlanInput) (Plan, error) {
	if ownerID == "" {
		return Plan{}, serviceerror.New(opCreatePlan, "missing_owner_id", errMissingOwnerID)
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return Plan{}, fmt.Errorf("%w: empty name", ErrInvalidPlan)
	}
	if len(name) > maxPlanName {
		return Plan{}, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidPlan, maxPlanName)
	}
	planType := strings.TrimSpace(input.Type)
	if planType == "" {
		planType = DefaultPlanType
	}

	clientID := strings.TrimSpace(input.ClientID)
	clientName, err := s.resolveClient(ctx, opCreatePlan, clientID, input.ClientName)
	if err != nil {
		return Plan{}, err
	}

	planID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreatePlan, "id_generation_failed", err)
		return Plan{}, serviceerror.New(opCreatePlan, "id_generation_failed", err)
	}
	now := s.clock().UTC().Unix()
	record := PlanRecord{
		ID:               planID,
		OwnerID:          ownerID,
		Name:             name,
		Description:      strings.TrimSpace(input.Description),
		Type:             planType,
		Objective:        strings.TrimSpace(input.Objective),
		ClientID:         clientID,
		ClientName:       clientName,
		IsActive:         true,
		CreatedAtSeconds: now,
		UpdatedAtSeconds: now,
	}
	plan := record.toPlan()
	for weekday, dayName := range WeekdayNames {
		day, err := NewDay(s.idProvider, plan, dayName)
		if err != nil {
			s.logError(opCreatePlan, "id_generation_failed", err, zap.String("plan_id", planID))
			return Plan{}, serviceerror.New(opCreatePlan, "id_generation_failed", err)
		}
		dayOfWeek := weekday
		day.DayOfWeek = &dayOfWeek
		plan.Days = append(plan.Days, day)
	}

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			s.logError(opCreatePlan, "plan_insert_failed", err, zap.String("plan_id", planID))
			return serviceerror.New(opCreatePlan, "plan_insert_failed", err)
		}
		for _, day := range plan.Days {
			dayRecord := dayRecordFrom(planID, day)
			if err := tx.Create(&dayRecord).Error; err != nil {
				s.logError(opCreatePlan, "day_insert_failed", err, zap.String("plan_id", planID))
				return serviceerror.New(opCreatePlan, "day_insert_failed", err)
			}
		}
		return nil
	})
	if txErr != nil {
		return Plan{}, txErr
	}
	return plan, nil
}

// ListPlans returns the owner's plan headers, most recently updated first.
func (s *Service) ListPlans(ctx context.Context, ownerID string) ([]Plan, error) {
	if ownerID == "" {
		return nil, serviceerror.New(opListPlans, "missing_owner_id", errMissingOwnerID)
	}
	var records []PlanRecord
	if err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("updated_at_s DESC").
		Order("id ASC").
		Find(&records).Error; err != nil {
		s.logError(opListPlans, "query_failed", err, zap.String("owner_id", ownerID))
		return nil, serviceerror.New(opListPlans, "query_failed", err)
	}
	result := make([]Plan, 0, len(records))
	for _, record := range records {
		result = append(result, record.toPlan())
	}
	return result, nil
}

// LoadPlan returns the full tree of a plan with days, meals and items sorted by order
// and each item's food attached.
func (s *Service) LoadPlan(ctx context.Context, ownerID, planID string) (Plan, error) {
	db := s.db.WithContext(ctx)
	record, err := s.findPlan(db, opLoadPlan, ownerID, planID)
	if err != nil {
		return Plan{}, err
	}
	plan := record.toPlan()

	var dayRecords []DayRecord
	if err := db.Where("plan_id = ?", planID).Order("sort_order ASC").Find(&dayRecords).Error; err != nil {
		s.logError(opLoadPlan, "days_query_failed", err, zap.String("plan_id", planID))
		return Plan{}, serviceerror.New(opLoadPlan, "days_query_failed", err)
	}
	dayIDs := make([]string, 0, len(dayRecords))
	for _, dayRecord := range dayRecords {
		dayIDs = append(dayIDs, dayRecord.ID)
	}

	var mealRecords []MealRecord
	if len(dayIDs) > 0 {
		if err := db.Where("day_id IN ?", dayIDs).Order("sort_order ASC").Find(&mealRecords).Error; err != nil {
			s.logError(opLoadPlan, "meals_query_failed", err, zap.String("plan_id", planID))
			return Plan{}, serviceerror.New(opLoadPlan, "meals_query_failed", err)
		}
	}
	mealIDs := make([]string, 0, len(mealRecords))
	for _, mealRecord := range mealRecords {
		mealIDs = append(mealIDs, mealRecord.ID)
	}

	var itemRecords []ItemRecord
	if len(mealIDs) > 0 {
		if err := db.Where("meal_id IN ?", mealIDs).Order("sort_order ASC").Find(&itemRecords).Error; err != nil {
			s.logError(opLoadPlan, "items_query_failed", err, zap.String("plan_id", planID))
			return Plan{}, serviceerror.New(opLoadPlan, "items_query_failed", err)
		}
	}
	foodIDs := make([]string, 0, len(itemRecords))
	seenFoods := make(map[string]struct{}, len(itemRecords))
	for _, itemRecord := range itemRecords {
		if _, seen := seenFoods[itemRecord.FoodID]; seen {
			continue
		}
		seenFoods[itemRecord.FoodID] = struct{}{}
		foodIDs = append(foodIDs, itemRecord.FoodID)
	}
	foodsByID, err := s.foods.GetMany(ctx, foodIDs)
	if err != nil {
		s.logError(opLoadPlan, "foods_lookup_failed", err, zap.String("plan_id", planID))
		return Plan{}, serviceerror.New(opLoadPlan, "foods_lookup_failed", err)
	}

	itemsByMeal := make(map[string][]Item, len(mealRecords))
	for _, itemRecord := range itemRecords {
		item := Item{
			ID:       itemRecord.ID,
			MealID:   itemRecord.MealID,
			FoodID:   itemRecord.FoodID,
			Quantity: itemRecord.Quantity,
			Unit:     itemRecord.Unit,
			Order:    itemRecord.SortOrder,
		}
		if food, ok := foodsByID[itemRecord.FoodID]; ok {
			attached := food
			item.Food = &attached
		}
		itemsByMeal[itemRecord.MealID] = append(itemsByMeal[itemRecord.MealID], item)
	}
	mealsByDay := make(map[string][]Meal, len(dayRecords))
	for _, mealRecord := range mealRecords {
		meal := Meal{
			ID:    mealRecord.ID,
			DayID: mealRecord.DayID,
			Name:  mealRecord.Name,
			Time:  mealRecord.Time,
			Order: mealRecord.SortOrder,
			Items: itemsByMeal[mealRecord.ID],
		}
		mealsByDay[mealRecord.DayID] = append(mealsByDay[mealRecord.DayID], meal)
	}
	for _, dayRecord := range dayRecords {
		day := dayRecord.toDay()
		day.Meals = mealsByDay[dayRecord.ID]
		plan.Days = append(plan.Days, day)
	}

	if err := Normalize(&plan, s.idProvider); err != nil {
		s.logError(opLoadPlan, "normalize_failed", err, zap.String("plan_id", planID))
		return Plan{}, serviceerror.New(opLoadPlan, "normalize_failed", err)
	}
	return plan, nil
}

// SavePlan replaces the stored days of a plan with the supplied ones in a single transaction.
// Days are upserted by id, stored days absent from the list are removed, and every day's
// meals and items are replaced while keeping their ids and orders.
func (s *Service) SavePlan(ctx context.Context, ownerID, planID string, days []Day) error {
	for _, day := range days {
		if day.ID == "" {
			return serviceerror.New(opSavePlan, "missing_day_id", errMissingDayID)
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.findPlanForUpdate(tx, opSavePlan, ownerID, planID); err != nil {
			return err
		}

		var storedDays []DayRecord
		if err := tx.Where("plan_id = ?", planID).Find(&storedDays).Error; err != nil {
			s.logError(opSavePlan, "days_query_failed", err, zap.String("plan_id", planID))
			return serviceerror.New(opSavePlan, "days_query_failed", err)
		}
		storedDayIDs := make([]string, 0, len(storedDays))
		for _, storedDay := range storedDays {
			storedDayIDs = append(storedDayIDs, storedDay.ID)
		}
		if err := s.deleteDayContents(tx, opSavePlan, planID, storedDayIDs); err != nil {
			return err
		}

		keep := make(map[string]struct{}, len(days))
		for _, day := range days {
			keep[day.ID] = struct{}{}
		}
		removed := make([]string, 0)
		for _, storedDayID := range storedDayIDs {
			if _, ok := keep[storedDayID]; !ok {
				removed = append(removed, storedDayID)
			}
		}
		if len(removed) > 0 {
			if err := tx.Where("id IN ?", removed).Delete(&DayRecord{}).Error; err != nil {
				s.logError(opSavePlan, "day_delete_failed", err, zap.String("plan_id", planID))
				return serviceerror.New(opSavePlan, "day_delete_failed", err)
			}
		}

		for _, day := range days {
			dayRecord := dayRecordFrom(planID, day)
			if err := tx.Save(&dayRecord).Error; err != nil {
				s.logError(opSavePlan, "day_upsert_failed", err,
					zap.String("plan_id", planID),
					zap.String("day_id", day.ID))
				return serviceerror.New(opSavePlan, "day_upsert_failed", err)
			}
			for _, meal := range day.Meals {
				mealRecord := mealRecordFrom(day.ID, meal)
				if err := tx.Create(&mealRecord).Error; err != nil {
					s.logError(opSavePlan, "meal_insert_failed", err,
						zap.String("plan_id", planID),
						zap.String("meal_id", meal.ID))
					return serviceerror.New(opSavePlan, "meal_insert_failed", err)
				}
				for _, item := range meal.Items {
					itemRecord := itemRecordFrom(meal.ID, item)
					if err := tx.Create(&itemRecord).Error; err != nil {
						s.logError(opSavePlan, "item_insert_failed", err,
							zap.String("plan_id", planID),
							zap.String("item_id", item.ID))
						return serviceerror.New(opSavePlan, "item_insert_failed", err)
					}
				}
			}
		}

		if err := tx.Model(&PlanRecord{}).
			Where("id = ?", planID).
			Update("updated_at_s", s.clock().UTC().Unix()).Error; err != nil {
			s.logError(opSavePlan, "plan_touch_failed", err, zap.String("plan_id", planID))
			return serviceerror.New(opSavePlan, "plan_touch_failed", err)
		}
		return nil
	})
}

// UpdatePlan changes the header fields of a plan.
func (s *Service) UpdatePlan(ctx context.Context, ownerID, planID string, update PlanUpdate) (Plan, error) {
	var clientName string
	if update.ClientID != nil {
		supplied := ""
		if update.ClientName != nil {
			supplied = *update.ClientName
		}
		resolved, err := s.resolveClient(ctx, opUpdatePlan, strings.TrimSpace(*update.ClientID), supplied)
		if err != nil {
			return Plan{}, err
		}
		clientName = resolved
	}

	var updated PlanRecord
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.findPlanForUpdate(tx, opUpdatePlan, ownerID, planID)
		if err != nil {
			return err
		}
		if update.Name != nil {
			name := strings.TrimSpace(*update.Name)
			if name == "" {
				return fmt.Errorf("%w: empty name", ErrInvalidPlan)
			}
			if len(name) > maxPlanName {
				return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidPlan, maxPlanName)
			}
			record.Name = name
		}
		if update.Description != nil {
			record.Description = strings.TrimSpace(*update.Description)
		}
		if update.Type != nil {
			record.Type = strings.TrimSpace(*update.Type)
			if record.Type == "" {
				record.Type = DefaultPlanType
			}
		}
		if update.Objective != nil {
			record.Objective = strings.TrimSpace(*update.Objective)
		}
		if update.ClientID != nil {
			record.ClientID = strings.TrimSpace(*update.ClientID)
			record.ClientName = clientName
		} else if update.ClientName != nil && (s.clients == nil || record.ClientID == "") {
			record.ClientName = strings.TrimSpace(*update.ClientName)
		}
		if update.IsActive != nil {
			record.IsActive = *update.IsActive
		}
		record.UpdatedAtSeconds = s.clock().UTC().Unix()
		if err := tx.Save(&record).Error; err != nil {
			s.logError(opUpdatePlan, "save_failed", err, zap.String("plan_id", planID))
			return serviceerror.New(opUpdatePlan, "save_failed", err)
		}
		updated = record
		return nil
	})
	if txErr != nil {
		return Plan{}, txErr
	}
	return updated.toPlan(), nil
}

// DeletePlans removes each plan with its tree independently and reports per-id outcomes.
func (s *Service) DeletePlans(ctx context.Context, ownerID string, planIDs []string) bulk.Result {
	result := bulk.NewResult()
	for _, planID := range planIDs {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := s.findPlanForUpdate(tx, opDeletePlans, ownerID, planID); err != nil {
				return err
			}
			var dayIDs []string
			if err := tx.Model(&DayRecord{}).Where("plan_id = ?", planID).Pluck("id", &dayIDs).Error; err != nil {
				s.logError(opDeletePlans, "days_query_failed", err, zap.String("plan_id", planID))
				return serviceerror.New(opDeletePlans, "days_query_failed", err)
			}
			if err := s.deleteDayContents(tx, opDeletePlans, planID, dayIDs); err != nil {
				return err
			}
			if err := tx.Where("plan_id = ?", planID).Delete(&DayRecord{}).Error; err != nil {
				s.logError(opDeletePlans, "day_delete_failed", err, zap.String("plan_id", planID))
				return serviceerror.New(opDeletePlans, "day_delete_failed", err)
			}
			if err := tx.Where("id = ?", planID).Delete(&PlanRecord{}).Error; err != nil {
				s.logError(opDeletePlans, "plan_delete_failed", err, zap.String("plan_id", planID))
				return serviceerror.New(opDeletePlans, "plan_delete_failed", err)
			}
			return nil
		})
		switch {
		case err == nil:
			result.Succeed(planID)
		case errors.Is(err, ErrPlanNotFound):
			result.Fail(planID, "not_found")
		default:
			result.Fail(planID, "delete_failed")
		}
	}
	return result
}

// CountActive returns the number of active plans owned by ownerID, or of all owners
// when ownerID is empty.
func (s *Service) CountActive(ctx context.Context, ownerID string) (int64, error) {
	statement := s.db.WithContext(ctx).Model(&PlanRecord{}).Where("is_active = ?", true)
	if ownerID != "" {
		statement = statement.Where("owner_id = ?", ownerID)
	}
	var total int64
	if err := statement.Count(&total).Error; err != nil {
		s.logError(opCountActive, "query_failed", err, zap.String("owner_id", ownerID))
		return 0, serviceerror.New(opCountActive, "query_failed", err)
	}
	return total, nil
}

// resolveClient checks a roster assignment and returns the name to store with the plan.
func (s *Service) resolveClient(ctx context.Context, operation, clientID, suppliedName string) (string, error) {
	suppliedName = strings.TrimSpace(suppliedName)
	if clientID == "" || s.clients == nil {
		return suppliedName, nil
	}
	name, found, err := s.clients.ClientName(ctx, clientID)
	if err != nil {
		s.logError(operation, "client_lookup_failed", err, zap.String("client_id", clientID))
		return "", serviceerror.New(operation, "client_lookup_failed", err)
	}
	if !found {
		return "", fmt.Errorf("%w: unknown client %q", ErrInvalidPlan, clientID)
	}
	return name, nil
}

func (s *Service) deleteDayContents(tx *gorm.DB, operation, planID string, dayIDs []string) error {
	if len(dayIDs) == 0 {
		return nil
	}
	mealIDs := tx.Model(&MealRecord{}).Select("id").Where("day_id IN ?", dayIDs)
	if err := tx.Where("meal_id IN (?)", mealIDs).Delete(&ItemRecord{}).Error; err != nil {
		s.logError(operation, "item_delete_failed", err, zap.String("plan_id", planID))
		return serviceerror.New(operation, "item_delete_failed", err)
	}
	if err := tx.Where("day_id IN ?", dayIDs).Delete(&MealRecord{}).Error; err != nil {
		s.logError(operation, "meal_delete_failed", err, zap.String("plan_id", planID))
		return serviceerror.New(operation, "meal_delete_failed", err)
	}
	return nil
}

func (s *Service) findPlan(db *gorm.DB, operation, ownerID, planID string) (PlanRecord, error) {
	if ownerID == "" {
		return PlanRecord{}, serviceerror.New(operation, "missing_owner_id", errMissingOwnerID)
	}
	var record PlanRecord
	err := db.Where("id = ? AND owner_id = ?", planID, ownerID).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PlanRecord{}, ErrPlanNotFound
	}
	if err != nil {
		s.logError(operation, "plan_select_failed", err, zap.String("plan_id", planID))
		return PlanRecord{}, serviceerror.New(operation, "plan_select_failed", err)
	}
	return record, nil
}

func (s *Service) findPlanForUpdate(tx *gorm.DB, operation, ownerID, planID string) (PlanRecord, error) {
	return s.findPlan(tx.Clauses(clause.Locking{Strength: "UPDATE"}), operation, ownerID, planID)
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
	s.logger.Error("plans service error", attrs...)
}

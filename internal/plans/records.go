package plans

// PlanRecord is the persisted plan header.
type PlanRecord struct {
	ID               string `gorm:"column:id;primaryKey;size:190;not null"`
	OwnerID          string `gorm:"column:owner_id;size:190;not null;index:idx_plans_owner"`
	Name             string `gorm:"column:name;size:200;not null"`
	Description      string `gorm:"column:description;type:text;not null;default:''"`
	Type             string `gorm:"column:type;size:50;not null;default:'nutrition'"`
	Objective        string `gorm:"column:objective;size:100;not null;default:''"`
	ClientID         string `gorm:"column:client_id;size:190;not null;default:''"`
	ClientName       string `gorm:"column:client_name;size:200;not null;default:''"`
	IsActive         bool   `gorm:"column:is_active;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	UpdatedAtSeconds int64  `gorm:"column:updated_at_s;not null"`
}

// TableName provides the explicit table binding for GORM.
func (PlanRecord) TableName() string {
	return "nutritional_plans"
}

// DayRecord is a persisted plan day.
type DayRecord struct {
	ID             string  `gorm:"column:id;primaryKey;size:190;not null"`
	PlanID         string  `gorm:"column:plan_id;size:190;not null;index:idx_plan_days_plan"`
	Name           string  `gorm:"column:name;size:200;not null"`
	DayOfWeek      *int    `gorm:"column:day_of_week"`
	TrainingSlot   string  `gorm:"column:training_slot;size:20;not null;default:''"`
	TargetCalories float64 `gorm:"column:target_calories;not null;default:0"`
	TargetProtein  float64 `gorm:"column:target_protein;not null;default:0"`
	TargetCarbs    float64 `gorm:"column:target_carbs;not null;default:0"`
	TargetFats     float64 `gorm:"column:target_fats;not null;default:0"`
	SortOrder      int     `gorm:"column:sort_order;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (DayRecord) TableName() string {
	return "plan_days"
}

// MealRecord is a persisted meal.
type MealRecord struct {
	ID        string  `gorm:"column:id;primaryKey;size:190;not null"`
	DayID     string  `gorm:"column:day_id;size:190;not null;index:idx_meals_day"`
	Name      string  `gorm:"column:name;size:200;not null"`
	Time      *string `gorm:"column:time;size:20"`
	SortOrder int     `gorm:"column:sort_order;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (MealRecord) TableName() string {
	return "meals"
}

// ItemRecord is a persisted meal item.
type ItemRecord struct {
	ID        string  `gorm:"column:id;primaryKey;size:190;not null"`
	MealID    string  `gorm:"column:meal_id;size:190;not null;index:idx_meal_items_meal"`
	FoodID    string  `gorm:"column:food_id;size:190;not null"`
	Quantity  float64 `gorm:"column:quantity;not null;default:0"`
	Unit      string  `gorm:"column:unit;size:16;not null;default:''"`
	SortOrder int     `gorm:"column:sort_order;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (ItemRecord) TableName() string {
	return "meal_items"
}

// Models lists the records that must be migrated for plan storage.
func Models() []interface{} {
	return []interface{}{&PlanRecord{}, &DayRecord{}, &MealRecord{}, &ItemRecord{}}
}

func (record PlanRecord) toPlan() Plan {
	return Plan{
		ID:               record.ID,
		OwnerID:          record.OwnerID,
		Name:             record.Name,
		Description:      record.Description,
		Type:             record.Type,
		Objective:        record.Objective,
		ClientID:         record.ClientID,
		ClientName:       record.ClientName,
		IsActive:         record.IsActive,
		Days:             []Day{},
		CreatedAtSeconds: record.CreatedAtSeconds,
		UpdatedAtSeconds: record.UpdatedAtSeconds,
	}
}

func (record DayRecord) toDay() Day {
	return Day{
		ID:           record.ID,
		PlanID:       record.PlanID,
		Name:         record.Name,
		DayOfWeek:    record.DayOfWeek,
		TrainingSlot: record.TrainingSlot,
		Targets: Targets{
			Calories: record.TargetCalories,
			Protein:  record.TargetProtein,
			Carbs:    record.TargetCarbs,
			Fats:     record.TargetFats,
		},
		Order: record.SortOrder,
		Meals: []Meal{},
	}
}

func dayRecordFrom(planID string, day Day) DayRecord {
	return DayRecord{
		ID:             day.ID,
		PlanID:         planID,
		Name:           day.Name,
		DayOfWeek:      day.DayOfWeek,
		TrainingSlot:   day.TrainingSlot,
		TargetCalories: day.Targets.Calories,
		TargetProtein:  day.Targets.Protein,
		TargetCarbs:    day.Targets.Carbs,
		TargetFats:     day.Targets.Fats,
		SortOrder:      day.Order,
	}
}

func mealRecordFrom(dayID string, meal Meal) MealRecord {
	return MealRecord{
		ID:        meal.ID,
		DayID:     dayID,
		Name:      meal.Name,
		Time:      meal.Time,
		SortOrder: meal.Order,
	}
}

func itemRecordFrom(mealID string, item Item) ItemRecord {
	foodID := item.FoodID
	if foodID == "" && item.Food != nil {
		foodID = item.Food.ID
	}
	return ItemRecord{
		ID:        item.ID,
		MealID:    mealID,
		FoodID:    foodID,
		Quantity:  item.Quantity,
		Unit:      item.Unit,
		SortOrder: item.Order,
	}
}

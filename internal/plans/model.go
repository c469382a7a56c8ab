package plans

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/identifiers"
)

// Training slots a day can be tagged with.
const (
	TrainingSlotNone      = ""
	TrainingSlotRest      = "rest"
	TrainingSlotMorning   = "morning"
	TrainingSlotAfternoon = "afternoon"
	TrainingSlotNight     = "night"
)

const (
	// DefaultPlanType is assigned to plans created without an explicit type.
	DefaultPlanType = "nutrition"
	maxPlanName     = 200
)

// WeekdayNames are the names given to the default days of a new plan, indexed by day_of_week.
var WeekdayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var (
	// ErrPlanNotFound indicates the plan does not exist for the owner.
	ErrPlanNotFound = errors.New("plans: plan not found")
	// ErrInvalidPlan indicates that plan input failed validation.
	ErrInvalidPlan = errors.New("plans: invalid plan")
	// ErrInvalidTrainingSlot indicates an unknown training slot value.
	ErrInvalidTrainingSlot = errors.New("plans: invalid training slot")
	// ErrInvalidDayOfWeek indicates a day_of_week outside 0..6.
	ErrInvalidDayOfWeek = errors.New("plans: invalid day of week")
)

// Targets are the daily nutrition goals of a day.
type Targets struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// Item is one food portion within a meal.
type Item struct {
	ID       string      `json:"id"`
	MealID   string      `json:"meal_id"`
	FoodID   string      `json:"food_id"`
	Food     *foods.Food `json:"food,omitempty"`
	Quantity float64     `json:"quantity"`
	Unit     string      `json:"unit"`
	Order    int         `json:"order"`
}

// Meal is an ordered list of items within a day.
type Meal struct {
	ID    string  `json:"id"`
	DayID string  `json:"day_id"`
	Name  string  `json:"name"`
	Time  *string `json:"time,omitempty"`
	Order int     `json:"order"`
	Items []Item  `json:"items"`
}

// Day is an ordered list of meals with nutrition targets.
type Day struct {
	ID           string  `json:"id"`
	PlanID       string  `json:"plan_id"`
	Name         string  `json:"name"`
	DayOfWeek    *int    `json:"day_of_week,omitempty"`
	TrainingSlot string  `json:"training_slot"`
	Targets      Targets `json:"targets"`
	Order        int     `json:"order"`
	Meals        []Meal  `json:"meals"`
}

// Plan is the root of the editable tree.
type Plan struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Type             string `json:"type"`
	Objective        string `json:"objective"`
	ClientID         string `json:"client_id,omitempty"`
	ClientName       string `json:"client_name,omitempty"`
	IsActive         bool   `json:"is_active"`
	Days             []Day  `json:"days"`
	CreatedAtSeconds int64  `json:"created_at_s"`
	UpdatedAtSeconds int64  `json:"updated_at_s"`
}

// NewDay builds a day appended after the plan's existing days.
func NewDay(ids identifiers.Provider, plan Plan, name string) (Day, error) {
	dayID, err := ids.NewID()
	if err != nil {
		return Day{}, err
	}
	return Day{
		ID:     dayID,
		PlanID: plan.ID,
		Name:   name,
		Order:  len(plan.Days),
		Meals:  []Meal{},
	}, nil
}

// NewMeal builds a meal appended after the day's existing meals.
func NewMeal(ids identifiers.Provider, day Day, name string) (Meal, error) {
	mealID, err := ids.NewID()
	if err != nil {
		return Meal{}, err
	}
	return Meal{
		ID:    mealID,
		DayID: day.ID,
		Name:  name,
		Order: len(day.Meals),
		Items: []Item{},
	}, nil
}

// NewItem builds an item appended after the meal's existing items.
// An empty unit falls back to the food's unit.
func NewItem(ids identifiers.Provider, meal Meal, food foods.Food, quantity float64, unit string) (Item, error) {
	itemID, err := ids.NewID()
	if err != nil {
		return Item{}, err
	}
	if strings.TrimSpace(unit) == "" {
		unit = food.Unit
	}
	attached := food
	return Item{
		ID:       itemID,
		MealID:   meal.ID,
		FoodID:   food.ID,
		Food:     &attached,
		Quantity: quantity,
		Unit:     unit,
		Order:    len(meal.Items),
	}, nil
}

// ValidateTrainingSlot reports whether the slot is one of the known values.
func ValidateTrainingSlot(slot string) error {
	switch slot {
	case TrainingSlotNone, TrainingSlotRest, TrainingSlotMorning, TrainingSlotAfternoon, TrainingSlotNight:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidTrainingSlot, slot)
	}
}

// ValidateDayOfWeek accepts nil or a value in 0..6.
func ValidateDayOfWeek(value *int) error {
	if value == nil {
		return nil
	}
	if *value < 0 || *value > 6 {
		return fmt.Errorf("%w: %d", ErrInvalidDayOfWeek, *value)
	}
	return nil
}

// CloneDays returns a deep copy of the days. Attached foods are shared.
func CloneDays(days []Day) []Day {
	cloned := make([]Day, len(days))
	for dayIndex, day := range days {
		cloned[dayIndex] = day
		if day.DayOfWeek != nil {
			value := *day.DayOfWeek
			cloned[dayIndex].DayOfWeek = &value
		}
		cloned[dayIndex].Meals = CloneMeals(day.Meals)
	}
	return cloned
}

// CloneMeals returns a deep copy of the meals. Attached foods are shared.
func CloneMeals(meals []Meal) []Meal {
	cloned := make([]Meal, len(meals))
	for mealIndex, meal := range meals {
		cloned[mealIndex] = cloneMeal(meal)
	}
	return cloned
}

func cloneMeal(meal Meal) Meal {
	copied := meal
	if meal.Time != nil {
		value := *meal.Time
		copied.Time = &value
	}
	copied.Items = make([]Item, len(meal.Items))
	copy(copied.Items, meal.Items)
	return copied
}

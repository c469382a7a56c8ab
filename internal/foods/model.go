package foods

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	maxNameLength  = 200
	maxBrandLength = 200
	defaultUnit    = "g"
)

var (
	// ErrInvalidFood indicates that food input failed validation.
	ErrInvalidFood = errors.New("foods: invalid food")
	// ErrFoodNotFound indicates that no food exists for the identifier.
	ErrFoodNotFound = errors.New("foods: food not found")
)

// Food is read-only nutrition reference data, with macros expressed per ServingSize units.
type Food struct {
	ID               string  `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Name             string  `gorm:"column:name;size:200;not null;index:idx_foods_name" json:"name"`
	Brand            string  `gorm:"column:brand;size:200;not null;default:''" json:"brand,omitempty"`
	Category         string  `gorm:"column:category;size:100;not null;default:''" json:"category,omitempty"`
	Calories         float64 `gorm:"column:calories;not null;default:0" json:"calories"`
	Protein          float64 `gorm:"column:protein;not null;default:0" json:"protein"`
	Carbs            float64 `gorm:"column:carbs;not null;default:0" json:"carbs"`
	Fats             float64 `gorm:"column:fats;not null;default:0" json:"fats"`
	Unit             string  `gorm:"column:unit;size:16;not null;default:'g'" json:"unit"`
	ServingSize      float64 `gorm:"column:serving_size;not null;default:100" json:"serving_size"`
	CreatedAtSeconds int64   `gorm:"column:created_at_s;not null" json:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Food) TableName() string {
	return "foods"
}

// FoodInput carries the fields accepted when creating a food.
type FoodInput struct {
	Name        string  `json:"name"`
	Brand       string  `json:"brand"`
	Category    string  `json:"category"`
	Calories    float64 `json:"calories"`
	Protein     float64 `json:"protein"`
	Carbs       float64 `json:"carbs"`
	Fats        float64 `json:"fats"`
	Unit        string  `json:"unit"`
	ServingSize float64 `json:"serving_size"`
}

// FoodUpdate carries the optional fields accepted when updating a food.
type FoodUpdate struct {
	Name        *string  `json:"name"`
	Brand       *string  `json:"brand"`
	Category    *string  `json:"category"`
	Calories    *float64 `json:"calories"`
	Protein     *float64 `json:"protein"`
	Carbs       *float64 `json:"carbs"`
	Fats        *float64 `json:"fats"`
	Unit        *string  `json:"unit"`
	ServingSize *float64 `json:"serving_size"`
}

func (input FoodInput) normalized() (FoodInput, error) {
	result := input
	result.Name = strings.TrimSpace(input.Name)
	result.Brand = strings.TrimSpace(input.Brand)
	result.Category = strings.TrimSpace(input.Category)
	result.Unit = strings.TrimSpace(input.Unit)
	if result.Unit == "" {
		result.Unit = defaultUnit
	}
	if result.Name == "" {
		return FoodInput{}, fmt.Errorf("%w: empty name", ErrInvalidFood)
	}
	if len(result.Name) > maxNameLength {
		return FoodInput{}, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidFood, maxNameLength)
	}
	if len(result.Brand) > maxBrandLength {
		return FoodInput{}, fmt.Errorf("%w: brand exceeds %d characters", ErrInvalidFood, maxBrandLength)
	}
	for label, value := range map[string]float64{
		"calories": result.Calories,
		"protein":  result.Protein,
		"carbs":    result.Carbs,
		"fats":     result.Fats,
	} {
		if math.IsNaN(value) || value < 0 {
			return FoodInput{}, fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidFood, label)
		}
	}
	if math.IsNaN(result.ServingSize) || result.ServingSize <= 0 {
		return FoodInput{}, fmt.Errorf("%w: serving_size must be positive", ErrInvalidFood)
	}
	return result, nil
}

func (update FoodUpdate) applyTo(food Food) FoodInput {
	input := FoodInput{
		Name:        food.Name,
		Brand:       food.Brand,
		Category:    food.Category,
		Calories:    food.Calories,
		Protein:     food.Protein,
		Carbs:       food.Carbs,
		Fats:        food.Fats,
		Unit:        food.Unit,
		ServingSize: food.ServingSize,
	}
	if update.Name != nil {
		input.Name = *update.Name
	}
	if update.Brand != nil {
		input.Brand = *update.Brand
	}
	if update.Category != nil {
		input.Category = *update.Category
	}
	if update.Calories != nil {
		input.Calories = *update.Calories
	}
	if update.Protein != nil {
		input.Protein = *update.Protein
	}
	if update.Carbs != nil {
		input.Carbs = *update.Carbs
	}
	if update.Fats != nil {
		input.Fats = *update.Fats
	}
	if update.Unit != nil {
		input.Unit = *update.Unit
	}
	if update.ServingSize != nil {
		input.ServingSize = *update.ServingSize
	}
	return input
}

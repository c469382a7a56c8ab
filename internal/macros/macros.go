// Package macros derives calories and macronutrients from plan trees. Nothing here is cached.
package macros

import (
	"math"

	"github.com/dietops/backend/internal/plans"
)

// Totals holds the four tracked metrics.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
}

// Add returns the element-wise sum.
func (t Totals) Add(other Totals) Totals {
	return Totals{
		Calories: t.Calories + other.Calories,
		Protein:  t.Protein + other.Protein,
		Carbs:    t.Carbs + other.Carbs,
		Fats:     t.Fats + other.Fats,
	}
}

// ForItem scales the food's per-serving metrics by quantity / serving size.
// Items without a food or with an unusable serving size contribute zero.
func ForItem(item plans.Item) Totals {
	food := item.Food
	if food == nil {
		return Totals{}
	}
	serving := food.ServingSize
	if math.IsNaN(serving) || math.IsInf(serving, 0) || serving <= 0 {
		return Totals{}
	}
	ratio := item.Quantity / serving
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return Totals{}
	}
	return Totals{
		Calories: food.Calories * ratio,
		Protein:  food.Protein * ratio,
		Carbs:    food.Carbs * ratio,
		Fats:     food.Fats * ratio,
	}
}

func ForItems(items []plans.Item) Totals {
	var total Totals
	for _, item := range items {
		total = total.Add(ForItem(item))
	}
	return total
}

func ForMeal(meal plans.Meal) Totals {
	return ForItems(meal.Items)
}

func ForDay(day plans.Day) Totals {
	var total Totals
	for _, meal := range day.Meals {
		total = total.Add(ForMeal(meal))
	}
	return total
}

func ForPlan(days []plans.Day) Totals {
	var total Totals
	for _, day := range days {
		total = total.Add(ForDay(day))
	}
	return total
}

// Progress expresses totals as a percentage of the day's targets.
type Progress struct {
	Totals  Totals        `json:"totals"`
	Targets plans.Targets `json:"targets"`
	Percent Totals        `json:"percent"`
}

// DayProgress compares a day's totals with its targets. A zero target yields 0 percent.
func DayProgress(day plans.Day) Progress {
	totals := ForDay(day)
	return Progress{
		Totals:  totals,
		Targets: day.Targets,
		Percent: Totals{
			Calories: percentOf(totals.Calories, day.Targets.Calories),
			Protein:  percentOf(totals.Protein, day.Targets.Protein),
			Carbs:    percentOf(totals.Carbs, day.Targets.Carbs),
			Fats:     percentOf(totals.Fats, day.Targets.Fats),
		},
	}
}

func percentOf(value, target float64) float64 {
	if target <= 0 || math.IsNaN(target) {
		return 0
	}
	return value / target * 100
}

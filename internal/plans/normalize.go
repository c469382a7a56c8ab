package plans

import (
	"sort"

	"github.com/dietops/backend/internal/identifiers"
)

// Normalize prepares a loaded tree for editing: missing ids are issued, back references
// are filled from the parent, empty units fall back to the food's unit and every list is
// stably sorted by its stored order and renumbered 0..N-1.
func Normalize(plan *Plan, ids identifiers.Provider) error {
	if plan.Days == nil {
		plan.Days = []Day{}
	}
	sort.SliceStable(plan.Days, func(i, j int) bool { return plan.Days[i].Order < plan.Days[j].Order })
	for dayIndex := range plan.Days {
		day := &plan.Days[dayIndex]
		if day.ID == "" {
			dayID, err := ids.NewID()
			if err != nil {
				return err
			}
			day.ID = dayID
		}
		day.PlanID = plan.ID
		day.Order = dayIndex
		if err := normalizeMeals(day, ids); err != nil {
			return err
		}
	}
	return nil
}

func normalizeMeals(day *Day, ids identifiers.Provider) error {
	if day.Meals == nil {
		day.Meals = []Meal{}
	}
	sort.SliceStable(day.Meals, func(i, j int) bool { return day.Meals[i].Order < day.Meals[j].Order })
	for mealIndex := range day.Meals {
		meal := &day.Meals[mealIndex]
		if meal.ID == "" {
			mealID, err := ids.NewID()
			if err != nil {
				return err
			}
			meal.ID = mealID
		}
		meal.DayID = day.ID
		meal.Order = mealIndex
		if meal.Time != nil && *meal.Time == "" {
			meal.Time = nil
		}
		if err := normalizeItems(meal, ids); err != nil {
			return err
		}
	}
	return nil
}

func normalizeItems(meal *Meal, ids identifiers.Provider) error {
	if meal.Items == nil {
		meal.Items = []Item{}
	}
	sort.SliceStable(meal.Items, func(i, j int) bool { return meal.Items[i].Order < meal.Items[j].Order })
	for itemIndex := range meal.Items {
		item := &meal.Items[itemIndex]
		if item.ID == "" {
			itemID, err := ids.NewID()
			if err != nil {
				return err
			}
			item.ID = itemID
		}
		item.MealID = meal.ID
		item.Order = itemIndex
		if item.Food != nil {
			if item.FoodID == "" {
				item.FoodID = item.Food.ID
			}
			if item.Unit == "" {
				item.Unit = item.Food.Unit
			}
		}
	}
	return nil
}

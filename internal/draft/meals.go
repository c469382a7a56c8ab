package draft

import (
	"strings"

	"github.com/dietops/backend/internal/plans"
)

// MealPatch lists the meal fields that can be changed in place.
// An empty Time clears the meal time.
type MealPatch struct {
	Name *string `json:"name"`
	Time *string `json:"time"`
}

// AddMeal appends a meal to the day and selects it.
// It returns an empty id when the day does not exist.
func (s *Store) AddMeal(dayID, name string) (string, error) {
	dayIndex := s.dayIndex(dayID)
	if dayIndex < 0 {
		return "", nil
	}
	meal, err := plans.NewMeal(s.ids, s.days[dayIndex], strings.TrimSpace(name))
	if err != nil {
		return "", err
	}
	s.days[dayIndex].Meals = append(s.days[dayIndex].Meals, meal)
	s.cursor.SelectedMealID = meal.ID
	s.touch()
	return meal.ID, nil
}

// UpdateMeal merges the patch into the meal.
func (s *Store) UpdateMeal(mealID string, patch MealPatch) bool {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return false
	}
	meal := &s.days[dayIndex].Meals[mealIndex]
	if patch.Name != nil {
		meal.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Time != nil {
		if value := strings.TrimSpace(*patch.Time); value != "" {
			meal.Time = &value
		} else {
			meal.Time = nil
		}
	}
	s.touch()
	return true
}

// DeleteMeal removes the meal and renumbers its former siblings.
// The meal cursor is cleared when it pointed at the deleted meal.
func (s *Store) DeleteMeal(mealID string) bool {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return false
	}
	s.days[dayIndex].Meals = removeMealAt(s.days[dayIndex].Meals, mealIndex)
	if s.cursor.SelectedMealID == mealID {
		s.cursor.SelectedMealID = ""
	}
	s.touch()
	return true
}

// ReorderMeals sets each meal's order to its index in orderedIDs, which must be a
// permutation of the day's meal ids. A malformed list leaves the day untouched.
func (s *Store) ReorderMeals(dayID string, orderedIDs []string) (bool, error) {
	dayIndex := s.dayIndex(dayID)
	if dayIndex < 0 {
		return false, nil
	}
	meals := s.days[dayIndex].Meals
	current := make([]string, len(meals))
	for index, meal := range meals {
		current[index] = meal.ID
	}
	positions, err := permutationPositions(current, orderedIDs)
	if err != nil {
		return false, err
	}
	reordered := make([]plans.Meal, len(meals))
	for target, source := range positions {
		reordered[target] = meals[source]
	}
	densifyMeals(reordered)
	s.days[dayIndex].Meals = reordered
	s.touch()
	return true, nil
}

// MoveMealToDay detaches the meal from its day and appends it to the target day.
// Moving a meal onto its own day is a no-op.
func (s *Store) MoveMealToDay(mealID, targetDayID string) bool {
	sourceDayIndex, mealIndex := s.mealIndex(mealID)
	if sourceDayIndex < 0 {
		return false
	}
	targetDayIndex := s.dayIndex(targetDayID)
	if targetDayIndex < 0 || targetDayIndex == sourceDayIndex {
		return false
	}
	meal := s.days[sourceDayIndex].Meals[mealIndex]
	s.days[sourceDayIndex].Meals = removeMealAt(s.days[sourceDayIndex].Meals, mealIndex)
	meal.DayID = targetDayID
	meal.Order = len(s.days[targetDayIndex].Meals)
	s.days[targetDayIndex].Meals = append(s.days[targetDayIndex].Meals, meal)
	s.touch()
	return true
}

// DuplicateMeal appends a copy of the meal to its own day.
func (s *Store) DuplicateMeal(mealID string) (string, error) {
	return s.DuplicateMealToDay(mealID, "")
}

// DuplicateMealToDay appends a copy of the meal to the target day, or to the meal's own
// day when targetDayID is empty. Items get new ids and keep sharing their foods.
func (s *Store) DuplicateMealToDay(mealID, targetDayID string) (string, error) {
	sourceDayIndex, mealIndex := s.mealIndex(mealID)
	if sourceDayIndex < 0 {
		return "", nil
	}
	targetDayIndex := sourceDayIndex
	if targetDayID != "" {
		targetDayIndex = s.dayIndex(targetDayID)
		if targetDayIndex < 0 {
			return "", nil
		}
	}
	source := s.days[sourceDayIndex].Meals[mealIndex]
	target := s.days[targetDayIndex]

	copied, err := plans.NewMeal(s.ids, target, source.Name)
	if err != nil {
		return "", err
	}
	if source.Time != nil {
		value := *source.Time
		copied.Time = &value
	}
	copied.Items = make([]plans.Item, 0, len(source.Items))
	for _, item := range source.Items {
		itemID, err := s.ids.NewID()
		if err != nil {
			return "", err
		}
		duplicate := item
		duplicate.ID = itemID
		duplicate.MealID = copied.ID
		copied.Items = append(copied.Items, duplicate)
	}
	densifyItems(copied.Items)

	s.days[targetDayIndex].Meals = append(s.days[targetDayIndex].Meals, copied)
	s.touch()
	return copied.ID, nil
}

func removeMealAt(meals []plans.Meal, index int) []plans.Meal {
	remaining := make([]plans.Meal, 0, len(meals)-1)
	remaining = append(remaining, meals[:index]...)
	remaining = append(remaining, meals[index+1:]...)
	densifyMeals(remaining)
	return remaining
}

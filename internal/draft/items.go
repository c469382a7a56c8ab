package draft

import (
	"fmt"
	"math"
	"strings"

	"github.com/dietops/backend/internal/foods"
	"github.com/dietops/backend/internal/plans"
)

// ItemPatch lists the item fields that can be changed in place.
type ItemPatch struct {
	Quantity *float64 `json:"quantity"`
	Unit     *string  `json:"unit"`
}

// AddItem appends a portion of food to the meal. An empty unit defaults to the food's unit.
// It returns an empty id when the meal does not exist.
func (s *Store) AddItem(mealID string, food foods.Food, quantity float64, unit string) (string, error) {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return "", nil
	}
	if err := validateQuantity(quantity); err != nil {
		return "", err
	}
	meal := &s.days[dayIndex].Meals[mealIndex]
	item, err := plans.NewItem(s.ids, *meal, food, quantity, strings.TrimSpace(unit))
	if err != nil {
		return "", err
	}
	meal.Items = append(meal.Items, item)
	s.touch()
	return item.ID, nil
}

// UpdateItem merges the patch into the item at index within the meal.
func (s *Store) UpdateItem(mealID string, index int, patch ItemPatch) (bool, error) {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return false, nil
	}
	items := s.days[dayIndex].Meals[mealIndex].Items
	if index < 0 || index >= len(items) {
		return false, nil
	}
	if patch.Quantity != nil {
		if err := validateQuantity(*patch.Quantity); err != nil {
			return false, err
		}
	}
	item := &items[index]
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.Unit != nil {
		unit := strings.TrimSpace(*patch.Unit)
		if unit == "" && item.Food != nil {
			unit = item.Food.Unit
		}
		item.Unit = unit
	}
	s.touch()
	return true, nil
}

// RemoveItem drops the item from the meal and renumbers the remaining items.
func (s *Store) RemoveItem(mealID, itemID string) bool {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return false
	}
	meal := &s.days[dayIndex].Meals[mealIndex]
	for index, item := range meal.Items {
		if item.ID != itemID {
			continue
		}
		remaining := make([]plans.Item, 0, len(meal.Items)-1)
		remaining = append(remaining, meal.Items[:index]...)
		remaining = append(remaining, meal.Items[index+1:]...)
		densifyItems(remaining)
		meal.Items = remaining
		s.touch()
		return true
	}
	return false
}

// ReorderItems sets each item's order to its index in orderedIDs, which must be a
// permutation of the meal's item ids.
func (s *Store) ReorderItems(mealID string, orderedIDs []string) (bool, error) {
	dayIndex, mealIndex := s.mealIndex(mealID)
	if dayIndex < 0 {
		return false, nil
	}
	meal := &s.days[dayIndex].Meals[mealIndex]
	current := make([]string, len(meal.Items))
	for index, item := range meal.Items {
		current[index] = item.ID
	}
	positions, err := permutationPositions(current, orderedIDs)
	if err != nil {
		return false, err
	}
	reordered := make([]plans.Item, len(meal.Items))
	for target, source := range positions {
		reordered[target] = meal.Items[source]
	}
	densifyItems(reordered)
	meal.Items = reordered
	s.touch()
	return true, nil
}

func validateQuantity(quantity float64) error {
	if math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidQuantity, quantity)
	}
	return nil
}

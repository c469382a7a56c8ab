package draft

import (
	"fmt"

	"github.com/dietops/backend/internal/plans"
)

func densifyMeals(meals []plans.Meal) {
	for index := range meals {
		meals[index].Order = index
	}
}

func densifyItems(items []plans.Item) {
	for index := range items {
		items[index].Order = index
	}
}

// permutationPositions maps each position of proposed to the index of the same id in current.
// It fails unless proposed holds every id of current exactly once.
func permutationPositions(current, proposed []string) ([]int, error) {
	if len(current) != len(proposed) {
		return nil, fmt.Errorf("%w: expected %d ids, got %d", ErrInvalidPermutation, len(current), len(proposed))
	}
	indexByID := make(map[string]int, len(current))
	for index, id := range current {
		indexByID[id] = index
	}
	positions := make([]int, len(proposed))
	used := make(map[string]struct{}, len(proposed))
	for position, id := range proposed {
		index, ok := indexByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown id %q", ErrInvalidPermutation, id)
		}
		if _, duplicate := used[id]; duplicate {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidPermutation, id)
		}
		used[id] = struct{}{}
		positions[position] = index
	}
	return positions, nil
}

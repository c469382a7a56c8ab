// Package draft holds the in-memory editing model of a plan: the day/meal/item tree,
// the editor cursors and the dirty flag that tracks unsaved changes.
package draft

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dietops/backend/internal/identifiers"
	"github.com/dietops/backend/internal/plans"
)

var (
	// ErrInvalidPermutation indicates a reorder list that is not an exact permutation of current ids.
	ErrInvalidPermutation = errors.New("draft: invalid permutation")
	// ErrInvalidQuantity indicates a negative or non-numeric item quantity.
	ErrInvalidQuantity = errors.New("draft: invalid quantity")
	// ErrInvalidTarget indicates a negative or non-numeric day target.
	ErrInvalidTarget = errors.New("draft: invalid target")
)

// Cursor is the editor selection state. It never affects the dirty flag.
type Cursor struct {
	SelectedDayID    string `json:"selected_day_id,omitempty"`
	SelectedMealID   string `json:"selected_meal_id,omitempty"`
	MealBuilderOpen  bool   `json:"meal_builder_open"`
	MealBuilderDayID string `json:"meal_builder_day_id,omitempty"`
}

// Snapshot is a detached copy of the store state.
type Snapshot struct {
	PlanID   string      `json:"plan_id"`
	PlanName string      `json:"plan_name"`
	Days     []plans.Day `json:"days"`
	Cursor   Cursor      `json:"cursor"`
	Dirty    bool        `json:"dirty"`
	Revision uint64      `json:"revision"`
}

// Store is the single-writer owner of one plan's day list. It is not safe for concurrent use;
// Session serialises access to it.
type Store struct {
	planID   string
	planName string
	days     []plans.Day
	cursor   Cursor
	dirty    bool
	revision uint64
	ids      identifiers.Provider
}

// NewStore hydrates a clean store from a loaded plan tree.
func NewStore(plan plans.Plan, ids identifiers.Provider) (*Store, error) {
	if ids == nil {
		return nil, errors.New("draft: id provider is required")
	}
	hydrated := plan
	hydrated.Days = plans.CloneDays(plan.Days)
	if err := plans.Normalize(&hydrated, ids); err != nil {
		return nil, fmt.Errorf("draft: hydrate plan %s: %w", plan.ID, err)
	}
	return &Store{
		planID:   hydrated.ID,
		planName: hydrated.Name,
		days:     hydrated.Days,
		ids:      ids,
	}, nil
}

func (s *Store) PlanID() string {
	return s.planID
}

func (s *Store) PlanName() string {
	return s.planName
}

// Dirty reports whether the tree changed since hydration or the last successful flush.
func (s *Store) Dirty() bool {
	return s.dirty
}

// Revision counts applied tree mutations.
func (s *Store) Revision() uint64 {
	return s.revision
}

func (s *Store) Cursor() Cursor {
	return s.cursor
}

// Days returns a deep copy of the day list. Attached foods are shared.
func (s *Store) Days() []plans.Day {
	return plans.CloneDays(s.days)
}

func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		PlanID:   s.planID,
		PlanName: s.planName,
		Days:     s.Days(),
		Cursor:   s.cursor,
		Dirty:    s.dirty,
		Revision: s.revision,
	}
}

// MarkAsClean clears the dirty flag. Call it only after a confirmed flush.
func (s *Store) MarkAsClean() {
	s.dirty = false
}

func (s *Store) touch() {
	s.dirty = true
	s.revision++
}

// DayPatch lists the day fields that can be changed in place.
type DayPatch struct {
	Name         *string       `json:"name"`
	TrainingSlot *string       `json:"training_slot"`
	Targets      *TargetsPatch `json:"targets"`
}

// TargetsPatch lists the target metrics to overwrite.
type TargetsPatch struct {
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fats     *float64 `json:"fats"`
}

// AddDay appends a day. An empty name becomes "Day N".
func (s *Store) AddDay(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Day %d", len(s.days)+1)
	}
	day, err := plans.NewDay(s.ids, plans.Plan{ID: s.planID, Days: s.days}, name)
	if err != nil {
		return "", err
	}
	s.days = append(s.days, day)
	s.touch()
	return day.ID, nil
}

// UpdateDay merges the patch into the day. It reports false when the day does not exist.
func (s *Store) UpdateDay(dayID string, patch DayPatch) (bool, error) {
	dayIndex := s.dayIndex(dayID)
	if dayIndex < 0 {
		return false, nil
	}
	if patch.TrainingSlot != nil {
		if err := plans.ValidateTrainingSlot(*patch.TrainingSlot); err != nil {
			return false, err
		}
	}
	updated := s.days[dayIndex]
	if patch.Name != nil {
		updated.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.TrainingSlot != nil {
		updated.TrainingSlot = *patch.TrainingSlot
	}
	if patch.Targets != nil {
		targets, err := patch.Targets.applyTo(updated.Targets)
		if err != nil {
			return false, err
		}
		updated.Targets = targets
	}
	s.days[dayIndex] = updated
	s.touch()
	return true, nil
}

func (patch TargetsPatch) applyTo(targets plans.Targets) (plans.Targets, error) {
	fields := []struct {
		name  string
		value *float64
		dest  *float64
	}{
		{name: "calories", value: patch.Calories, dest: &targets.Calories},
		{name: "protein", value: patch.Protein, dest: &targets.Protein},
		{name: "carbs", value: patch.Carbs, dest: &targets.Carbs},
		{name: "fats", value: patch.Fats, dest: &targets.Fats},
	}
	for _, field := range fields {
		if field.value == nil {
			continue
		}
		if math.IsNaN(*field.value) || math.IsInf(*field.value, 0) || *field.value < 0 {
			return plans.Targets{}, fmt.Errorf("%w: %s", ErrInvalidTarget, field.name)
		}
		*field.dest = *field.value
	}
	return targets, nil
}

// SelectDay points the day cursor at an existing day, or clears it for an empty id.
func (s *Store) SelectDay(dayID string) bool {
	if dayID != "" && s.dayIndex(dayID) < 0 {
		return false
	}
	s.cursor.SelectedDayID = dayID
	return true
}

// SelectMeal points the meal cursor at an existing meal, or clears it for an empty id.
func (s *Store) SelectMeal(mealID string) bool {
	if mealID != "" {
		if dayIndex, _ := s.mealIndex(mealID); dayIndex < 0 {
			return false
		}
	}
	s.cursor.SelectedMealID = mealID
	return true
}

// EnterMealBuilder opens the meal builder on the day and selects it.
func (s *Store) EnterMealBuilder(dayID string) bool {
	if s.dayIndex(dayID) < 0 {
		return false
	}
	s.cursor.MealBuilderOpen = true
	s.cursor.MealBuilderDayID = dayID
	s.cursor.SelectedDayID = dayID
	return true
}

func (s *Store) ExitMealBuilder() {
	s.cursor.MealBuilderOpen = false
	s.cursor.MealBuilderDayID = ""
}

// AutoEnterMealBuilder opens the builder on the lowest-order day.
func (s *Store) AutoEnterMealBuilder() bool {
	if len(s.days) == 0 {
		return false
	}
	first := s.days[0]
	for _, day := range s.days[1:] {
		if day.Order < first.Order {
			first = day
		}
	}
	return s.EnterMealBuilder(first.ID)
}

func (s *Store) dayIndex(dayID string) int {
	if dayID == "" {
		return -1
	}
	for index := range s.days {
		if s.days[index].ID == dayID {
			return index
		}
	}
	return -1
}

func (s *Store) mealIndex(mealID string) (int, int) {
	if mealID == "" {
		return -1, -1
	}
	for dayIndex := range s.days {
		for mealIndex := range s.days[dayIndex].Meals {
			if s.days[dayIndex].Meals[mealIndex].ID == mealID {
				return dayIndex, mealIndex
			}
		}
	}
	return -1, -1
}

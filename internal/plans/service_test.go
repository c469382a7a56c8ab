package plans

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dietops/backend/internal/foods"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	service *Service
	foods   *foods.Service
	db      *gorm.DB
	ids     *sequenceIDProvider
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:plans_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	models := append([]interface{}{&foods.Food{}}, Models()...)
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	ids := &sequenceIDProvider{prefix: "id"}
	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	foodService, err := foods.NewService(foods.ServiceConfig{Database: db, Clock: clock, IDProvider: &sequenceIDProvider{prefix: "food"}})
	if err != nil {
		t.Fatalf("failed to construct foods service: %v", err)
	}
	service, err := NewService(ServiceConfig{Database: db, Foods: foodService, Clock: clock, IDProvider: ids})
	if err != nil {
		t.Fatalf("failed to construct plans service: %v", err)
	}
	return testEnv{service: service, foods: foodService, db: db, ids: ids}
}

func (env testEnv) mustFood(t *testing.T, input foods.FoodInput) foods.Food {
	t.Helper()
	food, err := env.foods.Create(context.Background(), input)
	if err != nil {
		t.Fatalf("failed to create food: %v", err)
	}
	return food
}

func (env testEnv) mustPlan(t *testing.T, owner, name string) Plan {
	t.Helper()
	plan, err := env.service.CreatePlan(context.Background(), owner, PlanInput{Name: name})
	if err != nil {
		t.Fatalf("failed to create plan: %v", err)
	}
	return plan
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	if _, err := NewService(ServiceConfig{}); err == nil {
		t.Fatalf("expected missing database error")
	}
}

func TestCreatePlanSeedsWeekdays(t *testing.T) {
	env := newTestEnv(t)

	plan := env.mustPlan(t, "coach-1", "  Cut phase ")
	if plan.Name != "Cut phase" || plan.Type != DefaultPlanType || !plan.IsActive {
		t.Fatalf("unexpected plan header %+v", plan)
	}
	if len(plan.Days) != 7 {
		t.Fatalf("expected 7 default days, got %d", len(plan.Days))
	}
	for index, day := range plan.Days {
		if day.Order != index || day.Name != WeekdayNames[index] {
			t.Fatalf("unexpected day %d: %+v", index, day)
		}
		if day.DayOfWeek == nil || *day.DayOfWeek != index {
			t.Fatalf("unexpected day_of_week for day %d", index)
		}
	}

	loaded, err := env.service.LoadPlan(context.Background(), "coach-1", plan.ID)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded.Days) != 7 || loaded.Days[6].Name != "Sunday" {
		t.Fatalf("unexpected loaded days %+v", loaded.Days)
	}

	if _, err := env.service.CreatePlan(context.Background(), "coach-1", PlanInput{Name: " "}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestLoadPlanScopesByOwner(t *testing.T) {
	env := newTestEnv(t)
	plan := env.mustPlan(t, "coach-1", "Bulk")

	if _, err := env.service.LoadPlan(context.Background(), "coach-2", plan.ID); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound for foreign owner, got %v", err)
	}
	listed, err := env.service.ListPlans(context.Background(), "coach-2")
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected no plans for foreign owner, got %d", len(listed))
	}
}

func TestSavePlanRoundTripsTree(t *testing.T) {
	env := newTestEnv(t)
	rice := env.mustFood(t, foods.FoodInput{Name: "Rice", Calories: 130, Carbs: 28, ServingSize: 100})
	chicken := env.mustFood(t, foods.FoodInput{Name: "Chicken", Calories: 165, Protein: 31, ServingSize: 100})
	plan := env.mustPlan(t, "coach-1", "Plan")

	monday := plan.Days[0]
	monday.Targets = Targets{Calories: 2500, Protein: 180}
	monday.TrainingSlot = TrainingSlotMorning
	lunch, err := NewMeal(env.ids, monday, "Lunch")
	if err != nil {
		t.Fatalf("unexpected meal error: %v", err)
	}
	noon := "12:30"
	lunch.Time = &noon
	riceItem, _ := NewItem(env.ids, lunch, rice, 150, "")
	lunch.Items = append(lunch.Items, riceItem)
	chickenItem, _ := NewItem(env.ids, lunch, chicken, 200, "")
	lunch.Items = append(lunch.Items, chickenItem)
	monday.Meals = append(monday.Meals, lunch)

	days := []Day{monday, plan.Days[1]}
	if err := env.service.SavePlan(context.Background(), "coach-1", plan.ID, days); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := env.service.LoadPlan(context.Background(), "coach-1", plan.ID)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if len(loaded.Days) != 2 {
		t.Fatalf("expected removed days to be deleted, got %d days", len(loaded.Days))
	}
	loadedMonday := loaded.Days[0]
	if loadedMonday.Targets.Calories != 2500 || loadedMonday.TrainingSlot != TrainingSlotMorning {
		t.Fatalf("unexpected day fields %+v", loadedMonday)
	}
	if len(loadedMonday.Meals) != 1 || loadedMonday.Meals[0].ID != lunch.ID {
		t.Fatalf("unexpected meals %+v", loadedMonday.Meals)
	}
	loadedLunch := loadedMonday.Meals[0]
	if loadedLunch.Time == nil || *loadedLunch.Time != "12:30" {
		t.Fatalf("expected meal time to persist")
	}
	if len(loadedLunch.Items) != 2 || loadedLunch.Items[0].ID != riceItem.ID || loadedLunch.Items[1].Order != 1 {
		t.Fatalf("unexpected items %+v", loadedLunch.Items)
	}
	if loadedLunch.Items[1].Food == nil || loadedLunch.Items[1].Food.Name != "Chicken" {
		t.Fatalf("expected food attached to loaded item")
	}

	// Moving the meal to Tuesday replaces Monday's meals in the same flush.
	tuesday := loaded.Days[1]
	moved := loadedLunch
	moved.DayID = tuesday.ID
	moved.Order = 0
	tuesday.Meals = []Meal{moved}
	emptied := loadedMonday
	emptied.Meals = []Meal{}
	if err := env.service.SavePlan(context.Background(), "coach-1", plan.ID, []Day{emptied, tuesday}); err != nil {
		t.Fatalf("unexpected second save error: %v", err)
	}
	reloaded, err := env.service.LoadPlan(context.Background(), "coach-1", plan.ID)
	if err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	if len(reloaded.Days[0].Meals) != 0 || len(reloaded.Days[1].Meals) != 1 {
		t.Fatalf("unexpected meal placement after move: %+v", reloaded.Days)
	}
	if len(reloaded.Days[1].Meals[0].Items) != 2 {
		t.Fatalf("expected items to move with meal")
	}
}

func TestSavePlanIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	plan := env.mustPlan(t, "coach-1", "Plan")

	monday := plan.Days[0]
	meal, _ := NewMeal(env.ids, monday, "Breakfast")
	monday.Meals = []Meal{meal}
	if err := env.service.SavePlan(context.Background(), "coach-1", plan.ID, []Day{monday}); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	duplicate := meal
	duplicate.Order = 1
	broken := monday
	broken.Name = "Renamed"
	broken.Meals = []Meal{meal, duplicate}
	if err := env.service.SavePlan(context.Background(), "coach-1", plan.ID, []Day{broken}); err == nil {
		t.Fatalf("expected duplicate meal ids to fail the flush")
	}

	loaded, err := env.service.LoadPlan(context.Background(), "coach-1", plan.ID)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if loaded.Days[0].Name != "Monday" || len(loaded.Days[0].Meals) != 1 {
		t.Fatalf("expected failed flush to leave stored plan untouched, got %+v", loaded.Days[0])
	}
}

func TestSavePlanRejectsUnknownPlan(t *testing.T) {
	env := newTestEnv(t)
	err := env.service.SavePlan(context.Background(), "coach-1", "missing", []Day{{ID: "d"}})
	if !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestUpdatePlanChangesHeader(t *testing.T) {
	env := newTestEnv(t)
	plan := env.mustPlan(t, "coach-1", "Plan")

	name := "Renamed"
	inactive := false
	updated, err := env.service.UpdatePlan(context.Background(), "coach-1", plan.ID, PlanUpdate{Name: &name, IsActive: &inactive})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Name != "Renamed" || updated.IsActive {
		t.Fatalf("unexpected updated plan %+v", updated)
	}

	blank := " "
	if _, err := env.service.UpdatePlan(context.Background(), "coach-1", plan.ID, PlanUpdate{Name: &blank}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan, got %v", err)
	}
}

func TestDeletePlansReportsPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	first := env.mustPlan(t, "coach-1", "First")
	second := env.mustPlan(t, "coach-1", "Second")
	foreign := env.mustPlan(t, "coach-2", "Foreign")

	result := env.service.DeletePlans(context.Background(), "coach-1", []string{first.ID, foreign.ID, second.ID})
	if result.SuccessCount() != 2 || result.FailureCount() != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Failed[0].ID != foreign.ID || result.Failed[0].Reason != "not_found" {
		t.Fatalf("unexpected failure %+v", result.Failed[0])
	}

	var remainingDays int64
	if err := env.db.Model(&DayRecord{}).Count(&remainingDays).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if remainingDays != 7 {
		t.Fatalf("expected only the foreign plan's days to remain, got %d", remainingDays)
	}
}

type stubClientDirectory struct {
	names map[string]string
	err   error
}

func (d stubClientDirectory) ClientName(ctx context.Context, clientID string) (string, bool, error) {
	if d.err != nil {
		return "", false, d.err
	}
	name, ok := d.names[clientID]
	return name, ok, nil
}

func TestPlanClientAssignmentUsesRoster(t *testing.T) {
	env := newTestEnv(t)
	env.service.clients = stubClientDirectory{names: map[string]string{"client-1": "Ana Lima", "client-2": "Bruno"}}
	ctx := context.Background()

	plan, err := env.service.CreatePlan(ctx, "coach-1", PlanInput{Name: "Cut", ClientID: " client-1 ", ClientName: "typo"})
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if plan.ClientID != "client-1" || plan.ClientName != "Ana Lima" {
		t.Fatalf("expected roster name, got %q/%q", plan.ClientID, plan.ClientName)
	}
	if _, err := env.service.CreatePlan(ctx, "coach-1", PlanInput{Name: "Cut", ClientID: "ghost"}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for unknown client, got %v", err)
	}

	reassigned := "client-2"
	updated, err := env.service.UpdatePlan(ctx, "coach-1", plan.ID, PlanUpdate{ClientID: &reassigned})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.ClientID != "client-2" || updated.ClientName != "Bruno" {
		t.Fatalf("expected reassignment to client-2, got %q/%q", updated.ClientID, updated.ClientName)
	}

	rename := "Someone else"
	renamed, err := env.service.UpdatePlan(ctx, "coach-1", plan.ID, PlanUpdate{ClientName: &rename})
	if err != nil || renamed.ClientName != "Bruno" {
		t.Fatalf("expected roster name to win over free text, got %q (%v)", renamed.ClientName, err)
	}

	ghost := "ghost"
	if _, err := env.service.UpdatePlan(ctx, "coach-1", plan.ID, PlanUpdate{ClientID: &ghost}); !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected ErrInvalidPlan for unknown client, got %v", err)
	}
	loaded, _ := env.service.LoadPlan(ctx, "coach-1", plan.ID)
	if loaded.ClientID != "client-2" {
		t.Fatalf("expected rejected update to leave client untouched, got %q", loaded.ClientID)
	}

	unassigned := ""
	cleared, err := env.service.UpdatePlan(ctx, "coach-1", plan.ID, PlanUpdate{ClientID: &unassigned})
	if err != nil || cleared.ClientID != "" || cleared.ClientName != "" {
		t.Fatalf("expected client to be cleared, got %+v (%v)", cleared, err)
	}

	env.service.clients = stubClientDirectory{err: errors.New("roster offline")}
	if _, err := env.service.CreatePlan(ctx, "coach-1", PlanInput{Name: "Cut", ClientID: "client-1"}); err == nil || errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("expected lookup failure to surface as a service error, got %v", err)
	}
}

func TestCountActivePlans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := env.mustPlan(t, "coach-1", "Cut")
	env.mustPlan(t, "coach-1", "Bulk")
	env.mustPlan(t, "coach-2", "Maintain")

	inactive := false
	if _, err := env.service.UpdatePlan(ctx, "coach-1", first.ID, PlanUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}

	testCases := []struct {
		name     string
		ownerID  string
		expected int64
	}{
		{name: "all owners", ownerID: "", expected: 2},
		{name: "coach-1", ownerID: "coach-1", expected: 1},
		{name: "coach-2", ownerID: "coach-2", expected: 1},
		{name: "nobody", ownerID: "coach-3", expected: 0},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			total, err := env.service.CountActive(ctx, testCase.ownerID)
			if err != nil {
				t.Fatalf("unexpected count error: %v", err)
			}
			if total != testCase.expected {
				t.Fatalf("expected %d active plans, got %d", testCase.expected, total)
			}
		})
	}
}

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDProvider struct {
	next int
}

func (p *sequenceIDProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("principle-%d", p.next), nil
}

type steppingClock struct {
	current int64
}

func (c *steppingClock) Now() time.Time {
	c.current++
	return time.Unix(c.current, 0).UTC()
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:knowledge_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Principle{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	clock := &steppingClock{current: 1700000000}
	service, err := NewService(ServiceConfig{Database: db, Clock: clock.Now, IDProvider: &sequenceIDProvider{}})
	if err != nil {
		t.Fatalf("failed to construct knowledge service: %v", err)
	}
	return service
}

func TestListOrdersByObjectiveCategoryAndCreation(t *testing.T) {
	service := newTestService(t)
	inputs := []PrincipleInput{
		{Title: "Progressive overload", Content: "Add load.", Category: "Training", Objective: "Hypertrophy"},
		{Title: "Deficit size", Content: "Keep it moderate.", Category: "Nutrition", Objective: "Fat loss"},
		{Title: "Protein floor", Content: "1.6 g/kg.", Category: "Nutrition", Objective: "Hypertrophy"},
		{Title: "Volume landmarks", Content: "MEV to MRV.", Category: "Training", Objective: "Hypertrophy"},
	}
	for _, input := range inputs {
		if _, err := service.Add(context.Background(), input); err != nil {
			t.Fatalf("unexpected add error: %v", err)
		}
	}

	principles, err := service.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	titles := make([]string, 0, len(principles))
	for _, principle := range principles {
		titles = append(titles, principle.Title)
	}
	expected := "Deficit size|Protein floor|Progressive overload|Volume landmarks"
	if strings.Join(titles, "|") != expected {
		t.Fatalf("unexpected order %v", titles)
	}

	filtered, err := service.List(context.Background(), Filter{Objective: "HYPERTROPHY", Category: "training"})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(filtered) != 2 || filtered[0].Title != "Progressive overload" {
		t.Fatalf("unexpected filtered principles %+v", filtered)
	}
}

func TestAddNormalizesAndValidates(t *testing.T) {
	service := newTestService(t)

	principle, err := service.Add(context.Background(), PrincipleInput{
		Title:          " Sleep ",
		Content:        "Aim for *eight* hours.",
		Tags:           []string{"recovery", " recovery ", ""},
		ContextFactors: []string{"shift work"},
	})
	if err != nil {
		t.Fatalf("unexpected add error: %v", err)
	}
	if principle.Title != "Sleep" || principle.Category != "general" {
		t.Fatalf("unexpected principle %+v", principle)
	}
	if len(principle.Tags) != 1 || principle.Tags[0] != "recovery" {
		t.Fatalf("expected deduplicated tags, got %v", principle.Tags)
	}

	listed, err := service.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(listed[0].ContextFactors) != 1 || listed[0].ContextFactors[0] != "shift work" {
		t.Fatalf("expected context factors to round-trip, got %v", listed[0].ContextFactors)
	}

	if _, err := service.Add(context.Background(), PrincipleInput{Title: "Empty"}); !errors.Is(err, ErrInvalidPrinciple) {
		t.Fatalf("expected ErrInvalidPrinciple, got %v", err)
	}
}

func TestRenderAndGroup(t *testing.T) {
	rendered, err := Render(Principle{Objective: "strength", Content: "**Heavy** triples\nweekly", DecisionFramework: "- rpe 8"})
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if !strings.Contains(rendered.ContentHTML, "<strong>Heavy</strong>") {
		t.Fatalf("expected bold markup, got %q", rendered.ContentHTML)
	}
	if !strings.Contains(rendered.ContentHTML, "<br") {
		t.Fatalf("expected hard wraps, got %q", rendered.ContentHTML)
	}
	if !strings.Contains(rendered.DecisionFrameworkHTML, "<li>rpe 8</li>") {
		t.Fatalf("expected list markup, got %q", rendered.DecisionFrameworkHTML)
	}

	unsafe, err := RenderHTML("<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	if strings.Contains(unsafe, "<script>") {
		t.Fatalf("expected raw html to be omitted, got %q", unsafe)
	}

	groups := GroupByObjective([]RenderedPrinciple{
		{Principle: Principle{ID: "a", Objective: "fat loss"}},
		{Principle: Principle{ID: "b", Objective: "fat loss"}},
		{Principle: Principle{ID: "c", Objective: "strength"}},
	})
	if len(groups) != 2 || len(groups[0].Principles) != 2 || groups[1].Objective != "strength" {
		t.Fatalf("unexpected groups %+v", groups)
	}
}

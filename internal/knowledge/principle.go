package knowledge

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

const (
	maxTitleLength    = 200
	maxCategoryLength = 100
	uncategorized     = "general"
)

var (
	// ErrInvalidPrinciple indicates that principle input failed validation.
	ErrInvalidPrinciple = errors.New("knowledge: invalid principle")
)

// markdown renders principle content; raw HTML in the source is omitted.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Principle is a training or nutrition guideline coaches consult while building plans.
type Principle struct {
	ID                string   `gorm:"column:id;primaryKey;size:190;not null" json:"id"`
	Title             string   `gorm:"column:title;size:200;not null" json:"title"`
	Content           string   `gorm:"column:content;type:text;not null" json:"content"`
	Category          string   `gorm:"column:category;size:100;not null;index:idx_principles_order,priority:2" json:"category"`
	Objective         string   `gorm:"column:objective;size:100;not null;default:'';index:idx_principles_order,priority:1" json:"objective"`
	Author            string   `gorm:"column:author;size:200;not null;default:''" json:"author,omitempty"`
	DecisionFramework string   `gorm:"column:decision_framework;type:text;not null;default:''" json:"decision_framework,omitempty"`
	ContextFactors    []string `gorm:"column:context_factors;serializer:json" json:"context_factors"`
	Tags              []string `gorm:"column:tags;serializer:json" json:"tags"`
	CreatedAtSeconds  int64    `gorm:"column:created_at_s;not null;index:idx_principles_order,priority:3" json:"created_at_s"`
}

// TableName provides the explicit table binding for GORM.
func (Principle) TableName() string {
	return "training_principles"
}

// PrincipleInput carries the fields accepted when adding a principle.
type PrincipleInput struct {
	Title             string   `json:"title"`
	Content           string   `json:"content"`
	Category          string   `json:"category"`
	Objective         string   `json:"objective"`
	Author            string   `json:"author"`
	DecisionFramework string   `json:"decision_framework"`
	ContextFactors    []string `json:"context_factors"`
	Tags              []string `json:"tags"`
}

func (input PrincipleInput) normalized() (PrincipleInput, error) {
	result := PrincipleInput{
		Title:             strings.TrimSpace(input.Title),
		Content:           strings.TrimSpace(input.Content),
		Category:          strings.ToLower(strings.TrimSpace(input.Category)),
		Objective:         strings.ToLower(strings.TrimSpace(input.Objective)),
		Author:            strings.TrimSpace(input.Author),
		DecisionFramework: strings.TrimSpace(input.DecisionFramework),
		ContextFactors:    normalizeList(input.ContextFactors),
		Tags:              normalizeList(input.Tags),
	}
	if result.Title == "" {
		return PrincipleInput{}, fmt.Errorf("%w: empty title", ErrInvalidPrinciple)
	}
	if len(result.Title) > maxTitleLength {
		return PrincipleInput{}, fmt.Errorf("%w: title exceeds %d characters", ErrInvalidPrinciple, maxTitleLength)
	}
	if result.Content == "" {
		return PrincipleInput{}, fmt.Errorf("%w: empty content", ErrInvalidPrinciple)
	}
	if result.Category == "" {
		result.Category = uncategorized
	}
	if len(result.Category) > maxCategoryLength {
		return PrincipleInput{}, fmt.Errorf("%w: category exceeds %d characters", ErrInvalidPrinciple, maxCategoryLength)
	}
	return result, nil
}

func normalizeList(values []string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

// RenderHTML converts markdown content to HTML.
func RenderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("knowledge: render markdown: %w", err)
	}
	return buf.String(), nil
}

// RenderedPrinciple pairs a principle with its HTML rendering.
type RenderedPrinciple struct {
	Principle
	ContentHTML           string `json:"content_html"`
	DecisionFrameworkHTML string `json:"decision_framework_html,omitempty"`
}

// Render produces the HTML form of the principle's markdown fields.
func Render(principle Principle) (RenderedPrinciple, error) {
	content, err := RenderHTML(principle.Content)
	if err != nil {
		return RenderedPrinciple{}, err
	}
	rendered := RenderedPrinciple{Principle: principle, ContentHTML: content}
	if principle.DecisionFramework != "" {
		framework, err := RenderHTML(principle.DecisionFramework)
		if err != nil {
			return RenderedPrinciple{}, err
		}
		rendered.DecisionFrameworkHTML = framework
	}
	return rendered, nil
}

// ObjectiveGroup collects rendered principles sharing an objective.
type ObjectiveGroup struct {
	Objective  string              `json:"objective"`
	Principles []RenderedPrinciple `json:"principles"`
}

// GroupByObjective keeps the input order, starting a new group whenever the objective changes.
func GroupByObjective(principles []RenderedPrinciple) []ObjectiveGroup {
	groups := make([]ObjectiveGroup, 0)
	for _, principle := range principles {
		if len(groups) == 0 || groups[len(groups)-1].Objective != principle.Objective {
			groups = append(groups, ObjectiveGroup{Objective: principle.Objective, Principles: []RenderedPrinciple{}})
		}
		last := &groups[len(groups)-1]
		last.Principles = append(last.Principles, principle)
	}
	return groups
}

// Package export renders read-only plan snapshots into downloadable documents.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dietops/backend/internal/macros"
	"github.com/dietops/backend/internal/plans"
)

// Snapshot is the renderer input: a detached copy of a plan's days and its display name.
type Snapshot struct {
	PlanName string
	Days     []plans.Day
}

// NewSnapshot copies the days so later edits cannot reach the renderer.
func NewSnapshot(planName string, days []plans.Day) Snapshot {
	return Snapshot{PlanName: planName, Days: plans.CloneDays(days)}
}

// Report is the document model shared by every output format.
type Report struct {
	PlanName string
	Days     []DayReport
	Summary  Summary
}

type DayReport struct {
	Name         string
	TrainingSlot string
	Targets      plans.Targets
	Progress     macros.Progress
	Meals        []MealReport
}

type MealReport struct {
	Name       string
	Time       string
	Totals     macros.Totals
	ItemsLabel string
	Items      []ItemReport
}

type ItemReport struct {
	FoodName string
	Quantity float64
	Unit     string
	Totals   macros.Totals
}

// Summary aggregates the whole plan.
type Summary struct {
	Totals       macros.Totals
	DailyAverage macros.Totals
	DayCount     int
}

// BuildReport derives the document model, ordering days, meals and items by their order field.
func BuildReport(snapshot Snapshot) Report {
	days := plans.CloneDays(snapshot.Days)
	sort.SliceStable(days, func(i, j int) bool { return days[i].Order < days[j].Order })

	report := Report{PlanName: snapshot.PlanName, Days: make([]DayReport, 0, len(days))}
	for _, day := range days {
		sort.SliceStable(day.Meals, func(i, j int) bool { return day.Meals[i].Order < day.Meals[j].Order })
		dayReport := DayReport{
			Name:         day.Name,
			TrainingSlot: formatTrainingSlot(day.TrainingSlot),
			Targets:      day.Targets,
			Progress:     macros.DayProgress(day),
			Meals:        make([]MealReport, 0, len(day.Meals)),
		}
		if strings.TrimSpace(dayReport.Name) == "" {
			dayReport.Name = fmt.Sprintf("Day %d", day.Order+1)
		}
		for _, meal := range day.Meals {
			dayReport.Meals = append(dayReport.Meals, buildMealReport(meal))
		}
		report.Summary.Totals = report.Summary.Totals.Add(dayReport.Progress.Totals)
		report.Days = append(report.Days, dayReport)
	}

	report.Summary.DayCount = len(report.Days)
	if report.Summary.DayCount > 0 {
		count := float64(report.Summary.DayCount)
		report.Summary.DailyAverage = macros.Totals{
			Calories: report.Summary.Totals.Calories / count,
			Protein:  report.Summary.Totals.Protein / count,
			Carbs:    report.Summary.Totals.Carbs / count,
			Fats:     report.Summary.Totals.Fats / count,
		}
	}
	return report
}

func buildMealReport(meal plans.Meal) MealReport {
	items := make([]plans.Item, len(meal.Items))
	copy(items, meal.Items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Order < items[j].Order })

	mealReport := MealReport{
		Name:   meal.Name,
		Totals: macros.ForItems(items),
		Items:  make([]ItemReport, 0, len(items)),
	}
	if meal.Time != nil {
		mealReport.Time = *meal.Time
	}
	labels := make([]string, 0, len(items))
	for _, item := range items {
		itemReport := ItemReport{
			FoodName: "Food",
			Quantity: item.Quantity,
			Unit:     item.Unit,
			Totals:   macros.ForItem(item),
		}
		if item.Food != nil {
			itemReport.FoodName = item.Food.Name
			if itemReport.Unit == "" {
				itemReport.Unit = item.Food.Unit
			}
		}
		if itemReport.Unit == "" {
			itemReport.Unit = "g"
		}
		mealReport.Items = append(mealReport.Items, itemReport)
		labels = append(labels, fmt.Sprintf("%s %s%s", itemReport.FoodName, formatQuantity(itemReport.Quantity), itemReport.Unit))
	}
	mealReport.ItemsLabel = strings.Join(labels, ", ")
	return mealReport
}

func formatTrainingSlot(slot string) string {
	switch slot {
	case plans.TrainingSlotRest:
		return "Rest day"
	case plans.TrainingSlotMorning:
		return "Morning training"
	case plans.TrainingSlotAfternoon:
		return "Afternoon training"
	case plans.TrainingSlotNight:
		return "Night training"
	default:
		return ""
	}
}

func formatQuantity(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func formatNumber(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64)
}

package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pdfFont = "Helvetica"

type pdfColumn struct {
	title string
	width float64
	align string
}

var mealColumns = []pdfColumn{
	{title: "Meal", width: 38, align: "L"},
	{title: "Time", width: 16, align: "C"},
	{title: "Items", width: 76, align: "L"},
	{title: "kcal", width: 15, align: "R"},
	{title: "P", width: 15, align: "R"},
	{title: "C", width: 15, align: "R"},
	{title: "F", width: 15, align: "R"},
}

// RenderPDF lays the report out on A4 pages with one meal table per day.
func RenderPDF(report Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(report.PlanName), false)
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 16)
	pdf.CellFormat(0, 10, tr(report.PlanName), "", 1, "L", false, 0, "")

	pdf.SetFont(pdfFont, "", 10)
	summary := report.Summary
	pdf.CellFormat(0, 6, fmt.Sprintf("%d days | total %s kcal, %s g protein | daily average %s kcal, %s g protein",
		summary.DayCount,
		formatNumber(summary.Totals.Calories),
		formatNumber(summary.Totals.Protein),
		formatNumber(summary.DailyAverage.Calories),
		formatNumber(summary.DailyAverage.Protein)), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	for _, day := range report.Days {
		drawDay(pdf, tr, day)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("export: render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("export: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawDay(pdf *gofpdf.Fpdf, tr func(string) string, day DayReport) {
	title := day.Name
	if day.TrainingSlot != "" {
		title = fmt.Sprintf("%s - %s", day.Name, day.TrainingSlot)
	}
	pdf.SetFont(pdfFont, "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")

	progress := day.Progress
	pdf.SetFont(pdfFont, "", 9)
	pdf.CellFormat(0, 5, fmt.Sprintf("%s / %s kcal (%s%%)   P %s / %s g (%s%%)   C %s g   F %s g",
		formatNumber(progress.Totals.Calories),
		formatNumber(day.Targets.Calories),
		formatNumber(progress.Percent.Calories),
		formatNumber(progress.Totals.Protein),
		formatNumber(day.Targets.Protein),
		formatNumber(progress.Percent.Protein),
		formatNumber(progress.Totals.Carbs),
		formatNumber(progress.Totals.Fats)), "", 1, "L", false, 0, "")

	pdf.SetFont(pdfFont, "B", 8)
	pdf.SetFillColor(230, 230, 230)
	for _, column := range mealColumns {
		pdf.CellFormat(column.width, 6, column.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", 8)
	if len(day.Meals) == 0 {
		pdf.CellFormat(tableWidth(), 6, "No meals", "1", 1, "C", false, 0, "")
	}
	for _, meal := range day.Meals {
		values := []string{
			meal.Name,
			meal.Time,
			meal.ItemsLabel,
			formatNumber(meal.Totals.Calories),
			formatNumber(meal.Totals.Protein),
			formatNumber(meal.Totals.Carbs),
			formatNumber(meal.Totals.Fats),
		}
		for index, column := range mealColumns {
			text := fitText(pdf, tr(values[index]), column.width-2)
			pdf.CellFormat(column.width, 6, text, "1", 0, column.align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func tableWidth() float64 {
	var width float64
	for _, column := range mealColumns {
		width += column.width
	}
	return width
}

// fitText shortens already translated single-byte text with an ellipsis until it fits the width.
func fitText(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	for end := len(text) - 1; end > 0; end-- {
		candidate := text[:end] + "..."
		if pdf.GetStringWidth(candidate) <= width {
			return candidate
		}
	}
	return ""
}

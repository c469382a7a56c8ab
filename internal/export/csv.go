package export

import (
	"bytes"
	"encoding/csv"
)

var csvHeader = []string{"day", "meal", "time", "food", "quantity", "unit", "calories", "protein", "carbs", "fats"}

// RenderCSV writes one row per item followed by a total row per meal and per day.
func RenderCSV(report Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, day := range report.Days {
		for _, meal := range day.Meals {
			for _, item := range meal.Items {
				row := []string{day.Name, meal.Name, meal.Time, item.FoodName, formatQuantity(item.Quantity), item.Unit}
				row = append(row, totalsColumns(item.Totals.Calories, item.Totals.Protein, item.Totals.Carbs, item.Totals.Fats)...)
				if err := w.Write(row); err != nil {
					return nil, err
				}
			}
			row := []string{day.Name, meal.Name, meal.Time, "meal total", "", ""}
			row = append(row, totalsColumns(meal.Totals.Calories, meal.Totals.Protein, meal.Totals.Carbs, meal.Totals.Fats)...)
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
		totals := day.Progress.Totals
		row := []string{day.Name, "", "", "day total", "", ""}
		row = append(row, totalsColumns(totals.Calories, totals.Protein, totals.Carbs, totals.Fats)...)
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func totalsColumns(calories, protein, carbs, fats float64) []string {
	return []string{formatNumber(calories), formatNumber(protein), formatNumber(carbs), formatNumber(fats)}
}

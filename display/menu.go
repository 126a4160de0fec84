package display

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// MenuRow is one recipe as shown in the menu preview.
type MenuRow struct {
	Title    string
	PrepTime string
	Preview  string
}

// ParseMenu reads a recipe agent draft. It reports false unless raw is a
// JSON array whose elements are all objects. JSON null is not an array.
func ParseMenu(raw string) ([]MenuRow, bool) {
	var items []any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &items); err != nil || items == nil {
		return nil, false
	}

	rows := make([]MenuRow, 0, len(items))
	for _, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, false
		}
		rows = append(rows, MenuRow{
			Title:    firstString(obj, "Unknown", "title", "name"),
			PrepTime: firstString(obj, "N/A", "prep_time"),
			Preview:  ingredientPreview(obj["ingredients"]),
		})
	}
	return rows, true
}

// RenderMenu renders a draft as a table. It reports false, with no output,
// when the draft is not a JSON array of objects.
func RenderMenu(raw string) (string, bool) {
	rows, ok := ParseMenu(raw)
	if !ok {
		return "", false
	}
	return menuTable(rows, newStyles()), true
}

func menuTable(rows []MenuRow, s styles) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(s.border).
		Headers("Dish Name", "Prep Time", "Key Ingredients (Preview)").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.header
			}
			return s.cell
		})
	for _, r := range rows {
		t.Row(r.Title, r.PrepTime, r.Preview)
	}
	return t.Render()
}

// ingredientPreview shows the first three ingredients followed by "...".
func ingredientPreview(v any) string {
	list, ok := v.([]any)
	if !ok {
		return "..."
	}
	if len(list) > 3 {
		list = list[:3]
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, fmt.Sprint(item))
	}
	return strings.Join(parts, ", ") + "..."
}

func firstString(obj map[string]any, fallback string, keys ...string) string {
	for _, k := range keys {
		v, ok := obj[k]
		if !ok || v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	return fallback
}

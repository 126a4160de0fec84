package tools

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const CalculateMacrosToolName = "calculate_macros"

// MacroEstimate is a rough per-portion nutrition estimate.
type MacroEstimate struct {
	Status   string `json:"status"`
	Calories int    `json:"calories"`
	Macros   struct {
		Protein string `json:"protein"`
		Carbs   string `json:"carbs"`
		Fats    string `json:"fats"`
	} `json:"macros"`
	Note string `json:"note"`
}

// EstimateMacros returns mock values that depend only on the length of text.
func EstimateMacros(text string) MacroEstimate {
	r := rand.New(rand.NewPCG(uint64(len(text)), 0))

	var est MacroEstimate
	est.Status = "success"
	est.Calories = between(r, 300, 800)
	est.Macros.Protein = fmt.Sprintf("%dg", between(r, 10, 40))
	est.Macros.Carbs = fmt.Sprintf("%dg", between(r, 20, 80))
	est.Macros.Fats = fmt.Sprintf("%dg", between(r, 10, 30))
	est.Note = "Estimated based on standard portion sizes."
	return est
}

// between returns a value in [lo, hi].
func between(r *rand.Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// CalculateMacros is registered but not bound to any agent.
type CalculateMacros struct{}

func NewCalculateMacros() *CalculateMacros { return &CalculateMacros{} }

func (t *CalculateMacros) Name() string  { return CalculateMacrosToolName }
func (t *CalculateMacros) Title() string { return "Calculate Macros" }
func (t *CalculateMacros) Description() string {
	return "Estimates calories and macronutrients for a list of ingredients."
}

func (t *CalculateMacros) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ingredients_text": {Type: "string"},
		},
		Required: []string{"ingredients_text"},
	}
}

func (t *CalculateMacros) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"status":   {Type: "string"},
			"calories": {Type: "integer"},
			"macros": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"protein": {Type: "string"},
					"carbs":   {Type: "string"},
					"fats":    {Type: "string"},
				},
			},
			"note": {Type: "string"},
		},
		Required: []string{"status", "calories", "macros"},
	}
}

func (t *CalculateMacros) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	text, ok := input["ingredients_text"].(string)
	if !ok {
		return nil, fmt.Errorf("ingredients_text must be a string")
	}
	return toMap(EstimateMacros(text))
}

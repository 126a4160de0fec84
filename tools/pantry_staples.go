package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

const PantryStaplesToolName = "get_pantry_staples"

// PantryStaples are items assumed to be on hand in any kitchen.
var PantryStaples = []string{
	"salt",
	"pepper",
	"olive oil",
	"vegetable oil",
	"flour",
	"sugar",
	"water",
	"butter",
	"garlic powder",
}

type GetPantryStaples struct{}

func NewPantryStaples() *GetPantryStaples { return &GetPantryStaples{} }

func (t *GetPantryStaples) Name() string  { return PantryStaplesToolName }
func (t *GetPantryStaples) Title() string { return "Get Pantry Staples" }
func (t *GetPantryStaples) Description() string {
	return "Returns the common household items the user already has, so they can be left off the shopping list."
}

func (t *GetPantryStaples) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
}

func (t *GetPantryStaples) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"staples": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
		},
		Required: []string{"staples"},
	}
}

func (t *GetPantryStaples) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	out := struct {
		Staples []string `json:"staples"`
	}{Staples: append([]string(nil), PantryStaples...)}
	return toMap(out)
}

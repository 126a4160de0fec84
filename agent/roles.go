package agent

import (
	"context"
	"fmt"

	"mealprep"
	"mealprep/tools"
)

const (
	RecipeAgentName    = "RecipeAgent"
	NutritionAgentName = "NutritionAgent"
	ShoppingAgentName  = "ShoppingAgent"
)

const recipeInstruction = `You are an expert Chef and Recipe Researcher.
Your goal is to find 3-4 distinct, high-quality recipes based on the user's request.
Use the search tool to find real recipes from the web.

Output STRICTLY a JSON array of objects. Each object must have exactly these keys:
- "title": the recipe name
- "ingredients": an array of ingredient strings with quantities
- "prep_time": total preparation time, e.g. "30 mins"
- "source_url": the page the recipe came from

Do not add conversational text, explanations or markdown outside the JSON array.`

const nutritionInstruction = `You are a Clinical Nutritionist.
You will receive a JSON list of recipes.
Estimate the calories, protein, carbohydrates and fats for one serving of each recipe using your own knowledge.
Compare the recipes and clearly name the healthiest choice and why.
Answer in concise Markdown with a short summary table.`

const shoppingInstruction = `You are a Logistics Manager building a shopping list.
You will receive a JSON list of approved recipes.
1. Call get_pantry_staples and leave those items off the list.
2. Consolidate and deduplicate the remaining ingredients, summing quantities where possible.
3. Group the items by store category (Produce, Meat & Seafood, Dairy, Pantry, Other).
4. Format the list as a Markdown checklist using "- [ ] item".
5. Call save_to_file with the complete Markdown list (filename "shopping_list.md").
6. After saving, reply with the same Markdown list.`

// NewRecipeAgent searches the web for recipes and answers with a JSON array.
func NewRecipeAgent(ctx context.Context, provider mealprep.ChatProvider, temperature float32, opts ...Option) (*Agent, error) {
	return New(ctx, provider, mealprep.ChatConfig{
		AgentName:         RecipeAgentName,
		SystemInstruction: recipeInstruction,
		WebSearch:         true,
		JSONMode:          true,
		Temperature:       temperature,
	}, opts...)
}

// NewNutritionAgent estimates nutrition from the model's own knowledge.
func NewNutritionAgent(ctx context.Context, provider mealprep.ChatProvider, temperature float32, opts ...Option) (*Agent, error) {
	return New(ctx, provider, mealprep.ChatConfig{
		AgentName:         NutritionAgentName,
		SystemInstruction: nutritionInstruction,
		Temperature:       temperature,
	}, opts...)
}

// ShoppingTools are the tools bound to the shopping agent.
var ShoppingTools = []string{tools.PantryStaplesToolName, tools.SaveFileToolName}

// NewShoppingAgent builds the shopping list using the pantry and file tools
// from registry.
func NewShoppingAgent(ctx context.Context, provider mealprep.ChatProvider, registry *tools.Registry, temperature float32, opts ...Option) (*Agent, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is required for %s", ShoppingAgentName)
	}
	bound, err := registry.Subset(ShoppingTools...)
	if err != nil {
		return nil, fmt.Errorf("failed to bind shopping tools: %w", err)
	}
	return New(ctx, provider, mealprep.ChatConfig{
		AgentName:         ShoppingAgentName,
		SystemInstruction: shoppingInstruction,
		Tools:             bound,
		Temperature:       temperature,
	}, opts...)
}

// BoundTools maps each role to the tool names it can call. Tools missing
// from every entry are registered but unreachable.
func BoundTools() map[string][]string {
	return map[string][]string{
		RecipeAgentName:    nil,
		NutritionAgentName: nil,
		ShoppingAgentName:  append([]string(nil), ShoppingTools...),
	}
}

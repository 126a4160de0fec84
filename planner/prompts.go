package planner

import "fmt"

const (
	QueryPrompt    = "What would you like to cook? > "
	CritiquePrompt = "Critique > "
)

func RecipePrompt(query string) string {
	return fmt.Sprintf("Find 3-4 high quality recipes for: %s", query)
}

// FeedbackPrompt asks for a full replacement list that takes feedback into account.
func FeedbackPrompt(feedback string) string {
	return fmt.Sprintf("The user has this feedback: '%s'. "+
		"Please adjust the list and output a NEW, complete JSON array that replaces the previous one. "+
		"Keep the same JSON format.", feedback)
}

func NutritionPrompt(approved string) string {
	return fmt.Sprintf("Analyze the nutrition for this approved data: %s", approved)
}

func ShoppingPrompt(approved string) string {
	return fmt.Sprintf("Create a consolidated shopping list for these recipes: %s", approved)
}

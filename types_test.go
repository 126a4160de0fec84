package mealprep_test

import (
	"errors"
	"testing"

	should "github.com/stretchr/testify/assert"

	"mealprep"
)

func TestReply_String(t *testing.T) {
	tests := []struct {
		name  string
		reply mealprep.Reply
		want  string
	}{
		{"success", mealprep.Reply{Agent: "RecipeAgent", Text: "[]"}, "[]"},
		{"failure", mealprep.Reply{Agent: "RecipeAgent", Err: errors.New("boom"), Kind: mealprep.FailureService}, "Error in RecipeAgent: boom"},
		{"failure without error", mealprep.Reply{Agent: "ShoppingAgent", Kind: mealprep.FailureTransient}, "Error: ShoppingAgent unavailable."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			should.Equal(t, tt.want, tt.reply.String())
			should.Equal(t, tt.reply.Kind != mealprep.FailureNone, tt.reply.Failed())
		})
	}
}

func TestFailureKind_String(t *testing.T) {
	should.Equal(t, "none", mealprep.FailureNone.String())
	should.Equal(t, "transient", mealprep.FailureTransient.String())
	should.Equal(t, "service", mealprep.FailureService.String())
	should.Equal(t, "FailureKind(9)", mealprep.FailureKind(9).String())
}

package display

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	// Plain output keeps assertions free of escape codes.
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestParseMenu(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   []MenuRow
		wantOK bool
	}{
		{
			name: "full recipes",
			raw: `[{"title": "Chicken Soup", "ingredients": ["chicken", "carrots", "celery", "onion"], "prep_time": "40 mins", "source_url": "https://x"},
			       {"title": "Miso Soup", "ingredients": ["miso", "tofu"], "prep_time": "10 mins"}]`,
			want: []MenuRow{
				{Title: "Chicken Soup", PrepTime: "40 mins", Preview: "chicken, carrots, celery..."},
				{Title: "Miso Soup", PrepTime: "10 mins", Preview: "miso, tofu..."},
			},
			wantOK: true,
		},
		{
			name:   "missing fields fall back",
			raw:    `[{"name": "Stew"}, {}]`,
			want:   []MenuRow{{Title: "Stew", PrepTime: "N/A", Preview: "..."}, {Title: "Unknown", PrepTime: "N/A", Preview: "..."}},
			wantOK: true,
		},
		{
			name:   "empty array",
			raw:    `[]`,
			want:   []MenuRow{},
			wantOK: true,
		},
		{name: "not json", raw: "Here are some recipes you might like!"},
		{name: "object instead of array", raw: `{"title": "Soup"}`},
		{name: "array of strings", raw: `["soup", "stew"]`},
		{name: "empty", raw: ""},
		{name: "json null", raw: "null"},
		{name: "padded json null", raw: "  null\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMenu(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderMenu(t *testing.T) {
	out, ok := RenderMenu(`[{"title": "Chicken Soup", "prep_time": "40 mins"}]`)
	require.True(t, ok)
	assert.Contains(t, out, "Dish Name")
	assert.Contains(t, out, "Key Ingredients (Preview)")
	assert.Contains(t, out, "Chicken Soup")
	assert.Contains(t, out, "40 mins")

	out, ok = RenderMenu("not json")
	assert.False(t, ok)
	assert.Empty(t, out)
}

func TestPrinter_Menu(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 80)

	p.Menu(`[{"title": "Tacos", "ingredients": ["tortillas"], "prep_time": "15 mins"}]`)
	assert.Contains(t, buf.String(), "Tacos")
	assert.NotContains(t, buf.String(), "Recipe Output (Raw)")

	buf.Reset()
	p.Menu("Sorry, I could not find recipes.")
	assert.Contains(t, buf.String(), "Recipe Output (Raw)")
	assert.Contains(t, buf.String(), "Sorry, I could not find recipes.")

	buf.Reset()
	p.Menu("null")
	assert.Contains(t, buf.String(), "Recipe Output (Raw)")
	assert.NotContains(t, buf.String(), "Dish Name")
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, 0)

	p.Banner("🍽️ Smart Meal Prep Agent", "gemini")
	p.Success("System Ready")
	p.Error("boom")
	p.Prompt("Critique > ")

	out := buf.String()
	assert.Contains(t, out, "Smart Meal Prep Agent")
	assert.Contains(t, out, "✓ System Ready\n")
	assert.Contains(t, out, "Error: boom\n")
	assert.True(t, strings.HasSuffix(out, "Critique > "))
}

func TestMarkdown(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		assert.Equal(t, "", Markdown("", 80))
	})

	t.Run("headings lists and checkboxes", func(t *testing.T) {
		out := Markdown("# Shopping List\n\n## Produce\n- [ ] 2 carrots\n- [x] 1 onion\n", 80)
		assert.Contains(t, out, "Shopping List")
		assert.Contains(t, out, "• [ ] 2 carrots")
		assert.Contains(t, out, "• [x] 1 onion")
		assert.NotContains(t, out, "##")
	})

	t.Run("tables", func(t *testing.T) {
		out := Markdown("| Recipe | Calories |\n|---|---|\n| Soup | 420 |\n", 80)
		assert.Contains(t, out, "Recipe")
		assert.Contains(t, out, "Soup")
		assert.Contains(t, out, "420")
		assert.NotContains(t, out, "|---|")
	})

	t.Run("emphasis and links", func(t *testing.T) {
		out := Markdown("**Healthiest choice:** [Soup](https://example.com)", 80)
		assert.Contains(t, out, "Healthiest choice:")
		assert.Contains(t, out, "(https://example.com)")
	})
}

func TestPanel(t *testing.T) {
	out := Panel("Nutritional Intelligence", "Soup is lighter.", KindSuccess, 60)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "Nutritional Intelligence", strings.TrimRight(lines[0], " "))
	assert.Contains(t, out, "Soup is lighter.")
}

func TestPlainStatus(t *testing.T) {
	var buf bytes.Buffer
	s := NewPlainStatus(&buf)

	called := false
	err := s.Run(context.Background(), "Searching...", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "Searching...\n", buf.String())

	want := errors.New("failed")
	assert.ErrorIs(t, s.Run(context.Background(), "x", func(ctx context.Context) error { return want }), want)
}

func TestSpinnerStatus(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerStatus(&buf)

	want := errors.New("model down")
	err := s.Run(context.Background(), "Analyzing...", func(ctx context.Context) error { return want })
	assert.ErrorIs(t, err, want)

	err = s.Run(context.Background(), "Analyzing...", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
}

package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"mealprep/tools/storage"
)

const (
	SaveFileToolName = "save_to_file"
	DefaultFilename  = "shopping_list.md"
)

type SaveFile struct{ store storage.ArtifactStore }

func NewSaveFile(store storage.ArtifactStore) *SaveFile { return &SaveFile{store: store} }

func (t *SaveFile) Name() string  { return SaveFileToolName }
func (t *SaveFile) Title() string { return "Save To File" }
func (t *SaveFile) Description() string {
	return "Saves text content to a file, overwriting it if it exists. The filename defaults to " + DefaultFilename + "."
}

func (t *SaveFile) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"content":  {Type: "string", Description: "The full text to write."},
			"filename": {Type: "string", Description: "Target file name, defaults to " + DefaultFilename + "."},
		},
		Required: []string{"content"},
	}
}

func (t *SaveFile) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"status": {Type: "string"},
		},
		Required: []string{"status"},
	}
}

// Run writes the content. A failed write is reported in the status text and
// never as an error, so the model can tell the user what happened.
func (t *SaveFile) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	content, _ := input["content"].(string)
	filename, _ := input["filename"].(string)
	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}

	status := fmt.Sprintf("Successfully saved content to %s", filename)
	if err := t.store.Save(ctx, filename, []byte(content)); err != nil {
		slog.Error("TOOL: Failed to save file", "filename", filename, "error", err)
		status = fmt.Sprintf("Error saving file: %v", err)
	}

	return map[string]any{"status": status}, nil
}

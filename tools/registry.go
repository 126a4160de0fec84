package tools

import (
	"fmt"
	"sort"

	"mealprep/tools/storage"
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry creates the full tool registry. Saved files go to store.
func NewRegistry(store storage.ArtifactStore) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("artifact store is required")
	}

	tools := map[string]Tool{
		PantryStaplesToolName:   NewPantryStaples(),
		SaveFileToolName:        NewSaveFile(store),
		CalculateMacrosToolName: NewCalculateMacros(),
	}

	registry := Registry(tools)
	return &registry, nil
}

// Subset returns a registry holding only the named tools.
func (r Registry) Subset(names ...string) (*Registry, error) {
	sub := make(Registry, len(names))
	for _, name := range names {
		tool, err := r.GetTool(name)
		if err != nil {
			return nil, err
		}
		sub[name] = tool
	}
	return &sub, nil
}

// GetTools returns all tools in the registry sorted by name
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("tool %q not found in registry", name)
	}
	return tool, nil
}

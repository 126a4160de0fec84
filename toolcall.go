package mealprep

import (
	"context"
	"fmt"
	"log/slog"

	"mealprep/tools"
)

// RunToolCall looks up and runs one tool call requested by a model. Failures
// are returned as an {"error": ...} result for the model to read rather than
// as a Go error, so a bad call never aborts the conversation.
func RunToolCall(ctx context.Context, tp ToolProvider, call tools.Call) (map[string]any, ToolCallLog) {
	tlog := ToolCallLog{Name: call.Name, Input: call.Input}

	if tp == nil {
		tlog.Error = "no tools bound"
		tlog.Output = map[string]any{"error": fmt.Sprintf("tool %q not available: no tools bound", call.Name)}
		return tlog.Output, tlog
	}

	tool, err := tp.GetTool(call.Name)
	if err != nil {
		slog.Warn("TOOL: Model requested unknown tool", "name", call.Name)
		tlog.Error = err.Error()
		tlog.Output = map[string]any{"error": fmt.Sprintf("tool %q not found: %v", call.Name, err)}
		return tlog.Output, tlog
	}

	slog.Info("TOOL: Running tool", "name", call.Name)
	result, err := tool.Run(ctx, call.Input)
	if err != nil {
		slog.Error("TOOL: Tool failed", "name", call.Name, "error", err)
		tlog.Error = err.Error()
		tlog.Output = map[string]any{"error": fmt.Sprintf("tool %q failed: %v", call.Name, err)}
		return tlog.Output, tlog
	}

	tlog.Output = result
	return result, tlog
}

package tools

import (
	"context"
	"time"
)

// ClockTool reports the current date and time so the model can reason about
// relative dates like "tomorrow at 10".
type ClockTool struct {
	now func() time.Time
}

func NewClockTool() *ClockTool {
	return &ClockTool{now: time.Now}
}

func (t *ClockTool) Name() string { return "currentDateAndTime" }

func (t *ClockTool) Description() string {
	return "Get the current date and time."
}

func (t *ClockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *ClockTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	return TextResult(t.now().Format(time.RFC3339))
}

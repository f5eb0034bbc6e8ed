package providers

import (
	"encoding/json"
	"testing"
)

func TestToolUseBlockMarshalsArgumentsAsObject(t *testing.T) {
	block := toolUseBlock(ToolCall{
		ID:        "call-1",
		Name:      "verifyMeetingAvailability",
		Arguments: `{"date":"2024-03-13T10:00:00Z"}`,
	})

	data, err := json.Marshal(block)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		ID    string                 `json:"id"`
		Name  string                 `json:"name"`
		Input map[string]interface{} `json:"input"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("block %s does not carry input as a JSON object: %v", data, err)
	}
	if decoded.ID != "call-1" || decoded.Name != "verifyMeetingAvailability" {
		t.Errorf("block = %s", data)
	}
	if got := decoded.Input["date"]; got != "2024-03-13T10:00:00Z" {
		t.Errorf("input.date = %v, want the original argument value", got)
	}
}

func TestToolUseBlockEmptyArguments(t *testing.T) {
	block := toolUseBlock(ToolCall{ID: "call-1", Name: "currentDateAndTime"})

	data, err := json.Marshal(block)
	if err != nil {
		t.Fatal(err)
	}

	var decoded struct {
		Input map[string]interface{} `json:"input"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("block %s does not carry input as a JSON object: %v", data, err)
	}
	if decoded.Input == nil || len(decoded.Input) != 0 {
		t.Errorf("input = %v, want an empty object", decoded.Input)
	}
}

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/ecamargo/wabot/pkg/logger"
)

// VerifyMeetingTool checks whether a proposed sales meeting slot falls within
// business hours: Monday to Friday, 9 am to 5 pm.
type VerifyMeetingTool struct{}

func NewVerifyMeetingTool() *VerifyMeetingTool { return &VerifyMeetingTool{} }

func (t *VerifyMeetingTool) Name() string { return "verifyMeetingAvailability" }

func (t *VerifyMeetingTool) Description() string {
	return "Verify if a given date and time is available for a sales meeting before booking it. Use it before calling bookSalesMeeting."
}

func (t *VerifyMeetingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"date": map[string]interface{}{
				"type":        "string",
				"format":      "date-time",
				"description": "Date of the meeting in ISO 8601 format",
			},
		},
		"required": []string{"date"},
	}
}

func (t *VerifyMeetingTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["date"].(string)
	if raw == "" {
		return ErrorResult("Missing required parameter: date")
	}

	when, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return ErrorResult(fmt.Sprintf("Invalid date format: %s", raw))
	}

	logger.InfoCF("tools", "Verifying meeting availability", map[string]interface{}{
		"date": when.Format(time.RFC3339),
	})
	return TextResult(CheckMeetingSlot(when))
}

// CheckMeetingSlot applies the availability rule to a parsed time. Exposed
// separately so booking can reuse it.
func CheckMeetingSlot(when time.Time) string {
	switch when.Weekday() {
	case time.Saturday, time.Sunday:
		return "Not available on weekends."
	}
	if when.Hour() < 9 || when.Hour() > 17 {
		return "Not available outside business hours: 9 am to 5 pm, Monday to Friday."
	}
	return "Available"
}

// BookMeetingTool books a sales meeting. No calendar backend is wired yet, so
// it confirms unconditionally once given a date.
type BookMeetingTool struct{}

func NewBookMeetingTool() *BookMeetingTool { return &BookMeetingTool{} }

func (t *BookMeetingTool) Name() string { return "bookSalesMeeting" }

func (t *BookMeetingTool) Description() string {
	return "Book a sales meeting on a given date and time. Verify availability with verifyMeetingAvailability first."
}

func (t *BookMeetingTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"date": map[string]interface{}{
				"type":        "string",
				"format":      "date-time",
				"description": "Date of the meeting in ISO 8601 format",
			},
		},
		"required": []string{"date"},
	}
}

func (t *BookMeetingTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	raw, _ := args["date"].(string)
	if raw == "" {
		return ErrorResult("Missing required parameter: date")
	}

	logger.InfoCF("tools", "Booking sales meeting", map[string]interface{}{"date": raw})
	return TextResult("Meeting booked successfully. You will receive a calendar invite shortly.")
}

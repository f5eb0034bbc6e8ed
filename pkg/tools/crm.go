package tools

import (
	"context"

	"github.com/ecamargo/wabot/pkg/logger"
)

// UserInfoTool looks up the contact in the CRM. There is no CRM integration
// behind it yet: it always reports the CRM as unavailable.
type UserInfoTool struct{}

func NewUserInfoTool() *UserInfoTool { return &UserInfoTool{} }

func (t *UserInfoTool) Name() string { return "loadUserInformation" }

func (t *UserInfoTool) Description() string {
	return "Retrieve user name and email from CRM."
}

func (t *UserInfoTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *UserInfoTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	logger.InfoC("tools", "Trying to load user information")
	return TextResult("I am unable to access the CRM at the moment. Please try again later.")
}

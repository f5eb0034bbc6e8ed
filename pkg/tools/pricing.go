package tools

import (
	"context"

	"github.com/ecamargo/wabot/pkg/logger"
)

const planPricesText = `*Send & Receive messages + API + Webhooks + Team Chat + Campaigns + CRM + Analytics*

- Platform Professional: 30,000 messages + unlimited inbound messages + 10 campaigns / month
- Platform Business: 60,000 messages + unlimited inbound messages + 20 campaigns / month
- Platform Enterprise: unlimited messages + 30 campaigns

Each plan is limited to one WhatsApp number. You can purchase multiple plans if you have multiple numbers.`

// PlanPricesTool returns the available plans and pricing.
type PlanPricesTool struct{}

func NewPlanPricesTool() *PlanPricesTool { return &PlanPricesTool{} }

func (t *PlanPricesTool) Name() string { return "getPlanPrices" }

func (t *PlanPricesTool) Description() string {
	return "Get available plans and pricing for the product."
}

func (t *PlanPricesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}

func (t *PlanPricesTool) Execute(ctx context.Context, args map[string]interface{}) *ToolResult {
	logger.InfoC("tools", "Fetching plan prices")
	return TextResult(planPricesText)
}

package tools

// DefaultRegistry builds the registry with the full sales-assistant catalog.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewPlanPricesTool())
	r.Register(NewUserInfoTool())
	r.Register(NewVerifyMeetingTool())
	r.Register(NewBookMeetingTool())
	r.Register(NewClockTool())
	return r
}

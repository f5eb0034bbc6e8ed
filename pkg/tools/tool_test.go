package tools

import (
	"context"
	"testing"
)

func TestDefaultRegistryCatalog(t *testing.T) {
	reg := DefaultRegistry()

	want := []string{
		"getPlanPrices",
		"loadUserInformation",
		"verifyMeetingAvailability",
		"bookSalesMeeting",
		"currentDateAndTime",
	}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("List() returned %d tools, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i] != name {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], name)
		}
	}

	specs := reg.Specs()
	if len(specs) != len(want) {
		t.Fatalf("Specs() returned %d entries, want %d", len(specs), len(want))
	}
	for i, spec := range specs {
		if spec.Name != want[i] {
			t.Errorf("Specs()[%d].Name = %q, want %q", i, spec.Name, want[i])
		}
		if spec.Description == "" {
			t.Errorf("tool %q has empty description", spec.Name)
		}
		if spec.Parameters == nil {
			t.Errorf("tool %q has nil parameters", spec.Name)
		}
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()

	res := reg.Execute(context.Background(), "nope", nil)
	if res.Err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestUserInfoToolAlwaysUnavailable(t *testing.T) {
	res := NewUserInfoTool().Execute(context.Background(), nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.ForLLM == "" {
		t.Error("expected an unavailability message for the model")
	}
}

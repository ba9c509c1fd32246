package agent

import (
	"encoding/json"
	"testing"
)

const availabilitySchema = `{
	"type": "object",
	"properties": {
		"service_id": {"type": "string", "format": "uuid"},
		"from_date": {"type": "string", "format": "date"},
		"to_date": {"type": "string", "format": "date"}
	},
	"required": ["service_id", "from_date", "to_date"],
	"additionalProperties": false
}`

func testValidator(t *testing.T) *Validator {
	t.Helper()
	r := NewRegistry()
	r.MustRegister(&Definition{
		Name:         "get_available_slots",
		Description:  "list open slots",
		Schema:       json.RawMessage(availabilitySchema),
		OrderedPairs: []OrderedPair{{First: "from_date", Second: "to_date"}},
		Handler:      noopHandler,
	})
	v, err := NewValidator(r, nil)
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestValidator_AcceptsValidArguments(t *testing.T) {
	v := testValidator(t)
	args := json.RawMessage(`{
		"service_id": "9f54b4f2-3f38-4b7e-8f35-8d10a33b5c11",
		"from_date": "2026-09-07",
		"to_date": "2026-09-08"
	}`)
	if fault := v.Validate("get_available_slots", args); fault != nil {
		t.Fatalf("unexpected fault: %+v", fault)
	}
}

func TestValidator_RejectsMissingAndMistypedFields(t *testing.T) {
	v := testValidator(t)
	args := json.RawMessage(`{"service_id": "not-a-uuid", "from_date": "2026-09-07"}`)

	fault := v.Validate("get_available_slots", args)
	if fault == nil {
		t.Fatal("expected validation fault")
	}
	if fault.ErrorType != FaultValidation {
		t.Errorf("error type = %s, want %s", fault.ErrorType, FaultValidation)
	}
	if fault.Suggestion == "" {
		t.Error("fault carries no suggestion")
	}
	if len(fault.Fields) == 0 {
		t.Error("fault carries no per-field errors")
	}
}

func TestValidator_RejectsMalformedJSON(t *testing.T) {
	v := testValidator(t)
	fault := v.Validate("get_available_slots", json.RawMessage(`{"service_id":`))
	if fault == nil || fault.ErrorType != FaultValidation {
		t.Fatalf("fault = %+v, want %s", fault, FaultValidation)
	}
}

func TestValidator_ChecksOrderedPairs(t *testing.T) {
	v := testValidator(t)
	args := json.RawMessage(`{
		"service_id": "9f54b4f2-3f38-4b7e-8f35-8d10a33b5c11",
		"from_date": "2026-09-10",
		"to_date": "2026-09-07"
	}`)

	fault := v.Validate("get_available_slots", args)
	if fault == nil || fault.ErrorType != FaultValidation {
		t.Fatalf("fault = %+v, want %s", fault, FaultValidation)
	}
}

func TestValidator_AllowsEqualRangeEndpoints(t *testing.T) {
	v := testValidator(t)
	args := json.RawMessage(`{
		"service_id": "9f54b4f2-3f38-4b7e-8f35-8d10a33b5c11",
		"from_date": "2026-09-07",
		"to_date": "2026-09-07"
	}`)
	if fault := v.Validate("get_available_slots", args); fault != nil {
		t.Fatalf("single-day range rejected: %+v", fault)
	}
}

func TestValidator_UnknownToolPassesThrough(t *testing.T) {
	v := testValidator(t)
	if fault := v.Validate("mystery_tool", json.RawMessage(`{"anything": 1}`)); fault != nil {
		t.Fatalf("unknown tool rejected: %+v", fault)
	}
}

package agent

import (
	"encoding/json"
	"fmt"

	"github.com/bookday/concierge/pkg/models"
)

// Fault error kinds. Faults are data fed back to the model as tool results,
// never Go errors escaping the pipeline.
const (
	FaultValidation = "validation_error"
	FaultSystem     = "system_error"
	FaultNotEnabled = "not_enabled"
	FaultNotFound   = "not_found"
)

// Fault is a structured model-facing tool failure. The model reads these
// fields to decide how to recover, so Suggestion and Recovery are written for
// the model, not for operators.
type Fault struct {
	ErrorType  string            `json:"error_type"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Recovery   string            `json:"recovery,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

func NewFault(errorType, message string) *Fault {
	return &Fault{ErrorType: errorType, Message: message}
}

func (f *Fault) WithSuggestion(s string) *Fault {
	f.Suggestion = s
	return f
}

func (f *Fault) WithRecovery(r string) *Fault {
	f.Recovery = r
	return f
}

func (f *Fault) WithFields(fields map[string]string) *Fault {
	f.Fields = fields
	return f
}

// Result renders the fault as a tool result for one call.
func (f *Fault) Result(toolCallID string) models.ToolResult {
	payload, err := json.Marshal(f)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"error_type":%q,"message":"fault encoding failed"}`, FaultSystem))
	}
	return models.ToolResult{
		ToolCallID: toolCallID,
		Content:    string(payload),
		IsError:    true,
	}
}

// normalizeOutcome converts a successful handler return value into the tool
// result content the model sees.
//
// A *Fault passes through verbatim. A map carrying a generic "error" field is
// rewritten into a system_error fault so handlers cannot invent their own
// error shapes. Everything else is encoded as JSON.
func normalizeOutcome(toolCallID string, value any) models.ToolResult {
	if fault, ok := value.(*Fault); ok && fault != nil {
		return fault.Result(toolCallID)
	}
	if fault, ok := value.(Fault); ok {
		return fault.Result(toolCallID)
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return NewFault(FaultSystem, fmt.Sprintf("tool result not serializable: %v", err)).Result(toolCallID)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(payload, &probe); err == nil {
		if _, hasErrorType := probe["error_type"]; !hasErrorType {
			if rawErr, hasError := probe["error"]; hasError {
				var msg string
				if json.Unmarshal(rawErr, &msg) != nil {
					msg = string(rawErr)
				}
				return NewFault(FaultSystem, msg).Result(toolCallID)
			}
		}
	}

	return models.ToolResult{
		ToolCallID: toolCallID,
		Content:    string(payload),
	}
}

// faultType reads the error kind back out of a fault result.
func faultType(res models.ToolResult) string {
	var probe struct {
		ErrorType string `json:"error_type"`
	}
	if json.Unmarshal([]byte(res.Content), &probe) == nil && probe.ErrorType != "" {
		return probe.ErrorType
	}
	return FaultSystem
}

package agent

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyToolError(t *testing.T) {
	tests := []struct {
		err       error
		wantType  ToolErrorType
		retryable bool
	}{
		{errors.New("context deadline exceeded"), ToolErrorTimeout, true},
		{fmt.Errorf("wrap: %w", ErrToolTimeout), ToolErrorTimeout, true},
		{errors.New("dial tcp: connection refused"), ToolErrorNetwork, true},
		{errors.New("429 too many requests"), ToolErrorRateLimit, true},
		{errors.New("upstream returned 503 service unavailable"), ToolErrorServer, true},
		{errors.New("500 internal server error"), ToolErrorServer, true},
		{errors.New("401 unauthorized"), ToolErrorPermission, false},
		{errors.New("403 forbidden"), ToolErrorPermission, false},
		{errors.New("appointment not found"), ToolErrorNotFound, false},
		{errors.New("invalid service id"), ToolErrorInvalidInput, false},
		{errors.New("something inexplicable"), ToolErrorUnknown, false},
	}

	for _, tt := range tests {
		toolErr := NewToolError("test_tool", tt.err)
		if toolErr.Type != tt.wantType {
			t.Errorf("classify(%q) = %s, want %s", tt.err, toolErr.Type, tt.wantType)
		}
		if toolErr.Retryable() != tt.retryable {
			t.Errorf("retryable(%q) = %v, want %v", tt.err, toolErr.Retryable(), tt.retryable)
		}
	}
}

func TestToolError_MessageIncludesAttempts(t *testing.T) {
	err := NewToolError("slow_tool", errors.New("timeout")).WithAttempts(4)
	if got := err.Error(); got != "[tool:timeout] slow_tool timeout (attempts=4)" {
		t.Errorf("Error() = %q", got)
	}
}

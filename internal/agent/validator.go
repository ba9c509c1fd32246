package agent

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Validator checks tool arguments against each tool's compiled JSON schema
// before the handler runs. Schemas are compiled once at construction with
// format assertions on, so uuid/date/date-time typed arguments are enforced.
type Validator struct {
	schemas map[string]*jsonschema.Schema
	pairs   map[string][]OrderedPair
	logger  *slog.Logger
}

func NewValidator(registry *Registry, logger *slog.Logger) (*Validator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	v := &Validator{
		schemas: make(map[string]*jsonschema.Schema),
		pairs:   make(map[string][]OrderedPair),
		logger:  logger,
	}
	for _, name := range registry.Names() {
		def, _ := registry.Get(name)
		if len(def.Schema) == 0 {
			continue
		}
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		resource := name + ".schema.json"
		if err := compiler.AddResource(resource, strings.NewReader(string(def.Schema))); err != nil {
			return nil, fmt.Errorf("add schema for tool %s: %w", name, err)
		}
		compiled, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("compile schema for tool %s: %w", name, err)
		}
		v.schemas[name] = compiled
		if len(def.OrderedPairs) > 0 {
			v.pairs[name] = def.OrderedPairs
		}
	}
	return v, nil
}

// Validate checks args for one tool. A nil return means the call may proceed.
//
// An unregistered tool name passes through with a log line rather than
// failing: gating and existence are the registry's concern, and tools without
// schemas accept anything.
func (v *Validator) Validate(tool string, args json.RawMessage) *Fault {
	schema, ok := v.schemas[tool]
	if !ok {
		v.logger.Warn("no schema registered for tool, skipping validation", "tool", tool)
		return nil
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	var decoded any
	if err := json.Unmarshal(args, &decoded); err != nil {
		return NewFault(FaultValidation, fmt.Sprintf("arguments are not valid JSON: %v", err)).
			WithSuggestion("emit the tool arguments as a JSON object")
	}

	if err := schema.Validate(decoded); err != nil {
		fault := NewFault(FaultValidation, "arguments failed schema validation").
			WithSuggestion("fix the listed fields and call the tool again")
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			fault.Fields = flattenCauses(ve)
		} else {
			fault.Message = err.Error()
		}
		return fault
	}

	return v.checkOrderedPairs(tool, decoded)
}

// flattenCauses maps leaf validation causes to instance locations.
func flattenCauses(ve *jsonschema.ValidationError) map[string]string {
	fields := make(map[string]string)
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			fields[loc] = e.Message
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return fields
}

func (v *Validator) checkOrderedPairs(tool string, decoded any) *Fault {
	pairs := v.pairs[tool]
	if len(pairs) == 0 {
		return nil
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil
	}
	for _, pair := range pairs {
		first, okA := timeField(obj, pair.First)
		second, okB := timeField(obj, pair.Second)
		if !okA || !okB {
			continue
		}
		if second.Before(first) {
			return NewFault(FaultValidation,
				fmt.Sprintf("%s must not precede %s", pair.Second, pair.First)).
				WithFields(map[string]string{
					"/" + pair.First:  "must not follow " + pair.Second,
					"/" + pair.Second: "must not precede " + pair.First,
				}).
				WithSuggestion("swap or correct the two values and call the tool again")
		}
	}
	return nil
}

func timeField(obj map[string]any, key string) (time.Time, bool) {
	raw, ok := obj[key].(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bookday/concierge/pkg/models"
)

// Handler executes one tool call. The returned value is normalized into the
// model-facing result; a returned error enters retry classification.
type Handler func(ctx context.Context, actx models.AgentContext, args json.RawMessage) (any, error)

// OrderedPair declares two argument fields whose parsed times must satisfy
// first < second. Checked after schema validation.
type OrderedPair struct {
	First, Second string
}

// Definition declares one tool: its model-facing spec, its argument schema,
// the feature flags gating it, and its handler.
type Definition struct {
	Name             string
	Description      string
	Schema           json.RawMessage
	OrderedPairs     []OrderedPair
	RequiredFeatures []string
	Handler          Handler

	// Terminal marks tools that end the turn immediately after executing,
	// with no reply text. Used by the human handoff tool.
	Terminal bool
}

// Registry holds the tool vocabulary. It is populated once at process start
// and read-only afterwards; there is no package-level instance.
type Registry struct {
	defs  map[string]*Definition
	order []string
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds a tool definition. Duplicate names are a programming error.
func (r *Registry) Register(def *Definition) error {
	if def == nil || def.Name == "" {
		return fmt.Errorf("tool definition requires a name")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tool %s already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// MustRegister is Register for composition roots where a failure is fatal.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Get returns a definition regardless of gating.
func (r *Registry) Get(name string) (*Definition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SpecsFor renders the model-facing tool vocabulary for one tenant. Tools
// whose required features are not all enabled are omitted entirely, so the
// model never sees them.
func (r *Registry) SpecsFor(features models.FeatureFlags) []ToolSpec {
	var specs []ToolSpec
	for _, name := range r.order {
		def := r.defs[name]
		if !enabled(def, features) {
			continue
		}
		specs = append(specs, ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Schema:      def.Schema,
		})
	}
	return specs
}

// Resolve looks up a tool and re-checks its feature gate at call time.
// An unknown name and a known-but-disabled tool are distinct faults; the
// distinction tells the model whether rephrasing could ever help.
func (r *Registry) Resolve(name string, features models.FeatureFlags) (*Definition, *Fault) {
	def, ok := r.defs[name]
	if !ok {
		return nil, NewFault(FaultNotFound, fmt.Sprintf("tool %q does not exist", name)).
			WithSuggestion("use one of the tools listed in the conversation")
	}
	if !enabled(def, features) {
		return nil, NewFault(FaultNotEnabled, fmt.Sprintf("tool %q is not enabled for this business", name)).
			WithSuggestion("tell the customer this capability is unavailable and offer an alternative")
	}
	return def, nil
}

func enabled(def *Definition, features models.FeatureFlags) bool {
	for _, feature := range def.RequiredFeatures {
		if !features.Bool(feature) {
			return false
		}
	}
	return true
}

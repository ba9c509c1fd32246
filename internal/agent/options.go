package agent

import (
	"log/slog"
	"time"

	"github.com/bookday/concierge/internal/convocache"
	"github.com/bookday/concierge/internal/observability"
	"github.com/bookday/concierge/internal/sessions"
	"github.com/bookday/concierge/pkg/models"
)

const (
	// DefaultMaxIterations is the model round-trip cap per turn when the
	// tenant does not override it.
	DefaultMaxIterations = 5

	// MinIterations and MaxIterations bound tenant overrides.
	MinIterations = 1
	MaxIterations = 10

	// DefaultHistoryLimit is how many stored messages enter the prompt.
	DefaultHistoryLimit = 20

	// DefaultMaxTokens caps each completion.
	DefaultMaxTokens = 1024
)

// ApologyReply is the fixed fallback sent when a turn cannot produce a real
// reply: cap exhaustion, provider failure, and final-iteration tool failure
// all land here.
const ApologyReply = "Sorry, I wasn't able to finish handling that just now. Please try again in a moment."

// maxIterationsFeature is the tenant flag overriding the iteration cap.
const maxIterationsFeature = "max_iterations"

// LoopOptions wires a Loop. Provider, Pipeline, Registry, and Store are
// required; the rest default.
type LoopOptions struct {
	Provider ModelProvider
	Pipeline *Pipeline
	Registry *Registry
	Store    sessions.Store
	Cache    *convocache.Cache

	Model         string
	MaxTokens     int
	HistoryLimit  int
	MaxIterations int

	Logger  *slog.Logger
	Metrics *observability.Metrics

	// Now is replaceable for snapshot rendering in tests.
	Now func() time.Time
}

func (o *LoopOptions) applyDefaults() {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// iterationCap resolves the per-turn cap: tenant override when present,
// configured default otherwise, always clamped to [MinIterations,
// MaxIterations].
func iterationCap(features models.FeatureFlags, configured int) int {
	cap := features.Int(maxIterationsFeature, configured)
	if cap <= 0 {
		// Zero and negative overrides mean unset, not "one iteration".
		cap = configured
	}
	if cap < MinIterations {
		cap = MinIterations
	}
	if cap > MaxIterations {
		cap = MaxIterations
	}
	return cap
}

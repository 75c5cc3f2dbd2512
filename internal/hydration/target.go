// Package hydration holds the hydration-target descriptors emitted during
// conversion and the client-runtime scheduler that progressively activates
// them.
package hydration

// State is a hydration target's lifecycle state. Hydrated and Cleaned are
// terminal for a given activation cycle.
type State string

const (
	StatePending   State = "pending"
	StateScheduled State = "scheduled"
	StateHydrating State = "hydrating"
	StateHydrated  State = "hydrated"
	StateFailed    State = "failed"
	StateCleaned   State = "cleaned"
)

// MarkerAttr is the attribute name the engine embeds in output markup to
// identify a hydration target's root element.
const MarkerAttr = "data-wpb-hydrate"

// Target describes one interactive element in the converted markup. Created
// once per conversion call; its State is owned and mutated exclusively by
// the Scheduler afterwards.
type Target struct {
	// ID is the stable marker identifier embedded in the markup. It is
	// derived deterministically from traversal order and block type, so
	// repeated conversions of unchanged input yield identical IDs.
	ID string `json:"id"`
	// BlockType is the source block's type identifier.
	BlockType string `json:"block_type"`
	// Index is the document-order position of the source block.
	Index int `json:"index"`
	// Priority marks membership of the configured priority-block list.
	// Priority targets hydrate before default ones when simultaneously
	// eligible.
	Priority bool `json:"priority"`
	// Strategy is resolved by the scheduler at scheduling time, never at
	// conversion time.
	Strategy string `json:"strategy,omitempty"`
	// State tracks the activation lifecycle.
	State State `json:"state"`

	attempts int
}

// Attempts returns how many activation attempts have been made.
func (t *Target) Attempts() int { return t.attempts }

// Terminal reports whether the target finished its activation cycle.
func (t *Target) Terminal() bool {
	return t.State == StateHydrated || t.State == StateCleaned
}

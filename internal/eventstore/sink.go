package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/madebyaris/wp-block-to-html/internal/hydration"
)

// TransitionSink adapts a Store to the scheduler's EventSink interface,
// recording every hydration state transition under one run ID.
type TransitionSink struct {
	store  Store
	runID  string
	logger *slog.Logger
}

// NewTransitionSink builds a sink appending to store under runID.
func NewTransitionSink(store Store, runID string, logger *slog.Logger) *TransitionSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &TransitionSink{store: store, runID: runID, logger: logger}
}

type transitionPayload struct {
	TargetID  string `json:"target_id"`
	BlockType string `json:"block_type"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// HydrationTransition implements hydration.EventSink.
func (ts *TransitionSink) HydrationTransition(id, blockType string, from, to hydration.State) {
	payload, err := json.Marshal(transitionPayload{
		TargetID:  id,
		BlockType: blockType,
		From:      string(from),
		To:        string(to),
	})
	if err != nil {
		ts.logger.Warn("encode hydration transition", "error", err)
		return
	}
	if err := ts.store.Append(context.Background(), ts.runID, TypeHydrationTransition, payload, nil); err != nil {
		ts.logger.Warn("append hydration transition", "target_id", id, "error", err)
	}
}

package hydration

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/metrics"
	"github.com/madebyaris/wp-block-to-html/internal/retry"
)

// TriggerSource abstracts an eligibility trigger (visibility observer,
// interaction listener, idle callback) behind a capability interface so the
// scheduler core is trigger-source-agnostic and testable without a real
// rendering surface.
type TriggerSource interface {
	// Observe registers onTrigger to fire when the element identified by
	// the marker id becomes eligible.
	Observe(id string, onTrigger func())
	// Unobserve tears down the registration for id.
	Unobserve(id string)
}

// Activator performs the synchronous activation step for one target. It
// must not call back into the scheduler.
type Activator func(t *Target) error

// Hooks are the scheduler's callback surface.
type Hooks struct {
	OnHydrationStart    func(id, blockType string)
	OnHydrationComplete func(id, blockType string)
	// OnError receives the activation error, target id, and block type, and
	// returns whether the target may be retried. Nil means retry.
	OnError func(err error, id, blockType string) bool
}

// EventSink receives target state transitions, e.g. for the event store.
type EventSink interface {
	HydrationTransition(id, blockType string, from, to State)
}

// Stats is a snapshot of scheduler progress.
type Stats struct {
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Hydrating int `json:"hydrating"`
	Hydrated  int `json:"hydrated"`
	Failed    int `json:"failed"`
	Cleaned   int `json:"cleaned"`
	Attempts  int `json:"attempts"`
	Retries   int `json:"retries"`
}

// Scheduler progressively activates hydration targets under the configured
// strategies. Execution is cooperative: every transition is serialized, so
// exactly one activation attempt is in flight for a given target at any
// time, enforced by state-gating. One target's failure never blocks or
// cancels any other target's progress.
type Scheduler struct {
	mu      sync.Mutex
	cfg     *config.HydrationConfig
	policy  retry.Policy
	targets map[string]*Target
	order   []*Target

	activator   Activator
	viewport    TriggerSource
	interaction TriggerSource
	idle        TriggerSource
	clock       clockwork.Clock
	logger      *slog.Logger
	rec         metrics.Recorder
	hooks       Hooks
	sink        EventSink

	ready         []*Target
	batchPending  bool
	cleanupTimers map[string]clockwork.Timer
	idleTimers    map[string]clockwork.Timer

	attempts int
	retries  int
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithActivator sets the activation step. The default marks targets hydrated
// without side effects.
func WithActivator(a Activator) SchedulerOption {
	return func(s *Scheduler) { s.activator = a }
}

// WithViewportSource sets the visibility trigger source.
func WithViewportSource(src TriggerSource) SchedulerOption {
	return func(s *Scheduler) { s.viewport = src }
}

// WithInteractionSource sets the interaction trigger source.
func WithInteractionSource(src TriggerSource) SchedulerOption {
	return func(s *Scheduler) { s.interaction = src }
}

// WithIdleSource sets the idle trigger source. Idle targets also hydrate
// after the configured fallback timeout when the source never fires.
func WithIdleSource(src TriggerSource) SchedulerOption {
	return func(s *Scheduler) { s.idle = src }
}

// WithClock substitutes the wall clock, for tests.
func WithClock(c clockwork.Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) SchedulerOption {
	return func(s *Scheduler) { s.rec = rec }
}

// WithHooks sets the callback surface.
func WithHooks(h Hooks) SchedulerOption {
	return func(s *Scheduler) { s.hooks = h }
}

// WithEventSink attaches a transition sink.
func WithEventSink(sink EventSink) SchedulerOption {
	return func(s *Scheduler) { s.sink = sink }
}

// NewScheduler builds a scheduler over the conversion's target list. The
// target records are the same descriptors the engine emitted; the scheduler
// owns their State from here on.
func NewScheduler(targets []*Target, cfg *config.HydrationConfig, opts ...SchedulerOption) (*Scheduler, error) {
	if cfg == nil {
		return nil, errors.NewConfigurationError("hydration config is required")
	}
	if cfg.BatchSize < 1 {
		return nil, errors.NewConfigurationError("batch_size must be >= 1")
	}
	s := &Scheduler{
		cfg:           cfg,
		policy:        cfg.RetryPolicy(),
		targets:       make(map[string]*Target, len(targets)),
		order:         make([]*Target, 0, len(targets)),
		clock:         clockwork.NewRealClock(),
		logger:        slog.Default(),
		rec:           metrics.NoopRecorder{},
		cleanupTimers: make(map[string]clockwork.Timer),
		idleTimers:    make(map[string]clockwork.Timer),
	}
	s.activator = func(*Target) error { return nil }
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range targets {
		if _, dup := s.targets[t.ID]; dup {
			return nil, errors.NewConfigurationError(fmt.Sprintf("duplicate target id %q", t.ID))
		}
		s.targets[t.ID] = t
		s.order = append(s.order, t)
	}
	sort.SliceStable(s.order, func(i, j int) bool { return s.order[i].Index < s.order[j].Index })
	return s, nil
}

// HydrateAll schedules every pending target under its resolved strategy.
// Immediate targets activate synchronously during this pass, in batches;
// the rest wait for their triggers.
func (s *Scheduler) HydrateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.order {
		if t.State == StatePending {
			s.scheduleLocked(t)
		}
	}
	s.drainLocked()
}

// HydrateTarget activates a single target now, regardless of its strategy.
func (s *Scheduler) HydrateTarget(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return errors.New(errors.CategoryHydration, errors.SeverityError, "unknown hydration target").WithContext("target_id", id)
	}
	switch t.State {
	case StatePending:
		s.scheduleLocked(t)
	case StateScheduled:
	default:
		return nil
	}
	s.detachLocked(t)
	s.activateLocked(t)
	return nil
}

// HydrateBatch schedules and activates the given targets, in batches.
func (s *Scheduler) HydrateBatch(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		t, ok := s.targets[id]
		if !ok {
			continue
		}
		switch t.State {
		case StatePending:
			s.scheduleLocked(t)
			s.detachLocked(t)
			s.enqueueLocked(t)
		case StateScheduled:
			s.detachLocked(t)
			s.enqueueLocked(t)
		}
	}
	s.drainLocked()
}

// Cleanup moves a target to Cleaned (unless already Hydrated) and tears
// down its observers and timers.
func (s *Scheduler) Cleanup(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok {
		return
	}
	s.detachLocked(t)
	if t.State == StateHydrated || t.State == StateCleaned {
		return
	}
	s.transitionLocked(t, StateCleaned)
	s.rec.IncHydrationOutcome("cleaned")
}

// CleanupAll cleans every target.
func (s *Scheduler) CleanupAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.order))
	for _, t := range s.order {
		ids = append(ids, t.ID)
	}
	s.mu.Unlock()
	for _, id := range ids {
		s.Cleanup(id)
	}
}

// IsHydrated reports whether the target finished hydrating.
func (s *Scheduler) IsHydrated(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	return ok && t.State == StateHydrated
}

// Target returns the live target record for id.
func (s *Scheduler) Target(id string) (*Target, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	return t, ok
}

// GetStats returns a snapshot of scheduler progress.
func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Attempts: s.attempts, Retries: s.retries}
	for _, t := range s.order {
		switch t.State {
		case StatePending:
			st.Pending++
		case StateScheduled:
			st.Scheduled++
		case StateHydrating:
			st.Hydrating++
		case StateHydrated:
			st.Hydrated++
		case StateFailed:
			st.Failed++
		case StateCleaned:
			st.Cleaned++
		}
	}
	return st
}

// resolveStrategy picks a target's strategy at scheduling time: the
// per-block override table first, then the user decision function, then the
// global default.
func (s *Scheduler) resolveStrategy(t *Target) config.Strategy {
	if st, ok := s.cfg.StrategyOverrides[t.BlockType]; ok {
		return st
	}
	if s.cfg.DecideStrategy != nil {
		if st := s.cfg.DecideStrategy(t.ID, t.BlockType, t.Index); st != "" {
			return st
		}
	}
	return s.cfg.Strategy
}

// scheduleLocked transitions Pending -> Scheduled and wires the strategy's
// trigger plumbing.
func (s *Scheduler) scheduleLocked(t *Target) {
	strategy := s.resolveStrategy(t)
	t.Strategy = string(strategy)
	s.transitionLocked(t, StateScheduled)

	switch strategy {
	case config.StrategyImmediate:
		s.enqueueLocked(t)
	case config.StrategyViewport:
		s.observeLocked(t, s.viewport, "viewport")
		s.armCleanupLocked(t)
	case config.StrategyInteraction:
		s.observeLocked(t, s.interaction, "interaction")
		s.armCleanupLocked(t)
	case config.StrategyIdle:
		if s.idle != nil {
			s.idle.Observe(t.ID, s.triggerFunc(t.ID))
		}
		id := t.ID
		s.idleTimers[id] = s.clock.AfterFunc(s.cfg.IdleTimeout, func() { s.onTrigger(id) })
	}
}

func (s *Scheduler) observeLocked(t *Target, src TriggerSource, kind string) {
	if src == nil {
		s.logger.Warn("no trigger source configured; target stays scheduled until triggered explicitly",
			"target_id", t.ID, "strategy", kind)
		return
	}
	src.Observe(t.ID, s.triggerFunc(t.ID))
}

func (s *Scheduler) triggerFunc(id string) func() {
	return func() { s.onTrigger(id) }
}

// armCleanupLocked starts the auto-cleanup countdown for a waiting
// viewport/interaction target. If it fires while the target is still merely
// Scheduled, the observer is torn down and the target returns to Pending,
// avoiding wasted activation work.
func (s *Scheduler) armCleanupLocked(t *Target) {
	if !s.cfg.AutoCleanup {
		return
	}
	id := t.ID
	s.cleanupTimers[id] = s.clock.AfterFunc(s.cfg.CleanupDelay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.targets[id]
		if !ok || t.State != StateScheduled {
			return
		}
		s.detachLocked(t)
		s.transitionLocked(t, StatePending)
		s.logger.Debug("auto-cleanup returned target to pending", "target_id", id)
	})
}

// onTrigger is the single entry point for every trigger source and idle
// fallback timer. State-gating makes duplicate or late triggers harmless.
func (s *Scheduler) onTrigger(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.targets[id]
	if !ok || t.State != StateScheduled {
		return
	}
	s.detachLocked(t)
	s.enqueueLocked(t)
	s.drainLocked()
}

// detachLocked tears down a target's observers and timers.
func (s *Scheduler) detachLocked(t *Target) {
	if s.viewport != nil {
		s.viewport.Unobserve(t.ID)
	}
	if s.interaction != nil {
		s.interaction.Unobserve(t.ID)
	}
	if s.idle != nil {
		s.idle.Unobserve(t.ID)
	}
	if timer, ok := s.cleanupTimers[t.ID]; ok {
		timer.Stop()
		delete(s.cleanupTimers, t.ID)
	}
	if timer, ok := s.idleTimers[t.ID]; ok {
		timer.Stop()
		delete(s.idleTimers, t.ID)
	}
}

func (s *Scheduler) enqueueLocked(t *Target) {
	for _, q := range s.ready {
		if q == t {
			return
		}
	}
	s.ready = append(s.ready, t)
}

// drainLocked activates ready targets in batches. Work per tick is bounded
// by the configured batch size; the remainder resumes after the inter-batch
// delay, yielding the host thread between groups. Among simultaneously
// eligible targets, priority-list membership wins, then document order.
func (s *Scheduler) drainLocked() {
	if len(s.ready) == 0 || s.batchPending {
		return
	}
	sort.SliceStable(s.ready, func(i, j int) bool {
		if s.ready[i].Priority != s.ready[j].Priority {
			return s.ready[i].Priority
		}
		return s.ready[i].Index < s.ready[j].Index
	})
	n := s.cfg.BatchSize
	if n > len(s.ready) {
		n = len(s.ready)
	}
	batch := s.ready[:n]
	s.ready = append([]*Target(nil), s.ready[n:]...)
	for _, t := range batch {
		if t.State == StateScheduled {
			s.activateLocked(t)
		}
	}
	if len(s.ready) > 0 {
		s.batchPending = true
		s.clock.AfterFunc(s.cfg.BatchDelay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.batchPending = false
			s.drainLocked()
		})
	}
}

// activateLocked runs one synchronous activation attempt:
// Scheduled -> Hydrating -> Hydrated, or -> Failed with bounded retry.
func (s *Scheduler) activateLocked(t *Target) {
	if t.State != StateScheduled {
		return
	}
	s.transitionLocked(t, StateHydrating)
	t.attempts++
	s.attempts++
	if s.hooks.OnHydrationStart != nil {
		s.hooks.OnHydrationStart(t.ID, t.BlockType)
	}
	err := s.activator(t)
	if err == nil {
		s.transitionLocked(t, StateHydrated)
		s.rec.IncHydrationOutcome("hydrated")
		if s.hooks.OnHydrationComplete != nil {
			s.hooks.OnHydrationComplete(t.ID, t.BlockType)
		}
		return
	}

	herr := errors.NewHydrationError(t.ID, t.BlockType, err)
	s.transitionLocked(t, StateFailed)
	retryWanted := true
	if s.hooks.OnError != nil {
		retryWanted = s.hooks.OnError(herr, t.ID, t.BlockType)
	}
	if retryWanted && t.attempts <= s.policy.MaxRetries {
		s.retries++
		s.rec.IncHydrationRetry()
		id := t.ID
		delay := s.policy.Delay(t.attempts)
		s.clock.AfterFunc(delay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			t, ok := s.targets[id]
			if !ok || t.State != StateFailed {
				return
			}
			s.transitionLocked(t, StateScheduled)
			s.enqueueLocked(t)
			s.drainLocked()
		})
		return
	}
	// Permanently failed: reported, never retried further. The element
	// degrades to static content; no other target is affected.
	s.rec.IncHydrationOutcome("failed")
	s.logger.Error("hydration failed permanently",
		"target_id", t.ID, "block_type", t.BlockType,
		"attempts", t.attempts, "error", herr)
}

func (s *Scheduler) transitionLocked(t *Target, to State) {
	from := t.State
	t.State = to
	if s.sink != nil {
		s.sink.HydrationTransition(t.ID, t.BlockType, from, to)
	}
}

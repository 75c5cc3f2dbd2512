package hydration

import (
	gerrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madebyaris/wp-block-to-html/internal/config"
	"github.com/madebyaris/wp-block-to-html/internal/errors"
	"github.com/madebyaris/wp-block-to-html/internal/retry"
)

// fakeSource is an in-memory TriggerSource driven explicitly by tests.
type fakeSource struct {
	mu        sync.Mutex
	observers map[string]func()
}

func newFakeSource() *fakeSource {
	return &fakeSource{observers: make(map[string]func())}
}

func (f *fakeSource) Observe(id string, onTrigger func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers[id] = onTrigger
}

func (f *fakeSource) Unobserve(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.observers, id)
}

func (f *fakeSource) Observing(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.observers[id]
	return ok
}

// Fire simulates the trigger (visibility, interaction, idle) for id.
func (f *fakeSource) Fire(id string) {
	f.mu.Lock()
	fn := f.observers[id]
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// recorder collects activation order and hook invocations, safely across the
// timer callback goroutines the fake clock spawns.
type recorder struct {
	mu        sync.Mutex
	activated []string
	started   []string
	completed []string
	errored   []string
}

func (r *recorder) activate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activated = append(r.activated, id)
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.activated...)
}

func (r *recorder) hooks() Hooks {
	return Hooks{
		OnHydrationStart: func(id, blockType string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.started = append(r.started, id)
		},
		OnHydrationComplete: func(id, blockType string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completed = append(r.completed, id)
		},
		OnError: func(err error, id, blockType string) bool {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errored = append(r.errored, id)
			return true
		},
	}
}

func (r *recorder) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errored)
}

func testConfig() *config.HydrationConfig {
	return &config.HydrationConfig{
		Strategy:      config.StrategyImmediate,
		BatchSize:     10,
		BatchDelay:    50 * time.Millisecond,
		IdleTimeout:   2 * time.Second,
		CleanupDelay:  10 * time.Second,
		RetryAttempts: 2,
		RetryDelay:    250 * time.Millisecond,
		RetryBackoff:  retry.BackoffFixed,
		RetryMaxDelay: 5 * time.Second,
	}
}

func makeTargets(n int) []*Target {
	out := make([]*Target, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Target{
			ID:        fmt.Sprintf("h%d-core-button", i),
			BlockType: "core/button",
			Index:     i,
			State:     StatePending,
		})
	}
	return out
}

func TestHydrateAllImmediate(t *testing.T) {
	targets := makeTargets(3)
	rec := &recorder{}
	s, err := NewScheduler(targets, testConfig(),
		WithActivator(func(tg *Target) error { rec.activate(tg.ID); return nil }),
		WithHooks(rec.hooks()))
	require.NoError(t, err)

	s.HydrateAll()

	st := s.GetStats()
	assert.Equal(t, 3, st.Hydrated)
	assert.Equal(t, 0, st.Pending)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, 0, st.Retries)
	// Document order among equal-priority immediate targets.
	assert.Equal(t, []string{targets[0].ID, targets[1].ID, targets[2].ID}, rec.order())
	assert.True(t, s.IsHydrated(targets[1].ID))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.started, 3)
	assert.Len(t, rec.completed, 3)
	assert.Empty(t, rec.errored)
}

func TestViewportWaitsForTrigger(t *testing.T) {
	targets := makeTargets(2)
	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	viewport := newFakeSource()

	s, err := NewScheduler(targets, cfg, WithViewportSource(viewport))
	require.NoError(t, err)

	s.HydrateAll()

	st := s.GetStats()
	assert.Equal(t, 2, st.Scheduled)
	assert.Equal(t, 0, st.Hydrated)
	assert.True(t, viewport.Observing(targets[0].ID))

	viewport.Fire(targets[0].ID)
	assert.True(t, s.IsHydrated(targets[0].ID))
	assert.False(t, s.IsHydrated(targets[1].ID))
	// Observer torn down after activation.
	assert.False(t, viewport.Observing(targets[0].ID))

	// Duplicate/late triggers are harmless: state-gating ignores them.
	viewport.Fire(targets[0].ID)
	tg, ok := s.Target(targets[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, tg.Attempts())
}

func TestImmediateActivatesBeforeUntriggeredViewport(t *testing.T) {
	// A: priority, viewport strategy, visibility trigger not yet fired.
	// B: default priority, immediate strategy.
	a := &Target{ID: "h0-acme-map", BlockType: "acme/map", Index: 0, Priority: true, State: StatePending}
	b := &Target{ID: "h1-core-button", BlockType: "core/button", Index: 1, State: StatePending}

	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	cfg.StrategyOverrides = map[string]config.Strategy{"core/button": config.StrategyImmediate}

	viewport := newFakeSource()
	rec := &recorder{}
	s, err := NewScheduler([]*Target{a, b}, cfg,
		WithActivator(func(tg *Target) error { rec.activate(tg.ID); return nil }),
		WithViewportSource(viewport))
	require.NoError(t, err)

	s.HydrateAll()

	// B is eligible first: it activates ahead of the higher-priority A.
	assert.Equal(t, []string{b.ID}, rec.order())

	viewport.Fire(a.ID)
	assert.Equal(t, []string{b.ID, a.ID}, rec.order())
}

func TestPriorityBeatsDocumentOrderWhenSimultaneouslyEligible(t *testing.T) {
	early := &Target{ID: "h0-core-button", BlockType: "core/button", Index: 0, State: StatePending}
	late := &Target{ID: "h5-core-video", BlockType: "core/video", Index: 5, Priority: true, State: StatePending}
	mid := &Target{ID: "h3-core-embed", BlockType: "core/embed", Index: 3, State: StatePending}

	rec := &recorder{}
	s, err := NewScheduler([]*Target{early, late, mid}, testConfig(),
		WithActivator(func(tg *Target) error { rec.activate(tg.ID); return nil }))
	require.NoError(t, err)

	s.HydrateAll()

	// All three eligible at once: priority first, then document order.
	assert.Equal(t, []string{late.ID, early.ID, mid.ID}, rec.order())
}

func TestBatchingYieldsBetweenGroups(t *testing.T) {
	targets := makeTargets(5)
	cfg := testConfig()
	cfg.BatchSize = 2
	clock := clockwork.NewFakeClock()

	s, err := NewScheduler(targets, cfg, WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	st := s.GetStats()
	assert.Equal(t, 2, st.Hydrated, "only one batch per tick")
	assert.Equal(t, 3, st.Scheduled)

	clock.Advance(cfg.BatchDelay)
	require.Eventually(t, func() bool { return s.GetStats().Hydrated == 4 },
		time.Second, time.Millisecond)

	clock.Advance(cfg.BatchDelay)
	require.Eventually(t, func() bool { return s.GetStats().Hydrated == 5 },
		time.Second, time.Millisecond)
}

func TestRetryBoundedAttempts(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	clock := clockwork.NewFakeClock()
	rec := &recorder{}

	s, err := NewScheduler(targets, cfg,
		WithActivator(func(tg *Target) error { return gerrors.New("activation broke") }),
		WithHooks(rec.hooks()),
		WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	assert.Equal(t, 1, rec.errorCount())
	assert.Equal(t, StateFailed, targetState(t, s, targets[0].ID))

	clock.Advance(cfg.RetryDelay)
	require.Eventually(t, func() bool { return rec.errorCount() == 2 },
		time.Second, time.Millisecond)

	clock.Advance(cfg.RetryDelay)
	require.Eventually(t, func() bool { return rec.errorCount() == 3 },
		time.Second, time.Millisecond)

	// retry_attempts=2 bounds the target to 3 total attempts; further time
	// passing changes nothing.
	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, rec.errorCount())

	tg, ok := s.Target(targets[0].ID)
	require.True(t, ok)
	assert.Equal(t, 3, tg.Attempts())

	st := s.GetStats()
	assert.Equal(t, 1, st.Failed)
	assert.Equal(t, 3, st.Attempts)
	assert.Equal(t, 2, st.Retries)
	assert.False(t, s.IsHydrated(targets[0].ID))
}

// targetState reads a target's state under the scheduler lock.
func targetState(t *testing.T, s *Scheduler, id string) State {
	t.Helper()
	tg, ok := s.Target(id)
	require.True(t, ok)
	s.mu.Lock()
	defer s.mu.Unlock()
	return tg.State
}

func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	clock := clockwork.NewFakeClock()

	var mu sync.Mutex
	calls := 0
	s, err := NewScheduler(targets, cfg,
		WithActivator(func(tg *Target) error {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls == 1 {
				return gerrors.New("transient")
			}
			return nil
		}),
		WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	assert.False(t, s.IsHydrated(targets[0].ID))

	clock.Advance(cfg.RetryDelay)
	require.Eventually(t, func() bool { return s.IsHydrated(targets[0].ID) },
		time.Second, time.Millisecond)

	st := s.GetStats()
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, 1, st.Retries)
	assert.Equal(t, 1, st.Hydrated)
	assert.Equal(t, 0, st.Failed)
}

func TestOnErrorVetoStopsRetry(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	clock := clockwork.NewFakeClock()

	s, err := NewScheduler(targets, cfg,
		WithActivator(func(tg *Target) error { return gerrors.New("fatal") }),
		WithHooks(Hooks{OnError: func(err error, id, blockType string) bool { return false }}),
		WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)

	tg, ok := s.Target(targets[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, tg.Attempts())
	assert.Equal(t, 1, s.GetStats().Failed)
	assert.Equal(t, 0, s.GetStats().Retries)
}

func TestFailureIsolation(t *testing.T) {
	targets := makeTargets(3)
	s, err := NewScheduler(targets, testConfig(),
		WithActivator(func(tg *Target) error {
			if tg.ID == targets[1].ID {
				return gerrors.New("broken block")
			}
			return nil
		}),
		WithHooks(Hooks{OnError: func(error, string, string) bool { return false }}))
	require.NoError(t, err)

	s.HydrateAll()

	// One target's failure never blocks the others.
	assert.True(t, s.IsHydrated(targets[0].ID))
	assert.False(t, s.IsHydrated(targets[1].ID))
	assert.True(t, s.IsHydrated(targets[2].ID))
}

func TestAutoCleanupReturnsScheduledToPending(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	cfg.AutoCleanup = true
	clock := clockwork.NewFakeClock()
	viewport := newFakeSource()

	s, err := NewScheduler(targets, cfg,
		WithViewportSource(viewport),
		WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	assert.Equal(t, 1, s.GetStats().Scheduled)
	assert.True(t, viewport.Observing(targets[0].ID))

	clock.Advance(cfg.CleanupDelay)
	require.Eventually(t, func() bool { return s.GetStats().Pending == 1 },
		time.Second, time.Millisecond)

	// Observer removed with the countdown; a late trigger does nothing.
	assert.False(t, viewport.Observing(targets[0].ID))
	viewport.Fire(targets[0].ID)
	assert.Equal(t, 1, s.GetStats().Pending)

	// The target can be rescheduled afterwards.
	s.HydrateAll()
	assert.Equal(t, 1, s.GetStats().Scheduled)
	assert.True(t, viewport.Observing(targets[0].ID))
}

func TestAutoCleanupCancelledByTrigger(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	cfg.AutoCleanup = true
	clock := clockwork.NewFakeClock()
	viewport := newFakeSource()

	s, err := NewScheduler(targets, cfg,
		WithViewportSource(viewport),
		WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	viewport.Fire(targets[0].ID)
	assert.True(t, s.IsHydrated(targets[0].ID))

	// The cleanup countdown was stopped on activation; firing it late must
	// not disturb the hydrated target.
	clock.Advance(cfg.CleanupDelay)
	time.Sleep(10 * time.Millisecond)
	assert.True(t, s.IsHydrated(targets[0].ID))
}

func TestIdleFallbackTimeout(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	cfg.Strategy = config.StrategyIdle
	clock := clockwork.NewFakeClock()

	// No idle source configured: the fallback timer alone must hydrate.
	s, err := NewScheduler(targets, cfg, WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	assert.Equal(t, 1, s.GetStats().Scheduled)

	clock.Advance(cfg.IdleTimeout)
	require.Eventually(t, func() bool { return s.IsHydrated(targets[0].ID) },
		time.Second, time.Millisecond)
}

func TestIdleSourceBeatsFallbackTimer(t *testing.T) {
	targets := makeTargets(1)
	cfg := testConfig()
	cfg.Strategy = config.StrategyIdle
	clock := clockwork.NewFakeClock()
	idle := newFakeSource()

	s, err := NewScheduler(targets, cfg, WithIdleSource(idle), WithClock(clock))
	require.NoError(t, err)

	s.HydrateAll()
	idle.Fire(targets[0].ID)
	assert.True(t, s.IsHydrated(targets[0].ID))

	// The fallback timer was stopped; its window elapsing is a no-op.
	clock.Advance(cfg.IdleTimeout)
	time.Sleep(10 * time.Millisecond)
	tg, _ := s.Target(targets[0].ID)
	assert.Equal(t, 1, tg.Attempts())
}

func TestHydrateTargetForcesActivation(t *testing.T) {
	targets := makeTargets(2)
	cfg := testConfig()
	cfg.Strategy = config.StrategyInteraction
	interaction := newFakeSource()

	s, err := NewScheduler(targets, cfg, WithInteractionSource(interaction))
	require.NoError(t, err)

	s.HydrateAll()
	require.NoError(t, s.HydrateTarget(targets[0].ID))
	assert.True(t, s.IsHydrated(targets[0].ID))
	assert.False(t, interaction.Observing(targets[0].ID))
	assert.False(t, s.IsHydrated(targets[1].ID))

	// Forcing an already-hydrated target is a no-op.
	require.NoError(t, s.HydrateTarget(targets[0].ID))
	tg, _ := s.Target(targets[0].ID)
	assert.Equal(t, 1, tg.Attempts())
}

func TestHydrateTargetUnknown(t *testing.T) {
	s, err := NewScheduler(nil, testConfig())
	require.NoError(t, err)
	err = s.HydrateTarget("h9-missing")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryHydration))
}

func TestHydrateBatch(t *testing.T) {
	targets := makeTargets(4)
	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	viewport := newFakeSource()

	s, err := NewScheduler(targets, cfg, WithViewportSource(viewport))
	require.NoError(t, err)

	s.HydrateBatch([]string{targets[2].ID, targets[0].ID, "h9-unknown"})

	assert.True(t, s.IsHydrated(targets[0].ID))
	assert.True(t, s.IsHydrated(targets[2].ID))
	assert.Equal(t, 2, s.GetStats().Hydrated)
	assert.Equal(t, 2, s.GetStats().Pending)
}

func TestCleanup(t *testing.T) {
	targets := makeTargets(3)
	cfg := testConfig()
	cfg.Strategy = config.StrategyViewport
	viewport := newFakeSource()

	s, err := NewScheduler(targets, cfg, WithViewportSource(viewport))
	require.NoError(t, err)

	s.HydrateAll()
	viewport.Fire(targets[0].ID)
	require.True(t, s.IsHydrated(targets[0].ID))

	s.Cleanup(targets[1].ID)
	tg, _ := s.Target(targets[1].ID)
	assert.Equal(t, StateCleaned, tg.State)
	assert.True(t, tg.Terminal())
	assert.False(t, viewport.Observing(targets[1].ID))

	// Cleanup never demotes a hydrated target.
	s.Cleanup(targets[0].ID)
	assert.True(t, s.IsHydrated(targets[0].ID))

	s.CleanupAll()
	st := s.GetStats()
	assert.Equal(t, 1, st.Hydrated)
	assert.Equal(t, 2, st.Cleaned)
}

func TestDuplicateTargetIDRejected(t *testing.T) {
	dup := []*Target{
		{ID: "h0-core-button", BlockType: "core/button", State: StatePending},
		{ID: "h0-core-button", BlockType: "core/button", State: StatePending},
	}
	_, err := NewScheduler(dup, testConfig())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestStrategyResolutionPrecedence(t *testing.T) {
	a := &Target{ID: "h0-core-button", BlockType: "core/button", Index: 0, State: StatePending}
	b := &Target{ID: "h1-core-video", BlockType: "core/video", Index: 1, State: StatePending}
	c := &Target{ID: "h2-core-embed", BlockType: "core/embed", Index: 2, State: StatePending}

	cfg := testConfig()
	cfg.Strategy = config.StrategyImmediate
	cfg.StrategyOverrides = map[string]config.Strategy{"core/button": config.StrategyInteraction}
	cfg.DecideStrategy = func(id, blockType string, index int) config.Strategy {
		if blockType == "core/video" {
			return config.StrategyViewport
		}
		return ""
	}

	viewport := newFakeSource()
	interaction := newFakeSource()
	s, err := NewScheduler([]*Target{a, b, c}, cfg,
		WithViewportSource(viewport),
		WithInteractionSource(interaction))
	require.NoError(t, err)

	s.HydrateAll()

	// Override table beats the decision function beats the global default.
	tg, _ := s.Target(a.ID)
	assert.Equal(t, string(config.StrategyInteraction), tg.Strategy)
	tg, _ = s.Target(b.ID)
	assert.Equal(t, string(config.StrategyViewport), tg.Strategy)
	// No override, decision function abstained: global default applies.
	assert.True(t, s.IsHydrated(c.ID))
	tg, _ = s.Target(c.ID)
	assert.Equal(t, string(config.StrategyImmediate), tg.Strategy)
}

// sinkRecorder collects transitions for sink assertions.
type sinkRecorder struct {
	mu          sync.Mutex
	transitions []string
}

func (r *sinkRecorder) HydrationTransition(id, blockType string, from, to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, fmt.Sprintf("%s:%s->%s", id, from, to))
}

func TestEventSinkReceivesTransitions(t *testing.T) {
	targets := makeTargets(1)
	sink := &sinkRecorder{}
	s, err := NewScheduler(targets, testConfig(), WithEventSink(sink))
	require.NoError(t, err)

	s.HydrateAll()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{
		"h0-core-button:pending->scheduled",
		"h0-core-button:scheduled->hydrating",
		"h0-core-button:hydrating->hydrated",
	}, sink.transitions)
}

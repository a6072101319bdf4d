package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memochat/inbox"
	"memochat/models"
)

type scriptedReconstructor struct {
	mu      sync.Mutex
	calls   int
	results []scriptedResult
	block   chan struct{}
	// blockFrom is the first call index that waits on block.
	blockFrom int
}

type scriptedResult struct {
	messages []models.Message
	err      error
}

func (s *scriptedReconstructor) Reconstruct(ctx context.Context, _ inbox.Query) (inbox.Result, error) {
	s.mu.Lock()
	idx := s.calls
	s.calls++
	block := s.block
	if idx < s.blockFrom {
		block = nil
	}
	var next scriptedResult
	if idx < len(s.results) {
		next = s.results[idx]
	} else if len(s.results) > 0 {
		next = s.results[len(s.results)-1]
	}
	s.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return inbox.Result{}, ctx.Err()
		}
	}

	if next.err != nil {
		return inbox.Result{}, next.err
	}
	return inbox.Result{Messages: next.messages, Registry: models.NewIdentityRegistry(nil)}, nil
}

func (s *scriptedReconstructor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// manualClock hands out wait channels the test fires explicitly.
type manualClock struct {
	mu     sync.Mutex
	delays []time.Duration
	waits  []chan time.Time
}

func (c *manualClock) after(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	c.delays = append(c.delays, d)
	c.waits = append(c.waits, ch)
	return ch
}

func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waits)
}

func (c *manualClock) fire() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits[len(c.waits)-1] <- time.Now()
}

func (c *manualClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

func message(signature string) models.Message {
	return models.Message{Signature: signature, SenderAddress: "bob", RecipientAddress: "alice", Nonce: []byte{1}}
}

func newTestPoller(t *testing.T, rec Reconstructor, clock *manualClock) *Poller {
	t.Helper()
	p, err := New(Config{
		Reconstructor: rec,
		Query:         inbox.Query{Address: "alice"},
		Local:         inbox.LocalIdentity{Address: "alice"},
		Interval:      30 * time.Second,
		Jitter:        10 * time.Second,
		after:         clock.after,
		jitter:        func(max time.Duration) time.Duration { return max / 2 },
	})
	require.NoError(t, err)
	return p
}

func TestPollerRunsImmediatelyThenOnSchedule(t *testing.T) {
	rec := &scriptedReconstructor{results: []scriptedResult{
		{messages: []models.Message{message("s1")}},
		{messages: []models.Message{message("s1"), message("s2")}},
	}}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitForCondition(t, time.Second, func() bool { return clock.pending() == 1 })
	snap := p.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.False(t, snap.Loading)
	assert.NotEmpty(t, snap.CycleID)
	// Invalid nonce still yields a placeholder entry, not a dropped message.
	assert.Equal(t, inbox.PlaceholderInvalidNonce, snap.Messages[0].DecryptedContent)

	clock.fire()
	waitForCondition(t, time.Second, func() bool { return len(p.Snapshot().Messages) == 2 })
	waitForCondition(t, time.Second, func() bool { return clock.pending() == 2 })

	for _, d := range clock.recorded() {
		assert.Equal(t, 35*time.Second, d, "delay is interval plus jitter")
	}
}

func TestPollerFailureKeepsPreviousMessages(t *testing.T) {
	rec := &scriptedReconstructor{results: []scriptedResult{
		{messages: []models.Message{message("s1"), message("s2")}},
		{err: errors.New("signature list unavailable")},
		{messages: []models.Message{message("s3")}},
	}}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())
	defer p.Stop()

	waitForCondition(t, time.Second, func() bool { return len(p.Snapshot().Messages) == 2 })
	first := p.Snapshot()

	err := p.Refresh(context.Background())
	require.Error(t, err)

	snap := p.Snapshot()
	assert.Error(t, snap.Err)
	assert.Equal(t, first.Messages, snap.Messages)
	assert.Equal(t, first.CycleID, snap.CycleID)

	require.NoError(t, p.Refresh(context.Background()))
	snap = p.Snapshot()
	assert.NoError(t, snap.Err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "s3", snap.Messages[0].Signature)
}

func TestPollerStopCancelsPendingWait(t *testing.T) {
	rec := &scriptedReconstructor{results: []scriptedResult{{messages: []models.Message{message("s1")}}}}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())

	waitForCondition(t, time.Second, func() bool { return clock.pending() == 1 })

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Stop did not return while a wait was pending")
	}

	assert.Equal(t, 1, rec.callCount())
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrStopped)
	assert.ErrorIs(t, p.Start(), ErrStopped)
	p.Stop()
}

func TestPollerDiscardsInFlightCycleOnStop(t *testing.T) {
	rec := &scriptedReconstructor{
		results: []scriptedResult{{messages: []models.Message{message("late")}}},
		block:   make(chan struct{}),
	}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())

	waitForCondition(t, time.Second, func() bool { return rec.callCount() == 1 })
	p.Stop()

	snap := p.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.Loading)
	assert.Equal(t, 0, clock.pending(), "no further cycle is scheduled after stop")
}

func TestPollerStartRacingStopLeavesNothingRunning(t *testing.T) {
	rec := &scriptedReconstructor{results: []scriptedResult{{messages: []models.Message{message("s1")}}}}
	clock := &manualClock{}

	for i := 0; i < 50; i++ {
		p := newTestPoller(t, rec, clock)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Start(); err != nil {
				assert.ErrorIs(t, err, ErrStopped)
			}
		}()
		p.Stop()
		wg.Wait()
		p.Stop()
	}

	calls, waits := rec.callCount(), clock.pending()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, rec.callCount(), "no cycle runs after stop")
	assert.Equal(t, waits, clock.pending(), "no wait is scheduled after stop")
}

func TestPollerRefreshCancelledByCallerKeepsSnapshot(t *testing.T) {
	rec := &scriptedReconstructor{
		results:   []scriptedResult{{messages: []models.Message{message("s1")}}},
		block:     make(chan struct{}),
		blockFrom: 1,
	}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())
	t.Cleanup(p.Stop)

	first := <-p.Events()
	require.Equal(t, EventCycleCompleted, first.Type)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Refresh(ctx) }()

	waitForCondition(t, time.Second, func() bool { return rec.callCount() == 2 })
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	waitForCondition(t, time.Second, func() bool { return !p.Snapshot().Loading })
	waitForCondition(t, time.Second, func() bool { return clock.pending() == 2 })

	snap := p.Snapshot()
	assert.NoError(t, snap.Err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "s1", snap.Messages[0].Signature)
	assert.Equal(t, first.CycleID, snap.CycleID)

	select {
	case ev := <-p.Events():
		t.Fatalf("unexpected event %s", ev.Type)
	default:
	}
}

func TestPollerEvents(t *testing.T) {
	rec := &scriptedReconstructor{results: []scriptedResult{
		{messages: []models.Message{message("s1")}},
		{err: errors.New("boom")},
	}}
	clock := &manualClock{}
	p := newTestPoller(t, rec, clock)
	require.NoError(t, p.Start())

	first := <-p.Events()
	assert.Equal(t, EventCycleCompleted, first.Type)
	assert.Equal(t, 1, first.Messages)

	_ = p.Refresh(context.Background())
	second := <-p.Events()
	assert.Equal(t, EventCycleFailed, second.Type)
	assert.Error(t, second.Err)

	p.Stop()
	_, open := <-p.Events()
	assert.False(t, open, "events channel closes on stop")
}

func TestPollerRefreshBeforeStart(t *testing.T) {
	p := newTestPoller(t, &scriptedReconstructor{}, &manualClock{})
	assert.ErrorIs(t, p.Refresh(context.Background()), ErrNotStarted)
}

func TestNewRequiresReconstructorAndAddress(t *testing.T) {
	_, err := New(Config{Query: inbox.Query{Address: "alice"}})
	assert.Error(t, err)
	_, err = New(Config{Reconstructor: &scriptedReconstructor{}})
	assert.Error(t, err)
}

func TestRandomJitterBounds(t *testing.T) {
	assert.Equal(t, time.Duration(0), randomJitter(0))
	for i := 0; i < 100; i++ {
		d := randomJitter(10 * time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 10*time.Second)
	}
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met before timeout %s", timeout)
}

// Package poller keeps a decrypted message snapshot fresh by re-running the
// inbox pipeline on a jittered schedule.
package poller

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"memochat/inbox"
	"memochat/models"
)

const (
	// DefaultInterval is the base delay between cycles.
	DefaultInterval = 30 * time.Second
	// DefaultJitter is the upper bound of the random delay added per cycle.
	DefaultJitter = 10 * time.Second

	// EventCycleCompleted is emitted after a successful cycle.
	EventCycleCompleted EventType = "cycle_completed"
	// EventCycleFailed is emitted when a cycle could not list signatures.
	EventCycleFailed EventType = "cycle_failed"
)

var (
	// ErrNotStarted is returned by Refresh before Start.
	ErrNotStarted = errors.New("poller: not started")
	// ErrStopped is returned once the poller has been stopped.
	ErrStopped = errors.New("poller: stopped")
)

// EventType identifies poller updates.
type EventType string

// Event reports the outcome of one cycle.
type Event struct {
	Type     EventType
	CycleID  string
	Messages int
	Err      error
}

// Reconstructor is the pipeline the poller drives. *inbox.Reconstructor implements it.
type Reconstructor interface {
	Reconstruct(ctx context.Context, q inbox.Query) (inbox.Result, error)
}

var _ Reconstructor = (*inbox.Reconstructor)(nil)

// Snapshot is the consumer-visible state. It changes only at cycle end.
type Snapshot struct {
	Messages []models.DecryptedMessage
	Registry models.IdentityRegistry
	// Err is the last cycle failure. Messages and Registry still hold the
	// last successful result when it is set.
	Err       error
	Loading   bool
	UpdatedAt time.Time
	CycleID   string
}

type afterFunc func(d time.Duration) <-chan time.Time
type jitterFunc func(max time.Duration) time.Duration

// Config controls poller behavior.
type Config struct {
	Reconstructor Reconstructor
	Decryptor     *inbox.Decryptor
	Query         inbox.Query
	Local         inbox.LocalIdentity

	Interval time.Duration
	// Jitter bounds the random extra delay. Negative disables jitter.
	Jitter time.Duration

	Logger *zap.Logger

	after  afterFunc
	jitter jitterFunc
	now    func() time.Time
}

func (c Config) withDefaults() Config {
	out := c
	if out.Interval <= 0 {
		out.Interval = DefaultInterval
	}
	if out.Jitter == 0 {
		out.Jitter = DefaultJitter
	}
	if out.Jitter < 0 {
		out.Jitter = 0
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Decryptor == nil {
		out.Decryptor = inbox.NewDecryptor(out.Logger)
	}
	if out.after == nil {
		out.after = time.After
	}
	if out.jitter == nil {
		out.jitter = randomJitter
	}
	if out.now == nil {
		out.now = time.Now
	}
	return out
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

type refreshRequest struct {
	ctx  context.Context
	done chan error
}

// Poller runs reconstruct and decrypt cycles on one goroutine so cycles never overlap.
type Poller struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	stopped  bool

	events chan Event

	startOnce sync.Once
	stopOnce  sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	refreshRequests chan refreshRequest
}

// New creates a poller with config defaults applied.
func New(config Config) (*Poller, error) {
	cfg := config.withDefaults()
	if cfg.Reconstructor == nil {
		return nil, errors.New("reconstructor is required")
	}
	if cfg.Query.Address == "" {
		return nil, errors.New("query address is required")
	}

	return &Poller{
		cfg:             cfg,
		logger:          cfg.Logger.Named("poller"),
		events:          make(chan Event, 64),
		refreshRequests: make(chan refreshRequest),
	}, nil
}

// Start runs the first cycle immediately and schedules the rest.
func (p *Poller) Start() error {
	p.mu.RLock()
	stopped := p.stopped
	p.mu.RUnlock()
	if stopped {
		return ErrStopped
	}

	var err error
	p.startOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		// Stop may have won the race since the check above.
		if p.stopped {
			err = ErrStopped
			return
		}
		p.ctx, p.cancel = context.WithCancel(context.Background())
		p.snapshot.Loading = true

		p.wg.Add(1)
		go p.loop()
	})
	return err
}

// Stop cancels any pending wait and in-flight cycle. The snapshot does not
// change after Stop returns. Stop is idempotent.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		p.snapshot.Loading = false
		cancel := p.cancel
		p.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		p.wg.Wait()
		close(p.events)
	})
}

// Events provides cycle outcomes. Sends never block; slow readers miss events.
func (p *Poller) Events() <-chan Event {
	return p.events
}

// Snapshot returns the current state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := p.snapshot
	out.Messages = append([]models.DecryptedMessage(nil), p.snapshot.Messages...)
	return out
}

// Refresh runs a cycle now and waits for it. The loop services the request,
// so it never overlaps a scheduled cycle.
func (p *Poller) Refresh(ctx context.Context) error {
	p.mu.RLock()
	loopCtx, stopped := p.ctx, p.stopped
	p.mu.RUnlock()
	if stopped {
		return ErrStopped
	}
	if loopCtx == nil {
		return ErrNotStarted
	}

	req := refreshRequest{
		ctx:  ctx,
		done: make(chan error, 1),
	}

	select {
	case p.refreshRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-loopCtx.Done():
		return ErrStopped
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-loopCtx.Done():
		return ErrStopped
	}
}

func (p *Poller) loop() {
	defer p.wg.Done()

	p.runCycle(nil)

	for {
		if p.ctx.Err() != nil {
			return
		}

		delay := p.cfg.Interval + p.cfg.jitter(p.cfg.Jitter)
		wait := p.cfg.after(delay)

		select {
		case <-wait:
			p.runCycle(nil)
		case req := <-p.refreshRequests:
			req.done <- p.runCycle(req.ctx)
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Poller) runCycle(requestCtx context.Context) error {
	cycleCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()

	if requestCtx != nil {
		go func() {
			select {
			case <-requestCtx.Done():
				cancel()
			case <-cycleCtx.Done():
			}
		}()
	}

	cycleID := uuid.NewString()
	logger := p.logger.With(zap.String("cycle", cycleID))
	p.setLoading(true)

	result, err := p.cfg.Reconstructor.Reconstruct(cycleCtx, p.cfg.Query)
	var decrypted []models.DecryptedMessage
	if err == nil {
		decrypted = p.cfg.Decryptor.DecryptAll(result.Messages, p.cfg.Local, result.Registry)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		logger.Debug("discarding cycle after stop")
		return ErrStopped
	}

	p.snapshot.Loading = false
	if err != nil && requestCtx != nil && requestCtx.Err() != nil && p.ctx.Err() == nil {
		// The caller gave up; the last result stands.
		logger.Debug("refresh abandoned by caller", zap.Error(err))
		return err
	}
	if err != nil {
		p.snapshot.Err = err
		logger.Error("cycle failed", zap.Error(err))
		p.emitEvent(Event{Type: EventCycleFailed, CycleID: cycleID, Err: err})
		return err
	}

	p.snapshot = Snapshot{
		Messages:  decrypted,
		Registry:  result.Registry,
		UpdatedAt: p.cfg.now(),
		CycleID:   cycleID,
	}
	logger.Debug("cycle completed", zap.Int("messages", len(decrypted)), zap.Int("identities", result.Registry.Len()))
	p.emitEvent(Event{Type: EventCycleCompleted, CycleID: cycleID, Messages: len(decrypted)})
	return nil
}

func (p *Poller) setLoading(loading bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.snapshot.Loading = loading
	}
}

// emitEvent must be called with p.mu held.
func (p *Poller) emitEvent(event Event) {
	select {
	case p.events <- event:
	default:
	}
}

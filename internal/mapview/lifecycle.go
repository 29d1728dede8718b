package mapview

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// ErrTornDown is returned by Start after Teardown.
var ErrTornDown = errors.New("style lifecycle torn down")

// StyleLoader fetches and validates the style document.
type StyleLoader func(ctx context.Context) (models.StyleDescriptor, error)

// LifecycleConfig wires a StyleLifecycle.
type LifecycleConfig struct {
	Widget Widget
	Load   StyleLoader
	// NewLayer builds the layer for a fetched style. seq identifies the sequence.
	NewLayer func(seq uint64, style models.StyleDescriptor) Layer
	// Breaker, when set, guards Load.
	Breaker *circuitbreaker.CircuitBreaker
	Logger  *zap.Logger
	// OnTransition is called with the lifecycle lock held.
	OnTransition func(from, to State)
}

// StyleLifecycle fetches a style, builds its layer and attaches it to the
// widget once the widget is ready. Each Start begins a new sequence and
// supersedes the previous one; a superseded or torn-down sequence never
// attaches. At most one layer from this lifecycle is attached at a time.
type StyleLifecycle struct {
	widget       Widget
	load         StyleLoader
	newLayer     func(uint64, models.StyleDescriptor) Layer
	breaker      *circuitbreaker.CircuitBreaker
	logger       *zap.Logger
	onTransition func(from, to State)

	mu       sync.Mutex
	state    State
	gen      uint64
	cancel   context.CancelFunc
	attached Layer
	settled  chan struct{}
	torn     bool

	// wg tracks run goroutines; Close waits on it.
	wg sync.WaitGroup
}

// NewStyleLifecycle returns a lifecycle in StateIdle.
func NewStyleLifecycle(cfg LifecycleConfig) *StyleLifecycle {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newLayer := cfg.NewLayer
	if newLayer == nil {
		newLayer = func(_ uint64, style models.StyleDescriptor) Layer {
			return &StyleLayer{ID: "style", Style: style}
		}
	}
	return &StyleLifecycle{
		widget:       cfg.Widget,
		load:         cfg.Load,
		newLayer:     newLayer,
		breaker:      cfg.Breaker,
		logger:       logger,
		onTransition: cfg.OnTransition,
		state:        StateIdle,
	}
}

// Start supersedes any running sequence, removing its attached layer, and
// fetches the style in the background. The fetch is bound to ctx.
func (l *StyleLifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.torn {
		l.mu.Unlock()
		return ErrTornDown
	}
	if l.state != StateIdle && l.state != StateAborted {
		l.abortLocked()
	}
	l.gen++
	gen := l.gen
	seqCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.settled = make(chan struct{})
	l.setStateLocked(StateStyleFetching)
	l.wg.Add(1)
	l.mu.Unlock()

	go l.run(seqCtx, gen)
	return nil
}

// Cancel aborts the running sequence and removes its layer. Start may be called again.
func (l *StyleLifecycle) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.abortLocked()
}

// Teardown aborts the running sequence and disables further starts.
func (l *StyleLifecycle) Teardown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.abortLocked()
	l.torn = true
}

// Close tears the lifecycle down and waits for any background fetch to return.
func (l *StyleLifecycle) Close() {
	l.Teardown()
	l.wg.Wait()
}

// TornDown reports whether Teardown has been called.
func (l *StyleLifecycle) TornDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.torn
}

// State returns the current state.
func (l *StyleLifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Attached returns the attached layer, or nil.
func (l *StyleLifecycle) Attached() Layer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attached
}

// Wait blocks until the current sequence settles (Idle, Attached or Aborted)
// or ctx is done, and returns the state at that point.
func (l *StyleLifecycle) Wait(ctx context.Context) (State, error) {
	l.mu.Lock()
	ch := l.settled
	l.mu.Unlock()
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return l.State(), ctx.Err()
		}
	}
	return l.State(), nil
}

func (l *StyleLifecycle) run(ctx context.Context, gen uint64) {
	defer l.wg.Done()

	style, err := l.fetch(ctx)

	l.mu.Lock()
	if gen != l.gen || l.state != StateStyleFetching {
		l.mu.Unlock()
		return
	}
	if err != nil {
		if ctx.Err() != nil {
			l.logger.Debug("map style fetch abandoned", zap.Error(err))
			l.abortLocked()
		} else {
			l.logger.Error("map style fetch failed", zap.Error(err),
				zap.Bool("breaker_open", errors.Is(err, circuitbreaker.ErrOpen)))
			l.releaseLocked()
			l.setStateLocked(StateIdle)
			l.settleLocked()
		}
		l.mu.Unlock()
		return
	}
	layer := l.newLayer(gen, style)
	l.setStateLocked(StateStyleReady)
	l.mu.Unlock()

	attach := func() { l.attach(gen, layer) }
	if rn, ok := l.widget.(ReadyNotifier); ok {
		rn.WhenReady(attach)
		return
	}
	attach()
}

func (l *StyleLifecycle) fetch(ctx context.Context) (models.StyleDescriptor, error) {
	if l.breaker == nil {
		return l.load(ctx)
	}
	var style models.StyleDescriptor
	err := l.breaker.Call(ctx, func(ctx context.Context) error {
		var err error
		style, err = l.load(ctx)
		return err
	})
	return style, err
}

func (l *StyleLifecycle) attach(gen uint64, layer Layer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.state != StateStyleReady {
		return
	}
	l.widget.AddLayer(layer)
	l.attached = layer
	l.releaseLocked()
	l.setStateLocked(StateAttached)
	l.settleLocked()
}

// abortLocked invalidates the running sequence. mu must be held.
func (l *StyleLifecycle) abortLocked() {
	l.gen++
	l.releaseLocked()
	if l.attached != nil {
		l.widget.RemoveLayer(l.attached)
		l.attached = nil
	}
	if l.state != StateAborted {
		l.setStateLocked(StateAborted)
	}
	l.settleLocked()
}

func (l *StyleLifecycle) releaseLocked() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

func (l *StyleLifecycle) settleLocked() {
	if l.settled != nil {
		close(l.settled)
		l.settled = nil
	}
}

func (l *StyleLifecycle) setStateLocked(to State) {
	from := l.state
	if from == to {
		return
	}
	l.state = to
	observability.RecordMapTransition(from.String(), to.String())
	if l.onTransition != nil {
		l.onTransition(from, to)
	}
	l.logger.Debug("map style transition", zap.String("from", from.String()), zap.String("to", to.String()))
}

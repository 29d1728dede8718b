package mapview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-dashboard/internal/circuitbreaker"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/models"
)

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLifecycle_AttachesWhenWidgetHasNoReadyNotifier(t *testing.T) {
	// Arrange
	w := newCountingWidget(t)
	var mu sync.Mutex
	var transitions []string
	l := NewStyleLifecycle(LifecycleConfig{
		Widget: w,
		Load:   immediateLoader(testStyle(), nil),
		OnTransition: func(from, to State) {
			mu.Lock()
			transitions = append(transitions, from.String()+"->"+to.String())
			mu.Unlock()
		},
	})
	if l.State() != StateIdle {
		t.Fatalf("initial State() = %v, want idle", l.State())
	}

	// Act
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	state, err := l.Wait(waitCtx(t))

	// Assert
	if err != nil || state != StateAttached {
		t.Fatalf("Wait() = %v, %v; want attached", state, err)
	}
	if w.count(KindStyle) != 1 {
		t.Errorf("attached style layers = %d, want 1", w.count(KindStyle))
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"idle->style_fetching", "style_fetching->style_ready", "style_ready->attached"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transitions[%d] = %q, want %q", i, transitions[i], want[i])
		}
	}
}

func TestLifecycle_DefersAttachUntilReady(t *testing.T) {
	w := &readyWidget{countingWidget: newCountingWidget(t)}
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: immediateLoader(testStyle(), nil)})
	_ = l.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for l.State() != StateStyleReady && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if l.State() != StateStyleReady {
		t.Fatalf("State() = %v, want style_ready before widget is ready", l.State())
	}
	if w.count(KindStyle) != 0 {
		t.Fatalf("attached before widget ready")
	}

	w.markReady()
	if state, _ := l.Wait(waitCtx(t)); state != StateAttached {
		t.Errorf("State() after ready = %v, want attached", state)
	}
}

// TestLifecycle_CancelAllowsRestart verifies that Cancel removes the attached
// layer without disabling later starts.
func TestLifecycle_CancelAllowsRestart(t *testing.T) {
	// Arrange
	w := newCountingWidget(t)
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: immediateLoader(testStyle(), nil)})
	defer l.Close()
	_ = l.Start(context.Background())
	_, _ = l.Wait(waitCtx(t))

	// Act
	l.Cancel()
	afterCancel := w.count(KindStyle)
	err := l.Start(context.Background())
	state, _ := l.Wait(waitCtx(t))

	// Assert
	if afterCancel != 0 {
		t.Errorf("style layers after Cancel = %d, want 0", afterCancel)
	}
	if err != nil {
		t.Fatalf("Start() after Cancel = %v, want nil", err)
	}
	if state != StateAttached || w.count(KindStyle) != 1 {
		t.Errorf("state = %v with %d style layers, want attached with 1", state, w.count(KindStyle))
	}
	if l.TornDown() {
		t.Error("TornDown() = true after Cancel")
	}
}

// TestLifecycle_CloseWaitsForFetch verifies that Close returns only after the
// in-flight fetch has returned, and that the late result is not attached.
func TestLifecycle_CloseWaitsForFetch(t *testing.T) {
	// Arrange
	w := newCountingWidget(t)
	g := newGatedLoader()
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: g.load})
	_ = l.Start(context.Background())
	<-g.started

	// Act
	closed := make(chan struct{})
	go func() {
		l.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close() returned while the fetch was still running")
	case <-time.After(20 * time.Millisecond):
	}
	g.resolve(0, loadResult{style: testStyle()})

	// Assert
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close() did not return after the fetch finished")
	}
	if adds, _, _ := w.stats(KindStyle); adds != 0 {
		t.Errorf("AddLayer called %d times after Close, want 0", adds)
	}
	if !l.TornDown() {
		t.Error("TornDown() = false after Close")
	}
}

// TestLifecycle_NoAttachAfterTeardownDuringFetch tears down while the fetch is
// in flight and then lets the fetch succeed.
func TestLifecycle_NoAttachAfterTeardownDuringFetch(t *testing.T) {
	// Arrange
	w := newCountingWidget(t)
	g := newGatedLoader()
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: g.load})
	_ = l.Start(context.Background())
	<-g.started

	// Act
	l.Teardown()
	g.resolve(0, loadResult{style: testStyle()})
	l.wg.Wait()

	// Assert
	if adds, _, _ := w.stats(KindStyle); adds != 0 {
		t.Errorf("AddLayer called %d times after teardown, want 0", adds)
	}
	if l.State() != StateAborted {
		t.Errorf("State() = %v, want aborted", l.State())
	}
	if err := l.Start(context.Background()); !errors.Is(err, ErrTornDown) {
		t.Errorf("Start() after Teardown = %v, want ErrTornDown", err)
	}
}

// TestLifecycle_NoAttachAfterTeardownWhileAwaitingReady covers a layer that was
// built but not yet attached when the map went away.
func TestLifecycle_NoAttachAfterTeardownWhileAwaitingReady(t *testing.T) {
	// Arrange
	w := &readyWidget{countingWidget: newCountingWidget(t)}
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: immediateLoader(testStyle(), nil)})
	_ = l.Start(context.Background())
	l.wg.Wait()
	if l.State() != StateStyleReady {
		t.Fatalf("State() = %v, want style_ready", l.State())
	}

	// Act
	l.Teardown()
	w.markReady()

	// Assert
	if adds, _, _ := w.stats(KindStyle); adds != 0 {
		t.Errorf("AddLayer called %d times, want 0", adds)
	}
}

func TestLifecycle_RestartSupersedesInFlightFetch(t *testing.T) {
	// Arrange
	w := newCountingWidget(t)
	g := newGatedLoader()
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: g.load})

	// Act
	_ = l.Start(context.Background())
	<-g.started
	_ = l.Start(context.Background())
	<-g.started

	// Resolve the newer fetch first, then the stale one.
	g.resolve(1, loadResult{style: testStyle()})
	if state, _ := l.Wait(waitCtx(t)); state != StateAttached {
		t.Fatalf("State() = %v, want attached", state)
	}
	g.resolve(0, loadResult{style: testStyle()})
	l.wg.Wait()

	// Assert
	adds, _, peak := w.stats(KindStyle)
	if adds != 1 || peak != 1 {
		t.Errorf("style adds = %d, peak = %d; want 1, 1", adds, peak)
	}
}

func TestLifecycle_RestartRemovesAttachedLayer(t *testing.T) {
	w := newCountingWidget(t)
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: immediateLoader(testStyle(), nil)})
	for i := 0; i < 3; i++ {
		_ = l.Start(context.Background())
		if state, _ := l.Wait(waitCtx(t)); state != StateAttached {
			t.Fatalf("round %d: State() = %v, want attached", i, state)
		}
	}
	l.wg.Wait()
	adds, removes, peak := w.stats(KindStyle)
	if adds != 3 || removes != 2 || peak != 1 {
		t.Errorf("adds=%d removes=%d peak=%d; want 3, 2, 1", adds, removes, peak)
	}

	l.Cancel()
	if w.count(KindStyle) != 0 {
		t.Errorf("layer still attached after Cancel")
	}
	if l.State() != StateAborted {
		t.Errorf("State() = %v, want aborted", l.State())
	}
}

func TestLifecycle_FailureIsLoggedAndReturnsToIdle(t *testing.T) {
	// Arrange
	core, logs := observer.New(zapcore.DebugLevel)
	w := newCountingWidget(t)
	fetchErr := &client.HTTPError{Endpoint: client.EndpointStyle, Status: 403, StatusText: "Forbidden"}
	l := NewStyleLifecycle(LifecycleConfig{
		Widget: w,
		Load:   immediateLoader(testStyle(), fetchErr),
		Logger: zap.New(core),
	})

	// Act
	_ = l.Start(context.Background())
	state, err := l.Wait(waitCtx(t))

	// Assert
	if err != nil || state != StateIdle {
		t.Fatalf("Wait() = %v, %v; want idle", state, err)
	}
	if adds, _, _ := w.stats(KindStyle); adds != 0 {
		t.Errorf("AddLayer called %d times after failure", adds)
	}
	entries := logs.FilterMessage("map style fetch failed").All()
	if len(entries) != 1 || entries[0].Level != zapcore.ErrorLevel {
		t.Fatalf("error log entries = %v, want one at error level", entries)
	}
	if got := entries[0].ContextMap()["error"]; got != fetchErr.Error() {
		t.Errorf("logged error = %v, want %q", got, fetchErr.Error())
	}
}

func TestLifecycle_BreakerShortCircuitsRepeatedFailures(t *testing.T) {
	var calls int
	var mu sync.Mutex
	load := func(context.Context) (models.StyleDescriptor, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return models.StyleDescriptor{}, errors.New("connection refused")
	}
	cb := circuitbreaker.New(circuitbreaker.Config{FailureThreshold: 2, Timeout: time.Hour})
	l := NewStyleLifecycle(LifecycleConfig{Widget: newCountingWidget(t), Load: load, Breaker: cb})

	for i := 0; i < 4; i++ {
		_ = l.Start(context.Background())
		if state, _ := l.Wait(waitCtx(t)); state != StateIdle {
			t.Fatalf("round %d: State() = %v, want idle", i, state)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("loader calls = %d, want 2 (breaker open afterwards)", calls)
	}
	if cb.State() != circuitbreaker.StateOpen {
		t.Errorf("breaker = %v, want open", cb.State())
	}
}

func TestLifecycle_CancelFromIdle(t *testing.T) {
	// Arrange
	l := NewStyleLifecycle(LifecycleConfig{Widget: newCountingWidget(t), Load: immediateLoader(testStyle(), nil)})

	// Act
	l.Cancel()

	// Assert
	if l.State() != StateAborted {
		t.Errorf("State() = %v, want aborted", l.State())
	}
	if err := l.Start(context.Background()); err != nil {
		t.Errorf("Start() after Cancel = %v, want nil", err)
	}
	if state, _ := l.Wait(waitCtx(t)); state != StateAttached {
		t.Errorf("State() = %v, want attached", state)
	}
}

// TestLifecycle_AttachCountInvariant drives random start/cancel sequences with
// fetches resolving in arbitrary order and checks at most one style layer is
// ever attached.
func TestLifecycle_AttachCountInvariant(t *testing.T) {
	f := gofakeit.New(11)
	w := &readyWidget{countingWidget: newCountingWidget(t)}
	g := newGatedLoader()
	l := NewStyleLifecycle(LifecycleConfig{Widget: w, Load: g.load})

	var outstanding []int
	for i := 0; i < 200; i++ {
		switch f.IntRange(0, 4) {
		case 0, 1:
			_ = l.Start(context.Background())
			<-g.started
			outstanding = append(outstanding, g.callCount()-1)
		case 2:
			if len(outstanding) > 0 {
				k := f.IntRange(0, len(outstanding)-1)
				g.resolve(outstanding[k], loadResult{style: testStyle()})
				outstanding = append(outstanding[:k], outstanding[k+1:]...)
			}
		case 3:
			l.Cancel()
		case 4:
			w.markReady()
		}
		if n := w.count(KindStyle); n > 1 {
			t.Fatalf("step %d: %d style layers attached", i, n)
		}
	}
	for _, idx := range outstanding {
		g.resolve(idx, loadResult{style: testStyle()})
	}
	l.wg.Wait()
	w.markReady()

	if _, _, peak := w.stats(KindStyle); peak > 1 {
		t.Errorf("peak attached style layers = %d, want <= 1", peak)
	}
	l.Teardown()
	if w.count(KindStyle) != 0 {
		t.Errorf("style layer still attached after Teardown")
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateIdle: "idle", StateStyleFetching: "style_fetching", StateStyleReady: "style_ready",
		StateAttached: "attached", StateAborted: "aborted", State(42): "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

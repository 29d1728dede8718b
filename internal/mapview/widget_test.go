package mapview

import (
	"context"
	"sync"
	"testing"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// countingWidget records every call and the peak number of attached layers per kind.
type countingWidget struct {
	t *testing.T

	mu       sync.Mutex
	attached map[Layer]bool
	adds     map[string]int
	removes  map[string]int
	peak     map[string]int
	pans     []LatLng
	handlers map[int]func(LatLng)
	nextID   int
}

func newCountingWidget(t *testing.T) *countingWidget {
	return &countingWidget{
		t:        t,
		attached: make(map[Layer]bool),
		adds:     make(map[string]int),
		removes:  make(map[string]int),
		peak:     make(map[string]int),
		handlers: make(map[int]func(LatLng)),
	}
}

func (w *countingWidget) AddLayer(l Layer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.attached[l] {
		w.t.Errorf("AddLayer(%s) while already attached", l.LayerID())
	}
	w.attached[l] = true
	w.adds[l.Kind()]++
	if n := w.countLocked(l.Kind()); n > w.peak[l.Kind()] {
		w.peak[l.Kind()] = n
	}
}

func (w *countingWidget) RemoveLayer(l Layer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.attached[l] {
		w.t.Errorf("RemoveLayer(%s) for a layer that is not attached", l.LayerID())
	}
	delete(w.attached, l)
	w.removes[l.Kind()]++
}

func (w *countingWidget) PanTo(p LatLng) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pans = append(w.pans, p)
}

func (w *countingWidget) OnClick(fn func(LatLng)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = fn
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.handlers, id)
	}
}

func (w *countingWidget) click(p LatLng) {
	w.mu.Lock()
	var fns []func(LatLng)
	for _, fn := range w.handlers {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (w *countingWidget) countLocked(kind string) int {
	n := 0
	for l := range w.attached {
		if l.Kind() == kind {
			n++
		}
	}
	return n
}

func (w *countingWidget) count(kind string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countLocked(kind)
}

func (w *countingWidget) stats(kind string) (adds, removes, peak int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.adds[kind], w.removes[kind], w.peak[kind]
}

func (w *countingWidget) panCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pans)
}

func (w *countingWidget) subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.handlers)
}

// readyWidget defers WhenReady callbacks until markReady.
type readyWidget struct {
	*countingWidget

	rmu     sync.Mutex
	ready   bool
	pending []func()
}

func (w *readyWidget) WhenReady(fn func()) {
	w.rmu.Lock()
	if !w.ready {
		w.pending = append(w.pending, fn)
		w.rmu.Unlock()
		return
	}
	w.rmu.Unlock()
	fn()
}

func (w *readyWidget) markReady() {
	w.rmu.Lock()
	w.ready = true
	pending := w.pending
	w.pending = nil
	w.rmu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// gatedLoader blocks each fetch until the test resolves it by call index.
// Fetches ignore cancellation so a late response can race an abort.
type gatedLoader struct {
	mu      sync.Mutex
	pending []chan loadResult
	started chan struct{}
}

type loadResult struct {
	style models.StyleDescriptor
	err   error
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{started: make(chan struct{}, 256)}
}

func (g *gatedLoader) load(context.Context) (models.StyleDescriptor, error) {
	ch := make(chan loadResult, 1)
	g.mu.Lock()
	g.pending = append(g.pending, ch)
	g.mu.Unlock()
	g.started <- struct{}{}
	r := <-ch
	return r.style, r.err
}

// resolve completes the i-th fetch. The fetch must have started.
func (g *gatedLoader) resolve(i int, r loadResult) {
	g.mu.Lock()
	ch := g.pending[i]
	g.mu.Unlock()
	ch <- r
}

func (g *gatedLoader) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pending)
}

func testStyle() models.StyleDescriptor {
	return models.StyleDescriptor{Version: 8, Raw: []byte(`{"version":8,"sources":{},"layers":[]}`)}
}

// immediateLoader returns a fixed result without blocking.
func immediateLoader(style models.StyleDescriptor, err error) StyleLoader {
	return func(context.Context) (models.StyleDescriptor, error) { return style, err }
}

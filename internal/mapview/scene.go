package mapview

import (
	"sync"
)

// Scene is an in-memory Widget. The HTTP layer mounts a Map on a Scene and
// serializes the result for the browser, which owns the real map.
type Scene struct {
	mu       sync.Mutex
	center   LatLng
	zoom     int
	layers   []Layer
	handlers map[int]func(LatLng)
	nextID   int
	ready    bool
	pending  []func()
}

// Snapshot is the serializable state of a Scene.
type Snapshot struct {
	Center LatLng      `json:"center"`
	Zoom   int         `json:"zoom"`
	Layers []LayerView `json:"layers"`
}

// NewScene returns a scene centered on center. Non-finite components are
// coerced to 0. A zoom <= 0 uses DefaultZoom. The scene starts ready.
func NewScene(center LatLng, zoom int) *Scene {
	if zoom <= 0 {
		zoom = DefaultZoom
	}
	return &Scene{
		center:   LatLng{Lat: finiteOr(center.Lat, 0), Lng: finiteOr(center.Lng, 0)},
		zoom:     zoom,
		handlers: make(map[int]func(LatLng)),
		ready:    true,
	}
}

// NewPendingScene returns a scene that defers WhenReady callbacks until MarkReady.
func NewPendingScene(center LatLng, zoom int) *Scene {
	s := NewScene(center, zoom)
	s.ready = false
	return s
}

func (s *Scene) AddLayer(l Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = append(s.layers, l)
}

func (s *Scene) RemoveLayer(l Layer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.layers {
		if cur == l {
			s.layers = append(s.layers[:i], s.layers[i+1:]...)
			return
		}
	}
}

func (s *Scene) PanTo(p LatLng) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = p
}

func (s *Scene) OnClick(fn func(LatLng)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

// WhenReady runs fn now if the scene is ready, otherwise after MarkReady.
func (s *Scene) WhenReady(fn func()) {
	s.mu.Lock()
	if !s.ready {
		s.pending = append(s.pending, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}

// MarkReady runs deferred WhenReady callbacks.
func (s *Scene) MarkReady() {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return
	}
	s.ready = true
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// Click dispatches a click at p to subscribers.
func (s *Scene) Click(p LatLng) {
	s.mu.Lock()
	fns := make([]func(LatLng), 0, len(s.handlers))
	for _, fn := range s.handlers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

// Layers returns the attached layers in attach order.
func (s *Scene) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Layer(nil), s.layers...)
}

// Snapshot captures center, zoom and attached layers.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	views := make([]LayerView, 0, len(s.layers))
	for _, l := range s.layers {
		views = append(views, l.View())
	}
	return Snapshot{Center: s.center, Zoom: s.zoom, Layers: views}
}

package mapview

import (
	"sync"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Panner re-centers the widget when the selected coordinates change.
type Panner struct {
	widget Widget

	mu   sync.Mutex
	last LatLng
	has  bool
}

// NewPanner returns a Panner that has not panned yet.
func NewPanner(w Widget) *Panner {
	return &Panner{widget: w}
}

// Update pans to c if it is finite and differs from the last pan target.
// It reports whether a pan was issued.
func (p *Panner) Update(c models.Coordinates) bool {
	target := FromCoordinates(c)
	if !target.IsFinite() {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.has && p.last == target {
		return false
	}
	p.last = target
	p.has = true
	p.widget.PanTo(target)
	return true
}

// ClickBinding forwards widget clicks to a callback until Unbind.
type ClickBinding struct {
	once sync.Once
	off  func()
}

// BindClick subscribes fn to widget clicks.
func BindClick(w Widget, fn func(lat, lng float64)) *ClickBinding {
	off := w.OnClick(func(p LatLng) {
		fn(p.Lat, p.Lng)
	})
	return &ClickBinding{off: off}
}

// Unbind unsubscribes. Safe to call more than once.
func (b *ClickBinding) Unbind() {
	b.once.Do(func() {
		if b.off != nil {
			b.off()
		}
	})
}

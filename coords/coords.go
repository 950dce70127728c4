// Package coords converts between pointer positions on a container element
// and normalized percentage coordinates on the map image it shows.
package coords

import "github.com/AbelMP17/OnlyNadesV2/cluster"

// Rect is a container's bounding client rectangle in viewport pixels.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Empty reports whether the rect has no area to map onto.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Contains reports whether a viewport position lies within the rect.
func (r Rect) Contains(clientX, clientY float64) bool {
	return clientX >= r.Left && clientX <= r.Left+r.Width &&
		clientY >= r.Top && clientY <= r.Top+r.Height
}

// Touch is one contact point of a touch event.
type Touch struct {
	ClientX float64 `json:"clientX"`
	ClientY float64 `json:"clientY"`
}

// Event is a mouse, pointer or touch event. Touch events carry their
// positions in ChangedTouches; the first entry wins over ClientX/ClientY.
type Event struct {
	ClientX        float64 `json:"clientX"`
	ClientY        float64 `json:"clientY"`
	ChangedTouches []Touch `json:"changedTouches,omitempty"`
}

// Client returns the viewport position the event refers to.
func (e Event) Client() (x, y float64) {
	if len(e.ChangedTouches) > 0 {
		return e.ChangedTouches[0].ClientX, e.ChangedTouches[0].ClientY
	}
	return e.ClientX, e.ClientY
}

// Viewport is an absolute position in viewport pixels.
type Viewport struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Container supplies the current bounding rect of the element the map is
// drawn in. ok is false while the element is not mounted.
type Container interface {
	BoundingClientRect() (rect Rect, ok bool)
}

// RectFunc adapts a function to Container.
type RectFunc func() (Rect, bool)

func (f RectFunc) BoundingClientRect() (Rect, bool) {
	return f()
}

// Fixed is a Container whose rect never changes.
type Fixed Rect

func (f Fixed) BoundingClientRect() (Rect, bool) {
	r := Rect(f)
	return r, !r.Empty()
}

// bounds reads the rect fresh on every call; layouts move between events.
func bounds(c Container) (Rect, bool) {
	if c == nil {
		return Rect{}, false
	}
	r, ok := c.BoundingClientRect()
	if !ok || r.Empty() {
		return Rect{}, false
	}
	return r, true
}

func clamp(v float64) float64 {
	if v != v {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NormalizeIn maps an event onto rect, clamping both axes to [0,100].
func NormalizeIn(e Event, r Rect) cluster.Point {
	if r.Empty() {
		return cluster.Point{}
	}
	clientX, clientY := e.Client()
	return cluster.Point{
		X: clamp((clientX - r.Left) / r.Width * 100),
		Y: clamp((clientY - r.Top) / r.Height * 100),
	}
}

// ToNormalized maps an event onto the container. Without a mounted
// container it returns the zero point.
func ToNormalized(e Event, c Container) cluster.Point {
	r, ok := bounds(c)
	if !ok {
		return cluster.Point{}
	}
	return NormalizeIn(e, r)
}

// ViewportIn is the inverse of NormalizeIn.
func ViewportIn(p cluster.Point, r Rect) Viewport {
	return Viewport{
		X: r.Left + (p.X/100)*r.Width,
		Y: r.Top + (p.Y/100)*r.Height,
	}
}

// ToViewport returns the viewport position of a normalized point, used to
// place overlays such as the hover preview. Without a mounted container it
// returns the zero position.
func ToViewport(p cluster.Point, c Container) Viewport {
	r, ok := bounds(c)
	if !ok {
		return Viewport{}
	}
	return ViewportIn(p, r)
}

// ToLocal returns the position of p relative to the container's top-left
// corner, the space connecting lines are drawn in.
func ToLocal(p cluster.Point, c Container) Viewport {
	r, ok := bounds(c)
	if !ok {
		return Viewport{}
	}
	return Viewport{X: (p.X / 100) * r.Width, Y: (p.Y / 100) * r.Height}
}

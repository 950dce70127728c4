// Package view holds the selection state machine behind a map overlay: which
// cluster is expanded, where the unsaved markers sit and what a pointer or
// marker click means in the current interaction mode.
//
// An Engine belongs to one view instance and is not safe for concurrent use.
// Every method runs to completion and fires its callbacks before returning.
package view

import (
	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
)

// Options configure an Engine. Start from DefaultOptions.
type Options struct {
	// BucketSize is the grid cell size in normalized units.
	BucketSize float64
	// FocusThreshold is the distance a record's destination may lie from
	// the focus point and still be shown with it.
	FocusThreshold float64
	// ReadOnly turns surface pointer-downs into no-ops for placement.
	ReadOnly bool
	// AllowTempMarkers controls whether unsaved markers are rendered.
	AllowTempMarkers bool
}

func DefaultOptions() Options {
	return Options{
		BucketSize:       cluster.DefaultBucketSize,
		FocusThreshold:   cluster.DefaultNearThreshold,
		AllowTempMarkers: true,
	}
}

// Input is what the host feeds a view on every render.
type Input struct {
	Records []cluster.Record
	// ForceExpandKey names a cluster that must be shown expanded. It wins
	// over Focus.
	ForceExpandKey string
	// Focus replaces the cluster view with the records whose destination
	// lies near this point.
	Focus *cluster.Point
	Mode  Mode
}

type memo struct {
	valid       bool
	fingerprint uint64
	bucket      float64
	clusters    []cluster.Cluster
}

type hover struct {
	id string
	at coords.Viewport
}

type Engine struct {
	opts      Options
	cb        Callbacks
	container coords.Container

	input       Input
	fingerprint uint64
	started     bool
	memo        memo

	expandedKey string
	expanded    []cluster.Record
	tempDest    *cluster.Point
	tempOrigin  *cluster.Point
	hover       *hover

	unmount func()
}

// NewEngine returns an engine in browse mode with no records. container may
// be nil until the host mounts its element; see SetContainer.
func NewEngine(opts Options, cb Callbacks, container coords.Container) *Engine {
	if opts.BucketSize <= 0 {
		opts.BucketSize = cluster.DefaultBucketSize
	}
	return &Engine{
		opts:      opts,
		cb:        cb,
		container: container,
		input:     Input{Mode: Browse},
	}
}

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) Mode() Mode { return e.input.Mode }

func (e *Engine) SetContainer(c coords.Container) { e.container = c }

func (e *Engine) Container() coords.Container { return e.container }

// SetInput replaces the host input. When the records, the forced key or the
// focus point differ from the previous input, clusters are recomputed and
// the selection is reset: expansion, temporary markers and hover all start
// over. A mode change alone keeps the selection.
func (e *Engine) SetInput(in Input) {
	if in.Mode == "" {
		in.Mode = Browse
	}
	if in.Focus != nil {
		f := *in.Focus
		in.Focus = &f
	}
	fp := cluster.Fingerprint(in.Records)
	if e.started && !e.changed(in, fp) {
		e.input.Records = in.Records
		e.input.Mode = in.Mode
		return
	}
	e.started = true
	e.input = in
	e.fingerprint = fp
	e.reset()
}

func (e *Engine) changed(in Input, fp uint64) bool {
	if fp != e.fingerprint || in.ForceExpandKey != e.input.ForceExpandKey {
		return true
	}
	switch {
	case in.Focus == nil && e.input.Focus == nil:
		return false
	case in.Focus == nil || e.input.Focus == nil:
		return true
	}
	return *in.Focus != *e.input.Focus
}

// Input returns the current host input.
func (e *Engine) Input() Input { return e.input }

func (e *Engine) reset() {
	e.tempDest = nil
	e.tempOrigin = nil
	e.hover = nil
	e.collapse()

	if key := e.input.ForceExpandKey; key != "" {
		if c, ok := cluster.Find(e.Clusters(), key); ok {
			e.expandedKey = c.Key
			e.expanded = c.Members
		}
		return
	}
	if e.input.Focus != nil {
		e.expanded = cluster.FindNear(e.input.Records, *e.input.Focus, e.opts.FocusThreshold)
	}
}

func (e *Engine) collapse() {
	e.expandedKey = ""
	e.expanded = nil
}

// Clusters returns the clusters of the current records, recomputed only when
// their fingerprint or the bucket size changes.
func (e *Engine) Clusters() []cluster.Cluster {
	if e.memo.valid && e.memo.fingerprint == e.fingerprint && e.memo.bucket == e.opts.BucketSize {
		return e.memo.clusters
	}
	e.memo = memo{
		valid:       true,
		fingerprint: e.fingerprint,
		bucket:      e.opts.BucketSize,
		clusters:    cluster.Build(e.input.Records, e.opts.BucketSize),
	}
	return e.memo.clusters
}

// SetBucketSize changes the grid and resets the selection.
func (e *Engine) SetBucketSize(size float64) {
	if size <= 0 {
		size = cluster.DefaultBucketSize
	}
	if size == e.opts.BucketSize {
		return
	}
	e.opts.BucketSize = size
	e.reset()
}

// ExpandedKey returns the key of the expanded cluster, or "" when the
// expanded list comes from a focus point or nothing is expanded.
func (e *Engine) ExpandedKey() string { return e.expandedKey }

// Expanded returns the records whose lines and origins are shown.
func (e *Engine) Expanded() []cluster.Record { return e.expanded }

// TempMarker returns the unsaved marker in slot, if any.
func (e *Engine) TempMarker(s Slot) (cluster.Point, bool) {
	var p *cluster.Point
	switch s {
	case SlotDestination:
		p = e.tempDest
	case SlotOrigin:
		p = e.tempOrigin
	}
	if p == nil {
		return cluster.Point{}, false
	}
	return *p, true
}

// SetTempMarker sets or, with nil, clears the unsaved marker in slot
// without notifying the host. Hosts use it to restore draft positions after
// an input change.
func (e *Engine) SetTempMarker(s Slot, p *cluster.Point) {
	var cp *cluster.Point
	if p != nil {
		v := *p
		cp = &v
	}
	switch s {
	case SlotDestination:
		e.tempDest = cp
	case SlotOrigin:
		e.tempOrigin = cp
	}
}

// PointerDown handles a pointer or touch press. On empty overlay surface it
// places the temporary marker of the current mode and notifies the host,
// or in browse mode collapses the expanded cluster. Presses outside the
// container only collapse, and only in browse mode. It reports the placed
// point, if any.
func (e *Engine) PointerDown(ev coords.Event, target Target) (cluster.Point, bool) {
	switch target {
	case TargetMarker:
		return cluster.Point{}, false
	case TargetOutside:
		if e.input.Mode == Browse && e.expandedKey != "" {
			e.collapse()
		}
		return cluster.Point{}, false
	}

	if e.input.Mode == Browse {
		if e.expandedKey != "" {
			e.collapse()
		}
		return cluster.Point{}, false
	}
	if e.opts.ReadOnly {
		return cluster.Point{}, false
	}
	// Presses can race a mount; without a container there is nowhere to
	// place a marker.
	if _, ok := e.bounds(); !ok {
		return cluster.Point{}, false
	}

	p := coords.ToNormalized(ev, e.container)
	switch e.input.Mode {
	case PlaceDestination:
		e.collapse()
		e.SetTempMarker(SlotDestination, &p)
		if e.cb.OnDestinationPlaced != nil {
			e.cb.OnDestinationPlaced(p)
		}
	case PlaceOrigin:
		e.SetTempMarker(SlotOrigin, &p)
		if e.cb.OnOriginPlaced != nil {
			e.cb.OnOriginPlaced(p)
		}
	}
	return p, true
}

// ClickCluster handles a click on the badge of cluster key. In
// place-destination mode the host is told about the cluster and expansion is
// left alone; otherwise the cluster toggles open or closed, replacing any
// other expansion. Unknown keys are ignored.
func (e *Engine) ClickCluster(key string) bool {
	c, ok := cluster.Find(e.Clusters(), key)
	if !ok {
		return false
	}
	if e.input.Mode == PlaceDestination {
		if e.cb.OnClusterSelected != nil {
			e.cb.OnClusterSelected(c.Key, c.Members, c.Center)
		}
		return true
	}
	if e.expandedKey == c.Key {
		e.collapse()
		return true
	}
	e.expandedKey = c.Key
	e.expanded = c.Members
	e.hover = nil
	return true
}

func (e *Engine) expandedOrigin(id string) (cluster.Record, bool) {
	for _, r := range e.expanded {
		if r.ID == id && r.Origin != nil {
			return r, true
		}
	}
	return cluster.Record{}, false
}

// ClickOrigin handles a click on the origin marker of an expanded record.
// In place-origin mode the record's origin becomes the temporary origin and
// the host is told which record was reused; otherwise the host is asked to
// open the record. Records that are not expanded or have no origin are
// ignored.
func (e *Engine) ClickOrigin(id string) bool {
	r, ok := e.expandedOrigin(id)
	if !ok {
		return false
	}
	if e.input.Mode == PlaceOrigin {
		e.SetTempMarker(SlotOrigin, r.Origin)
		if e.cb.OnOriginSelected != nil {
			e.cb.OnOriginSelected(r)
		}
		return true
	}
	if e.cb.OnRecordOpened != nil {
		e.cb.OnRecordOpened(r)
	}
	return true
}

// HoverEnter reports the origin marker of record id as hovered, positioned
// at the marker's viewport location.
func (e *Engine) HoverEnter(id string) bool {
	r, ok := e.expandedOrigin(id)
	if !ok {
		return false
	}
	at := coords.ToViewport(*r.Origin, e.container)
	e.setHover(r, at)
	return true
}

// HoverMove follows the pointer across the origin marker of record id.
func (e *Engine) HoverMove(id string, ev coords.Event) bool {
	r, ok := e.expandedOrigin(id)
	if !ok {
		return false
	}
	x, y := ev.Client()
	e.setHover(r, coords.Viewport{X: x, Y: y})
	return true
}

// HoverLeave clears the hovered record. Nothing is reported when no record
// was hovered.
func (e *Engine) HoverLeave() {
	if e.hover == nil {
		return
	}
	e.hover = nil
	if e.cb.OnHoverChanged != nil {
		e.cb.OnHoverChanged(nil, nil)
	}
}

func (e *Engine) setHover(r cluster.Record, at coords.Viewport) {
	e.hover = &hover{id: r.ID, at: at}
	if e.cb.OnHoverChanged != nil {
		e.cb.OnHoverChanged(&r, &at)
	}
}

// Hovered returns the hovered record and where its preview goes.
func (e *Engine) Hovered() (cluster.Record, coords.Viewport, bool) {
	if e.hover == nil {
		return cluster.Record{}, coords.Viewport{}, false
	}
	for _, r := range e.expanded {
		if r.ID == e.hover.id {
			return r, e.hover.at, true
		}
	}
	return cluster.Record{}, coords.Viewport{}, false
}

// Mount registers the engine's outside-click listener with doc. Mounting
// again first drops the previous registration.
func (e *Engine) Mount(doc *Document) {
	e.Unmount()
	e.unmount = doc.Add(e.onDocumentPointerDown)
}

// Unmount drops the outside-click listener. It is a no-op when not mounted.
func (e *Engine) Unmount() {
	if e.unmount != nil {
		e.unmount()
		e.unmount = nil
	}
}

// Mounted reports whether the engine holds a document registration.
func (e *Engine) Mounted() bool { return e.unmount != nil }

func (e *Engine) onDocumentPointerDown(ev coords.Event) {
	if e.expandedKey == "" {
		return
	}
	r, ok := e.bounds()
	if !ok {
		return
	}
	x, y := ev.Client()
	if !r.Contains(x, y) {
		e.PointerDown(ev, TargetOutside)
	}
}

func (e *Engine) bounds() (coords.Rect, bool) {
	if e.container == nil {
		return coords.Rect{}, false
	}
	r, ok := e.container.BoundingClientRect()
	if !ok || r.Empty() {
		return coords.Rect{}, false
	}
	return r, true
}

package view

import (
	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
)

// Callbacks are the notifications an Engine sends its host. Nil fields are
// skipped. Every callback runs after the engine has updated its own state.
type Callbacks struct {
	OnClusterSelected   func(key string, members []cluster.Record, center cluster.Point)
	OnOriginSelected    func(r cluster.Record)
	OnDestinationPlaced func(p cluster.Point)
	OnOriginPlaced      func(p cluster.Point)
	OnRecordOpened      func(r cluster.Record)
	// OnHoverChanged receives nil, nil when the pointer leaves a marker.
	OnHoverChanged func(r *cluster.Record, at *coords.Viewport)
}

// Chain fans every callback out to each set in order.
func Chain(sets ...Callbacks) Callbacks {
	return Callbacks{
		OnClusterSelected: func(key string, members []cluster.Record, center cluster.Point) {
			for _, s := range sets {
				if s.OnClusterSelected != nil {
					s.OnClusterSelected(key, members, center)
				}
			}
		},
		OnOriginSelected: func(r cluster.Record) {
			for _, s := range sets {
				if s.OnOriginSelected != nil {
					s.OnOriginSelected(r)
				}
			}
		},
		OnDestinationPlaced: func(p cluster.Point) {
			for _, s := range sets {
				if s.OnDestinationPlaced != nil {
					s.OnDestinationPlaced(p)
				}
			}
		},
		OnOriginPlaced: func(p cluster.Point) {
			for _, s := range sets {
				if s.OnOriginPlaced != nil {
					s.OnOriginPlaced(p)
				}
			}
		},
		OnRecordOpened: func(r cluster.Record) {
			for _, s := range sets {
				if s.OnRecordOpened != nil {
					s.OnRecordOpened(r)
				}
			}
		},
		OnHoverChanged: func(r *cluster.Record, at *coords.Viewport) {
			for _, s := range sets {
				if s.OnHoverChanged != nil {
					s.OnHoverChanged(r, at)
				}
			}
		},
	}
}

// EventKind names a callback.
type EventKind string

const (
	EventClusterSelected   EventKind = "cluster-selected"
	EventOriginSelected    EventKind = "origin-selected"
	EventDestinationPlaced EventKind = "destination-placed"
	EventOriginPlaced      EventKind = "origin-placed"
	EventRecordOpened      EventKind = "record-opened"
	EventHoverChanged      EventKind = "hover-changed"
)

// Event is one recorded callback invocation. Only the fields of its kind
// are set.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Key      string           `json:"key,omitempty"`
	Members  []cluster.Record `json:"members,omitempty"`
	Center   *cluster.Point   `json:"center,omitempty"`
	Record   *cluster.Record  `json:"record,omitempty"`
	Point    *cluster.Point   `json:"point,omitempty"`
	Viewport *coords.Viewport `json:"viewport,omitempty"`
}

// Recorder collects callbacks as Events, for hosts that answer requests
// rather than react to callbacks directly.
type Recorder struct {
	events []Event
}

// Callbacks returns a set that appends to the recorder.
func (rec *Recorder) Callbacks() Callbacks {
	return Callbacks{
		OnClusterSelected: func(key string, members []cluster.Record, center cluster.Point) {
			rec.events = append(rec.events, Event{Kind: EventClusterSelected, Key: key, Members: members, Center: &center})
		},
		OnOriginSelected: func(r cluster.Record) {
			rec.events = append(rec.events, Event{Kind: EventOriginSelected, Record: &r})
		},
		OnDestinationPlaced: func(p cluster.Point) {
			rec.events = append(rec.events, Event{Kind: EventDestinationPlaced, Point: &p})
		},
		OnOriginPlaced: func(p cluster.Point) {
			rec.events = append(rec.events, Event{Kind: EventOriginPlaced, Point: &p})
		},
		OnRecordOpened: func(r cluster.Record) {
			rec.events = append(rec.events, Event{Kind: EventRecordOpened, Record: &r})
		},
		OnHoverChanged: func(r *cluster.Record, at *coords.Viewport) {
			rec.events = append(rec.events, Event{Kind: EventHoverChanged, Record: r, Viewport: at})
		},
	}
}

// Drain returns the events recorded since the last Drain.
func (rec *Recorder) Drain() []Event {
	out := rec.events
	rec.events = nil
	return out
}

// Len returns the number of undrained events.
func (rec *Recorder) Len() int {
	return len(rec.events)
}

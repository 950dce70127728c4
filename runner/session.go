package runner

import (
	"errors"
	"fmt"
	"sync"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/view"
	"github.com/AbelMP17/OnlyNadesV2/wizard"
)

// session is one mounted view: an engine, the document it listens on, the
// container the host last reported and, for authoring, a wizard draft.
type session struct {
	mu sync.Mutex

	id      string
	slug    string
	mode    view.Mode
	filter  cluster.Filter
	records []cluster.Record
	rect    coords.Rect

	engine *view.Engine
	doc    *view.Document
	draft  *wizard.Draft
	events view.Recorder
}

func newSession(id string, req *CreateSessionRequest, records []cluster.Record, opts view.Options) (*session, error) {
	mode, err := view.ParseMode(req.Mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	s := &session{
		id:      id,
		slug:    req.MapSlug,
		mode:    mode,
		filter:  req.Filter,
		records: records,
		rect:    req.Container,
		doc:     view.NewDocument(),
	}

	cb := s.events.Callbacks()
	if req.Authoring {
		s.draft = wizard.New()
		cb = view.Chain(s.draft.Callbacks(), cb)
	}
	// The container reads s.rect on every call, so a resize takes effect
	// without rebuilding the engine.
	s.engine = view.NewEngine(opts, cb, coords.RectFunc(func() (coords.Rect, bool) {
		return s.rect, !s.rect.Empty()
	}))
	s.engine.Mount(s.doc)
	s.sync()
	return s, nil
}

// sync feeds the filtered records to the engine in the session's mode, or
// in the draft step's mode for authoring sessions.
func (s *session) sync() {
	visible := s.filter.Apply(s.records)
	if s.draft != nil {
		s.draft.Sync(s.engine, visible)
		return
	}
	s.engine.SetInput(view.Input{Records: visible, Mode: s.mode})
}

func (s *session) pointerDown(ev coords.Event, target view.Target) {
	s.doc.Dispatch(ev)
	if target != view.TargetOutside {
		s.engine.PointerDown(ev, target)
	}
}

func (s *session) clickCluster(key string) {
	s.engine.ClickCluster(key)
	if s.draft != nil {
		s.draft.ShowMarkers(s.engine)
	}
}

func (s *session) hover(req *HoverRequest) error {
	switch req.Phase {
	case "enter":
		s.engine.HoverEnter(req.RecordID)
	case "move":
		s.engine.HoverMove(req.RecordID, req.Event)
	case "leave":
		s.engine.HoverLeave()
	default:
		return fmt.Errorf("%w: unknown hover phase %q", ErrInvalidArgument, req.Phase)
	}
	return nil
}

func (s *session) setStep(name string) error {
	if s.draft == nil {
		return fmt.Errorf("%w: session %s is not authoring", ErrInvalidArgument, s.id)
	}
	var err error
	switch name {
	case "next":
		err = s.draft.Next()
	case "back":
		s.draft.Back()
	default:
		var step wizard.Step
		step, err = wizard.ParseStep(name)
		if err == nil {
			err = s.draft.GoTo(step)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	s.sync()
	return nil
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Unmount()
}

// state drains the events recorded since the last call and renders.
func (s *session) state(m *metrics.Registry) *SessionState {
	events := s.events.Drain()
	if events == nil {
		events = []view.Event{}
	}
	for _, ev := range events {
		m.RecordSessionEvent(string(ev.Kind))
	}
	return &SessionState{
		SessionID: s.id,
		MapSlug:   s.slug,
		Filter:    s.filter,
		Container: s.rect,
		Draft:     s.draftState(),
		Events:    events,
		Render:    s.engine.Render(),
	}
}

func (s *session) draftState() *DraftState {
	if s.draft == nil {
		return nil
	}
	d := s.draft
	ds := &DraftState{
		Step:        d.Step().String(),
		ClusterKey:  d.ClusterKey,
		Destination: clonePoint(d.Destination),
		Origin:      clonePoint(d.Origin),
	}
	if d.OriginRecord != nil {
		ds.OriginRecordID = d.OriginRecord.ID
	}
	err := d.Validate(d.Step())
	if errors.Is(err, wizard.ErrMissingDestination) {
		ds.Missing = append(ds.Missing, "destination")
	}
	if errors.Is(err, wizard.ErrMissingOrigin) {
		ds.Missing = append(ds.Missing, "origin")
	}
	return ds
}

// Package wizard drives a map view through the steps of authoring a new
// lineup: pick where it lands, pick where it is thrown from, fill in the
// rest. It keeps the draft positions and tells the view which mode and
// expansion each step needs.
package wizard

import (
	"errors"
	"fmt"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/view"
)

var (
	ErrUnknownStep        = errors.New("unknown wizard step")
	ErrMissingDestination = errors.New("destination position is required")
	ErrMissingOrigin      = errors.New("origin position is required")
)

type Step int

const (
	StepVideo Step = iota
	StepDestination
	StepOrigin
	StepDetails
)

var stepNames = [...]string{"video", "destination", "origin", "details"}

func (s Step) String() string {
	if s < StepVideo || s > StepDetails {
		return fmt.Sprintf("Step(%d)", int(s))
	}
	return stepNames[s]
}

// ParseStep accepts the names returned by Step.String.
func ParseStep(name string) (Step, error) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// Mode is the interaction mode the map view runs in during the step.
func (s Step) Mode() view.Mode {
	switch s {
	case StepDestination:
		return view.PlaceDestination
	case StepOrigin:
		return view.PlaceOrigin
	default:
		return view.Browse
	}
}

// Draft is an in-progress lineup. The zero value starts at StepVideo.
type Draft struct {
	step Step

	// ClusterKey and ClusterMembers are set when the destination was taken
	// from an existing cluster instead of placed freely.
	ClusterKey     string
	ClusterMembers []cluster.Record

	Destination *cluster.Point
	Origin      *cluster.Point
	// OriginRecord is the existing lineup whose origin was reused, if any.
	OriginRecord *cluster.Record
}

func New() *Draft {
	return &Draft{}
}

func (d *Draft) Step() Step { return d.step }

func clonePoint(p cluster.Point) *cluster.Point {
	return &p
}

// SelectCluster reuses an existing cluster's destination: the first member
// destination, or the cluster center when no member has one. Any origin
// picked so far is dropped.
func (d *Draft) SelectCluster(key string, members []cluster.Record, center cluster.Point) {
	d.ClusterKey = key
	d.ClusterMembers = members
	d.Destination = clonePoint(center)
	for _, m := range members {
		if m.Destination != nil {
			d.Destination = clonePoint(*m.Destination)
			break
		}
	}
	d.Origin = nil
	d.OriginRecord = nil
}

// PlaceDestination sets a freshly placed destination, forgetting any
// cluster and origin picked before.
func (d *Draft) PlaceDestination(p cluster.Point) {
	d.ClusterKey = ""
	d.ClusterMembers = nil
	d.Destination = clonePoint(p)
	d.Origin = nil
	d.OriginRecord = nil
}

// PlaceOrigin sets a freshly placed origin.
func (d *Draft) PlaceOrigin(p cluster.Point) {
	d.Origin = clonePoint(p)
	d.OriginRecord = nil
}

// SelectOrigin reuses the origin of an existing lineup. Records without an
// origin are ignored.
func (d *Draft) SelectOrigin(r cluster.Record) {
	if r.Origin == nil {
		return
	}
	d.Origin = clonePoint(*r.Origin)
	d.OriginRecord = &r
}

// Callbacks routes view notifications into the draft.
func (d *Draft) Callbacks() view.Callbacks {
	return view.Callbacks{
		OnClusterSelected:   d.SelectCluster,
		OnDestinationPlaced: d.PlaceDestination,
		OnOriginPlaced:      d.PlaceOrigin,
		OnOriginSelected:    d.SelectOrigin,
	}
}

// Input is the view input for the current step. The origin step shows the
// chosen cluster expanded, or failing that the lineups landing near the
// placed destination.
func (d *Draft) Input(records []cluster.Record) view.Input {
	in := view.Input{Records: records, Mode: d.step.Mode()}
	if d.step != StepOrigin {
		return in
	}
	if d.ClusterKey != "" {
		in.ForceExpandKey = d.ClusterKey
	} else if d.Destination != nil {
		in.Focus = clonePoint(*d.Destination)
	}
	return in
}

// Sync feeds the step's input to e and restores the temporary marker the
// step shows, since input changes reset them.
func (d *Draft) Sync(e *view.Engine, records []cluster.Record) {
	e.SetInput(d.Input(records))
	d.ShowMarkers(e)
}

// ShowMarkers sets the temporary markers of e to the draft: the step's own
// position and nothing in the other slot. Selecting a cluster moves the
// destination without the engine placing anything, so hosts call this after
// cluster clicks as well.
func (d *Draft) ShowMarkers(e *view.Engine) {
	var dest, origin *cluster.Point
	switch d.step {
	case StepDestination:
		dest = d.Destination
	case StepOrigin:
		origin = d.Origin
	}
	e.SetTempMarker(view.SlotDestination, dest)
	e.SetTempMarker(view.SlotOrigin, origin)
}

// Validate checks the positions required to leave step s.
func (d *Draft) Validate(s Step) error {
	var errs []error
	if s >= StepDestination && d.Destination == nil {
		errs = append(errs, ErrMissingDestination)
	}
	if s >= StepOrigin && d.Origin == nil {
		errs = append(errs, ErrMissingOrigin)
	}
	return errors.Join(errs...)
}

// Next moves to the following step once the current one validates.
func (d *Draft) Next() error {
	if d.step == StepDetails {
		return nil
	}
	if err := d.Validate(d.step); err != nil {
		return err
	}
	d.step++
	return nil
}

// Back moves to the previous step. Positions are kept.
func (d *Draft) Back() {
	if d.step > StepVideo {
		d.step--
	}
}

// GoTo jumps to s. Going forward requires every step before s to validate.
func (d *Draft) GoTo(s Step) error {
	if s < StepVideo || s > StepDetails {
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(s))
	}
	if s > d.step {
		if err := d.Validate(s - 1); err != nil {
			return err
		}
	}
	d.step = s
	return nil
}

// Placement is the pair of positions a finished draft contributes to the
// new lineup.
type Placement struct {
	Destination    cluster.Point `json:"toPos"`
	Origin         cluster.Point `json:"fromPos"`
	ClusterKey     string        `json:"clusterKey,omitempty"`
	OriginRecordID string        `json:"originRecordId,omitempty"`
}

// Commit returns the draft's placement, or every missing position joined
// into one error.
func (d *Draft) Commit() (Placement, error) {
	if err := d.Validate(StepDetails); err != nil {
		return Placement{}, err
	}
	p := Placement{
		Destination: *d.Destination,
		Origin:      *d.Origin,
		ClusterKey:  d.ClusterKey,
	}
	if d.OriginRecord != nil {
		p.OriginRecordID = d.OriginRecord.ID
	}
	return p, nil
}

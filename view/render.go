package view

import (
	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
)

// Badge is a drawn cluster marker.
type Badge struct {
	Key    string        `json:"key"`
	Center cluster.Point `json:"center"`
	Count  int           `json:"count"`
	// ShowCount is false for singletons, which are drawn without a number.
	ShowCount bool `json:"showCount"`
}

// Line connects an expanded record's landing point to where it is thrown
// from. X1..Y2 are pixels relative to the container's top-left corner.
type Line struct {
	RecordID string        `json:"recordId"`
	From     cluster.Point `json:"from"`
	To       cluster.Point `json:"to"`
	X1       float64       `json:"x1"`
	Y1       float64       `json:"y1"`
	X2       float64       `json:"x2"`
	Y2       float64       `json:"y2"`
}

// OriginMarker is the clickable thrower position of an expanded record.
type OriginMarker struct {
	RecordID string        `json:"recordId"`
	Side     string        `json:"side,omitempty"`
	At       cluster.Point `json:"at"`
}

type TempMarker struct {
	Slot Slot          `json:"slot"`
	At   cluster.Point `json:"at"`
}

type HoverState struct {
	Record cluster.Record  `json:"record"`
	At     coords.Viewport `json:"at"`
}

// RenderState is everything an overlay needs to draw one frame.
type RenderState struct {
	Mode          Mode             `json:"mode"`
	Clusters      []Badge          `json:"clusters"`
	ExpandedKey   string           `json:"expandedKey,omitempty"`
	Expanded      []cluster.Record `json:"expanded"`
	Lines         []Line           `json:"lines"`
	OriginMarkers []OriginMarker   `json:"originMarkers"`
	TempMarkers   []TempMarker     `json:"tempMarkers"`
	FocusBadge    *cluster.Point   `json:"focusBadge,omitempty"`
	Hover         *HoverState      `json:"hover,omitempty"`
}

// Render derives the current frame. With a focus point no clusters are
// drawn, only a badge at the point. With an expanded cluster only that
// cluster is drawn. Lines need a mounted container and are left out
// otherwise.
func (e *Engine) Render() RenderState {
	rs := RenderState{
		Mode:          e.input.Mode,
		Clusters:      []Badge{},
		ExpandedKey:   e.expandedKey,
		Expanded:      e.expanded,
		Lines:         []Line{},
		OriginMarkers: []OriginMarker{},
		TempMarkers:   []TempMarker{},
	}
	if rs.Expanded == nil {
		rs.Expanded = []cluster.Record{}
	}

	switch {
	case e.input.Focus != nil && e.input.ForceExpandKey == "":
		f := *e.input.Focus
		rs.FocusBadge = &f
	default:
		for _, c := range e.Clusters() {
			if e.expandedKey != "" && c.Key != e.expandedKey {
				continue
			}
			rs.Clusters = append(rs.Clusters, Badge{
				Key:       c.Key,
				Center:    c.Center,
				Count:     c.Count(),
				ShowCount: c.Count() > 1,
			})
		}
	}

	rect, mounted := e.bounds()
	for _, r := range e.expanded {
		if r.Origin != nil {
			rs.OriginMarkers = append(rs.OriginMarkers, OriginMarker{RecordID: r.ID, Side: r.Side, At: *r.Origin})
		}
		if !mounted || r.Origin == nil || r.Destination == nil || *r.Origin == *r.Destination {
			continue
		}
		to, from := *r.Destination, *r.Origin
		rs.Lines = append(rs.Lines, Line{
			RecordID: r.ID,
			From:     from,
			To:       to,
			X1:       to.X / 100 * rect.Width,
			Y1:       to.Y / 100 * rect.Height,
			X2:       from.X / 100 * rect.Width,
			Y2:       from.Y / 100 * rect.Height,
		})
	}

	if e.opts.AllowTempMarkers {
		if e.tempDest != nil {
			rs.TempMarkers = append(rs.TempMarkers, TempMarker{Slot: SlotDestination, At: *e.tempDest})
		}
		if e.tempOrigin != nil {
			rs.TempMarkers = append(rs.TempMarkers, TempMarker{Slot: SlotOrigin, At: *e.tempOrigin})
		}
	}

	if r, at, ok := e.Hovered(); ok {
		rs.Hover = &HoverState{Record: r, At: at}
	}
	return rs
}

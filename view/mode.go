package view

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned by ParseMode.
var ErrUnknownMode = errors.New("unknown interaction mode")

// Mode is the interaction mode the host puts a view in.
type Mode string

const (
	Browse           Mode = "browse"
	PlaceDestination Mode = "place-destination"
	PlaceOrigin      Mode = "place-origin"
)

// ParseMode accepts the three mode names; the empty string means Browse.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", Browse:
		return Browse, nil
	case PlaceDestination, PlaceOrigin:
		return Mode(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Slot tags a temporary marker with the point it stands in for.
type Slot string

const (
	SlotDestination Slot = "destination"
	SlotOrigin      Slot = "origin"
)

// Target says what a pointer-down landed on.
type Target int

const (
	// TargetOverlay is empty surface inside the container.
	TargetOverlay Target = iota
	// TargetMarker is a cluster badge or origin marker; their own click
	// handlers deal with it.
	TargetMarker
	// TargetOutside is anywhere in the document outside the container.
	TargetOutside
)

func (t Target) String() string {
	switch t {
	case TargetOverlay:
		return "overlay"
	case TargetMarker:
		return "marker"
	case TargetOutside:
		return "outside"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

package view

import (
	"testing"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// board maps one client pixel to a tenth of a percent on both axes.
var board = coords.Fixed(coords.Rect{Left: 0, Top: 0, Width: 1000, Height: 1000})

func pt(x, y float64) *cluster.Point {
	return &cluster.Point{X: x, Y: y}
}

func scenarioRecords() []cluster.Record {
	return []cluster.Record{
		{ID: "a", Destination: pt(10, 10), Origin: pt(30, 40)},
		{ID: "b", Destination: pt(10.4, 9.6), Origin: pt(5, 5)},
		{ID: "c", Destination: pt(50, 50)},
	}
}

func newEngine(t *testing.T, mode Mode) (*Engine, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	e := NewEngine(DefaultOptions(), rec.Callbacks(), board)
	e.SetInput(Input{Records: scenarioRecords(), Mode: mode})
	return e, rec
}

func recordIDs(records []cluster.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"", "browse", "place-destination", "place-origin"} {
		m, err := ParseMode(s)
		require.NoError(t, err, s)
		assert.NotEmpty(t, m)
	}
	_, err := ParseMode("select-to")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestClusterClickTogglesExpansion(t *testing.T) {
	e, rec := newEngine(t, Browse)

	require.True(t, e.ClickCluster("10_10"))
	assert.Equal(t, "10_10", e.ExpandedKey())
	assert.Equal(t, []string{"a", "b"}, recordIDs(e.Expanded()))

	require.True(t, e.ClickCluster("10_10"))
	assert.Empty(t, e.ExpandedKey())
	assert.Empty(t, e.Expanded())
	assert.Zero(t, rec.Len())
}

func TestClusterClickReplacesExpansion(t *testing.T) {
	e, _ := newEngine(t, Browse)

	e.ClickCluster("10_10")
	e.ClickCluster("50_50")
	assert.Equal(t, "50_50", e.ExpandedKey())
	assert.Equal(t, []string{"c"}, recordIDs(e.Expanded()))
}

func TestClusterClickUnknownKey(t *testing.T) {
	e, _ := newEngine(t, Browse)
	e.ClickCluster("10_10")

	assert.False(t, e.ClickCluster("99_99"))
	assert.Equal(t, "10_10", e.ExpandedKey())
}

func TestClusterClickInPlaceDestinationSelects(t *testing.T) {
	e, rec := newEngine(t, PlaceDestination)

	require.True(t, e.ClickCluster("10_10"))
	assert.Empty(t, e.ExpandedKey())

	events := rec.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, EventClusterSelected, events[0].Kind)
	assert.Equal(t, "10_10", events[0].Key)
	assert.Equal(t, []string{"a", "b"}, recordIDs(events[0].Members))
	assert.Equal(t, &cluster.Point{X: 10, Y: 10}, events[0].Center)
}

func TestPlaceDestinationClearsExpansion(t *testing.T) {
	e, rec := newEngine(t, Browse)
	e.ClickCluster("10_10")
	require.Equal(t, "10_10", e.ExpandedKey())

	// A mode change alone keeps the cluster open.
	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceDestination})
	require.Equal(t, PlaceDestination, e.Mode())
	require.Equal(t, "10_10", e.ExpandedKey())

	p, ok := e.PointerDown(coords.Event{ClientX: 250, ClientY: 750}, TargetOverlay)
	require.True(t, ok)
	assert.Equal(t, cluster.Point{X: 25, Y: 75}, p)

	assert.Empty(t, e.ExpandedKey())
	assert.Empty(t, e.Expanded())
	got, ok := e.TempMarker(SlotDestination)
	require.True(t, ok)
	assert.Equal(t, p, got)

	events := rec.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, EventDestinationPlaced, events[0].Kind)
	assert.Equal(t, &p, events[0].Point)
}

func TestPlaceOriginKeepsExpansion(t *testing.T) {
	e := NewEngine(DefaultOptions(), Callbacks{}, board)
	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceOrigin, ForceExpandKey: "10_10"})

	var placed *cluster.Point
	e.cb.OnOriginPlaced = func(p cluster.Point) { placed = &p }

	_, ok := e.PointerDown(coords.Event{ChangedTouches: []coords.Touch{{ClientX: 200, ClientY: 300}}}, TargetOverlay)
	require.True(t, ok)
	require.NotNil(t, placed)
	assert.Equal(t, cluster.Point{X: 20, Y: 30}, *placed)
	assert.Equal(t, "10_10", e.ExpandedKey())

	_, ok = e.TempMarker(SlotDestination)
	assert.False(t, ok)
	origin, ok := e.TempMarker(SlotOrigin)
	require.True(t, ok)
	assert.Equal(t, *placed, origin)
}

func TestPointerDownWithoutContainer(t *testing.T) {
	rec := &Recorder{}
	e := NewEngine(DefaultOptions(), rec.Callbacks(), nil)
	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceDestination})

	_, ok := e.PointerDown(coords.Event{ClientX: 10, ClientY: 10}, TargetOverlay)
	assert.False(t, ok)
	assert.Zero(t, rec.Len())
}

func TestReadOnlyIgnoresPlacement(t *testing.T) {
	rec := &Recorder{}
	opts := DefaultOptions()
	opts.ReadOnly = true
	e := NewEngine(opts, rec.Callbacks(), board)
	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceOrigin})

	_, ok := e.PointerDown(coords.Event{ClientX: 10, ClientY: 10}, TargetOverlay)
	assert.False(t, ok)
	assert.Zero(t, rec.Len())
}

func TestBrowseSurfaceClickCollapses(t *testing.T) {
	e, rec := newEngine(t, Browse)
	e.ClickCluster("10_10")

	_, ok := e.PointerDown(coords.Event{ClientX: 900, ClientY: 900}, TargetMarker)
	assert.False(t, ok)
	assert.Equal(t, "10_10", e.ExpandedKey(), "marker presses are left to marker handlers")

	_, ok = e.PointerDown(coords.Event{ClientX: 900, ClientY: 900}, TargetOverlay)
	assert.False(t, ok)
	assert.Empty(t, e.ExpandedKey())
	assert.Zero(t, rec.Len())
}

func TestOutsideClickCollapsesOnlyInBrowse(t *testing.T) {
	e, _ := newEngine(t, Browse)
	e.ClickCluster("10_10")
	e.PointerDown(coords.Event{}, TargetOutside)
	assert.Empty(t, e.ExpandedKey())

	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceOrigin, ForceExpandKey: "10_10"})
	e.PointerDown(coords.Event{}, TargetOutside)
	assert.Equal(t, "10_10", e.ExpandedKey())
}

func TestOriginClick(t *testing.T) {
	t.Run("browse opens the record", func(t *testing.T) {
		e, rec := newEngine(t, Browse)
		e.ClickCluster("10_10")

		require.True(t, e.ClickOrigin("b"))
		events := rec.Drain()
		require.Len(t, events, 1)
		assert.Equal(t, EventRecordOpened, events[0].Kind)
		assert.Equal(t, "b", events[0].Record.ID)
		_, ok := e.TempMarker(SlotOrigin)
		assert.False(t, ok)
	})

	t.Run("place-origin reuses the origin", func(t *testing.T) {
		rec := &Recorder{}
		e := NewEngine(DefaultOptions(), rec.Callbacks(), board)
		e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceOrigin, ForceExpandKey: "10_10"})

		require.True(t, e.ClickOrigin("a"))
		events := rec.Drain()
		require.Len(t, events, 1)
		assert.Equal(t, EventOriginSelected, events[0].Kind)
		assert.Equal(t, "a", events[0].Record.ID)

		origin, ok := e.TempMarker(SlotOrigin)
		require.True(t, ok)
		assert.Equal(t, cluster.Point{X: 30, Y: 40}, origin)
	})

	t.Run("records outside the expansion are ignored", func(t *testing.T) {
		e, rec := newEngine(t, Browse)
		assert.False(t, e.ClickOrigin("a"))

		e.ClickCluster("50_50")
		assert.False(t, e.ClickOrigin("c"), "c has no origin")
		assert.Zero(t, rec.Len())
	})
}

func TestForceExpandKey(t *testing.T) {
	e := NewEngine(DefaultOptions(), Callbacks{}, board)

	e.SetInput(Input{Records: scenarioRecords(), ForceExpandKey: "10_10", Focus: pt(50, 50)})
	assert.Equal(t, "10_10", e.ExpandedKey())
	assert.Equal(t, []string{"a", "b"}, recordIDs(e.Expanded()))

	e.SetInput(Input{Records: scenarioRecords(), ForceExpandKey: "7_7", Focus: pt(50, 50)})
	assert.Empty(t, e.ExpandedKey(), "a stale key clears expansion")
	assert.Empty(t, e.Expanded())
}

func TestFocusScenario(t *testing.T) {
	records := []cluster.Record{
		{ID: "near", Destination: pt(20.3, 20.1), Origin: pt(60, 60)},
		{ID: "far", Destination: pt(30, 30), Origin: pt(70, 70)},
	}
	e := NewEngine(DefaultOptions(), Callbacks{}, board)
	e.SetInput(Input{Records: records, Focus: pt(20, 20), Mode: PlaceOrigin})

	assert.Empty(t, e.ExpandedKey())
	assert.Equal(t, []string{"near"}, recordIDs(e.Expanded()))

	rs := e.Render()
	assert.Empty(t, rs.Clusters)
	require.NotNil(t, rs.FocusBadge)
	assert.Equal(t, cluster.Point{X: 20, Y: 20}, *rs.FocusBadge)
}

func TestInputChangeResetsState(t *testing.T) {
	e, _ := newEngine(t, Browse)
	e.ClickCluster("10_10")
	e.SetTempMarker(SlotDestination, pt(1, 1))

	// Same input: nothing changes.
	e.SetInput(Input{Records: scenarioRecords(), Mode: Browse})
	assert.Equal(t, "10_10", e.ExpandedKey())
	_, ok := e.TempMarker(SlotDestination)
	assert.True(t, ok)

	records := append(scenarioRecords(), cluster.Record{ID: "d", Destination: pt(80, 80)})
	e.SetInput(Input{Records: records, Mode: Browse})
	assert.Empty(t, e.ExpandedKey())
	_, ok = e.TempMarker(SlotDestination)
	assert.False(t, ok)
	assert.Len(t, e.Clusters(), 3)
}

func TestEditedRecordsReplaceStaleCopies(t *testing.T) {
	before := []cluster.Record{{ID: "a", Title: "old", Side: "T", Destination: pt(10, 10), Origin: pt(30, 40)}}
	after := []cluster.Record{{ID: "a", Title: "new", Side: "CT", Destination: pt(10, 10), Origin: pt(30, 40)}}

	rec := &Recorder{}
	e := NewEngine(DefaultOptions(), rec.Callbacks(), board)
	e.SetInput(Input{Records: before})
	require.True(t, e.ClickCluster("10_10"))
	require.True(t, e.HoverEnter("a"))

	e.SetInput(Input{Records: after})
	assert.Empty(t, e.ExpandedKey(), "an edited record set resets the selection")
	_, _, hovered := e.Hovered()
	assert.False(t, hovered)

	require.True(t, e.ClickCluster("10_10"))
	assert.Equal(t, "new", e.Clusters()[0].Members[0].Title)
	rs := e.Render()
	require.Len(t, rs.OriginMarkers, 1)
	assert.Equal(t, "CT", rs.OriginMarkers[0].Side)
	require.Len(t, rs.Expanded, 1)
	assert.Equal(t, "new", rs.Expanded[0].Title)

	rec.Drain()
	require.True(t, e.ClickOrigin("a"))
	events := rec.Drain()
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Record.Title)
	assert.Equal(t, "CT", events[0].Record.Side)
}

func TestEditedRecordsRefreshForcedExpansion(t *testing.T) {
	e := NewEngine(DefaultOptions(), Callbacks{}, board)
	e.SetInput(Input{
		Records:        []cluster.Record{{ID: "a", Side: "T", Destination: pt(10, 10), Origin: pt(30, 40)}},
		ForceExpandKey: "10_10",
	})
	e.SetInput(Input{
		Records:        []cluster.Record{{ID: "a", Side: "CT", Destination: pt(10, 10), Origin: pt(30, 40)}},
		ForceExpandKey: "10_10",
	})

	assert.Equal(t, "10_10", e.ExpandedKey())
	rs := e.Render()
	require.Len(t, rs.OriginMarkers, 1)
	assert.Equal(t, "CT", rs.OriginMarkers[0].Side)
}

func TestModeChangeKeepsSelection(t *testing.T) {
	e, _ := newEngine(t, Browse)
	e.ClickCluster("10_10")
	e.SetTempMarker(SlotOrigin, pt(1, 1))

	e.SetInput(Input{Records: scenarioRecords(), Mode: PlaceOrigin})
	assert.Equal(t, PlaceOrigin, e.Mode())
	assert.Equal(t, "10_10", e.ExpandedKey())
	_, ok := e.TempMarker(SlotOrigin)
	assert.True(t, ok)
}

func TestFocusChangeResetsState(t *testing.T) {
	e := NewEngine(DefaultOptions(), Callbacks{}, board)
	e.SetInput(Input{Records: scenarioRecords(), Focus: pt(10, 10)})
	assert.Equal(t, []string{"a", "b"}, recordIDs(e.Expanded()))

	e.SetInput(Input{Records: scenarioRecords(), Focus: pt(50, 50)})
	assert.Equal(t, []string{"c"}, recordIDs(e.Expanded()))

	e.SetInput(Input{Records: scenarioRecords()})
	assert.Empty(t, e.Expanded())
}

func TestClustersAreMemoized(t *testing.T) {
	e, _ := newEngine(t, Browse)

	first := e.Clusters()
	second := e.Clusters()
	require.NotEmpty(t, first)
	assert.Same(t, &first[0], &second[0])

	e.SetBucketSize(100)
	third := e.Clusters()
	assert.Len(t, third, 2)
	assert.Equal(t, "0_0", third[0].Key)
}

func TestEngineNeverMutatesRecords(t *testing.T) {
	records := scenarioRecords()
	e := NewEngine(DefaultOptions(), Callbacks{}, board)
	e.SetInput(Input{Records: records, Mode: PlaceOrigin, ForceExpandKey: "10_10"})

	e.ClickOrigin("a")
	e.PointerDown(coords.Event{ClientX: 1, ClientY: 1}, TargetOverlay)

	assert.Equal(t, scenarioRecords(), records)
}

func TestHover(t *testing.T) {
	rec := &Recorder{}
	container := coords.Fixed(coords.Rect{Left: 100, Top: 50, Width: 800, Height: 600})
	e := NewEngine(DefaultOptions(), rec.Callbacks(), container)
	e.SetInput(Input{Records: scenarioRecords()})
	e.ClickCluster("10_10")

	require.True(t, e.HoverEnter("a"))
	require.True(t, e.HoverMove("a", coords.Event{ClientX: 345, ClientY: 290}))
	e.HoverLeave()
	assert.False(t, e.HoverEnter("c"))

	events := rec.Drain()
	require.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, EventHoverChanged, ev.Kind)
	}
	assert.Equal(t, &coords.Viewport{X: 340, Y: 290}, events[0].Viewport)
	assert.Equal(t, &coords.Viewport{X: 345, Y: 290}, events[1].Viewport)
	assert.Nil(t, events[2].Record)
	assert.Nil(t, events[2].Viewport)
}

func TestHoverLeaveWithoutHoverIsSilent(t *testing.T) {
	e, rec := newEngine(t, Browse)
	e.HoverLeave()
	assert.Zero(t, rec.Len())

	e.ClickCluster("10_10")
	require.True(t, e.HoverEnter("a"))
	e.HoverLeave()
	e.HoverLeave()
	assert.Equal(t, 2, rec.Len())
}

func TestChain(t *testing.T) {
	var calls []string
	a := Callbacks{OnRecordOpened: func(r cluster.Record) { calls = append(calls, "a:"+r.ID) }}
	b := Callbacks{OnRecordOpened: func(r cluster.Record) { calls = append(calls, "b:"+r.ID) }}

	e := NewEngine(DefaultOptions(), Chain(a, Callbacks{}, b), board)
	e.SetInput(Input{Records: scenarioRecords()})
	e.ClickCluster("10_10")
	e.ClickOrigin("a")

	assert.Equal(t, []string{"a:a", "b:a"}, calls)
}

package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/AbelMP17/OnlyNadesV2/metrics"
	"github.com/AbelMP17/OnlyNadesV2/store"
	"github.com/AbelMP17/OnlyNadesV2/view"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

var board = coords.Rect{Width: 1000, Height: 1000}

func pt(x, y float64) *cluster.Point { return &cluster.Point{X: x, Y: y} }

func fixtures() []cluster.Record {
	return []cluster.Record{
		{ID: "a", MapSlug: "mirage", Type: "smoke", Side: "T", Origin: pt(30, 40), Destination: pt(10, 10)},
		{ID: "b", MapSlug: "mirage", Type: "flash", Side: "CT", Origin: pt(5, 5), Destination: pt(10.4, 9.6)},
		{ID: "c", MapSlug: "mirage", Type: "smoke", Side: "CT", Destination: pt(50, 50)},
	}
}

// clock is a settable time source shared by the store and the runner.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	runner *SessionRunner
	store  *store.Store
	clock  *clock
	reg    *metrics.Registry
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	clk := newClock()
	reg := metrics.NewRegistry()
	logger := zaptest.NewLogger(t)

	st, err := store.New(t.TempDir(), store.WithLogger(logger), store.WithClock(clk.Now))
	require.NoError(t, err)
	_, err = st.Save("mirage", fixtures())
	require.NoError(t, err)

	r := NewSessionRunner(st, cfg, WithLogger(logger), WithMetrics(reg), WithClock(clk.Now))
	t.Cleanup(r.Close)
	return &fixture{runner: r, store: st, clock: clk, reg: reg}
}

func (f *fixture) create(t *testing.T, req CreateSessionRequest) *SessionState {
	t.Helper()
	if req.MapSlug == "" {
		req.MapSlug = "mirage"
	}
	if req.Container == (coords.Rect{}) {
		req.Container = board
	}
	state, err := f.runner.CreateSession(context.Background(), &req)
	require.NoError(t, err)
	return state
}

func click(x, y float64) coords.Event { return coords.Event{ClientX: x, ClientY: y} }

func TestCreateSessionBrowse(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	state := f.create(t, CreateSessionRequest{})

	assert.NotEmpty(t, state.SessionID)
	assert.Equal(t, "mirage", state.MapSlug)
	assert.Nil(t, state.Draft)
	assert.Empty(t, state.Events)
	assert.Equal(t, view.Browse, state.Render.Mode)
	require.Len(t, state.Render.Clusters, 2)
	assert.Equal(t, "10_10", state.Render.Clusters[0].Key)
	assert.Equal(t, 2, state.Render.Clusters[0].Count)
	assert.False(t, state.Render.Clusters[1].ShowCount)
	assert.Equal(t, 1, f.runner.Len())
}

func TestBrowseExpandAndOutsideCollapse(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID

	state, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)
	assert.Equal(t, "10_10", state.Render.ExpandedKey)
	assert.Len(t, state.Render.Clusters, 1)
	assert.Len(t, state.Render.Lines, 2)
	assert.Len(t, state.Render.OriginMarkers, 2)

	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(1500, 20), Target: "outside"})
	require.NoError(t, err)
	assert.Empty(t, state.Render.ExpandedKey)
	assert.Len(t, state.Render.Clusters, 2)
}

func TestPressInsideContainerKeepsExpansionForMarkers(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID

	_, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)

	state, err := f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(100, 100), Target: "marker"})
	require.NoError(t, err)
	assert.Equal(t, "10_10", state.Render.ExpandedKey)

	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(700, 700)})
	require.NoError(t, err)
	assert.Empty(t, state.Render.ExpandedKey)
}

func TestClickOriginOpensRecord(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID

	_, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)

	state, err := f.runner.ClickOrigin(ctx, &ClickOriginRequest{SessionID: id, RecordID: "a"})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, view.EventRecordOpened, state.Events[0].Kind)
	assert.Equal(t, "a", state.Events[0].Record.ID)

	// Events are reported once.
	state, err = f.runner.GetState(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Empty(t, state.Events)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.SessionEventsTotal.WithLabelValues(string(view.EventRecordOpened))))
}

func TestHover(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID
	_, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)

	state, err := f.runner.Hover(ctx, &HoverRequest{SessionID: id, RecordID: "a", Phase: "enter"})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, &coords.Viewport{X: 300, Y: 400}, state.Events[0].Viewport)
	require.NotNil(t, state.Render.Hover)
	assert.Equal(t, "a", state.Render.Hover.Record.ID)

	state, err = f.runner.Hover(ctx, &HoverRequest{SessionID: id, RecordID: "a", Phase: "move", Event: click(305, 402)})
	require.NoError(t, err)
	assert.Equal(t, &coords.Viewport{X: 305, Y: 402}, state.Events[0].Viewport)

	state, err = f.runner.Hover(ctx, &HoverRequest{SessionID: id, Phase: "leave"})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Nil(t, state.Events[0].Record)
	assert.Nil(t, state.Events[0].Viewport)
	assert.Nil(t, state.Render.Hover)

	_, err = f.runner.Hover(ctx, &HoverRequest{SessionID: id, Phase: "hop"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestAuthoringPlacesFreshPositions(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	state := f.create(t, CreateSessionRequest{Authoring: true})
	id := state.SessionID
	require.NotNil(t, state.Draft)
	assert.Equal(t, "video", state.Draft.Step)
	assert.Equal(t, view.Browse, state.Render.Mode)

	state, err := f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "next"})
	require.NoError(t, err)
	assert.Equal(t, "destination", state.Draft.Step)
	assert.Equal(t, view.PlaceDestination, state.Render.Mode)
	assert.Equal(t, []string{"destination"}, state.Draft.Missing)

	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(250, 750)})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, view.EventDestinationPlaced, state.Events[0].Kind)
	assert.Equal(t, pt(25, 75), state.Draft.Destination)
	assert.Empty(t, state.Draft.Missing)
	require.Len(t, state.Render.TempMarkers, 1)
	assert.Equal(t, view.SlotDestination, state.Render.TempMarkers[0].Slot)

	state, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "next"})
	require.NoError(t, err)
	assert.Equal(t, "origin", state.Draft.Step)
	assert.Equal(t, view.PlaceOrigin, state.Render.Mode)
	assert.Equal(t, pt(25, 75), state.Render.FocusBadge)
	assert.Empty(t, state.Render.Clusters)

	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(100, 200)})
	require.NoError(t, err)
	assert.Equal(t, view.EventOriginPlaced, state.Events[0].Kind)
	assert.Equal(t, pt(10, 20), state.Draft.Origin)
	require.Len(t, state.Render.TempMarkers, 1)
	assert.Equal(t, view.SlotOrigin, state.Render.TempMarkers[0].Slot)

	state, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "next"})
	require.NoError(t, err)
	assert.Equal(t, "details", state.Draft.Step)
	assert.Equal(t, view.Browse, state.Render.Mode)

	// Going back restores the placed origin marker.
	state, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "back"})
	require.NoError(t, err)
	require.Len(t, state.Render.TempMarkers, 1)
	assert.Equal(t, cluster.Point{X: 10, Y: 20}, state.Render.TempMarkers[0].At)
}

func TestAuthoringReusesClusterAndOrigin(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{Authoring: true}).SessionID

	_, err := f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "destination"})
	require.NoError(t, err)

	state, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, view.EventClusterSelected, state.Events[0].Kind)
	assert.Equal(t, "10_10", state.Draft.ClusterKey)
	assert.Equal(t, pt(10, 10), state.Draft.Destination)
	assert.Empty(t, state.Render.ExpandedKey)

	state, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "next"})
	require.NoError(t, err)
	assert.Equal(t, "10_10", state.Render.ExpandedKey)
	assert.Len(t, state.Render.OriginMarkers, 2)

	state, err = f.runner.ClickOrigin(ctx, &ClickOriginRequest{SessionID: id, RecordID: "b"})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, view.EventOriginSelected, state.Events[0].Kind)
	assert.Equal(t, pt(5, 5), state.Draft.Origin)
	assert.Equal(t, "b", state.Draft.OriginRecordID)
}

func TestAuthoringClusterPickMovesTempDestination(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{Authoring: true}).SessionID

	_, err := f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "destination"})
	require.NoError(t, err)
	state, err := f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(300, 300)})
	require.NoError(t, err)
	assert.Equal(t, pt(30, 30), state.Draft.Destination)

	state, err = f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "50_50"})
	require.NoError(t, err)
	require.NotNil(t, state.Draft.Destination)
	assert.Equal(t, pt(50, 50), state.Draft.Destination)
	require.Len(t, state.Render.TempMarkers, 1)
	assert.Equal(t, view.SlotDestination, state.Render.TempMarkers[0].Slot)
	assert.Equal(t, *state.Draft.Destination, state.Render.TempMarkers[0].At)
}

func TestSetStepErrors(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	plain := f.create(t, CreateSessionRequest{}).SessionID
	_, err := f.runner.SetStep(ctx, &StepRequest{SessionID: plain, Step: "next"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	id := f.create(t, CreateSessionRequest{Authoring: true}).SessionID
	_, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "origin"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.runner.SetStep(ctx, &StepRequest{SessionID: id, Step: "sideways"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	state, err := f.runner.GetState(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Equal(t, "video", state.Draft.Step)
}

func TestFilterAndResize(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{Mode: "place-destination"}).SessionID

	state, err := f.runner.SetFilter(ctx, &FilterRequest{SessionID: id, Filter: cluster.Filter{Type: "FLASH"}})
	require.NoError(t, err)
	require.Len(t, state.Render.Clusters, 1)
	assert.Equal(t, 1, state.Render.Clusters[0].Count)
	assert.Equal(t, cluster.Filter{Type: "FLASH"}, state.Filter)

	_, err = f.runner.ResizeContainer(ctx, &ResizeRequest{SessionID: id, Container: coords.Rect{Left: 100, Width: 500, Height: 0}})
	require.NoError(t, err)
	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(200, 0)})
	require.NoError(t, err)
	assert.Empty(t, state.Events)

	_, err = f.runner.ResizeContainer(ctx, &ResizeRequest{SessionID: id, Container: coords.Rect{Left: 100, Width: 500, Height: 500}})
	require.NoError(t, err)
	state, err = f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Event: click(200, 250)})
	require.NoError(t, err)
	require.Len(t, state.Events, 1)
	assert.Equal(t, pt(20, 50), state.Events[0].Point)
}

func TestReadOnlySession(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	id := f.create(t, CreateSessionRequest{Mode: "place-origin", ReadOnly: true}).SessionID

	state, err := f.runner.PointerDown(context.Background(), &PointerRequest{SessionID: id, Event: click(500, 500)})
	require.NoError(t, err)
	assert.Empty(t, state.Events)
	assert.Empty(t, state.Render.TempMarkers)
}

func TestUnknownSession(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	_, err := f.runner.GetState(ctx, &SessionRequest{SessionID: "nope"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id := f.create(t, CreateSessionRequest{}).SessionID
	_, err = f.runner.CloseSession(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	_, err = f.runner.CloseSession(ctx, &SessionRequest{SessionID: id})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.runner.Reload(ctx, &SessionRequest{SessionID: id})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestInvalidArguments(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	for _, req := range []*CreateSessionRequest{
		{MapSlug: "../etc"},
		{MapSlug: "mirage", Mode: "fly"},
		{MapSlug: "mirage", BucketSize: -1},
	} {
		_, err := f.runner.CreateSession(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%+v", req)
	}

	id := f.create(t, CreateSessionRequest{}).SessionID
	_, err := f.runner.PointerDown(ctx, &PointerRequest{SessionID: id, Target: "window"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10-10"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, cluster.ErrInvalidKey)
}

func TestCloseSessionUnmounts(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	id := f.create(t, CreateSessionRequest{}).SessionID

	f.runner.mu.RLock()
	s := f.runner.sessions[id]
	f.runner.mu.RUnlock()
	require.True(t, s.engine.Mounted())
	require.Equal(t, 1, s.doc.Len())

	_, err := f.runner.CloseSession(context.Background(), &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.False(t, s.engine.Mounted())
	assert.Equal(t, 0, s.doc.Len())
	assert.Equal(t, 0.0, testutil.ToFloat64(f.reg.SessionsActive))
}

func TestLeastRecentlyUsedEviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 2
	f := newFixture(t, cfg)
	ctx := context.Background()

	first := f.create(t, CreateSessionRequest{}).SessionID
	second := f.create(t, CreateSessionRequest{}).SessionID
	_, err := f.runner.GetState(ctx, &SessionRequest{SessionID: first})
	require.NoError(t, err)
	third := f.create(t, CreateSessionRequest{}).SessionID

	assert.Equal(t, 2, f.runner.Len())
	_, err = f.runner.GetState(ctx, &SessionRequest{SessionID: second})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	for _, id := range []string{first, third} {
		_, err = f.runner.GetState(ctx, &SessionRequest{SessionID: id})
		assert.NoError(t, err)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.SessionsEvicted.WithLabelValues("lru")))
}

func TestSweepIdleSessions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SessionTTL = time.Minute
	f := newFixture(t, cfg)
	ctx := context.Background()

	stale := f.create(t, CreateSessionRequest{}).SessionID
	f.clock.Advance(45 * time.Second)
	fresh := f.create(t, CreateSessionRequest{}).SessionID
	f.clock.Advance(30 * time.Second)

	assert.Equal(t, 1, f.runner.sweep())
	_, err := f.runner.GetState(ctx, &SessionRequest{SessionID: stale})
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.runner.GetState(ctx, &SessionRequest{SessionID: fresh})
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.reg.SessionsEvicted.WithLabelValues("idle")))
}

func TestSweeperStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	r := NewSessionRunner(st, Config{SweepInterval: time.Millisecond, SessionTTL: time.Nanosecond})
	_, err = r.CreateSession(context.Background(), &CreateSessionRequest{MapSlug: "mirage", Container: board})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	r.Close()
	r.Close()
}

func TestConcurrentSessionCalls(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
				assert.NoError(t, err)
				_, err = f.runner.GetClusters(ctx, &ClustersRequest{MapSlug: "mirage"})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	// 160 toggles end collapsed.
	state, err := f.runner.GetState(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Empty(t, state.Render.ExpandedKey)
}

func TestGetClustersAndFindNear(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()

	resp, err := f.runner.GetClusters(ctx, &ClustersRequest{MapSlug: "mirage"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.BucketSize)
	assert.Len(t, resp.Clusters, 2)
	assert.Equal(t, 3, resp.Summary.TotalRecords)

	resp, err = f.runner.GetClusters(ctx, &ClustersRequest{MapSlug: "mirage", Filter: cluster.Filter{Side: "ct"}})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Summary.TotalRecords)

	_, err = f.runner.GetClusters(ctx, &ClustersRequest{MapSlug: "mirage", BucketSize: 500})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	near, err := f.runner.FindNear(ctx, &NearRequest{MapSlug: "mirage", Point: cluster.Point{X: 10, Y: 10}})
	require.NoError(t, err)
	require.Len(t, near.Records, 2)
	assert.Equal(t, "a", near.Records[0].ID)

	tight := 0.1
	near, err = f.runner.FindNear(ctx, &NearRequest{MapSlug: "mirage", Point: cluster.Point{X: 10, Y: 10}, Threshold: &tight})
	require.NoError(t, err)
	assert.Len(t, near.Records, 1)

	empty, err := f.runner.FindNear(ctx, &NearRequest{MapSlug: "nuke", Point: cluster.Point{X: 10, Y: 10}})
	require.NoError(t, err)
	assert.NotNil(t, empty.Records)
	assert.Empty(t, empty.Records)

	negative := -1.0
	_, err = f.runner.FindNear(ctx, &NearRequest{MapSlug: "mirage", Threshold: &negative})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSaveSnapshotAndReload(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID

	records := append(fixtures(), cluster.Record{ID: "d", Destination: pt(80, 80)})
	saved, err := f.runner.SaveSnapshot(ctx, &SaveSnapshotRequest{MapSlug: "mirage", Records: records})
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Snapshot.NumRecords)

	list, err := f.runner.ListSnapshots(ctx, &ListSnapshotsRequest{MapSlug: "mirage"})
	require.NoError(t, err)
	require.Len(t, list.Snapshots, 2)
	assert.Equal(t, saved.Snapshot.ID, list.Snapshots[0].ID)

	state, err := f.runner.GetState(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Len(t, state.Render.Clusters, 2)

	state, err = f.runner.Reload(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Len(t, state.Render.Clusters, 3)

	stored, err := f.store.Records(ctx, "mirage")
	require.NoError(t, err)
	assert.Equal(t, "mirage", stored[3].MapSlug)

	_, err = f.runner.SaveSnapshot(ctx, &SaveSnapshotRequest{MapSlug: "mirage", Records: []cluster.Record{{Title: "no id"}}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.runner.SaveSnapshot(ctx, &SaveSnapshotRequest{MapSlug: "mirage", Records: []cluster.Record{{ID: "x", MapSlug: "nuke"}}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = f.runner.ListSnapshots(ctx, &ListSnapshotsRequest{MapSlug: "Mirage"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReloadServesEditedRecords(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	id := f.create(t, CreateSessionRequest{}).SessionID
	_, err := f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)

	records := fixtures()
	records[0].Side = "CT"
	records[0].Title = "window smoke"
	_, err = f.runner.SaveSnapshot(ctx, &SaveSnapshotRequest{MapSlug: "mirage", Records: records})
	require.NoError(t, err)

	state, err := f.runner.Reload(ctx, &SessionRequest{SessionID: id})
	require.NoError(t, err)
	assert.Empty(t, state.Render.ExpandedKey)

	state, err = f.runner.ClickCluster(ctx, &ClickClusterRequest{SessionID: id, Key: "10_10"})
	require.NoError(t, err)
	require.Len(t, state.Render.OriginMarkers, 2)
	assert.Equal(t, "CT", state.Render.OriginMarkers[0].Side)
	assert.Equal(t, "window smoke", state.Render.Expanded[0].Title)
}

package runner

import (
	"context"
	"errors"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/coords"
	"github.com/AbelMP17/OnlyNadesV2/store"
	"github.com/AbelMP17/OnlyNadesV2/view"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Service is the session API shared by the in-process SessionRunner and
// the gRPC Client, so transports can sit on either.
type Service interface {
	CreateSession(ctx context.Context, req *CreateSessionRequest) (*SessionState, error)
	CloseSession(ctx context.Context, req *SessionRequest) (*Empty, error)
	GetState(ctx context.Context, req *SessionRequest) (*SessionState, error)
	PointerDown(ctx context.Context, req *PointerRequest) (*SessionState, error)
	ClickCluster(ctx context.Context, req *ClickClusterRequest) (*SessionState, error)
	ClickOrigin(ctx context.Context, req *ClickOriginRequest) (*SessionState, error)
	Hover(ctx context.Context, req *HoverRequest) (*SessionState, error)
	ResizeContainer(ctx context.Context, req *ResizeRequest) (*SessionState, error)
	SetStep(ctx context.Context, req *StepRequest) (*SessionState, error)
	SetFilter(ctx context.Context, req *FilterRequest) (*SessionState, error)
	Reload(ctx context.Context, req *SessionRequest) (*SessionState, error)

	GetClusters(ctx context.Context, req *ClustersRequest) (*ClustersResponse, error)
	FindNear(ctx context.Context, req *NearRequest) (*NearResponse, error)
	ListSnapshots(ctx context.Context, req *ListSnapshotsRequest) (*ListSnapshotsResponse, error)
	SaveSnapshot(ctx context.Context, req *SaveSnapshotRequest) (*SaveSnapshotResponse, error)
}

type Empty struct{}

type CreateSessionRequest struct {
	MapSlug string `json:"mapSlug" validate:"required"`
	// Mode applies to plain views; authoring sessions take theirs from the
	// wizard step.
	Mode       string         `json:"mode,omitempty" validate:"omitempty,oneof=browse place-destination place-origin"`
	Authoring  bool           `json:"authoring,omitempty"`
	ReadOnly   bool           `json:"readOnly,omitempty"`
	Container  coords.Rect    `json:"container"`
	Filter     cluster.Filter `json:"filter"`
	BucketSize float64        `json:"bucketSize,omitempty" validate:"gte=0,lte=100"`
}

type SessionRequest struct {
	SessionID string `json:"sessionId"`
}

type PointerRequest struct {
	SessionID string       `json:"sessionId"`
	Event     coords.Event `json:"event"`
	// Target is "overlay", "marker" or "outside"; empty means overlay.
	Target string `json:"target,omitempty" validate:"omitempty,oneof=overlay marker outside"`
}

type ClickClusterRequest struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
}

type ClickOriginRequest struct {
	SessionID string `json:"sessionId"`
	RecordID  string `json:"recordId"`
}

type HoverRequest struct {
	SessionID string       `json:"sessionId"`
	RecordID  string       `json:"recordId,omitempty"`
	Phase     string       `json:"phase" validate:"required,oneof=enter move leave"`
	Event     coords.Event `json:"event"`
}

type ResizeRequest struct {
	SessionID string      `json:"sessionId"`
	Container coords.Rect `json:"container"`
}

type StepRequest struct {
	SessionID string `json:"sessionId"`
	// Step is a step name, or "next" / "back".
	Step string `json:"step" validate:"required"`
}

type FilterRequest struct {
	SessionID string         `json:"sessionId"`
	Filter    cluster.Filter `json:"filter"`
}

// DraftState mirrors the wizard draft of an authoring session.
type DraftState struct {
	Step           string         `json:"step"`
	ClusterKey     string         `json:"clusterKey,omitempty"`
	Destination    *cluster.Point `json:"toPos,omitempty"`
	Origin         *cluster.Point `json:"fromPos,omitempty"`
	OriginRecordID string         `json:"originRecordId,omitempty"`
	// Missing lists what the current step still needs before Next.
	Missing []string `json:"missing,omitempty"`
}

// SessionState answers every session call: the callbacks the engine fired
// while handling it and the frame to draw afterwards.
type SessionState struct {
	SessionID string           `json:"sessionId"`
	MapSlug   string           `json:"mapSlug"`
	Filter    cluster.Filter   `json:"filter"`
	Container coords.Rect      `json:"container"`
	Draft     *DraftState      `json:"draft,omitempty"`
	Events    []view.Event     `json:"events"`
	Render    view.RenderState `json:"render"`
}

type ClustersRequest struct {
	MapSlug    string         `json:"mapSlug"`
	Filter     cluster.Filter `json:"filter"`
	BucketSize float64        `json:"bucketSize,omitempty"`
}

type ClustersResponse struct {
	MapSlug    string            `json:"mapSlug"`
	BucketSize float64           `json:"bucketSize"`
	Clusters   []cluster.Cluster `json:"clusters"`
	Summary    cluster.Summary   `json:"summary"`
}

type NearRequest struct {
	MapSlug string        `json:"mapSlug"`
	Point   cluster.Point `json:"point"`
	// Threshold defaults to the configured focus threshold when nil.
	Threshold *float64 `json:"threshold,omitempty"`
}

type NearResponse struct {
	Records []cluster.Record `json:"records"`
}

type ListSnapshotsRequest struct {
	MapSlug string `json:"mapSlug"`
}

type ListSnapshotsResponse struct {
	Snapshots []store.Snapshot `json:"snapshots"`
}

type SaveSnapshotRequest struct {
	MapSlug string           `json:"mapSlug"`
	Records []cluster.Record `json:"records"`
}

type SaveSnapshotResponse struct {
	Snapshot store.Snapshot `json:"snapshot"`
}

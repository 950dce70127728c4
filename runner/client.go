package runner

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client reaches a SessionRunner served over gRPC. Errors come back as the
// same sentinels SessionRunner returns.
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

var _ Service = (*Client)(nil)

// Dial connects to a runner at target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: conn, conn: conn}, nil
}

// NewClient wraps an existing connection. Close leaves it open.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Close closes the connection opened by Dial.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, req, out, grpc.CallContentSubtype(jsonCodec{}.Name()))
	if err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "CreateSession", req)
}

func (c *Client) CloseSession(ctx context.Context, req *SessionRequest) (*Empty, error) {
	return invoke[Empty](ctx, c, "CloseSession", req)
}

func (c *Client) GetState(ctx context.Context, req *SessionRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "GetState", req)
}

func (c *Client) PointerDown(ctx context.Context, req *PointerRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "PointerDown", req)
}

func (c *Client) ClickCluster(ctx context.Context, req *ClickClusterRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "ClickCluster", req)
}

func (c *Client) ClickOrigin(ctx context.Context, req *ClickOriginRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "ClickOrigin", req)
}

func (c *Client) Hover(ctx context.Context, req *HoverRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "Hover", req)
}

func (c *Client) ResizeContainer(ctx context.Context, req *ResizeRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "ResizeContainer", req)
}

func (c *Client) SetStep(ctx context.Context, req *StepRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "SetStep", req)
}

func (c *Client) SetFilter(ctx context.Context, req *FilterRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "SetFilter", req)
}

func (c *Client) Reload(ctx context.Context, req *SessionRequest) (*SessionState, error) {
	return invoke[SessionState](ctx, c, "Reload", req)
}

func (c *Client) GetClusters(ctx context.Context, req *ClustersRequest) (*ClustersResponse, error) {
	return invoke[ClustersResponse](ctx, c, "GetClusters", req)
}

func (c *Client) FindNear(ctx context.Context, req *NearRequest) (*NearResponse, error) {
	return invoke[NearResponse](ctx, c, "FindNear", req)
}

func (c *Client) ListSnapshots(ctx context.Context, req *ListSnapshotsRequest) (*ListSnapshotsResponse, error) {
	return invoke[ListSnapshotsResponse](ctx, c, "ListSnapshots", req)
}

func (c *Client) SaveSnapshot(ctx context.Context, req *SaveSnapshotRequest) (*SaveSnapshotResponse, error) {
	return invoke[SaveSnapshotResponse](ctx, c, "SaveSnapshot", req)
}

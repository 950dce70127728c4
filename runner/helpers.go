package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/AbelMP17/OnlyNadesV2/cluster"
	"github.com/AbelMP17/OnlyNadesV2/store"
	"github.com/AbelMP17/OnlyNadesV2/view"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func parseTarget(s string) (view.Target, error) {
	switch s {
	case "", "overlay":
		return view.TargetOverlay, nil
	case "marker":
		return view.TargetMarker, nil
	case "outside":
		return view.TargetOutside, nil
	}
	return 0, fmt.Errorf("%w: unknown pointer target %q", ErrInvalidArgument, s)
}

func clonePoint(p *cluster.Point) *cluster.Point {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// toStatus converts a service error to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, store.ErrInvalidSlug):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus maps a gRPC status back onto the sentinel errors so callers of
// Client can use errors.Is as they would with SessionRunner.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrSessionNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalidArgument, st.Message())
	case codes.Canceled:
		return fmt.Errorf("%w: %s", context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", context.DeadlineExceeded, st.Message())
	}
	return err
}

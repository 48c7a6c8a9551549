package api

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/ecef-velocity/core"
	"github.com/signalsfoundry/ecef-velocity/kb"
)

// ErrInvalidRequest marks a request that failed structural validation.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps track and query errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, kb.ErrTrackNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, kb.ErrTrackExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, core.ErrLookupInvariant):
		return status.Error(codes.Internal, err.Error())
	}

	if rej, ok := core.AsRejection(err); ok && rej.IsUserError() {
		return status.Error(codes.OutOfRange, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

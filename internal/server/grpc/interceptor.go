package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/pathwayfr/pathway/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	err = toStatus(err)
	s.logger.Debug(ctx, "grpc call",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}

func (s *GRPCServer) recoveryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "panic in grpc handler", "method", info.FullMethod, "panic", r)
			resp, err = nil, status.Error(codes.Internal, common.ErrorInternal.Msg)
		}
	}()
	return handler(ctx, req)
}

// toStatus maps classified errors onto gRPC codes. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	var code codes.Code
	switch common.KindOf(err) {
	case common.KindValidation:
		code = codes.InvalidArgument
	case common.KindAuthentication:
		code = codes.Unauthenticated
	case common.KindAuthorization:
		code = codes.PermissionDenied
	case common.KindNotFound:
		code = codes.NotFound
	case common.KindConflict:
		code = codes.AlreadyExists
	default:
		code = codes.Internal
	}
	return status.Error(code, common.PublicMessage(err))
}

package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/loft-algerie/messaging/pkg/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logs each call, turns panics into codes.Internal and bounds
// calls that arrive without a deadline.
func UnaryServerInterceptor(defaultTimeout time.Duration) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp any, err error) {
		start := time.Now()
		if _, ok := ctx.Deadline(); !ok && defaultTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
			defer cancel()
		}
		log := logger.FromContext(ctx).With(slog.String("grpc_method", info.FullMethod))

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc unary panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			logCall(log, "grpc unary", start, err)
		}()

		return handler(logger.WithContext(ctx, log), req)
	}
}

func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		start := time.Now()
		log := logger.FromContext(ss.Context()).With(slog.String("grpc_method", info.FullMethod))

		defer func() {
			if r := recover(); r != nil {
				log.Error("grpc stream panic",
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())))
				err = status.Error(codes.Internal, "internal server error")
			}
			logCall(log, "grpc stream", start, err)
		}()

		return handler(srv, ss)
	}
}

// health checks are frequent; keep them out of info logs.
func logCall(log *slog.Logger, msg string, start time.Time, err error) {
	attrs := []any{slog.Int64("dur_ms", time.Since(start).Milliseconds())}
	switch {
	case err != nil:
		attrs = append(attrs, slog.String("code", status.Code(err).String()), slog.Any("err", err))
		log.Warn(msg, attrs...)
	default:
		log.Debug(msg, attrs...)
	}
}

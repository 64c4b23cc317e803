package interceptors

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RPCObserver records the outcome of each RPC, e.g. a Prometheus histogram.
type RPCObserver interface {
	ObserveRPC(method, code string, d time.Duration)
}

// LoggingUnary returns a unary server interceptor that writes one log line per RPC
// and reports its duration to obs. obs may be nil. skipMethods is the set of full
// method names that are neither logged nor observed (e.g. health checks).
func LoggingUnary(logger *slog.Logger, obs RPCObserver, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if skipMethods[info.FullMethod] {
			return resp, err
		}
		elapsed := time.Since(start)
		code := status.Code(err)
		if obs != nil {
			obs.ObserveRPC(info.FullMethod, code.String(), elapsed)
		}

		attrs := []slog.Attr{
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("client_ip", ClientIP(ctx)),
		}
		if subjectID, ok := GetSubjectID(ctx); ok {
			attrs = append(attrs, slog.String("subject_id", subjectID))
		}
		level := slog.LevelInfo
		switch code {
		case codes.OK, codes.Unauthenticated, codes.InvalidArgument, codes.ResourceExhausted,
			codes.PermissionDenied, codes.NotFound, codes.Canceled:
		default:
			level = slog.LevelError
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.LogAttrs(ctx, level, "rpc", attrs...)
		return resp, err
	}
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}

package server

import (
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	authv1 "collab-suite/auth/api/authv1"
	directoryv1 "collab-suite/auth/api/directoryv1"
	directoryhandler "collab-suite/auth/internal/directory/handler"
	healthhandler "collab-suite/auth/internal/health/handler"
	"collab-suite/auth/internal/security"
	"collab-suite/auth/internal/server/interceptors"
	sessionhandler "collab-suite/auth/internal/session/handler"
	"collab-suite/auth/internal/validate"
)

// ProtectedMethods require a Bearer access token.
var ProtectedMethods = map[string]bool{
	authv1.LogoutAllMethod:    true,
	authv1.ListSessionsMethod: true,
}

// QuietMethods are not logged or observed by the RPC logging interceptor.
var QuietMethods = map[string]bool{
	"/grpc.health.v1.Health/Check": true,
	"/grpc.health.v1.Health/Watch": true,
}

// Deps holds service dependencies for gRPC handlers.
type Deps struct {
	// Sessions is the session manager behind AuthService. If nil, auth RPCs return Unimplemented.
	Sessions sessionhandler.SessionManager
	// Directory, when set, is also served as DirectoryService on the same server.
	Directory directoryhandler.CredentialValidator
	// Health reports readiness over grpc.health.v1. If nil, the health service is not registered.
	Health *healthhandler.Server
}

// RegisterServices registers every gRPC service with the given server.
//
// Contract → handler mapping:
//   - collab.auth.v1.AuthService           → internal/session/handler
//   - collab.directory.v1.DirectoryService → internal/directory/handler (optional)
//   - grpc.health.v1.Health                → internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, deps Deps) {
	v := validate.New()
	authv1.RegisterAuthServiceServer(s, sessionhandler.NewAuthServer(deps.Sessions, v))
	if deps.Directory != nil {
		directoryv1.RegisterDirectoryServiceServer(s, directoryhandler.NewServer(deps.Directory, v))
	}
	if deps.Health != nil {
		healthpb.RegisterHealthServer(s, deps.Health)
	}
}

// Options configures NewServer.
type Options struct {
	Tokens   *security.TokenProvider
	Logger   *slog.Logger
	Observer interceptors.RPCObserver
}

// NewServer returns a gRPC server with tracing and the interceptor chain:
// recovery, logging/metrics, then Bearer authentication.
func NewServer(opts Options, extra ...grpc.ServerOption) *grpc.Server {
	serverOpts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoveryUnary(opts.Logger),
			interceptors.LoggingUnary(opts.Logger, opts.Observer, QuietMethods),
			interceptors.AuthUnary(opts.Tokens, ProtectedMethods),
		),
	}
	return grpc.NewServer(append(serverOpts, extra...)...)
}

package rbac

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"collab-suite/auth/api/rpc"
	"collab-suite/auth/internal/server/interceptors"
	"collab-suite/auth/internal/session/domain"
)

// RoleAdmin may list and revoke sessions of any subject.
const RoleAdmin = "admin"

// RequireSubject ensures the caller is authenticated and may act on requested.
// An empty requested subject means the caller. Returns the resolved subject on
// success; returns a gRPC error (Unauthenticated or PermissionDenied) on failure.
func RequireSubject(ctx context.Context, requested string) (subjectID string, err error) {
	caller, ok := interceptors.GetSubjectID(ctx)
	if !ok || caller == "" {
		return "", rpc.Error(codes.Unauthenticated, string(domain.KindUnauthorized), "missing or invalid authorization")
	}
	if requested == "" || requested == caller {
		return caller, nil
	}
	if role, _ := interceptors.GetRole(ctx); role == RoleAdmin {
		return requested, nil
	}
	return "", status.Error(codes.PermissionDenied, "cannot act on another subject's sessions")
}

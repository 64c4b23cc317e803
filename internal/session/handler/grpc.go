package handler

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	authv1 "collab-suite/auth/api/authv1"
	"collab-suite/auth/api/rpc"
	"collab-suite/auth/internal/platform/rbac"
	"collab-suite/auth/internal/session/domain"
	"collab-suite/auth/internal/validate"
)

// AdminRole may list and revoke sessions of any subject.
const AdminRole = rbac.RoleAdmin

// SessionManager is the session lifecycle used by AuthServer. *service.Manager implements it.
type SessionManager interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, subjectID string) (int, error)
	Verify(ctx context.Context, token string) (*domain.VerifiedClaims, error)
	ListSessions(ctx context.Context, subjectID string) ([]domain.SessionInfo, error)
}

// AuthServer implements AuthService for login, refresh rotation, logout and token verification.
// Contract: api/authv1 → internal/session/handler.
type AuthServer struct {
	authv1.UnimplementedAuthServiceServer
	sessions SessionManager
	validate *validate.Validator
}

// NewAuthServer returns a new Auth gRPC server. If sessions is nil, all RPCs return Unimplemented.
func NewAuthServer(sessions SessionManager, v *validate.Validator) *AuthServer {
	if v == nil {
		v = validate.New()
	}
	return &AuthServer{sessions: sessions, validate: v}
}

// Login authenticates credentials against the directory and returns a new token pair.
func (s *AuthServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Login not implemented")
	}
	var req authv1.LoginRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	pair, err := s.sessions.Login(ctx, domain.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Device:   req.Device,
	})
	if err != nil {
		return nil, statusFromError(err)
	}
	return encode(tokenPairReply(pair))
}

// Refresh rotates the session behind the refresh token and returns a new pair.
func (s *AuthServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
	}
	var req authv1.RefreshRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	pair, err := s.sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return nil, statusFromError(err)
	}
	return encode(tokenPairReply(pair))
}

// Logout revokes the session behind the refresh token. Unknown or invalid tokens succeed.
func (s *AuthServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
	}
	var req authv1.LogoutRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	if err := s.sessions.Logout(ctx, req.RefreshToken); err != nil {
		return nil, statusFromError(err)
	}
	return encode(authv1.LogoutReply{})
}

// LogoutAll revokes every session of a subject. Requires a Bearer access token;
// only admins may name a subject other than their own.
func (s *AuthServer) LogoutAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method LogoutAll not implemented")
	}
	var req authv1.LogoutAllRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	subjectID, err := rbac.RequireSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	n, err := s.sessions.LogoutAll(ctx, subjectID)
	if err != nil {
		return nil, statusFromError(err)
	}
	return encode(authv1.LogoutAllReply{Revoked: n})
}

// Verify checks a token's signature and expiry and returns its claims.
func (s *AuthServer) Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method Verify not implemented")
	}
	var req authv1.VerifyRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	c, err := s.sessions.Verify(ctx, req.Token)
	if err != nil {
		return nil, statusFromError(err)
	}
	return encode(authv1.VerifyReply{
		SubjectID: c.SubjectID,
		Role:      c.Role,
		SessionID: c.SessionID,
		TokenUse:  c.TokenUse,
		ExpiresAt: formatTime(c.ExpiresAt),
	})
}

// ListSessions returns the live sessions of a subject, oldest first. Same access rule as LogoutAll.
func (s *AuthServer) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.sessions == nil {
		return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
	}
	var req authv1.ListSessionsRequest
	if err := s.decode(in, &req); err != nil {
		return nil, err
	}
	subjectID, err := rbac.RequireSubject(ctx, req.SubjectID)
	if err != nil {
		return nil, err
	}
	infos, err := s.sessions.ListSessions(ctx, subjectID)
	if err != nil {
		return nil, statusFromError(err)
	}
	reply := authv1.ListSessionsReply{Sessions: make([]authv1.Session, 0, len(infos))}
	for _, info := range infos {
		reply.Sessions = append(reply.Sessions, authv1.Session{
			SessionID: info.SessionID,
			Device:    info.Device,
			CreatedAt: formatTime(info.CreatedAt),
			ExpiresAt: formatTime(info.ExpiresAt),
		})
	}
	return encode(reply)
}

func (s *AuthServer) decode(in *structpb.Struct, dst any) error {
	if err := rpc.Decode(in, dst); err != nil {
		return rpc.Error(codes.InvalidArgument, string(domain.KindInvalidArgument), "malformed request")
	}
	if err := s.validate.Struct(dst); err != nil {
		return rpc.Error(codes.InvalidArgument, string(domain.KindInvalidArgument), err.Error())
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := rpc.Encode(v)
	if err != nil {
		return nil, rpc.Error(codes.Internal, string(domain.KindInternal), "failed to encode reply")
	}
	return out, nil
}

var kindCodes = map[domain.Kind]codes.Code{
	domain.KindUnauthorized:        codes.Unauthenticated,
	domain.KindTooManyRequests:     codes.ResourceExhausted,
	domain.KindUpstreamUnavailable: codes.Unavailable,
	domain.KindNotFound:            codes.NotFound,
	domain.KindInvalidArgument:     codes.InvalidArgument,
	domain.KindInternal:            codes.Internal,
}

// statusFromError maps a manager error to a status carrying its Kind. Only the
// client-facing kinds keep the error text; upstream causes are not leaked.
func statusFromError(err error) error {
	kind := domain.KindOf(err)
	code, ok := kindCodes[kind]
	if !ok {
		code = codes.Internal
	}
	var msg string
	switch kind {
	case domain.KindUnauthorized:
		msg = "unauthorized"
		if errors.Is(err, domain.ErrInvalidToken) {
			msg = "invalid token"
		}
	case domain.KindTooManyRequests:
		msg = domain.ErrTooManyRequests.Error()
	case domain.KindUpstreamUnavailable:
		msg = "upstream unavailable"
	case domain.KindNotFound, domain.KindInvalidArgument:
		msg = err.Error()
	default:
		msg = "internal error"
	}
	return rpc.Error(code, string(kind), msg)
}

func tokenPairReply(p *domain.TokenPair) authv1.TokenPairReply {
	return authv1.TokenPairReply{
		AccessToken:      p.AccessToken,
		AccessExpiresAt:  formatTime(p.AccessExpiresAt),
		RefreshToken:     p.RefreshToken,
		RefreshExpiresAt: formatTime(p.RefreshExpiresAt),
		SubjectID:        p.SubjectID,
		SessionID:        p.SessionID,
		Role:             p.Role,
		TokenType:        authv1.TokenTypeBearer,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

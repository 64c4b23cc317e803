package handler

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	directoryv1 "collab-suite/auth/api/directoryv1"
	"collab-suite/auth/api/rpc"
	sessiondomain "collab-suite/auth/internal/session/domain"
	"collab-suite/auth/internal/validate"
)

// CredentialValidator checks sign-in credentials. *service.Service implements it.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, creds sessiondomain.Credentials) (sessiondomain.Principal, error)
}

// Server implements DirectoryService.
// Contract: api/directoryv1 → internal/directory/handler.
type Server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	accounts CredentialValidator
	validate *validate.Validator
}

// NewServer returns a new Directory gRPC server. If accounts is nil, all RPCs return Unimplemented.
func NewServer(accounts CredentialValidator, v *validate.Validator) *Server {
	if v == nil {
		v = validate.New()
	}
	return &Server{accounts: accounts, validate: v}
}

// ValidateCredentials returns the subject and role of the account matching the credentials.
func (s *Server) ValidateCredentials(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.accounts == nil {
		return nil, status.Error(codes.Unimplemented, "method ValidateCredentials not implemented")
	}
	var req directoryv1.ValidateCredentialsRequest
	if err := rpc.Decode(in, &req); err != nil {
		return nil, rpc.Error(codes.InvalidArgument, string(sessiondomain.KindInvalidArgument), "malformed request")
	}
	if err := s.validate.Struct(&req); err != nil {
		return nil, rpc.Error(codes.InvalidArgument, string(sessiondomain.KindInvalidArgument), err.Error())
	}
	p, err := s.accounts.ValidateCredentials(ctx, sessiondomain.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, sessiondomain.ErrUnauthorized) {
			return nil, rpc.Error(codes.Unauthenticated, string(sessiondomain.KindUnauthorized), "invalid credentials")
		}
		return nil, rpc.Error(codes.Unavailable, string(sessiondomain.KindUpstreamUnavailable), "account store unavailable")
	}
	out, err := rpc.Encode(directoryv1.ValidateCredentialsReply{SubjectID: p.SubjectID, Role: p.Role})
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode reply")
	}
	return out, nil
}

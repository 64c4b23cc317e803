// Package authv1 defines collab.auth.v1.AuthService: the session lifecycle
// contract. Messages are google.protobuf.Struct values whose fields are the
// JSON names of the payload types below.
package authv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-suite/auth/api/rpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "collab.auth.v1.AuthService"

const (
	LoginMethod        = "/" + ServiceName + "/Login"
	RefreshMethod      = "/" + ServiceName + "/Refresh"
	LogoutMethod       = "/" + ServiceName + "/Logout"
	LogoutAllMethod    = "/" + ServiceName + "/LogoutAll"
	VerifyMethod       = "/" + ServiceName + "/Verify"
	ListSessionsMethod = "/" + ServiceName + "/ListSessions"
)

// TokenTypeBearer is the token_type of every issued pair.
const TokenTypeBearer = "Bearer"

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
	Device   string `json:"device,omitempty" validate:"max=128"`
}

// TokenPairReply is returned by Login and Refresh. Timestamps are RFC 3339.
type TokenPairReply struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  string `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
	SubjectID        string `json:"subject_id"`
	SessionID        string `json:"session_id"`
	Role             string `json:"role"`
	TokenType        string `json:"token_type"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=4096"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required,max=4096"`
}

type LogoutReply struct{}

// LogoutAllRequest revokes every session of SubjectID. An empty SubjectID means the caller.
type LogoutAllRequest struct {
	SubjectID string `json:"subject_id,omitempty" validate:"omitempty,max=128,excludes=:"`
}

type LogoutAllReply struct {
	Revoked int `json:"revoked"`
}

type VerifyRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

type VerifyReply struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	TokenUse  string `json:"token_use"`
	ExpiresAt string `json:"expires_at"`
}

// ListSessionsRequest lists sessions of SubjectID. An empty SubjectID means the caller.
type ListSessionsRequest struct {
	SubjectID string `json:"subject_id,omitempty" validate:"omitempty,max=128,excludes=:"`
}

type Session struct {
	SessionID string `json:"session_id"`
	Device    string `json:"device,omitempty"`
	CreatedAt string `json:"created_at"`
	ExpiresAt string `json:"expires_at"`
}

type ListSessionsReply struct {
	Sessions []Session `json:"sessions"`
}

// AuthServiceServer is the server API for AuthService.
type AuthServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LogoutAll(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedAuthServiceServer can be embedded to have forward compatible implementations.
type UnimplementedAuthServiceServer struct{}

func (UnimplementedAuthServiceServer) Login(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}

func (UnimplementedAuthServiceServer) Refresh(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Refresh not implemented")
}

func (UnimplementedAuthServiceServer) Logout(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Logout not implemented")
}

func (UnimplementedAuthServiceServer) LogoutAll(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method LogoutAll not implemented")
}

func (UnimplementedAuthServiceServer) Verify(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Verify not implemented")
}

func (UnimplementedAuthServiceServer) ListSessions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListSessions not implemented")
}

// AuthService_ServiceDesc is the grpc.ServiceDesc for AuthService.
var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: rpc.UnaryHandler(LoginMethod, AuthServiceServer.Login)},
		{MethodName: "Refresh", Handler: rpc.UnaryHandler(RefreshMethod, AuthServiceServer.Refresh)},
		{MethodName: "Logout", Handler: rpc.UnaryHandler(LogoutMethod, AuthServiceServer.Logout)},
		{MethodName: "LogoutAll", Handler: rpc.UnaryHandler(LogoutAllMethod, AuthServiceServer.LogoutAll)},
		{MethodName: "Verify", Handler: rpc.UnaryHandler(VerifyMethod, AuthServiceServer.Verify)},
		{MethodName: "ListSessions", Handler: rpc.UnaryHandler(ListSessionsMethod, AuthServiceServer.ListSessions)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "collab/auth/v1/auth",
}

// RegisterAuthServiceServer registers srv on s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

// Client is a typed AuthService client.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a Client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Login(ctx context.Context, req *LoginRequest, opts ...grpc.CallOption) (*TokenPairReply, error) {
	out := new(TokenPairReply)
	if err := rpc.Invoke(ctx, c.cc, LoginMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Refresh(ctx context.Context, req *RefreshRequest, opts ...grpc.CallOption) (*TokenPairReply, error) {
	out := new(TokenPairReply)
	if err := rpc.Invoke(ctx, c.cc, RefreshMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Logout(ctx context.Context, req *LogoutRequest, opts ...grpc.CallOption) error {
	return rpc.Invoke(ctx, c.cc, LogoutMethod, req, nil, opts...)
}

func (c *Client) LogoutAll(ctx context.Context, req *LogoutAllRequest, opts ...grpc.CallOption) (*LogoutAllReply, error) {
	out := new(LogoutAllReply)
	if err := rpc.Invoke(ctx, c.cc, LogoutAllMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Verify(ctx context.Context, req *VerifyRequest, opts ...grpc.CallOption) (*VerifyReply, error) {
	out := new(VerifyReply)
	if err := rpc.Invoke(ctx, c.cc, VerifyMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListSessions(ctx context.Context, req *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsReply, error) {
	out := new(ListSessionsReply)
	if err := rpc.Invoke(ctx, c.cc, ListSessionsMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

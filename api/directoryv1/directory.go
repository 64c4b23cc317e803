// Package directoryv1 defines collab.directory.v1.DirectoryService, the
// account directory consulted at login.
package directoryv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-suite/auth/api/rpc"
)

const (
	ServiceName               = "collab.directory.v1.DirectoryService"
	ValidateCredentialsMethod = "/" + ServiceName + "/ValidateCredentials"
)

type ValidateCredentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// ValidateCredentialsReply identifies the account whose credentials matched.
type ValidateCredentialsReply struct {
	SubjectID string `json:"subject_id"`
	Role      string `json:"role"`
}

// DirectoryServiceServer is the server API for DirectoryService.
type DirectoryServiceServer interface {
	ValidateCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedDirectoryServiceServer can be embedded to have forward compatible implementations.
type UnimplementedDirectoryServiceServer struct{}

func (UnimplementedDirectoryServiceServer) ValidateCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ValidateCredentials not implemented")
}

// DirectoryService_ServiceDesc is the grpc.ServiceDesc for DirectoryService.
var DirectoryService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirectoryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ValidateCredentials",
			Handler:    rpc.UnaryHandler(ValidateCredentialsMethod, DirectoryServiceServer.ValidateCredentials),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "collab/directory/v1/directory",
}

// RegisterDirectoryServiceServer registers srv on s.
func RegisterDirectoryServiceServer(s grpc.ServiceRegistrar, srv DirectoryServiceServer) {
	s.RegisterService(&DirectoryService_ServiceDesc, srv)
}

// Client is a typed DirectoryService client.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ValidateCredentials(ctx context.Context, req *ValidateCredentialsRequest, opts ...grpc.CallOption) (*ValidateCredentialsReply, error) {
	out := new(ValidateCredentialsReply)
	if err := rpc.Invoke(ctx, c.cc, ValidateCredentialsMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

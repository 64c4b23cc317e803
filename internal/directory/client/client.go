// Package client calls a remote DirectoryService for the session manager.
package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	directoryv1 "collab-suite/auth/api/directoryv1"
	"collab-suite/auth/internal/session/domain"
)

// Client adapts directoryv1.Client to the session manager's Directory. The
// caller bounds each call with its context deadline; the client never retries.
type Client struct {
	rpc *directoryv1.Client
}

// New returns a Client over cc.
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: directoryv1.NewClient(cc)}
}

// ValidateCredentials asks the directory for the principal behind creds.
// Unauthenticated replies map to ErrUnauthorized; transport failures,
// deadlines and replies without a subject or role are returned as errors
// the caller treats as the upstream being unavailable.
func (c *Client) ValidateCredentials(ctx context.Context, creds domain.Credentials) (domain.Principal, error) {
	reply, err := c.rpc.ValidateCredentials(ctx, &directoryv1.ValidateCredentialsRequest{
		Email:    creds.Email,
		Password: creds.Password,
	})
	if err != nil {
		switch status.Code(err) {
		case codes.Unauthenticated, codes.PermissionDenied, codes.InvalidArgument:
			return domain.Principal{}, domain.ErrUnauthorized
		}
		return domain.Principal{}, fmt.Errorf("directory call: %w", err)
	}
	if reply.SubjectID == "" || reply.Role == "" {
		return domain.Principal{}, fmt.Errorf("directory call: reply missing subject_id or role")
	}
	return domain.Principal{SubjectID: reply.SubjectID, Role: reply.Role}, nil
}

package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"collab-suite/auth/api/rpc"
	sessiondomain "collab-suite/auth/internal/session/domain"
)

type mockValidator struct {
	principal sessiondomain.Principal
	err       error
	got       sessiondomain.Credentials
}

func (m *mockValidator) ValidateCredentials(_ context.Context, creds sessiondomain.Credentials) (sessiondomain.Principal, error) {
	m.got = creds
	return m.principal, m.err
}

func request(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	return s
}

func TestValidateCredentials_OK(t *testing.T) {
	m := &mockValidator{principal: sessiondomain.Principal{SubjectID: "u1", Role: "member"}}
	srv := NewServer(m, nil)

	out, err := srv.ValidateCredentials(context.Background(), request(t, map[string]any{
		"email": "a@example.com", "password": "pw",
	}))
	if err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}
	if out.GetFields()["subject_id"].GetStringValue() != "u1" || out.GetFields()["role"].GetStringValue() != "member" {
		t.Errorf("reply = %v", out)
	}
	if m.got.Email != "a@example.com" || m.got.Password != "pw" {
		t.Errorf("forwarded credentials = %+v", m.got)
	}
}

func TestValidateCredentials_Errors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		fields map[string]any
		code   codes.Code
		reason string
	}{
		{"bad credentials", sessiondomain.ErrUnauthorized, map[string]any{"email": "a@example.com", "password": "x"}, codes.Unauthenticated, "UNAUTHORIZED"},
		{"store down", errors.New("db down"), map[string]any{"email": "a@example.com", "password": "x"}, codes.Unavailable, "UPSTREAM_UNAVAILABLE"},
		{"missing password", nil, map[string]any{"email": "a@example.com"}, codes.InvalidArgument, "INVALID_ARGUMENT"},
		{"bad email", nil, map[string]any{"email": "nope", "password": "x"}, codes.InvalidArgument, "INVALID_ARGUMENT"},
		{"wrong type", nil, map[string]any{"email": true, "password": "x"}, codes.InvalidArgument, "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := NewServer(&mockValidator{err: tc.err}, nil)
			_, err := srv.ValidateCredentials(context.Background(), request(t, tc.fields))
			if status.Code(err) != tc.code {
				t.Fatalf("code = %v, want %v", status.Code(err), tc.code)
			}
			if rpc.Reason(err) != tc.reason {
				t.Errorf("reason = %q, want %q", rpc.Reason(err), tc.reason)
			}
		})
	}
}

func TestValidateCredentials_NilValidator(t *testing.T) {
	_, err := NewServer(nil, nil).ValidateCredentials(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Errorf("code = %v, want Unimplemented", status.Code(err))
	}
}

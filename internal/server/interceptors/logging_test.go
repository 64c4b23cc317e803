package interceptors

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type observation struct {
	method, code string
}

type fakeObserver struct{ seen []observation }

func (f *fakeObserver) ObserveRPC(method, code string, _ time.Duration) {
	f.seen = append(f.seen, observation{method, code})
}

func TestLoggingUnary(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	obs := &fakeObserver{}
	interceptor := LoggingUnary(logger, obs, map[string]bool{"/grpc.health.v1.Health/Check": true})

	ctx := WithIdentity(context.Background(), "user-1", "member")
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Fail"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unavailable, "redis down")
		})
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("error should pass through, got %v", err)
	}
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil })

	if len(obs.seen) != 1 || obs.seen[0] != (observation{"/svc/Fail", "Unavailable"}) {
		t.Errorf("observations = %+v", obs.seen)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 log line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["level"] != "ERROR" || rec["method"] != "/svc/Fail" || rec["subject_id"] != "user-1" || rec["code"] != "Unavailable" {
		t.Errorf("log record = %v", rec)
	}
}

func TestLoggingUnary_ClientErrorsAreInfo(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingUnary(slog.New(slog.NewJSONHandler(&buf, nil)), nil, nil)
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Login"},
		func(ctx context.Context, req interface{}) (interface{}, error) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		})
	if !strings.Contains(buf.String(), `"level":"INFO"`) {
		t.Errorf("unauthenticated should log at info: %s", buf.String())
	}
}

func TestClientIP(t *testing.T) {
	md := func(kv ...string) context.Context {
		return metadata.NewIncomingContext(context.Background(), metadata.Pairs(kv...))
	}
	peerCtx := peer.NewContext(context.Background(), &peer.Peer{
		Addr: &net.TCPAddr{IP: net.ParseIP("10.0.0.7"), Port: 5555},
	})

	cases := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{"forwarded chain", md("x-forwarded-for", "203.0.113.1, 10.0.0.1"), "203.0.113.1"},
		{"real ip", md("x-real-ip", "198.51.100.2"), "198.51.100.2"},
		{"peer", peerCtx, "10.0.0.7"},
		{"none", context.Background(), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClientIP(tc.ctx); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

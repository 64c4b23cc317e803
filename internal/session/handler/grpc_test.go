package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	authv1 "collab-suite/auth/api/authv1"
	"collab-suite/auth/api/rpc"
	"collab-suite/auth/internal/kvstore"
	"collab-suite/auth/internal/security"
	"collab-suite/auth/internal/server/interceptors"
	"collab-suite/auth/internal/session/domain"
	"collab-suite/auth/internal/session/repository"
	"collab-suite/auth/internal/session/service"
)

type stubDirectory struct {
	err error
}

func (d *stubDirectory) ValidateCredentials(_ context.Context, creds domain.Credentials) (domain.Principal, error) {
	if d.err != nil {
		return domain.Principal{}, d.err
	}
	switch {
	case creds.Email == "alice@example.com" && creds.Password == "pw-alice":
		return domain.Principal{SubjectID: "u1", Role: "member"}, nil
	case creds.Email == "root@example.com" && creds.Password == "pw-root":
		return domain.Principal{SubjectID: "u9", Role: AdminRole}, nil
	}
	return domain.Principal{}, domain.ErrUnauthorized
}

type testEnv struct {
	client *authv1.Client
	repo   *repository.KVRepository
	dir    *stubDirectory
	mr     *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	repo := repository.NewKVRepository(kvstore.NewRedisStore(rdb), "")

	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	dir := &stubDirectory{}
	m, err := service.NewManager(repo, dir, tokens, security.NewBcryptHasher(4), service.Config{
		AccessTTL:   15 * time.Minute,
		RefreshTTL:  24 * time.Hour,
		LockTTL:     2 * time.Second,
		CallTimeout: time.Second,
		InstanceID:  "handler-test",
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		interceptors.AuthUnary(tokens, map[string]bool{
			authv1.LogoutAllMethod:    true,
			authv1.ListSessionsMethod: true,
		}),
	))
	authv1.RegisterAuthServiceServer(srv, NewAuthServer(m, nil))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &testEnv{client: authv1.NewClient(conn), repo: repo, dir: dir, mr: mr}
}

func (e *testEnv) login(t *testing.T, email, password string) *authv1.TokenPairReply {
	t.Helper()
	pair, err := e.client.Login(context.Background(), &authv1.LoginRequest{Email: email, Password: password, Device: "phone"})
	if err != nil {
		t.Fatalf("Login(%s): %v", email, err)
	}
	return pair
}

func withBearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+token)
}

func assertStatus(t *testing.T, err error, code codes.Code, reason string) {
	t.Helper()
	if status.Code(err) != code {
		t.Fatalf("code = %v (%v), want %v", status.Code(err), err, code)
	}
	if got := rpc.Reason(err); got != reason {
		t.Errorf("reason = %q, want %q", got, reason)
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	pair := e.login(t, "alice@example.com", "pw-alice")

	if pair.TokenType != "Bearer" || pair.SubjectID != "u1" || pair.Role != "member" || pair.SessionID == "" {
		t.Fatalf("pair = %+v", pair)
	}
	for name, ts := range map[string]string{"access": pair.AccessExpiresAt, "refresh": pair.RefreshExpiresAt} {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			t.Errorf("%s expiry %q is not RFC 3339: %v", name, ts, err)
		}
	}
	rec, err := e.repo.Get(context.Background(), "u1", pair.SessionID)
	if err != nil || rec == nil {
		t.Fatalf("session record = %v, %v", rec, err)
	}
	if rec.Device != "phone" {
		t.Errorf("device = %q", rec.Device)
	}
}

func TestLogin_Failures(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	_, err := e.client.Login(ctx, &authv1.LoginRequest{Email: "not-an-email", Password: "x"})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	_, err = e.client.Login(ctx, &authv1.LoginRequest{Email: "alice@example.com"})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")

	_, err = e.client.Login(ctx, &authv1.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")

	e.dir.err = errors.New("connection refused")
	_, err = e.client.Login(ctx, &authv1.LoginRequest{Email: "alice@example.com", Password: "pw-alice"})
	assertStatus(t, err, codes.Unavailable, "UPSTREAM_UNAVAILABLE")
	if st, _ := status.FromError(err); st.Message() != "upstream unavailable" {
		t.Errorf("upstream cause leaked: %q", st.Message())
	}
}

func TestLogin_MalformedPayload(t *testing.T) {
	srv := NewAuthServer(&panicManager{}, nil)
	in, _ := structpb.NewStruct(map[string]any{"email": 42.0, "password": "x"})
	_, err := srv.Login(context.Background(), in)
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")
}

func TestRefresh_RotatesAndRejectsReplay(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	first := e.login(t, "alice@example.com", "pw-alice")

	second, err := e.client.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.SessionID == first.SessionID || second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh must mint a new session and token")
	}

	_, err = e.client.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: first.RefreshToken})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")
	if st, _ := status.FromError(err); st.Message() != "invalid token" {
		t.Errorf("message = %q", st.Message())
	}

	_, err = e.client.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: "garbage"})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")
}

func TestRefresh_LockHeld(t *testing.T) {
	e := newTestEnv(t)
	pair := e.login(t, "alice@example.com", "pw-alice")

	ok, err := e.repo.AcquireRefreshLock(context.Background(), "u1", pair.SessionID, "other-replica", time.Minute)
	if err != nil || !ok {
		t.Fatalf("AcquireRefreshLock = %v, %v", ok, err)
	}
	_, err = e.client.Refresh(context.Background(), &authv1.RefreshRequest{RefreshToken: pair.RefreshToken})
	assertStatus(t, err, codes.ResourceExhausted, "TOO_MANY_REQUESTS")

	if rec, _ := e.repo.Get(context.Background(), "u1", pair.SessionID); rec == nil {
		t.Error("a refused refresh must leave the session intact")
	}
}

func TestRefresh_StoreDown(t *testing.T) {
	e := newTestEnv(t)
	pair := e.login(t, "alice@example.com", "pw-alice")
	e.mr.Close()

	_, err := e.client.Refresh(context.Background(), &authv1.RefreshRequest{RefreshToken: pair.RefreshToken})
	assertStatus(t, err, codes.Unavailable, "UPSTREAM_UNAVAILABLE")
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	pair := e.login(t, "alice@example.com", "pw-alice")

	if err := e.client.Logout(ctx, &authv1.LogoutRequest{RefreshToken: pair.RefreshToken}); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if err := e.client.Logout(ctx, &authv1.LogoutRequest{RefreshToken: pair.RefreshToken}); err != nil {
		t.Fatalf("second Logout should be a no-op: %v", err)
	}
	if err := e.client.Logout(ctx, &authv1.LogoutRequest{RefreshToken: "garbage"}); err != nil {
		t.Fatalf("Logout with garbage should be a no-op: %v", err)
	}
	_, err := e.client.Refresh(ctx, &authv1.RefreshRequest{RefreshToken: pair.RefreshToken})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")

	err = e.client.Logout(ctx, &authv1.LogoutRequest{})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")
}

func TestLogoutAll(t *testing.T) {
	e := newTestEnv(t)
	a := e.login(t, "alice@example.com", "pw-alice")
	e.login(t, "alice@example.com", "pw-alice")

	_, err := e.client.LogoutAll(context.Background(), &authv1.LogoutAllRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("no bearer: code = %v", status.Code(err))
	}

	_, err = e.client.LogoutAll(withBearer(a.AccessToken), &authv1.LogoutAllRequest{SubjectID: "u9"})
	if status.Code(err) != codes.PermissionDenied {
		t.Fatalf("other subject as member: code = %v", status.Code(err))
	}

	reply, err := e.client.LogoutAll(withBearer(a.AccessToken), &authv1.LogoutAllRequest{})
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if reply.Revoked != 2 {
		t.Errorf("revoked = %d, want 2", reply.Revoked)
	}
	_, err = e.client.Refresh(context.Background(), &authv1.RefreshRequest{RefreshToken: a.RefreshToken})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")
}

func TestLogoutAll_Admin(t *testing.T) {
	e := newTestEnv(t)
	e.login(t, "alice@example.com", "pw-alice")
	root := e.login(t, "root@example.com", "pw-root")

	reply, err := e.client.LogoutAll(withBearer(root.AccessToken), &authv1.LogoutAllRequest{SubjectID: "u1"})
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if reply.Revoked != 1 {
		t.Errorf("revoked = %d, want 1", reply.Revoked)
	}
	list, err := e.client.ListSessions(withBearer(root.AccessToken), &authv1.ListSessionsRequest{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list.Sessions) != 1 || list.Sessions[0].SessionID != root.SessionID {
		t.Errorf("admin's own sessions = %+v", list.Sessions)
	}
}

func TestListSessions(t *testing.T) {
	e := newTestEnv(t)
	a := e.login(t, "alice@example.com", "pw-alice")
	b := e.login(t, "alice@example.com", "pw-alice")

	list, err := e.client.ListSessions(withBearer(b.AccessToken), &authv1.ListSessionsRequest{})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(list.Sessions) != 2 {
		t.Fatalf("sessions = %+v", list.Sessions)
	}
	seen := map[string]bool{}
	for _, s := range list.Sessions {
		seen[s.SessionID] = true
		if s.Device != "phone" || s.CreatedAt == "" || s.ExpiresAt == "" {
			t.Errorf("session = %+v", s)
		}
	}
	if !seen[a.SessionID] || !seen[b.SessionID] {
		t.Errorf("missing sessions: %v", seen)
	}

	_, err = e.client.ListSessions(withBearer(a.RefreshToken), &authv1.ListSessionsRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Errorf("refresh token as bearer: code = %v", status.Code(err))
	}
	_, err = e.client.ListSessions(withBearer(a.AccessToken), &authv1.ListSessionsRequest{SubjectID: "bad:id"})
	assertStatus(t, err, codes.InvalidArgument, "INVALID_ARGUMENT")
}

func TestVerify(t *testing.T) {
	e := newTestEnv(t)
	pair := e.login(t, "alice@example.com", "pw-alice")
	ctx := context.Background()

	v, err := e.client.Verify(ctx, &authv1.VerifyRequest{Token: pair.RefreshToken})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.SubjectID != "u1" || v.SessionID != pair.SessionID || v.TokenUse != "refresh" || v.ExpiresAt != pair.RefreshExpiresAt {
		t.Errorf("verify refresh = %+v", v)
	}
	v, err = e.client.Verify(ctx, &authv1.VerifyRequest{Token: pair.AccessToken})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if v.TokenUse != "access" || v.SessionID != "" || v.Role != "member" {
		t.Errorf("verify access = %+v", v)
	}
	_, err = e.client.Verify(ctx, &authv1.VerifyRequest{Token: "garbage"})
	assertStatus(t, err, codes.Unauthenticated, "UNAUTHORIZED")
}

// panicManager fails the test if any manager method is reached.
type panicManager struct{}

func (panicManager) Login(context.Context, domain.Credentials) (*domain.TokenPair, error) {
	panic("unexpected Login")
}
func (panicManager) Refresh(context.Context, string) (*domain.TokenPair, error) {
	panic("unexpected Refresh")
}
func (panicManager) Logout(context.Context, string) error { panic("unexpected Logout") }
func (panicManager) LogoutAll(context.Context, string) (int, error) {
	panic("unexpected LogoutAll")
}
func (panicManager) Verify(context.Context, string) (*domain.VerifiedClaims, error) {
	panic("unexpected Verify")
}
func (panicManager) ListSessions(context.Context, string) ([]domain.SessionInfo, error) {
	panic("unexpected ListSessions")
}

func TestAuthServer_NilManager(t *testing.T) {
	srv := NewAuthServer(nil, nil)
	ctx := context.Background()
	calls := map[string]func(context.Context, *structpb.Struct) (*structpb.Struct, error){
		"Login":        srv.Login,
		"Refresh":      srv.Refresh,
		"Logout":       srv.Logout,
		"LogoutAll":    srv.LogoutAll,
		"Verify":       srv.Verify,
		"ListSessions": srv.ListSessions,
	}
	for name, call := range calls {
		if _, err := call(ctx, &structpb.Struct{}); status.Code(err) != codes.Unimplemented {
			t.Errorf("%s: code = %v, want Unimplemented", name, status.Code(err))
		}
	}
}

func TestStatusFromError(t *testing.T) {
	cases := []struct {
		err    error
		code   codes.Code
		reason string
	}{
		{domain.ErrUnauthorized, codes.Unauthenticated, "UNAUTHORIZED"},
		{domain.ErrInvalidToken, codes.Unauthenticated, "UNAUTHORIZED"},
		{domain.ErrTooManyRequests, codes.ResourceExhausted, "TOO_MANY_REQUESTS"},
		{fmt.Errorf("%w: redis: %w", domain.ErrUpstreamUnavailable, errors.New("dial tcp")), codes.Unavailable, "UPSTREAM_UNAVAILABLE"},
		{domain.ErrNotFound, codes.NotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: subject id", domain.ErrInvalidArgument), codes.InvalidArgument, "INVALID_ARGUMENT"},
		{errors.New("boom"), codes.Internal, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.reason, func(t *testing.T) {
			assertStatus(t, statusFromError(tc.err), tc.code, tc.reason)
		})
	}
}

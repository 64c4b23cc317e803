package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"collab-suite/auth/internal/notify"
	"collab-suite/auth/internal/policy/engine"
	"collab-suite/auth/internal/security"
	"collab-suite/auth/internal/session/domain"
	"collab-suite/auth/internal/session/repository"
)

// Directory validates login credentials. It returns domain.ErrUnauthorized
// when the credentials are rejected; any other error is an upstream failure.
type Directory interface {
	ValidateCredentials(ctx context.Context, creds domain.Credentials) (domain.Principal, error)
}

// Recorder receives one observation per lifecycle operation.
type Recorder interface {
	ObserveSessionOperation(op string, outcome string, d time.Duration)
}

// Config holds the lifecycle timings. LockTTL must exceed CallTimeout so a
// rotation holding the lock finishes its store calls before the lock can lapse.
type Config struct {
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	LockTTL     time.Duration
	CallTimeout time.Duration
	// InstanceID is written as the lock owner so operators can tell which replica holds a lock.
	InstanceID string
}

func (c Config) validate() error {
	switch {
	case c.AccessTTL <= 0 || c.RefreshTTL <= 0:
		return errors.New("session: token TTLs must be positive")
	case c.AccessTTL >= c.RefreshTTL:
		return errors.New("session: access TTL must be shorter than refresh TTL")
	case c.CallTimeout <= 0:
		return errors.New("session: call timeout must be positive")
	case c.LockTTL <= c.CallTimeout:
		return errors.New("session: lock TTL must exceed the call timeout")
	case c.LockTTL >= c.RefreshTTL:
		return errors.New("session: lock TTL must be shorter than refresh TTL")
	}
	return nil
}

// Manager issues, rotates, verifies and revokes sessions. It holds no shared
// mutable state; every replica coordinates through the session store alone.
type Manager struct {
	repo      repository.Repository
	directory Directory
	tokens    *security.TokenProvider
	hasher    security.Hasher
	cfg       Config

	notifier notify.Dispatcher
	policy   engine.Evaluator
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets the security event dispatcher. It should not block; wrap
// slow sinks in notify.Async.
func WithNotifier(d notify.Dispatcher) Option { return func(m *Manager) { m.notifier = d } }

// WithPolicy sets the login admission policy.
func WithPolicy(e engine.Evaluator) Option { return func(m *Manager) { m.policy = e } }

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Manager) { m.logger = l } }

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option { return func(m *Manager) { m.tracer = t } }

// WithClock sets the clock used for record timestamps and TTLs.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// NewManager returns a Manager. Notifier, policy, recorder, logger and tracer default to no-ops.
func NewManager(repo repository.Repository, directory Directory, tokens *security.TokenProvider, hasher security.Hasher, cfg Config, opts ...Option) (*Manager, error) {
	if repo == nil || directory == nil || tokens == nil || hasher == nil {
		return nil, errors.New("session: repository, directory, tokens and hasher are required")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	m := &Manager{
		repo:      repo,
		directory: directory,
		tokens:    tokens,
		hasher:    hasher,
		cfg:       cfg,
		notifier:  notify.Noop{},
		policy:    engine.AllowAll{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("collab-suite/auth/session"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Login validates credentials with the directory, applies the login policy
// and opens a new session.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) (pair *domain.TokenPair, err error) {
	ctx, done := m.begin(ctx, "login")
	defer func() { done(err) }()

	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	creds.Device = strings.TrimSpace(creds.Device)
	if creds.Email == "" || creds.Password == "" {
		return nil, domain.ErrUnauthorized
	}

	dctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	principal, err := m.directory.ValidateCredentials(dctx, creds)
	cancel()
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("%w: directory: %w", domain.ErrUpstreamUnavailable, err)
	}
	if !principal.Valid() {
		return nil, fmt.Errorf("%w: directory returned a malformed principal", domain.ErrUpstreamUnavailable)
	}

	decision, err := m.policy.EvaluateLogin(ctx, engine.LoginInput{
		SubjectID: principal.SubjectID,
		Role:      principal.Role,
		Device:    creds.Device,
		Now:       m.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: login policy: %w", domain.ErrUpstreamUnavailable, err)
	}
	if !decision.Allow {
		m.logger.InfoContext(ctx, "session: login denied by policy",
			slog.String("subject_id", principal.SubjectID),
			slog.String("reason", decision.Reason))
		return nil, domain.ErrUnauthorized
	}
	var accessTTL time.Duration
	if decision.AccessTTL > 0 && decision.AccessTTL < m.cfg.AccessTTL {
		accessTTL = decision.AccessTTL
	}

	pair, err = m.openSession(ctx, principal, creds.Device, accessTTL)
	if err != nil {
		return nil, err
	}
	m.notify(ctx, notify.EventLogin, pair.SubjectID, pair.SessionID, pair.Role, map[string]string{"device": creds.Device})
	return pair, nil
}

// Refresh rotates a session:
//
//  1. verify the token (no store access on failure)
//  2. load the session record
//  3. compare the fingerprint; a mismatch revokes the session
//  4. take the per-session refresh lock, failing fast if held
//  5. open a new session id and remove the old record
//
// The lock is left to expire. A replayed token fails at step 2 because its
// session id no longer exists.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (pair *domain.TokenPair, err error) {
	ctx, done := m.begin(ctx, "refresh")
	defer func() { done(err) }()

	claims, err := m.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	subjectID, sessionID := claims.Subject, claims.SessionID
	if !validKeyPart(subjectID) || !validKeyPart(sessionID) {
		return nil, domain.ErrInvalidToken
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("session.id", sessionID))

	rec, err := m.getRecord(ctx, subjectID, sessionID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrInvalidToken
	}

	if !security.FingerprintMatches(m.hasher, refreshToken, rec.Fingerprint) {
		m.revokeOnMismatch(ctx, subjectID, sessionID, rec.Role)
		return nil, domain.ErrInvalidToken
	}

	lctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	acquired, err := m.repo.AcquireRefreshLock(lctx, subjectID, sessionID, m.cfg.InstanceID, m.cfg.LockTTL)
	cancel()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, domain.ErrTooManyRequests
	}

	principal := domain.Principal{SubjectID: subjectID, Role: rec.Role}
	accessTTL := time.Duration(rec.AccessTTLSeconds) * time.Second
	pair, err = m.openSession(ctx, principal, rec.Device, accessTTL)
	if err != nil {
		return nil, err
	}

	deleted, err := m.deleteRecord(ctx, subjectID, sessionID)
	if err != nil || !deleted {
		// Either the old record's fate is unknown or another rotation already
		// consumed it; the new session must not survive in both cases.
		if _, derr := m.deleteRecord(ctx, subjectID, pair.SessionID); derr != nil {
			m.logger.WarnContext(ctx, "session: failed to discard rotated session",
				slog.String("subject_id", subjectID),
				slog.String("session_id", pair.SessionID),
				slog.Any("error", derr))
		}
		if err != nil {
			return nil, err
		}
		return nil, domain.ErrInvalidToken
	}

	m.notify(ctx, notify.EventRefresh, subjectID, pair.SessionID, pair.Role, map[string]string{"previous_session_id": sessionID})
	return pair, nil
}

// Logout revokes the session named by refreshToken. Expired but correctly
// signed tokens are accepted so a client can always clean up. Tokens that fail
// verification and sessions that are already gone succeed silently.
func (m *Manager) Logout(ctx context.Context, refreshToken string) (err error) {
	ctx, done := m.begin(ctx, "logout")
	defer func() { done(err) }()

	claims, verr := m.tokens.VerifyRefreshAllowExpired(refreshToken)
	if verr != nil || !validKeyPart(claims.Subject) || !validKeyPart(claims.SessionID) {
		return nil
	}
	deleted, err := m.deleteRecord(ctx, claims.Subject, claims.SessionID)
	if err != nil {
		return err
	}
	if deleted {
		m.notify(ctx, notify.EventLogout, claims.Subject, claims.SessionID, claims.Role, nil)
	}
	return nil
}

// LogoutAll revokes every session of subjectID and returns how many were removed.
// Keys are enumerated with a cursor scan and deleted page by page.
func (m *Manager) LogoutAll(ctx context.Context, subjectID string) (n int, err error) {
	ctx, done := m.begin(ctx, "logout_all")
	defer func() { done(err) }()

	if !validKeyPart(subjectID) {
		return 0, fmt.Errorf("%w: subject id", domain.ErrInvalidArgument)
	}
	sctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	n, err = m.repo.DeleteAllBySubject(sctx, subjectID)
	if err != nil {
		return n, err
	}
	m.notify(ctx, notify.EventLogoutAll, subjectID, "", "", map[string]string{"sessions_revoked": fmt.Sprint(n)})
	return n, nil
}

// Verify checks a token's signature and expiry without touching the store. It
// accepts both access and refresh tokens.
func (m *Manager) Verify(ctx context.Context, token string) (vc *domain.VerifiedClaims, err error) {
	_, done := m.begin(ctx, "verify")
	defer func() { done(err) }()

	claims, err := m.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	vc = &domain.VerifiedClaims{
		SubjectID: claims.Subject,
		Role:      claims.Role,
		SessionID: claims.SessionID,
		TokenUse:  string(claims.Use),
	}
	if claims.ExpiresAt != nil {
		vc.ExpiresAt = claims.ExpiresAt.Time
	}
	return vc, nil
}

// ListSessions returns the live sessions of subjectID, oldest first.
func (m *Manager) ListSessions(ctx context.Context, subjectID string) (out []domain.SessionInfo, err error) {
	ctx, done := m.begin(ctx, "list_sessions")
	defer func() { done(err) }()

	if !validKeyPart(subjectID) {
		return nil, fmt.Errorf("%w: subject id", domain.ErrInvalidArgument)
	}
	sctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	recs, err := m.repo.ListBySubject(sctx, subjectID)
	if err != nil {
		return nil, err
	}
	out = make([]domain.SessionInfo, 0, len(recs))
	for sid, rec := range recs {
		out = append(out, domain.SessionInfo{
			SessionID: sid,
			Device:    rec.Device,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// HealthCheck pings the session store.
func (m *Manager) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.repo.Ping(ctx)
}

// openSession mints a session id and token pair and writes the record. A zero
// accessTTL uses the configured default. The record expires with the refresh token.
func (m *Manager) openSession(ctx context.Context, p domain.Principal, device string, accessTTL time.Duration) (*domain.TokenPair, error) {
	var shortened int64
	if accessTTL > 0 {
		shortened = int64(accessTTL / time.Second)
	} else {
		accessTTL = m.cfg.AccessTTL
	}
	sessionID := uuid.NewString()

	access, accessExp, err := m.tokens.IssueAccess(p.SubjectID, p.Role, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := m.tokens.IssueRefresh(p.SubjectID, sessionID, p.Role, m.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	fingerprint, err := security.Fingerprint(m.hasher, refresh)
	if err != nil {
		return nil, fmt.Errorf("fingerprint refresh token: %w", err)
	}

	now := m.now().UTC()
	ttl := refreshExp.Sub(now)
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token expired before its session was stored")
	}
	rec := &domain.Record{
		Fingerprint:      fingerprint,
		Role:             p.Role,
		Device:           device,
		AccessTTLSeconds: shortened,
		CreatedAt:        now,
		ExpiresAt:        refreshExp,
	}
	sctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	if err := m.repo.Put(sctx, p.SubjectID, sessionID, rec, ttl); err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		SubjectID:        p.SubjectID,
		SessionID:        sessionID,
		Role:             p.Role,
	}, nil
}

func (m *Manager) getRecord(ctx context.Context, subjectID, sessionID string) (*domain.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.repo.Get(ctx, subjectID, sessionID)
}

func (m *Manager) deleteRecord(ctx context.Context, subjectID, sessionID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.repo.Delete(ctx, subjectID, sessionID)
}

// revokeOnMismatch removes a session whose stored fingerprint does not match
// a correctly signed token. Failures are logged; the caller is rejected either way.
func (m *Manager) revokeOnMismatch(ctx context.Context, subjectID, sessionID, role string) {
	m.logger.WarnContext(ctx, "session: refresh token fingerprint mismatch, revoking session",
		slog.String("subject_id", subjectID),
		slog.String("session_id", sessionID))
	if _, err := m.deleteRecord(ctx, subjectID, sessionID); err != nil {
		m.logger.WarnContext(ctx, "session: revoke after mismatch failed",
			slog.String("subject_id", subjectID),
			slog.String("session_id", sessionID),
			slog.Any("error", err))
	}
	m.notify(ctx, notify.EventRefreshTokenMismatch, subjectID, sessionID, role, nil)
}

func (m *Manager) notify(ctx context.Context, typ notify.EventType, subjectID, sessionID, role string, meta map[string]string) {
	e := notify.NewEvent(typ, subjectID, sessionID)
	e.Role = role
	e.Metadata = meta
	if err := m.notifier.Dispatch(ctx, e); err != nil {
		m.logger.WarnContext(ctx, "session: notify failed",
			slog.String("event_type", string(typ)),
			slog.Any("error", err))
	}
}

// begin starts the span for op and returns a completion func that records the outcome.
func (m *Manager) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := m.tracer.Start(ctx, "session."+op)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = strings.ToLower(string(domain.KindOf(err)))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		if m.recorder != nil {
			m.recorder.ObserveSessionOperation(op, outcome, time.Since(start))
		}
	}
}

// validKeyPart reports whether s can be embedded in a store key.
func validKeyPart(s string) bool {
	return s != "" && !strings.Contains(s, ":")
}

// Server runs the session service: AuthService and grpc.health.v1 on GRPC_ADDR, and
// /metrics, /readyz and /livez on ADMIN_ADDR. With DATABASE_URL set and no
// DIRECTORY_ADDR, the account directory is served in-process on the same listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	authv1 "collab-suite/auth/api/authv1"
	"collab-suite/auth/internal/audit"
	auditrepo "collab-suite/auth/internal/audit/repository"
	"collab-suite/auth/internal/config"
	"collab-suite/auth/internal/db"
	directoryclient "collab-suite/auth/internal/directory/client"
	directoryrepo "collab-suite/auth/internal/directory/repository"
	directoryservice "collab-suite/auth/internal/directory/service"
	healthhandler "collab-suite/auth/internal/health/handler"
	"collab-suite/auth/internal/kvstore"
	"collab-suite/auth/internal/logging"
	"collab-suite/auth/internal/metrics"
	"collab-suite/auth/internal/notify"
	"collab-suite/auth/internal/policy/engine"
	"collab-suite/auth/internal/security"
	"collab-suite/auth/internal/server"
	"collab-suite/auth/internal/server/interceptors"
	sessionrepo "collab-suite/auth/internal/session/repository"
	sessionservice "collab-suite/auth/internal/session/service"
	telemetry "collab-suite/auth/internal/telemetry/otel"
)

const serviceName = "collab-auth"

// memoryStoreAddr selects the in-process store; sessions are then local to one replica.
const memoryStoreAddr = "memory"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, serviceName, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.NewProviders(ctx, telemetry.Options{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: serviceName,
		Insecure:    cfg.OTLPInsecure,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer shutdown(logger, "telemetry", providers.Shutdown)

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	sessions := sessionrepo.NewKVRepository(store, cfg.SessionKeyPrefix)

	tokens, err := security.NewTokenProviderFromConfig(security.SigningConfig{
		Secret:     cfg.JWTSecret,
		PrivateKey: cfg.JWTPrivateKey,
		PublicKey:  cfg.JWTPublicKey,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})
	if err != nil {
		return fmt.Errorf("signing keys: %w", err)
	}
	hasher, err := security.NewHasher(cfg.PasswordHash, cfg.BcryptCost)
	if err != nil {
		return err
	}

	dir, err := openDirectory(ctx, cfg, hasher, logger)
	if err != nil {
		return err
	}
	defer dir.close()

	policy, err := openPolicy(ctx, cfg)
	if err != nil {
		return fmt.Errorf("login policy: %w", err)
	}

	dispatchers := notify.Multi{notify.NewOTelDispatcher(providers.LoggerProvider)}
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		kd := notify.NewKafkaDispatcher(brokers, cfg.SecurityEventsTopic)
		defer func() { _ = kd.Close() }()
		dispatchers = append(dispatchers, kd)
		logger.Info("security events to kafka", slog.String("topic", cfg.SecurityEventsTopic))
	}
	if dir.db != nil {
		dispatchers = append(dispatchers, audit.NewSink(auditrepo.NewPostgresRepository(dir.db)))
	}
	events := notify.NewAsync(dispatchers, cfg.CallTimeout(), logger)

	m := metrics.New()
	hostname, _ := os.Hostname()
	manager, err := sessionservice.NewManager(sessions, dir.validator, tokens, hasher, sessionservice.Config{
		AccessTTL:   cfg.AccessTTL(),
		RefreshTTL:  cfg.RefreshTTL(),
		LockTTL:     cfg.LockTTL(),
		CallTimeout: cfg.CallTimeout(),
		InstanceID:  hostname,
	},
		sessionservice.WithNotifier(audit.StampClientIP(events, interceptors.ClientIP)),
		sessionservice.WithPolicy(policy),
		sessionservice.WithRecorder(m),
		sessionservice.WithLogger(logger),
		sessionservice.WithTracer(otel.Tracer(serviceName)),
	)
	if err != nil {
		return err
	}

	checks := map[string]healthhandler.Checker{"sessions": manager}
	if dir.local != nil {
		checks["directory"] = dir.local
	}
	if hc, ok := policy.(healthhandler.Checker); ok {
		checks["policy"] = hc
	}
	health := healthhandler.NewServer(checks, authv1.ServiceName)

	s := server.NewServer(server.Options{Tokens: tokens, Logger: logger, Observer: m})
	deps := server.Deps{Sessions: manager, Health: health}
	if dir.local != nil {
		deps.Directory = dir.local
	}
	server.RegisterServices(s, deps)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer lis.Close()

	errCh := make(chan error, 2)
	go func() {
		logger.Info("gRPC server listening", slog.String("addr", cfg.GRPCAddr))
		errCh <- s.Serve(lis)
	}()

	var admin *http.Server
	if cfg.AdminAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.Handle("/readyz", health.ReadyzHandler())
		mux.Handle("/livez", healthhandler.LivezHandler())
		admin = &http.Server{Addr: cfg.AdminAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("admin server listening", slog.String("addr", cfg.AdminAddr))
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("admin: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	logger.Info("shutting down")
	if admin != nil {
		shutdown(logger, "admin server", admin.Shutdown)
	}
	s.GracefulStop()
	shutdown(logger, "security events", events.Drain)
	logger.Info("gRPC server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (kvstore.Store, error) {
	if cfg.RedisAddr == memoryStoreAddr {
		logger.Warn("using in-memory session store; sessions are not shared between replicas")
		return kvstore.NewMemoryStore(), nil
	}
	client, err := kvstore.NewRedisClient(ctx, kvstore.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	return kvstore.NewRedisStore(client), nil
}

// directory is the credential validator the manager calls, and the in-process
// service and its database when one is served alongside AuthService.
type directory struct {
	validator sessionservice.Directory
	local     *directoryservice.Service
	db        *sqlx.DB
	close     func()
}

func openDirectory(ctx context.Context, cfg *config.Config, hasher security.Hasher, logger *slog.Logger) (*directory, error) {
	if cfg.DirectoryAddr != "" {
		conn, err := grpc.NewClient(cfg.DirectoryAddr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		)
		if err != nil {
			return nil, fmt.Errorf("directory client: %w", err)
		}
		logger.Info("using remote directory", slog.String("addr", cfg.DirectoryAddr))
		return &directory{
			validator: directoryclient.New(conn),
			close:     func() { _ = conn.Close() },
		}, nil
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("set DIRECTORY_ADDR or DATABASE_URL")
	}
	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	svc, err := directoryservice.NewService(directoryrepo.NewPostgresRepository(conn), hasher, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &directory{
		validator: svc,
		local:     svc,
		db:        conn,
		close:     closeDB(conn),
	}, nil
}

func closeDB(conn *sqlx.DB) func() {
	return func() { _ = conn.Close() }
}

func openPolicy(ctx context.Context, cfg *config.Config) (engine.Evaluator, error) {
	if cfg.LoginPolicyFile != "" {
		return engine.NewOPAEvaluatorFromFile(ctx, cfg.LoginPolicyFile)
	}
	return engine.NewOPAEvaluator(ctx, "")
}

func shutdown(logger *slog.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown", slog.String("component", name), slog.Any("error", err))
	}
}

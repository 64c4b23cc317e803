package handler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// DefaultCheckTimeout bounds each dependency check.
const DefaultCheckTimeout = 2 * time.Second

// Checker reports whether a dependency is usable (e.g. the session store, the
// account database, the login policy).
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Server implements grpc.health.v1.Health for readiness. A service is SERVING
// when every registered check passes.
type Server struct {
	healthpb.UnimplementedHealthServer
	checks   map[string]Checker
	services map[string]bool
	timeout  time.Duration
}

// NewServer returns a new Health gRPC server. Nil checkers are skipped. services
// lists the service names answered besides "" (the whole server).
func NewServer(checks map[string]Checker, services ...string) *Server {
	s := &Server{
		checks:   make(map[string]Checker, len(checks)),
		services: map[string]bool{"": true},
		timeout:  DefaultCheckTimeout,
	}
	for name, c := range checks {
		if c != nil {
			s.checks[name] = c
		}
	}
	for _, svc := range services {
		s.services[svc] = true
	}
	return s
}

// Check returns SERVING or NOT_SERVING. Dependency failures are not gRPC errors;
// an unknown service is NotFound as the health protocol requires.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if !s.services[req.GetService()] {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", req.GetService())
	}
	if err := s.Ready(ctx); err != nil {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}

// Ready runs every check concurrently and joins the failures, named and sorted.
func (s *Server) Ready(ctx context.Context) error {
	failures := s.run(ctx)
	if len(failures) == 0 {
		return nil
	}
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, failures[name]))
	}
	return errors.Join(errs...)
}

func (s *Server) run(ctx context.Context) map[string]error {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		failures = map[string]error{}
	)
	for name, c := range s.checks {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			if err := c.HealthCheck(cctx); err != nil {
				mu.Lock()
				failures[name] = err
				mu.Unlock()
			}
		}(name, c)
	}
	wg.Wait()
	return failures
}

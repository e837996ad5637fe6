package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/scopeward/scopeward/internal/audit"
	"github.com/scopeward/scopeward/internal/auth"
	"github.com/scopeward/scopeward/internal/authz"
	"github.com/scopeward/scopeward/internal/platform/middleware"
)

// Dependencies holds all injected dependencies for the server.
type Dependencies struct {
	Pool               *pgxpool.Pool
	Auth               *auth.TokenService
	AuthHandler        *auth.Handler
	Engine             *authz.Engine
	AuthzHandler       *authz.Handler
	AuditHandler       *audit.Handler
	AuthzAuditLogger   authz.AuditLogger
	DevMode            bool
	DevAuthn           *auth.Authentication
	Logger             *slog.Logger
	CORSAllowedOrigins []string
}

type Server struct {
	httpServer   *http.Server
	protectedMux *http.ServeMux
	pool         *pgxpool.Pool
	handler      http.Handler
}

func New(addr string, deps Dependencies) *Server {
	// Protected routes mux — wrapped with auth middleware
	protectedMux := http.NewServeMux()

	var protectedHandler http.Handler = protectedMux
	if deps.Auth != nil {
		if deps.DevMode && deps.DevAuthn != nil {
			protectedHandler = auth.MiddlewareWithDevMode(deps.Auth, deps.DevAuthn)(protectedHandler)
		} else {
			protectedHandler = auth.Middleware(deps.Auth)(protectedHandler)
		}
	}

	// Top-level mux: public routes + protected catch-all
	topMux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		protectedMux: protectedMux,
		pool:         deps.Pool,
	}

	// Public routes (no auth required)
	topMux.HandleFunc("GET /healthz", s.handleHealth)
	topMux.HandleFunc("GET /readyz", s.handleReadiness)

	var authzOpts []authz.MiddlewareOption
	if deps.AuthzAuditLogger != nil {
		authzOpts = append(authzOpts, authz.WithAuditLogger(deps.AuthzAuditLogger))
	}

	// Ad-hoc authorization checks for the current principal
	if deps.AuthzHandler != nil {
		protectedMux.Handle("POST /api/v1/authorize",
			http.HandlerFunc(deps.AuthzHandler.HandleCheck),
		)
	}

	// Directory routes: provisioning and token issuance, each guarded by
	// its own declaration so the engine decides who may administer whom.
	if deps.AuthHandler != nil && deps.Engine != nil {
		protectedMux.Handle("POST /api/v1/users",
			authz.Require(deps.Engine, authz.Invocation{
				Permission: "user",
				Actions:    []string{"create"},
				Logical:    authz.LogicalAll,
			}, authzOpts...)(
				http.HandlerFunc(deps.AuthHandler.HandleCreateUser),
			),
		)
		protectedMux.Handle("POST /api/v1/users/{id}/permissions",
			authz.Require(deps.Engine, authz.Invocation{
				Permission: "user",
				Actions:    []string{"grant"},
				Logical:    authz.LogicalAll,
			}, authzOpts...)(
				http.HandlerFunc(deps.AuthHandler.HandleGrant),
			),
		)
		protectedMux.Handle("POST /api/v1/tokens",
			authz.Require(deps.Engine, authz.Invocation{
				Permission: "token",
				Actions:    []string{"issue"},
				Logical:    authz.LogicalAll,
			}, authzOpts...)(
				http.HandlerFunc(deps.AuthHandler.HandleIssueToken),
			),
		)
	}

	// Audit routes, themselves guarded by a data-access declaration
	if deps.AuditHandler != nil && deps.Engine != nil {
		protectedMux.Handle("GET /api/v1/audit/events",
			authz.Require(deps.Engine, authz.Invocation{
				Permission: "audit",
				Actions:    []string{"read"},
				Logical:    authz.LogicalAll,
			}, authzOpts...)(
				http.HandlerFunc(deps.AuditHandler.HandleListEvents),
			),
		)
	}

	// All other routes go through auth middleware
	topMux.Handle("/", protectedHandler)

	// Wrap top-level mux with observability middleware
	var handler http.Handler = topMux
	if deps.Logger != nil {
		handler = middleware.Logging(deps.Logger)(handler)
	}
	handler = middleware.RequestID(handler)
	if len(deps.CORSAllowedOrigins) > 0 {
		handler = middleware.CORS(deps.CORSAllowedOrigins)(handler)
	}

	s.handler = handler
	s.httpServer.Handler = handler
	return s
}

// Handler returns the full middleware-wrapped handler chain (for testing).
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ProtectedMux returns the mux for authenticated routes.
// Use this to register routes that require authentication.
func (s *Server) ProtectedMux() *http.ServeMux {
	return s.protectedMux
}

func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}

	slog.Info("server starting", "addr", listener.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.pool == nil {
		// Principals can still come from JWT claims without a database.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "not configured"})
		return
	}
	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

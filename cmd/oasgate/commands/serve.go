package commands

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/httpvalidator"
	"github.com/erraggy/oasgate/internal/gateway"
	"github.com/erraggy/oasgate/internal/httputil"
)

// HealthPath answers 200 without validation.
const HealthPath = "/healthz"

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a validating mock of the contract",
		Long: `Serve every operation of the contract behind the validation middleware.
Requests the contract rejects get 400 with the violations, unknown routes 404
and known paths with another method 405. Conforming requests reach a mock
handler: POST answers 201 with a Location for a new resource id, DELETE 204
and everything else 200 with a description of the matched operation.

The server shuts down gracefully on SIGINT or SIGTERM.`,
		Example: `  oasgate serve -c openapi.yaml --addr :9090
  OASGATE_SERVER_ADDR=:9090 oasgate serve -c openapi.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := a.gateway()
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), ln, newServeHandler(gw, a.logger), a.cfg.Server.ShutdownTimeout, a.logger)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests on shutdown")
	cmd.Flags().Int64("max-body-size", httpvalidator.DefaultMaxBodySize, "maximum request body size in bytes")
	return cmd
}

// serve runs handler on ln until ctx is done, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler, shutdownTimeout time.Duration, logger contract.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("serving", "addr", ln.Addr().String())

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", shutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		runErr = <-errCh
	case runErr = <-errCh:
	}

	if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
		return runErr
	}
	return nil
}

// newServeHandler mounts the validation middleware in front of the mock
// handler. The contract's index does the routing; chi carries the
// middleware stack and the health route.
func newServeHandler(gw *gateway.Gateway, logger contract.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(httpvalidator.Middleware(gw.Validator, httpvalidator.WithMiddlewareLogger(logger)))
		r.Handle("/*", mockHandler(gw))
	})
	return r
}

// mockHandler answers requests that passed validation.
func mockHandler(gw *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		op, params, err := gw.Index.MatchPath(r.Method, r.URL.EscapedPath())
		if err != nil {
			httpvalidator.WriteError(w, r, err)
			return
		}

		switch op.Method {
		case httputil.MethodPost:
			id := uuid.NewString()
			w.Header().Set("Location", strings.TrimRight(r.URL.Path, "/")+"/"+id)
			writeJSON(w, http.StatusCreated, map[string]any{
				"id":          id,
				"operationId": op.ID,
			})
		case httputil.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"operationId": op.ID,
				"method":      op.Method,
				"path":        op.PathTemplate,
				"pathParams":  params,
				"requestId":   middleware.GetReqID(r.Context()),
			})
		}
	}
}

func requestLogger(logger contract.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start).String(),
				"requestId", middleware.GetReqID(r.Context()))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(httputil.HeaderContentType, httputil.MediaTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

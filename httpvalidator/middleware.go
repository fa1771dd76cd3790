package httpvalidator

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/internal/httputil"
	"github.com/erraggy/oasgate/oaserrors"
)

// ErrorHandler renders an error that WriteError does not map itself.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	fallback ErrorHandler
	logger   contract.Logger
}

// WithFallback sets the handler for errors other than ConstraintViolations
// and RouteNotFoundError. The default writes a 500 JSON error.
func WithFallback(fn ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.fallback = fn
		}
	}
}

// WithMiddlewareLogger sets the logger used to report rejected requests.
func WithMiddlewareLogger(l contract.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = contract.LoggerOrNop(l)
	}
}

// Middleware validates every request before it reaches next. Rejected
// requests are answered by WriteError semantics; the fallback handles
// anything else, e.g. an oversized body.
func Middleware(v *Validator, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{fallback: defaultFallback, logger: v.logger}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := v.ValidateHTTP(r)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			cfg.logger.Info("rejected request",
				"method", r.Method,
				"path", r.URL.Path,
				"error", err.Error())
			writeError(w, r, err, cfg.fallback)
		})
	}
}

// WriteError renders err as an HTTP response:
//
//	*ConstraintViolations         400 {"errors":[{property,message,constraint,location}...]}
//	*oaserrors.RouteNotFoundError 404, or 405 with an Allow header, {"error": "..."}
//	anything else                 500 {"error": "..."}
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err, defaultFallback)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback ErrorHandler) {
	var violations *ConstraintViolations
	var notFound *oaserrors.RouteNotFoundError
	switch {
	case errors.As(err, &violations):
		writeJSON(w, http.StatusBadRequest, violationsBody{Errors: violations.Violations})
	case errors.As(err, &notFound):
		status := http.StatusNotFound
		if notFound.MethodNotAllowed() {
			status = http.StatusMethodNotAllowed
			w.Header().Set(httputil.HeaderAllow, strings.Join(notFound.AllowedMethods, ", "))
		}
		writeJSON(w, status, errorBody{Error: notFound.Error()})
	default:
		fallback(w, r, err)
	}
}

func defaultFallback(w http.ResponseWriter, _ *http.Request, err error) {
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
}

type violationsBody struct {
	Errors []ConstraintViolation `json:"errors"`
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set(httputil.HeaderContentType, httputil.MediaTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

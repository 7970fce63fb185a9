// Package api exposes the calculators and lookups as JSON over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetref/electrolyte-cli/internal/compat"
	"github.com/vetref/electrolyte-cli/internal/consensus"
	"github.com/vetref/electrolyte-cli/internal/dosing"
	"github.com/vetref/electrolyte-cli/internal/fluid"
	"github.com/vetref/electrolyte-cli/internal/input"
)

const maxBodyBytes = 1 << 20

// Rules is the ruleset loader the server reads from.
type Rules interface {
	Load(ctx context.Context) (*consensus.Ruleset, error)
	State() consensus.State
}

// Options configures New.
type Options struct {
	AllowedOrigins []string
	Engine         dosing.Options
}

// Server holds the handlers' dependencies.
type Server struct {
	rules   Rules
	engine  *dosing.Engine
	catalog *compat.Catalog
	origins []string
}

// New builds a Server. catalog may be nil, in which case the embedded
// compatibility catalog is used.
func New(rules Rules, catalog *compat.Catalog, opts Options) (*Server, error) {
	if catalog == nil {
		c, err := compat.Default()
		if err != nil {
			return nil, err
		}
		catalog = c
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		rules:   rules,
		engine:  dosing.New(rules, opts.Engine),
		catalog: catalog,
		origins: origins,
	}, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/rules", s.getRules)
		r.Get("/rules/refs", s.getRefs)
		r.Post("/modifiers", s.postModifiers)
		r.Get("/calc", s.listCalculators)
		r.Post("/calc/{electrolyte}", s.postCalc)
		r.Get("/fluids", s.listFluids)
		r.Get("/fluids/{name}", s.getFluid)
		r.Get("/compat", s.getCompat)
		r.Get("/compat/additives", s.listAdditives)
	})
	return r
}

type ctxKey struct{}

// RequestID returns the request ID set by the router, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("api: request",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// fluids is the ruleset's registry when one is loaded, the built-in one
// otherwise. It never triggers a load.
func (s *Server) fluids(ctx context.Context) *fluid.Registry {
	if s.rules.State() == consensus.StateReady {
		if rs, err := s.rules.Load(ctx); err == nil {
			return rs.FluidRegistry()
		}
	}
	return fluid.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

type errorBody struct {
	Error  string             `json:"error"`
	Fields []input.FieldError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe input.FieldErrors
	switch {
	case errors.As(err, &fe):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid input", Fields: fe})
	case errors.Is(err, consensus.ErrRulesUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "rules unavailable"})
	default:
		zap.L().Error("api: request failed",
			zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return false
	}
	return true
}

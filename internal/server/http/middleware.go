package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pathwayfr/pathway/internal/common"
	"github.com/pathwayfr/pathway/internal/server/metrics"
	"github.com/pathwayfr/pathway/internal/server/policy"
)

// observe logs every request and feeds the request metrics. The route label
// is the chi pattern so ids do not explode the label cardinality.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		var pattern string
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(r.Method, pattern, status, elapsed)

		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"route", pattern,
			"path", r.URL.Path,
			"status", status,
			"duration", elapsed.String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				s.logger.Error(r.Context(), "panic in handler", "panic", p, "path", r.URL.Path)
				writeError(w, common.ErrorInternal)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// gate authenticates the bearer token the route's policy asks for, resolves
// the principal and evaluates the policy before calling the handler.
func (s *Server) gate(p policy.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !p.NeedsPrincipal() {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			token := bearerToken(r.Header.Get(common.AuthorizationHeaderName))
			if token == "" {
				s.reject(w, r, common.ErrTokenMissing)
				return
			}

			principal, err := s.svc.Auth.Authenticate(ctx, token, p.TokenPurpose())
			if err != nil {
				s.reject(w, r, err)
				return
			}

			var target string
			if p.Target != "" {
				target = chi.URLParam(r, p.Target)
			}
			if err := p.Decide(ctx, principal, target); err != nil {
				s.reject(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(policy.WithPrincipal(ctx, principal)))
		})
	}
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, err error) {
	kind := common.KindOf(err)
	switch kind {
	case common.KindAuthentication, common.KindAuthorization:
		s.metrics.AuthEvent(metrics.EventGateRejected, common.CodeOf(err))
		s.logger.Info(r.Context(), "request rejected", "path", r.URL.Path, "reason", err)
	case common.KindInternal:
		s.logger.Error(r.Context(), "gate failure", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

// fail writes err, logging internal failures with their full chain.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	if common.KindOf(err) == common.KindInternal {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, err)
}

// principal returns the identity placed in the context by the gate.
func principal(r *http.Request) (*policy.Principal, error) {
	p := policy.PrincipalFrom(r.Context())
	if p == nil {
		return nil, errors.New("no principal in context")
	}
	return p, nil
}

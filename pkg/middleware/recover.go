package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/response"
)

// Recovery turns a handler panic into a 500 envelope carrying the request
// id, logs the stack against the matched route and counts it. Mount it
// inside reqid.Middleware so the id is already on the context.
//
//	r.Use(metrics.Middleware())
//	r.Use(reqid.Middleware())
//	r.Use(middleware.Recovery)
//	r.Use(middleware.Logger)
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(rec)
			}

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			id := reqid.FromCtx(r.Context())
			metrics.PanicsRecovered.WithLabelValues(r.Method, route).Inc()
			logger.Error("panic recovered",
				"error", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"request_id", id,
			)

			body := response.Envelope{
				Status:  http.StatusInternalServerError,
				Message: "Internal Server Error",
			}
			if id != "" {
				body.Errors = map[string]string{"request_id": id}
			}
			response.Write(w, http.StatusInternalServerError, body)
		}()
		next.ServeHTTP(w, r)
	})
}

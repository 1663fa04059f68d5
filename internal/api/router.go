package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trackamole/internal/utils"
)

// NewRouter serves encrypted models from modelDir plus health and metrics.
// Requests are counted on reg, which also backs /metrics.
func NewRouter(modelDir string, reg *prometheus.Registry, log *utils.Logger) *mux.Router {
	h := &handlers{modelDir: modelDir, log: log}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trackamole",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status.",
	}, []string{"route", "code"})
	reg.MustRegister(requests)

	r := mux.NewRouter()
	r.Use(countRequests(requests))
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := fmt.Fprintln(w, "OK"); err != nil {
			log.Warnf("health write: %v", err)
		}
	}).Methods(http.MethodGet)
	r.HandleFunc("/models/{file}", h.serveModel).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteError(w, &utils.CustomError{Code: http.StatusNotFound, Message: "not found"})
	})
	return r
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

func countRequests(c *prometheus.CounterVec) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(rec, r)
			route := "unknown"
			if cur := mux.CurrentRoute(r); cur != nil {
				if tpl, err := cur.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			c.WithLabelValues(route, fmt.Sprint(rec.code)).Inc()
		})
	}
}

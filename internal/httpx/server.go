package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Registrar mounts a handler's routes on r.
type Registrar interface {
	Register(r chi.Router)
}

func NewRouter(log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger(log), instrument, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// MountAPI puts hs under /api behind authentication.
func MountAPI(r chi.Router, authn *Authenticator, hs ...Registrar) {
	r.Route("/api", func(api chi.Router) {
		api.Use(authn.Middleware)
		api.Get("/me", me)
		for _, h := range hs {
			h.Register(api)
		}
	})
}

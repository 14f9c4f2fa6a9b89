package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterOptions struct {
	Gatherer  prometheus.Gatherer
	JWTSecret string
	// RateLimit guards the supplier fan-out routes; nil disables it
	RateLimit mux.MiddlewareFunc
}

func NewRouter(h *Handler, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	// Apply middleware
	r.Use(CORSMiddleware)
	r.Use(LoggingMiddleware(h.Log))

	// preflight requests only need the CORS headers
	r.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(JSONMiddleware)
	api.Use(IdentityMiddleware(opts.JWTSecret))

	// Search and revalidation hit suppliers on every call
	limit := opts.RateLimit
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	flights := api.PathPrefix("/flight").Subrouter()
	flights.Handle("/search", limit(http.HandlerFunc(h.SearchFlights))).Methods("POST")
	flights.Handle("/revalidate", limit(http.HandlerFunc(h.RevalidateFare))).Methods("POST")

	flights.HandleFunc("/search/{searchId}", h.CheckRouting).Methods("GET")
	flights.HandleFunc("/book/initiate", h.InitiateBooking).Methods("POST")
	flights.HandleFunc("/book/confirmation", h.ConfirmBooking).Methods("POST")

	return r
}

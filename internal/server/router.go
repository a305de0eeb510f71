package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"redfishd/internal/redfish"
)

type RouterOptions struct {
	// AllowedOrigins configures CORS; empty disables the CORS wrapper.
	AllowedOrigins []string
	// MetricsPath serves the Prometheus handler when Gatherer is set.
	MetricsPath string
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
}

// NewRouter wires the API into a gorilla/mux router wrapped with logging,
// recovery, metrics and CORS.
func NewRouter(a *API, opts RouterOptions) (http.Handler, error) {
	if a.Publisher == nil {
		a.Publisher = redfish.NopPublisher{}
	}
	m, err := newHTTPMetrics(opts.Registerer)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(a.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(a.MethodNotAllowed)

	if opts.Gatherer != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	v1 := "/redfish/v1"
	subs := v1 + "/EventService/Subscriptions"
	r.HandleFunc(v1+"/$metadata", a.Metadata).Methods("GET")
	r.HandleFunc(v1+"/Registries/{id}/{file}", a.RegistryDocument).Methods("GET")
	r.HandleFunc(subs, a.CreateSubscription).Methods("POST")
	r.HandleFunc(subs+"/{id}", a.GetSubscription).Methods("GET")
	r.HandleFunc(subs+"/{id}", a.DeleteSubscription).Methods("DELETE")
	r.PathPrefix("/").HandlerFunc(a.Action).Methods("POST")
	r.PathPrefix("/").HandlerFunc(a.Get).Methods("GET")

	r.Use(loggingMiddleware(a.log(), m))
	r.Use(recoveryMiddleware(a.log(), a))

	var h http.Handler = r
	if len(opts.AllowedOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			ExposedHeaders: []string{"Location"},
		}).Handler(h)
	}
	return h, nil
}

// Package metrics exposes Prometheus counters for the file server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters exposed by the file server.
type Metrics struct {
	RequestsTotal *prometheus.CounterVec
}

// New registers and returns a Metrics set against the default registry. A
// second call (e.g. a second Server in the same process, or in tests)
// reuses the already-registered collector rather than panicking.
func New() *Metrics {
	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "regmirror_http_requests_total",
		Help: "HTTP requests served by route.",
	}, []string{"route"})

	if err := prometheus.Register(requestsTotal); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return &Metrics{RequestsTotal: are.ExistingCollector.(*prometheus.CounterVec)}
		}
		panic(err)
	}
	return &Metrics{RequestsTotal: requestsTotal}
}

// Handler returns the /metrics HTTP handler for wiring into a mux.
func Handler() http.Handler {
	return promhttp.Handler()
}

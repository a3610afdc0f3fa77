// Package metrics instruments the logging facility itself: emitted records,
// rotations, and sink failures. Application-level metrics derived from log
// content are an external collaborator's job and are not computed here.
package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_records_total",
		Help: "Log records emitted, by level.",
	}, []string{"level"})

	DroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_records_dropped_total",
		Help: "Log records dropped after sustained sink failure or queue overflow.",
	})

	RotationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lumen_rotations_total",
		Help: "File sink rotations performed.",
	})

	SinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lumen_sink_errors_total",
		Help: "Write errors per sink.",
	}, []string{"sink"})
)

// Register attaches the facility collectors to reg (or the default
// registerer when nil). Re-registration is tolerated so multiple loggers
// can share one process registry.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{RecordsTotal, DroppedTotal, RotationsTotal, SinkErrorsTotal} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}

var (
	serveOnce sync.Once
	serveErr  error
)

// Serve exposes /metrics on the given port. It is started at most once per
// process; the listener runs until the process exits.
func Serve(port int) error {
	serveOnce.Do(func() {
		if err := Register(nil); err != nil {
			serveErr = err
			return
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			// Errors after startup only lose the metrics endpoint,
			// never the logging path.
			_ = http.ListenAndServe(fmt.Sprintf(":%d", port), mux)
		}()
	})
	return serveErr
}

// Package metrics holds RED (rate, errors, duration) instrumentation shared by service decorators.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "service"

// ErrorCoder classifies an error into a low-cardinality label value.
type ErrorCoder func(err error) string

// REDMetrics counts calls and errors and observes call duration for one service.
type REDMetrics struct {
	reqs *prometheus.CounterVec
	errs *prometheus.CounterVec
	durs *prometheus.HistogramVec
	code ErrorCoder
}

// NewREDMetrics registers the collectors for subsystem on reg. A nil code labels every error "unknown".
func NewREDMetrics(reg prometheus.Registerer, subsystem, what string, code ErrorCoder) *REDMetrics {
	if code == nil {
		code = func(error) string { return "unknown" }
	}

	reqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "call_total",
		Help:      "Number of calls to the " + what + " service",
	}, []string{"method"})

	errs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "error_total",
		Help:      "Number of errors encountered when calling the " + what + " service",
	}, []string{"method", "code"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "duration_seconds",
		Help:      "Duration of " + what + " service calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	reg.MustRegister(reqs, errs, durs)

	return &REDMetrics{reqs: reqs, errs: errs, durs: durs, code: code}
}

// Record starts timing method; the returned func records the outcome and passes err through.
func (m *REDMetrics) Record(method string) func(error) error {
	start := time.Now()
	return func(err error) error {
		m.reqs.With(prometheus.Labels{"method": method}).Inc()

		if err != nil {
			m.errs.With(prometheus.Labels{
				"method": method,
				"code":   m.code(err),
			}).Inc()
		}

		m.durs.With(prometheus.Labels{"method": method}).Observe(time.Since(start).Seconds())

		return err
	}
}

// Errors exposes the error counter, mostly for assertions.
func (m *REDMetrics) Errors() *prometheus.CounterVec { return m.errs }

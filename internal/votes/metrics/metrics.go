package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for vote submission.
type Metrics struct {
	// Submissions by outcome
	Submissions *prometheus.CounterVec

	// Deltas sent to the counter store, and how many were clamped
	Deltas  *prometheus.CounterVec
	Clamped prometheus.Counter

	SubmitLatency prometheus.Histogram
}

// New creates a new Metrics instance with all vote metrics registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodvote_vote_submissions_total",
			Help: "Vote submissions by outcome",
		}, []string{"outcome"}), // outcome: "applied", "noop", "malformed", "store_error"

		Deltas: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodvote_vote_deltas_total",
			Help: "Vote deltas submitted to the counter store by direction",
		}, []string{"direction"}),

		Clamped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "foodvote_vote_deltas_clamped_total",
			Help: "Decrements skipped because the count was already zero",
		}),

		SubmitLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "foodvote_vote_submit_duration_seconds",
			Help:    "Duration of vote submission including the counter store call",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(outcome).Inc()
	}
}

// ObserveDeltas records submitted deltas and how many the store skipped.
func (m *Metrics) ObserveDeltas(up, down, clamped int) {
	if m != nil {
		m.Deltas.WithLabelValues("up").Add(float64(up))
		m.Deltas.WithLabelValues("down").Add(float64(down))
		m.Clamped.Add(float64(clamped))
	}
}

func (m *Metrics) ObserveSubmitLatency(d time.Duration) {
	if m != nil {
		m.SubmitLatency.Observe(d.Seconds())
	}
}

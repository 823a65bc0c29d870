package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks registry reloads. A nil *Metrics records nothing.
type Metrics struct {
	Reloads        *prometheus.CounterVec
	KnownFoods     prometheus.Gauge
	KnownLocations prometheus.Gauge
}

// NewMetrics registers reload metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Reloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "foodvote_registry_reloads_total",
			Help: "Registry reload attempts by result",
		}, []string{"result"}), // result: "swapped", "unchanged", "failed", "rejected"
		KnownFoods: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "foodvote_registry_food_ids",
			Help: "Number of food IDs covered by the serving registry",
		}),
		KnownLocations: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "foodvote_registry_location_ids",
			Help: "Number of location IDs covered by the serving registry",
		}),
	}
}

func (m *Metrics) IncrementReload(result string) {
	if m != nil {
		m.Reloads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveSnapshot(s *Snapshot) {
	if m != nil && s != nil {
		m.KnownFoods.Set(float64(s.Foods.Len()))
		m.KnownLocations.Set(float64(s.Locations.Len()))
	}
}

package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ListingsExtracted *prometheus.CounterVec
	ListingsInserted  prometheus.Counter
	ImagesRefreshed   prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers against an explicit registry; tests use this to
// avoid duplicate registration on the global one.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ListingsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_listings_extracted_total",
			Help: "The total number of raw listings extracted, per site",
		}, []string{"site"}),
		ListingsInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_listings_inserted_total",
			Help: "The total number of new listings persisted",
		}),
		ImagesRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_images_refreshed_total",
			Help: "The total number of listing images updated by the refresh job",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'extract_failed', 'insert_failed', 'upsert_failed'
	}
}

func (m *Metrics) AddListingsExtracted(site string, n int) {
	m.ListingsExtracted.WithLabelValues(site).Add(float64(n))
}

func (m *Metrics) AddListingsInserted(n int) {
	m.ListingsInserted.Add(float64(n))
}

func (m *Metrics) AddImagesRefreshed(n int) {
	m.ImagesRefreshed.Add(float64(n))
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

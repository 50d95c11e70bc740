package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "restocrm"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "code"},
	)

	mirrorWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_writes_total",
			Help:      "Dual-write attempts by entity, path, operation and result.",
		},
		[]string{"entity", "path", "op", "result"},
	)

	mirrorDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mirror_degraded_total",
			Help:      "Writes that succeeded on one path only.",
		},
		[]string{"entity", "op"},
	)

	legacyDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legacy_documents_total",
			Help:      "Legacy form documents seen by reconstruction, by outcome.",
		},
		[]string{"entity", "outcome"},
	)

	legacySkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legacy_skips_total",
			Help:      "Legacy form documents dropped, by reason.",
		},
		[]string{"entity", "reason"},
	)

	paginationQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pagination_queries_total",
			Help:      "Store queries issued by paginators, by mode.",
		},
		[]string{"view", "mode"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, mirrorWrites, mirrorDegraded, legacyDocuments, legacySkips, paginationQueries)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

// ObserveMirrorWrite records one write on the current or legacy path.
func ObserveMirrorWrite(entity, path, op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mirrorWrites.WithLabelValues(entity, path, op, result).Inc()
}

func IncMirrorDegraded(entity, op string) {
	mirrorDegraded.WithLabelValues(entity, op).Inc()
}

// ObserveLegacyReport adds the outcome counts of one reconstruction.
func ObserveLegacyReport(entity string, parsed, skipped, ignored int, reasons map[string]int) {
	legacyDocuments.WithLabelValues(entity, "parsed").Add(float64(parsed))
	legacyDocuments.WithLabelValues(entity, "skipped").Add(float64(skipped))
	legacyDocuments.WithLabelValues(entity, "ignored").Add(float64(ignored))
	for reason, n := range reasons {
		legacySkips.WithLabelValues(entity, reason).Add(float64(n))
	}
}

func IncPaginationQuery(view, mode string) {
	paginationQueries.WithLabelValues(view, mode).Inc()
}

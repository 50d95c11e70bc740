package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/healthz", "2xx")
		IncPaginationQuery("clients", "first")
		IncMirrorDegraded("clients", "create")
	})
}

func TestObserveMirrorWrite(t *testing.T) {
	before := testutil.ToFloat64(mirrorWrites.WithLabelValues("orders", "legacy", "update", "error"))
	ObserveMirrorWrite("orders", "legacy", "update", errors.New("boom"))
	ObserveMirrorWrite("orders", "legacy", "update", nil)

	assert.Equal(t, before+1, testutil.ToFloat64(mirrorWrites.WithLabelValues("orders", "legacy", "update", "error")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(mirrorWrites.WithLabelValues("orders", "legacy", "update", "ok")), 1.0)
}

func TestObserveLegacyReport(t *testing.T) {
	ObserveLegacyReport("reservations", 3, 2, 1, map[string]int{"malformed_id": 2})

	assert.Equal(t, 3.0, testutil.ToFloat64(legacyDocuments.WithLabelValues("reservations", "parsed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(legacySkips.WithLabelValues("reservations", "malformed_id")))
}

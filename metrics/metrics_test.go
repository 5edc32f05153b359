package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveMutation(t *testing.T) {
	before := testutil.ToFloat64(mutations.WithLabelValues("join_event", OutcomeFailure, "ALREADY_PARTICIPANT"))

	ObserveMutation("join_event", "ALREADY_PARTICIPANT")
	ObserveMutation("join_event", "")

	assert.Equal(t, before+1, testutil.ToFloat64(mutations.WithLabelValues("join_event", OutcomeFailure, "ALREADY_PARTICIPANT")))
	assert.GreaterOrEqual(t, testutil.ToFloat64(mutations.WithLabelValues("join_event", OutcomeSuccess, "")), 1.0)
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCellTransition("VALIDATED")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `bingo_cell_transitions_total{status="VALIDATED"}`)
}

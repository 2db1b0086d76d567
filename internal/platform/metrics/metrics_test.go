package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCompletion(t *testing.T) {
	before := testutil.ToFloat64(completionsTotal.WithLabelValues("triage", "ok"))
	ObserveCompletion("triage", "ok", 2*time.Second)
	assert.Equal(t, before+1, testutil.ToFloat64(completionsTotal.WithLabelValues("triage", "ok")))
}

func TestHandlerExposesCollectors(t *testing.T) {
	SetSynonymEntries(42)
	IncSpecialtyFallback()
	ObserveMatch(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "medmatch_specialty_synonym_entries 42")
	assert.Contains(t, string(body), "medmatch_specialty_fallbacks_total")
	assert.Contains(t, string(body), "medmatch_directory_matched_doctors_bucket")
}

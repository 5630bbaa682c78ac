package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(InstrumentHandler)
	router.Get("/api/checks/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/checks/{id}", "418"))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/checks/abc", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/checks/{id}", "418"))

	assert.Equal(t, before+1, after)
}

func TestRecordGatewayCall(t *testing.T) {
	before := testutil.ToFloat64(gatewayCalls.WithLabelValues("stripe", "error"))
	RecordGatewayCall("stripe", assert.AnError)
	assert.Equal(t, before+1, testutil.ToFloat64(gatewayCalls.WithLabelValues("stripe", "error")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordCascade("completed")

	recorder := httptest.NewRecorder()
	Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "flatapi_cascade_deletions_total")
}

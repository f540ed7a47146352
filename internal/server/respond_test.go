package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/pkg/serrors"
)

func TestStatusForKind(t *testing.T) {
	cases := map[serrors.Kind]int{
		serrors.KindUnauthenticated:     http.StatusUnauthorized,
		serrors.KindPermissionDenied:    http.StatusForbidden,
		serrors.KindNotFound:            http.StatusNotFound,
		serrors.KindInvariantViolated:   http.StatusBadRequest,
		serrors.KindConflictDuplicate:   http.StatusConflict,
		serrors.KindUpstreamUnavailable: http.StatusBadGateway,
		serrors.KindThrottled:           http.StatusTooManyRequests,
	}
	for kind, status := range cases {
		assert.Equal(t, status, statusForKind(kind), string(kind))
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, serrors.NotFound("lapsi 42 not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.Equal(t, "lapsi 42 not found", body.Message)
}

func TestWriteErrorThrottledSetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, serrors.Throttled(90*time.Second))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "91", rec.Header().Get("Retry-After"))
}

func TestWriteErrorOpaqueInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Message)
}

func TestParseLeikkaus(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet,
		"/api/reporting/v1/tilastot/varhaiskasvatus?poiminta_pvm=2023-06-30", nil)
	l, err := parseLeikkaus(r)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.June, 30, 0, 0, 0, 0, time.UTC), l.PoimintaPvm)
	assert.Equal(t, l.PoimintaPvm, l.TilastointiPvm, "tilastointi_pvm defaults to poiminta_pvm")

	r = httptest.NewRequest(http.MethodGet,
		"/api/reporting/v1/tilastot/varhaiskasvatus?poiminta_pvm=2023-06-30&tilastointi_pvm=2023-09-01", nil)
	l, err = parseLeikkaus(r)
	require.NoError(t, err)
	assert.True(t, l.TilastointiPvm.After(l.PoimintaPvm))

	r = httptest.NewRequest(http.MethodGet,
		"/api/reporting/v1/tilastot/varhaiskasvatus?poiminta_pvm=30.06.2023", nil)
	_, err = parseLeikkaus(r)
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))
}

func TestRequiredDateParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/reporting/v1/kela/etuusmaksatus/aloittaneet", nil)
	_, err := requiredDateParam(r, "alkamis_pvm_alku")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))
}

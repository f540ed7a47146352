package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/serrors"
)

func testClient(t *testing.T, handler http.HandlerFunc) OrganisaatioClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOrganisaatioClient(configuration.UpstreamOptions{
		OperatorRegistryURL: srv.URL,
		Timeout:             time.Second,
		MaxAttempts:         2,
	})
}

func TestFetchOrganisaatio(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organisaatio/1.2.246.562.10.111", r.URL.Path)
		_, _ = w.Write([]byte(`{"oid":"1.2.246.562.10.111","nimi":"Testikaupunki","tyypit":["organisaatiotyyppi_07"]}`))
	})

	out, err := client.FetchOrganisaatio(context.Background(), "1.2.246.562.10.111")
	require.NoError(t, err)
	assert.Equal(t, "Testikaupunki", out.Nimi)
}

func TestFetchOrganisaatioUnknownOIDIsNotFound(t *testing.T) {
	calls := 0
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchOrganisaatio(context.Background(), "1.2.246.562.10.999")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))
	assert.False(t, serrors.IsKind(err, serrors.KindUpstreamUnavailable))
	// A 404 is permanent, so the second attempt never happens.
	assert.Equal(t, 1, calls)
}

func TestFetchOrganisaatioExhaustionIsUnavailable(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchOrganisaatio(context.Background(), "1.2.246.562.10.111")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindUpstreamUnavailable))
}

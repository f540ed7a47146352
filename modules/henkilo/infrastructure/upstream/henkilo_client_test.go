package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/serrors"
)

func testClient(t *testing.T, handler http.HandlerFunc) HenkiloClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHenkiloClient(configuration.UpstreamOptions{
		PersonRegistryURL: srv.URL,
		Timeout:           time.Second,
		MaxAttempts:       2,
	})
}

func TestFetchByHetuSendsIdentifierInBody(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/henkilo/hetu", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "120516A123X", body["hetu"])
		_, _ = w.Write([]byte(`{"oidHenkilo":"1.2.246.562.24.555","sukunimi":"Virtanen"}`))
	})

	out, err := client.FetchByHetu(context.Background(), "120516A123X")
	require.NoError(t, err)
	assert.Equal(t, "1.2.246.562.24.555", out.Oid)
}

func TestFetchByOIDUnknownPersonIsNotFound(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchByOID(context.Background(), "1.2.246.562.24.999")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindNotFound))
	assert.False(t, serrors.IsKind(err, serrors.KindUpstreamUnavailable))
}

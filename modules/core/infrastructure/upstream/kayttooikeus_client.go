// Package upstream holds the HTTP clients for the registries the core
// depends on. Every call is retried with bounded exponential backoff and
// surfaces UpstreamUnavailable when the budget is exhausted, leaving the
// caller's transaction to roll back.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/metrics"
	"github.com/iota-uz/varda/pkg/retry"
	"github.com/iota-uz/varda/pkg/serrors"
)

// PalveluOikeus is one service-scoped right in the identity provider's
// response. Only entries with Palvelu == "VARDA" concern this registry.
type PalveluOikeus struct {
	Palvelu string `json:"palvelu"`
	Oikeus  string `json:"oikeus"`
}

type OrganisaatioOikeudet struct {
	OrganisaatioOid string          `json:"organisaatioOid"`
	Kayttooikeudet  []PalveluOikeus `json:"kayttooikeudet"`
}

// KayttooikeusClient fetches role assignments from the identity provider.
type KayttooikeusClient interface {
	FetchOikeudet(ctx context.Context, kayttajaOID string) ([]OrganisaatioOikeudet, error)
}

type httpKayttooikeusClient struct {
	baseURL string
	client  *http.Client
	opts    retry.Options
	m       *metrics.Metrics
}

func NewKayttooikeusClient(cfg configuration.UpstreamOptions) KayttooikeusClient {
	return &httpKayttooikeusClient{
		baseURL: cfg.IdentityProviderURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		opts:    retry.Options{MaxAttempts: cfg.MaxAttempts},
		m:       metrics.Use(),
	}
}

func (c *httpKayttooikeusClient) FetchOikeudet(ctx context.Context, kayttajaOID string) ([]OrganisaatioOikeudet, error) {
	var out []OrganisaatioOikeudet
	err := retry.Do(ctx, c.opts, func(ctx context.Context) error {
		err := c.fetchOnce(ctx, kayttajaOID, &out)
		if err != nil {
			c.m.UpstreamAttempts.WithLabelValues("kayttooikeus", "error").Inc()
			return err
		}
		c.m.UpstreamAttempts.WithLabelValues("kayttooikeus", "ok").Inc()
		return nil
	})
	if err != nil {
		var be *serrors.BaseError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, serrors.UpstreamUnavailable("kayttooikeus", err)
	}
	return out, nil
}

func (c *httpKayttooikeusClient) fetchOnce(ctx context.Context, kayttajaOID string, out *[]OrganisaatioOikeudet) error {
	u := fmt.Sprintf("%s/kayttooikeus/%s", c.baseURL, url.PathEscape(kayttajaOID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return retry.Permanent{Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return fmt.Errorf("kayttooikeus responded %d", resp.StatusCode)
	default:
		return retry.Permanent{Err: fmt.Errorf("kayttooikeus responded %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

// Package upstream holds the operator-registry client used for lazy
// operator creation.
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

// OrganisaatioPayload is the operator registry's record of an operator.
type OrganisaatioPayload struct {
	Oid          string   `json:"oid"`
	Nimi         string   `json:"nimi"`
	Ytunnus      string   `json:"ytunnus"`
	Yritysmuoto  string   `json:"yritysmuoto"`
	Tyypit       []string `json:"tyypit"`
	AlkamisPvm   string   `json:"alkuPvm"`
	LakkautusPvm string   `json:"lakkautusPvm"`
}

// OrganisaatioClient resolves operator OIDs against the upstream
// operator registry.
type OrganisaatioClient interface {
	FetchOrganisaatio(ctx context.Context, oid string) (OrganisaatioPayload, error)
}

type httpOrganisaatioClient struct {
	baseURL string
	client  *http.Client
	opts    retry.Options
	m       *metrics.Metrics
}

func NewOrganisaatioClient(cfg configuration.UpstreamOptions) OrganisaatioClient {
	return &httpOrganisaatioClient{
		baseURL: cfg.OperatorRegistryURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		opts:    retry.Options{MaxAttempts: cfg.MaxAttempts},
		m:       metrics.Use(),
	}
}

func (c *httpOrganisaatioClient) FetchOrganisaatio(ctx context.Context, oid string) (OrganisaatioPayload, error) {
	var out OrganisaatioPayload
	err := retry.Do(ctx, c.opts, func(ctx context.Context) error {
		err := c.fetchOnce(ctx, oid, &out)
		if err != nil {
			c.m.UpstreamAttempts.WithLabelValues("organisaatio", "error").Inc()
			return err
		}
		c.m.UpstreamAttempts.WithLabelValues("organisaatio", "ok").Inc()
		return nil
	})
	if err != nil {
		// An error already carrying a kind (an upstream 404 classified as
		// NotFound) must surface as-is, not as exhaustion.
		var be *serrors.BaseError
		if errors.As(err, &be) {
			return OrganisaatioPayload{}, err
		}
		return OrganisaatioPayload{}, serrors.UpstreamUnavailable("organisaatio", err)
	}
	return out, nil
}

func (c *httpOrganisaatioClient) fetchOnce(ctx context.Context, oid string, out *OrganisaatioPayload) error {
	u := fmt.Sprintf("%s/organisaatio/%s", c.baseURL, url.PathEscape(oid))
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
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent{Err: serrors.NotFound("organisaatio not known upstream")}
	case resp.StatusCode >= 500:
		return fmt.Errorf("organisaatio registry responded %d", resp.StatusCode)
	default:
		return retry.Permanent{Err: fmt.Errorf("organisaatio registry responded %d", resp.StatusCode)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

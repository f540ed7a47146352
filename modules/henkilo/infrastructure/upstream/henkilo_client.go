// Package upstream holds the person-registry client used to resolve and
// enrich person records.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/metrics"
	"github.com/iota-uz/varda/pkg/retry"
	"github.com/iota-uz/varda/pkg/serrors"
)

// HenkiloPayload is the person registry's record of a person.
type HenkiloPayload struct {
	Oid         string `json:"oidHenkilo"`
	Etunimet    string `json:"etunimet"`
	Kutsumanimi string `json:"kutsumanimi"`
	Sukunimi    string `json:"sukunimi"`
	SyntymaPvm  string `json:"syntymaaika"`
	Turvakielto bool   `json:"turvakielto"`
}

// HenkiloClient resolves persons against the upstream person registry by
// national identifier or OID.
type HenkiloClient interface {
	FetchByHetu(ctx context.Context, hetu string) (HenkiloPayload, error)
	FetchByOID(ctx context.Context, oid string) (HenkiloPayload, error)
}

type httpHenkiloClient struct {
	baseURL string
	client  *http.Client
	opts    retry.Options
	m       *metrics.Metrics
}

func NewHenkiloClient(cfg configuration.UpstreamOptions) HenkiloClient {
	return &httpHenkiloClient{
		baseURL: cfg.PersonRegistryURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		opts:    retry.Options{MaxAttempts: cfg.MaxAttempts},
		m:       metrics.Use(),
	}
}

func (c *httpHenkiloClient) FetchByHetu(ctx context.Context, hetu string) (HenkiloPayload, error) {
	// The identifier travels in the body, never in the URL.
	body, err := json.Marshal(map[string]string{"hetu": hetu})
	if err != nil {
		return HenkiloPayload{}, err
	}
	return c.fetch(ctx, http.MethodPost, c.baseURL+"/henkilo/hetu", body)
}

func (c *httpHenkiloClient) FetchByOID(ctx context.Context, oid string) (HenkiloPayload, error) {
	body, err := json.Marshal(map[string]string{"oid": oid})
	if err != nil {
		return HenkiloPayload{}, err
	}
	return c.fetch(ctx, http.MethodPost, c.baseURL+"/henkilo/oid", body)
}

func (c *httpHenkiloClient) fetch(ctx context.Context, method, url string, body []byte) (HenkiloPayload, error) {
	var out HenkiloPayload
	err := retry.Do(ctx, c.opts, func(ctx context.Context) error {
		err := c.fetchOnce(ctx, method, url, body, &out)
		if err != nil {
			c.m.UpstreamAttempts.WithLabelValues("henkilo", "error").Inc()
			return err
		}
		c.m.UpstreamAttempts.WithLabelValues("henkilo", "ok").Inc()
		return nil
	})
	if err != nil {
		var be *serrors.BaseError
		if errors.As(err, &be) {
			return HenkiloPayload{}, err
		}
		return HenkiloPayload{}, serrors.UpstreamUnavailable("henkilo", err)
	}
	return out, nil
}

func (c *httpHenkiloClient) fetchOnce(ctx context.Context, method, url string, body []byte, out *HenkiloPayload) error {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return retry.Permanent{Err: serrors.NotFound("henkilo not known upstream")}
	case resp.StatusCode >= 500:
		return fmt.Errorf("henkilo registry responded %d", resp.StatusCode)
	default:
		return retry.Permanent{Err: fmt.Errorf("henkilo registry responded %d", resp.StatusCode)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

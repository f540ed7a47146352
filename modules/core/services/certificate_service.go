package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/logincert"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/ratelimit"
	"github.com/iota-uz/varda/pkg/serrors"
)

// CertificateService authenticates machine principals presenting a
// client certificate against the data-handover (luovutuspalvelu)
// endpoints. Access requires an exact LoginCertificate binding for the
// requested path and the luovutuspalvelu role on the bound principal.
type CertificateService struct {
	certs   logincert.Repository
	users   kayttaja.Repository
	limiter *ratelimit.LoginLimiter
	log     *logrus.Entry
}

func NewCertificateService(
	certs logincert.Repository,
	users kayttaja.Repository,
	limiter *ratelimit.LoginLimiter,
	log *logrus.Logger,
) *CertificateService {
	return &CertificateService{
		certs:   certs,
		users:   users,
		limiter: limiter,
		log:     log.WithField("component", "certificate"),
	}
}

// ParseCommonName extracts CN from a delimited DN string of the form
// "CN=<value>,O=<value>,…". Attribute order is not significant.
func ParseCommonName(dn string) (string, error) {
	for _, part := range strings.Split(dn, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "CN") {
			cn := strings.TrimSpace(value)
			if cn == "" {
				break
			}
			return cn, nil
		}
	}
	return "", serrors.Unauthenticated("certificate subject has no common name")
}

// Authenticate resolves the certificate subject to a machine principal
// for the requested API path. A missing binding and a role mismatch are
// both reported as permission denied so probing cannot distinguish them.
func (s *CertificateService) Authenticate(ctx context.Context, subjectDN, apiPath string) (kayttaja.Kayttaja, error) {
	cn, err := ParseCommonName(subjectDN)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	if err := s.limiter.Check(ctx, cn); err != nil {
		return kayttaja.Kayttaja{}, err
	}

	k, err := s.authenticate(ctx, cn, apiPath)
	if err != nil {
		if rlErr := s.limiter.RecordFailure(ctx, cn); rlErr != nil && serrors.IsKind(rlErr, serrors.KindThrottled) {
			return kayttaja.Kayttaja{}, rlErr
		}
		return kayttaja.Kayttaja{}, err
	}

	if err := s.limiter.Forgive(ctx, cn); err != nil {
		s.log.WithError(err).Warn("failed to reset certificate login budget")
	}
	return k, nil
}

func (s *CertificateService) authenticate(ctx context.Context, cn, apiPath string) (kayttaja.Kayttaja, error) {
	cert, err := s.certs.Find(ctx, apiPath, cn)
	if err != nil {
		if serrors.IsKind(err, serrors.KindNotFound) {
			s.log.WithFields(logrus.Fields{
				"common_name": cn,
				"api_path":    apiPath,
			}).Warn("certificate login rejected: no binding")
			return kayttaja.Kayttaja{}, serrors.PermissionDenied("certificate not authorized for this endpoint")
		}
		return kayttaja.Kayttaja{}, err
	}

	k, err := s.users.GetByID(ctx, cert.KayttajaID)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	if k.Kind() != kayttaja.KindPalvelu || !holdsLuovutuspalvelu(k) {
		s.log.WithField("common_name", cn).Warn("certificate login rejected: principal lacks luovutuspalvelu role")
		return kayttaja.Kayttaja{}, serrors.PermissionDenied("certificate not authorized for this endpoint")
	}
	return k, nil
}

func holdsLuovutuspalvelu(k kayttaja.Kayttaja) bool {
	for _, o := range k.Oikeudet() {
		if o.Role == permission.RoleLuovutuspalvelu {
			return true
		}
	}
	return false
}

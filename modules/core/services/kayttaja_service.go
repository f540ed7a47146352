package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/core/infrastructure/upstream"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/ratelimit"
	"github.com/iota-uz/varda/pkg/serrors"
)

// relevantPalvelu is the only service tag in the identity provider's
// payload that maps to roles here.
const relevantPalvelu = "VARDA"

// KayttajaService binds ticket-authenticated principals to their profile
// and role assignments, synchronizing with the identity provider at login
// and on demand.
type KayttajaService struct {
	repo        kayttaja.Repository
	oikeudet    upstream.KayttooikeusClient
	limiter     *ratelimit.LoginLimiter
	invalidator PrincipalInvalidator
	umbrellaOID string
	log         *logrus.Entry
}

// PrincipalInvalidator drops memoized visibility when a principal's group
// set changes. Satisfied by acl.Index.
type PrincipalInvalidator interface {
	InvalidatePrincipal(ctx context.Context, principalOID string)
}

func NewKayttajaService(
	repo kayttaja.Repository,
	oikeudet upstream.KayttooikeusClient,
	limiter *ratelimit.LoginLimiter,
	invalidator PrincipalInvalidator,
	umbrellaOID string,
	log *logrus.Logger,
) *KayttajaService {
	return &KayttajaService{
		repo:        repo,
		oikeudet:    oikeudet,
		limiter:     limiter,
		invalidator: invalidator,
		umbrellaOID: umbrellaOID,
		log:         log.WithField("component", "kayttaja"),
	}
}

// Login upserts the principal profile for an edge-authenticated identity
// and refreshes its role assignments. Failed attempts consume the
// throttle budget; successes hand it back.
func (s *KayttajaService) Login(ctx context.Context, oid string, kind kayttaja.Kind) (kayttaja.Kayttaja, error) {
	if err := s.limiter.Check(ctx, oid); err != nil {
		return kayttaja.Kayttaja{}, err
	}

	k, err := composables.InTxResult(ctx, func(txCtx context.Context) (kayttaja.Kayttaja, error) {
		stored, err := s.repo.Upsert(txCtx, kayttaja.New(oid, kind))
		if err != nil {
			return kayttaja.Kayttaja{}, err
		}
		return s.syncRoles(txCtx, stored)
	})
	if err != nil {
		if rlErr := s.limiter.RecordFailure(ctx, oid); rlErr != nil && serrors.IsKind(rlErr, serrors.KindThrottled) {
			return kayttaja.Kayttaja{}, rlErr
		}
		return kayttaja.Kayttaja{}, err
	}

	if err := s.limiter.Forgive(ctx, oid); err != nil {
		s.log.WithError(err).Warn("failed to reset login budget")
	}
	return k, nil
}

// SyncRoles refreshes role assignments for an existing principal.
func (s *KayttajaService) SyncRoles(ctx context.Context, oid string) (kayttaja.Kayttaja, error) {
	return composables.InTxResult(ctx, func(txCtx context.Context) (kayttaja.Kayttaja, error) {
		stored, err := s.repo.GetByOID(txCtx, oid)
		if err != nil {
			return kayttaja.Kayttaja{}, err
		}
		return s.syncRoles(txCtx, stored)
	})
}

func (s *KayttajaService) syncRoles(ctx context.Context, k kayttaja.Kayttaja) (kayttaja.Kayttaja, error) {
	// Umbrella administrators keep their memberships untouched by sync.
	if k.IsUmbrellaAdmin(s.umbrellaOID) {
		return k, nil
	}

	payload, err := s.oikeudet.FetchOikeudet(ctx, k.OID())
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	oikeudet := MapOikeudet(payload)
	if err := s.repo.ReplaceOikeudet(ctx, k.ID(), oikeudet); err != nil {
		return kayttaja.Kayttaja{}, err
	}
	s.invalidator.InvalidatePrincipal(ctx, k.OID())

	s.log.WithFields(logrus.Fields{
		"oid":   k.OID(),
		"roles": len(oikeudet),
	}).Info("role assignments synchronized")
	return k.WithOikeudet(oikeudet), nil
}

// GetByOID loads a principal with its role assignments.
func (s *KayttajaService) GetByOID(ctx context.Context, oid string) (kayttaja.Kayttaja, error) {
	return s.repo.GetByOID(ctx, oid)
}

// MapOikeudet filters the identity provider payload down to VARDA roles
// and maps each (scope, oikeus) pair to a typed role assignment. Unknown
// oikeus strings are dropped.
func MapOikeudet(payload []upstream.OrganisaatioOikeudet) []kayttaja.Kayttooikeus {
	out := make([]kayttaja.Kayttooikeus, 0, len(payload))
	seen := make(map[string]struct{})
	for _, org := range payload {
		for _, po := range org.Kayttooikeudet {
			if po.Palvelu != relevantPalvelu {
				continue
			}
			role, ok := permission.ParseRole(po.Oikeus)
			if !ok {
				continue
			}
			key := org.OrganisaatioOid + "\x00" + string(role)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kayttaja.Kayttooikeus{
				OrganisaatioOID: org.OrganisaatioOid,
				Role:            role,
			})
		}
	}
	return out
}

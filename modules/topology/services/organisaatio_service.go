package services

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/infrastructure/upstream"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// Lahdejarjestelma code of the registry's own UI. Data categories listed
// in an operator's integration channels reject submissions tagged with it.
const LahdejarjestelmaUI = "1"

var validate = validator.New()

// organisaatioDomains are the data categories operator rows project into.
var organisaatioDomains = []permission.Domain{
	permission.DomainToimijatiedot,
	permission.DomainVaka,
	permission.DomainRaportit,
}

type CreateOrganisaatioDTO struct {
	OID         string   `validate:"required"`
	Nimi        string   `validate:"required"`
	Ytunnus     string   `validate:"omitempty,len=9"`
	Yritysmuoto string   `validate:"required"`
	Tyypit      []string `validate:"required,min=1"`
	AlkamisPvm  time.Time
}

// OrganisaatioService owns the operator half of the topology store.
type OrganisaatioService struct {
	repo     organisaatio.Repository
	registry upstream.OrganisaatioClient
	index    *acl.Index
	log      *logrus.Entry
}

func NewOrganisaatioService(
	repo organisaatio.Repository,
	registry upstream.OrganisaatioClient,
	index *acl.Index,
	log *logrus.Logger,
) *OrganisaatioService {
	return &OrganisaatioService{
		repo:     repo,
		registry: registry,
		index:    index,
		log:      log.WithField("component", "organisaatio"),
	}
}

// Create stores an operator, returning the already-stored record when
// the OID exists. Idempotent by OID.
func (s *OrganisaatioService) Create(ctx context.Context, dto CreateOrganisaatioDTO) (organisaatio.Organisaatio, error) {
	if err := validate.Struct(dto); err != nil {
		return organisaatio.Organisaatio{}, serrors.InvariantViolated("invalid organisaatio: %v", err)
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (organisaatio.Organisaatio, error) {
		existing, err := s.repo.GetByOID(txCtx, dto.OID)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, organisaatio.ErrNotFound) {
			return organisaatio.Organisaatio{}, err
		}

		created, err := s.repo.Create(txCtx, organisaatio.New(
			dto.OID, dto.Nimi, dto.Ytunnus, dto.Yritysmuoto, dto.Tyypit, dto.AlkamisPvm,
		))
		if err != nil {
			return organisaatio.Organisaatio{}, err
		}
		if err := s.project(txCtx, created); err != nil {
			return organisaatio.Organisaatio{}, err
		}
		s.log.WithField("oid", created.OID()).Info("organisaatio created")
		return created, nil
	})
}

// EnsureByOID returns the operator, creating it lazily from the upstream
// operator registry when it is referenced before being stored.
func (s *OrganisaatioService) EnsureByOID(ctx context.Context, oid string) (organisaatio.Organisaatio, error) {
	existing, err := s.repo.GetByOID(ctx, oid)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, organisaatio.ErrNotFound) {
		return organisaatio.Organisaatio{}, err
	}

	payload, err := s.registry.FetchOrganisaatio(ctx, oid)
	if err != nil {
		return organisaatio.Organisaatio{}, err
	}
	return s.Create(ctx, CreateOrganisaatioDTO{
		OID:         payload.Oid,
		Nimi:        payload.Nimi,
		Ytunnus:     payload.Ytunnus,
		Yritysmuoto: payload.Yritysmuoto,
		Tyypit:      payload.Tyypit,
		AlkamisPvm:  parseUpstreamDate(payload.AlkamisPvm),
	})
}

func (s *OrganisaatioService) GetByID(ctx context.Context, id int64) (organisaatio.Organisaatio, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *OrganisaatioService) GetByOID(ctx context.Context, oid string) (organisaatio.Organisaatio, error) {
	return s.repo.GetByOID(ctx, oid)
}

// ReplaceIntegraatiot updates the integration-channel set: the data
// categories this operator may only submit system-to-system.
func (s *OrganisaatioService) ReplaceIntegraatiot(ctx context.Context, id int64, categories []string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.GetByID(txCtx, id); err != nil {
			return err
		}
		return s.repo.ReplaceIntegraatiot(txCtx, id, categories)
	})
}

func (s *OrganisaatioService) project(ctx context.Context, o organisaatio.Organisaatio) error {
	ref := acl.Ref{ContentType: organisaatio.ContentType, ObjectID: o.ID()}
	return s.index.Apply(ctx, ref, acl.Projection{
		Domains: organisaatioDomains,
		Grants:  []acl.ScopeGrant{{OID: o.OID()}},
	})
}

func parseUpstreamDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

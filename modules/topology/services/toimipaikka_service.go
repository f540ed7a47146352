package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// toimipaikkaDomains: units are touched by childcare recorders and by
// personnel recorders attaching work-locations.
var toimipaikkaDomains = []permission.Domain{
	permission.DomainVaka,
	permission.DomainTyontekija,
}

type CreateToimipaikkaDTO struct {
	OrganisaatioOID   string   `validate:"required"`
	OID               string   `validate:"omitempty"`
	Nimi              string   `validate:"required"`
	Toimintamuoto     string   `validate:"required"`
	Jarjestamismuodot []string `validate:"required,min=1"`
	Lahdejarjestelma  string   `validate:"required"`
	Tunniste          string
	AlkamisPvm        time.Time `validate:"required"`
	PaattymisPvm      *time.Time
}

type CreatePainotusDTO struct {
	ToimipaikkaID int64  `validate:"required"`
	Kind          string `validate:"required,oneof=kielipainotus toiminnallinenpainotus"`
	Koodi         string `validate:"required"`
	AlkamisPvm    time.Time
	PaattymisPvm  *time.Time
}

// ToimipaikkaService owns the unit half of the topology store.
type ToimipaikkaService struct {
	repo          toimipaikka.Repository
	organisaatiot *OrganisaatioService
	index         *acl.Index
	log           *logrus.Entry
}

func NewToimipaikkaService(
	repo toimipaikka.Repository,
	organisaatiot *OrganisaatioService,
	index *acl.Index,
	log *logrus.Logger,
) *ToimipaikkaService {
	return &ToimipaikkaService{
		repo:          repo,
		organisaatiot: organisaatiot,
		index:         index,
		log:           log.WithField("component", "toimipaikka"),
	}
}

// Create stores a unit under its operator, creating the operator lazily
// from the upstream registry when it is missing. A duplicate
// (lahdejarjestelma, tunniste) pair returns the clashing id.
func (s *ToimipaikkaService) Create(ctx context.Context, dto CreateToimipaikkaDTO) (toimipaikka.Toimipaikka, error) {
	if err := validate.Struct(dto); err != nil {
		return toimipaikka.Toimipaikka{}, serrors.InvariantViolated("invalid toimipaikka: %v", err)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (toimipaikka.Toimipaikka, error) {
		owner, err := s.organisaatiot.EnsureByOID(txCtx, dto.OrganisaatioOID)
		if err != nil {
			return toimipaikka.Toimipaikka{}, err
		}
		if owner.IntegraatioOnly("vakatiedot") && dto.Lahdejarjestelma == LahdejarjestelmaUI {
			return toimipaikka.Toimipaikka{}, serrors.InvariantViolated(
				"operator %s accepts vakatiedot only via integration", owner.OID(),
			)
		}
		if dto.Tunniste != "" {
			existing, err := s.repo.GetByTunniste(txCtx, dto.Lahdejarjestelma, dto.Tunniste)
			if err == nil {
				return toimipaikka.Toimipaikka{}, serrors.ConflictDuplicateExternal(existing.ID())
			}
			if !errors.Is(err, toimipaikka.ErrNotFound) {
				return toimipaikka.Toimipaikka{}, err
			}
		}

		t := toimipaikka.New(
			owner.ID(), dto.OID, dto.Nimi, dto.Toimintamuoto,
			dto.Jarjestamismuodot, dto.Lahdejarjestelma, dto.Tunniste, dto.AlkamisPvm,
		)
		if dto.PaattymisPvm != nil {
			t = t.WithPaattymisPvm(*dto.PaattymisPvm)
		}
		created, err := s.repo.Create(txCtx, t)
		if err != nil {
			return toimipaikka.Toimipaikka{}, err
		}
		if err := s.project(txCtx, created, owner); err != nil {
			return toimipaikka.Toimipaikka{}, err
		}
		s.log.WithFields(logrus.Fields{
			"id":           created.ID(),
			"organisaatio": owner.OID(),
		}).Info("toimipaikka created")
		return created, nil
	})
}

// CreatePainotus attaches a language or functional emphasis to a unit;
// it shares the unit's permission scopes.
func (s *ToimipaikkaService) CreatePainotus(ctx context.Context, dto CreatePainotusDTO) (toimipaikka.Painotus, error) {
	if err := validate.Struct(dto); err != nil {
		return toimipaikka.Painotus{}, serrors.InvariantViolated("invalid painotus: %v", err)
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (toimipaikka.Painotus, error) {
		unit, err := s.repo.GetByID(txCtx, dto.ToimipaikkaID)
		if err != nil {
			return toimipaikka.Painotus{}, err
		}
		owner, err := s.organisaatiot.GetByID(txCtx, unit.OrganisaatioID())
		if err != nil {
			return toimipaikka.Painotus{}, err
		}

		created, err := s.repo.CreatePainotus(txCtx, toimipaikka.Painotus{
			ToimipaikkaID: unit.ID(),
			Kind:          dto.Kind,
			Koodi:         dto.Koodi,
			AlkamisPvm:    dto.AlkamisPvm,
			PaattymisPvm:  dto.PaattymisPvm,
		})
		if err != nil {
			return toimipaikka.Painotus{}, err
		}

		contentType := toimipaikka.ContentTypeKielipainotus
		if dto.Kind == "toiminnallinenpainotus" {
			contentType = toimipaikka.ContentTypeToiminnallinenPainotus
		}
		ref := acl.Ref{ContentType: contentType, ObjectID: created.ID}
		err = s.index.Apply(txCtx, ref, acl.Projection{
			Domains: toimipaikkaDomains,
			Grants:  scopesFor(unit, owner),
		})
		if err != nil {
			return toimipaikka.Painotus{}, err
		}
		return created, nil
	})
}

func (s *ToimipaikkaService) GetByID(ctx context.Context, id int64) (toimipaikka.Toimipaikka, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ToimipaikkaService) ListByOrganisaatio(ctx context.Context, organisaatioID int64) ([]toimipaikka.Toimipaikka, error) {
	return s.repo.ListByOrganisaatio(ctx, organisaatioID)
}

// Reproject rewrites the unit's ACL rows against its current owner; the
// unit-migration path calls this after swapping the owner.
func (s *ToimipaikkaService) Reproject(ctx context.Context, unitID int64) error {
	unit, err := s.repo.GetByID(ctx, unitID)
	if err != nil {
		return err
	}
	owner, err := s.organisaatiot.GetByID(ctx, unit.OrganisaatioID())
	if err != nil {
		return err
	}
	if err := s.project(ctx, unit, owner); err != nil {
		return err
	}
	painotukset, err := s.repo.ListPainotukset(ctx, unit.ID())
	if err != nil {
		return err
	}
	for _, p := range painotukset {
		contentType := toimipaikka.ContentTypeKielipainotus
		if p.Kind == "toiminnallinenpainotus" {
			contentType = toimipaikka.ContentTypeToiminnallinenPainotus
		}
		ref := acl.Ref{ContentType: contentType, ObjectID: p.ID}
		if err := s.index.Apply(ctx, ref, acl.Projection{
			Domains: toimipaikkaDomains,
			Grants:  scopesFor(unit, owner),
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *ToimipaikkaService) project(ctx context.Context, t toimipaikka.Toimipaikka, owner organisaatio.Organisaatio) error {
	ref := acl.Ref{ContentType: toimipaikka.ContentType, ObjectID: t.ID()}
	return s.index.Apply(ctx, ref, acl.Projection{
		Domains: toimipaikkaDomains,
		Grants:  scopesFor(t, owner),
	})
}

// scopesFor yields the unit's ACL scopes: the owning operator's OID and,
// when the unit carries one, its own OID.
func scopesFor(t toimipaikka.Toimipaikka, owner organisaatio.Organisaatio) []acl.ScopeGrant {
	grants := []acl.ScopeGrant{{OID: owner.OID()}}
	if t.OID() != "" {
		grants = append(grants, acl.ScopeGrant{OID: t.OID()})
	}
	return grants
}

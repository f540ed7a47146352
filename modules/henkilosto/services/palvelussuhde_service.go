package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/henkilosto/domain/aggregates/tyontekija"
	"github.com/iota-uz/varda/modules/henkilosto/domain/entities/palvelussuhde"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

type CreatePalvelussuhdeDTO struct {
	TyontekijaID     int64     `validate:"required"`
	TyosuhdeKoodi    string    `validate:"required"`
	TyoaikaKoodi     string    `validate:"required"`
	TutkintoKoodi    string    `validate:"required"`
	TyoaikaViikossa  decimal.Decimal
	AlkamisPvm       time.Time `validate:"required"`
	PaattymisPvm     *time.Time
	Lahdejarjestelma string    `validate:"required"`
	Tunniste         string
}

type CreateTyoskentelypaikkaDTO struct {
	PalvelussuhdeID          int64     `validate:"required"`
	ToimipaikkaID            int64
	KiertavaTyontekijaKytkin bool
	TehtavanimikeKoodi       string    `validate:"required"`
	KelpoisuusKytkin         bool
	AlkamisPvm               time.Time `validate:"required"`
	PaattymisPvm             *time.Time
	Lahdejarjestelma         string    `validate:"required"`
	Tunniste                 string
}

type CreatePoissaoloDTO struct {
	PalvelussuhdeID  int64     `validate:"required"`
	AlkamisPvm       time.Time `validate:"required"`
	PaattymisPvm     time.Time `validate:"required"`
	Lahdejarjestelma string    `validate:"required"`
	Tunniste         string
}

// PalvelussuhdeService owns the employment chain below an employee.
type PalvelussuhdeService struct {
	repo        palvelussuhde.Repository
	tyontekijat tyontekija.Repository
	orgs        OrganisaatioLookup
	units       ToimipaikkaLookup
	index       *acl.Index
	feed        changefeed.Publisher
	log         *logrus.Entry
}

func NewPalvelussuhdeService(
	repo palvelussuhde.Repository,
	tyontekijat tyontekija.Repository,
	orgs OrganisaatioLookup,
	units ToimipaikkaLookup,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *PalvelussuhdeService {
	return &PalvelussuhdeService{
		repo:        repo,
		tyontekijat: tyontekijat,
		orgs:        orgs,
		units:       units,
		index:       index,
		feed:        feed,
		log:         log.WithField("component", "palvelussuhde"),
	}
}

// CreatePalvelussuhde adds a service relation under an employee.
func (s *PalvelussuhdeService) CreatePalvelussuhde(ctx context.Context, dto CreatePalvelussuhdeDTO) (palvelussuhde.Palvelussuhde, error) {
	if err := validate.Struct(dto); err != nil {
		return palvelussuhde.Palvelussuhde{}, serrors.InvariantViolated("invalid palvelussuhde: %v", err)
	}
	if dto.PaattymisPvm != nil && dto.PaattymisPvm.Before(dto.AlkamisPvm) {
		return palvelussuhde.Palvelussuhde{}, serrors.InvariantViolated("paattymis_pvm precedes alkamis_pvm")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (palvelussuhde.Palvelussuhde, error) {
		t, err := s.tyontekijat.GetByIDForUpdate(txCtx, dto.TyontekijaID)
		if err != nil {
			return palvelussuhde.Palvelussuhde{}, err
		}
		owner, err := s.orgs.GetByID(txCtx, t.VakajarjestajaID())
		if err != nil {
			return palvelussuhde.Palvelussuhde{}, err
		}

		created, err := s.repo.Create(txCtx, palvelussuhde.Palvelussuhde{
			TyontekijaID:     t.ID(),
			TyosuhdeKoodi:    dto.TyosuhdeKoodi,
			TyoaikaKoodi:     dto.TyoaikaKoodi,
			TutkintoKoodi:    dto.TutkintoKoodi,
			TyoaikaViikossa:  dto.TyoaikaViikossa,
			AlkamisPvm:       dto.AlkamisPvm,
			PaattymisPvm:     dto.PaattymisPvm,
			Lahdejarjestelma: dto.Lahdejarjestelma,
			Tunniste:         dto.Tunniste,
		})
		if err != nil {
			return palvelussuhde.Palvelussuhde{}, err
		}

		ref := acl.Ref{ContentType: palvelussuhde.ContentType, ObjectID: created.ID}
		err = s.index.Apply(txCtx, ref, acl.Projection{
			Domains: tyontekijaDomains,
			Grants:  operatorScopes(owner.OID()),
		})
		if err != nil {
			return palvelussuhde.Palvelussuhde{}, err
		}
		if err := s.record(txCtx, modelPalvelussuhde, created.ID, t.ID(), changefeed.Created); err != nil {
			return palvelussuhde.Palvelussuhde{}, err
		}
		return created, nil
	})
}

// CreateTyoskentelypaikka adds a work location. A roving worker names no
// unit; a stationary one must, and the unit has to belong to the
// employing operator.
func (s *PalvelussuhdeService) CreateTyoskentelypaikka(ctx context.Context, dto CreateTyoskentelypaikkaDTO) (palvelussuhde.Tyoskentelypaikka, error) {
	if err := validate.Struct(dto); err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, serrors.InvariantViolated("invalid tyoskentelypaikka: %v", err)
	}

	tp := palvelussuhde.Tyoskentelypaikka{
		PalvelussuhdeID:          dto.PalvelussuhdeID,
		ToimipaikkaID:            dto.ToimipaikkaID,
		KiertavaTyontekijaKytkin: dto.KiertavaTyontekijaKytkin,
		TehtavanimikeKoodi:       dto.TehtavanimikeKoodi,
		KelpoisuusKytkin:         dto.KelpoisuusKytkin,
		AlkamisPvm:               dto.AlkamisPvm,
		PaattymisPvm:             dto.PaattymisPvm,
		Lahdejarjestelma:         dto.Lahdejarjestelma,
		Tunniste:                 dto.Tunniste,
	}
	if !tp.Consistent() {
		if tp.KiertavaTyontekijaKytkin {
			return palvelussuhde.Tyoskentelypaikka{}, serrors.InvariantViolated("roving work location must not name a unit")
		}
		return palvelussuhde.Tyoskentelypaikka{}, serrors.InvariantViolated("stationary work location requires a unit")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (palvelussuhde.Tyoskentelypaikka, error) {
		p, err := s.repo.GetByID(txCtx, dto.PalvelussuhdeID)
		if err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}
		t, err := s.tyontekijat.GetByID(txCtx, p.TyontekijaID)
		if err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}
		owner, err := s.orgs.GetByID(txCtx, t.VakajarjestajaID())
		if err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}

		var unitOID string
		if tp.ToimipaikkaID != 0 {
			unit, err := s.units.GetByID(txCtx, tp.ToimipaikkaID)
			if err != nil {
				return palvelussuhde.Tyoskentelypaikka{}, err
			}
			if unit.OrganisaatioID() != owner.ID() {
				return palvelussuhde.Tyoskentelypaikka{}, serrors.InvariantViolated("work location unit must belong to the employing operator")
			}
			unitOID = unit.OID()
		}

		created, err := s.repo.CreateTyoskentelypaikka(txCtx, tp)
		if err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}

		ref := acl.Ref{ContentType: palvelussuhde.ContentTypeTyoskentelypaikka, ObjectID: created.ID}
		err = s.index.Apply(txCtx, ref, acl.Projection{
			Domains: tyontekijaDomains,
			Grants:  withUnitScope(operatorScopes(owner.OID()), unitOID),
		})
		if err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}
		if err := s.record(txCtx, modelTyoskentelypaikka, created.ID, t.ID(), changefeed.Created); err != nil {
			return palvelussuhde.Tyoskentelypaikka{}, err
		}
		return created, nil
	})
}

// CreatePoissaolo adds a long absence under a service relation. Too
// short an absence is rejected.
func (s *PalvelussuhdeService) CreatePoissaolo(ctx context.Context, dto CreatePoissaoloDTO) (palvelussuhde.PidempiPoissaolo, error) {
	if err := validate.Struct(dto); err != nil {
		return palvelussuhde.PidempiPoissaolo{}, serrors.InvariantViolated("invalid pidempi poissaolo: %v", err)
	}

	absence := palvelussuhde.PidempiPoissaolo{
		PalvelussuhdeID:  dto.PalvelussuhdeID,
		AlkamisPvm:       dto.AlkamisPvm,
		PaattymisPvm:     dto.PaattymisPvm,
		Lahdejarjestelma: dto.Lahdejarjestelma,
		Tunniste:         dto.Tunniste,
	}
	if !absence.LongEnough() {
		return palvelussuhde.PidempiPoissaolo{}, serrors.InvariantViolated(
			"pidempi poissaolo must last at least %d days", palvelussuhde.MinPoissaoloDays)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (palvelussuhde.PidempiPoissaolo, error) {
		p, err := s.repo.GetByID(txCtx, dto.PalvelussuhdeID)
		if err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}
		t, err := s.tyontekijat.GetByID(txCtx, p.TyontekijaID)
		if err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}
		owner, err := s.orgs.GetByID(txCtx, t.VakajarjestajaID())
		if err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}

		created, err := s.repo.CreatePoissaolo(txCtx, absence)
		if err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}

		ref := acl.Ref{ContentType: palvelussuhde.ContentTypePidempiPoissaolo, ObjectID: created.ID}
		err = s.index.Apply(txCtx, ref, acl.Projection{
			Domains: tyontekijaDomains,
			Grants:  operatorScopes(owner.OID()),
		})
		if err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}
		if err := s.record(txCtx, modelPoissaolo, created.ID, t.ID(), changefeed.Created); err != nil {
			return palvelussuhde.PidempiPoissaolo{}, err
		}
		return created, nil
	})
}

func (s *PalvelussuhdeService) GetByID(ctx context.Context, id int64) (palvelussuhde.Palvelussuhde, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PalvelussuhdeService) ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]palvelussuhde.Palvelussuhde, error) {
	return s.repo.ListByTyontekija(ctx, tyontekijaID)
}

func (s *PalvelussuhdeService) record(ctx context.Context, model string, id, tyontekijaID int64, ht changefeed.HistoryType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.feed.Record(ctx, tx, changefeed.Change{
		ModelName:         model,
		InstanceID:        id,
		ParentModelName:   modelTyontekija,
		ParentInstanceID:  tyontekijaID,
		TriggerModelName:  model,
		TriggerInstanceID: id,
		HistoryType:       ht,
	})
	return err
}

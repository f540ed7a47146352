package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/paatos"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

type CreatePaatosDTO struct {
	LapsiID             int64     `validate:"required"`
	Jarjestamismuoto    string    `validate:"required"`
	TuntimaaraViikossa  decimal.Decimal
	VuorohoitoKytkin    bool
	PaivittainenKytkin  bool
	KokopaivainenKytkin bool
	HakemusPvm          time.Time `validate:"required"`
	AlkamisPvm          time.Time `validate:"required"`
	PaattymisPvm        *time.Time
	Lahdejarjestelma    string    `validate:"required"`
	Tunniste            string
}

type CreateSuhdeDTO struct {
	PaatosID         int64     `validate:"required"`
	ToimipaikkaID    int64     `validate:"required"`
	AlkamisPvm       time.Time `validate:"required"`
	PaattymisPvm     *time.Time
	Lahdejarjestelma string    `validate:"required"`
	Tunniste         string
}

// PaatosService owns childcare decisions and their placements.
type PaatosService struct {
	repo     paatos.Repository
	lapset   lapsi.Repository
	orgs     OrganisaatioLookup
	oikeudet OikeusLookup
	units    ToimipaikkaLookup
	index    *acl.Index
	feed     changefeed.Publisher
	log      *logrus.Entry
}

func NewPaatosService(
	repo paatos.Repository,
	lapset lapsi.Repository,
	orgs OrganisaatioLookup,
	oikeudet OikeusLookup,
	units ToimipaikkaLookup,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *PaatosService {
	return &PaatosService{
		repo:     repo,
		lapset:   lapset,
		orgs:     orgs,
		oikeudet: oikeudet,
		units:    units,
		index:    index,
		feed:     feed,
		log:      log.WithField("component", "varhaiskasvatuspaatos"),
	}
}

// CreatePaatos authorizes childcare for a child. A decision of a PAOS
// child must carry a shared-custody arrangement form; an ordinary child
// must not.
func (s *PaatosService) CreatePaatos(ctx context.Context, dto CreatePaatosDTO) (paatos.Varhaiskasvatuspaatos, error) {
	if err := validate.Struct(dto); err != nil {
		return paatos.Varhaiskasvatuspaatos{}, serrors.InvariantViolated("invalid varhaiskasvatuspaatos: %v", err)
	}
	if dto.PaattymisPvm != nil && dto.PaattymisPvm.Before(dto.AlkamisPvm) {
		return paatos.Varhaiskasvatuspaatos{}, serrors.InvariantViolated("paattymis_pvm precedes alkamis_pvm")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (paatos.Varhaiskasvatuspaatos, error) {
		l, err := s.lapset.GetByIDForUpdate(txCtx, dto.LapsiID)
		if err != nil {
			return paatos.Varhaiskasvatuspaatos{}, err
		}
		if l.IsPaos() != paatos.IsPaosJarjestamismuoto(dto.Jarjestamismuoto) {
			if l.IsPaos() {
				return paatos.Varhaiskasvatuspaatos{}, serrors.InvariantViolated("paos child requires jarjestamismuoto jm02 or jm03")
			}
			return paatos.Varhaiskasvatuspaatos{}, serrors.InvariantViolated("jarjestamismuoto %s requires a paos child", dto.Jarjestamismuoto)
		}

		created, err := s.repo.Create(txCtx, paatos.Varhaiskasvatuspaatos{
			LapsiID:             l.ID(),
			Jarjestamismuoto:    dto.Jarjestamismuoto,
			TuntimaaraViikossa:  dto.TuntimaaraViikossa,
			VuorohoitoKytkin:    dto.VuorohoitoKytkin,
			PaivittainenKytkin:  dto.PaivittainenKytkin,
			KokopaivainenKytkin: dto.KokopaivainenKytkin,
			HakemusPvm:          dto.HakemusPvm,
			AlkamisPvm:          dto.AlkamisPvm,
			PaattymisPvm:        dto.PaattymisPvm,
			Lahdejarjestelma:    dto.Lahdejarjestelma,
			Tunniste:            dto.Tunniste,
		})
		if err != nil {
			return paatos.Varhaiskasvatuspaatos{}, err
		}
		if err := s.ReprojectPaatos(txCtx, created, l); err != nil {
			return paatos.Varhaiskasvatuspaatos{}, err
		}
		if err := s.record(txCtx, modelPaatos, created.ID, l.ID(), changefeed.Created); err != nil {
			return paatos.Varhaiskasvatuspaatos{}, err
		}
		return created, nil
	})
}

// CreateSuhde places a decision in a unit. The placement window must fit
// inside the decision window; a PAOS placement's unit must belong to the
// producer.
func (s *PaatosService) CreateSuhde(ctx context.Context, dto CreateSuhdeDTO) (paatos.Varhaiskasvatussuhde, error) {
	if err := validate.Struct(dto); err != nil {
		return paatos.Varhaiskasvatussuhde{}, serrors.InvariantViolated("invalid varhaiskasvatussuhde: %v", err)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (paatos.Varhaiskasvatussuhde, error) {
		p, err := s.repo.GetByID(txCtx, dto.PaatosID)
		if err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		l, err := s.lapset.GetByIDForUpdate(txCtx, p.LapsiID)
		if err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		if !p.Contains(dto.AlkamisPvm, dto.PaattymisPvm) {
			return paatos.Varhaiskasvatussuhde{}, serrors.InvariantViolated("placement window exceeds decision window")
		}

		unit, err := s.units.GetByID(txCtx, dto.ToimipaikkaID)
		if err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		if l.IsPaos() && unit.OrganisaatioID() != l.PaosOrganisaatioID() {
			return paatos.Varhaiskasvatussuhde{}, serrors.InvariantViolated("paos placement unit must belong to the producer")
		}
		if !unit.SupportsJarjestamismuoto(p.Jarjestamismuoto) {
			return paatos.Varhaiskasvatussuhde{}, serrors.InvariantViolated("unit does not support jarjestamismuoto %s", p.Jarjestamismuoto)
		}

		created, err := s.repo.CreateSuhde(txCtx, paatos.Varhaiskasvatussuhde{
			PaatosID:         p.ID,
			ToimipaikkaID:    unit.ID(),
			AlkamisPvm:       dto.AlkamisPvm,
			PaattymisPvm:     dto.PaattymisPvm,
			Lahdejarjestelma: dto.Lahdejarjestelma,
			Tunniste:         dto.Tunniste,
		})
		if err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		// The decision's scope set now includes the new unit.
		if err := s.ReprojectPaatos(txCtx, p, l); err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		if err := s.record(txCtx, modelSuhde, created.ID, l.ID(), changefeed.Created); err != nil {
			return paatos.Varhaiskasvatussuhde{}, err
		}
		return created, nil
	})
}

// ReprojectPaatos rewrites the ACL rows of a decision and all its
// placements from the child's current scope set.
func (s *PaatosService) ReprojectPaatos(ctx context.Context, p paatos.Varhaiskasvatuspaatos, l lapsi.Lapsi) error {
	grants, producerReadOnly, err := resolveChildGrants(ctx, s.orgs, s.oikeudet, l)
	if err != nil {
		return err
	}
	suhteet, err := s.repo.ListSuhteetByPaatos(ctx, p.ID)
	if err != nil {
		return err
	}

	unitOIDs := make([]string, 0, len(suhteet))
	for _, suhde := range suhteet {
		unit, err := s.units.GetByID(ctx, suhde.ToimipaikkaID)
		if err != nil {
			return err
		}
		unitOIDs = append(unitOIDs, unit.OID())
	}

	ref := acl.Ref{ContentType: paatos.ContentType, ObjectID: p.ID}
	err = s.index.Apply(ctx, ref, acl.Projection{
		Domains: vakaDomains,
		Grants:  withUnitScopes(grants, unitOIDs, producerReadOnly),
	})
	if err != nil {
		return err
	}

	for _, suhde := range suhteet {
		unit, err := s.units.GetByID(ctx, suhde.ToimipaikkaID)
		if err != nil {
			return err
		}
		suhdeRef := acl.Ref{ContentType: paatos.ContentTypeSuhde, ObjectID: suhde.ID}
		err = s.index.Apply(ctx, suhdeRef, acl.Projection{
			Domains: vakaDomains,
			Grants:  withUnitScopes(grants, []string{unit.OID()}, producerReadOnly),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// EndPaatos writes the decision's end date and reprojects it.
func (s *PaatosService) EndPaatos(ctx context.Context, id int64, pvm time.Time) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.repo.End(txCtx, p.ID, pvm); err != nil {
			return err
		}
		return s.record(txCtx, modelPaatos, p.ID, p.LapsiID, changefeed.Modified)
	})
}

func (s *PaatosService) GetByID(ctx context.Context, id int64) (paatos.Varhaiskasvatuspaatos, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *PaatosService) ListByLapsi(ctx context.Context, lapsiID int64) ([]paatos.Varhaiskasvatuspaatos, error) {
	return s.repo.ListByLapsi(ctx, lapsiID)
}

func (s *PaatosService) record(ctx context.Context, model string, id, lapsiID int64, ht changefeed.HistoryType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.feed.Record(ctx, tx, changefeed.Change{
		ModelName:         model,
		InstanceID:        id,
		ParentModelName:   modelLapsi,
		ParentInstanceID:  lapsiID,
		TriggerModelName:  model,
		TriggerInstanceID: id,
		HistoryType:       ht,
	})
	return err
}

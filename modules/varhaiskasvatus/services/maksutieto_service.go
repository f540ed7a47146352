package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/maksutieto"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/paatos"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

type HuoltajaDTO struct {
	Hetu       string
	HenkiloOID string
}

type CreateMaksutietoDTO struct {
	LapsiID            int64         `validate:"required"`
	Huoltajat          []HuoltajaDTO `validate:"required,min=1"`
	MaksunPerusteKoodi string        `validate:"required"`
	PerheenKoko        int
	Asiakasmaksu       decimal.Decimal
	PalvelusetelinArvo decimal.Decimal
	AlkamisPvm         time.Time     `validate:"required"`
	PaattymisPvm       *time.Time
	Lahdejarjestelma   string        `validate:"required"`
	Tunniste           string
}

// MaksutietoService owns client payments. Payments never reference the
// child directly; they attach through guardian links, so guardianship is
// resolved and upserted on every create.
type MaksutietoService struct {
	repo      maksutieto.Repository
	lapset    lapsi.Repository
	paatokset paatos.Repository
	orgs      OrganisaatioLookup
	oikeudet  OikeusLookup
	units     ToimipaikkaLookup
	persons   PersonResolver
	index     *acl.Index
	feed      changefeed.Publisher
	log       *logrus.Entry
}

func NewMaksutietoService(
	repo maksutieto.Repository,
	lapset lapsi.Repository,
	paatokset paatos.Repository,
	orgs OrganisaatioLookup,
	oikeudet OikeusLookup,
	units ToimipaikkaLookup,
	persons PersonResolver,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *MaksutietoService {
	return &MaksutietoService{
		repo:      repo,
		lapset:    lapset,
		paatokset: paatokset,
		orgs:      orgs,
		oikeudet:  oikeudet,
		units:     units,
		persons:   persons,
		index:     index,
		feed:      feed,
		log:       log.WithField("component", "maksutieto"),
	}
}

// Create records a payment for a child through its guardians. Guardians
// are resolved against the person store; an already-known guardian link
// is reactivated rather than duplicated.
func (s *MaksutietoService) Create(ctx context.Context, dto CreateMaksutietoDTO) (maksutieto.Maksutieto, error) {
	if err := validate.Struct(dto); err != nil {
		return maksutieto.Maksutieto{}, serrors.InvariantViolated("invalid maksutieto: %v", err)
	}
	if dto.PaattymisPvm != nil && dto.PaattymisPvm.Before(dto.AlkamisPvm) {
		return maksutieto.Maksutieto{}, serrors.InvariantViolated("paattymis_pvm precedes alkamis_pvm")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (maksutieto.Maksutieto, error) {
		l, err := s.lapset.GetByIDForUpdate(txCtx, dto.LapsiID)
		if err != nil {
			return maksutieto.Maksutieto{}, err
		}
		grants, recorderIsArranger, err := resolveChildGrants(txCtx, s.orgs, s.oikeudet, l)
		if err != nil {
			return maksutieto.Maksutieto{}, err
		}

		linkIDs := make([]int64, 0, len(dto.Huoltajat))
		for _, h := range dto.Huoltajat {
			link, err := s.ensureHuoltajuussuhde(txCtx, l, h, grants)
			if err != nil {
				return maksutieto.Maksutieto{}, err
			}
			linkIDs = append(linkIDs, link.ID)
		}

		created, err := s.repo.Create(txCtx, maksutieto.Maksutieto{
			MaksunPerusteKoodi: dto.MaksunPerusteKoodi,
			PerheenKoko:        dto.PerheenKoko,
			Asiakasmaksu:       dto.Asiakasmaksu,
			PalvelusetelinArvo: dto.PalvelusetelinArvo,
			AlkamisPvm:         dto.AlkamisPvm,
			PaattymisPvm:       dto.PaattymisPvm,
			Lahdejarjestelma:   dto.Lahdejarjestelma,
			Tunniste:           dto.Tunniste,
			HuoltajuussuhdeIDs: linkIDs,
		})
		if err != nil {
			return maksutieto.Maksutieto{}, err
		}
		if err := s.project(txCtx, created, l, grants, recorderIsArranger); err != nil {
			return maksutieto.Maksutieto{}, err
		}
		if err := s.record(txCtx, modelMaksutieto, created.ID, l.ID(), changefeed.Created); err != nil {
			return maksutieto.Maksutieto{}, err
		}
		return created, nil
	})
}

// ensureHuoltajuussuhde resolves the guardian person, upserts the link
// and projects both the link's rows and the guardian's read-through
// scopes.
func (s *MaksutietoService) ensureHuoltajuussuhde(ctx context.Context, l lapsi.Lapsi, h HuoltajaDTO, grants []acl.ScopeGrant) (maksutieto.Huoltajuussuhde, error) {
	person, err := s.persons.FindOrCreate(ctx, h.Hetu, h.HenkiloOID)
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	link, err := s.repo.UpsertHuoltajuussuhde(ctx, maksutieto.Huoltajuussuhde{
		LapsiID:           l.ID(),
		HuoltajaHenkiloID: person.ID(),
		VoimassaKytkin:    true,
	})
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}

	ref := acl.Ref{ContentType: maksutieto.ContentTypeHuoltajuussuhde, ObjectID: link.ID}
	err = s.index.Apply(ctx, ref, acl.Projection{Domains: paymentDomains, Grants: grants})
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	if err := s.persons.GrantScopes(ctx, person.ID(), paymentDomains, grants); err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	_, err = s.feed.Record(ctx, tx, changefeed.Change{
		ModelName:         modelHuoltajuussuhde,
		InstanceID:        link.ID,
		ParentModelName:   modelLapsi,
		ParentInstanceID:  l.ID(),
		TriggerModelName:  modelHuoltajuussuhde,
		TriggerInstanceID: link.ID,
		HistoryType:       changefeed.Created,
	})
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	return link, nil
}

// Reproject rewrites the payment's ACL rows from the child's current
// scope set.
func (s *MaksutietoService) Reproject(ctx context.Context, m maksutieto.Maksutieto, l lapsi.Lapsi) error {
	grants, recorderIsArranger, err := resolveChildGrants(ctx, s.orgs, s.oikeudet, l)
	if err != nil {
		return err
	}
	return s.project(ctx, m, l, grants, recorderIsArranger)
}

// project applies the payment projection: the guardian-data groups see
// payments through the extra domain, and active placement units widen
// the scope set.
func (s *MaksutietoService) project(ctx context.Context, m maksutieto.Maksutieto, l lapsi.Lapsi, grants []acl.ScopeGrant, producerReadOnly bool) error {
	unitOIDs, err := s.activeUnitOIDs(ctx, l.ID())
	if err != nil {
		return err
	}
	ref := acl.Ref{ContentType: maksutieto.ContentType, ObjectID: m.ID}
	return s.index.Apply(ctx, ref, acl.Projection{
		Domains: paymentDomains,
		Grants:  withUnitScopes(grants, unitOIDs, producerReadOnly),
	})
}

// activeUnitOIDs collects the units of the child's placements that are
// active today.
func (s *MaksutietoService) activeUnitOIDs(ctx context.Context, lapsiID int64) ([]string, error) {
	paatokset, err := s.paatokset.ListByLapsi(ctx, lapsiID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	seen := make(map[int64]struct{})
	var oids []string
	for _, p := range paatokset {
		suhteet, err := s.paatokset.ListSuhteetByPaatos(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, suhde := range suhteet {
			if !suhde.ActiveOn(now) {
				continue
			}
			if _, ok := seen[suhde.ToimipaikkaID]; ok {
				continue
			}
			seen[suhde.ToimipaikkaID] = struct{}{}
			unit, err := s.units.GetByID(ctx, suhde.ToimipaikkaID)
			if err != nil {
				return nil, err
			}
			oids = append(oids, unit.OID())
		}
	}
	return oids, nil
}

// End writes the payment's end date.
func (s *MaksutietoService) End(ctx context.Context, id int64, pvm time.Time, lapsiID int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.End(txCtx, id, pvm); err != nil {
			return err
		}
		return s.record(txCtx, modelMaksutieto, id, lapsiID, changefeed.Modified)
	})
}

// Delete removes the payment and its ACL rows. Guardian links stay; they
// may carry other payments.
func (s *MaksutietoService) Delete(ctx context.Context, id, lapsiID int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		m, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.index.Drop(txCtx, acl.Ref{ContentType: maksutieto.ContentType, ObjectID: m.ID}); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, m.ID); err != nil {
			return err
		}
		return s.record(txCtx, modelMaksutieto, m.ID, lapsiID, changefeed.Deleted)
	})
}

func (s *MaksutietoService) GetByID(ctx context.Context, id int64) (maksutieto.Maksutieto, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *MaksutietoService) ListByLapsi(ctx context.Context, lapsiID int64) ([]maksutieto.Maksutieto, error) {
	return s.repo.ListByLapsi(ctx, lapsiID)
}

func (s *MaksutietoService) record(ctx context.Context, model string, id, lapsiID int64, ht changefeed.HistoryType) error {
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

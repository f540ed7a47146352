package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/henkilosto/domain/aggregates/tyontekija"
	"github.com/iota-uz/varda/modules/henkilosto/domain/entities/palvelussuhde"
	"github.com/iota-uz/varda/modules/henkilosto/domain/entities/taydennyskoulutus"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

type OsallistujaDTO struct {
	TyontekijaID       int64  `validate:"required"`
	TehtavanimikeKoodi string `validate:"required"`
}

type CreateKoulutusDTO struct {
	Nimi             string           `validate:"required"`
	SuoritusPvm      time.Time        `validate:"required"`
	KoulutusPaivia   decimal.Decimal
	Lahdejarjestelma string           `validate:"required"`
	Tunniste         string
	Osallistujat     []OsallistujaDTO `validate:"required,min=1,dive"`
}

// TaydennyskoulutusService owns training events. Scope derivation and
// the unit-level recorder rule both walk the participants' work
// locations.
type TaydennyskoulutusService struct {
	repo            taydennyskoulutus.Repository
	tyontekijat     tyontekija.Repository
	palvelussuhteet palvelussuhde.Repository
	orgs            OrganisaatioLookup
	units           ToimipaikkaLookup
	index           *acl.Index
	feed            changefeed.Publisher
	log             *logrus.Entry
}

func NewTaydennyskoulutusService(
	repo taydennyskoulutus.Repository,
	tyontekijat tyontekija.Repository,
	palvelussuhteet palvelussuhde.Repository,
	orgs OrganisaatioLookup,
	units ToimipaikkaLookup,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *TaydennyskoulutusService {
	return &TaydennyskoulutusService{
		repo:            repo,
		tyontekijat:     tyontekijat,
		palvelussuhteet: palvelussuhteet,
		orgs:            orgs,
		units:           units,
		index:           index,
		feed:            feed,
		log:             log.WithField("component", "taydennyskoulutus"),
	}
}

// Create records a training event for one or more (employee, role-code)
// pairs. Each pair must be backed by a work location carrying the role
// code; a recorder holding only unit-level scopes must cover at least
// one such work location per pair.
func (s *TaydennyskoulutusService) Create(ctx context.Context, principal kayttaja.Kayttaja, dto CreateKoulutusDTO) (taydennyskoulutus.Taydennyskoulutus, error) {
	if err := validate.Struct(dto); err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, serrors.InvariantViolated("invalid taydennyskoulutus: %v", err)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (taydennyskoulutus.Taydennyskoulutus, error) {
		operatorOIDs := make(map[string]struct{})
		unitOIDs := make(map[string]struct{})
		osallistujat := make([]taydennyskoulutus.Osallistuja, 0, len(dto.Osallistujat))

		for _, o := range dto.Osallistujat {
			t, err := s.tyontekijat.GetByID(txCtx, o.TyontekijaID)
			if err != nil {
				return taydennyskoulutus.Taydennyskoulutus{}, err
			}
			owner, err := s.orgs.GetByID(txCtx, t.VakajarjestajaID())
			if err != nil {
				return taydennyskoulutus.Taydennyskoulutus{}, err
			}

			pairUnits, err := s.pairUnitOIDs(txCtx, t.ID(), o.TehtavanimikeKoodi)
			if err != nil {
				return taydennyskoulutus.Taydennyskoulutus{}, err
			}
			if pairUnits == nil {
				return taydennyskoulutus.Taydennyskoulutus{}, serrors.InvariantViolated(
					"tehtavanimike %s not held by tyontekija %d", o.TehtavanimikeKoodi, t.ID())
			}
			if err := s.vetRecorderScope(principal, owner.OID(), pairUnits); err != nil {
				return taydennyskoulutus.Taydennyskoulutus{}, err
			}

			operatorOIDs[owner.OID()] = struct{}{}
			for _, oid := range pairUnits {
				unitOIDs[oid] = struct{}{}
			}
			osallistujat = append(osallistujat, taydennyskoulutus.Osallistuja{
				TyontekijaID:       t.ID(),
				TehtavanimikeKoodi: o.TehtavanimikeKoodi,
			})
		}

		created, err := s.repo.Create(txCtx, taydennyskoulutus.Taydennyskoulutus{
			Nimi:             dto.Nimi,
			SuoritusPvm:      dto.SuoritusPvm,
			KoulutusPaivia:   dto.KoulutusPaivia,
			Lahdejarjestelma: dto.Lahdejarjestelma,
			Tunniste:         dto.Tunniste,
			Osallistujat:     osallistujat,
		})
		if err != nil {
			return taydennyskoulutus.Taydennyskoulutus{}, err
		}

		grants := make([]acl.ScopeGrant, 0, len(operatorOIDs)+len(unitOIDs))
		for oid := range operatorOIDs {
			grants = append(grants, acl.ScopeGrant{OID: oid})
		}
		for oid := range unitOIDs {
			grants = append(grants, acl.ScopeGrant{OID: oid})
		}
		ref := acl.Ref{ContentType: taydennyskoulutus.ContentType, ObjectID: created.ID}
		err = s.index.Apply(txCtx, ref, acl.Projection{Domains: koulutusDomains, Grants: grants})
		if err != nil {
			return taydennyskoulutus.Taydennyskoulutus{}, err
		}

		for _, o := range osallistujat {
			if err := s.record(txCtx, created.ID, o.TyontekijaID, changefeed.Created); err != nil {
				return taydennyskoulutus.Taydennyskoulutus{}, err
			}
		}
		return created, nil
	})
}

// pairUnitOIDs resolves the unit OIDs of the employee's work locations
// carrying the role code. nil means the pair has no backing work
// location at all; an empty slice means only roving ones.
func (s *TaydennyskoulutusService) pairUnitOIDs(ctx context.Context, tyontekijaID int64, tehtavanimikeKoodi string) ([]string, error) {
	paikat, err := s.palvelussuhteet.ListTyoskentelypaikatByNimike(ctx, tyontekijaID, tehtavanimikeKoodi)
	if err != nil {
		return nil, err
	}
	if len(paikat) == 0 {
		return nil, nil
	}
	oids := make([]string, 0, len(paikat))
	for _, tp := range paikat {
		if tp.ToimipaikkaID == 0 {
			continue
		}
		unit, err := s.units.GetByID(ctx, tp.ToimipaikkaID)
		if err != nil {
			return nil, err
		}
		if unit.OID() != "" {
			oids = append(oids, unit.OID())
		}
	}
	return oids, nil
}

// vetRecorderScope enforces the unit-level recorder rule. A principal
// holding a recorder-grade training role at the operator passes
// outright; one holding only unit-scoped roles must cover at least one
// of the pair's work-location units. A zero principal (internal caller)
// is not checked.
func (s *TaydennyskoulutusService) vetRecorderScope(principal kayttaja.Kayttaja, operatorOID string, pairUnits []string) error {
	if principal.IsZero() {
		return nil
	}

	scoped := make(map[string]struct{})
	for _, o := range principal.Oikeudet() {
		if !o.Role.Write() || !o.Role.Covers(permission.DomainTaydennyskoulutus) {
			continue
		}
		if o.OrganisaatioOID == operatorOID {
			return nil
		}
		scoped[o.OrganisaatioOID] = struct{}{}
	}
	if len(scoped) == 0 {
		return serrors.PermissionDenied("no training recorder scope for this operator")
	}
	for _, oid := range pairUnits {
		if _, ok := scoped[oid]; ok {
			return nil
		}
	}
	return serrors.PermissionDenied("unit-scoped recorder does not cover any work location of the pair")
}

func (s *TaydennyskoulutusService) GetByID(ctx context.Context, id int64) (taydennyskoulutus.Taydennyskoulutus, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *TaydennyskoulutusService) ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]taydennyskoulutus.Taydennyskoulutus, error) {
	return s.repo.ListByTyontekija(ctx, tyontekijaID)
}

// Delete removes a training event and its ACL rows.
func (s *TaydennyskoulutusService) Delete(ctx context.Context, id int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		k, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.index.Drop(txCtx, acl.Ref{ContentType: taydennyskoulutus.ContentType, ObjectID: k.ID}); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, k.ID); err != nil {
			return err
		}
		for _, o := range k.Osallistujat {
			if err := s.record(txCtx, k.ID, o.TyontekijaID, changefeed.Deleted); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *TaydennyskoulutusService) record(ctx context.Context, id, tyontekijaID int64, ht changefeed.HistoryType) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.feed.Record(ctx, tx, changefeed.Change{
		ModelName:         modelKoulutus,
		InstanceID:        id,
		ParentModelName:   modelTyontekija,
		ParentInstanceID:  tyontekijaID,
		TriggerModelName:  modelKoulutus,
		TriggerInstanceID: id,
		HistoryType:       ht,
	})
	return err
}

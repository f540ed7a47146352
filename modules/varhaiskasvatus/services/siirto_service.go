package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	topologypaos "github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/maksutieto"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/paatos"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// UnitReprojector rewrites a unit's own ACL rows against its current
// owner.
type UnitReprojector interface {
	Reproject(ctx context.Context, toimipaikkaID int64) error
}

// PaosParticipationLookup lists the shared-custody intents naming a
// unit.
type PaosParticipationLookup interface {
	ToimipaikkaIntents(ctx context.Context, toimipaikkaID int64) ([]topologypaos.Toiminta, error)
}

// SiirtoService moves units between operators. A migration hands a unit
// to a new owner; a merge folds a unit's children into another unit and
// retires the source. Either way the children active in the unit are
// re-recorded under the receiving operator so history stays with the
// old owner.
type SiirtoService struct {
	units     toimipaikka.Repository
	unitACL   UnitReprojector
	orgs      OrganisaatioLookup
	intents   PaosParticipationLookup
	lapset    lapsi.Repository
	paatokset paatos.Repository
	maksut    maksutieto.Repository
	kayttajat kayttaja.Repository
	persons   PersonResolver
	index     *acl.Index
	feed      changefeed.Publisher
	log       *logrus.Entry
}

func NewSiirtoService(
	units toimipaikka.Repository,
	unitACL UnitReprojector,
	orgs OrganisaatioLookup,
	intents PaosParticipationLookup,
	lapset lapsi.Repository,
	paatokset paatos.Repository,
	maksut maksutieto.Repository,
	kayttajat kayttaja.Repository,
	persons PersonResolver,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *SiirtoService {
	return &SiirtoService{
		units:     units,
		unitACL:   unitACL,
		orgs:      orgs,
		intents:   intents,
		lapset:    lapset,
		paatokset: paatokset,
		maksut:    maksut,
		kayttajat: kayttajat,
		persons:   persons,
		index:     index,
		feed:      feed,
		log:       log.WithField("component", "siirto"),
	}
}

// MigrateUnits transfers each unit to the target operator in one
// transaction. Any rejected unit rolls the whole batch back.
func (s *SiirtoService) MigrateUnits(ctx context.Context, unitIDs []int64, targetOID string) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		target, err := s.orgs.GetByOID(txCtx, targetOID)
		if err != nil {
			return err
		}
		pvm := transferDate()
		for _, unitID := range unitIDs {
			if err := s.migrateUnit(txCtx, unitID, target, pvm); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SiirtoService) migrateUnit(ctx context.Context, unitID int64, target organisaatio.Organisaatio, pvm time.Time) error {
	unit, err := s.units.GetByIDForUpdate(ctx, unitID)
	if err != nil {
		return err
	}
	oldOwner, err := s.vetUnit(ctx, unit, target)
	if err != nil {
		return err
	}

	if err := s.stripUnitMemberships(ctx, unit.OID()); err != nil {
		return err
	}
	if err := s.transferChildren(ctx, unit, unit, target, pvm); err != nil {
		return err
	}

	if _, err := s.units.Update(ctx, unit.WithOrganisaatio(target.ID())); err != nil {
		return err
	}
	if err := s.unitACL.Reproject(ctx, unit.ID()); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"toimipaikka_id": unit.ID(),
		"from":           oldOwner.OID(),
		"to":             target.OID(),
	}).Info("unit migrated")
	return nil
}

// MergeUnit folds the source unit into the destination unit. The source
// keeps its owner, gets an end date and transfers nothing but its
// children.
func (s *SiirtoService) MergeUnit(ctx context.Context, sourceUnitID, destUnitID int64) error {
	if sourceUnitID == destUnitID {
		return serrors.InvariantViolated("merge source and destination must differ")
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		source, err := s.units.GetByIDForUpdate(txCtx, sourceUnitID)
		if err != nil {
			return err
		}
		dest, err := s.units.GetByIDForUpdate(txCtx, destUnitID)
		if err != nil {
			return err
		}
		target, err := s.orgs.GetByID(txCtx, dest.OrganisaatioID())
		if err != nil {
			return err
		}
		if source.OrganisaatioID() != dest.OrganisaatioID() {
			if _, err := s.vetUnit(txCtx, source, target); err != nil {
				return err
			}
		} else if err := s.vetPaosParticipation(txCtx, source); err != nil {
			return err
		}

		pvm := transferDate()
		if err := s.stripUnitMemberships(txCtx, source.OID()); err != nil {
			return err
		}
		if err := s.transferChildren(txCtx, source, dest, target, pvm); err != nil {
			return err
		}

		if _, err := s.units.Update(txCtx, source.WithPaattymisPvm(pvm)); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"source_id": source.ID(),
			"dest_id":   dest.ID(),
		}).Info("unit merged")
		return nil
	})
}

// vetUnit applies the migration preconditions: the target must be a new
// owner on the same side of the public/private boundary, and the unit
// must be clear of shared-custody arrangements.
func (s *SiirtoService) vetUnit(ctx context.Context, unit toimipaikka.Toimipaikka, target organisaatio.Organisaatio) (organisaatio.Organisaatio, error) {
	if unit.OrganisaatioID() == target.ID() {
		return organisaatio.Organisaatio{}, serrors.InvariantViolated("unit already belongs to %s", target.OID())
	}
	oldOwner, err := s.orgs.GetByID(ctx, unit.OrganisaatioID())
	if err != nil {
		return organisaatio.Organisaatio{}, err
	}
	if oldOwner.IsPublic() != target.IsPublic() {
		return organisaatio.Organisaatio{}, serrors.InvariantViolated("transfer crosses the public/private boundary")
	}
	if err := s.vetPaosParticipation(ctx, unit); err != nil {
		return organisaatio.Organisaatio{}, err
	}
	return oldOwner, nil
}

func (s *SiirtoService) vetPaosParticipation(ctx context.Context, unit toimipaikka.Toimipaikka) error {
	intents, err := s.intents.ToimipaikkaIntents(ctx, unit.ID())
	if err != nil {
		return err
	}
	for _, t := range intents {
		if t.VoimassaKytkin {
			return serrors.InvariantViolated("unit %d participates in a paos arrangement", unit.ID())
		}
	}
	return nil
}

// stripUnitMemberships removes every role assignment scoped to the unit
// and drops the affected principals' memoized visibility.
func (s *SiirtoService) stripUnitMemberships(ctx context.Context, unitOID string) error {
	if unitOID == "" {
		return nil
	}
	principals, err := s.kayttajat.RemoveOikeudetByOID(ctx, unitOID)
	if err != nil {
		return err
	}
	for _, oid := range principals {
		s.index.InvalidatePrincipal(ctx, oid)
	}
	return nil
}

// transferChildren re-records the source unit's active children under
// the target operator: the old decision ends today and a mirror decision
// with a placement in the destination unit starts today, guardian links
// and active payments following along.
func (s *SiirtoService) transferChildren(ctx context.Context, source, dest toimipaikka.Toimipaikka, target organisaatio.Organisaatio, pvm time.Time) error {
	suhteet, err := s.paatokset.ListSuhteetByToimipaikka(ctx, source.ID())
	if err != nil {
		return err
	}

	// One new child per person even when several decisions are active.
	newChildren := make(map[int64]lapsi.Lapsi)
	for _, suhde := range suhteet {
		if !suhde.ActiveOn(pvm) {
			continue
		}
		p, err := s.paatokset.GetByID(ctx, suhde.PaatosID)
		if err != nil {
			return err
		}
		if !p.ActiveOn(pvm) {
			continue
		}
		old, err := s.lapset.GetByIDForUpdate(ctx, p.LapsiID)
		if err != nil {
			return err
		}
		if old.IsPaos() {
			return serrors.InvariantViolated("unit %d hosts shared-custody children", source.ID())
		}

		moved, ok := newChildren[old.HenkiloID()]
		if !ok {
			moved, err = s.adoptChild(ctx, old, target, dest)
			if err != nil {
				return err
			}
			newChildren[old.HenkiloID()] = moved
		}
		if err := s.mirrorDecision(ctx, p, suhde, moved, target, dest, pvm); err != nil {
			return err
		}
	}
	return nil
}

// adoptChild finds or creates the person's child record under the
// target and carries over guardian links and active payments.
func (s *SiirtoService) adoptChild(ctx context.Context, old lapsi.Lapsi, target organisaatio.Organisaatio, dest toimipaikka.Toimipaikka) (lapsi.Lapsi, error) {
	moved, err := s.lapset.GetOrdinary(ctx, old.HenkiloID(), target.ID())
	if errors.Is(err, lapsi.ErrNotFound) {
		moved, err = s.lapset.Create(ctx, lapsi.NewOrdinary(old.HenkiloID(), target.ID(), old.Lahdejarjestelma(), ""))
		if err != nil {
			return lapsi.Lapsi{}, err
		}
		grants := ordinaryScopes(target.OID())
		ref := acl.Ref{ContentType: lapsi.ContentType, ObjectID: moved.ID()}
		if err := s.index.Apply(ctx, ref, acl.Projection{Domains: vakaDomains, Grants: grants}); err != nil {
			return lapsi.Lapsi{}, err
		}
		if err := s.persons.GrantScopes(ctx, moved.HenkiloID(), vakaDomains, grants); err != nil {
			return lapsi.Lapsi{}, err
		}
		if err := s.record(ctx, modelLapsi, moved.ID(), moved.ID(), changefeed.Created); err != nil {
			return lapsi.Lapsi{}, err
		}
	} else if err != nil {
		return lapsi.Lapsi{}, err
	}

	if err := s.migrateGuardians(ctx, old, moved, target, dest); err != nil {
		return lapsi.Lapsi{}, err
	}
	return moved, nil
}

// migrateGuardians copies guardian links to the new child, OR-ing the
// voimassa flag on collision, then mirrors every active payment onto
// the new links and ends the old one.
func (s *SiirtoService) migrateGuardians(ctx context.Context, old, moved lapsi.Lapsi, target organisaatio.Organisaatio, dest toimipaikka.Toimipaikka) error {
	links, err := s.maksut.ListHuoltajuussuhteetByLapsi(ctx, old.ID())
	if err != nil {
		return err
	}
	grants := withUnitScopes(ordinaryScopes(target.OID()), []string{dest.OID()}, false)

	linkMap := make(map[int64]int64, len(links))
	for _, link := range links {
		migrated, err := s.maksut.UpsertHuoltajuussuhde(ctx, maksutieto.Huoltajuussuhde{
			LapsiID:           moved.ID(),
			HuoltajaHenkiloID: link.HuoltajaHenkiloID,
			VoimassaKytkin:    link.VoimassaKytkin,
		})
		if err != nil {
			return err
		}
		linkMap[link.ID] = migrated.ID
		ref := acl.Ref{ContentType: maksutieto.ContentTypeHuoltajuussuhde, ObjectID: migrated.ID}
		err = s.index.Apply(ctx, ref, acl.Projection{Domains: paymentDomains, Grants: grants})
		if err != nil {
			return err
		}
		if err := s.persons.GrantScopes(ctx, link.HuoltajaHenkiloID, paymentDomains, grants); err != nil {
			return err
		}
	}

	pvm := transferDate()
	maksut, err := s.maksut.ListByLapsi(ctx, old.ID())
	if err != nil {
		return err
	}
	for _, m := range maksut {
		if !m.ActiveOn(pvm) {
			continue
		}
		newLinks := make([]int64, 0, len(m.HuoltajuussuhdeIDs))
		for _, id := range m.HuoltajuussuhdeIDs {
			if mapped, ok := linkMap[id]; ok {
				newLinks = append(newLinks, mapped)
			}
		}
		if err := s.maksut.End(ctx, m.ID, pvm); err != nil {
			return err
		}
		if err := s.record(ctx, modelMaksutieto, m.ID, old.ID(), changefeed.Modified); err != nil {
			return err
		}
		mirrored, err := s.maksut.Create(ctx, maksutieto.Maksutieto{
			MaksunPerusteKoodi: m.MaksunPerusteKoodi,
			PerheenKoko:        m.PerheenKoko,
			Asiakasmaksu:       m.Asiakasmaksu,
			PalvelusetelinArvo: m.PalvelusetelinArvo,
			AlkamisPvm:         pvm,
			PaattymisPvm:       m.PaattymisPvm,
			Lahdejarjestelma:   m.Lahdejarjestelma,
			HuoltajuussuhdeIDs: newLinks,
		})
		if err != nil {
			return err
		}
		ref := acl.Ref{ContentType: maksutieto.ContentType, ObjectID: mirrored.ID}
		err = s.index.Apply(ctx, ref, acl.Projection{Domains: paymentDomains, Grants: grants})
		if err != nil {
			return err
		}
		if err := s.record(ctx, modelMaksutieto, mirrored.ID, moved.ID(), changefeed.Created); err != nil {
			return err
		}
	}
	return nil
}

// mirrorDecision ends the old decision today and re-creates it with a
// placement in the destination unit under the new child.
func (s *SiirtoService) mirrorDecision(ctx context.Context, p paatos.Varhaiskasvatuspaatos, suhde paatos.Varhaiskasvatussuhde, moved lapsi.Lapsi, target organisaatio.Organisaatio, dest toimipaikka.Toimipaikka, pvm time.Time) error {
	if err := s.paatokset.End(ctx, p.ID, pvm); err != nil {
		return err
	}
	if err := s.record(ctx, modelPaatos, p.ID, p.LapsiID, changefeed.Modified); err != nil {
		return err
	}
	if err := s.paatokset.EndSuhde(ctx, suhde.ID, pvm); err != nil {
		return err
	}
	if err := s.record(ctx, modelSuhde, suhde.ID, p.LapsiID, changefeed.Modified); err != nil {
		return err
	}

	mirrored, err := s.paatokset.Create(ctx, paatos.Varhaiskasvatuspaatos{
		LapsiID:             moved.ID(),
		Jarjestamismuoto:    p.Jarjestamismuoto,
		TuntimaaraViikossa:  p.TuntimaaraViikossa,
		VuorohoitoKytkin:    p.VuorohoitoKytkin,
		PaivittainenKytkin:  p.PaivittainenKytkin,
		KokopaivainenKytkin: p.KokopaivainenKytkin,
		HakemusPvm:          p.HakemusPvm,
		AlkamisPvm:          pvm,
		PaattymisPvm:        p.PaattymisPvm,
		Lahdejarjestelma:    p.Lahdejarjestelma,
	})
	if err != nil {
		return err
	}
	newSuhde, err := s.paatokset.CreateSuhde(ctx, paatos.Varhaiskasvatussuhde{
		PaatosID:         mirrored.ID,
		ToimipaikkaID:    dest.ID(),
		AlkamisPvm:       pvm,
		PaattymisPvm:     suhde.PaattymisPvm,
		Lahdejarjestelma: suhde.Lahdejarjestelma,
	})
	if err != nil {
		return err
	}

	grants := withUnitScopes(ordinaryScopes(target.OID()), []string{dest.OID()}, false)
	err = s.index.Apply(ctx, acl.Ref{ContentType: paatos.ContentType, ObjectID: mirrored.ID},
		acl.Projection{Domains: vakaDomains, Grants: grants})
	if err != nil {
		return err
	}
	err = s.index.Apply(ctx, acl.Ref{ContentType: paatos.ContentTypeSuhde, ObjectID: newSuhde.ID},
		acl.Projection{Domains: vakaDomains, Grants: grants})
	if err != nil {
		return err
	}
	if err := s.record(ctx, modelPaatos, mirrored.ID, moved.ID(), changefeed.Created); err != nil {
		return err
	}
	return s.record(ctx, modelSuhde, newSuhde.ID, moved.ID(), changefeed.Created)
}

func (s *SiirtoService) record(ctx context.Context, model string, id, lapsiID int64, ht changefeed.HistoryType) error {
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

// transferDate is the effective date of a move: today at midnight UTC.
func transferDate() time.Time {
	return time.Now().UTC().Truncate(24 * time.Hour)
}

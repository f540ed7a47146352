package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/eventbus"
	"github.com/iota-uz/varda/pkg/serrors"
)

// AgreementReprojector rewrites permissions of every child, decision,
// placement and payment under the (arranger, producer) pair. Implemented
// by the childcare module; runs inside the caller's transaction.
type AgreementReprojector interface {
	ReprojectAgreement(ctx context.Context, jarjestajaID, tuottajaID int64) error
}

// AgreementChanged is published after an activation flip or recording
// party rotation commits its row changes.
type AgreementChanged struct {
	JarjestajaID int64
	TuottajaID   int64
	Voimassa     bool
	TallentajaID int64
}

type AddPaosToimintaDTO struct {
	OmaOrganisaatioOID string `validate:"required"`
	// Exactly one of the two targets is set, fixing the direction.
	PaosOrganisaatioOID string
	PaosToimipaikkaID   int64
}

// PaosService maintains shared-custody agreements: one-sided intents,
// the mirror activation flag, and the recording party.
type PaosService struct {
	repo          paos.Repository
	organisaatiot *OrganisaatioService
	toimipaikat   toimipaikka.Repository
	reprojector   AgreementReprojector
	bus           eventbus.EventBus
	log           *logrus.Entry
}

func NewPaosService(
	repo paos.Repository,
	organisaatiot *OrganisaatioService,
	toimipaikat toimipaikka.Repository,
	reprojector AgreementReprojector,
	bus eventbus.EventBus,
	log *logrus.Logger,
) *PaosService {
	return &PaosService{
		repo:          repo,
		organisaatiot: organisaatiot,
		toimipaikat:   toimipaikat,
		reprojector:   reprojector,
		bus:           bus,
		log:           log.WithField("component", "paos"),
	}
}

// AddToiminta declares one side's intent. When the declaration completes
// a two-sided agreement the mirror flag flips to active and permissions
// of the shared entities are reprojected in the same transaction.
func (s *PaosService) AddToiminta(ctx context.Context, dto AddPaosToimintaDTO) (paos.Toiminta, error) {
	if err := validate.Struct(dto); err != nil {
		return paos.Toiminta{}, serrors.InvariantViolated("invalid paos toiminta: %v", err)
	}
	if (dto.PaosOrganisaatioOID == "") == (dto.PaosToimipaikkaID == 0) {
		return paos.Toiminta{}, serrors.InvariantViolated("paos toiminta must name exactly one of organisaatio or toimipaikka")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (paos.Toiminta, error) {
		oma, err := s.organisaatiot.GetByOID(txCtx, dto.OmaOrganisaatioOID)
		if err != nil {
			return paos.Toiminta{}, err
		}

		var jarjestajaID, tuottajaID int64
		intent := paos.Toiminta{
			OmaOrganisaatioID: oma.ID(),
			VoimassaKytkin:    true,
			AlkamisPvm:        today(),
		}
		if dto.PaosToimipaikkaID != 0 {
			// Arranging side: a public-sector operator names the
			// producer's unit.
			if !oma.IsPublic() {
				return paos.Toiminta{}, serrors.InvariantViolated("paos arranger must be a public-sector operator")
			}
			unit, err := s.toimipaikat.GetByID(txCtx, dto.PaosToimipaikkaID)
			if err != nil {
				return paos.Toiminta{}, err
			}
			intent.PaosToimipaikkaID = unit.ID()
			jarjestajaID, tuottajaID = oma.ID(), unit.OrganisaatioID()
		} else {
			// Producing side names the arranging operator.
			counterpart, err := s.organisaatiot.GetByOID(txCtx, dto.PaosOrganisaatioOID)
			if err != nil {
				return paos.Toiminta{}, err
			}
			intent.PaosOrganisaatioID = counterpart.ID()
			jarjestajaID, tuottajaID = counterpart.ID(), oma.ID()
		}
		if jarjestajaID == tuottajaID {
			return paos.Toiminta{}, serrors.InvariantViolated("paos arranger and producer must differ")
		}

		created, err := s.repo.CreateToiminta(txCtx, intent)
		if err != nil {
			return paos.Toiminta{}, err
		}
		if err := s.evaluatePair(txCtx, jarjestajaID, tuottajaID); err != nil {
			return paos.Toiminta{}, err
		}
		return created, nil
	})
}

// WithdrawToiminta ends one side's intent. When the pair loses its last
// intent in either direction the agreement deactivates.
func (s *PaosService) WithdrawToiminta(ctx context.Context, toimintaID int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		intent, err := s.repo.GetToiminta(txCtx, toimintaID)
		if err != nil {
			return err
		}
		if !intent.VoimassaKytkin {
			return nil
		}
		if err := s.repo.EndToiminta(txCtx, intent.ID, today()); err != nil {
			return err
		}

		jarjestajaID, tuottajaID, err := s.pairOf(txCtx, intent)
		if err != nil {
			return err
		}
		return s.evaluatePair(txCtx, jarjestajaID, tuottajaID)
	})
}

// RotateTallentaja atomically moves the recording party of an active
// agreement. Rotating to the current recording party is a no-op.
func (s *PaosService) RotateTallentaja(ctx context.Context, jarjestajaID, tuottajaID, tallentajaID int64) error {
	if tallentajaID != jarjestajaID && tallentajaID != tuottajaID {
		return serrors.InvariantViolated("recording party must be one side of the agreement")
	}
	return composables.InTx(ctx, func(txCtx context.Context) error {
		oikeus, err := s.repo.GetOikeusForUpdate(txCtx, jarjestajaID, tuottajaID)
		if err != nil {
			return err
		}
		if oikeus.TallentajaID == tallentajaID {
			return nil
		}
		if err := s.repo.SetTallentaja(txCtx, oikeus.ID, tallentajaID); err != nil {
			return err
		}
		if err := s.reprojector.ReprojectAgreement(txCtx, jarjestajaID, tuottajaID); err != nil {
			return err
		}
		s.log.WithFields(logrus.Fields{
			"jarjestaja": jarjestajaID,
			"tuottaja":   tuottajaID,
			"tallentaja": tallentajaID,
		}).Info("paos recording party rotated")
		s.bus.Publish(AgreementChanged{
			JarjestajaID: jarjestajaID,
			TuottajaID:   tuottajaID,
			Voimassa:     oikeus.VoimassaKytkin,
			TallentajaID: tallentajaID,
		})
		return nil
	})
}

// Oikeus returns the mirror row of the ordered pair without locking it.
func (s *PaosService) Oikeus(ctx context.Context, jarjestajaID, tuottajaID int64) (paos.Oikeus, error) {
	return s.repo.GetOikeusForUpdate(ctx, jarjestajaID, tuottajaID)
}

// evaluatePair flips the mirror flag when the two-sided condition
// changes, creating the mirror row on first activation. Flips that match
// the stored state are no-ops.
func (s *PaosService) evaluatePair(ctx context.Context, jarjestajaID, tuottajaID int64) error {
	arranger, err := s.repo.ArrangerIntents(ctx, jarjestajaID, tuottajaID)
	if err != nil {
		return err
	}
	producer, err := s.repo.ProducerIntents(ctx, jarjestajaID, tuottajaID)
	if err != nil {
		return err
	}
	shouldBeActive := len(arranger) > 0 && len(producer) > 0

	oikeus, err := s.repo.GetOikeusForUpdate(ctx, jarjestajaID, tuottajaID)
	if err != nil {
		if !errors.Is(err, paos.ErrOikeusNotFound) {
			return err
		}
		if !shouldBeActive {
			return nil
		}
		// First activation: the arranging side records by default.
		oikeus, err = s.repo.CreateOikeus(ctx, paos.Oikeus{
			JarjestajaID:   jarjestajaID,
			TuottajaID:     tuottajaID,
			VoimassaKytkin: true,
			TallentajaID:   jarjestajaID,
		})
		if err != nil {
			return err
		}
		return s.announce(ctx, oikeus)
	}

	if oikeus.VoimassaKytkin == shouldBeActive {
		return nil
	}
	if err := s.repo.SetVoimassa(ctx, oikeus.ID, shouldBeActive); err != nil {
		return err
	}
	oikeus.VoimassaKytkin = shouldBeActive
	return s.announce(ctx, oikeus)
}

func (s *PaosService) announce(ctx context.Context, oikeus paos.Oikeus) error {
	if err := s.reprojector.ReprojectAgreement(ctx, oikeus.JarjestajaID, oikeus.TuottajaID); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"jarjestaja": oikeus.JarjestajaID,
		"tuottaja":   oikeus.TuottajaID,
		"voimassa":   oikeus.VoimassaKytkin,
	}).Info("paos agreement state changed")
	s.bus.Publish(AgreementChanged{
		JarjestajaID: oikeus.JarjestajaID,
		TuottajaID:   oikeus.TuottajaID,
		Voimassa:     oikeus.VoimassaKytkin,
		TallentajaID: oikeus.TallentajaID,
	})
	return nil
}

func (s *PaosService) pairOf(ctx context.Context, intent paos.Toiminta) (int64, int64, error) {
	if intent.IsArrangerSide() {
		unit, err := s.toimipaikat.GetByID(ctx, intent.PaosToimipaikkaID)
		if err != nil {
			return 0, 0, err
		}
		return intent.OmaOrganisaatioID, unit.OrganisaatioID(), nil
	}
	return intent.PaosOrganisaatioID, intent.OmaOrganisaatioID, nil
}

// ParticipatesInPaos reports whether any active intent names the unit;
// such units may not be migrated.
func (s *PaosService) ParticipatesInPaos(ctx context.Context, unitID int64) (bool, error) {
	intents, err := s.repo.ToimipaikkaIntents(ctx, unitID)
	if err != nil {
		return false, err
	}
	return len(intents) > 0, nil
}

// PublicBoundaryCrossed reports whether moving a unit between the two
// operators would cross the public/private sector boundary.
func PublicBoundaryCrossed(from, to organisaatio.Organisaatio) bool {
	return from.IsPublic() != to.IsPublic()
}

func today() time.Time {
	return time.Now().Truncate(24 * time.Hour)
}

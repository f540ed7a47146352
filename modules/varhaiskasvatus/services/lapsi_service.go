package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	henkiloaggregate "github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

var validate = validator.New()

// Model names of the change record stream.
const (
	modelLapsi           = "Lapsi"
	modelPaatos          = "Varhaiskasvatuspaatos"
	modelSuhde           = "Varhaiskasvatussuhde"
	modelMaksutieto      = "Maksutieto"
	modelHuoltajuussuhde = "Huoltajuussuhde"
)

// OrganisaatioLookup is the slice of the topology store the childcare
// module reads operators through.
type OrganisaatioLookup interface {
	GetByID(ctx context.Context, id int64) (organisaatio.Organisaatio, error)
	GetByOID(ctx context.Context, oid string) (organisaatio.Organisaatio, error)
}

// ToimipaikkaLookup resolves units for placement validation and scope
// derivation.
type ToimipaikkaLookup interface {
	GetByID(ctx context.Context, id int64) (toimipaikka.Toimipaikka, error)
}

// OikeusLookup reads and locks the shared-custody mirror row.
type OikeusLookup interface {
	GetOikeusForUpdate(ctx context.Context, jarjestajaID, tuottajaID int64) (paos.Oikeus, error)
}

// PersonResolver is the person store seen from this module: dedup
// resolution plus read-through scope accumulation.
type PersonResolver interface {
	FindOrCreate(ctx context.Context, hetu, oid string) (henkiloaggregate.Henkilo, error)
	GrantScopes(ctx context.Context, henkiloID int64, domains []permission.Domain, grants []acl.ScopeGrant) error
}

type CreateLapsiDTO struct {
	Hetu       string
	HenkiloOID string
	// Ordinary shape.
	VakatoimijaOID string
	// PAOS shape.
	OmaOrganisaatioOID  string
	PaosOrganisaatioOID string

	Lahdejarjestelma string `validate:"required"`
	Tunniste         string
}

// LapsiService owns child records.
type LapsiService struct {
	repo     lapsi.Repository
	orgs     OrganisaatioLookup
	oikeudet OikeusLookup
	persons  PersonResolver
	index    *acl.Index
	feed     changefeed.Publisher
	log      *logrus.Entry
}

func NewLapsiService(
	repo lapsi.Repository,
	orgs OrganisaatioLookup,
	oikeudet OikeusLookup,
	persons PersonResolver,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *LapsiService {
	return &LapsiService{
		repo:     repo,
		orgs:     orgs,
		oikeudet: oikeudet,
		persons:  persons,
		index:    index,
		feed:     feed,
		log:      log.WithField("component", "lapsi"),
	}
}

// Create binds a person to an operator, or to an arranger/producer pair
// under an active shared-custody agreement. Creating the same binding
// twice returns the stored record.
func (s *LapsiService) Create(ctx context.Context, dto CreateLapsiDTO) (lapsi.Lapsi, error) {
	if err := validate.Struct(dto); err != nil {
		return lapsi.Lapsi{}, serrors.InvariantViolated("invalid lapsi: %v", err)
	}
	ordinary := dto.VakatoimijaOID != ""
	paosShape := dto.OmaOrganisaatioOID != "" && dto.PaosOrganisaatioOID != ""
	if ordinary == paosShape {
		return lapsi.Lapsi{}, serrors.InvariantViolated("lapsi must name either a vakatoimija or an arranger/producer pair")
	}
	if paosShape && dto.OmaOrganisaatioOID == dto.PaosOrganisaatioOID {
		return lapsi.Lapsi{}, serrors.InvariantViolated("paos arranger and producer must differ")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (lapsi.Lapsi, error) {
		person, err := s.persons.FindOrCreate(txCtx, dto.Hetu, dto.HenkiloOID)
		if err != nil {
			return lapsi.Lapsi{}, err
		}
		if ordinary {
			return s.createOrdinary(txCtx, person.ID(), dto)
		}
		return s.createPaos(txCtx, person.ID(), dto)
	})
}

func (s *LapsiService) createOrdinary(ctx context.Context, henkiloID int64, dto CreateLapsiDTO) (lapsi.Lapsi, error) {
	owner, err := s.orgs.GetByOID(ctx, dto.VakatoimijaOID)
	if err != nil {
		return lapsi.Lapsi{}, err
	}

	existing, err := s.repo.GetOrdinary(ctx, henkiloID, owner.ID())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, lapsi.ErrNotFound) {
		return lapsi.Lapsi{}, err
	}

	created, err := s.repo.Create(ctx, lapsi.NewOrdinary(henkiloID, owner.ID(), dto.Lahdejarjestelma, dto.Tunniste))
	if err != nil {
		return lapsi.Lapsi{}, err
	}
	grants := ordinaryScopes(owner.OID())
	if err := s.finishCreate(ctx, created, grants); err != nil {
		return lapsi.Lapsi{}, err
	}
	return created, nil
}

func (s *LapsiService) createPaos(ctx context.Context, henkiloID int64, dto CreateLapsiDTO) (lapsi.Lapsi, error) {
	arranger, err := s.orgs.GetByOID(ctx, dto.OmaOrganisaatioOID)
	if err != nil {
		return lapsi.Lapsi{}, err
	}
	producer, err := s.orgs.GetByOID(ctx, dto.PaosOrganisaatioOID)
	if err != nil {
		return lapsi.Lapsi{}, err
	}

	oikeus, err := s.oikeudet.GetOikeusForUpdate(ctx, arranger.ID(), producer.ID())
	if err != nil {
		if serrors.IsKind(err, serrors.KindNotFound) {
			return lapsi.Lapsi{}, serrors.InvariantViolated("no paos agreement between %s and %s", arranger.OID(), producer.OID())
		}
		return lapsi.Lapsi{}, err
	}
	if !oikeus.VoimassaKytkin {
		return lapsi.Lapsi{}, serrors.InvariantViolated("paos agreement between %s and %s is not active", arranger.OID(), producer.OID())
	}

	existing, err := s.repo.GetPaos(ctx, henkiloID, arranger.ID(), producer.ID())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, lapsi.ErrNotFound) {
		return lapsi.Lapsi{}, err
	}

	created, err := s.repo.Create(ctx, lapsi.NewPaos(henkiloID, arranger.ID(), producer.ID(), dto.Lahdejarjestelma, dto.Tunniste))
	if err != nil {
		return lapsi.Lapsi{}, err
	}
	grants := paosScopes(arranger.OID(), producer.OID(), oikeus.TallentajaID == arranger.ID())
	if err := s.finishCreate(ctx, created, grants); err != nil {
		return lapsi.Lapsi{}, err
	}
	return created, nil
}

func (s *LapsiService) finishCreate(ctx context.Context, l lapsi.Lapsi, grants []acl.ScopeGrant) error {
	ref := acl.Ref{ContentType: lapsi.ContentType, ObjectID: l.ID()}
	if err := s.index.Apply(ctx, ref, acl.Projection{Domains: vakaDomains, Grants: grants}); err != nil {
		return err
	}
	if err := s.persons.GrantScopes(ctx, l.HenkiloID(), vakaDomains, grants); err != nil {
		return err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	_, err = s.feed.Record(ctx, tx, changefeed.Change{
		ModelName:         modelLapsi,
		InstanceID:        l.ID(),
		TriggerModelName:  modelLapsi,
		TriggerInstanceID: l.ID(),
		HistoryType:       changefeed.Created,
	})
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"id": l.ID(), "paos": l.IsPaos()}).Info("lapsi created")
	return nil
}

func (s *LapsiService) GetByID(ctx context.Context, id int64) (lapsi.Lapsi, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes a child record and its ACL rows.
func (s *LapsiService) Delete(ctx context.Context, id int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		l, err := s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.index.Drop(txCtx, acl.Ref{ContentType: lapsi.ContentType, ObjectID: l.ID()}); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, l.ID()); err != nil {
			return err
		}
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		_, err = s.feed.Record(txCtx, tx, changefeed.Change{
			ModelName:         modelLapsi,
			InstanceID:        l.ID(),
			TriggerModelName:  modelLapsi,
			TriggerInstanceID: l.ID(),
			HistoryType:       changefeed.Deleted,
		})
		return err
	})
}

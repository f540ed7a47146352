package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/henkilosto/domain/aggregates/tyontekija"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

type CreateTyontekijaDTO struct {
	Hetu              string
	HenkiloOID        string
	VakajarjestajaOID string `validate:"required"`
	Lahdejarjestelma  string `validate:"required"`
	Tunniste          string
}

// TyontekijaService owns employee records.
type TyontekijaService struct {
	repo    tyontekija.Repository
	orgs    OrganisaatioLookup
	persons PersonResolver
	index   *acl.Index
	feed    changefeed.Publisher
	log     *logrus.Entry
}

func NewTyontekijaService(
	repo tyontekija.Repository,
	orgs OrganisaatioLookup,
	persons PersonResolver,
	index *acl.Index,
	feed changefeed.Publisher,
	log *logrus.Logger,
) *TyontekijaService {
	return &TyontekijaService{
		repo:    repo,
		orgs:    orgs,
		persons: persons,
		index:   index,
		feed:    feed,
		log:     log.WithField("component", "tyontekija"),
	}
}

// Create binds a person to the employing operator. Creating the same
// binding twice returns the stored record.
func (s *TyontekijaService) Create(ctx context.Context, dto CreateTyontekijaDTO) (tyontekija.Tyontekija, error) {
	if err := validate.Struct(dto); err != nil {
		return tyontekija.Tyontekija{}, serrors.InvariantViolated("invalid tyontekija: %v", err)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (tyontekija.Tyontekija, error) {
		owner, err := s.orgs.GetByOID(txCtx, dto.VakajarjestajaOID)
		if err != nil {
			return tyontekija.Tyontekija{}, err
		}
		person, err := s.persons.FindOrCreate(txCtx, dto.Hetu, dto.HenkiloOID)
		if err != nil {
			return tyontekija.Tyontekija{}, err
		}

		existing, err := s.repo.GetByHenkilo(txCtx, person.ID(), owner.ID())
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, tyontekija.ErrNotFound) {
			return tyontekija.Tyontekija{}, err
		}

		created, err := s.repo.Create(txCtx, tyontekija.New(person.ID(), owner.ID(), dto.Lahdejarjestelma, dto.Tunniste))
		if err != nil {
			return tyontekija.Tyontekija{}, err
		}

		grants := operatorScopes(owner.OID())
		ref := acl.Ref{ContentType: tyontekija.ContentType, ObjectID: created.ID()}
		if err := s.index.Apply(txCtx, ref, acl.Projection{Domains: tyontekijaDomains, Grants: grants}); err != nil {
			return tyontekija.Tyontekija{}, err
		}
		if err := s.persons.GrantScopes(txCtx, person.ID(), tyontekijaDomains, grants); err != nil {
			return tyontekija.Tyontekija{}, err
		}

		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return tyontekija.Tyontekija{}, err
		}
		_, err = s.feed.Record(txCtx, tx, changefeed.Change{
			ModelName:         modelTyontekija,
			InstanceID:        created.ID(),
			TriggerModelName:  modelTyontekija,
			TriggerInstanceID: created.ID(),
			HistoryType:       changefeed.Created,
		})
		if err != nil {
			return tyontekija.Tyontekija{}, err
		}
		s.log.WithField("id", created.ID()).Info("tyontekija created")
		return created, nil
	})
}

func (s *TyontekijaService) GetByID(ctx context.Context, id int64) (tyontekija.Tyontekija, error) {
	return s.repo.GetByID(ctx, id)
}

// Delete removes an employee record and its ACL rows.
func (s *TyontekijaService) Delete(ctx context.Context, id int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		t, err := s.repo.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.index.Drop(txCtx, acl.Ref{ContentType: tyontekija.ContentType, ObjectID: t.ID()}); err != nil {
			return err
		}
		if err := s.repo.Delete(txCtx, t.ID()); err != nil {
			return err
		}
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		_, err = s.feed.Record(txCtx, tx, changefeed.Change{
			ModelName:         modelTyontekija,
			InstanceID:        t.ID(),
			TriggerModelName:  modelTyontekija,
			TriggerInstanceID: t.ID(),
			HistoryType:       changefeed.Deleted,
		})
		return err
	})
}

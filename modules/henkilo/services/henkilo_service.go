package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
	"github.com/iota-uz/varda/modules/henkilo/infrastructure/upstream"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// HetuEncryptor seals the national identifier before it reaches storage.
// The concrete cipher lives at the edge; the core only carries the
// ciphertext alongside the dedup hash.
type HetuEncryptor interface {
	Seal(hetu string) ([]byte, error)
}

// HenkiloService is the deduplicating person store. Lookups go hash
// first, then OID, then the upstream person registry.
type HenkiloService struct {
	repo      henkilo.Repository
	registry  upstream.HenkiloClient
	index     *acl.Index
	encryptor HetuEncryptor
	log       *logrus.Entry
}

func NewHenkiloService(
	repo henkilo.Repository,
	registry upstream.HenkiloClient,
	index *acl.Index,
	encryptor HetuEncryptor,
	log *logrus.Logger,
) *HenkiloService {
	return &HenkiloService{
		repo:      repo,
		registry:  registry,
		index:     index,
		encryptor: encryptor,
		log:       log.WithField("component", "henkilo"),
	}
}

// FindOrCreate resolves a person by national identifier or OID, creating
// the record from the upstream registry on first reference. Idempotent:
// repeated calls with the same identity return the same id.
func (s *HenkiloService) FindOrCreate(ctx context.Context, hetu, oid string) (henkilo.Henkilo, error) {
	if hetu == "" && oid == "" {
		return henkilo.Henkilo{}, serrors.InvariantViolated("henkilo requires a hetu or an oid")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (henkilo.Henkilo, error) {
		if hetu != "" {
			existing, err := s.repo.GetByHetuHash(txCtx, henkilo.HashHetu(hetu))
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, henkilo.ErrNotFound) {
				return henkilo.Henkilo{}, err
			}
		}
		if oid != "" {
			existing, err := s.repo.GetByOID(txCtx, oid)
			if err == nil {
				return existing, nil
			}
			if !errors.Is(err, henkilo.ErrNotFound) {
				return henkilo.Henkilo{}, err
			}
		}
		return s.createFromUpstream(txCtx, hetu, oid)
	})
}

func (s *HenkiloService) createFromUpstream(ctx context.Context, hetu, oid string) (henkilo.Henkilo, error) {
	var (
		payload upstream.HenkiloPayload
		err     error
	)
	if hetu != "" {
		payload, err = s.registry.FetchByHetu(ctx, hetu)
	} else {
		payload, err = s.registry.FetchByOID(ctx, oid)
	}
	if err != nil {
		return henkilo.Henkilo{}, err
	}

	var (
		hash       string
		ciphertext []byte
	)
	if hetu != "" {
		hash = henkilo.HashHetu(hetu)
		ciphertext, err = s.encryptor.Seal(hetu)
		if err != nil {
			return henkilo.Henkilo{}, err
		}
	}

	created, err := s.repo.Create(ctx, henkilo.New(
		payload.Oid, hash, ciphertext,
		payload.Etunimet, payload.Kutsumanimi, payload.Sukunimi,
		parseSyntymaPvm(payload.SyntymaPvm),
	))
	if err != nil {
		return henkilo.Henkilo{}, err
	}
	s.log.WithField("oid", created.OID()).Info("henkilo created")
	return created, nil
}

func (s *HenkiloService) GetByID(ctx context.Context, id int64) (henkilo.Henkilo, error) {
	return s.repo.GetByID(ctx, id)
}

// GrantScopes extends the person's read-through ACL: a person is visible
// to any group holding view on any entity referencing them. Grants only
// accumulate; they are dropped with the person record itself.
func (s *HenkiloService) GrantScopes(ctx context.Context, henkiloID int64, domains []permission.Domain, grants []acl.ScopeGrant) error {
	ref := acl.Ref{ContentType: henkilo.ContentType, ObjectID: henkiloID}
	readOnly := make([]acl.ScopeGrant, len(grants))
	for i, g := range grants {
		readOnly[i] = acl.ScopeGrant{OID: g.OID, ReadOnly: true}
	}
	return s.index.Extend(ctx, ref, acl.Projection{Domains: domains, Grants: readOnly})
}

func parseSyntymaPvm(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

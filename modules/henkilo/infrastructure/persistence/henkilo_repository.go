package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const uniqueViolation = "23505"

const (
	henkiloSelectQuery = `
		SELECT h.id, h.oid, h.hetu_hash, h.hetu_ciphertext, h.etunimet,
		       h.kutsumanimi, h.sukunimi, h.syntyma_pvm, h.turvakielto,
		       h.created_at, h.updated_at
		FROM henkilo h`

	henkiloInsertQuery = `
		INSERT INTO henkilo (oid, hetu_hash, hetu_ciphertext, etunimet,
		                     kutsumanimi, sukunimi, syntyma_pvm, turvakielto,
		                     created_at, updated_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	henkiloUpdateQuery = `
		UPDATE henkilo
		SET etunimet = $2, kutsumanimi = $3, sukunimi = $4, syntyma_pvm = $5,
		    turvakielto = $6, updated_at = NOW()
		WHERE id = $1`

	// The identifier ciphertext never enters history; reporting needs only
	// the birth date and the non-disclosure flag.
	henkiloHistoryQuery = `
		INSERT INTO henkilo_history (id, oid, syntyma_pvm, turvakielto,
		                             history_date, history_type)
		SELECT id, oid, syntyma_pvm, turvakielto, transaction_timestamp(), $2
		FROM henkilo WHERE id = $1`
)

type HenkiloRepository struct{}

func NewHenkiloRepository() henkilo.Repository {
	return &HenkiloRepository{}
}

func (r *HenkiloRepository) GetByID(ctx context.Context, id int64) (henkilo.Henkilo, error) {
	return r.getOne(ctx, henkiloSelectQuery+" WHERE h.id = $1", id)
}

func (r *HenkiloRepository) GetByOID(ctx context.Context, oid string) (henkilo.Henkilo, error) {
	return r.getOne(ctx, henkiloSelectQuery+" WHERE h.oid = $1", strings.TrimSpace(oid))
}

func (r *HenkiloRepository) GetByHetuHash(ctx context.Context, hash string) (henkilo.Henkilo, error) {
	return r.getOne(ctx, henkiloSelectQuery+" WHERE h.hetu_hash = $1", hash)
}

func (r *HenkiloRepository) getOne(ctx context.Context, query string, arg any) (henkilo.Henkilo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return henkilo.Henkilo{}, err
	}

	var (
		id                              int64
		oid, hetuHash                   *string
		ciphertext                      []byte
		etunimet, kutsumanimi, sukunimi string
		syntymaPvm                      time.Time
		turvakielto                     bool
		createdAt, updatedAt            time.Time
	)
	err = tx.QueryRow(ctx, query, arg).Scan(
		&id, &oid, &hetuHash, &ciphertext, &etunimet, &kutsumanimi,
		&sukunimi, &syntymaPvm, &turvakielto, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return henkilo.Henkilo{}, henkilo.ErrNotFound
		}
		return henkilo.Henkilo{}, fmt.Errorf("get henkilo: %w", err)
	}
	return henkilo.Hydrate(
		id, deref(oid), deref(hetuHash), ciphertext, etunimet, kutsumanimi,
		sukunimi, syntymaPvm, turvakielto, createdAt, updatedAt,
	), nil
}

func (r *HenkiloRepository) Create(ctx context.Context, h henkilo.Henkilo) (henkilo.Henkilo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return henkilo.Henkilo{}, err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, henkiloInsertQuery,
		h.OID(), h.HetuHash(), h.HetuCiphertext(), h.Etunimet(),
		h.Kutsumanimi(), h.Sukunimi(), h.SyntymaPvm(), h.Turvakielto(),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent dedup race; surface the stored person.
			if h.HetuHash() != "" {
				if existing, getErr := r.GetByHetuHash(ctx, h.HetuHash()); getErr == nil {
					return existing, nil
				}
			}
			if h.OID() != "" {
				if existing, getErr := r.GetByOID(ctx, h.OID()); getErr == nil {
					return existing, nil
				}
			}
			return henkilo.Henkilo{}, serrors.InvariantViolated("henkilo uniqueness conflict")
		}
		return henkilo.Henkilo{}, fmt.Errorf("create henkilo: %w", err)
	}
	if _, err := tx.Exec(ctx, henkiloHistoryQuery, id, "+"); err != nil {
		return henkilo.Henkilo{}, fmt.Errorf("henkilo history: %w", err)
	}
	return henkilo.Hydrate(
		id, h.OID(), h.HetuHash(), h.HetuCiphertext(), h.Etunimet(),
		h.Kutsumanimi(), h.Sukunimi(), h.SyntymaPvm(), h.Turvakielto(),
		createdAt, updatedAt,
	), nil
}

func (r *HenkiloRepository) Update(ctx context.Context, h henkilo.Henkilo) (henkilo.Henkilo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return henkilo.Henkilo{}, err
	}
	if _, err := tx.Exec(ctx, henkiloUpdateQuery,
		h.ID(), h.Etunimet(), h.Kutsumanimi(), h.Sukunimi(), h.SyntymaPvm(), h.Turvakielto(),
	); err != nil {
		return henkilo.Henkilo{}, fmt.Errorf("update henkilo: %w", err)
	}
	if _, err := tx.Exec(ctx, henkiloHistoryQuery, h.ID(), "~"); err != nil {
		return henkilo.Henkilo{}, fmt.Errorf("henkilo history: %w", err)
	}
	return r.GetByID(ctx, h.ID())
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

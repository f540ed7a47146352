package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/pkg/composables"
)

// uniqueViolation is the postgres error code for a unique constraint hit.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	organisaatioSelectQuery = `
		SELECT o.id, o.oid, o.nimi, o.ytunnus, o.yritysmuoto, o.tyypit,
		       o.integraatio_organisaatio, o.alkamis_pvm, o.paattymis_pvm,
		       o.created_at, o.updated_at
		FROM organisaatio o`

	organisaatioInsertQuery = `
		INSERT INTO organisaatio (oid, nimi, ytunnus, yritysmuoto, tyypit,
		                          integraatio_organisaatio, alkamis_pvm, paattymis_pvm,
		                          created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	organisaatioUpdateQuery = `
		UPDATE organisaatio
		SET nimi = $2, ytunnus = $3, yritysmuoto = $4, tyypit = $5,
		    alkamis_pvm = $6, paattymis_pvm = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	organisaatioIntegraatiotQuery = `
		UPDATE organisaatio SET integraatio_organisaatio = $2, updated_at = NOW() WHERE id = $1`
)

type OrganisaatioRepository struct{}

func NewOrganisaatioRepository() organisaatio.Repository {
	return &OrganisaatioRepository{}
}

func (r *OrganisaatioRepository) GetByID(ctx context.Context, id int64) (organisaatio.Organisaatio, error) {
	return r.getOne(ctx, organisaatioSelectQuery+" WHERE o.id = $1", id)
}

func (r *OrganisaatioRepository) GetByOID(ctx context.Context, oid string) (organisaatio.Organisaatio, error) {
	return r.getOne(ctx, organisaatioSelectQuery+" WHERE o.oid = $1", strings.TrimSpace(oid))
}

func (r *OrganisaatioRepository) getOne(ctx context.Context, query string, arg any) (organisaatio.Organisaatio, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organisaatio.Organisaatio{}, err
	}

	var (
		id                              int64
		oid, nimi, ytunnus, yritysmuoto string
		tyypit, integraatiot            []string
		alkamisPvm                      time.Time
		paattymisPvm                    *time.Time
		createdAt, updatedAt            time.Time
	)
	err = tx.QueryRow(ctx, query, arg).Scan(
		&id, &oid, &nimi, &ytunnus, &yritysmuoto, &tyypit,
		&integraatiot, &alkamisPvm, &paattymisPvm, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organisaatio.Organisaatio{}, organisaatio.ErrNotFound
		}
		return organisaatio.Organisaatio{}, fmt.Errorf("get organisaatio: %w", err)
	}
	return organisaatio.Hydrate(
		id, oid, nimi, ytunnus, yritysmuoto, tyypit, integraatiot,
		alkamisPvm, paattymisPvm, createdAt, updatedAt,
	), nil
}

func (r *OrganisaatioRepository) Create(ctx context.Context, o organisaatio.Organisaatio) (organisaatio.Organisaatio, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organisaatio.Organisaatio{}, err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, organisaatioInsertQuery,
		o.OID(), o.Nimi(), o.Ytunnus(), o.Yritysmuoto(), o.Tyypit(),
		o.Integraatiot(), o.AlkamisPvm(), o.PaattymisPvm(),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Concurrent create of the same OID; the stored row wins.
			return r.GetByOID(ctx, o.OID())
		}
		return organisaatio.Organisaatio{}, fmt.Errorf("create organisaatio: %w", err)
	}
	return organisaatio.Hydrate(
		id, o.OID(), o.Nimi(), o.Ytunnus(), o.Yritysmuoto(), o.Tyypit(),
		o.Integraatiot(), o.AlkamisPvm(), o.PaattymisPvm(), createdAt, updatedAt,
	), nil
}

func (r *OrganisaatioRepository) Update(ctx context.Context, o organisaatio.Organisaatio) (organisaatio.Organisaatio, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return organisaatio.Organisaatio{}, err
	}
	var updatedAt time.Time
	err = tx.QueryRow(ctx, organisaatioUpdateQuery,
		o.ID(), o.Nimi(), o.Ytunnus(), o.Yritysmuoto(), o.Tyypit(),
		o.AlkamisPvm(), o.PaattymisPvm(),
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return organisaatio.Organisaatio{}, organisaatio.ErrNotFound
		}
		return organisaatio.Organisaatio{}, fmt.Errorf("update organisaatio: %w", err)
	}
	return r.GetByID(ctx, o.ID())
}

func (r *OrganisaatioRepository) ReplaceIntegraatiot(ctx context.Context, id int64, categories []string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, organisaatioIntegraatiotQuery, id, categories); err != nil {
		return fmt.Errorf("replace integraatiot: %w", err)
	}
	return nil
}

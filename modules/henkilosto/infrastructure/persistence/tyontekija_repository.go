// Package persistence implements the employee-module repositories over
// pgx. Every mutation writes a matching history row inside the same
// transaction; the reporting queries read only the history tables.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/varda/modules/henkilosto/domain/aggregates/tyontekija"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	tyontekijaSelectQuery = `
		SELECT t.id, t.henkilo_id, t.vakajarjestaja_id, t.lahdejarjestelma,
		       COALESCE(t.tunniste, ''), t.created_at, t.updated_at
		FROM tyontekija t`

	tyontekijaInsertQuery = `
		INSERT INTO tyontekija (henkilo_id, vakajarjestaja_id, lahdejarjestelma,
		                        tunniste, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at`

	tyontekijaDeleteQuery = `DELETE FROM tyontekija WHERE id = $1`

	tyontekijaHistoryQuery = `
		INSERT INTO tyontekija_history (id, henkilo_id, vakajarjestaja_id,
		                                lahdejarjestelma, tunniste,
		                                history_date, history_type)
		SELECT id, henkilo_id, vakajarjestaja_id, lahdejarjestelma, tunniste,
		       transaction_timestamp(), $2
		FROM tyontekija WHERE id = $1`

	tyontekijaHistoryDeleteQuery = `
		INSERT INTO tyontekija_history (id, henkilo_id, vakajarjestaja_id,
		                                lahdejarjestelma, tunniste,
		                                history_date, history_type)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), transaction_timestamp(), '-')`
)

type TyontekijaRepository struct{}

func NewTyontekijaRepository() tyontekija.Repository {
	return &TyontekijaRepository{}
}

func (r *TyontekijaRepository) GetByID(ctx context.Context, id int64) (tyontekija.Tyontekija, error) {
	return r.getOne(ctx, tyontekijaSelectQuery+" WHERE t.id = $1", id)
}

func (r *TyontekijaRepository) GetByIDForUpdate(ctx context.Context, id int64) (tyontekija.Tyontekija, error) {
	return r.getOne(ctx, tyontekijaSelectQuery+" WHERE t.id = $1 FOR UPDATE", id)
}

func (r *TyontekijaRepository) GetByHenkilo(ctx context.Context, henkiloID, vakajarjestajaID int64) (tyontekija.Tyontekija, error) {
	return r.getOne(ctx,
		tyontekijaSelectQuery+" WHERE t.henkilo_id = $1 AND t.vakajarjestaja_id = $2",
		henkiloID, vakajarjestajaID)
}

func (r *TyontekijaRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (tyontekija.Tyontekija, error) {
	return r.getOne(ctx,
		tyontekijaSelectQuery+" WHERE t.lahdejarjestelma = $1 AND t.tunniste = $2",
		lahdejarjestelma, tunniste)
}

func (r *TyontekijaRepository) getOne(ctx context.Context, query string, args ...any) (tyontekija.Tyontekija, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tyontekija.Tyontekija{}, err
	}

	var (
		id, henkiloID, vakajarjestajaID int64
		lahdejarjestelma, tunniste      string
		createdAt, updatedAt            time.Time
	)
	err = tx.QueryRow(ctx, query, args...).Scan(
		&id, &henkiloID, &vakajarjestajaID, &lahdejarjestelma, &tunniste,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tyontekija.Tyontekija{}, tyontekija.ErrNotFound
		}
		return tyontekija.Tyontekija{}, fmt.Errorf("get tyontekija: %w", err)
	}
	return tyontekija.Hydrate(id, henkiloID, vakajarjestajaID, lahdejarjestelma, tunniste, createdAt, updatedAt), nil
}

func (r *TyontekijaRepository) Create(ctx context.Context, t tyontekija.Tyontekija) (tyontekija.Tyontekija, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tyontekija.Tyontekija{}, err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, tyontekijaInsertQuery,
		t.HenkiloID(), t.VakajarjestajaID(), t.Lahdejarjestelma(), t.Tunniste(),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, t.Lahdejarjestelma(), t.Tunniste())
			if getErr == nil {
				return tyontekija.Tyontekija{}, serrors.ConflictDuplicateExternal(existing.ID())
			}
			return tyontekija.Tyontekija{}, serrors.InvariantViolated("tyontekija already exists for this binding")
		}
		return tyontekija.Tyontekija{}, fmt.Errorf("create tyontekija: %w", err)
	}
	if _, err := tx.Exec(ctx, tyontekijaHistoryQuery, id, "+"); err != nil {
		return tyontekija.Tyontekija{}, fmt.Errorf("tyontekija history: %w", err)
	}
	return tyontekija.Hydrate(
		id, t.HenkiloID(), t.VakajarjestajaID(), t.Lahdejarjestelma(), t.Tunniste(),
		createdAt, updatedAt,
	), nil
}

func (r *TyontekijaRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, tyontekijaHistoryDeleteQuery,
		t.ID(), t.HenkiloID(), t.VakajarjestajaID(), t.Lahdejarjestelma(), t.Tunniste(),
	); err != nil {
		return fmt.Errorf("tyontekija history: %w", err)
	}
	if _, err := tx.Exec(ctx, tyontekijaDeleteQuery, id); err != nil {
		return fmt.Errorf("delete tyontekija: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

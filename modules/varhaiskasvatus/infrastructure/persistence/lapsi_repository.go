package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/repo"
	"github.com/iota-uz/varda/pkg/serrors"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

const (
	lapsiSelectQuery = `
		SELECT l.id, l.henkilo_id, COALESCE(l.vakatoimija_id, 0),
		       COALESCE(l.oma_organisaatio_id, 0), COALESCE(l.paos_organisaatio_id, 0),
		       l.lahdejarjestelma, COALESCE(l.tunniste, ''), l.created_at, l.updated_at
		FROM lapsi l`

	lapsiInsertQuery = `
		INSERT INTO lapsi (henkilo_id, vakatoimija_id, oma_organisaatio_id,
		                   paos_organisaatio_id, lahdejarjestelma, tunniste,
		                   created_at, updated_at)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), NULLIF($4, 0), $5, NULLIF($6, ''), NOW(), NOW())
		RETURNING id, created_at, updated_at`

	lapsiDeleteQuery = `DELETE FROM lapsi WHERE id = $1`

	lapsiHistoryQuery = `
		INSERT INTO lapsi_history (id, henkilo_id, vakatoimija_id, oma_organisaatio_id,
		                           paos_organisaatio_id, lahdejarjestelma, tunniste,
		                           history_date, history_type)
		SELECT id, henkilo_id, vakatoimija_id, oma_organisaatio_id,
		       paos_organisaatio_id, lahdejarjestelma, tunniste,
		       transaction_timestamp(), $2
		FROM lapsi WHERE id = $1`

	lapsiHistoryDeleteQuery = `
		INSERT INTO lapsi_history (id, henkilo_id, vakatoimija_id, oma_organisaatio_id,
		                           paos_organisaatio_id, lahdejarjestelma, tunniste,
		                           history_date, history_type)
		VALUES ($1, $2, NULLIF($3, 0), NULLIF($4, 0), NULLIF($5, 0), $6, NULLIF($7, ''),
		        transaction_timestamp(), '-')`
)

type LapsiRepository struct{}

func NewLapsiRepository() lapsi.Repository {
	return &LapsiRepository{}
}

func (r *LapsiRepository) GetByID(ctx context.Context, id int64) (lapsi.Lapsi, error) {
	return r.getOne(ctx, lapsiSelectQuery+" WHERE l.id = $1", id)
}

func (r *LapsiRepository) GetByIDForUpdate(ctx context.Context, id int64) (lapsi.Lapsi, error) {
	return r.getOne(ctx, lapsiSelectQuery+" WHERE l.id = $1 FOR UPDATE", id)
}

func (r *LapsiRepository) GetOrdinary(ctx context.Context, henkiloID, vakatoimijaID int64) (lapsi.Lapsi, error) {
	return r.getOne(ctx,
		lapsiSelectQuery+" WHERE l.henkilo_id = $1 AND l.vakatoimija_id = $2",
		henkiloID, vakatoimijaID)
}

func (r *LapsiRepository) GetPaos(ctx context.Context, henkiloID, omaOrganisaatioID, paosOrganisaatioID int64) (lapsi.Lapsi, error) {
	return r.getOne(ctx,
		lapsiSelectQuery+" WHERE l.henkilo_id = $1 AND l.oma_organisaatio_id = $2 AND l.paos_organisaatio_id = $3",
		henkiloID, omaOrganisaatioID, paosOrganisaatioID)
}

func (r *LapsiRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (lapsi.Lapsi, error) {
	return r.getOne(ctx,
		lapsiSelectQuery+" WHERE l.lahdejarjestelma = $1 AND l.tunniste = $2",
		lahdejarjestelma, tunniste)
}

func (r *LapsiRepository) ListPaosByAgreement(ctx context.Context, omaOrganisaatioID, paosOrganisaatioID int64) ([]lapsi.Lapsi, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	query := repo.Join(lapsiSelectQuery,
		"WHERE l.oma_organisaatio_id = $1 AND l.paos_organisaatio_id = $2 ORDER BY l.id")
	rows, err := tx.Query(ctx, query, omaOrganisaatioID, paosOrganisaatioID)
	if err != nil {
		return nil, fmt.Errorf("list paos lapset: %w", err)
	}
	defer rows.Close()

	out := make([]lapsi.Lapsi, 0, 16)
	for rows.Next() {
		l, err := scanLapsi(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *LapsiRepository) getOne(ctx context.Context, query string, args ...any) (lapsi.Lapsi, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return lapsi.Lapsi{}, err
	}
	l, err := scanLapsi(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lapsi.Lapsi{}, lapsi.ErrNotFound
		}
		return lapsi.Lapsi{}, fmt.Errorf("get lapsi: %w", err)
	}
	return l, nil
}

func (r *LapsiRepository) Create(ctx context.Context, l lapsi.Lapsi) (lapsi.Lapsi, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return lapsi.Lapsi{}, err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, lapsiInsertQuery,
		l.HenkiloID(), l.VakatoimijaID(), l.OmaOrganisaatioID(),
		l.PaosOrganisaatioID(), l.Lahdejarjestelma(), l.Tunniste(),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, l.Lahdejarjestelma(), l.Tunniste())
			if getErr == nil {
				return lapsi.Lapsi{}, serrors.ConflictDuplicateExternal(existing.ID())
			}
			return lapsi.Lapsi{}, serrors.InvariantViolated("lapsi already exists for this binding")
		}
		return lapsi.Lapsi{}, fmt.Errorf("create lapsi: %w", err)
	}
	if _, err := tx.Exec(ctx, lapsiHistoryQuery, id, "+"); err != nil {
		return lapsi.Lapsi{}, fmt.Errorf("lapsi history: %w", err)
	}
	return lapsi.Hydrate(
		id, l.HenkiloID(), l.VakatoimijaID(), l.OmaOrganisaatioID(),
		l.PaosOrganisaatioID(), l.Lahdejarjestelma(), l.Tunniste(),
		createdAt, updatedAt,
	), nil
}

func (r *LapsiRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	l, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, lapsiHistoryDeleteQuery,
		l.ID(), l.HenkiloID(), l.VakatoimijaID(), l.OmaOrganisaatioID(),
		l.PaosOrganisaatioID(), l.Lahdejarjestelma(), l.Tunniste(),
	); err != nil {
		return fmt.Errorf("lapsi history: %w", err)
	}
	if _, err := tx.Exec(ctx, lapsiDeleteQuery, id); err != nil {
		return fmt.Errorf("delete lapsi: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLapsi(row rowScanner) (lapsi.Lapsi, error) {
	var (
		id, henkiloID, vakatoimijaID          int64
		omaOrganisaatioID, paosOrganisaatioID int64
		lahdejarjestelma, tunniste            string
		createdAt, updatedAt                  time.Time
	)
	err := row.Scan(
		&id, &henkiloID, &vakatoimijaID, &omaOrganisaatioID,
		&paosOrganisaatioID, &lahdejarjestelma, &tunniste,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return lapsi.Lapsi{}, err
	}
	return lapsi.Hydrate(
		id, henkiloID, vakatoimijaID, omaOrganisaatioID, paosOrganisaatioID,
		lahdejarjestelma, tunniste, createdAt, updatedAt,
	), nil
}

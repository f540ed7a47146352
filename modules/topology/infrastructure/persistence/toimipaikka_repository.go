package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	toimipaikkaSelectQuery = `
		SELECT t.id, t.organisaatio_id, t.oid, t.nimi, t.toimintamuoto,
		       t.jarjestamismuodot, t.hallinnointijarjestelma,
		       t.lahdejarjestelma, t.tunniste, t.alkamis_pvm, t.paattymis_pvm,
		       t.created_at, t.updated_at
		FROM toimipaikka t`

	toimipaikkaInsertQuery = `
		INSERT INTO toimipaikka (organisaatio_id, oid, nimi, toimintamuoto,
		                         jarjestamismuodot, hallinnointijarjestelma,
		                         lahdejarjestelma, tunniste, alkamis_pvm, paattymis_pvm,
		                         created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	toimipaikkaUpdateQuery = `
		UPDATE toimipaikka
		SET organisaatio_id = $2, nimi = $3, toimintamuoto = $4,
		    jarjestamismuodot = $5, alkamis_pvm = $6, paattymis_pvm = $7,
		    updated_at = NOW()
		WHERE id = $1`

	toimipaikkaHistoryQuery = `
		INSERT INTO toimipaikka_history (id, organisaatio_id, oid, nimi,
		                                 toimintamuoto, alkamis_pvm, paattymis_pvm,
		                                 history_date, history_type)
		SELECT id, organisaatio_id, oid, nimi, toimintamuoto, alkamis_pvm, paattymis_pvm,
		       transaction_timestamp(), $2
		FROM toimipaikka WHERE id = $1`

	painotusInsertQuery = `
		INSERT INTO toimipaikka_painotus (toimipaikka_id, kind, koodi, alkamis_pvm, paattymis_pvm)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	painotusListQuery = `
		SELECT id, toimipaikka_id, kind, koodi, alkamis_pvm, paattymis_pvm
		FROM toimipaikka_painotus
		WHERE toimipaikka_id = $1
		ORDER BY id`
)

type ToimipaikkaRepository struct{}

func NewToimipaikkaRepository() toimipaikka.Repository {
	return &ToimipaikkaRepository{}
}

func (r *ToimipaikkaRepository) GetByID(ctx context.Context, id int64) (toimipaikka.Toimipaikka, error) {
	return r.getOne(ctx, toimipaikkaSelectQuery+" WHERE t.id = $1", id)
}

func (r *ToimipaikkaRepository) GetByIDForUpdate(ctx context.Context, id int64) (toimipaikka.Toimipaikka, error) {
	return r.getOne(ctx, toimipaikkaSelectQuery+" WHERE t.id = $1 FOR UPDATE", id)
}

func (r *ToimipaikkaRepository) GetByOID(ctx context.Context, oid string) (toimipaikka.Toimipaikka, error) {
	return r.getOne(ctx, toimipaikkaSelectQuery+" WHERE t.oid = $1", strings.TrimSpace(oid))
}

func (r *ToimipaikkaRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (toimipaikka.Toimipaikka, error) {
	return r.getOne(ctx, toimipaikkaSelectQuery+" WHERE t.lahdejarjestelma = $1 AND t.tunniste = $2", lahdejarjestelma, tunniste)
}

func (r *ToimipaikkaRepository) getOne(ctx context.Context, query string, args ...any) (toimipaikka.Toimipaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return toimipaikka.Toimipaikka{}, err
	}
	t, err := scanToimipaikka(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return toimipaikka.Toimipaikka{}, toimipaikka.ErrNotFound
		}
		return toimipaikka.Toimipaikka{}, fmt.Errorf("get toimipaikka: %w", err)
	}
	return t, nil
}

func (r *ToimipaikkaRepository) ListByOrganisaatio(ctx context.Context, organisaatioID int64) ([]toimipaikka.Toimipaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, toimipaikkaSelectQuery+" WHERE t.organisaatio_id = $1 ORDER BY t.id", organisaatioID)
	if err != nil {
		return nil, fmt.Errorf("list toimipaikat: %w", err)
	}
	defer rows.Close()

	out := make([]toimipaikka.Toimipaikka, 0, 8)
	for rows.Next() {
		t, err := scanToimipaikka(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *ToimipaikkaRepository) Create(ctx context.Context, t toimipaikka.Toimipaikka) (toimipaikka.Toimipaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return toimipaikka.Toimipaikka{}, err
	}

	var (
		id                   int64
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, toimipaikkaInsertQuery,
		t.OrganisaatioID(), t.OID(), t.Nimi(), t.Toimintamuoto(),
		t.Jarjestamismuodot(), string(t.Hallinnointi()),
		t.Lahdejarjestelma(), t.Tunniste(), t.AlkamisPvm(), t.PaattymisPvm(),
	).Scan(&id, &createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, t.Lahdejarjestelma(), t.Tunniste())
			if getErr == nil {
				return toimipaikka.Toimipaikka{}, serrors.ConflictDuplicateExternal(existing.ID())
			}
			return toimipaikka.Toimipaikka{}, serrors.InvariantViolated("toimipaikka oid %s already exists", t.OID())
		}
		return toimipaikka.Toimipaikka{}, fmt.Errorf("create toimipaikka: %w", err)
	}
	if _, err := tx.Exec(ctx, toimipaikkaHistoryQuery, id, "+"); err != nil {
		return toimipaikka.Toimipaikka{}, fmt.Errorf("toimipaikka history: %w", err)
	}
	return toimipaikka.Hydrate(
		id, t.OrganisaatioID(), t.OID(), t.Nimi(), t.Toimintamuoto(),
		t.Jarjestamismuodot(), t.Hallinnointi(), t.Lahdejarjestelma(),
		t.Tunniste(), t.AlkamisPvm(), t.PaattymisPvm(), createdAt, updatedAt,
	), nil
}

func (r *ToimipaikkaRepository) Update(ctx context.Context, t toimipaikka.Toimipaikka) (toimipaikka.Toimipaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return toimipaikka.Toimipaikka{}, err
	}
	if _, err := tx.Exec(ctx, toimipaikkaUpdateQuery,
		t.ID(), t.OrganisaatioID(), t.Nimi(), t.Toimintamuoto(),
		t.Jarjestamismuodot(), t.AlkamisPvm(), t.PaattymisPvm(),
	); err != nil {
		return toimipaikka.Toimipaikka{}, fmt.Errorf("update toimipaikka: %w", err)
	}
	if _, err := tx.Exec(ctx, toimipaikkaHistoryQuery, t.ID(), "~"); err != nil {
		return toimipaikka.Toimipaikka{}, fmt.Errorf("toimipaikka history: %w", err)
	}
	return r.GetByID(ctx, t.ID())
}

func (r *ToimipaikkaRepository) CreatePainotus(ctx context.Context, p toimipaikka.Painotus) (toimipaikka.Painotus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return toimipaikka.Painotus{}, err
	}
	err = tx.QueryRow(ctx, painotusInsertQuery,
		p.ToimipaikkaID, p.Kind, p.Koodi, p.AlkamisPvm, p.PaattymisPvm,
	).Scan(&p.ID)
	if err != nil {
		return toimipaikka.Painotus{}, fmt.Errorf("create painotus: %w", err)
	}
	return p, nil
}

func (r *ToimipaikkaRepository) ListPainotukset(ctx context.Context, toimipaikkaID int64) ([]toimipaikka.Painotus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, painotusListQuery, toimipaikkaID)
	if err != nil {
		return nil, fmt.Errorf("list painotukset: %w", err)
	}
	defer rows.Close()

	out := make([]toimipaikka.Painotus, 0, 4)
	for rows.Next() {
		var p toimipaikka.Painotus
		if err := rows.Scan(&p.ID, &p.ToimipaikkaID, &p.Kind, &p.Koodi, &p.AlkamisPvm, &p.PaattymisPvm); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToimipaikka(row rowScanner) (toimipaikka.Toimipaikka, error) {
	var (
		id, organisaatioID   int64
		oid, tunniste        *string
		nimi, toimintamuoto  string
		jarjestamismuodot    []string
		hallinnointi         string
		lahdejarjestelma     string
		alkamisPvm           time.Time
		paattymisPvm         *time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&id, &organisaatioID, &oid, &nimi, &toimintamuoto,
		&jarjestamismuodot, &hallinnointi, &lahdejarjestelma, &tunniste,
		&alkamisPvm, &paattymisPvm, &createdAt, &updatedAt,
	)
	if err != nil {
		return toimipaikka.Toimipaikka{}, err
	}
	return toimipaikka.Hydrate(
		id, organisaatioID, deref(oid), nimi, toimintamuoto,
		jarjestamismuodot, toimipaikka.Hallinnointijarjestelma(hallinnointi),
		lahdejarjestelma, deref(tunniste), alkamisPvm, paattymisPvm,
		createdAt, updatedAt,
	), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

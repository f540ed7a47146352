package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/paatos"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	paatosSelectQuery = `
		SELECT p.id, p.lapsi_id, p.jarjestamismuoto, p.tuntimaara_viikossa,
		       p.vuorohoito_kytkin, p.paivittainen_kytkin, p.kokopaivainen_kytkin,
		       p.hakemus_pvm, p.alkamis_pvm, p.paattymis_pvm,
		       p.lahdejarjestelma, COALESCE(p.tunniste, '')
		FROM varhaiskasvatuspaatos p`

	paatosInsertQuery = `
		INSERT INTO varhaiskasvatuspaatos (lapsi_id, jarjestamismuoto, tuntimaara_viikossa,
		                                   vuorohoito_kytkin, paivittainen_kytkin,
		                                   kokopaivainen_kytkin, hakemus_pvm, alkamis_pvm,
		                                   paattymis_pvm, lahdejarjestelma, tunniste,
		                                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NOW(), NOW())
		RETURNING id`

	paatosEndQuery    = `UPDATE varhaiskasvatuspaatos SET paattymis_pvm = $2, updated_at = NOW() WHERE id = $1`
	paatosDeleteQuery = `DELETE FROM varhaiskasvatuspaatos WHERE id = $1`

	paatosHistoryQuery = `
		INSERT INTO varhaiskasvatuspaatos_history (id, lapsi_id, jarjestamismuoto,
		        tuntimaara_viikossa, vuorohoito_kytkin, hakemus_pvm, alkamis_pvm,
		        paattymis_pvm, history_date, history_type)
		SELECT id, lapsi_id, jarjestamismuoto, tuntimaara_viikossa, vuorohoito_kytkin,
		       hakemus_pvm, alkamis_pvm, paattymis_pvm, transaction_timestamp(), $2
		FROM varhaiskasvatuspaatos WHERE id = $1`

	suhdeSelectQuery = `
		SELECT s.id, s.varhaiskasvatuspaatos_id, s.toimipaikka_id,
		       s.alkamis_pvm, s.paattymis_pvm, s.lahdejarjestelma, COALESCE(s.tunniste, '')
		FROM varhaiskasvatussuhde s`

	suhdeInsertQuery = `
		INSERT INTO varhaiskasvatussuhde (varhaiskasvatuspaatos_id, toimipaikka_id,
		                                  alkamis_pvm, paattymis_pvm, lahdejarjestelma,
		                                  tunniste, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NOW(), NOW())
		RETURNING id`

	suhdeEndQuery    = `UPDATE varhaiskasvatussuhde SET paattymis_pvm = $2, updated_at = NOW() WHERE id = $1`
	suhdeDeleteQuery = `DELETE FROM varhaiskasvatussuhde WHERE id = $1`

	suhdeHistoryQuery = `
		INSERT INTO varhaiskasvatussuhde_history (id, varhaiskasvatuspaatos_id,
		        toimipaikka_id, alkamis_pvm, paattymis_pvm, history_date, history_type)
		SELECT id, varhaiskasvatuspaatos_id, toimipaikka_id, alkamis_pvm, paattymis_pvm,
		       transaction_timestamp(), $2
		FROM varhaiskasvatussuhde WHERE id = $1`
)

type PaatosRepository struct{}

func NewPaatosRepository() paatos.Repository {
	return &PaatosRepository{}
}

func (r *PaatosRepository) GetByID(ctx context.Context, id int64) (paatos.Varhaiskasvatuspaatos, error) {
	return r.getOne(ctx, paatosSelectQuery+" WHERE p.id = $1", id)
}

func (r *PaatosRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (paatos.Varhaiskasvatuspaatos, error) {
	return r.getOne(ctx, paatosSelectQuery+" WHERE p.lahdejarjestelma = $1 AND p.tunniste = $2", lahdejarjestelma, tunniste)
}

func (r *PaatosRepository) getOne(ctx context.Context, query string, args ...any) (paatos.Varhaiskasvatuspaatos, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paatos.Varhaiskasvatuspaatos{}, err
	}
	p, err := scanPaatos(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paatos.Varhaiskasvatuspaatos{}, paatos.ErrNotFound
		}
		return paatos.Varhaiskasvatuspaatos{}, fmt.Errorf("get varhaiskasvatuspaatos: %w", err)
	}
	return p, nil
}

func (r *PaatosRepository) ListByLapsi(ctx context.Context, lapsiID int64) ([]paatos.Varhaiskasvatuspaatos, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, paatosSelectQuery+" WHERE p.lapsi_id = $1 ORDER BY p.id", lapsiID)
	if err != nil {
		return nil, fmt.Errorf("list paatokset: %w", err)
	}
	defer rows.Close()

	out := make([]paatos.Varhaiskasvatuspaatos, 0, 4)
	for rows.Next() {
		p, err := scanPaatos(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PaatosRepository) Create(ctx context.Context, p paatos.Varhaiskasvatuspaatos) (paatos.Varhaiskasvatuspaatos, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paatos.Varhaiskasvatuspaatos{}, err
	}
	err = tx.QueryRow(ctx, paatosInsertQuery,
		p.LapsiID, p.Jarjestamismuoto, p.TuntimaaraViikossa,
		p.VuorohoitoKytkin, p.PaivittainenKytkin, p.KokopaivainenKytkin,
		p.HakemusPvm, p.AlkamisPvm, p.PaattymisPvm, p.Lahdejarjestelma, p.Tunniste,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, p.Lahdejarjestelma, p.Tunniste)
			if getErr == nil {
				return paatos.Varhaiskasvatuspaatos{}, serrors.ConflictDuplicateExternal(existing.ID)
			}
			return paatos.Varhaiskasvatuspaatos{}, serrors.InvariantViolated("varhaiskasvatuspaatos already exists")
		}
		return paatos.Varhaiskasvatuspaatos{}, fmt.Errorf("create varhaiskasvatuspaatos: %w", err)
	}
	if _, err := tx.Exec(ctx, paatosHistoryQuery, p.ID, "+"); err != nil {
		return paatos.Varhaiskasvatuspaatos{}, fmt.Errorf("paatos history: %w", err)
	}
	return p, nil
}

func (r *PaatosRepository) End(ctx context.Context, id int64, pvm time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, paatosEndQuery, id, pvm); err != nil {
		return fmt.Errorf("end varhaiskasvatuspaatos: %w", err)
	}
	if _, err := tx.Exec(ctx, paatosHistoryQuery, id, "~"); err != nil {
		return fmt.Errorf("paatos history: %w", err)
	}
	return nil
}

func (r *PaatosRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, paatosHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("paatos history: %w", err)
	}
	if _, err := tx.Exec(ctx, paatosDeleteQuery, id); err != nil {
		return fmt.Errorf("delete varhaiskasvatuspaatos: %w", err)
	}
	return nil
}

func (r *PaatosRepository) GetSuhde(ctx context.Context, id int64) (paatos.Varhaiskasvatussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paatos.Varhaiskasvatussuhde{}, err
	}
	s, err := scanSuhde(tx.QueryRow(ctx, suhdeSelectQuery+" WHERE s.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paatos.Varhaiskasvatussuhde{}, paatos.ErrSuhdeNotFound
		}
		return paatos.Varhaiskasvatussuhde{}, fmt.Errorf("get varhaiskasvatussuhde: %w", err)
	}
	return s, nil
}

func (r *PaatosRepository) ListSuhteetByPaatos(ctx context.Context, paatosID int64) ([]paatos.Varhaiskasvatussuhde, error) {
	return r.listSuhteet(ctx, suhdeSelectQuery+" WHERE s.varhaiskasvatuspaatos_id = $1 ORDER BY s.id", paatosID)
}

func (r *PaatosRepository) ListSuhteetByToimipaikka(ctx context.Context, toimipaikkaID int64) ([]paatos.Varhaiskasvatussuhde, error) {
	return r.listSuhteet(ctx, suhdeSelectQuery+" WHERE s.toimipaikka_id = $1 ORDER BY s.id", toimipaikkaID)
}

func (r *PaatosRepository) listSuhteet(ctx context.Context, query string, arg any) ([]paatos.Varhaiskasvatussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list suhteet: %w", err)
	}
	defer rows.Close()

	out := make([]paatos.Varhaiskasvatussuhde, 0, 4)
	for rows.Next() {
		s, err := scanSuhde(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PaatosRepository) CreateSuhde(ctx context.Context, s paatos.Varhaiskasvatussuhde) (paatos.Varhaiskasvatussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paatos.Varhaiskasvatussuhde{}, err
	}
	err = tx.QueryRow(ctx, suhdeInsertQuery,
		s.PaatosID, s.ToimipaikkaID, s.AlkamisPvm, s.PaattymisPvm,
		s.Lahdejarjestelma, s.Tunniste,
	).Scan(&s.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return paatos.Varhaiskasvatussuhde{}, serrors.InvariantViolated("varhaiskasvatussuhde already exists")
		}
		return paatos.Varhaiskasvatussuhde{}, fmt.Errorf("create varhaiskasvatussuhde: %w", err)
	}
	if _, err := tx.Exec(ctx, suhdeHistoryQuery, s.ID, "+"); err != nil {
		return paatos.Varhaiskasvatussuhde{}, fmt.Errorf("suhde history: %w", err)
	}
	return s, nil
}

func (r *PaatosRepository) EndSuhde(ctx context.Context, id int64, pvm time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, suhdeEndQuery, id, pvm); err != nil {
		return fmt.Errorf("end varhaiskasvatussuhde: %w", err)
	}
	if _, err := tx.Exec(ctx, suhdeHistoryQuery, id, "~"); err != nil {
		return fmt.Errorf("suhde history: %w", err)
	}
	return nil
}

func (r *PaatosRepository) DeleteSuhde(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, suhdeHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("suhde history: %w", err)
	}
	if _, err := tx.Exec(ctx, suhdeDeleteQuery, id); err != nil {
		return fmt.Errorf("delete varhaiskasvatussuhde: %w", err)
	}
	return nil
}

func scanPaatos(row rowScanner) (paatos.Varhaiskasvatuspaatos, error) {
	var (
		p          paatos.Varhaiskasvatuspaatos
		tuntimaara decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.LapsiID, &p.Jarjestamismuoto, &tuntimaara,
		&p.VuorohoitoKytkin, &p.PaivittainenKytkin, &p.KokopaivainenKytkin,
		&p.HakemusPvm, &p.AlkamisPvm, &p.PaattymisPvm,
		&p.Lahdejarjestelma, &p.Tunniste,
	)
	if err != nil {
		return paatos.Varhaiskasvatuspaatos{}, err
	}
	p.TuntimaaraViikossa = tuntimaara
	return p, nil
}

func scanSuhde(row rowScanner) (paatos.Varhaiskasvatussuhde, error) {
	var s paatos.Varhaiskasvatussuhde
	err := row.Scan(
		&s.ID, &s.PaatosID, &s.ToimipaikkaID, &s.AlkamisPvm, &s.PaattymisPvm,
		&s.Lahdejarjestelma, &s.Tunniste,
	)
	return s, err
}

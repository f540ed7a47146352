package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/modules/henkilosto/domain/entities/palvelussuhde"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	palvelussuhdeSelectQuery = `
		SELECT p.id, p.tyontekija_id, p.tyosuhde_koodi, p.tyoaika_koodi,
		       p.tutkinto_koodi, p.tyoaika_viikossa, p.alkamis_pvm, p.paattymis_pvm,
		       p.lahdejarjestelma, COALESCE(p.tunniste, '')
		FROM palvelussuhde p`

	palvelussuhdeInsertQuery = `
		INSERT INTO palvelussuhde (tyontekija_id, tyosuhde_koodi, tyoaika_koodi,
		                           tutkinto_koodi, tyoaika_viikossa, alkamis_pvm,
		                           paattymis_pvm, lahdejarjestelma, tunniste,
		                           created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NOW(), NOW())
		RETURNING id`

	palvelussuhdeEndQuery = `
		UPDATE palvelussuhde SET paattymis_pvm = $2, updated_at = NOW() WHERE id = $1`

	palvelussuhdeDeleteQuery = `DELETE FROM palvelussuhde WHERE id = $1`

	palvelussuhdeHistoryQuery = `
		INSERT INTO palvelussuhde_history (id, tyontekija_id, tyosuhde_koodi,
		                                   tyoaika_koodi, tutkinto_koodi,
		                                   tyoaika_viikossa, alkamis_pvm, paattymis_pvm,
		                                   lahdejarjestelma, tunniste,
		                                   history_date, history_type)
		SELECT id, tyontekija_id, tyosuhde_koodi, tyoaika_koodi, tutkinto_koodi,
		       tyoaika_viikossa, alkamis_pvm, paattymis_pvm, lahdejarjestelma, tunniste,
		       transaction_timestamp(), $2
		FROM palvelussuhde WHERE id = $1`

	tyoskentelypaikkaSelectQuery = `
		SELECT t.id, t.palvelussuhde_id, COALESCE(t.toimipaikka_id, 0),
		       t.kiertava_tyontekija_kytkin, t.tehtavanimike_koodi, t.kelpoisuus_kytkin,
		       t.alkamis_pvm, t.paattymis_pvm, t.lahdejarjestelma, COALESCE(t.tunniste, '')
		FROM tyoskentelypaikka t`

	tyoskentelypaikkaInsertQuery = `
		INSERT INTO tyoskentelypaikka (palvelussuhde_id, toimipaikka_id,
		                               kiertava_tyontekija_kytkin, tehtavanimike_koodi,
		                               kelpoisuus_kytkin, alkamis_pvm, paattymis_pvm,
		                               lahdejarjestelma, tunniste, created_at, updated_at)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NOW(), NOW())
		RETURNING id`

	tyoskentelypaikkaDeleteQuery = `DELETE FROM tyoskentelypaikka WHERE id = $1`

	tyoskentelypaikkaHistoryQuery = `
		INSERT INTO tyoskentelypaikka_history (id, palvelussuhde_id, toimipaikka_id,
		                                       kiertava_tyontekija_kytkin,
		                                       tehtavanimike_koodi, kelpoisuus_kytkin,
		                                       alkamis_pvm, paattymis_pvm,
		                                       lahdejarjestelma, tunniste,
		                                       history_date, history_type)
		SELECT id, palvelussuhde_id, toimipaikka_id, kiertava_tyontekija_kytkin,
		       tehtavanimike_koodi, kelpoisuus_kytkin, alkamis_pvm, paattymis_pvm,
		       lahdejarjestelma, tunniste, transaction_timestamp(), $2
		FROM tyoskentelypaikka WHERE id = $1`

	tyoskentelypaikatByNimikeQuery = `
		SELECT t.id, t.palvelussuhde_id, COALESCE(t.toimipaikka_id, 0),
		       t.kiertava_tyontekija_kytkin, t.tehtavanimike_koodi, t.kelpoisuus_kytkin,
		       t.alkamis_pvm, t.paattymis_pvm, t.lahdejarjestelma, COALESCE(t.tunniste, '')
		FROM tyoskentelypaikka t
		JOIN palvelussuhde p ON p.id = t.palvelussuhde_id
		WHERE p.tyontekija_id = $1 AND t.tehtavanimike_koodi = $2
		ORDER BY t.id`

	poissaoloSelectQuery = `
		SELECT p.id, p.palvelussuhde_id, p.alkamis_pvm, p.paattymis_pvm,
		       p.lahdejarjestelma, COALESCE(p.tunniste, '')
		FROM pidempi_poissaolo p`

	poissaoloInsertQuery = `
		INSERT INTO pidempi_poissaolo (palvelussuhde_id, alkamis_pvm, paattymis_pvm,
		                               lahdejarjestelma, tunniste, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		RETURNING id`

	poissaoloDeleteQuery = `DELETE FROM pidempi_poissaolo WHERE id = $1`

	poissaoloHistoryQuery = `
		INSERT INTO pidempi_poissaolo_history (id, palvelussuhde_id, alkamis_pvm,
		                                       paattymis_pvm, lahdejarjestelma, tunniste,
		                                       history_date, history_type)
		SELECT id, palvelussuhde_id, alkamis_pvm, paattymis_pvm, lahdejarjestelma, tunniste,
		       transaction_timestamp(), $2
		FROM pidempi_poissaolo WHERE id = $1`
)

type PalvelussuhdeRepository struct{}

func NewPalvelussuhdeRepository() palvelussuhde.Repository {
	return &PalvelussuhdeRepository{}
}

func (r *PalvelussuhdeRepository) GetByID(ctx context.Context, id int64) (palvelussuhde.Palvelussuhde, error) {
	return r.getOne(ctx, palvelussuhdeSelectQuery+" WHERE p.id = $1", id)
}

func (r *PalvelussuhdeRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (palvelussuhde.Palvelussuhde, error) {
	return r.getOne(ctx,
		palvelussuhdeSelectQuery+" WHERE p.lahdejarjestelma = $1 AND p.tunniste = $2",
		lahdejarjestelma, tunniste)
}

func (r *PalvelussuhdeRepository) getOne(ctx context.Context, query string, args ...any) (palvelussuhde.Palvelussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.Palvelussuhde{}, err
	}
	p, err := scanPalvelussuhde(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return palvelussuhde.Palvelussuhde{}, palvelussuhde.ErrNotFound
		}
		return palvelussuhde.Palvelussuhde{}, fmt.Errorf("get palvelussuhde: %w", err)
	}
	return p, nil
}

func (r *PalvelussuhdeRepository) ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]palvelussuhde.Palvelussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, palvelussuhdeSelectQuery+" WHERE p.tyontekija_id = $1 ORDER BY p.id", tyontekijaID)
	if err != nil {
		return nil, fmt.Errorf("list palvelussuhteet: %w", err)
	}
	defer rows.Close()

	out := make([]palvelussuhde.Palvelussuhde, 0, 4)
	for rows.Next() {
		p, err := scanPalvelussuhde(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PalvelussuhdeRepository) Create(ctx context.Context, p palvelussuhde.Palvelussuhde) (palvelussuhde.Palvelussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.Palvelussuhde{}, err
	}
	err = tx.QueryRow(ctx, palvelussuhdeInsertQuery,
		p.TyontekijaID, p.TyosuhdeKoodi, p.TyoaikaKoodi, p.TutkintoKoodi,
		p.TyoaikaViikossa, p.AlkamisPvm, p.PaattymisPvm, p.Lahdejarjestelma, p.Tunniste,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, p.Lahdejarjestelma, p.Tunniste)
			if getErr == nil {
				return palvelussuhde.Palvelussuhde{}, serrors.ConflictDuplicateExternal(existing.ID)
			}
		}
		return palvelussuhde.Palvelussuhde{}, fmt.Errorf("create palvelussuhde: %w", err)
	}
	if _, err := tx.Exec(ctx, palvelussuhdeHistoryQuery, p.ID, "+"); err != nil {
		return palvelussuhde.Palvelussuhde{}, fmt.Errorf("palvelussuhde history: %w", err)
	}
	return p, nil
}

func (r *PalvelussuhdeRepository) End(ctx context.Context, id int64, pvm time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, palvelussuhdeEndQuery, id, pvm); err != nil {
		return fmt.Errorf("end palvelussuhde: %w", err)
	}
	if _, err := tx.Exec(ctx, palvelussuhdeHistoryQuery, id, "~"); err != nil {
		return fmt.Errorf("palvelussuhde history: %w", err)
	}
	return nil
}

func (r *PalvelussuhdeRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, palvelussuhdeHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("palvelussuhde history: %w", err)
	}
	if _, err := tx.Exec(ctx, palvelussuhdeDeleteQuery, id); err != nil {
		return fmt.Errorf("delete palvelussuhde: %w", err)
	}
	return nil
}

func (r *PalvelussuhdeRepository) GetTyoskentelypaikka(ctx context.Context, id int64) (palvelussuhde.Tyoskentelypaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, err
	}
	t, err := scanTyoskentelypaikka(tx.QueryRow(ctx, tyoskentelypaikkaSelectQuery+" WHERE t.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return palvelussuhde.Tyoskentelypaikka{}, palvelussuhde.ErrTyoskentelypaikkaNotFound
		}
		return palvelussuhde.Tyoskentelypaikka{}, fmt.Errorf("get tyoskentelypaikka: %w", err)
	}
	return t, nil
}

func (r *PalvelussuhdeRepository) ListTyoskentelypaikatByPalvelussuhde(ctx context.Context, palvelussuhdeID int64) ([]palvelussuhde.Tyoskentelypaikka, error) {
	return r.listTyoskentelypaikat(ctx,
		tyoskentelypaikkaSelectQuery+" WHERE t.palvelussuhde_id = $1 ORDER BY t.id",
		palvelussuhdeID)
}

func (r *PalvelussuhdeRepository) ListTyoskentelypaikatByNimike(ctx context.Context, tyontekijaID int64, tehtavanimikeKoodi string) ([]palvelussuhde.Tyoskentelypaikka, error) {
	return r.listTyoskentelypaikat(ctx, tyoskentelypaikatByNimikeQuery, tyontekijaID, tehtavanimikeKoodi)
}

func (r *PalvelussuhdeRepository) listTyoskentelypaikat(ctx context.Context, query string, args ...any) ([]palvelussuhde.Tyoskentelypaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tyoskentelypaikat: %w", err)
	}
	defer rows.Close()

	out := make([]palvelussuhde.Tyoskentelypaikka, 0, 4)
	for rows.Next() {
		t, err := scanTyoskentelypaikka(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PalvelussuhdeRepository) CreateTyoskentelypaikka(ctx context.Context, t palvelussuhde.Tyoskentelypaikka) (palvelussuhde.Tyoskentelypaikka, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, err
	}
	err = tx.QueryRow(ctx, tyoskentelypaikkaInsertQuery,
		t.PalvelussuhdeID, t.ToimipaikkaID, t.KiertavaTyontekijaKytkin,
		t.TehtavanimikeKoodi, t.KelpoisuusKytkin, t.AlkamisPvm, t.PaattymisPvm,
		t.Lahdejarjestelma, t.Tunniste,
	).Scan(&t.ID)
	if err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, fmt.Errorf("create tyoskentelypaikka: %w", err)
	}
	if _, err := tx.Exec(ctx, tyoskentelypaikkaHistoryQuery, t.ID, "+"); err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, fmt.Errorf("tyoskentelypaikka history: %w", err)
	}
	return t, nil
}

func (r *PalvelussuhdeRepository) DeleteTyoskentelypaikka(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, tyoskentelypaikkaHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("tyoskentelypaikka history: %w", err)
	}
	if _, err := tx.Exec(ctx, tyoskentelypaikkaDeleteQuery, id); err != nil {
		return fmt.Errorf("delete tyoskentelypaikka: %w", err)
	}
	return nil
}

func (r *PalvelussuhdeRepository) GetPoissaolo(ctx context.Context, id int64) (palvelussuhde.PidempiPoissaolo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.PidempiPoissaolo{}, err
	}
	p, err := scanPoissaolo(tx.QueryRow(ctx, poissaoloSelectQuery+" WHERE p.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return palvelussuhde.PidempiPoissaolo{}, palvelussuhde.ErrPoissaoloNotFound
		}
		return palvelussuhde.PidempiPoissaolo{}, fmt.Errorf("get pidempi poissaolo: %w", err)
	}
	return p, nil
}

func (r *PalvelussuhdeRepository) ListPoissaolotByPalvelussuhde(ctx context.Context, palvelussuhdeID int64) ([]palvelussuhde.PidempiPoissaolo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, poissaoloSelectQuery+" WHERE p.palvelussuhde_id = $1 ORDER BY p.id", palvelussuhdeID)
	if err != nil {
		return nil, fmt.Errorf("list poissaolot: %w", err)
	}
	defer rows.Close()

	out := make([]palvelussuhde.PidempiPoissaolo, 0, 2)
	for rows.Next() {
		p, err := scanPoissaolo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PalvelussuhdeRepository) CreatePoissaolo(ctx context.Context, p palvelussuhde.PidempiPoissaolo) (palvelussuhde.PidempiPoissaolo, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return palvelussuhde.PidempiPoissaolo{}, err
	}
	err = tx.QueryRow(ctx, poissaoloInsertQuery,
		p.PalvelussuhdeID, p.AlkamisPvm, p.PaattymisPvm, p.Lahdejarjestelma, p.Tunniste,
	).Scan(&p.ID)
	if err != nil {
		return palvelussuhde.PidempiPoissaolo{}, fmt.Errorf("create pidempi poissaolo: %w", err)
	}
	if _, err := tx.Exec(ctx, poissaoloHistoryQuery, p.ID, "+"); err != nil {
		return palvelussuhde.PidempiPoissaolo{}, fmt.Errorf("pidempi poissaolo history: %w", err)
	}
	return p, nil
}

func (r *PalvelussuhdeRepository) DeletePoissaolo(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, poissaoloHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("pidempi poissaolo history: %w", err)
	}
	if _, err := tx.Exec(ctx, poissaoloDeleteQuery, id); err != nil {
		return fmt.Errorf("delete pidempi poissaolo: %w", err)
	}
	return nil
}

func scanPalvelussuhde(row rowScanner) (palvelussuhde.Palvelussuhde, error) {
	var (
		p       palvelussuhde.Palvelussuhde
		tyoaika decimal.Decimal
	)
	err := row.Scan(
		&p.ID, &p.TyontekijaID, &p.TyosuhdeKoodi, &p.TyoaikaKoodi, &p.TutkintoKoodi,
		&tyoaika, &p.AlkamisPvm, &p.PaattymisPvm, &p.Lahdejarjestelma, &p.Tunniste,
	)
	if err != nil {
		return palvelussuhde.Palvelussuhde{}, err
	}
	p.TyoaikaViikossa = tyoaika
	return p, nil
}

func scanTyoskentelypaikka(row rowScanner) (palvelussuhde.Tyoskentelypaikka, error) {
	var t palvelussuhde.Tyoskentelypaikka
	err := row.Scan(
		&t.ID, &t.PalvelussuhdeID, &t.ToimipaikkaID, &t.KiertavaTyontekijaKytkin,
		&t.TehtavanimikeKoodi, &t.KelpoisuusKytkin, &t.AlkamisPvm, &t.PaattymisPvm,
		&t.Lahdejarjestelma, &t.Tunniste,
	)
	if err != nil {
		return palvelussuhde.Tyoskentelypaikka{}, err
	}
	return t, nil
}

func scanPoissaolo(row rowScanner) (palvelussuhde.PidempiPoissaolo, error) {
	var p palvelussuhde.PidempiPoissaolo
	err := row.Scan(
		&p.ID, &p.PalvelussuhdeID, &p.AlkamisPvm, &p.PaattymisPvm,
		&p.Lahdejarjestelma, &p.Tunniste,
	)
	if err != nil {
		return palvelussuhde.PidempiPoissaolo{}, err
	}
	return p, nil
}

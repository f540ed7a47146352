package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/repo"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	paosToimintaSelectQuery = `
		SELECT pt.id, pt.oma_organisaatio_id, COALESCE(pt.paos_organisaatio_id, 0),
		       COALESCE(pt.paos_toimipaikka_id, 0), pt.voimassa_kytkin,
		       pt.alkamis_pvm, pt.paattymis_pvm
		FROM paos_toiminta pt`

	paosToimintaInsertQuery = `
		INSERT INTO paos_toiminta (oma_organisaatio_id, paos_organisaatio_id,
		                           paos_toimipaikka_id, voimassa_kytkin, alkamis_pvm)
		VALUES ($1, NULLIF($2, 0), NULLIF($3, 0), $4, $5)
		RETURNING id`

	paosToimintaEndQuery = `
		UPDATE paos_toiminta SET voimassa_kytkin = FALSE, paattymis_pvm = $2 WHERE id = $1`

	paosOikeusSelectQuery = `
		SELECT po.id, po.jarjestaja_id, po.tuottaja_id, po.voimassa_kytkin,
		       po.tallentaja_organisaatio_id, po.updated_at
		FROM paos_oikeus po`

	paosOikeusInsertQuery = `
		INSERT INTO paos_oikeus (jarjestaja_id, tuottaja_id, voimassa_kytkin,
		                         tallentaja_organisaatio_id, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, updated_at`

	paosOikeusVoimassaQuery = `
		UPDATE paos_oikeus SET voimassa_kytkin = $2, updated_at = NOW() WHERE id = $1`

	paosOikeusTallentajaQuery = `
		UPDATE paos_oikeus SET tallentaja_organisaatio_id = $2, updated_at = NOW() WHERE id = $1`
)

type PaosRepository struct{}

func NewPaosRepository() paos.Repository {
	return &PaosRepository{}
}

func (r *PaosRepository) GetToiminta(ctx context.Context, id int64) (paos.Toiminta, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paos.Toiminta{}, err
	}
	t, err := scanToiminta(tx.QueryRow(ctx, paosToimintaSelectQuery+" WHERE pt.id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paos.Toiminta{}, paos.ErrToimintaNotFound
		}
		return paos.Toiminta{}, fmt.Errorf("get paos toiminta: %w", err)
	}
	return t, nil
}

func (r *PaosRepository) ArrangerIntents(ctx context.Context, jarjestajaID, tuottajaID int64) ([]paos.Toiminta, error) {
	query := paosToimintaSelectQuery + `
		JOIN toimipaikka t ON t.id = pt.paos_toimipaikka_id
		WHERE pt.oma_organisaatio_id = $1 AND t.organisaatio_id = $2 AND pt.voimassa_kytkin`
	return r.list(ctx, query, jarjestajaID, tuottajaID)
}

func (r *PaosRepository) ProducerIntents(ctx context.Context, jarjestajaID, tuottajaID int64) ([]paos.Toiminta, error) {
	query := paosToimintaSelectQuery + `
		WHERE pt.oma_organisaatio_id = $2 AND pt.paos_organisaatio_id = $1 AND pt.voimassa_kytkin`
	return r.list(ctx, query, jarjestajaID, tuottajaID)
}

func (r *PaosRepository) ToimipaikkaIntents(ctx context.Context, toimipaikkaID int64) ([]paos.Toiminta, error) {
	query := paosToimintaSelectQuery + ` WHERE pt.paos_toimipaikka_id = $1 AND pt.voimassa_kytkin`
	return r.list(ctx, query, toimipaikkaID)
}

func (r *PaosRepository) list(ctx context.Context, query string, args ...any) ([]paos.Toiminta, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list paos toiminta: %w", err)
	}
	defer rows.Close()

	out := make([]paos.Toiminta, 0, 4)
	for rows.Next() {
		t, err := scanToiminta(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PaosRepository) CreateToiminta(ctx context.Context, t paos.Toiminta) (paos.Toiminta, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paos.Toiminta{}, err
	}
	err = tx.QueryRow(ctx, paosToimintaInsertQuery,
		t.OmaOrganisaatioID, t.PaosOrganisaatioID, t.PaosToimipaikkaID,
		t.VoimassaKytkin, t.AlkamisPvm,
	).Scan(&t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return paos.Toiminta{}, serrors.InvariantViolated("paos intent already declared")
		}
		return paos.Toiminta{}, fmt.Errorf("create paos toiminta: %w", err)
	}
	return t, nil
}

func (r *PaosRepository) EndToiminta(ctx context.Context, id int64, pvm time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, paosToimintaEndQuery, id, pvm); err != nil {
		return fmt.Errorf("end paos toiminta: %w", err)
	}
	return nil
}

func (r *PaosRepository) GetOikeusForUpdate(ctx context.Context, jarjestajaID, tuottajaID int64) (paos.Oikeus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paos.Oikeus{}, err
	}
	query := paosOikeusSelectQuery + " WHERE po.jarjestaja_id = $1 AND po.tuottaja_id = $2 FOR UPDATE"
	o, err := scanOikeus(tx.QueryRow(ctx, query, jarjestajaID, tuottajaID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paos.Oikeus{}, paos.ErrOikeusNotFound
		}
		return paos.Oikeus{}, fmt.Errorf("get paos oikeus: %w", err)
	}
	return o, nil
}

func (r *PaosRepository) CreateOikeus(ctx context.Context, o paos.Oikeus) (paos.Oikeus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return paos.Oikeus{}, err
	}
	err = tx.QueryRow(ctx, paosOikeusInsertQuery,
		o.JarjestajaID, o.TuottajaID, o.VoimassaKytkin, o.TallentajaID,
	).Scan(&o.ID, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return paos.Oikeus{}, serrors.InvariantViolated("paos oikeus already exists for pair")
		}
		return paos.Oikeus{}, fmt.Errorf("create paos oikeus: %w", err)
	}
	return o, nil
}

func (r *PaosRepository) SetVoimassa(ctx context.Context, id int64, voimassa bool) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, paosOikeusVoimassaQuery, id, voimassa); err != nil {
		return fmt.Errorf("set paos voimassa: %w", err)
	}
	return nil
}

func (r *PaosRepository) SetTallentaja(ctx context.Context, id int64, tallentajaID int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, paosOikeusTallentajaQuery, id, tallentajaID); err != nil {
		return fmt.Errorf("set paos tallentaja: %w", err)
	}
	return nil
}

func (r *PaosRepository) ListOikeudetByOrganisaatio(ctx context.Context, organisaatioID int64) ([]paos.Oikeus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	query := repo.Join(paosOikeusSelectQuery, "WHERE po.jarjestaja_id = $1 OR po.tuottaja_id = $1 ORDER BY po.id")
	rows, err := tx.Query(ctx, query, organisaatioID)
	if err != nil {
		return nil, fmt.Errorf("list paos oikeudet: %w", err)
	}
	defer rows.Close()

	out := make([]paos.Oikeus, 0, 4)
	for rows.Next() {
		o, err := scanOikeus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanToiminta(row rowScanner) (paos.Toiminta, error) {
	var t paos.Toiminta
	err := row.Scan(
		&t.ID, &t.OmaOrganisaatioID, &t.PaosOrganisaatioID,
		&t.PaosToimipaikkaID, &t.VoimassaKytkin, &t.AlkamisPvm, &t.PaattymisPvm,
	)
	return t, err
}

func scanOikeus(row rowScanner) (paos.Oikeus, error) {
	var o paos.Oikeus
	err := row.Scan(
		&o.ID, &o.JarjestajaID, &o.TuottajaID, &o.VoimassaKytkin,
		&o.TallentajaID, &o.UpdatedAt,
	)
	return o, err
}

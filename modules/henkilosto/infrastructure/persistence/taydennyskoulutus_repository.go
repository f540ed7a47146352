package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/modules/henkilosto/domain/entities/taydennyskoulutus"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	koulutusSelectQuery = `
		SELECT k.id, k.nimi, k.suoritus_pvm, k.koulutus_paivia,
		       k.lahdejarjestelma, COALESCE(k.tunniste, '')
		FROM taydennyskoulutus k`

	koulutusInsertQuery = `
		INSERT INTO taydennyskoulutus (nimi, suoritus_pvm, koulutus_paivia,
		                               lahdejarjestelma, tunniste, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NOW(), NOW())
		RETURNING id`

	koulutusDeleteQuery = `DELETE FROM taydennyskoulutus WHERE id = $1`

	koulutusHistoryQuery = `
		INSERT INTO taydennyskoulutus_history (id, nimi, suoritus_pvm, koulutus_paivia,
		                                       lahdejarjestelma, tunniste,
		                                       history_date, history_type)
		SELECT id, nimi, suoritus_pvm, koulutus_paivia, lahdejarjestelma, tunniste,
		       transaction_timestamp(), $2
		FROM taydennyskoulutus WHERE id = $1`

	osallistujaSelectQuery = `
		SELECT o.tyontekija_id, o.tehtavanimike_koodi
		FROM taydennyskoulutus_tyontekija o
		WHERE o.taydennyskoulutus_id = $1
		ORDER BY o.tyontekija_id, o.tehtavanimike_koodi`

	osallistujaInsertQuery = `
		INSERT INTO taydennyskoulutus_tyontekija (taydennyskoulutus_id, tyontekija_id,
		                                          tehtavanimike_koodi)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	osallistujaDeleteQuery = `
		DELETE FROM taydennyskoulutus_tyontekija WHERE taydennyskoulutus_id = $1`

	koulutusByTyontekijaQuery = `
		SELECT DISTINCT k.id, k.nimi, k.suoritus_pvm, k.koulutus_paivia,
		       k.lahdejarjestelma, COALESCE(k.tunniste, '')
		FROM taydennyskoulutus k
		JOIN taydennyskoulutus_tyontekija o ON o.taydennyskoulutus_id = k.id
		WHERE o.tyontekija_id = $1
		ORDER BY k.id`
)

type TaydennyskoulutusRepository struct{}

func NewTaydennyskoulutusRepository() taydennyskoulutus.Repository {
	return &TaydennyskoulutusRepository{}
}

func (r *TaydennyskoulutusRepository) GetByID(ctx context.Context, id int64) (taydennyskoulutus.Taydennyskoulutus, error) {
	return r.getOne(ctx, koulutusSelectQuery+" WHERE k.id = $1", id)
}

func (r *TaydennyskoulutusRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (taydennyskoulutus.Taydennyskoulutus, error) {
	return r.getOne(ctx,
		koulutusSelectQuery+" WHERE k.lahdejarjestelma = $1 AND k.tunniste = $2",
		lahdejarjestelma, tunniste)
}

func (r *TaydennyskoulutusRepository) getOne(ctx context.Context, query string, args ...any) (taydennyskoulutus.Taydennyskoulutus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, err
	}
	k, err := scanKoulutus(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return taydennyskoulutus.Taydennyskoulutus{}, taydennyskoulutus.ErrNotFound
		}
		return taydennyskoulutus.Taydennyskoulutus{}, fmt.Errorf("get taydennyskoulutus: %w", err)
	}
	k.Osallistujat, err = r.readOsallistujat(ctx, k.ID)
	if err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, err
	}
	return k, nil
}

func (r *TaydennyskoulutusRepository) ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]taydennyskoulutus.Taydennyskoulutus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, koulutusByTyontekijaQuery, tyontekijaID)
	if err != nil {
		return nil, fmt.Errorf("list taydennyskoulutukset: %w", err)
	}
	defer rows.Close()

	out := make([]taydennyskoulutus.Taydennyskoulutus, 0, 4)
	for rows.Next() {
		k, err := scanKoulutus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Osallistujat, err = r.readOsallistujat(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *TaydennyskoulutusRepository) readOsallistujat(ctx context.Context, id int64) ([]taydennyskoulutus.Osallistuja, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, osallistujaSelectQuery, id)
	if err != nil {
		return nil, fmt.Errorf("read osallistujat: %w", err)
	}
	defer rows.Close()

	out := make([]taydennyskoulutus.Osallistuja, 0, 4)
	for rows.Next() {
		var o taydennyskoulutus.Osallistuja
		if err := rows.Scan(&o.TyontekijaID, &o.TehtavanimikeKoodi); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *TaydennyskoulutusRepository) Create(ctx context.Context, k taydennyskoulutus.Taydennyskoulutus) (taydennyskoulutus.Taydennyskoulutus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, err
	}
	err = tx.QueryRow(ctx, koulutusInsertQuery,
		k.Nimi, k.SuoritusPvm, k.KoulutusPaivia, k.Lahdejarjestelma, k.Tunniste,
	).Scan(&k.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, k.Lahdejarjestelma, k.Tunniste)
			if getErr == nil {
				return taydennyskoulutus.Taydennyskoulutus{}, serrors.ConflictDuplicateExternal(existing.ID)
			}
		}
		return taydennyskoulutus.Taydennyskoulutus{}, fmt.Errorf("create taydennyskoulutus: %w", err)
	}
	for _, o := range k.Osallistujat {
		if _, err := tx.Exec(ctx, osallistujaInsertQuery, k.ID, o.TyontekijaID, o.TehtavanimikeKoodi); err != nil {
			return taydennyskoulutus.Taydennyskoulutus{}, fmt.Errorf("insert osallistuja: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, koulutusHistoryQuery, k.ID, "+"); err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, fmt.Errorf("taydennyskoulutus history: %w", err)
	}
	return k, nil
}

func (r *TaydennyskoulutusRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, koulutusHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("taydennyskoulutus history: %w", err)
	}
	if _, err := tx.Exec(ctx, osallistujaDeleteQuery, id); err != nil {
		return fmt.Errorf("delete osallistujat: %w", err)
	}
	if _, err := tx.Exec(ctx, koulutusDeleteQuery, id); err != nil {
		return fmt.Errorf("delete taydennyskoulutus: %w", err)
	}
	return nil
}

func scanKoulutus(row rowScanner) (taydennyskoulutus.Taydennyskoulutus, error) {
	var (
		k      taydennyskoulutus.Taydennyskoulutus
		paivia decimal.Decimal
	)
	err := row.Scan(&k.ID, &k.Nimi, &k.SuoritusPvm, &paivia, &k.Lahdejarjestelma, &k.Tunniste)
	if err != nil {
		return taydennyskoulutus.Taydennyskoulutus{}, err
	}
	k.KoulutusPaivia = paivia
	return k, nil
}

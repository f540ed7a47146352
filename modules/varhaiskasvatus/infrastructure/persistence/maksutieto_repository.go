package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/maksutieto"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	maksutietoSelectQuery = `
		SELECT m.id, m.maksun_peruste_koodi, m.perheen_koko, m.asiakasmaksu,
		       m.palvelusetelin_arvo, m.alkamis_pvm, m.paattymis_pvm,
		       m.lahdejarjestelma, COALESCE(m.tunniste, '')
		FROM maksutieto m`

	maksutietoInsertQuery = `
		INSERT INTO maksutieto (maksun_peruste_koodi, perheen_koko, asiakasmaksu,
		                        palvelusetelin_arvo, alkamis_pvm, paattymis_pvm,
		                        lahdejarjestelma, tunniste, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NOW(), NOW())
		RETURNING id`

	maksutietoEndQuery    = `UPDATE maksutieto SET paattymis_pvm = $2, updated_at = NOW() WHERE id = $1`
	maksutietoDeleteQuery = `DELETE FROM maksutieto WHERE id = $1`

	maksutietoHistoryQuery = `
		INSERT INTO maksutieto_history (id, maksun_peruste_koodi, perheen_koko,
		        asiakasmaksu, palvelusetelin_arvo, alkamis_pvm, paattymis_pvm,
		        history_date, history_type)
		SELECT id, maksun_peruste_koodi, perheen_koko, asiakasmaksu,
		       palvelusetelin_arvo, alkamis_pvm, paattymis_pvm,
		       transaction_timestamp(), $2
		FROM maksutieto WHERE id = $1`

	maksutietoLinkInsertQuery = `
		INSERT INTO maksutieto_huoltajuussuhde (maksutieto_id, huoltajuussuhde_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	maksutietoLinksQuery = `
		SELECT huoltajuussuhde_id FROM maksutieto_huoltajuussuhde
		WHERE maksutieto_id = $1
		ORDER BY huoltajuussuhde_id`

	maksutietoByLapsiQuery = `
		SELECT DISTINCT m.id, m.maksun_peruste_koodi, m.perheen_koko, m.asiakasmaksu,
		       m.palvelusetelin_arvo, m.alkamis_pvm, m.paattymis_pvm,
		       m.lahdejarjestelma, COALESCE(m.tunniste, '')
		FROM maksutieto m
		JOIN maksutieto_huoltajuussuhde mh ON mh.maksutieto_id = m.id
		JOIN huoltajuussuhde h ON h.id = mh.huoltajuussuhde_id
		WHERE h.lapsi_id = $1
		ORDER BY m.id`

	huoltajuussuhdeSelectQuery = `
		SELECT h.id, h.lapsi_id, h.huoltaja_henkilo_id, h.voimassa_kytkin
		FROM huoltajuussuhde h`

	huoltajuussuhdeUpsertQuery = `
		INSERT INTO huoltajuussuhde (lapsi_id, huoltaja_henkilo_id, voimassa_kytkin)
		VALUES ($1, $2, $3)
		ON CONFLICT (lapsi_id, huoltaja_henkilo_id)
		DO UPDATE SET voimassa_kytkin = huoltajuussuhde.voimassa_kytkin OR EXCLUDED.voimassa_kytkin
		RETURNING id, lapsi_id, huoltaja_henkilo_id, voimassa_kytkin`
)

type MaksutietoRepository struct{}

func NewMaksutietoRepository() maksutieto.Repository {
	return &MaksutietoRepository{}
}

func (r *MaksutietoRepository) GetByID(ctx context.Context, id int64) (maksutieto.Maksutieto, error) {
	return r.getOne(ctx, maksutietoSelectQuery+" WHERE m.id = $1", id)
}

func (r *MaksutietoRepository) GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (maksutieto.Maksutieto, error) {
	return r.getOne(ctx, maksutietoSelectQuery+" WHERE m.lahdejarjestelma = $1 AND m.tunniste = $2", lahdejarjestelma, tunniste)
}

func (r *MaksutietoRepository) getOne(ctx context.Context, query string, args ...any) (maksutieto.Maksutieto, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return maksutieto.Maksutieto{}, err
	}
	m, err := scanMaksutieto(tx.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return maksutieto.Maksutieto{}, maksutieto.ErrNotFound
		}
		return maksutieto.Maksutieto{}, fmt.Errorf("get maksutieto: %w", err)
	}
	m.HuoltajuussuhdeIDs, err = r.readLinks(ctx, m.ID)
	if err != nil {
		return maksutieto.Maksutieto{}, err
	}
	return m, nil
}

func (r *MaksutietoRepository) ListByLapsi(ctx context.Context, lapsiID int64) ([]maksutieto.Maksutieto, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, maksutietoByLapsiQuery, lapsiID)
	if err != nil {
		return nil, fmt.Errorf("list maksutiedot: %w", err)
	}
	defer rows.Close()

	out := make([]maksutieto.Maksutieto, 0, 4)
	for rows.Next() {
		m, err := scanMaksutieto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].HuoltajuussuhdeIDs, err = r.readLinks(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *MaksutietoRepository) Create(ctx context.Context, m maksutieto.Maksutieto) (maksutieto.Maksutieto, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return maksutieto.Maksutieto{}, err
	}
	err = tx.QueryRow(ctx, maksutietoInsertQuery,
		m.MaksunPerusteKoodi, m.PerheenKoko, m.Asiakasmaksu,
		m.PalvelusetelinArvo, m.AlkamisPvm, m.PaattymisPvm,
		m.Lahdejarjestelma, m.Tunniste,
	).Scan(&m.ID)
	if err != nil {
		if isUniqueViolation(err) {
			existing, getErr := r.GetByTunniste(ctx, m.Lahdejarjestelma, m.Tunniste)
			if getErr == nil {
				return maksutieto.Maksutieto{}, serrors.ConflictDuplicateExternal(existing.ID)
			}
			return maksutieto.Maksutieto{}, serrors.InvariantViolated("maksutieto already exists")
		}
		return maksutieto.Maksutieto{}, fmt.Errorf("create maksutieto: %w", err)
	}
	for _, linkID := range m.HuoltajuussuhdeIDs {
		if _, err := tx.Exec(ctx, maksutietoLinkInsertQuery, m.ID, linkID); err != nil {
			return maksutieto.Maksutieto{}, fmt.Errorf("link maksutieto: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, maksutietoHistoryQuery, m.ID, "+"); err != nil {
		return maksutieto.Maksutieto{}, fmt.Errorf("maksutieto history: %w", err)
	}
	return m, nil
}

func (r *MaksutietoRepository) End(ctx context.Context, id int64, pvm time.Time) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, maksutietoEndQuery, id, pvm); err != nil {
		return fmt.Errorf("end maksutieto: %w", err)
	}
	if _, err := tx.Exec(ctx, maksutietoHistoryQuery, id, "~"); err != nil {
		return fmt.Errorf("maksutieto history: %w", err)
	}
	return nil
}

func (r *MaksutietoRepository) Delete(ctx context.Context, id int64) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, maksutietoHistoryQuery, id, "-"); err != nil {
		return fmt.Errorf("maksutieto history: %w", err)
	}
	if _, err := tx.Exec(ctx, maksutietoDeleteQuery, id); err != nil {
		return fmt.Errorf("delete maksutieto: %w", err)
	}
	return nil
}

func (r *MaksutietoRepository) GetHuoltajuussuhde(ctx context.Context, id int64) (maksutieto.Huoltajuussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	var h maksutieto.Huoltajuussuhde
	err = tx.QueryRow(ctx, huoltajuussuhdeSelectQuery+" WHERE h.id = $1", id).
		Scan(&h.ID, &h.LapsiID, &h.HuoltajaHenkiloID, &h.VoimassaKytkin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return maksutieto.Huoltajuussuhde{}, maksutieto.ErrHuoltajuussuhdeNotFound
		}
		return maksutieto.Huoltajuussuhde{}, fmt.Errorf("get huoltajuussuhde: %w", err)
	}
	return h, nil
}

func (r *MaksutietoRepository) ListHuoltajuussuhteetByLapsi(ctx context.Context, lapsiID int64) ([]maksutieto.Huoltajuussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, huoltajuussuhdeSelectQuery+" WHERE h.lapsi_id = $1 ORDER BY h.id", lapsiID)
	if err != nil {
		return nil, fmt.Errorf("list huoltajuussuhteet: %w", err)
	}
	defer rows.Close()

	out := make([]maksutieto.Huoltajuussuhde, 0, 2)
	for rows.Next() {
		var h maksutieto.Huoltajuussuhde
		if err := rows.Scan(&h.ID, &h.LapsiID, &h.HuoltajaHenkiloID, &h.VoimassaKytkin); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *MaksutietoRepository) UpsertHuoltajuussuhde(ctx context.Context, h maksutieto.Huoltajuussuhde) (maksutieto.Huoltajuussuhde, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, err
	}
	err = tx.QueryRow(ctx, huoltajuussuhdeUpsertQuery, h.LapsiID, h.HuoltajaHenkiloID, h.VoimassaKytkin).
		Scan(&h.ID, &h.LapsiID, &h.HuoltajaHenkiloID, &h.VoimassaKytkin)
	if err != nil {
		return maksutieto.Huoltajuussuhde{}, fmt.Errorf("upsert huoltajuussuhde: %w", err)
	}
	return h, nil
}

func (r *MaksutietoRepository) readLinks(ctx context.Context, maksutietoID int64) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, maksutietoLinksQuery, maksutietoID)
	if err != nil {
		return nil, fmt.Errorf("read maksutieto links: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0, 2)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func scanMaksutieto(row rowScanner) (maksutieto.Maksutieto, error) {
	var (
		m                 maksutieto.Maksutieto
		maksu, seteliArvo decimal.Decimal
	)
	err := row.Scan(
		&m.ID, &m.MaksunPerusteKoodi, &m.PerheenKoko, &maksu, &seteliArvo,
		&m.AlkamisPvm, &m.PaattymisPvm, &m.Lahdejarjestelma, &m.Tunniste,
	)
	if err != nil {
		return maksutieto.Maksutieto{}, err
	}
	m.Asiakasmaksu = maksu
	m.PalvelusetelinArvo = seteliArvo
	return m, nil
}

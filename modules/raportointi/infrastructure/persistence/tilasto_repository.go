// Package persistence implements the temporal statistics queries over
// the append-only history tables. Every query follows the same shape: a
// DISTINCT ON (id) subquery pins each row to its last version known at
// the snapshot date, then the activity-window predicate filters for the
// statistics date.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/iota-uz/varda/modules/raportointi/domain/entities/tilasto"
	"github.com/iota-uz/varda/pkg/composables"
)

// maxLapsiIka is the reporting age cut-off: children who have turned
// this age by the statistics date are excluded.
const maxLapsiIka = 11

const (
	activeToimipaikatQuery = `
		SELECT t.id
		FROM (
			SELECT DISTINCT ON (id) id, alkamis_pvm, paattymis_pvm, history_type
			FROM toimipaikka_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		) t
		WHERE t.history_type <> '-'
		  AND t.alkamis_pvm <= $2
		  AND (t.paattymis_pvm IS NULL OR t.paattymis_pvm >= $2)
		ORDER BY t.id`

	// The inner select yields one row per distinct child with an active
	// decision, an active placement in an active unit and an under-age
	// person snapshot; the outer grouping set produces the full cube
	// plus the all-group total in one pass.
	vakaTilastoQuery = `
		WITH lapsi_snap AS (
			SELECT DISTINCT ON (id) id, henkilo_id, paos_organisaatio_id, history_type
			FROM lapsi_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), paatos_snap AS (
			SELECT DISTINCT ON (id) id, lapsi_id, jarjestamismuoto,
			       alkamis_pvm, paattymis_pvm, history_type
			FROM varhaiskasvatuspaatos_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), suhde_snap AS (
			SELECT DISTINCT ON (id) id, varhaiskasvatuspaatos_id, toimipaikka_id,
			       alkamis_pvm, paattymis_pvm, history_type
			FROM varhaiskasvatussuhde_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), henkilo_snap AS (
			SELECT DISTINCT ON (id) id, syntyma_pvm, history_type
			FROM henkilo_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), rivit AS (
			SELECT DISTINCT l.henkilo_id,
			       p.jarjestamismuoto,
			       l.paos_organisaatio_id IS NOT NULL AS paos_kytkin
			FROM lapsi_snap l
			JOIN paatos_snap p ON p.lapsi_id = l.id
			JOIN suhde_snap s ON s.varhaiskasvatuspaatos_id = p.id
			JOIN henkilo_snap h ON h.id = l.henkilo_id
			WHERE l.history_type <> '-'
			  AND p.history_type <> '-'
			  AND s.history_type <> '-'
			  AND h.history_type <> '-'
			  AND p.alkamis_pvm <= $2
			  AND (p.paattymis_pvm IS NULL OR p.paattymis_pvm >= $2)
			  AND s.alkamis_pvm <= $2
			  AND (s.paattymis_pvm IS NULL OR s.paattymis_pvm >= $2)
			  AND s.toimipaikka_id = ANY($3)
			  AND h.syntyma_pvm > $2::date - make_interval(years => $4)
		)
		SELECT COALESCE(jarjestamismuoto, ''), COALESCE(paos_kytkin, FALSE),
		       GROUPING(jarjestamismuoto, paos_kytkin), COUNT(DISTINCT henkilo_id)
		FROM rivit
		GROUP BY GROUPING SETS ((jarjestamismuoto, paos_kytkin), ())`

	henkilostoTilastoQuery = `
		WITH palvelussuhde_snap AS (
			SELECT DISTINCT ON (id) id, tyontekija_id, alkamis_pvm, paattymis_pvm, history_type
			FROM palvelussuhde_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), paikka_snap AS (
			SELECT DISTINCT ON (id) id, palvelussuhde_id, toimipaikka_id,
			       kiertava_tyontekija_kytkin, tehtavanimike_koodi, kelpoisuus_kytkin,
			       alkamis_pvm, paattymis_pvm, history_type
			FROM tyoskentelypaikka_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), rivit AS (
			SELECT DISTINCT ps.tyontekija_id,
			       tp.tehtavanimike_koodi,
			       tp.kelpoisuus_kytkin
			FROM palvelussuhde_snap ps
			JOIN paikka_snap tp ON tp.palvelussuhde_id = ps.id
			WHERE ps.history_type <> '-'
			  AND tp.history_type <> '-'
			  AND ps.alkamis_pvm <= $2
			  AND (ps.paattymis_pvm IS NULL OR ps.paattymis_pvm >= $2)
			  AND tp.alkamis_pvm <= $2
			  AND (tp.paattymis_pvm IS NULL OR tp.paattymis_pvm >= $2)
			  AND (tp.kiertava_tyontekija_kytkin OR tp.toimipaikka_id = ANY($3))
		)
		SELECT COALESCE(tehtavanimike_koodi, ''), COALESCE(kelpoisuus_kytkin, FALSE),
		       GROUPING(tehtavanimike_koodi, kelpoisuus_kytkin), COUNT(DISTINCT tyontekija_id)
		FROM rivit
		GROUP BY GROUPING SETS ((tehtavanimike_koodi, kelpoisuus_kytkin), ())`

	aloittaneetQuery = `
		WITH lapsi_snap AS (
			SELECT DISTINCT ON (id) id, henkilo_id, history_type
			FROM lapsi_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), paatos_snap AS (
			SELECT DISTINCT ON (id) id, lapsi_id, history_type
			FROM varhaiskasvatuspaatos_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		), suhde_snap AS (
			SELECT DISTINCT ON (id) id, varhaiskasvatuspaatos_id, alkamis_pvm, history_type
			FROM varhaiskasvatussuhde_history
			WHERE history_date <= $1
			ORDER BY id, history_date DESC
		)
		SELECT DISTINCT h.oid, s.alkamis_pvm
		FROM suhde_snap s
		JOIN paatos_snap p ON p.id = s.varhaiskasvatuspaatos_id
		JOIN lapsi_snap l ON l.id = p.lapsi_id
		JOIN henkilo ON henkilo.id = l.henkilo_id
		JOIN LATERAL (SELECT henkilo.oid) h ON TRUE
		WHERE s.history_type <> '-'
		  AND p.history_type <> '-'
		  AND l.history_type <> '-'
		  AND s.alkamis_pvm >= $2
		  AND s.alkamis_pvm <= $3
		  AND henkilo.oid IS NOT NULL
		ORDER BY s.alkamis_pvm, h.oid`
)

type TilastoRepository struct{}

func NewTilastoRepository() tilasto.Repository {
	return &TilastoRepository{}
}

func (r *TilastoRepository) ActiveToimipaikkaIDs(ctx context.Context, leikkaus tilasto.Leikkaus) ([]int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, activeToimipaikatQuery, leikkaus.PoimintaPvm, leikkaus.TilastointiPvm)
	if err != nil {
		return nil, fmt.Errorf("active toimipaikat: %w", err)
	}
	defer rows.Close()

	out := make([]int64, 0, 64)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *TilastoRepository) VakaTilasto(ctx context.Context, leikkaus tilasto.Leikkaus, toimipaikkaIDs []int64) (tilasto.VakaTilasto, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tilasto.VakaTilasto{}, err
	}
	rows, err := tx.Query(ctx, vakaTilastoQuery,
		leikkaus.PoimintaPvm, leikkaus.TilastointiPvm, toimipaikkaIDs, maxLapsiIka)
	if err != nil {
		return tilasto.VakaTilasto{}, fmt.Errorf("vaka tilasto: %w", err)
	}
	defer rows.Close()

	out := tilasto.VakaTilasto{Ryhmat: make(map[tilasto.VakaRyhma]int64)}
	for rows.Next() {
		var (
			jm       string
			paos     bool
			grouping int
			count    int64
		)
		if err := rows.Scan(&jm, &paos, &grouping, &count); err != nil {
			return tilasto.VakaTilasto{}, err
		}
		if grouping != 0 {
			// The all-group row has both dimensions rolled up.
			out.LapsiCount = count
			continue
		}
		out.Ryhmat[tilasto.VakaRyhma{Jarjestamismuoto: jm, Paos: paos}] = count
		if paos {
			out.PaosCount += count
		}
	}
	return out, rows.Err()
}

func (r *TilastoRepository) HenkilostoTilasto(ctx context.Context, leikkaus tilasto.Leikkaus, toimipaikkaIDs []int64) (tilasto.HenkilostoTilasto, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return tilasto.HenkilostoTilasto{}, err
	}
	rows, err := tx.Query(ctx, henkilostoTilastoQuery,
		leikkaus.PoimintaPvm, leikkaus.TilastointiPvm, toimipaikkaIDs)
	if err != nil {
		return tilasto.HenkilostoTilasto{}, fmt.Errorf("henkilosto tilasto: %w", err)
	}
	defer rows.Close()

	out := tilasto.HenkilostoTilasto{Ryhmat: make(map[tilasto.HenkilostoRyhma]int64)}
	for rows.Next() {
		var (
			koodi      string
			kelpoisuus bool
			grouping   int
			count      int64
		)
		if err := rows.Scan(&koodi, &kelpoisuus, &grouping, &count); err != nil {
			return tilasto.HenkilostoTilasto{}, err
		}
		if grouping != 0 {
			out.TyontekijaCount = count
			continue
		}
		out.Ryhmat[tilasto.HenkilostoRyhma{TehtavanimikeKoodi: koodi, Kelpoisuus: kelpoisuus}] = count
	}
	return out, rows.Err()
}

func (r *TilastoRepository) Aloittaneet(ctx context.Context, poimintaPvm, alkamisFrom, alkamisTo time.Time) ([]tilasto.Aloittanut, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, aloittaneetQuery, poimintaPvm, alkamisFrom, alkamisTo)
	if err != nil {
		return nil, fmt.Errorf("aloittaneet: %w", err)
	}
	defer rows.Close()

	out := make([]tilasto.Aloittanut, 0, 64)
	for rows.Next() {
		var a tilasto.Aloittanut
		if err := rows.Scan(&a.HenkiloOID, &a.AlkamisPvm); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

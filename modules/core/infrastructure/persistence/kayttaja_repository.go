package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/composables"
)

const (
	kayttajaFindQuery = `
		SELECT k.id, k.oid, k.kind, k.last_sync_at, k.created_at, k.updated_at
		FROM z3_kayttaja k`

	kayttajaUpsertQuery = `
		INSERT INTO z3_kayttaja (oid, kind, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (oid) DO UPDATE SET kind = EXCLUDED.kind, updated_at = NOW()
		RETURNING id, oid, kind, last_sync_at, created_at, updated_at`

	oikeudetQuery = `
		SELECT organisaatio_oid, rooli FROM z4_kayttooikeus
		WHERE kayttaja_id = $1
		ORDER BY organisaatio_oid, rooli`

	oikeudetDeleteQuery = `DELETE FROM z4_kayttooikeus WHERE kayttaja_id = $1`
	oikeudetInsertQuery = `
		INSERT INTO z4_kayttooikeus (kayttaja_id, organisaatio_oid, rooli)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`

	kayttajaTouchSyncQuery = `UPDATE z3_kayttaja SET last_sync_at = NOW(), updated_at = NOW() WHERE id = $1`

	oikeudetDeleteByOIDQuery = `
		DELETE FROM z4_kayttooikeus o
		USING z3_kayttaja k
		WHERE o.kayttaja_id = k.id AND o.organisaatio_oid = $1
		RETURNING k.oid`
)

type KayttajaRepository struct{}

func NewKayttajaRepository() kayttaja.Repository {
	return &KayttajaRepository{}
}

func (r *KayttajaRepository) GetByID(ctx context.Context, id int64) (kayttaja.Kayttaja, error) {
	return r.getOne(ctx, kayttajaFindQuery+" WHERE k.id = $1", id)
}

func (r *KayttajaRepository) GetByOID(ctx context.Context, oid string) (kayttaja.Kayttaja, error) {
	return r.getOne(ctx, kayttajaFindQuery+" WHERE k.oid = $1", strings.TrimSpace(oid))
}

func (r *KayttajaRepository) getOne(ctx context.Context, query string, arg any) (kayttaja.Kayttaja, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	var (
		id                   int64
		oid, kind            string
		lastSync             *time.Time
		createdAt, updatedAt time.Time
	)
	if err := tx.QueryRow(ctx, query, arg).Scan(&id, &oid, &kind, &lastSync, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return kayttaja.Kayttaja{}, kayttaja.ErrNotFound
		}
		return kayttaja.Kayttaja{}, fmt.Errorf("get kayttaja: %w", err)
	}

	oikeudet, err := r.readOikeudet(ctx, id)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	var syncAt time.Time
	if lastSync != nil {
		syncAt = *lastSync
	}
	return kayttaja.Hydrate(id, oid, kayttaja.Kind(kind), oikeudet, syncAt, createdAt, updatedAt), nil
}

func (r *KayttajaRepository) readOikeudet(ctx context.Context, kayttajaID int64) ([]kayttaja.Kayttooikeus, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, oikeudetQuery, kayttajaID)
	if err != nil {
		return nil, fmt.Errorf("read kayttooikeudet: %w", err)
	}
	defer rows.Close()

	out := make([]kayttaja.Kayttooikeus, 0, 4)
	for rows.Next() {
		var oid, rooli string
		if err := rows.Scan(&oid, &rooli); err != nil {
			return nil, err
		}
		role, ok := permission.ParseRole(rooli)
		if !ok {
			// Roles retired upstream stay in storage but confer nothing.
			continue
		}
		out = append(out, kayttaja.Kayttooikeus{OrganisaatioOID: oid, Role: role})
	}
	return out, rows.Err()
}

func (r *KayttajaRepository) Upsert(ctx context.Context, k kayttaja.Kayttaja) (kayttaja.Kayttaja, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}

	var lastSync any
	if !k.LastSyncAt().IsZero() {
		lastSync = k.LastSyncAt()
	}

	var (
		id                   int64
		oid, kind            string
		syncPtr              *time.Time
		createdAt, updatedAt time.Time
	)
	err = tx.QueryRow(ctx, kayttajaUpsertQuery, k.OID(), string(k.Kind()), lastSync).
		Scan(&id, &oid, &kind, &syncPtr, &createdAt, &updatedAt)
	if err != nil {
		return kayttaja.Kayttaja{}, fmt.Errorf("upsert kayttaja: %w", err)
	}

	oikeudet, err := r.readOikeudet(ctx, id)
	if err != nil {
		return kayttaja.Kayttaja{}, err
	}
	var syncAt time.Time
	if syncPtr != nil {
		syncAt = *syncPtr
	}
	return kayttaja.Hydrate(id, oid, kayttaja.Kind(kind), oikeudet, syncAt, createdAt, updatedAt), nil
}

func (r *KayttajaRepository) ReplaceOikeudet(ctx context.Context, kayttajaID int64, oikeudet []kayttaja.Kayttooikeus) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, oikeudetDeleteQuery, kayttajaID); err != nil {
		return fmt.Errorf("clear kayttooikeudet: %w", err)
	}
	for _, o := range oikeudet {
		if _, err := tx.Exec(ctx, oikeudetInsertQuery, kayttajaID, o.OrganisaatioOID, string(o.Role)); err != nil {
			return fmt.Errorf("insert kayttooikeus: %w", err)
		}
	}
	if _, err := tx.Exec(ctx, kayttajaTouchSyncQuery, kayttajaID); err != nil {
		return fmt.Errorf("touch kayttaja sync: %w", err)
	}
	return nil
}

func (r *KayttajaRepository) RemoveOikeudetByOID(ctx context.Context, organisaatioOID string) ([]string, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, oikeudetDeleteByOIDQuery, strings.TrimSpace(organisaatioOID))
	if err != nil {
		return nil, fmt.Errorf("remove kayttooikeudet by oid: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	out := make([]string, 0, 8)
	for rows.Next() {
		var oid string
		if err := rows.Scan(&oid); err != nil {
			return nil, err
		}
		if _, ok := seen[oid]; ok {
			continue
		}
		seen[oid] = struct{}{}
		out = append(out, oid)
	}
	return out, rows.Err()
}

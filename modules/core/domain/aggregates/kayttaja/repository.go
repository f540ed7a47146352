package kayttaja

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("kayttaja not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Kayttaja, error)
	GetByOID(ctx context.Context, oid string) (Kayttaja, error)
	// Upsert creates the principal profile when missing and returns the
	// stored row; idempotent by OID.
	Upsert(ctx context.Context, k Kayttaja) (Kayttaja, error)
	// ReplaceOikeudet swaps the full role-assignment set of the principal.
	ReplaceOikeudet(ctx context.Context, kayttajaID int64, oikeudet []Kayttooikeus) error
	// RemoveOikeudetByOID deletes every role assignment scoped to the OID
	// across all principals and returns the affected principal OIDs.
	// Used when a unit leaves its owner.
	RemoveOikeudetByOID(ctx context.Context, organisaatioOID string) ([]string, error)
}

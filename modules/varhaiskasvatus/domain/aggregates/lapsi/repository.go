package lapsi

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("lapsi not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Lapsi, error)
	// GetByIDForUpdate locks the child row; the transition engine and
	// every multi-entity rewrite start here.
	GetByIDForUpdate(ctx context.Context, id int64) (Lapsi, error)
	GetOrdinary(ctx context.Context, henkiloID, vakatoimijaID int64) (Lapsi, error)
	GetPaos(ctx context.Context, henkiloID, omaOrganisaatioID, paosOrganisaatioID int64) (Lapsi, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Lapsi, error)
	// ListPaosByAgreement lists every PAOS child of the ordered
	// (arranger, producer) pair.
	ListPaosByAgreement(ctx context.Context, omaOrganisaatioID, paosOrganisaatioID int64) ([]Lapsi, error)
	Create(ctx context.Context, l Lapsi) (Lapsi, error)
	Delete(ctx context.Context, id int64) error
}

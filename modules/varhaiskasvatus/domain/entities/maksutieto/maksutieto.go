// Package maksutieto models client payments and the guardian links they
// attach to children through.
package maksutieto

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/pkg/serrors"
)

// Permission-index keys.
const (
	ContentType                = "maksutieto"
	ContentTypeHuoltajuussuhde = "huoltajuussuhde"
)

// Huoltajuussuhde links a guardian person to a child. The flag tracks
// whether the guardianship is currently in force.
type Huoltajuussuhde struct {
	ID                int64
	LapsiID           int64
	HuoltajaHenkiloID int64
	VoimassaKytkin    bool
}

// Maksutieto is one payment record. It never references a child
// directly; the attachment goes through guardian links, and the payment
// is conceptually shared across all guardians of the same child.
type Maksutieto struct {
	ID                 int64
	MaksunPerusteKoodi string
	PerheenKoko        int
	Asiakasmaksu       decimal.Decimal
	PalvelusetelinArvo decimal.Decimal
	AlkamisPvm         time.Time
	PaattymisPvm       *time.Time
	Lahdejarjestelma   string
	Tunniste           string
	HuoltajuussuhdeIDs []int64
}

func (m Maksutieto) ActiveOn(pvm time.Time) bool {
	if m.AlkamisPvm.IsZero() || pvm.Before(m.AlkamisPvm) {
		return false
	}
	return m.PaattymisPvm == nil || !pvm.After(*m.PaattymisPvm)
}

var (
	ErrNotFound                = serrors.NotFound("maksutieto not found")
	ErrHuoltajuussuhdeNotFound = serrors.NotFound("huoltajuussuhde not found")
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (Maksutieto, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Maksutieto, error)
	// ListByLapsi lists the payments attached to any guardian link of
	// the child.
	ListByLapsi(ctx context.Context, lapsiID int64) ([]Maksutieto, error)
	Create(ctx context.Context, m Maksutieto) (Maksutieto, error)
	End(ctx context.Context, id int64, pvm time.Time) error
	Delete(ctx context.Context, id int64) error

	GetHuoltajuussuhde(ctx context.Context, id int64) (Huoltajuussuhde, error)
	ListHuoltajuussuhteetByLapsi(ctx context.Context, lapsiID int64) ([]Huoltajuussuhde, error)
	// UpsertHuoltajuussuhde creates the link or, on collision of
	// (lapsi, huoltaja), ORs the voimassa flag into the stored row.
	UpsertHuoltajuussuhde(ctx context.Context, h Huoltajuussuhde) (Huoltajuussuhde, error)
}

// Package paatos models childcare decisions and their placements.
package paatos

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/pkg/serrors"
)

// Permission-index keys.
const (
	ContentType      = "varhaiskasvatuspaatos"
	ContentTypeSuhde = "varhaiskasvatussuhde"
)

// Arrangement-form codes denoting shared custody. A decision of a PAOS
// child must carry one of these.
const (
	JarjestamismuotoPaosKunta      = "jm02"
	JarjestamismuotoPaosYksityinen = "jm03"
)

// IsPaosJarjestamismuoto reports whether the code denotes shared custody.
func IsPaosJarjestamismuoto(code string) bool {
	return code == JarjestamismuotoPaosKunta || code == JarjestamismuotoPaosYksityinen
}

// Varhaiskasvatuspaatos authorizes childcare for a child with its
// parameters and activation window.
type Varhaiskasvatuspaatos struct {
	ID                  int64
	LapsiID             int64
	Jarjestamismuoto    string
	TuntimaaraViikossa  decimal.Decimal
	VuorohoitoKytkin    bool
	PaivittainenKytkin  bool
	KokopaivainenKytkin bool
	HakemusPvm          time.Time
	AlkamisPvm          time.Time
	PaattymisPvm        *time.Time
	Lahdejarjestelma    string
	Tunniste            string
}

// ActiveOn reports whether the decision window covers the date; both
// endpoints are inclusive and a missing end date means open-ended.
func (p Varhaiskasvatuspaatos) ActiveOn(pvm time.Time) bool {
	if p.AlkamisPvm.IsZero() || pvm.Before(p.AlkamisPvm) {
		return false
	}
	return p.PaattymisPvm == nil || !pvm.After(*p.PaattymisPvm)
}

// Contains reports whether the given window fits inside the decision
// window. Endpoints may equal; an open-ended inner window requires an
// open-ended decision.
func (p Varhaiskasvatuspaatos) Contains(alkamisPvm time.Time, paattymisPvm *time.Time) bool {
	if alkamisPvm.Before(p.AlkamisPvm) {
		return false
	}
	if p.PaattymisPvm == nil {
		return true
	}
	if paattymisPvm == nil {
		return false
	}
	return !paattymisPvm.After(*p.PaattymisPvm)
}

// Varhaiskasvatussuhde ties a decision to a unit with its own window.
type Varhaiskasvatussuhde struct {
	ID               int64
	PaatosID         int64
	ToimipaikkaID    int64
	AlkamisPvm       time.Time
	PaattymisPvm     *time.Time
	Lahdejarjestelma string
	Tunniste         string
}

func (s Varhaiskasvatussuhde) ActiveOn(pvm time.Time) bool {
	if s.AlkamisPvm.IsZero() || pvm.Before(s.AlkamisPvm) {
		return false
	}
	return s.PaattymisPvm == nil || !pvm.After(*s.PaattymisPvm)
}

var (
	ErrNotFound      = serrors.NotFound("varhaiskasvatuspaatos not found")
	ErrSuhdeNotFound = serrors.NotFound("varhaiskasvatussuhde not found")
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (Varhaiskasvatuspaatos, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Varhaiskasvatuspaatos, error)
	ListByLapsi(ctx context.Context, lapsiID int64) ([]Varhaiskasvatuspaatos, error)
	Create(ctx context.Context, p Varhaiskasvatuspaatos) (Varhaiskasvatuspaatos, error)
	// End writes the decision's end date; used when migrating a unit's
	// children to another owner.
	End(ctx context.Context, id int64, pvm time.Time) error
	Delete(ctx context.Context, id int64) error

	GetSuhde(ctx context.Context, id int64) (Varhaiskasvatussuhde, error)
	ListSuhteetByPaatos(ctx context.Context, paatosID int64) ([]Varhaiskasvatussuhde, error)
	ListSuhteetByToimipaikka(ctx context.Context, toimipaikkaID int64) ([]Varhaiskasvatussuhde, error)
	CreateSuhde(ctx context.Context, s Varhaiskasvatussuhde) (Varhaiskasvatussuhde, error)
	EndSuhde(ctx context.Context, id int64, pvm time.Time) error
	DeleteSuhde(ctx context.Context, id int64) error
}

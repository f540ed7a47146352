// Package paos models cross-operator shared-custody agreements: the
// one-sided expressions of intent and the mirror rows carrying the
// activation flag and the recording party.
package paos

import (
	"context"
	"time"

	"github.com/iota-uz/varda/pkg/serrors"
)

// Toiminta is one operator's declared willingness to arrange or produce
// shared custody. The arranging side names the producer's unit; the
// producing side names the arranging operator. A two-sided agreement
// exists iff both directions do.
type Toiminta struct {
	ID                 int64
	OmaOrganisaatioID  int64
	PaosOrganisaatioID int64 // set on the producing side's intent
	PaosToimipaikkaID  int64 // set on the arranging side's intent
	VoimassaKytkin     bool
	AlkamisPvm         time.Time
	PaattymisPvm       *time.Time
}

// IsArrangerSide reports which direction this intent points: toward a
// producer's unit (arranger side) or toward an arranging operator.
func (t Toiminta) IsArrangerSide() bool { return t.PaosToimipaikkaID != 0 }

// Oikeus is the mirror entity of an ordered (arranger, producer) pair.
// VoimassaKytkin flips when both intents exist; TallentajaID names the
// recording party, the one side currently permitted to write data for
// the shared children.
type Oikeus struct {
	ID             int64
	JarjestajaID   int64
	TuottajaID     int64
	VoimassaKytkin bool
	TallentajaID   int64
	UpdatedAt      time.Time
}

var (
	ErrToimintaNotFound = serrors.NotFound("paos toiminta not found")
	ErrOikeusNotFound   = serrors.NotFound("paos oikeus not found")
)

type Repository interface {
	GetToiminta(ctx context.Context, id int64) (Toiminta, error)
	// ArrangerIntents lists active arranger-side intents from the
	// arranging operator toward any unit of the producer.
	ArrangerIntents(ctx context.Context, jarjestajaID, tuottajaID int64) ([]Toiminta, error)
	// ProducerIntents lists active producer-side intents from the
	// producing operator toward the arranging operator.
	ProducerIntents(ctx context.Context, jarjestajaID, tuottajaID int64) ([]Toiminta, error)
	// ToimipaikkaIntents lists every intent naming the unit, regardless
	// of direction. Non-empty means the unit participates in PAOS.
	ToimipaikkaIntents(ctx context.Context, toimipaikkaID int64) ([]Toiminta, error)
	CreateToiminta(ctx context.Context, t Toiminta) (Toiminta, error)
	EndToiminta(ctx context.Context, id int64, pvm time.Time) error

	// GetOikeusForUpdate locks the mirror row of the ordered pair for
	// the remainder of the transaction.
	GetOikeusForUpdate(ctx context.Context, jarjestajaID, tuottajaID int64) (Oikeus, error)
	CreateOikeus(ctx context.Context, o Oikeus) (Oikeus, error)
	SetVoimassa(ctx context.Context, id int64, voimassa bool) error
	SetTallentaja(ctx context.Context, id int64, tallentajaID int64) error
	// ListOikeudetByOrganisaatio lists every mirror row the operator
	// participates in, on either side.
	ListOikeudetByOrganisaatio(ctx context.Context, organisaatioID int64) ([]Oikeus, error)
}

// Package tilasto models temporal statistics queries: counts as known
// on one date, about activity on another.
package tilasto

import (
	"context"
	"time"
)

// Leikkaus is the two-date cut of every temporal query: PoimintaPvm is
// the snapshot date (what was known then), TilastointiPvm the activity
// date (what was in force then). TilastointiPvm after PoimintaPvm is
// legal: it asks about the future as-of a past snapshot.
type Leikkaus struct {
	PoimintaPvm    time.Time
	TilastointiPvm time.Time
}

// VakaRyhma is one childcare breakdown cell.
type VakaRyhma struct {
	Jarjestamismuoto string
	Paos             bool
}

// VakaTilasto is the childcare count cube: the all-group total plus the
// per-cell breakdown.
type VakaTilasto struct {
	LapsiCount int64
	PaosCount  int64
	Ryhmat     map[VakaRyhma]int64
}

// HenkilostoRyhma is one personnel breakdown cell.
type HenkilostoRyhma struct {
	TehtavanimikeKoodi string
	Kelpoisuus         bool
}

// HenkilostoTilasto is the personnel count cube.
type HenkilostoTilasto struct {
	TyontekijaCount int64
	Ryhmat          map[HenkilostoRyhma]int64
}

// Aloittanut is one child whose placement started inside the asked
// window, as reported to the benefit-payment consumer.
type Aloittanut struct {
	HenkiloOID string
	AlkamisPvm time.Time
}

type Repository interface {
	// ActiveToimipaikkaIDs lists units known at the snapshot date and
	// active on the activity date. The ids pre-filter the later passes.
	ActiveToimipaikkaIDs(ctx context.Context, leikkaus Leikkaus) ([]int64, error)
	VakaTilasto(ctx context.Context, leikkaus Leikkaus, toimipaikkaIDs []int64) (VakaTilasto, error)
	HenkilostoTilasto(ctx context.Context, leikkaus Leikkaus, toimipaikkaIDs []int64) (HenkilostoTilasto, error)
	Aloittaneet(ctx context.Context, poimintaPvm, alkamisFrom, alkamisTo time.Time) ([]Aloittanut, error)
}

package palvelussuhde

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestTyoskentelypaikkaConsistent(t *testing.T) {
	roving := Tyoskentelypaikka{KiertavaTyontekijaKytkin: true}
	assert.True(t, roving.Consistent())

	rovingWithUnit := Tyoskentelypaikka{KiertavaTyontekijaKytkin: true, ToimipaikkaID: 7}
	assert.False(t, rovingWithUnit.Consistent())

	stationary := Tyoskentelypaikka{ToimipaikkaID: 7}
	assert.True(t, stationary.Consistent())

	stationaryWithoutUnit := Tyoskentelypaikka{}
	assert.False(t, stationaryWithoutUnit.Consistent())
}

func TestPoissaoloDays(t *testing.T) {
	p := PidempiPoissaolo{AlkamisPvm: date("2023-01-01"), PaattymisPvm: date("2023-01-01")}
	assert.Equal(t, 1, p.Days(), "single-day absence counts both endpoints")

	p = PidempiPoissaolo{AlkamisPvm: date("2023-01-01"), PaattymisPvm: date("2023-03-01")}
	assert.Equal(t, 60, p.Days())

	p = PidempiPoissaolo{AlkamisPvm: date("2023-03-01"), PaattymisPvm: date("2023-01-01")}
	assert.Equal(t, 0, p.Days(), "inverted window has no length")
}

func TestPoissaoloLongEnough(t *testing.T) {
	ok := PidempiPoissaolo{AlkamisPvm: date("2023-01-01"), PaattymisPvm: date("2023-03-01")}
	assert.True(t, ok.LongEnough(), "exactly 60 days is reportable")

	short := PidempiPoissaolo{AlkamisPvm: date("2023-01-01"), PaattymisPvm: date("2023-02-28")}
	assert.False(t, short.LongEnough())
}

func TestPalvelussuhdeActiveOn(t *testing.T) {
	end := date("2023-12-31")
	p := Palvelussuhde{AlkamisPvm: date("2023-01-01"), PaattymisPvm: &end}
	assert.True(t, p.ActiveOn(date("2023-12-31")))
	assert.False(t, p.ActiveOn(date("2024-01-01")))
}

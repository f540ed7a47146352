package paatos

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

func datePtr(s string) *time.Time {
	d := date(s)
	return &d
}

func TestIsPaosJarjestamismuoto(t *testing.T) {
	assert.True(t, IsPaosJarjestamismuoto("jm02"))
	assert.True(t, IsPaosJarjestamismuoto("jm03"))
	assert.False(t, IsPaosJarjestamismuoto("jm01"))
	assert.False(t, IsPaosJarjestamismuoto(""))
}

func TestPaatosActiveOn(t *testing.T) {
	p := Varhaiskasvatuspaatos{AlkamisPvm: date("2023-01-01"), PaattymisPvm: datePtr("2023-06-30")}

	assert.True(t, p.ActiveOn(date("2023-01-01")), "start date inclusive")
	assert.True(t, p.ActiveOn(date("2023-06-30")), "end date inclusive")
	assert.False(t, p.ActiveOn(date("2022-12-31")))
	assert.False(t, p.ActiveOn(date("2023-07-01")))
}

func TestPaatosActiveOnOpenEnded(t *testing.T) {
	p := Varhaiskasvatuspaatos{AlkamisPvm: date("2023-01-01")}
	assert.True(t, p.ActiveOn(date("2030-01-01")))
}

func TestPaatosActiveOnMissingStart(t *testing.T) {
	var p Varhaiskasvatuspaatos
	assert.False(t, p.ActiveOn(date("2023-01-01")), "record without a start date is never active")
}

func TestContains(t *testing.T) {
	p := Varhaiskasvatuspaatos{AlkamisPvm: date("2023-01-01"), PaattymisPvm: datePtr("2023-12-31")}

	assert.True(t, p.Contains(date("2023-01-01"), datePtr("2023-12-31")), "equal endpoints fit")
	assert.True(t, p.Contains(date("2023-03-01"), datePtr("2023-06-30")))
	assert.False(t, p.Contains(date("2022-12-31"), datePtr("2023-06-30")), "earlier start leaks out")
	assert.False(t, p.Contains(date("2023-03-01"), datePtr("2024-01-01")), "later end leaks out")
	assert.False(t, p.Contains(date("2023-03-01"), nil), "open-ended placement needs an open-ended decision")
}

func TestContainsOpenEndedDecision(t *testing.T) {
	p := Varhaiskasvatuspaatos{AlkamisPvm: date("2023-01-01")}
	assert.True(t, p.Contains(date("2023-03-01"), nil))
	assert.True(t, p.Contains(date("2023-03-01"), datePtr("2040-01-01")))
}

func TestSuhdeActiveOn(t *testing.T) {
	s := Varhaiskasvatussuhde{AlkamisPvm: date("2023-02-01"), PaattymisPvm: datePtr("2023-02-28")}
	assert.True(t, s.ActiveOn(date("2023-02-15")))
	assert.False(t, s.ActiveOn(date("2023-03-01")))
}

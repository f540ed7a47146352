package toimipaikka_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestActiveOn(t *testing.T) {
	start := date(2023, 1, 1)
	end := date(2023, 12, 31)

	bounded := toimipaikka.Hydrate(
		1, 1, "1.2.246.562.10.111.u1", "Paivakoti", "tm01",
		[]string{"jm01"}, toimipaikka.HallinnointiVarda, "1", "", start, &end,
		time.Now(), time.Now(),
	)
	unbounded := toimipaikka.Hydrate(
		2, 1, "", "Paivakoti", "tm01",
		[]string{"jm01"}, toimipaikka.HallinnointiVarda, "1", "", start, nil,
		time.Now(), time.Now(),
	)

	// Endpoints are inclusive on both sides.
	assert.True(t, bounded.ActiveOn(start))
	assert.True(t, bounded.ActiveOn(end))
	assert.True(t, bounded.ActiveOn(date(2023, 6, 15)))
	assert.False(t, bounded.ActiveOn(date(2022, 12, 31)))
	assert.False(t, bounded.ActiveOn(date(2024, 1, 1)))

	assert.True(t, unbounded.ActiveOn(date(2030, 1, 1)))
}

func TestSupportsJarjestamismuoto(t *testing.T) {
	unit := toimipaikka.New(1, "", "Paivakoti", "tm01", []string{"jm01", "jm02"}, "1", "", date(2023, 1, 1))

	assert.True(t, unit.SupportsJarjestamismuoto("jm02"))
	assert.False(t, unit.SupportsJarjestamismuoto("jm03"))
}

func TestWithOrganisaatio(t *testing.T) {
	unit := toimipaikka.New(1, "", "Paivakoti", "tm01", []string{"jm01"}, "1", "", date(2023, 1, 1))
	moved := unit.WithOrganisaatio(7)

	assert.Equal(t, int64(7), moved.OrganisaatioID())
	assert.Equal(t, int64(1), unit.OrganisaatioID())
}

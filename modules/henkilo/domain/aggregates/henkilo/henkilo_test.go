package henkilo_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
)

func TestHashHetu(t *testing.T) {
	// Case and surrounding whitespace never split a person in two.
	assert.Equal(t, henkilo.HashHetu("120345-123a"), henkilo.HashHetu(" 120345-123A "))
	assert.NotEqual(t, henkilo.HashHetu("120345-123A"), henkilo.HashHetu("130345-123A"))
	assert.Len(t, henkilo.HashHetu("120345-123A"), 64)
}

func TestAgeOn(t *testing.T) {
	born := time.Date(2012, 6, 30, 0, 0, 0, 0, time.UTC)
	h := henkilo.Hydrate(1, "1.2.246.562.24.1", "", nil, "Matti", "Matti", "Meikalainen",
		born, false, time.Now(), time.Now())

	assert.Equal(t, 10, h.AgeOn(time.Date(2023, 6, 29, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 11, h.AgeOn(time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 12, h.AgeOn(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)))
}

func TestAgeOnZeroBirthdate(t *testing.T) {
	h := henkilo.Hydrate(1, "1.2.246.562.24.2", "", nil, "", "", "",
		time.Time{}, false, time.Now(), time.Now())
	assert.Equal(t, 0, h.AgeOn(time.Now()))
}

package services

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/raportointi/domain/entities/tilasto"
	"github.com/iota-uz/varda/pkg/serrors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestVetLeikkaus(t *testing.T) {
	assert.NoError(t, vetLeikkaus(tilasto.Leikkaus{
		PoimintaPvm:    date(2023, time.June, 30),
		TilastointiPvm: date(2023, time.June, 30),
	}))

	err := vetLeikkaus(tilasto.Leikkaus{PoimintaPvm: date(2023, time.June, 30)})
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))

	// Statistics date past the snapshot date is a legitimate question.
	assert.NoError(t, vetLeikkaus(tilasto.Leikkaus{
		PoimintaPvm:    date(2023, time.June, 30),
		TilastointiPvm: date(2023, time.September, 1),
	}))
}

func TestAloittaneetRejectsInvertedWindow(t *testing.T) {
	s := NewRaportointiService(nil, logrus.New())

	_, err := s.Aloittaneet(context.Background(),
		date(2023, time.June, 30), date(2023, time.June, 1), date(2023, time.May, 1))
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))

	_, err = s.Aloittaneet(context.Background(),
		time.Time{}, date(2023, time.May, 1), date(2023, time.June, 1))
	require.Error(t, err)
}

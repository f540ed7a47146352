package organisaatio_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
)

func TestIsPublic(t *testing.T) {
	kunta := organisaatio.New("1.2.246.562.10.111", "Testikunta", "1234567-8", "41",
		[]string{organisaatio.TyyppiVakajarjestaja}, time.Now())
	kuntayhtyma := organisaatio.New("1.2.246.562.10.112", "Yhtyma", "1234567-8", "42",
		[]string{organisaatio.TyyppiVakajarjestaja}, time.Now())
	yksityinen := organisaatio.New("1.2.246.562.10.113", "Paivakoti Oy", "7654321-8", "16",
		[]string{organisaatio.TyyppiVakajarjestaja}, time.Now())

	assert.True(t, kunta.IsPublic())
	assert.True(t, kuntayhtyma.IsPublic())
	assert.False(t, yksityinen.IsPublic())
}

func TestIsVakajarjestaja(t *testing.T) {
	op := organisaatio.New("1.2.246.562.10.111", "Testikunta", "", "41",
		[]string{"organisaatiotyyppi_01", organisaatio.TyyppiVakajarjestaja}, time.Now())
	other := organisaatio.New("1.2.246.562.10.114", "Koulu", "", "41",
		[]string{"organisaatiotyyppi_02"}, time.Now())

	assert.True(t, op.IsVakajarjestaja())
	assert.False(t, other.IsVakajarjestaja())
}

func TestIntegraatioOnly(t *testing.T) {
	op := organisaatio.New("1.2.246.562.10.111", "Testikunta", "", "41",
		[]string{organisaatio.TyyppiVakajarjestaja}, time.Now()).
		WithIntegraatiot([]string{"vakatiedot", "tyontekijatiedot"})

	assert.True(t, op.IntegraatioOnly("vakatiedot"))
	assert.True(t, op.IntegraatioOnly("tyontekijatiedot"))
	assert.False(t, op.IntegraatioOnly("huoltajatiedot"))
}

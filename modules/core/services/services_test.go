package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/core/infrastructure/upstream"
	"github.com/iota-uz/varda/modules/core/services"
	"github.com/iota-uz/varda/pkg/serrors"
)

func TestParseCommonName(t *testing.T) {
	t.Run("CN_First", func(t *testing.T) {
		cn, err := services.ParseCommonName("CN=kela-luovutus,O=Kela,C=FI")
		require.NoError(t, err)
		assert.Equal(t, "kela-luovutus", cn)
	})

	t.Run("CN_NotFirst", func(t *testing.T) {
		cn, err := services.ParseCommonName("O=Kela, CN=kela-luovutus, C=FI")
		require.NoError(t, err)
		assert.Equal(t, "kela-luovutus", cn)
	})

	t.Run("LowercaseKey", func(t *testing.T) {
		cn, err := services.ParseCommonName("cn=client-7")
		require.NoError(t, err)
		assert.Equal(t, "client-7", cn)
	})

	t.Run("MissingCN", func(t *testing.T) {
		_, err := services.ParseCommonName("O=Kela,C=FI")
		require.Error(t, err)
		assert.True(t, serrors.IsKind(err, serrors.KindUnauthenticated))
	})

	t.Run("EmptyCN", func(t *testing.T) {
		_, err := services.ParseCommonName("CN=,O=Kela")
		require.Error(t, err)
		assert.True(t, serrors.IsKind(err, serrors.KindUnauthenticated))
	})

	t.Run("EmptyDN", func(t *testing.T) {
		_, err := services.ParseCommonName("")
		require.Error(t, err)
	})
}

func TestMapOikeudet(t *testing.T) {
	payload := []upstream.OrganisaatioOikeudet{
		{
			OrganisaatioOid: "1.2.246.562.10.111",
			Kayttooikeudet: []upstream.PalveluOikeus{
				{Palvelu: "VARDA", Oikeus: "VARDA-TALLENTAJA"},
				{Palvelu: "VARDA", Oikeus: "VARDA-TALLENTAJA"},
				{Palvelu: "KOSKI", Oikeus: "VARDA-TALLENTAJA"},
				{Palvelu: "VARDA", Oikeus: "SOMETHING-UNKNOWN"},
			},
		},
		{
			OrganisaatioOid: "1.2.246.562.10.222",
			Kayttooikeudet: []upstream.PalveluOikeus{
				{Palvelu: "VARDA", Oikeus: "HUOLTAJATIETO_KATSELU"},
			},
		},
	}

	out := services.MapOikeudet(payload)
	require.Len(t, out, 2)
	assert.Equal(t, "1.2.246.562.10.111", out[0].OrganisaatioOID)
	assert.Equal(t, permission.RoleTallentaja, out[0].Role)
	assert.Equal(t, "1.2.246.562.10.222", out[1].OrganisaatioOID)
	assert.Equal(t, permission.RoleHuoltajatietoKatselu, out[1].Role)
}

func TestMapOikeudetEmpty(t *testing.T) {
	assert.Empty(t, services.MapOikeudet(nil))
	assert.Empty(t, services.MapOikeudet([]upstream.OrganisaatioOikeudet{
		{OrganisaatioOid: "1.2.246.562.10.111"},
	}))
}

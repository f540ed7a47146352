package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/serrors"
)

const (
	operatorOID = "1.2.246.562.10.111"
	unitOID     = "1.2.246.562.10.999"
	otherOID    = "1.2.246.562.10.555"
)

func principalWith(oikeudet ...kayttaja.Kayttooikeus) kayttaja.Kayttaja {
	return kayttaja.Hydrate(1, "1.2.246.562.24.1", kayttaja.KindVirkailija, oikeudet,
		time.Time{}, time.Time{}, time.Time{})
}

func TestVetRecorderScopeOperatorLevel(t *testing.T) {
	s := &TaydennyskoulutusService{}
	p := principalWith(kayttaja.Kayttooikeus{
		OrganisaatioOID: operatorOID,
		Role:            permission.RoleTaydennyskoulutusTallentaja,
	})

	err := s.vetRecorderScope(p, operatorOID, nil)
	assert.NoError(t, err, "operator-level recorder needs no unit coverage")
}

func TestVetRecorderScopeUnitLevel(t *testing.T) {
	s := &TaydennyskoulutusService{}
	p := principalWith(kayttaja.Kayttooikeus{
		OrganisaatioOID: unitOID,
		Role:            permission.RoleTaydennyskoulutusTallentaja,
	})

	err := s.vetRecorderScope(p, operatorOID, []string{otherOID, unitOID})
	assert.NoError(t, err, "one covered work location suffices")

	err = s.vetRecorderScope(p, operatorOID, []string{otherOID})
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindPermissionDenied))
}

func TestVetRecorderScopeReaderRoleConfersNothing(t *testing.T) {
	s := &TaydennyskoulutusService{}
	p := principalWith(kayttaja.Kayttooikeus{
		OrganisaatioOID: operatorOID,
		Role:            permission.RoleTaydennyskoulutusKatselija,
	})

	err := s.vetRecorderScope(p, operatorOID, []string{unitOID})
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindPermissionDenied))
}

func TestVetRecorderScopeWrongDomainRole(t *testing.T) {
	s := &TaydennyskoulutusService{}
	p := principalWith(kayttaja.Kayttooikeus{
		OrganisaatioOID: operatorOID,
		Role:            permission.RoleTallentaja,
	})

	err := s.vetRecorderScope(p, operatorOID, []string{unitOID})
	require.Error(t, err, "childcare recorder role does not cover training")
}

func TestVetRecorderScopeZeroPrincipal(t *testing.T) {
	s := &TaydennyskoulutusService{}
	assert.NoError(t, s.vetRecorderScope(kayttaja.Kayttaja{}, operatorOID, nil))
}

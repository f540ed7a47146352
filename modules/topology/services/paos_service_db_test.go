package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	"github.com/iota-uz/varda/modules/topology/infrastructure/persistence"
	"github.com/iota-uz/varda/modules/topology/infrastructure/upstream"
	"github.com/iota-uz/varda/pkg/cache"
	"github.com/iota-uz/varda/pkg/eventbus"
	"github.com/iota-uz/varda/pkg/itf"
	"github.com/iota-uz/varda/pkg/serrors"
)

// unknownRegistry stands in for the operator registry; every lookup
// misses, so operators must be stored up front.
type unknownRegistry struct{}

func (unknownRegistry) FetchOrganisaatio(_ context.Context, oid string) (upstream.OrganisaatioPayload, error) {
	return upstream.OrganisaatioPayload{}, serrors.NotFound("organisaatio " + oid + " not known upstream")
}

type recordingReprojector struct{ calls int }

func (r *recordingReprojector) ReprojectAgreement(context.Context, int64, int64) error {
	r.calls++
	return nil
}

func pvm(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type paosFixture struct {
	env    *itf.Environment
	paos   *PaosService
	rec    *recordingReprojector
	kunta  organisaatio.Organisaatio
	yritys organisaatio.Organisaatio
	unit   toimipaikka.Toimipaikka
}

// newPaosFixture stores a public arranger, a private producer and one of
// the producer's units.
func newPaosFixture(t *testing.T) *paosFixture {
	t.Helper()
	env := itf.Setup(t)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	index := acl.NewIndex(log, cache.NewMemory(time.Minute, clockwork.NewRealClock()), nil, "1.2.246.562.10.00000000001")
	orgs := NewOrganisaatioService(persistence.NewOrganisaatioRepository(), unknownRegistry{}, index, log)
	unitRepo := persistence.NewToimipaikkaRepository()
	units := NewToimipaikkaService(unitRepo, orgs, index, log)
	rec := &recordingReprojector{}
	svc := NewPaosService(persistence.NewPaosRepository(), orgs, unitRepo, rec, eventbus.NewEventPublisher(log), log)

	kunta, err := orgs.Create(env.Ctx, CreateOrganisaatioDTO{
		OID:         "1.2.246.562.10.501",
		Nimi:        "Testikunta",
		Yritysmuoto: "41",
		Tyypit:      []string{organisaatio.TyyppiVakajarjestaja},
		AlkamisPvm:  pvm(2015, time.January, 1),
	})
	require.NoError(t, err)
	yritys, err := orgs.Create(env.Ctx, CreateOrganisaatioDTO{
		OID:         "1.2.246.562.10.502",
		Nimi:        "Onni Oy",
		Yritysmuoto: "16",
		Tyypit:      []string{organisaatio.TyyppiVakajarjestaja},
		AlkamisPvm:  pvm(2018, time.March, 1),
	})
	require.NoError(t, err)
	unit, err := units.Create(env.Ctx, CreateToimipaikkaDTO{
		OrganisaatioOID:   yritys.OID(),
		Nimi:              "Päiväkoti Onni",
		Toimintamuoto:     "tm01",
		Jarjestamismuodot: []string{"jm02"},
		Lahdejarjestelma:  "93",
		AlkamisPvm:        pvm(2021, time.August, 1),
	})
	require.NoError(t, err)

	return &paosFixture{env: env, paos: svc, rec: rec, kunta: kunta, yritys: yritys, unit: unit}
}

// declareBothSides activates the agreement: producer names the arranger,
// arranger names the producer's unit. Returns the producer's intent.
func (f *paosFixture) declareBothSides(t *testing.T) paos.Toiminta {
	t.Helper()
	producerIntent, err := f.paos.AddToiminta(f.env.Ctx, AddPaosToimintaDTO{
		OmaOrganisaatioOID:  f.yritys.OID(),
		PaosOrganisaatioOID: f.kunta.OID(),
	})
	require.NoError(t, err)
	_, err = f.paos.AddToiminta(f.env.Ctx, AddPaosToimintaDTO{
		OmaOrganisaatioOID: f.kunta.OID(),
		PaosToimipaikkaID:  f.unit.ID(),
	})
	require.NoError(t, err)
	return producerIntent
}

func TestPaosActivationNeedsBothSides(t *testing.T) {
	f := newPaosFixture(t)

	_, err := f.paos.AddToiminta(f.env.Ctx, AddPaosToimintaDTO{
		OmaOrganisaatioOID:  f.yritys.OID(),
		PaosOrganisaatioOID: f.kunta.OID(),
	})
	require.NoError(t, err)

	_, err = f.paos.Oikeus(f.env.Ctx, f.kunta.ID(), f.yritys.ID())
	assert.ErrorIs(t, err, paos.ErrOikeusNotFound, "one-sided intent must not activate")
	assert.Equal(t, 0, f.rec.calls)

	_, err = f.paos.AddToiminta(f.env.Ctx, AddPaosToimintaDTO{
		OmaOrganisaatioOID: f.kunta.OID(),
		PaosToimipaikkaID:  f.unit.ID(),
	})
	require.NoError(t, err)

	oikeus, err := f.paos.Oikeus(f.env.Ctx, f.kunta.ID(), f.yritys.ID())
	require.NoError(t, err)
	assert.True(t, oikeus.VoimassaKytkin)
	assert.Equal(t, f.kunta.ID(), oikeus.TallentajaID, "arranger records by default")
	assert.Equal(t, 1, f.rec.calls, "activation reprojects the shared entities once")
}

func TestPaosArrangerMustBePublic(t *testing.T) {
	f := newPaosFixture(t)

	_, err := f.paos.AddToiminta(f.env.Ctx, AddPaosToimintaDTO{
		OmaOrganisaatioOID: f.yritys.OID(),
		PaosToimipaikkaID:  f.unit.ID(),
	})
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))
}

func TestPaosRotationRoundTrip(t *testing.T) {
	f := newPaosFixture(t)
	f.declareBothSides(t)

	require.NoError(t, f.paos.RotateTallentaja(f.env.Ctx, f.kunta.ID(), f.yritys.ID(), f.yritys.ID()))
	oikeus, err := f.paos.Oikeus(f.env.Ctx, f.kunta.ID(), f.yritys.ID())
	require.NoError(t, err)
	assert.Equal(t, f.yritys.ID(), oikeus.TallentajaID)
	assert.Equal(t, 2, f.rec.calls)

	require.NoError(t, f.paos.RotateTallentaja(f.env.Ctx, f.kunta.ID(), f.yritys.ID(), f.kunta.ID()))
	oikeus, err = f.paos.Oikeus(f.env.Ctx, f.kunta.ID(), f.yritys.ID())
	require.NoError(t, err)
	assert.Equal(t, f.kunta.ID(), oikeus.TallentajaID, "rotating back restores the original recorder")
	assert.True(t, oikeus.VoimassaKytkin)
	assert.Equal(t, 3, f.rec.calls)

	// Rotating to the current recorder changes nothing.
	require.NoError(t, f.paos.RotateTallentaja(f.env.Ctx, f.kunta.ID(), f.yritys.ID(), f.kunta.ID()))
	assert.Equal(t, 3, f.rec.calls)

	err = f.paos.RotateTallentaja(f.env.Ctx, f.kunta.ID(), f.yritys.ID(), 999999)
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))
}

func TestPaosWithdrawDeactivates(t *testing.T) {
	f := newPaosFixture(t)
	producerIntent := f.declareBothSides(t)

	require.NoError(t, f.paos.WithdrawToiminta(f.env.Ctx, producerIntent.ID))

	oikeus, err := f.paos.Oikeus(f.env.Ctx, f.kunta.ID(), f.yritys.ID())
	require.NoError(t, err)
	assert.False(t, oikeus.VoimassaKytkin, "losing the producer side deactivates the pair")
	assert.Equal(t, f.kunta.ID(), oikeus.TallentajaID, "recorder survives deactivation")
	assert.Equal(t, 2, f.rec.calls)
}

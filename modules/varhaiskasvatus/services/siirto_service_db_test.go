package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	coreper "github.com/iota-uz/varda/modules/core/infrastructure/persistence"
	"github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
	henkiloper "github.com/iota-uz/varda/modules/henkilo/infrastructure/persistence"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
	"github.com/iota-uz/varda/modules/topology/domain/entities/paos"
	topologyper "github.com/iota-uz/varda/modules/topology/infrastructure/persistence"
	"github.com/iota-uz/varda/modules/topology/infrastructure/upstream"
	topologyservices "github.com/iota-uz/varda/modules/topology/services"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/entities/paatos"
	vakaper "github.com/iota-uz/varda/modules/varhaiskasvatus/infrastructure/persistence"
	"github.com/iota-uz/varda/pkg/cache"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/itf"
	"github.com/iota-uz/varda/pkg/serrors"
)

type missingRegistry struct{}

func (missingRegistry) FetchOrganisaatio(_ context.Context, oid string) (upstream.OrganisaatioPayload, error) {
	return upstream.OrganisaatioPayload{}, serrors.NotFound("organisaatio " + oid + " not known upstream")
}

// inertPersons satisfies PersonResolver where the scenario never resolves
// new identifiers; read-through grants are covered by the acl tests.
type inertPersons struct{}

func (inertPersons) FindOrCreate(context.Context, string, string) (henkilo.Henkilo, error) {
	return henkilo.Henkilo{}, serrors.NotFound("no person resolution in this scenario")
}

func (inertPersons) GrantScopes(context.Context, int64, []permission.Domain, []acl.ScopeGrant) error {
	return nil
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

type siirtoFixture struct {
	env        *itf.Environment
	siirto     *SiirtoService
	lapset     lapsi.Repository
	paatokset  paatos.Repository
	units      *topologyservices.ToimipaikkaService
	paosRepo   paos.Repository
	from       organisaatio.Organisaatio
	to         organisaatio.Organisaatio
	yksityinen organisaatio.Organisaatio
	unit       toimipaikka.Toimipaikka
	henkiloID  int64
	paatosID   int64
}

// newSiirtoFixture stores two municipal operators, a private one, a unit
// under the first municipality and one child active in the unit.
func newSiirtoFixture(t *testing.T) *siirtoFixture {
	t.Helper()
	env := itf.Setup(t)

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	index := acl.NewIndex(log, cache.NewMemory(time.Minute, clockwork.NewRealClock()), nil, "1.2.246.562.10.00000000001")
	orgs := topologyservices.NewOrganisaatioService(topologyper.NewOrganisaatioRepository(), missingRegistry{}, index, log)
	unitRepo := topologyper.NewToimipaikkaRepository()
	units := topologyservices.NewToimipaikkaService(unitRepo, orgs, index, log)
	paosRepo := topologyper.NewPaosRepository()
	lapset := vakaper.NewLapsiRepository()
	paatokset := vakaper.NewPaatosRepository()
	siirto := NewSiirtoService(
		unitRepo, units, orgs, paosRepo, lapset, paatokset,
		vakaper.NewMaksutietoRepository(), coreper.NewKayttajaRepository(),
		inertPersons{}, index, changefeed.NewPublisher(), log,
	)

	newOperator := func(oid, nimi, yritysmuoto string) organisaatio.Organisaatio {
		o, err := orgs.Create(env.Ctx, topologyservices.CreateOrganisaatioDTO{
			OID:         oid,
			Nimi:        nimi,
			Yritysmuoto: yritysmuoto,
			Tyypit:      []string{organisaatio.TyyppiVakajarjestaja},
			AlkamisPvm:  day(2015, time.January, 1),
		})
		require.NoError(t, err)
		return o
	}
	from := newOperator("1.2.246.562.10.601", "Lähtökunta", "41")
	to := newOperator("1.2.246.562.10.602", "Kohdekunta", "41")
	yksityinen := newOperator("1.2.246.562.10.603", "Hoiva Oy", "16")

	unit, err := units.Create(env.Ctx, topologyservices.CreateToimipaikkaDTO{
		OrganisaatioOID:   from.OID(),
		Nimi:              "Päiväkoti Vanamo",
		Toimintamuoto:     "tm01",
		Jarjestamismuodot: []string{"jm01"},
		Lahdejarjestelma:  "93",
		AlkamisPvm:        day(2020, time.August, 1),
	})
	require.NoError(t, err)

	person, err := henkiloper.NewHenkiloRepository().Create(env.Ctx, henkilo.New(
		"1.2.246.562.24.601", "hash-24-601", nil, "Aino Maria", "Aino", "Virtanen",
		day(2020, time.May, 4),
	))
	require.NoError(t, err)
	child, err := lapset.Create(env.Ctx, lapsi.NewOrdinary(person.ID(), from.ID(), "93", ""))
	require.NoError(t, err)
	decision, err := paatokset.Create(env.Ctx, paatos.Varhaiskasvatuspaatos{
		LapsiID:            child.ID(),
		Jarjestamismuoto:   "jm01",
		TuntimaaraViikossa: decimal.NewFromFloat(37.5),
		HakemusPvm:         day(2023, time.June, 1),
		AlkamisPvm:         day(2023, time.August, 1),
		Lahdejarjestelma:   "93",
	})
	require.NoError(t, err)
	_, err = paatokset.CreateSuhde(env.Ctx, paatos.Varhaiskasvatussuhde{
		PaatosID:         decision.ID,
		ToimipaikkaID:    unit.ID(),
		AlkamisPvm:       day(2023, time.August, 1),
		Lahdejarjestelma: "93",
	})
	require.NoError(t, err)

	return &siirtoFixture{
		env: env, siirto: siirto, lapset: lapset, paatokset: paatokset,
		units: units, paosRepo: paosRepo,
		from: from, to: to, yksityinen: yksityinen, unit: unit,
		henkiloID: person.ID(), paatosID: decision.ID,
	}
}

func TestMigrateUnitsTransfersOwnershipAndChildren(t *testing.T) {
	f := newSiirtoFixture(t)

	require.NoError(t, f.siirto.MigrateUnits(f.env.Ctx, []int64{f.unit.ID()}, f.to.OID()))

	moved, err := f.units.GetByID(f.env.Ctx, f.unit.ID())
	require.NoError(t, err)
	assert.Equal(t, f.to.ID(), moved.OrganisaatioID())

	// The old decision ends on the transfer date; a mirror under the new
	// owner's child starts the same day.
	old, err := f.paatokset.GetByID(f.env.Ctx, f.paatosID)
	require.NoError(t, err)
	require.NotNil(t, old.PaattymisPvm)

	adopted, err := f.lapset.GetOrdinary(f.env.Ctx, f.henkiloID, f.to.ID())
	require.NoError(t, err)
	mirrors, err := f.paatokset.ListByLapsi(f.env.Ctx, adopted.ID())
	require.NoError(t, err)
	require.Len(t, mirrors, 1)
	assert.Nil(t, mirrors[0].PaattymisPvm)
	assert.True(t, mirrors[0].TuntimaaraViikossa.Equal(decimal.NewFromFloat(37.5)))

	suhteet, err := f.paatokset.ListSuhteetByPaatos(f.env.Ctx, mirrors[0].ID)
	require.NoError(t, err)
	require.Len(t, suhteet, 1)
	assert.Equal(t, f.unit.ID(), suhteet[0].ToimipaikkaID, "the placement stays in the migrated unit")
}

func TestMigrateUnitsRejectsBoundaryCross(t *testing.T) {
	f := newSiirtoFixture(t)

	err := f.siirto.MigrateUnits(f.env.Ctx, []int64{f.unit.ID()}, f.yksityinen.OID())
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))

	kept, err := f.units.GetByID(f.env.Ctx, f.unit.ID())
	require.NoError(t, err)
	assert.Equal(t, f.from.ID(), kept.OrganisaatioID(), "a rejected batch leaves ownership untouched")
}

func TestMigrateUnitsRejectsPaosParticipants(t *testing.T) {
	f := newSiirtoFixture(t)

	_, err := f.paosRepo.CreateToiminta(f.env.Ctx, paos.Toiminta{
		OmaOrganisaatioID: f.from.ID(),
		PaosToimipaikkaID: f.unit.ID(),
		VoimassaKytkin:    true,
		AlkamisPvm:        day(2024, time.January, 1),
	})
	require.NoError(t, err)

	err = f.siirto.MigrateUnits(f.env.Ctx, []int64{f.unit.ID()}, f.to.OID())
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindInvariantViolated))
}

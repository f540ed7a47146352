// Package modules wires the persistence, upstream and service layers of
// every module into one registry. The wiring order follows the
// dependency direction: core and topology first, then the person store,
// then the childcare and personnel modules, reporting last.
package modules

import (
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	corepersistence "github.com/iota-uz/varda/modules/core/infrastructure/persistence"
	coreupstream "github.com/iota-uz/varda/modules/core/infrastructure/upstream"
	coreservices "github.com/iota-uz/varda/modules/core/services"
	henkilocrypto "github.com/iota-uz/varda/modules/henkilo/infrastructure/crypto"
	henkilopersistence "github.com/iota-uz/varda/modules/henkilo/infrastructure/persistence"
	henkiloupstream "github.com/iota-uz/varda/modules/henkilo/infrastructure/upstream"
	henkiloservices "github.com/iota-uz/varda/modules/henkilo/services"
	henkilostopersistence "github.com/iota-uz/varda/modules/henkilosto/infrastructure/persistence"
	henkilostoservices "github.com/iota-uz/varda/modules/henkilosto/services"
	raportointipersistence "github.com/iota-uz/varda/modules/raportointi/infrastructure/persistence"
	raportointiservices "github.com/iota-uz/varda/modules/raportointi/services"
	topologypersistence "github.com/iota-uz/varda/modules/topology/infrastructure/persistence"
	topologyupstream "github.com/iota-uz/varda/modules/topology/infrastructure/upstream"
	topologyservices "github.com/iota-uz/varda/modules/topology/services"
	vakapersistence "github.com/iota-uz/varda/modules/varhaiskasvatus/infrastructure/persistence"
	vakaservices "github.com/iota-uz/varda/modules/varhaiskasvatus/services"
	"github.com/iota-uz/varda/pkg/authz"
	"github.com/iota-uz/varda/pkg/cache"
	"github.com/iota-uz/varda/pkg/changefeed"
	"github.com/iota-uz/varda/pkg/configuration"
	"github.com/iota-uz/varda/pkg/eventbus"
	"github.com/iota-uz/varda/pkg/logging"
	"github.com/iota-uz/varda/pkg/ratelimit"
)

// Services is the assembled registry handed to the transport layer and
// the command-line entrypoints.
type Services struct {
	Index *acl.Index

	Kayttajat     *coreservices.KayttajaService
	Certificates  *coreservices.CertificateService
	Organisaatiot *topologyservices.OrganisaatioService
	Toimipaikat   *topologyservices.ToimipaikkaService
	Paos          *topologyservices.PaosService
	Henkilot      *henkiloservices.HenkiloService

	Lapset      *vakaservices.LapsiService
	Paatokset   *vakaservices.PaatosService
	Maksutiedot *vakaservices.MaksutietoService
	Siirrot     *vakaservices.SiirtoService
	Projections *vakaservices.ProjectionService

	Tyontekijat          *henkilostoservices.TyontekijaService
	Palvelussuhteet      *henkilostoservices.PalvelussuhdeService
	Taydennyskoulutukset *henkilostoservices.TaydennyskoulutusService

	Raportointi *raportointiservices.RaportointiService
}

// Load builds every repository, upstream client and service against the
// given configuration. The bus carries in-process domain events; the
// pool travels per-request through the context, not through here.
func Load(cfg *configuration.Configuration, bus eventbus.EventBus, log *logrus.Logger) (*Services, error) {
	visible, err := visibleCache(cfg, log)
	if err != nil {
		return nil, err
	}
	limiter, err := ratelimit.NewLoginLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}
	encryptor, err := henkilocrypto.NewAESEncryptor(cfg.HetuCipherKey)
	if err != nil {
		return nil, err
	}

	policy, err := authz.NewService(authz.Config{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	index := acl.NewIndex(log, visible, policy, cfg.OpintopolkuOID)
	feed := changefeed.NewPublisher()

	kayttajaRepo := corepersistence.NewKayttajaRepository()
	certRepo := corepersistence.NewLoginCertificateRepository()
	organisaatioRepo := topologypersistence.NewOrganisaatioRepository()
	toimipaikkaRepo := topologypersistence.NewToimipaikkaRepository()
	paosRepo := topologypersistence.NewPaosRepository()
	henkiloRepo := henkilopersistence.NewHenkiloRepository()
	lapsiRepo := vakapersistence.NewLapsiRepository()
	paatosRepo := vakapersistence.NewPaatosRepository()
	maksutietoRepo := vakapersistence.NewMaksutietoRepository()
	tyontekijaRepo := henkilostopersistence.NewTyontekijaRepository()
	palvelussuhdeRepo := henkilostopersistence.NewPalvelussuhdeRepository()
	koulutusRepo := henkilostopersistence.NewTaydennyskoulutusRepository()
	tilastoRepo := raportointipersistence.NewTilastoRepository()

	s := &Services{Index: index}

	s.Kayttajat = coreservices.NewKayttajaService(
		kayttajaRepo, coreupstream.NewKayttooikeusClient(cfg.Upstream),
		limiter, index, cfg.OpintopolkuOID, log,
	)
	s.Certificates = coreservices.NewCertificateService(certRepo, kayttajaRepo, limiter, log)

	s.Organisaatiot = topologyservices.NewOrganisaatioService(
		organisaatioRepo, topologyupstream.NewOrganisaatioClient(cfg.Upstream), index, log,
	)
	s.Toimipaikat = topologyservices.NewToimipaikkaService(toimipaikkaRepo, s.Organisaatiot, index, log)

	s.Henkilot = henkiloservices.NewHenkiloService(
		henkiloRepo, henkiloupstream.NewHenkiloClient(cfg.Upstream), index, encryptor, log,
	)

	s.Lapset = vakaservices.NewLapsiService(
		lapsiRepo, s.Organisaatiot, paosRepo, s.Henkilot, index, feed, log,
	)
	s.Paatokset = vakaservices.NewPaatosService(
		paatosRepo, lapsiRepo, s.Organisaatiot, paosRepo, s.Toimipaikat, index, feed, log,
	)
	s.Maksutiedot = vakaservices.NewMaksutietoService(
		maksutietoRepo, lapsiRepo, paatosRepo, s.Organisaatiot, paosRepo,
		s.Toimipaikat, s.Henkilot, index, feed, log,
	)
	s.Projections = vakaservices.NewProjectionService(
		lapsiRepo, s.Organisaatiot, paosRepo, s.Paatokset, s.Maksutiedot, index, log,
	)
	s.Siirrot = vakaservices.NewSiirtoService(
		toimipaikkaRepo, s.Toimipaikat, s.Organisaatiot, paosRepo,
		lapsiRepo, paatosRepo, maksutietoRepo, kayttajaRepo, s.Henkilot,
		index, feed, log,
	)

	// The agreement lifecycle reprojects childcare permissions, so the
	// paos service closes the loop between the two modules.
	s.Paos = topologyservices.NewPaosService(
		paosRepo, s.Organisaatiot, toimipaikkaRepo, s.Projections, bus, log,
	)

	s.Tyontekijat = henkilostoservices.NewTyontekijaService(
		tyontekijaRepo, s.Organisaatiot, s.Henkilot, index, feed, log,
	)
	s.Palvelussuhteet = henkilostoservices.NewPalvelussuhdeService(
		palvelussuhdeRepo, tyontekijaRepo, s.Organisaatiot, s.Toimipaikat, index, feed, log,
	)
	s.Taydennyskoulutukset = henkilostoservices.NewTaydennyskoulutusService(
		koulutusRepo, tyontekijaRepo, palvelussuhdeRepo, s.Organisaatiot,
		s.Toimipaikat, index, feed, log,
	)

	s.Raportointi = raportointiservices.NewRaportointiService(tilastoRepo, log)
	return s, nil
}

func visibleCache(cfg *configuration.Configuration, log *logrus.Logger) (cache.VisibleIDs, error) {
	if cfg.Cache.Storage == "redis" {
		redisOpts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(redis.NewClient(redisOpts), cfg.Cache.TTL, logging.Component(log, "cache")), nil
	}
	return cache.NewMemory(cfg.Cache.TTL, clockwork.NewRealClock()), nil
}

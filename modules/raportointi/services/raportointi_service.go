package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/raportointi/domain/entities/tilasto"
	"github.com/iota-uz/varda/pkg/composables"
	"github.com/iota-uz/varda/pkg/serrors"
)

// RaportointiService answers temporal statistics questions. Every query
// runs inside one transaction so the multi-pass reads see a single
// consistent snapshot, and a cancelled request context aborts the
// transaction mid-pass.
type RaportointiService struct {
	repo tilasto.Repository
	log  *logrus.Entry
}

func NewRaportointiService(repo tilasto.Repository, log *logrus.Logger) *RaportointiService {
	return &RaportointiService{
		repo: repo,
		log:  log.WithField("component", "raportointi"),
	}
}

// VakaTilasto reports childcare counts for the given cut. A statistics
// date after the snapshot date is legal: the question is then what the
// snapshot predicted for that future date.
func (s *RaportointiService) VakaTilasto(ctx context.Context, leikkaus tilasto.Leikkaus) (tilasto.VakaTilasto, error) {
	if err := vetLeikkaus(leikkaus); err != nil {
		return tilasto.VakaTilasto{}, err
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (tilasto.VakaTilasto, error) {
		ids, err := s.repo.ActiveToimipaikkaIDs(txCtx, leikkaus)
		if err != nil {
			return tilasto.VakaTilasto{}, err
		}
		if len(ids) == 0 {
			return tilasto.VakaTilasto{Ryhmat: map[tilasto.VakaRyhma]int64{}}, nil
		}
		out, err := s.repo.VakaTilasto(txCtx, leikkaus, ids)
		if err != nil {
			return tilasto.VakaTilasto{}, err
		}
		s.log.WithFields(logrus.Fields{
			"poiminta_pvm":    leikkaus.PoimintaPvm.Format(time.DateOnly),
			"tilastointi_pvm": leikkaus.TilastointiPvm.Format(time.DateOnly),
			"lapsi_count":     out.LapsiCount,
		}).Info("vaka tilasto computed")
		return out, nil
	})
}

// HenkilostoTilasto reports personnel counts for the given cut. Roving
// employees count regardless of the active-unit pre-filter; stationary
// work locations must sit in a unit active on the statistics date.
func (s *RaportointiService) HenkilostoTilasto(ctx context.Context, leikkaus tilasto.Leikkaus) (tilasto.HenkilostoTilasto, error) {
	if err := vetLeikkaus(leikkaus); err != nil {
		return tilasto.HenkilostoTilasto{}, err
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) (tilasto.HenkilostoTilasto, error) {
		ids, err := s.repo.ActiveToimipaikkaIDs(txCtx, leikkaus)
		if err != nil {
			return tilasto.HenkilostoTilasto{}, err
		}
		out, err := s.repo.HenkilostoTilasto(txCtx, leikkaus, ids)
		if err != nil {
			return tilasto.HenkilostoTilasto{}, err
		}
		s.log.WithFields(logrus.Fields{
			"poiminta_pvm":     leikkaus.PoimintaPvm.Format(time.DateOnly),
			"tilastointi_pvm":  leikkaus.TilastointiPvm.Format(time.DateOnly),
			"tyontekija_count": out.TyontekijaCount,
		}).Info("henkilosto tilasto computed")
		return out, nil
	})
}

// Aloittaneet lists children whose placement, as known at poimintaPvm,
// started within [alkamisFrom, alkamisTo]. Serves the benefit-payment
// consumer, so only children with a person OID are returned.
func (s *RaportointiService) Aloittaneet(ctx context.Context, poimintaPvm, alkamisFrom, alkamisTo time.Time) ([]tilasto.Aloittanut, error) {
	if poimintaPvm.IsZero() || alkamisFrom.IsZero() || alkamisTo.IsZero() {
		return nil, serrors.InvariantViolated("aloittaneet requires all three dates")
	}
	if alkamisTo.Before(alkamisFrom) {
		return nil, serrors.InvariantViolated("alkamis window end precedes its start")
	}
	return composables.InTxResult(ctx, func(txCtx context.Context) ([]tilasto.Aloittanut, error) {
		return s.repo.Aloittaneet(txCtx, poimintaPvm, alkamisFrom, alkamisTo)
	})
}

func vetLeikkaus(l tilasto.Leikkaus) error {
	if l.PoimintaPvm.IsZero() || l.TilastointiPvm.IsZero() {
		return serrors.InvariantViolated("leikkaus requires both dates")
	}
	return nil
}

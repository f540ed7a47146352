package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
	"github.com/iota-uz/varda/pkg/composables"
)

// ProjectionService recomputes the ACL rows of everything hanging off a
// shared-custody agreement. The agreement engine calls it after a
// recording-party rotation so that write access follows the tallentaja.
type ProjectionService struct {
	lapset    lapsi.Repository
	orgs      OrganisaatioLookup
	oikeudet  OikeusLookup
	paatokset *PaatosService
	maksut    *MaksutietoService
	index     *acl.Index
	log       *logrus.Entry
}

func NewProjectionService(
	lapset lapsi.Repository,
	orgs OrganisaatioLookup,
	oikeudet OikeusLookup,
	paatokset *PaatosService,
	maksut *MaksutietoService,
	index *acl.Index,
	log *logrus.Logger,
) *ProjectionService {
	return &ProjectionService{
		lapset:    lapset,
		orgs:      orgs,
		oikeudet:  oikeudet,
		paatokset: paatokset,
		maksut:    maksut,
		index:     index,
		log:       log.WithField("component", "vaka-projection"),
	}
}

// ReprojectAgreement rewrites the projections of every child recorded
// under the (jarjestaja, tuottaja) pair, along with their decisions,
// placements and payments. Person read-through rows are additive and
// view-only, so they need no rewrite.
func (s *ProjectionService) ReprojectAgreement(ctx context.Context, jarjestajaID, tuottajaID int64) error {
	return composables.InTx(ctx, func(txCtx context.Context) error {
		children, err := s.lapset.ListPaosByAgreement(txCtx, jarjestajaID, tuottajaID)
		if err != nil {
			return err
		}
		for _, l := range children {
			if err := s.reprojectChild(txCtx, l); err != nil {
				return err
			}
		}
		s.log.WithFields(logrus.Fields{
			"jarjestaja_id": jarjestajaID,
			"tuottaja_id":   tuottajaID,
			"children":      len(children),
		}).Info("agreement reprojected")
		return nil
	})
}

func (s *ProjectionService) reprojectChild(ctx context.Context, l lapsi.Lapsi) error {
	grants, _, err := resolveChildGrants(ctx, s.orgs, s.oikeudet, l)
	if err != nil {
		return err
	}
	ref := acl.Ref{ContentType: lapsi.ContentType, ObjectID: l.ID()}
	if err := s.index.Apply(ctx, ref, acl.Projection{Domains: vakaDomains, Grants: grants}); err != nil {
		return err
	}

	paatokset, err := s.paatokset.ListByLapsi(ctx, l.ID())
	if err != nil {
		return err
	}
	for _, p := range paatokset {
		if err := s.paatokset.ReprojectPaatos(ctx, p, l); err != nil {
			return err
		}
	}

	maksut, err := s.maksut.ListByLapsi(ctx, l.ID())
	if err != nil {
		return err
	}
	for _, m := range maksut {
		if err := s.maksut.Reproject(ctx, m, l); err != nil {
			return err
		}
	}
	return nil
}

package server

import (
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/varda/modules/raportointi/domain/entities/tilasto"
	raportointiservices "github.com/iota-uz/varda/modules/raportointi/services"
	"github.com/iota-uz/varda/pkg/serrors"
)

// ReportingController serves the statistics endpoints consumed by the
// education statistics service and the benefit-payment agency. Every
// route sits behind certificate authentication.
type ReportingController struct {
	tilastot *raportointiservices.RaportointiService
	log      *logrus.Entry
}

func NewReportingController(tilastot *raportointiservices.RaportointiService, log *logrus.Logger) *ReportingController {
	return &ReportingController{
		tilastot: tilastot,
		log:      log.WithField("component", "reporting.controller"),
	}
}

func (c *ReportingController) Register(r *mux.Router, auth mux.MiddlewareFunc) {
	sub := r.PathPrefix("/api/reporting/v1").Subrouter()
	sub.Use(auth)
	sub.HandleFunc("/tilastot/varhaiskasvatus", c.vakaTilasto).Methods(http.MethodGet)
	sub.HandleFunc("/tilastot/henkilosto", c.henkilostoTilasto).Methods(http.MethodGet)
	sub.HandleFunc("/kela/etuusmaksatus/aloittaneet", c.aloittaneet).Methods(http.MethodGet)
}

type vakaRyhmaBody struct {
	Jarjestamismuoto string `json:"jarjestamismuoto"`
	PaosKytkin       bool   `json:"paos_kytkin"`
	LapsiCount       int64  `json:"lapsi_count"`
}

type vakaTilastoBody struct {
	PoimintaPvm    string          `json:"poiminta_pvm"`
	TilastointiPvm string          `json:"tilastointi_pvm"`
	LapsiCount     int64           `json:"lapsi_count"`
	PaosLapsiCount int64           `json:"paos_lapsi_count"`
	Ryhmat         []vakaRyhmaBody `json:"ryhmat"`
}

func (c *ReportingController) vakaTilasto(w http.ResponseWriter, r *http.Request) {
	leikkaus, err := parseLeikkaus(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := c.tilastot.VakaTilasto(r.Context(), leikkaus)
	if err != nil {
		c.log.WithError(err).Warn("vaka tilasto failed")
		writeError(w, err)
		return
	}

	body := vakaTilastoBody{
		PoimintaPvm:    leikkaus.PoimintaPvm.Format(time.DateOnly),
		TilastointiPvm: leikkaus.TilastointiPvm.Format(time.DateOnly),
		LapsiCount:     out.LapsiCount,
		PaosLapsiCount: out.PaosCount,
		Ryhmat:         make([]vakaRyhmaBody, 0, len(out.Ryhmat)),
	}
	for ryhma, count := range out.Ryhmat {
		body.Ryhmat = append(body.Ryhmat, vakaRyhmaBody{
			Jarjestamismuoto: ryhma.Jarjestamismuoto,
			PaosKytkin:       ryhma.Paos,
			LapsiCount:       count,
		})
	}
	sort.Slice(body.Ryhmat, func(i, j int) bool {
		if body.Ryhmat[i].Jarjestamismuoto != body.Ryhmat[j].Jarjestamismuoto {
			return body.Ryhmat[i].Jarjestamismuoto < body.Ryhmat[j].Jarjestamismuoto
		}
		return !body.Ryhmat[i].PaosKytkin && body.Ryhmat[j].PaosKytkin
	})
	writeJSON(w, http.StatusOK, body)
}

type henkilostoRyhmaBody struct {
	TehtavanimikeKoodi string `json:"tehtavanimike_koodi"`
	KelpoisuusKytkin   bool   `json:"kelpoisuus_kytkin"`
	TyontekijaCount    int64  `json:"tyontekija_count"`
}

type henkilostoTilastoBody struct {
	PoimintaPvm     string                `json:"poiminta_pvm"`
	TilastointiPvm  string                `json:"tilastointi_pvm"`
	TyontekijaCount int64                 `json:"tyontekija_count"`
	Ryhmat          []henkilostoRyhmaBody `json:"ryhmat"`
}

func (c *ReportingController) henkilostoTilasto(w http.ResponseWriter, r *http.Request) {
	leikkaus, err := parseLeikkaus(r)
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := c.tilastot.HenkilostoTilasto(r.Context(), leikkaus)
	if err != nil {
		c.log.WithError(err).Warn("henkilosto tilasto failed")
		writeError(w, err)
		return
	}

	body := henkilostoTilastoBody{
		PoimintaPvm:     leikkaus.PoimintaPvm.Format(time.DateOnly),
		TilastointiPvm:  leikkaus.TilastointiPvm.Format(time.DateOnly),
		TyontekijaCount: out.TyontekijaCount,
		Ryhmat:          make([]henkilostoRyhmaBody, 0, len(out.Ryhmat)),
	}
	for ryhma, count := range out.Ryhmat {
		body.Ryhmat = append(body.Ryhmat, henkilostoRyhmaBody{
			TehtavanimikeKoodi: ryhma.TehtavanimikeKoodi,
			KelpoisuusKytkin:   ryhma.Kelpoisuus,
			TyontekijaCount:    count,
		})
	}
	sort.Slice(body.Ryhmat, func(i, j int) bool {
		if body.Ryhmat[i].TehtavanimikeKoodi != body.Ryhmat[j].TehtavanimikeKoodi {
			return body.Ryhmat[i].TehtavanimikeKoodi < body.Ryhmat[j].TehtavanimikeKoodi
		}
		return !body.Ryhmat[i].KelpoisuusKytkin && body.Ryhmat[j].KelpoisuusKytkin
	})
	writeJSON(w, http.StatusOK, body)
}

type aloittanutBody struct {
	HenkiloOID string `json:"henkilo_oid"`
	AlkamisPvm string `json:"alkamis_pvm"`
}

func (c *ReportingController) aloittaneet(w http.ResponseWriter, r *http.Request) {
	poiminta, err := dateParam(r, "poiminta_pvm", time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := requiredDateParam(r, "alkamis_pvm_alku")
	if err != nil {
		writeError(w, err)
		return
	}
	to, err := requiredDateParam(r, "alkamis_pvm_loppu")
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := c.tilastot.Aloittaneet(r.Context(), poiminta, from, to)
	if err != nil {
		c.log.WithError(err).Warn("aloittaneet failed")
		writeError(w, err)
		return
	}
	body := make([]aloittanutBody, 0, len(out))
	for _, a := range out {
		body = append(body, aloittanutBody{
			HenkiloOID: a.HenkiloOID,
			AlkamisPvm: a.AlkamisPvm.Format(time.DateOnly),
		})
	}
	writeJSON(w, http.StatusOK, body)
}

// parseLeikkaus reads the two-date cut from the query string. Both dates
// default to today; tilastointi_pvm alone defaults to poiminta_pvm.
func parseLeikkaus(r *http.Request) (tilasto.Leikkaus, error) {
	poiminta, err := dateParam(r, "poiminta_pvm", time.Now())
	if err != nil {
		return tilasto.Leikkaus{}, err
	}
	tilastointi, err := dateParam(r, "tilastointi_pvm", poiminta)
	if err != nil {
		return tilasto.Leikkaus{}, err
	}
	return tilasto.Leikkaus{PoimintaPvm: poiminta, TilastointiPvm: tilastointi}, nil
}

func dateParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback.UTC().Truncate(24 * time.Hour), nil
	}
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, serrors.InvariantViolated("%s must be a yyyy-mm-dd date", name)
	}
	return d, nil
}

func requiredDateParam(r *http.Request, name string) (time.Time, error) {
	if r.URL.Query().Get(name) == "" {
		return time.Time{}, serrors.InvariantViolated("%s is required", name)
	}
	return dateParam(r, name, time.Time{})
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/ingest"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

type extractBody struct {
	FileURL string `json:"fileUrl"`
	RawKind string `json:"rawKind,omitempty"`
	OwnerID string `json:"ownerId,omitempty"`
	Persist *bool  `json:"persist,omitempty"`
	// looksmaxxer only
	Mode string `json:"mode,omitempty"`
}

type extractResponse struct {
	Domain   string                   `json:"domain"`
	Record   json.RawMessage          `json:"record"`
	FellBack bool                     `json:"fellBack"`
	Cause    string                   `json:"cause,omitempty"`
	JobID    string                   `json:"jobId,omitempty"`
	Stored   *repository.StoredRecord `json:"stored,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

var (
	errFileURLRequired = errors.New("File URL required")
	errFileURLScheme   = errors.New("fileUrl must be an http(s) or data URL")
)

// run validates the body and calls the pipeline, persisting when asked.
func (a *api) run(r *http.Request, domain constants.Domain, body extractBody) (extraction.Outcome, error) {
	if strings.TrimSpace(body.FileURL) == "" {
		return extraction.Outcome{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, errFileURLRequired)
	}
	if !ingest.IsNetworkRef(body.FileURL) {
		return extraction.Outcome{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, errFileURLScheme)
	}
	req := pipeline.ExtractionRequest{
		Domain:    domain,
		SourceRef: strings.TrimSpace(body.FileURL),
		RawKind:   constants.RawKind(body.RawKind),
	}
	if req.RawKind != "" && !req.RawKind.Valid() {
		return extraction.Outcome{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, errors.New("rawKind must be text-document or image"))
	}

	persist := a.PersistByDefault
	if body.Persist != nil {
		persist = *body.Persist
	}
	if persist {
		return a.Extraction.ExtractAndStore(r.Context(), req, body.OwnerID)
	}
	res, err := a.Extraction.Extract(r.Context(), req)
	return extraction.Outcome{Result: res}, err
}

func (a *api) respondExtract(w http.ResponseWriter, out extraction.Outcome, err error) {
	resp := extractResponse{
		Domain:   string(out.Result.Domain),
		FellBack: out.Result.FellBack,
		JobID:    out.JobID,
		Stored:   out.Stored,
	}
	if out.Result.Record != nil {
		resp.Record, _ = json.Marshal(out.Result.Record)
	}
	if out.Result.Cause != nil {
		resp.Cause = out.Result.Cause.Error()
	}
	if err != nil {
		resp.Error = err.Error()
		status := common.HTTPStatus(err)
		if errors.Is(err, extraction.ErrPersist) {
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /api/extract/{domain}
func (a *api) handleExtract(w http.ResponseWriter, r *http.Request) {
	domain, ok := constants.ParseDomain(chi.URLParam(r, "domain"))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown domain: "+string(domain))
		return
	}
	var body extractBody
	if !decodeBody(w, r, &body) {
		return
	}
	out, err := a.run(r, domain, body)
	a.respondExtract(w, out, err)
}

// handleLegacyParse serves the per-agent routes, which answer with the bare
// record object or {"error": ...}.
func (a *api) handleLegacyParse(name string) http.HandlerFunc {
	domain, _ := constants.ParseDomain(name)
	return func(w http.ResponseWriter, r *http.Request) {
		var body extractBody
		if !decodeBody(w, r, &body) {
			return
		}
		out, err := a.run(r, domain, body)
		a.respondLegacy(w, out, err)
	}
}

// POST /api/looksmaxxer/analyze {fileUrl, mode}
func (a *api) handleLooksAnalyze(w http.ResponseWriter, r *http.Request) {
	var body extractBody
	if !decodeBody(w, r, &body) {
		return
	}
	domain := constants.DomainPhysique
	if strings.EqualFold(strings.TrimSpace(body.Mode), "face") {
		domain = constants.DomainFace
	}
	out, err := a.run(r, domain, body)
	a.respondLegacy(w, out, err)
}

func (a *api) respondLegacy(w http.ResponseWriter, out extraction.Outcome, err error) {
	if err != nil && !errors.Is(err, extraction.ErrPersist) {
		msg := err.Error()
		switch {
		case errors.Is(err, errFileURLRequired):
			msg = errFileURLRequired.Error()
		case errors.Is(err, errFileURLScheme):
			msg = errFileURLScheme.Error()
		}
		writeError(w, common.HTTPStatus(err), msg)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out.Result.Record)
}

// GET /api/jobs/{id}
func (a *api) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, common.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

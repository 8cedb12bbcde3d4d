package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/pipeline"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/services/extraction"
)

const (
	maxBodyBytes    = 1 << 20
	requestIDHeader = "X-Request-Id"
)

// Extractor is the extraction surface both transports call.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.ExtractionRequest) (pipeline.Result, error)
	ExtractAndStore(ctx context.Context, req pipeline.ExtractionRequest, ownerID string) (extraction.Outcome, error)
}

// OTPService issues and verifies one-time codes.
type OTPService interface {
	Issue(ctx context.Context, email, purpose string) (*entity.OTP, error)
	Verify(ctx context.Context, email, code, purpose string) error
}

// Exporter renders stored records as XLSX.
type Exporter interface {
	ExportTransactionsXLSX(ctx context.Context, ownerID string, from, to *time.Time) ([]byte, error)
	ExportContactsXLSX(ctx context.Context, ownerID string) ([]byte, error)
}

// JobReader looks up extract job rows.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*entity.ExtractJob, error)
}

// Deps are the collaborators behind the HTTP API. Nil optional services
// leave their routes unregistered.
type Deps struct {
	Extraction Extractor
	OTP        OTPService
	Export     Exporter
	Jobs       JobReader
	Ping       func(ctx context.Context) error
	// PersistByDefault applies when a request does not set persist.
	PersistByDefault bool
	Logger           *slog.Logger
}

type api struct {
	Deps
	log *slog.Logger
}

// NewHTTPHandler builds the chi router for the HTTP API.
func NewHTTPHandler(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	a := &api{Deps: d, log: d.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if d.Extraction != nil {
			r.Post("/extract/{domain}", a.handleExtract)
			for _, name := range []string{"careermaxxer", "finmaxxer", "rizzmaxxer", "studymaxxer"} {
				r.Post("/"+name+"/parse", a.handleLegacyParse(name))
			}
			r.Post("/looksmaxxer/analyze", a.handleLooksAnalyze)
		}
		if d.OTP != nil {
			r.Post("/otp/send", a.handleOTPSend)
			r.Post("/otp/verify", a.handleOTPVerify)
		}
		if d.Export != nil {
			r.Get("/export/transactions.xlsx", a.handleExportTransactions)
			r.Get("/export/contacts.xlsx", a.handleExportContacts)
		}
		if d.Jobs != nil {
			r.Get("/jobs/{id}", a.handleGetJob)
		}
	})
	return r
}

// requestLogger tags the request with an id (the caller's X-Request-Id or a
// new uuid) and logs one line per request.
func (a *api) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := common.WithRequestID(r.Context(), id)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		a.log.Info("http.request",
			"req_id", common.RequestIDFromContext(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			a.log.Warn("http.health.db_unavailable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// Package ingest turns a source reference into model input: bounded plain
// text for documents, a fetchable locator for images.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/llm"
)

// DefaultMaxChars bounds document text sent to the model.
const DefaultMaxChars = 30000

// Content is the adapted input for one extraction.
type Content struct {
	Kind      constants.RawKind
	Text      string // text-document only
	ImageURL  string // image only
	Pages     int
	Truncated bool
	SHA256    string // hex digest of fetched bytes; empty when nothing was fetched
	MimeType  string
}

type Config struct {
	MaxChars     int
	MaxBytes     int64
	FetchTimeout time.Duration
	// AllowLocal permits file:// URLs and bare paths. Only trusted callers
	// such as the CLI set it; otherwise sources must be http(s) or data URLs.
	AllowLocal   bool
}

// Adapter fetches and converts source artifacts. It keeps no per-call state.
type Adapter struct {
	cfg     Config
	fetcher *Fetcher
	pdf     TextExtractor
	log     *slog.Logger
}

func New(cfg Config, pdf TextExtractor, logger *slog.Logger) *Adapter {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if pdf == nil {
		pdf = NewPDFCPUExtractor()
	}
	return &Adapter{
		cfg:     cfg,
		fetcher: NewFetcher(&http.Client{Timeout: cfg.FetchTimeout}, cfg.MaxBytes, logger),
		pdf:     pdf,
		log:     logger,
	}
}

// NewFromConfig wires the extractor named in cfg.
func NewFromConfig(cfg common.IngestConfig, logger *slog.Logger) *Adapter {
	var pdf TextExtractor
	if cfg.PDFExtractor == "pdftotext" {
		pdf = NewPdftotextExtractor(nil, cfg.Pdftotext, logger)
	}
	return New(Config{
		MaxChars:     cfg.MaxChars,
		MaxBytes:     cfg.MaxBytes,
		FetchTimeout: cfg.FetchTimeout.Duration,
		AllowLocal:   cfg.AllowLocal,
	}, pdf, logger)
}

// WithHTTPClient replaces the client used for remote fetches.
func (a *Adapter) WithHTTPClient(h *http.Client) *Adapter {
	a.fetcher.client = h
	return a
}

// Adapt produces model input for sourceRef. Fetch problems are FetchFailure,
// conversion problems ExtractionFailure; both are StageErrors at the ingest
// stage.
func (a *Adapter) Adapt(ctx context.Context, sourceRef string, kind constants.RawKind) (Content, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return Content{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, fmt.Errorf("source reference is required"))
	}
	if !a.cfg.AllowLocal && !IsNetworkRef(sourceRef) {
		a.log.Warn("ingest.source.rejected", "source", redact(sourceRef))
		return Content{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, fmt.Errorf("source must be an http(s) or data URL"))
	}
	switch kind {
	case constants.RawKindImage:
		return a.adaptImage(ctx, sourceRef)
	case constants.RawKindTextDocument:
		return a.adaptDocument(ctx, sourceRef)
	default:
		return Content{}, common.NewStageError(common.StageIngest, common.ErrInvalidInput, fmt.Errorf("unknown raw kind %q", kind))
	}
}

// adaptImage passes remote and data URLs through untouched. Local files are
// inlined as data URLs since the collaborator cannot reach them.
func (a *Adapter) adaptImage(ctx context.Context, ref string) (Content, error) {
	if isRemote(ref) || llm.IsDataURL(ref) {
		a.log.Debug("ingest.image.passthrough", "source", redact(ref))
		return Content{Kind: constants.RawKindImage, ImageURL: ref}, nil
	}

	f, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		return Content{}, err
	}
	mt := f.MimeType
	if !strings.HasPrefix(mt, "image/") {
		mt = llm.MimeForPath(f.Path)
	}
	a.log.Info("ingest.image.inlined", "path", f.Path, "bytes", len(f.Data), "mime", mt)
	return Content{
		Kind:     constants.RawKindImage,
		ImageURL: llm.EncodeDataURL(mt, f.Data),
		SHA256:   f.SHA256,
		MimeType: mt,
	}, nil
}

func (a *Adapter) adaptDocument(ctx context.Context, ref string) (Content, error) {
	start := time.Now()
	f, err := a.fetcher.Fetch(ctx, ref)
	if err != nil {
		return Content{}, err
	}

	var (
		text  string
		pages int
	)
	switch {
	case bytes.HasPrefix(bytes.TrimLeft(f.Data, "\x00\t\r\n "), []byte("%PDF")):
		text, pages, err = a.pdf.ExtractText(ctx, f.Data)
		if err != nil {
			return Content{}, extractionFailure(fmt.Errorf("pdf to text: %w", err))
		}
	case isHTML(f.MimeType):
		text, err = htmlText(f.Data, ref)
		if err != nil {
			return Content{}, extractionFailure(err)
		}
		pages = 1
	case strings.HasPrefix(f.MimeType, "text/"):
		text = strings.ToValidUTF8(string(f.Data), "")
		pages = 1
	default:
		return Content{}, extractionFailure(fmt.Errorf("unsupported document type %s", f.MimeType))
	}

	text = normalizeWhitespace(text)
	if text == "" {
		return Content{}, extractionFailure(fmt.Errorf("document has no extractable text"))
	}
	text, truncated := truncateRunes(text, a.cfg.MaxChars)

	a.log.Info("ingest.document.ok",
		"source", redact(ref),
		"pages", pages,
		"chars", utf8.RuneCountInString(text),
		"truncated", truncated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Content{
		Kind:      constants.RawKindTextDocument,
		Text:      text,
		Pages:     pages,
		Truncated: truncated,
		SHA256:    f.SHA256,
		MimeType:  f.MimeType,
	}, nil
}

func extractionFailure(err error) error {
	return common.NewStageError(common.StageIngest, common.ErrExtractionFailure, err)
}

var (
	spaceRun   = regexp.MustCompile(`[ \t\f\v\r]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = spaceRun.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " \n", "\n")
	s = strings.ReplaceAll(s, "\n ", "\n")
	s = newlineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos], true
		}
		i++
	}
	return s, false
}

// IsNetworkRef reports whether ref is an http(s) or data URL, the only
// forms accepted from network callers.
func IsNetworkRef(ref string) bool {
	ref = strings.TrimSpace(ref)
	return isRemote(ref) || llm.IsDataURL(ref)
}

func isRemote(ref string) bool {
	l := strings.ToLower(ref)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// redact drops query strings, which often carry signed-URL tokens.
func redact(ref string) string {
	if llm.IsDataURL(ref) {
		return "data:..."
	}
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		return ref[:i]
	}
	return ref
}

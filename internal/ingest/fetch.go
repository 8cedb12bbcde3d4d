package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
)

// Fetched is the raw artifact behind a source reference.
type Fetched struct {
	Path     string // local path, or the URL for remote sources
	Data     []byte
	MimeType string
	SHA256   string
}

// Fetcher reads artifacts from http(s) URLs, file:// URLs or local paths.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	log      *slog.Logger
}

func NewFetcher(client *http.Client, maxBytes int64, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, maxBytes: maxBytes, log: logger}
}

// Fetch retrieves ref. Every failure is a FetchFailure at the ingest stage.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (Fetched, error) {
	var (
		out Fetched
		err error
	)
	if isRemote(ref) {
		out, err = f.fetchHTTP(ctx, ref)
	} else {
		out, err = f.readLocal(ref)
	}
	if err != nil {
		f.log.Warn("ingest.fetch.failed", "source", redact(ref), "error", err)
		return Fetched{}, common.NewStageError(common.StageIngest, common.ErrFetchFailure, err)
	}

	sum := sha256.Sum256(out.Data)
	out.SHA256 = hex.EncodeToString(sum[:])
	if out.MimeType == "" || out.MimeType == "application/octet-stream" {
		out.MimeType = sniff(out.Data)
	}
	f.log.Debug("ingest.fetch.ok", "source", redact(ref), "bytes", len(out.Data), "mime", out.MimeType)
	return out, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) (Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return Fetched{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Fetched{}, fmt.Errorf("get: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			f.log.Warn("ingest.fetch.body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		return Fetched{}, fmt.Errorf("get %s: status %d", redact(ref), resp.StatusCode)
	}
	data, err := f.readLimited(resp.Body)
	if err != nil {
		return Fetched{}, err
	}
	mt := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return Fetched{Path: ref, Data: data, MimeType: strings.TrimSpace(mt)}, nil
}

func (f *Fetcher) readLocal(ref string) (Fetched, error) {
	path := ref
	if strings.HasPrefix(ref, "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return Fetched{}, fmt.Errorf("parse file url: %w", err)
		}
		path = u.Path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Fetched{}, fmt.Errorf("abs path: %w", err)
	}

	file, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Fetched{}, fmt.Errorf("file not found: %s", abs)
		}
		return Fetched{}, fmt.Errorf("open: %w", err)
	}
	defer func(file *os.File) {
		if err := file.Close(); err != nil {
			f.log.Warn("ingest.fetch.file_close_error", "path", abs, "error", err)
		}
	}(file)

	st, err := file.Stat()
	if err != nil {
		return Fetched{}, fmt.Errorf("stat: %w", err)
	}
	if st.IsDir() {
		return Fetched{}, fmt.Errorf("%s is a directory", abs)
	}
	data, err := f.readLimited(file)
	if err != nil {
		return Fetched{}, err
	}
	return Fetched{Path: abs, Data: data}, nil
}

func (f *Fetcher) readLimited(r io.Reader) ([]byte, error) {
	if f.maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("artifact exceeds %d bytes", f.maxBytes)
	}
	return data, nil
}

func sniff(data []byte) string {
	mt := http.DetectContentType(data)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

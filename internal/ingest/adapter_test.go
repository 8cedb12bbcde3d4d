package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/common"
)

// buildTextPDF returns a minimal one-page PDF showing text with Helvetica.
func buildTextPDF(text string) []byte {
	escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(text)
	stream := "BT\n/F1 12 Tf\n72 720 Td\n(" + escaped + ") Tj\nET"

	var b strings.Builder
	offsets := make([]int, 6)
	b.WriteString("%PDF-1.4\n")
	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	offsets[2] = b.Len()
	b.WriteString("2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n")
	offsets[3] = b.Len()
	b.WriteString("3 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>\nendobj\n")
	offsets[4] = b.Len()
	b.WriteString("4 0 obj\n<< /Length " + strconv.Itoa(len(stream)) + " >>\nstream\n" + stream + "\nendstream\nendobj\n")
	offsets[5] = b.Len()
	b.WriteString("5 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n")

	xref := b.Len()
	b.WriteString("xref\n0 6\n0000000000 65535 f \n")
	for i := 1; i <= 5; i++ {
		b.WriteString(leftPad(strconv.Itoa(offsets[i]), 10) + " 00000 n \n")
	}
	b.WriteString("trailer\n<< /Size 6 /Root 1 0 R >>\nstartxref\n" + strconv.Itoa(xref) + "\n%%EOF\n")
	return []byte(b.String())
}

func leftPad(s string, n int) string {
	return strings.Repeat("0", n-len(s)) + s
}

type stubExtractor struct {
	text  string
	pages int
	err   error
	calls int
}

func (s *stubExtractor) ExtractText(context.Context, []byte) (string, int, error) {
	s.calls++
	return s.text, s.pages, s.err
}

func objectStore(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/resume.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Jane Doe\n\n\n\nGo   developer\t\tKubernetes"))
	})
	mux.HandleFunc("/notes.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write(buildTextPDF("Photosynthesis converts light"))
	})
	mux.HandleFunc("/syllabus.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(syllabusHTML))
	})
	mux.HandleFunc("/blob.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x00, 0x01, 0x02, 0xff})
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such object", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAdapt_RemoteText(t *testing.T) {
	srv := objectStore(t)
	a := New(Config{}, &stubExtractor{}, nil)

	c, err := a.Adapt(context.Background(), srv.URL+"/resume.txt?token=abc", constants.RawKindTextDocument)
	require.NoError(t, err)
	assert.Equal(t, constants.RawKindTextDocument, c.Kind)
	assert.Equal(t, "Jane Doe\n\nGo developer Kubernetes", c.Text)
	assert.False(t, c.Truncated)
	assert.Len(t, c.SHA256, 64)
}

const syllabusHTML = `<!DOCTYPE html><html><head><title>Cell Biology Week 3</title></head>
<body><article>
<h1>Cell Biology Week 3</h1>
<p>Mitochondria produce most of the chemical energy needed to power the biochemical reactions of the cell. This energy is stored in a molecule called adenosine triphosphate, usually shortened to ATP.</p>
<p>Chloroplasts are found in plant cells and carry out photosynthesis, converting light energy into chemical energy stored in glucose. Both organelles contain their own DNA, which supports the endosymbiotic theory of their origin.</p>
</article></body></html>`

func TestAdapt_HTMLUsesReadableText(t *testing.T) {
	srv := objectStore(t)
	ex := &stubExtractor{}
	a := New(Config{}, ex, nil)

	c, err := a.Adapt(context.Background(), srv.URL+"/syllabus.html", constants.RawKindTextDocument)
	require.NoError(t, err)
	assert.Contains(t, c.Text, "Mitochondria produce most of the chemical energy")
	assert.NotContains(t, c.Text, "<p>")
	assert.Zero(t, ex.calls)
}

func TestAdapt_PDFUsesExtractor(t *testing.T) {
	srv := objectStore(t)
	stub := &stubExtractor{text: "page one\n\npage two", pages: 2}
	a := New(Config{}, stub, nil)

	c, err := a.Adapt(context.Background(), srv.URL+"/notes.pdf", constants.RawKindTextDocument)
	require.NoError(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, 2, c.Pages)
	assert.Equal(t, "page one\n\npage two", c.Text)
}

func TestAdapt_PDFCPU(t *testing.T) {
	srv := objectStore(t)
	a := New(Config{}, NewPDFCPUExtractor(), nil)

	c, err := a.Adapt(context.Background(), srv.URL+"/notes.pdf", constants.RawKindTextDocument)
	if err != nil {
		assert.ErrorIs(t, err, common.ErrExtractionFailure)
		return
	}
	assert.Contains(t, c.Text, "Photosynthesis")
}

func TestAdapt_Truncates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "long.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("é", 50)), 0o644))

	a := New(Config{MaxChars: 10, AllowLocal: true}, nil, nil)
	c, err := a.Adapt(context.Background(), path, constants.RawKindTextDocument)
	require.NoError(t, err)
	assert.True(t, c.Truncated)
	assert.Equal(t, 10, utf8.RuneCountInString(c.Text))
}

func TestAdapt_Failures(t *testing.T) {
	srv := objectStore(t)
	failing := &stubExtractor{err: errors.New("corrupt xref")}
	empty := &stubExtractor{text: "  \n "}

	tests := []struct {
		name string
		pdf  TextExtractor
		ref  string
		kind constants.RawKind
		want error
	}{
		{"not found", nil, srv.URL + "/missing.pdf", constants.RawKindTextDocument, common.ErrFetchFailure},
		{"missing local file", nil, "/nonexistent/lmx/resume.pdf", constants.RawKindTextDocument, common.ErrFetchFailure},
		{"missing local image", nil, "file:///nonexistent/lmx/face.png", constants.RawKindImage, common.ErrFetchFailure},
		{"corrupt pdf", failing, srv.URL + "/notes.pdf", constants.RawKindTextDocument, common.ErrExtractionFailure},
		{"empty pdf text", empty, srv.URL + "/notes.pdf", constants.RawKindTextDocument, common.ErrExtractionFailure},
		{"unsupported binary", nil, srv.URL + "/blob.bin", constants.RawKindTextDocument, common.ErrExtractionFailure},
		{"empty ref", nil, " ", constants.RawKindImage, common.ErrInvalidInput},
		{"unknown kind", nil, srv.URL + "/resume.txt", constants.RawKind("video"), common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(Config{AllowLocal: true}, tt.pdf, nil)
			_, err := a.Adapt(context.Background(), tt.ref, tt.kind)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			stage, ok := common.StageOf(err)
			require.True(t, ok)
			assert.Equal(t, common.StageIngest, stage)
		})
	}
}

func TestAdapt_RejectsLocalSourcesByDefault(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("DB_PASSWORD=hunter2"), 0o600))

	stub := &stubExtractor{text: "x"}
	a := New(Config{}, stub, nil)
	for _, ref := range []string{secret, "file://" + secret, "ftp://example.com/a.pdf"} {
		for _, kind := range []constants.RawKind{constants.RawKindTextDocument, constants.RawKindImage} {
			c, err := a.Adapt(context.Background(), ref, kind)
			require.Error(t, err, ref)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
			assert.Empty(t, c.Text)
			assert.Empty(t, c.ImageURL)
		}
	}
	assert.Zero(t, stub.calls)

	c, err := New(Config{AllowLocal: true}, stub, nil).Adapt(context.Background(), secret, constants.RawKindTextDocument)
	require.NoError(t, err)
	assert.Equal(t, "DB_PASSWORD=hunter2", c.Text)
}

func TestIsNetworkRef(t *testing.T) {
	assert.True(t, IsNetworkRef("https://cdn.example.com/a.pdf"))
	assert.True(t, IsNetworkRef(" HTTP://cdn.example.com/a.pdf"))
	assert.True(t, IsNetworkRef("data:image/png;base64,AAAA"))
	assert.False(t, IsNetworkRef("/etc/passwd"))
	assert.False(t, IsNetworkRef("file:///etc/passwd"))
	assert.False(t, IsNetworkRef("../../etc/passwd"))
}

func TestAdapt_TooLarge(t *testing.T) {
	srv := objectStore(t)
	a := New(Config{MaxBytes: 16}, &stubExtractor{text: "x"}, nil)
	_, err := a.Adapt(context.Background(), srv.URL+"/notes.pdf", constants.RawKindTextDocument)
	assert.ErrorIs(t, err, common.ErrFetchFailure)
}

func TestAdapt_Images(t *testing.T) {
	a := New(Config{AllowLocal: true}, nil, nil)

	remote := "https://storage.example.com/receipts/r1.jpg?sig=xyz"
	c, err := a.Adapt(context.Background(), remote, constants.RawKindImage)
	require.NoError(t, err)
	assert.Equal(t, remote, c.ImageURL)

	dataURL := "data:image/png;base64,iVBORw0KGgo="
	c, err = a.Adapt(context.Background(), dataURL, constants.RawKindImage)
	require.NoError(t, err)
	assert.Equal(t, dataURL, c.ImageURL)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	path := filepath.Join(t.TempDir(), "face.png")
	require.NoError(t, os.WriteFile(path, png, 0o644))
	c, err = a.Adapt(context.Background(), path, constants.RawKindImage)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ImageURL, "data:image/png;base64,"))
	assert.Equal(t, "image/png", c.MimeType)
}

func TestPdftotextExtractor(t *testing.T) {
	r := &stubRunner{stdout: []byte("Invoice 42\fPage two\f")}
	e := NewPdftotextExtractor(r, "", nil)

	text, pages, err := e.ExtractText(context.Background(), buildTextPDF("x"))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	assert.Equal(t, "Invoice 42\n\nPage two", text)
	assert.Equal(t, "pdftotext", r.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}, r.args[:5])
	assert.Equal(t, "-", r.args[len(r.args)-1])

	_, statErr := os.Stat(r.args[5])
	assert.True(t, os.IsNotExist(statErr), "temp file should be removed")

	r.err = errors.New("exit status 1")
	_, _, err = e.ExtractText(context.Background(), []byte("%PDF"))
	assert.Error(t, err)
}

type stubRunner struct {
	name   string
	args   []string
	stdout []byte
	err    error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	return s.stdout, []byte("stderr"), s.err
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 720 Td\n(Total \\(USD\\)) Tj\n0 -14 Td\n[(10) -250 (.50)] TJ\nT*\n(Thank\\040you) '\nET")
	assert.Equal(t, "Total (USD) 10.50\n\nThank you", textFromContentStream(stream))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.pdf", "b.JPG", "c.docx", ".hidden.png", "sub/d.txt", ".git/e.png"} {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	files, stats, err := ScanDirectory(root, "", true)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stats.Matched)
	var names []string
	for _, f := range files {
		rel, _ := filepath.Rel(root, f.Path)
		names = append(names, rel)
	}
	assert.ElementsMatch(t, []string{"a.pdf", "b.JPG", filepath.Join("sub", "d.txt")}, names)

	images, _, err := ScanDirectory(root, constants.RawKindImage, false)
	require.NoError(t, err)
	assert.Len(t, images, 3)

	_, _, err = ScanDirectory("", "", true)
	assert.Error(t, err)
}

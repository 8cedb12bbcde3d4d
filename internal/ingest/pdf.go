package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// TextExtractor converts PDF bytes to plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (text string, pages int, err error)
}

// PDFCPUExtractor reads text operators out of page content streams. It needs
// no external binaries but only handles PDFs with literal text strings.
type PDFCPUExtractor struct{}

func NewPDFCPUExtractor() *PDFCPUExtractor { return &PDFCPUExtractor{} }

func (PDFCPUExtractor) ExtractText(ctx context.Context, data []byte) (string, int, error) {
	conf := model.NewDefaultConfiguration()
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, fmt.Errorf("pdfcpu read: %w", err)
	}

	var b strings.Builder
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		text := pageText(pctx, pageNr)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), pctx.PageCount, nil
}

func pageText(pctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(pctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return textFromContentStream(data)
}

// pdfString matches a literal string operand: (text here), allowing escaped
// parentheses.
var pdfString = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream collects the operands of Tj, TJ, ' and " and turns
// positioning operators into whitespace.
func textFromContentStream(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfString.FindAllSubmatch(line, -1) {
				sb.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")), bytes.HasSuffix(line, []byte(`"`)):
			if bytes.Contains(line, []byte("(")) {
				sb.WriteByte('\n')
				for _, m := range pdfString.FindAllSubmatch(line, -1) {
					sb.WriteString(decodePDFString(m[1]))
				}
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")), bytes.Equal(line, []byte("ET")):
			sb.WriteByte('\n')
		}
	}
	return cleanText(sb.String())
}

// decodePDFString resolves backslash escapes, including octal codes.
func decodePDFString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c < '0' || c > '7' {
				sb.WriteByte(c)
				continue
			}
			val := int(c - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			sb.WriteByte(byte(val))
		}
	}
	return sb.String()
}

// cleanText drops non-printable runes and collapses horizontal whitespace,
// keeping line breaks.
func cleanText(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\n':
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			sb.WriteByte(' ')
		case unicode.IsPrint(r):
			sb.WriteRune(r)
		}
	}
	return normalizeWhitespace(sb.String())
}

// PdftotextExtractor shells out to poppler's pdftotext.
type PdftotextExtractor struct {
	runner Runner
	bin    string
	log    *slog.Logger
}

func NewPdftotextExtractor(r Runner, bin string, logger *slog.Logger) *PdftotextExtractor {
	if r == nil {
		r = ExecRunner{}
	}
	if bin == "" {
		bin = "pdftotext"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PdftotextExtractor{runner: r, bin: bin, log: logger}
}

func (e *PdftotextExtractor) ExtractText(ctx context.Context, data []byte) (string, int, error) {
	tmp, err := os.CreateTemp("", "lmx-*.pdf")
	if err != nil {
		return "", 0, err
	}
	path := tmp.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			e.log.Warn("ingest.pdftotext.cleanup_error", "path", path, "error", err)
		}
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.bin, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w: %s", e.bin, err, truncate(string(errb), 512))
	}
	text := strings.TrimRight(string(out), "\f\n")
	// form feed separates pages
	pages := 1 + strings.Count(text, "\f")
	return strings.ReplaceAll(text, "\f", "\n\n"), pages, nil
}

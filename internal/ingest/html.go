package ingest

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

func isHTML(mimeType string) bool {
	mt := strings.ToLower(mimeType)
	return mt == "text/html" || mt == "application/xhtml+xml"
}

// htmlText returns the readable article text of an HTML page, dropping
// navigation and other boilerplate.
func htmlText(data []byte, ref string) (string, error) {
	pageURL, err := url.Parse(ref)
	if err != nil || !isRemote(ref) {
		abs, _ := filepath.Abs(ref)
		pageURL = &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	}
	article, err := readability.FromReader(bytes.NewReader(data), pageURL)
	if err != nil {
		return "", fmt.Errorf("readability: %w", err)
	}
	text := article.TextContent
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("page has no readable content")
	}
	if article.Title != "" && !strings.Contains(text, article.Title) {
		text = article.Title + "\n\n" + text
	}
	return text, nil
}

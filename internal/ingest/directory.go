package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/lifemaxxing-extract/constants"
)

// SourceFile is a local artifact found by ScanDirectory.
type SourceFile struct {
	Path    string
	RawKind constants.RawKind
}

type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
}

// ScanDirectory walks root and returns every file whose extension maps to a
// raw kind. If want is set, only files of that kind are returned. Unreadable
// entries are counted as skipped and the walk continues.
func ScanDirectory(root string, want constants.RawKind, skipHidden bool) ([]SourceFile, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var files []SourceFile
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			stats.Skipped++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		kind, ok := constants.RawKindForExt(filepath.Ext(path))
		if !ok || (want != "" && kind != want) {
			return nil
		}
		stats.Matched++
		files = append(files, SourceFile{Path: path, RawKind: kind})
		return nil
	})
	if err != nil {
		return files, stats, fmt.Errorf("walk: %w", err)
	}
	return files, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

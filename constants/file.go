package constants

import "strings"

// extRawKinds holds the file extensions we can infer a RawKind from.
var extRawKinds = map[string]RawKind{
	"pdf":  RawKindTextDocument,
	"txt":  RawKindTextDocument,
	"html": RawKindTextDocument,
	"htm":  RawKindTextDocument,
	"jpg":  RawKindImage,
	"jpeg": RawKindImage,
	"png":  RawKindImage,
	"webp": RawKindImage,
	"gif":  RawKindImage,
	"heic": RawKindImage,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// RawKindForExt reports the RawKind for a file extension, if known.
func RawKindForExt(ext string) (RawKind, bool) {
	k, ok := extRawKinds[NormalizeExt(ext)]
	return k, ok
}

package analysis

import (
	"path"
	"strings"

	"github.com/imyousuf/megaparser/internal/model"
	"github.com/imyousuf/megaparser/internal/parser"
)

// DefaultMaxFileSize is the per-file size ceiling applied when Config leaves
// MaxFileSize unset.
const DefaultMaxFileSize int64 = 5 * 1024 * 1024

// Reasons recorded for files dropped during ingestion.
const (
	SkipEmptyEntry = "empty entry"
	SkipTooLarge   = "file too large"
)

// SkippedFile records an input dropped before metric computation.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// NormalizePath converts Windows separators to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// ingest turns raw inputs into unanalyzed file objects in input order.
// Entries without a path and name, and files above maxSize, are skipped.
func ingest(inputs []model.FileInput, maxSize int64, warn func(format string, args ...any)) ([]model.FileObject, []SkippedFile) {
	files := make([]model.FileObject, 0, len(inputs))
	var skipped []SkippedFile

	for _, in := range inputs {
		p := NormalizePath(in.Path)
		name := in.Name
		if name == "" && p != "" {
			name = path.Base(p)
		}
		if p == "" {
			p = name
		}
		if p == "" {
			skipped = append(skipped, SkippedFile{Reason: SkipEmptyEntry})
			continue
		}

		size := in.Size
		if size == 0 {
			size = int64(len(in.Content))
		}
		if size > maxSize {
			warn("warning: skipping %s: %d bytes exceeds the %d byte limit", p, size, maxSize)
			skipped = append(skipped, SkippedFile{Path: p, Reason: SkipTooLarge})
			continue
		}

		files = append(files, model.FileObject{
			Path:     p,
			Name:     name,
			Language: parser.DetectLanguage(name),
			Content:  in.Content,
			Metrics:  make(map[string]float64),
		})
	}
	return files, skipped
}

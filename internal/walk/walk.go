// Package walk supplies the file-tree traversal the scan pipeline consumes.
// The pipeline itself never touches the filesystem layout; it only sees the
// files a Source yields.
package walk

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/example/sdkscan/internal/signature"
)

// File is one candidate source file. Language is a hint; when empty the
// extractor dispatch decides from the extension or shebang.
type File struct {
	Path     string
	Language signature.Language
}

// Source yields candidate files to scan.
type Source interface {
	Walk(ctx context.Context, emit func(File) error) error
}

// Always pruned regardless of the ignore list.
var prunedDirs = map[string]struct{}{
	".git":         {},
	".hg":          {},
	".svn":         {},
	"node_modules": {},
	"vendor":       {},
}

// DirSource walks a directory tree, applying ignore globs against the
// slash-separated path relative to Root. A glob matches either the whole
// relative path or any single path segment.
type DirSource struct {
	Root   string
	Ignore []string
}

// Walk implements Source. Unreadable directory entries are skipped, not
// fatal; an unreadable root surfaces as an error.
func (s DirSource) Walk(ctx context.Context, emit func(File) error) error {
	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.Root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, relErr := filepath.Rel(s.Root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == s.Root {
				return nil
			}
			if _, pruned := prunedDirs[d.Name()]; pruned {
				return filepath.SkipDir
			}
			if s.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignored(rel) {
			return nil
		}
		return emit(File{Path: path})
	})
}

func (s DirSource) ignored(rel string) bool {
	for _, pattern := range s.Ignore {
		if ok, err := filepath.Match(pattern, rel); err == nil && ok {
			return true
		}
		for _, segment := range strings.Split(rel, "/") {
			if ok, err := filepath.Match(pattern, segment); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// Package extract turns documents on disk into plain text for the
// pipeline. Backends are chosen by file extension.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/errors"
)

// Extractor reads the text content of the file at path.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Registry dispatches to an Extractor by lowercase file extension.
type Registry struct {
	byExt map[string]Extractor
}

// NewRegistry returns a registry with no backends.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Extractor)}
}

// Default registers the plain text, HTML and PDF backends.
func Default(unidocLicenseKey string) (*Registry, error) {
	pdf, err := NewPDFExtractor(unidocLicenseKey)
	if err != nil {
		return nil, err
	}
	r := NewRegistry()
	r.Register(TextExtractor{}, ".txt", ".md")
	r.Register(HTMLExtractor{}, ".html", ".htm")
	r.Register(pdf, ".pdf")
	return r, nil
}

// Register maps each extension (with leading dot) to e.
func (r *Registry) Register(e Extractor, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = e
	}
}

// Supported reports whether path has a registered extension.
func (r *Registry) Supported(path string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extensions returns the registered extensions in sorted order.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := r.byExt[ext]
	if !ok {
		return "", apperrors.Newf(apperrors.ErrInvalidInput, 400, "unsupported file type %q", ext)
	}
	return e.Extract(ctx, path)
}

// Files expands paths into the supported files they name. Directories are
// walked recursively.
func (r *Registry) Files(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			if r.Supported(p) {
				files = append(files, p)
			}
			continue
		}
		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && r.Supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", p, err)
		}
	}
	return files, nil
}

// TextExtractor returns a file's content as-is.
type TextExtractor struct{}

func (TextExtractor) Extract(_ context.Context, path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(content), nil
}

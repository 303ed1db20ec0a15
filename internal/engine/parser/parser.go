package parser

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"ftree/internal/core/errors"
	"ftree/internal/shared/observability"
	"ftree/internal/shared/util"
)

// Options selects which files the parser accepts and how it reads them.
type Options struct {
	// Extensions is an allow-list; empty accepts any extension.
	Extensions []string
	// IgnoreExtensions are never parsed, even when allowed.
	IgnoreExtensions []string
	// FixedFormExtensions are read with fixed-form column rules.
	FixedFormExtensions []string
}

// DefaultOptions mirrors the usual layout of a Fortran source tree: every
// file with an extension is a candidate except data and template files.
func DefaultOptions() Options {
	return Options{
		IgnoreExtensions:    []string{".json", ".fypp", ".txt"},
		FixedFormExtensions: []string{".f", ".for", ".f77", ".ftn"},
	}
}

type Parser struct {
	extensions map[string]bool
	ignored    map[string]bool
	fixedForm  map[string]bool
}

func NewParser(opts Options) *Parser {
	return &Parser{
		extensions: extensionSet(opts.Extensions),
		ignored:    extensionSet(opts.IgnoreExtensions),
		fixedForm:  extensionSet(opts.FixedFormExtensions),
	}
}

func extensionSet(exts []string) map[string]bool {
	out := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = true
	}
	return out
}

// IsSupportedPath reports whether the scanner should hand filePath to the
// parser. Files without an extension are skipped.
func (p *Parser) IsSupportedPath(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == "" || p.ignored[ext] {
		return false
	}
	if len(p.extensions) == 0 {
		return true
	}
	return p.extensions[ext]
}

// IsFixedForm reports whether filePath uses fixed-form source layout.
func (p *Parser) IsFixedForm(filePath string) bool {
	return p.fixedForm[strings.ToLower(filepath.Ext(filePath))]
}

// SupportedExtensions lists the allow-list, empty when any extension goes.
func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

// IgnoredExtensions lists extensions that are never parsed.
func (p *Parser) IgnoredExtensions() []string {
	return util.SortedStringKeys(p.ignored)
}

// ParseFile extracts the units and raw references of one file. Errors are
// PARSE_ERROR domain errors carrying the path.
func (p *Parser) ParseFile(path string, content []byte) (*Record, error) {
	start := time.Now()
	form := "free"
	if p.IsFixedForm(path) {
		form = "fixed"
	}
	defer func() {
		observability.ParsingDuration.WithLabelValues(form).Observe(time.Since(start).Seconds())
	}()

	rec, err := extract(path, string(content), form == "fixed")
	if err != nil {
		return nil, errors.AddContext(err, errors.CtxPath, path)
	}
	rec.Normalize()
	return rec, nil
}

// ParsePath reads and parses a file from disk.
func (p *Parser) ParsePath(path string) (*Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeParse, "read source"), errors.CtxPath, path)
	}
	return p.ParseFile(path, content)
}

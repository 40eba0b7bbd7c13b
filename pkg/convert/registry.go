package convert

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps normalized file extensions to converters. It is the single
// source of truth for the supported format set and is not mutated after
// construction.
type Registry struct {
	mu         sync.RWMutex
	converters map[string]Converter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		converters: make(map[string]Converter),
	}
}

// Register binds an extension (without dot, any case) to a converter.
func (r *Registry) Register(ext string, c Converter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalizeExt(ext)
	if key == "" {
		return fmt.Errorf("empty extension for converter %q", c.Name())
	}
	if _, exists := r.converters[key]; exists {
		return fmt.Errorf("extension %q already registered", key)
	}
	r.converters[key] = c
	return nil
}

// Lookup returns the converter for an extension. Comparison is
// case-insensitive; repeated lookups return the same converter instance.
func (r *Registry) Lookup(ext string) (Converter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.converters[normalizeExt(ext)]
	return c, ok
}

// Extensions returns the sorted list of supported extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exts := make([]string, 0, len(r.converters))
	for ext := range r.converters {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// DefaultRegistry wires the full converter set. The office renderer is
// injected so tests can substitute a stub for LibreOffice.
func DefaultRegistry(renderer OfficeRenderer) *Registry {
	r := NewRegistry()

	img := NewImageConverter()
	for _, ext := range []string{"jpg", "jpeg", "png", "gif", "bmp"} {
		mustRegister(r, ext, img)
	}

	mustRegister(r, "txt", NewTextConverter())
	mustRegister(r, "md", NewMarkdownConverter())

	wb := NewWorkbookConverter()
	mustRegister(r, "xlsx", wb)
	mustRegister(r, "xls", wb)

	mustRegister(r, "csv", NewCSVConverter())

	mustRegister(r, "docx", NewOfficeConverter(renderer, "docx"))
	mustRegister(r, "pptx", NewOfficeConverter(renderer, "pptx"))

	return r
}

func mustRegister(r *Registry, ext string, c Converter) {
	if err := r.Register(ext, c); err != nil {
		panic(err)
	}
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// SplitExt extracts the extension from a filename. It returns false when the
// name carries no extension at all.
func SplitExt(filename string) (stem, ext string, ok bool) {
	i := strings.LastIndex(filename, ".")
	if i <= 0 || i == len(filename)-1 {
		return filename, "", false
	}
	return filename[:i], strings.ToLower(filename[i+1:]), true
}

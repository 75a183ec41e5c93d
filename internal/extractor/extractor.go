package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Frontend names accepted by NewExtractor.
const (
	FrontendNative     = "native"
	FrontendTreeSitter = "treesitter"
)

// ErrUnsupportedFrontend is returned by NewExtractor for an unknown name.
var ErrUnsupportedFrontend = errors.New("unsupported frontend")

// Frontend turns one header's text into its top-level class declarations.
type Frontend interface {
	Name() string
	Extract(ctx context.Context, file string, src []byte) ([]ClassDeclaration, error)
}

// NativeFrontend runs the built-in token parser.
type NativeFrontend struct{}

func (f *NativeFrontend) Name() string {
	return FrontendNative
}

func (f *NativeFrontend) Extract(ctx context.Context, file string, src []byte) ([]ClassDeclaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Parse(file, string(src))
}

// Extractor turns header files into class declarations using one frontend.
type Extractor struct {
	frontend Frontend
}

// NewExtractor creates an extractor for the named frontend. An empty name
// selects the native parser.
func NewExtractor(frontend string) (*Extractor, error) {
	var f Frontend
	switch frontend {
	case "", FrontendNative:
		f = &NativeFrontend{}
	case FrontendTreeSitter:
		f = &TreeSitterFrontend{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFrontend, frontend)
	}
	return &Extractor{frontend: f}, nil
}

// Frontend reports the active frontend name.
func (e *Extractor) Frontend() string {
	return e.frontend.Name()
}

// ExtractSource parses already loaded text attributed to file.
func (e *Extractor) ExtractSource(ctx context.Context, file string, src []byte) ([]ClassDeclaration, error) {
	return e.frontend.Extract(ctx, file, src)
}

// ExtractFromFile reads and parses a single header.
func (e *Extractor) ExtractFromFile(ctx context.Context, path string) ([]ClassDeclaration, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractSource(ctx, path, src)
}

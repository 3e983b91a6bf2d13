// Package extractor turns document images into structured field mappings.
// Extraction is a per-document-type capability: new types are added by
// registering an Extractor, not by modifying the scanner.
package extractor

import (
	"context"

	"healthcert/internal/domain"
)

// Extraction is the product of running an extractor over one image.
type Extraction struct {
	Text           string
	Fields         []domain.Field
	BaseConfidence float64
}

// Extractor produces extracted text and a field mapping for one document
// type. Implementations must be pure functions of their inputs so repeated
// scans of the same image agree.
type Extractor interface {
	Extract(ctx context.Context, imageRef string) (Extraction, error)
}

// Registry maps document types to their extraction capability. A type with no
// registered extractor degrades to an empty extraction rather than an error,
// which keeps the scanner total over all recognized document types.
type Registry struct {
	extractors map[domain.DocumentType]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[domain.DocumentType]Extractor)}
}

// Register binds an extractor to a document type, replacing any previous one.
func (r *Registry) Register(t domain.DocumentType, e Extractor) {
	r.extractors[t] = e
}

// Supports reports whether a capability is registered for the type.
func (r *Registry) Supports(t domain.DocumentType) bool {
	_, ok := r.extractors[t]
	return ok
}

// Extract dispatches to the registered capability. Unregistered types yield
// an empty extraction: an empty field set is a valid, reportable result.
func (r *Registry) Extract(ctx context.Context, imageRef string, t domain.DocumentType) (Extraction, error) {
	e, ok := r.extractors[t]
	if !ok {
		return Extraction{}, nil
	}
	return e.Extract(ctx, imageRef)
}

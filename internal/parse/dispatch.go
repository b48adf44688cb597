package parse

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thywilljoshua/doc-parser/internal/ai"
)

// Extractor pulls the TOC, images, text and tables out of one document.
type Extractor interface {
	Extract(ctx context.Context, doc Document) (*Content, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, doc Document) (*Content, error)

func (f ExtractorFunc) Extract(ctx context.Context, doc Document) (*Content, error) {
	return f(ctx, doc)
}

// ExtractorConfig is shared by the built-in extractors.
type ExtractorConfig struct {
	Logger *slog.Logger
	// Enhancer repairs text-detected PDF tables of contents. Nil means no AI.
	Enhancer ai.Enhancer
	// TOCScanPages bounds the text scan for a PDF table of contents when the
	// file has no outline.
	TOCScanPages int
}

func (c *ExtractorConfig) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Enhancer == nil {
		c.Enhancer = ai.Noop{}
	}
	if c.TOCScanPages <= 0 {
		c.TOCScanPages = 21
	}
}

// Dispatcher routes documents to an extractor by kind.
type Dispatcher struct {
	extractors map[Kind]Extractor
}

// NewDispatcher returns a dispatcher with the PDF, Word and legacy Word
// extractors registered.
func NewDispatcher(cfg ExtractorConfig) *Dispatcher {
	cfg.defaults()
	return &Dispatcher{extractors: map[Kind]Extractor{
		KindPDF:  &PDFExtractor{cfg: cfg},
		KindDocx: &WordExtractor{cfg: cfg},
		KindDoc:  &LegacyWordExtractor{cfg: cfg},
	}}
}

// Register replaces the extractor used for kind.
func (d *Dispatcher) Register(kind Kind, e Extractor) {
	d.extractors[kind] = e
}

// For returns the extractor for doc, or ErrUnsupportedFormat.
func (d *Dispatcher) For(doc Document) (Extractor, error) {
	e, ok := d.extractors[doc.Kind]
	if !ok || doc.Kind == KindUnsupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, doc.Name)
	}
	return e, nil
}

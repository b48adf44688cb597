// Package ai holds the optional model-backed helpers used while parsing:
// repairing a table of contents recovered from page text and captioning
// figures that have no caption in the document.
package ai

import "context"

type Enhancer interface {
	RepairToC(ctx context.Context, raw []string) ([]string, error)
	Caption(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Noop leaves everything as extracted.
type Noop struct{}

func (Noop) RepairToC(ctx context.Context, raw []string) ([]string, error) { return raw, nil }

func (Noop) Caption(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "", nil
}

package parse

import (
	"context"
	"fmt"
	"os"
	"strings"

	"code.sajari.com/docconv"
)

const msWordMIME = "application/msword"

// LegacyWordExtractor handles binary .doc files through docconv, which shells
// out to wvText. Only body text survives the conversion, so such documents
// report text blocks and nothing else.
type LegacyWordExtractor struct {
	cfg ExtractorConfig
}

func (e *LegacyWordExtractor) Extract(ctx context.Context, doc Document) (*Content, error) {
	log := e.cfg.Logger.With("document", doc.Name)
	log.Info("opening document", "path", doc.Path)

	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	res, err := docconv.Convert(f, msWordMIME, false)
	if err != nil {
		return nil, fmt.Errorf("convert doc: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Content{}
	for _, p := range splitParagraphs(res.Body) {
		c.Texts = append(c.Texts, TextBlock{Text: foldASCII(p)})
	}
	log.Info("extracted text", "paragraphs", len(c.Texts))
	return c, nil
}

// splitParagraphs breaks plain text on blank lines and joins the wrapped
// lines inside each paragraph.
func splitParagraphs(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = cur[:0]
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}

package ai

import (
	"context"
	"errors"
	"strings"

	genai "google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

// ErrMissingKey is returned by NewGemini when no API key is configured.
var ErrMissingKey = errors.New("missing GEMINI_API_KEY")

// generateFunc sends contents to model and returns the response text.
type generateFunc func(ctx context.Context, model string, contents []*genai.Content) (string, error)

type Gemini struct {
	generate generateFunc
	model    string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}
	if model == "" {
		model = DefaultModel
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	gen := func(ctx context.Context, model string, contents []*genai.Content) (string, error) {
		res, err := c.Models.GenerateContent(ctx, model, contents, nil)
		if err != nil {
			return "", err
		}
		return res.Text(), nil
	}
	return &Gemini{generate: gen, model: model}, nil
}

func (g *Gemini) prompt(ctx context.Context, text string) (string, error) {
	return g.generate(ctx, g.model, []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	})
}

// RepairToC asks the model to normalise garbled ToC lines. The raw lines are
// returned unchanged when the call fails or the answer is empty.
func (g *Gemini) RepairToC(ctx context.Context, raw []string) ([]string, error) {
	if len(raw) == 0 {
		return raw, nil
	}
	joined := "Fix and normalize this Table of Contents to one entry per line as 'NUMBER TITLE .... PAGE', keep order, no extra text.\n\n" + strings.Join(raw, "\n")
	out, err := g.prompt(ctx, joined)
	if err != nil {
		return raw, err
	}
	lines := splitLines(stripCodeFences(out))
	if len(lines) == 0 {
		return raw, nil
	}
	return lines, nil
}

// Caption describes an image in a short line of alt text.
func (g *Gemini) Caption(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "image/png"
	}
	content := &genai.Content{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{Text: "Describe this image for alt text in <= 12 words, factual, no embellishment."},
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: data}},
		},
	}
	out, err := g.generate(ctx, g.model, []*genai.Content{content})
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(stripCodeFences(out)), " "), nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if nl := strings.Index(s, "\n"); nl != -1 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func splitLines(s string) []string {
	var lines []string
	for _, l := range strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

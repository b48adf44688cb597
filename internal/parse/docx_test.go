package parse

import (
	"archive/zip"
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const docxNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006" ` +
	`xmlns:v="urn:schemas-microsoft-com:vml"`

func wordDocument(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + docxNS + `><w:body>` + body + `<w:sectPr/></w:body></w:document>`
}

func para(style, text string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	if style != "" {
		b.WriteString(`<w:pPr><w:pStyle w:val="` + style + `"/></w:pPr>`)
	}
	for i, part := range strings.Split(text, "\t") {
		if i > 0 {
			b.WriteString("<w:r><w:tab/></w:r>")
		}
		b.WriteString(`<w:r><w:t xml:space="preserve">` + part + `</w:t></w:r>`)
	}
	b.WriteString("</w:p>")
	return b.String()
}

func table(rows ...[]string) string {
	var b strings.Builder
	b.WriteString("<w:tbl>")
	for _, r := range rows {
		b.WriteString("<w:tr>")
		for _, c := range r {
			b.WriteString("<w:tc>" + para("", c) + "</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
	return b.String()
}

const sampleRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId5" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="media/image1.png"/>` +
	`<Relationship Id="rId9" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/hyperlink" Target="https://example.com" TargetMode="External"/>` +
	`</Relationships>`

func writeDocx(t *testing.T, path string, parts map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, name := range slices.Sorted(maps.Keys(parts)) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(parts[name])); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func sampleDocxBody() string {
	tocWithTabStops := `<w:p><w:pPr><w:pStyle w:val="TOC1"/><w:tabs><w:tab w:val="right" w:leader="dot" w:pos="9350"/></w:tabs></w:pPr>` +
		`<w:r><w:t>1 Introduction</w:t></w:r><w:r><w:tab/></w:r><w:r><w:t>1</w:t></w:r></w:p>`
	drawing := `<w:p><w:r><w:drawing><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></w:drawing></w:r></w:p>`
	return tocWithTabStops +
		para("TOC2", "1.1 Scope\t2") +
		para("Heading1", "Introduction") +
		`<w:p><w:r><w:t xml:space="preserve">Café </w:t></w:r><w:r><w:t>pumps “move” water.</w:t></w:r></w:p>` +
		drawing +
		para("Caption", "Figure 1: Pump layout") +
		para("", "Table 1 Flow rates") +
		table([]string{"Pump", "Rate"}, []string{"A", "10"}) +
		para("Heading2", "Scope") +
		para("", "Only centrifugal pumps.")
}

func TestWordExtractor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.docx")
	writeDocx(t, path, map[string]string{
		wordDocumentPart:        wordDocument(sampleDocxBody()),
		wordRelsPart:            sampleRels,
		"word/media/image1.png": "\x89PNG fake",
	})

	e := &WordExtractor{cfg: testExtractorConfig()}
	c, err := e.Extract(context.Background(), Document{Path: path, Name: "notes.docx", Kind: KindDocx})
	if err != nil {
		t.Fatal(err)
	}

	wantTOC := []TOCEntry{
		{Title: "1 Introduction", Level: 1, Page: 1},
		{Title: "1.1 Scope", Level: 2, Page: 2},
	}
	if !slices.Equal(c.TOC, wantTOC) {
		t.Errorf("toc = %+v, want %+v", c.TOC, wantTOC)
	}

	wantTexts := []TextBlock{
		{Heading: "Introduction", Text: `Cafe pumps "move" water.`},
		{Heading: "Scope", Text: "Only centrifugal pumps."},
	}
	if !slices.Equal(c.Texts, wantTexts) {
		t.Errorf("texts = %+v, want %+v", c.Texts, wantTexts)
	}

	if len(c.Tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(c.Tables))
	}
	if c.Tables[0].Title != "Table 1 Flow rates" {
		t.Errorf("table title = %q", c.Tables[0].Title)
	}
	if want := [][]string{{"Pump", "Rate"}, {"A", "10"}}; !slices.EqualFunc(c.Tables[0].Rows, want, slices.Equal) {
		t.Errorf("rows = %q", c.Tables[0].Rows)
	}

	if len(c.Images) != 1 {
		t.Fatalf("got %d images, want 1", len(c.Images))
	}
	img := c.Images[0]
	if img.Ext != "png" || string(img.Data) != "\x89PNG fake" || img.Page != 0 {
		t.Errorf("image = %+v", img)
	}
	if img.Figure != "Figure 1" || img.Caption != "Pump layout" {
		t.Errorf("image caption = %q / %q", img.Figure, img.Caption)
	}
}

func TestWordExtractorMissingDocumentPart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	writeDocx(t, path, map[string]string{"word/styles.xml": "<w:styles/>"})
	e := &WordExtractor{cfg: testExtractorConfig()}
	if _, err := e.Extract(context.Background(), Document{Path: path, Name: "broken.docx", Kind: KindDocx}); err == nil {
		t.Fatal("expected error for archive without document part")
	}
}

func TestDocxTOCFallbacks(t *testing.T) {
	t.Run("numbered lines", func(t *testing.T) {
		body, err := parseDocxBody(strings.NewReader(wordDocument(
			para("", "2.1 Results\t7") + para("", "Plain text 2024"))))
		if err != nil {
			t.Fatal(err)
		}
		want := []TOCEntry{{Title: "2.1 Results", Level: 2, Page: 7}}
		if got := docxTOC(body); !slices.Equal(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})
	t.Run("headings", func(t *testing.T) {
		body, err := parseDocxBody(strings.NewReader(wordDocument(
			para("Title", "Pump Manual") + para("Heading2", "Safety") + para("", "Body"))))
		if err != nil {
			t.Fatal(err)
		}
		want := []TOCEntry{{Title: "Pump Manual", Level: 1}, {Title: "Safety", Level: 2}}
		if got := docxTOC(body); !slices.Equal(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})
}

func TestParseDocxBodyNestedTable(t *testing.T) {
	nested := "<w:tbl><w:tr><w:tc>" + para("", "Outer") +
		table([]string{"in1", "in2"}) +
		"</w:tc><w:tc>" + para("", "Right") + "</w:tc></w:tr></w:tbl>"
	body, err := parseDocxBody(strings.NewReader(wordDocument(nested)))
	if err != nil {
		t.Fatal(err)
	}
	if len(body.Blocks) != 1 || body.Blocks[0].Table == nil {
		t.Fatalf("blocks = %+v", body.Blocks)
	}
	rows := body.Blocks[0].Table
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("rows = %q", rows)
	}
	if rows[0][0] != "Outer\nin1\nin2" || rows[0][1] != "Right" {
		t.Fatalf("cells = %q", rows[0])
	}
}

func TestParseDocxBodyAlternateContent(t *testing.T) {
	picture := `<w:p><w:r><mc:AlternateContent>` +
		`<mc:Choice Requires="wps"><w:drawing><a:graphic><a:graphicData><a:blip r:embed="rId5"/></a:graphicData></a:graphic></w:drawing></mc:Choice>` +
		`<mc:Fallback><w:pict><v:shape><v:imagedata r:id="rId5"/></v:shape></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r></w:p>`
	body, err := parseDocxBody(strings.NewReader(wordDocument(picture + para("", "Figure 2: Valve"))))
	if err != nil {
		t.Fatal(err)
	}
	if len(body.Images) != 1 {
		t.Fatalf("got %d image refs, want 1: %+v", len(body.Images), body.Images)
	}
	if body.Images[0].RelID != "rId5" || body.Images[0].Block != 0 {
		t.Errorf("image ref = %+v", body.Images[0])
	}
}

func TestParseDocxBodyTextBox(t *testing.T) {
	box := func(text string) string {
		return `<w:txbxContent>` + para("", text) + `</w:txbxContent>`
	}
	outer := `<w:p><w:r><w:t>Before box.</w:t></w:r><w:r><mc:AlternateContent>` +
		`<mc:Choice Requires="wps"><w:drawing>` + box("Inside box.") + `</w:drawing></mc:Choice>` +
		`<mc:Fallback><w:pict><v:textbox>` + box("Inside box.") + `</v:textbox></w:pict></mc:Fallback>` +
		`</mc:AlternateContent></w:r><w:r><w:t xml:space="preserve"> After box.</w:t></w:r></w:p>`
	body, err := parseDocxBody(strings.NewReader(wordDocument(outer + para("", "Next."))))
	if err != nil {
		t.Fatal(err)
	}
	if len(body.Blocks) != 2 {
		t.Fatalf("blocks = %+v", body.Blocks)
	}
	if got := body.Blocks[0].Para.Text; got != "Before box. Inside box. After box." {
		t.Errorf("outer paragraph = %q", got)
	}
	if got := body.Blocks[1].Para.Text; got != "Next." {
		t.Errorf("following paragraph = %q", got)
	}
}

func TestDocxHeadingLevel(t *testing.T) {
	tests := map[string]int{
		"Heading1":  1,
		"Heading 3": 3,
		"Title":     1,
		"Titre2":    2,
		"Normal":    0,
		"Heading10": 0,
	}
	for style, want := range tests {
		if got := docxHeadingLevel(style); got != want {
			t.Errorf("docxHeadingLevel(%q) = %d, want %d", style, got, want)
		}
	}
}

func TestSplitTOCText(t *testing.T) {
	tests := []struct {
		in    string
		title string
		page  int
	}{
		{"1 Intro\t3", "1 Intro", 3},
		{"1.1\tScope\t12", "1.1 Scope", 12},
		{"Annex 4", "Annex", 4},
		{"No page", "No page", 0},
	}
	for _, tt := range tests {
		title, page := splitTOCText(tt.in)
		if title != tt.title || page != tt.page {
			t.Errorf("splitTOCText(%q) = %q, %d; want %q, %d", tt.in, title, page, tt.title, tt.page)
		}
	}
}

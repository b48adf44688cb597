package parse

import (
	"slices"
	"testing"

	rpdf "rsc.io/pdf"
)

func line(page int, bold bool, cells ...string) textLine {
	return textLine{Page: page, Bold: bold, Cells: cells}
}

func samplePages() [][]textLine {
	return [][]textLine{
		{
			line(1, true, "1 Introduction"),
			line(1, false, "This report covers pumps."),
			line(1, false, "Table 1 Flow rates"),
			line(1, false, "Pump", "Rate"),
			line(1, false, "A", "10"),
			line(1, false, "B", "12"),
			line(1, false, "Figure 2: Pump layout"),
			line(1, true, "2 Method"),
			line(1, false, "Measured daily."),
		},
		{
			line(2, false, "Page 2"),
			line(2, false, "Continued text."),
		},
	}
}

func TestDetectTables(t *testing.T) {
	tables, used := detectTables(samplePages(), nil)
	if len(tables) != 1 {
		t.Fatalf("got %d tables, want 1", len(tables))
	}
	tb := tables[0]
	if tb.Title != "Table 1 Flow rates" || tb.Page != 1 {
		t.Errorf("table = %+v", tb)
	}
	want := [][]string{{"Pump", "Rate"}, {"A", "10"}, {"B", "12"}}
	if !slices.EqualFunc(tb.Rows, want, slices.Equal) {
		t.Errorf("rows = %q, want %q", tb.Rows, want)
	}
	for i := 2; i <= 5; i++ {
		if !used[lineRef{0, i}] {
			t.Errorf("line %d not marked used", i)
		}
	}
}

func TestDetectTablesSkip(t *testing.T) {
	pages := [][]textLine{{
		line(1, false, "1 Intro", "3"),
		line(1, false, "2 Body", "5"),
	}}
	skip := map[lineRef]bool{{0, 0}: true, {0, 1}: true}
	if tables, _ := detectTables(pages, skip); len(tables) != 0 {
		t.Fatalf("skipped lines formed a table: %+v", tables)
	}
	if tables, _ := detectTables(pages, nil); len(tables) != 1 {
		t.Fatalf("expected a table without skip, got %d", len(tables))
	}
}

func TestDetectTablesSingleRow(t *testing.T) {
	pages := [][]textLine{{line(1, false, "Name", "Value"), line(1, false, "prose")}}
	if tables, _ := detectTables(pages, nil); len(tables) != 0 {
		t.Fatalf("single row became a table: %+v", tables)
	}
}

func TestTextBlocks(t *testing.T) {
	pages := samplePages()
	_, used := detectTables(pages, nil)
	got := textBlocks(pages, used)
	want := []TextBlock{
		{Heading: "1 Introduction", Text: "This report covers pumps.", Page: 1},
		{Heading: "2 Method", Text: "Measured daily.\nContinued text.", Page: 1},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestTextBlocksMergesHeadingsAndKeepsPreamble(t *testing.T) {
	pages := [][]textLine{{
		line(1, false, "Front matter."),
		line(1, true, "Chapter 1"),
		line(1, true, "Getting started"),
		line(1, false, "Body."),
		line(1, false, "2 Scope ........ 7"),
	}}
	got := textBlocks(pages, nil)
	want := []TextBlock{
		{Text: "Front matter.", Page: 1},
		{Heading: "Chapter 1 Getting started", Text: "Body.", Page: 1},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}
}

func TestFigureCaptionsAndImages(t *testing.T) {
	caps := figureCaptions(samplePages())
	if len(caps[1]) != 1 || caps[1][0] != (figureCaption{Figure: "Figure 2", Caption: "Pump layout"}) {
		t.Fatalf("captions = %+v", caps)
	}

	images := []Image{{Page: 1}, {Page: 1}, {Page: 2}}
	captionImages(images, caps)
	if images[0].Figure != "Figure 2" || images[0].Caption != "Pump layout" {
		t.Errorf("first image = %+v", images[0])
	}
	if images[1].Figure != "" || images[2].Figure != "" {
		t.Errorf("uncaptioned images got captions: %+v", images[1:])
	}
}

func glyph(font string, x, w float64, y float64, s string) rpdf.Text {
	return rpdf.Text{Font: font, FontSize: 12, X: x, Y: y, W: w, S: s}
}

func TestPageLines(t *testing.T) {
	glyphs := []rpdf.Text{
		glyph("Helvetica", 200, 20, 680, "Rate"),
		glyph("Helvetica-Bold", 72, 6, 700, "1"),
		glyph("Helvetica", 72, 24, 680.5, "Pump"),
		glyph("Helvetica-Bold", 81, 30, 700, "Scope"),
	}
	lines := pageLines(glyphs, 3)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(lines), lines)
	}
	if got := lines[0]; !got.Bold || got.Page != 3 || !slices.Equal(got.Cells, []string{"1 Scope"}) {
		t.Errorf("heading line = %+v", got)
	}
	if got := lines[1]; got.Bold || !slices.Equal(got.Cells, []string{"Pump", "Rate"}) {
		t.Errorf("table line = %+v", got)
	}
}

func TestSplitBy2Spaces(t *testing.T) {
	got := splitBy2Spaces("  Name   Value  Unit ")
	if want := []string{"Name", "Value", "Unit"}; !slices.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

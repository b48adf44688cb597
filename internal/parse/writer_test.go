package parse

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	return recs
}

func TestWriterWrite(t *testing.T) {
	layout := DefaultLayout(filepath.Join(t.TempDir(), "parsed_files"))
	w, err := OpenWriter(layout, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	doc := Document{Name: "report.pdf", Kind: KindPDF}
	c := &Content{
		TOC: []TOCEntry{{Title: "1 Intro", Level: 1, Page: 3}, {Title: "1.1 Scope", Level: 2}},
		Images: []Image{
			{Ext: "png", Data: []byte("a"), Page: 2, Figure: "Figure 1", Caption: "Pump"},
			{Ext: "jpg", Data: []byte("b"), Page: 2},
		},
		Texts: []TextBlock{{Heading: "Intro", Text: "Body, with comma", Page: 3}},
		Tables: []Table{
			{Title: "Table 1 Rates", Page: 4, Rows: [][]string{{"Pump", "Rate"}, {"A", "10"}}},
			{Page: 4, Rows: [][]string{{"x", "y"}, {"1", "2"}}},
		},
	}
	row, err := w.Write(doc, c)
	if err != nil {
		t.Fatal(err)
	}
	want := ReportRow{Document: "report.pdf", Type: KindPDF, TOC: 2, Images: 2, Tables: 2, Paragraphs: 1, Status: StatusOK}
	if row != want {
		t.Fatalf("row = %+v, want %+v", row, want)
	}
	if err := w.Record(row); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"report_pdf_p2_1.png", "report_pdf_p2_2.jpg"} {
		if _, err := os.Stat(filepath.Join(layout.Images, name)); err != nil {
			t.Errorf("missing image %s: %v", name, err)
		}
	}

	titled := readCSV(t, filepath.Join(layout.Tables, "report_pdf_p4_1.csv"))
	if want := [][]string{{"Table 1 Rates"}, {"Pump", "Rate"}, {"A", "10"}}; !slices.EqualFunc(titled, want, slices.Equal) {
		t.Errorf("titled table = %q", titled)
	}
	untitled := readCSV(t, filepath.Join(layout.Tables, "report_pdf_p4_2.csv"))
	if want := [][]string{{"x", "y"}, {"1", "2"}}; !slices.EqualFunc(untitled, want, slices.Equal) {
		t.Errorf("untitled table = %q", untitled)
	}

	toc := readCSV(t, filepath.Join(layout.TOC, "report_pdf.csv"))
	if want := [][]string{tocHeader, {"1 Intro", "1", "3"}, {"1.1 Scope", "2", ""}}; !slices.EqualFunc(toc, want, slices.Equal) {
		t.Errorf("toc = %q", toc)
	}
	texts := readCSV(t, filepath.Join(layout.Texts, "report_pdf.csv"))
	if want := [][]string{textHeader, {"Intro", "Body, with comma", "3"}}; !slices.EqualFunc(texts, want, slices.Equal) {
		t.Errorf("texts = %q", texts)
	}

	index := readCSV(t, layout.ImageIndex)
	wantIndex := [][]string{
		imageIndexHeader,
		{"report.pdf", "pdf", "Figure 1", "Pump", "2", "report_pdf_p2_1.png"},
		{"report.pdf", "pdf", "", "", "2", "report_pdf_p2_2.jpg"},
	}
	if !slices.EqualFunc(index, wantIndex, slices.Equal) {
		t.Errorf("image index = %q", index)
	}

	report := readCSV(t, layout.Report)
	if want := [][]string{reportHeader, {"report.pdf", "pdf", "2", "2", "2", "1", "ok", ""}}; !slices.EqualFunc(report, want, slices.Equal) {
		t.Errorf("report = %q", report)
	}
}

func TestWriterCreatesSubdirsLazily(t *testing.T) {
	layout := DefaultLayout(filepath.Join(t.TempDir(), "out"))
	w, err := OpenWriter(layout, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Record(ReportRow{Document: "x.txt", Type: KindUnsupported, Status: StatusUnsupported}); err != nil {
		t.Fatal(err)
	}
	for _, d := range layout.dirs() {
		if _, err := os.Stat(d); !os.IsNotExist(err) {
			t.Errorf("%s exists before any document was written", d)
		}
	}
	if _, err := w.Write(Document{Name: "empty.docx", Kind: KindDocx}, &Content{}); err != nil {
		t.Fatal(err)
	}
	for _, d := range layout.dirs() {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("%s missing after write: %v", d, err)
		}
	}
	if got := readCSV(t, filepath.Join(layout.TOC, "empty_docx.csv")); len(got) != 1 {
		t.Errorf("empty toc should be header only, got %q", got)
	}
}

func TestWriterWriteFailureLeavesNoPartialArtifacts(t *testing.T) {
	layout := DefaultLayout(filepath.Join(t.TempDir(), "parsed_files"))
	w, err := OpenWriter(layout, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.ensureDirs(); err != nil {
		t.Fatal(err)
	}
	// A directory where the first table file should go makes the table write fail.
	if err := os.Mkdir(filepath.Join(layout.Tables, "r_pdf_p1_1.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	broken := &Content{
		Images: []Image{{Ext: "png", Data: []byte("a"), Page: 1}},
		Tables: []Table{{Page: 1, Rows: [][]string{{"a", "b"}}}},
		Texts:  []TextBlock{{Text: "body"}},
	}
	if _, err := w.Write(Document{Name: "r.pdf", Kind: KindPDF}, broken); err == nil {
		t.Fatal("expected table write error")
	}

	ok := &Content{Images: []Image{{Ext: "jpg", Data: []byte("b"), Page: 2}}}
	row, err := w.Write(Document{Name: "s.docx", Kind: KindDocx}, ok)
	if err != nil {
		t.Fatal(err)
	}
	if row.Images != 1 {
		t.Fatalf("row = %+v", row)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(layout.Images)
	if err != nil {
		t.Fatal(err)
	}
	var files []string
	for _, e := range entries {
		files = append(files, e.Name())
	}
	if want := []string{"s_docx_p2_1.jpg"}; !slices.Equal(files, want) {
		t.Errorf("images = %q, want %q", files, want)
	}
	index := readCSV(t, layout.ImageIndex)
	wantIndex := [][]string{imageIndexHeader, {"s.docx", "docx", "", "", "2", "s_docx_p2_1.jpg"}}
	if !slices.EqualFunc(index, wantIndex, slices.Equal) {
		t.Errorf("image index = %q", index)
	}
	for _, dir := range []string{layout.TOC, layout.Texts} {
		if _, err := os.Stat(filepath.Join(dir, "r_pdf.csv")); !os.IsNotExist(err) {
			t.Errorf("%s has artifacts of the failed document: %v", dir, err)
		}
	}
}

package parse

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// Layout is the set of output locations under one root.
type Layout struct {
	Root       string
	Images     string
	Tables     string
	TOC        string
	Texts      string
	Report     string
	ImageIndex string
}

// DefaultLayout places everything under root with the stock directory names.
func DefaultLayout(root string) Layout {
	return Layout{
		Root:       root,
		Images:     filepath.Join(root, "images"),
		Tables:     filepath.Join(root, "tables"),
		TOC:        filepath.Join(root, "table of contents"),
		Texts:      filepath.Join(root, "texts"),
		Report:     filepath.Join(root, "parse_report.csv"),
		ImageIndex: filepath.Join(root, "images.csv"),
	}
}

func (l Layout) dirs() []string {
	return []string{l.Images, l.Tables, l.TOC, l.Texts}
}

var (
	tocHeader  = []string{"title", "level", "page_number"}
	textHeader = []string{"heading", "text", "page_number"}
)

// csvFile is a CSV file kept open for appends; every row is flushed so the
// file on disk is complete after each document.
type csvFile struct {
	f *os.File
	w *csv.Writer
}

func createCSV(path string, header []string) (*csvFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	c := &csvFile{f: f, w: csv.NewWriter(f)}
	if err := c.append(header); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *csvFile) append(rec []string) error {
	if err := c.w.Write(rec); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

func (c *csvFile) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// writeCSV writes a whole file in one go, replacing any previous content.
func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if header != nil {
		if err := w.Write(header); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Writer persists extracted content into a Layout and keeps the parse report
// and image index open for the duration of a run.
type Writer struct {
	layout    Layout
	log       *slog.Logger
	report    *csvFile
	images    *csvFile
	dirsReady bool
}

// OpenWriter creates the output root and truncates the report and image
// index. Artifact subdirectories are created on the first Write.
func OpenWriter(layout Layout, log *slog.Logger) (*Writer, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(layout.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	report, err := createCSV(layout.Report, reportHeader)
	if err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	images, err := createCSV(layout.ImageIndex, imageIndexHeader)
	if err != nil {
		report.Close()
		return nil, fmt.Errorf("create image index: %w", err)
	}
	return &Writer{layout: layout, log: log, report: report, images: images}, nil
}

func (w *Writer) ensureDirs() error {
	if w.dirsReady {
		return nil
	}
	for _, d := range w.layout.dirs() {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	w.dirsReady = true
	return nil
}

// Write stores every artifact of doc and returns its report row. The row is
// not appended to the report; see Record. Image index rows are appended only
// once every artifact is on disk; on failure the files already written for
// doc are removed.
func (w *Writer) Write(doc Document, c *Content) (row ReportRow, err error) {
	row = ReportRow{Document: doc.Name, Type: doc.Kind, Status: StatusOK}
	if err := w.ensureDirs(); err != nil {
		return row, err
	}
	prefix := doc.Prefix()

	var written []string
	defer func() {
		if err == nil {
			return
		}
		for _, path := range written {
			if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				w.log.Warn("remove partial artifact", "path", path, "err", rerr)
			}
		}
	}()
	put := func(path string, write func(string) error) error {
		if err := write(path); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	names := artifactNames(prefix)
	index := make([][]string, 0, len(c.Images))
	for _, img := range c.Images {
		name := names("img", img.Page) + "." + img.Ext
		err := put(filepath.Join(w.layout.Images, name), func(path string) error {
			return os.WriteFile(path, img.Data, 0o644)
		})
		if err != nil {
			return row, fmt.Errorf("write image: %w", err)
		}
		rec := ImageRecord{
			Document: doc.Name,
			Type:     doc.Kind,
			Figure:   img.Figure,
			Caption:  img.Caption,
			Page:     img.Page,
			File:     name,
		}
		index = append(index, rec.record())
	}

	for _, t := range c.Tables {
		var rows [][]string
		if t.Title != "" {
			rows = append(rows, []string{t.Title})
		}
		rows = append(rows, t.Rows...)
		name := names("tbl", t.Page) + ".csv"
		err := put(filepath.Join(w.layout.Tables, name), func(path string) error {
			return writeCSV(path, nil, rows)
		})
		if err != nil {
			return row, fmt.Errorf("write table: %w", err)
		}
		row.Tables++
	}

	toc := make([][]string, 0, len(c.TOC))
	for _, e := range c.TOC {
		toc = append(toc, []string{e.Title, strconv.Itoa(e.Level), pageField(e.Page)})
	}
	err = put(filepath.Join(w.layout.TOC, prefix+".csv"), func(path string) error {
		return writeCSV(path, tocHeader, toc)
	})
	if err != nil {
		return row, fmt.Errorf("write table of contents: %w", err)
	}
	row.TOC = len(c.TOC)

	texts := make([][]string, 0, len(c.Texts))
	for _, b := range c.Texts {
		texts = append(texts, []string{b.Heading, b.Text, pageField(b.Page)})
	}
	err = put(filepath.Join(w.layout.Texts, prefix+".csv"), func(path string) error {
		return writeCSV(path, textHeader, texts)
	})
	if err != nil {
		return row, fmt.Errorf("write texts: %w", err)
	}
	row.Paragraphs = len(c.Texts)

	for _, rec := range index {
		if err := w.images.append(rec); err != nil {
			return row, fmt.Errorf("append image index: %w", err)
		}
		row.Images++
	}

	w.log.Debug("artifacts written", "document", doc.Name, "images", row.Images, "tables", row.Tables)
	return row, nil
}

// artifactNames numbers artifacts per kind and page: prefix_p3_1, prefix_p3_2.
func artifactNames(prefix string) func(kind string, page int) string {
	seen := map[string]int{}
	return func(kind string, page int) string {
		key := kind + "/" + strconv.Itoa(page)
		seen[key]++
		return fmt.Sprintf("%s_p%d_%d", prefix, max(page, 0), seen[key])
	}
}

// Record appends row to the parse report.
func (w *Writer) Record(row ReportRow) error {
	if err := w.report.append(row.record()); err != nil {
		return fmt.Errorf("append report: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	err := w.report.Close()
	if ierr := w.images.Close(); err == nil {
		err = ierr
	}
	return err
}

package parse

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Kind identifies how a document is parsed. It is derived from the file extension.
type Kind string

const (
	KindPDF         Kind = "pdf"
	KindDocx        Kind = "docx"
	KindDoc         Kind = "doc"
	KindUnsupported Kind = "unsupported"
)

// Document is one input file.
type Document struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Prefix is the collision-free stem used for every artifact of the document:
// "report.pdf" becomes "report_pdf", so report.pdf and report.docx never clash.
func (d Document) Prefix() string {
	ext := filepath.Ext(d.Name)
	stem := strings.TrimSuffix(d.Name, ext)
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return stem
	}
	return stem + "_" + ext
}

type TOCEntry struct {
	Title string `json:"title"`
	Level int    `json:"level"`
	Page  int    `json:"page,omitempty"` // 0 when the format carries no page numbers
}

type Image struct {
	Ext     string `json:"ext"`
	Data    []byte `json:"-"`
	Page    int    `json:"page,omitempty"`
	Figure  string `json:"figure,omitempty"`
	Caption string `json:"caption,omitempty"`
}

type TextBlock struct {
	Heading string `json:"heading"`
	Text    string `json:"text"`
	Page    int    `json:"page,omitempty"`
}

// Table is a 2-D grid of cell strings; the first row is the header.
type Table struct {
	Title string     `json:"title,omitempty"`
	Page  int        `json:"page,omitempty"`
	Rows  [][]string `json:"rows"`
}

// Content is everything extracted from one document.
type Content struct {
	TOC    []TOCEntry  `json:"toc"`
	Images []Image     `json:"images"`
	Texts  []TextBlock `json:"texts"`
	Tables []Table     `json:"tables"`
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusFailed      Status = "failed"
	StatusUnsupported Status = "unsupported"
)

// ReportRow is one line of the parse report.
type ReportRow struct {
	Document   string `json:"document"`
	Type       Kind   `json:"type"`
	TOC        int    `json:"toc"`
	Images     int    `json:"images"`
	Tables     int    `json:"tables"`
	Paragraphs int    `json:"paragraphs"`
	Status     Status `json:"status"`
	Error      string `json:"error,omitempty"`
}

var reportHeader = []string{"document", "type", "toc", "images", "tables", "paragraphs", "status", "error"}

func (r ReportRow) record() []string {
	return []string{
		r.Document,
		string(r.Type),
		strconv.Itoa(r.TOC),
		strconv.Itoa(r.Images),
		strconv.Itoa(r.Tables),
		strconv.Itoa(r.Paragraphs),
		string(r.Status),
		r.Error,
	}
}

// ImageRecord describes one written image in the image index.
type ImageRecord struct {
	Document string `json:"document"`
	Type     Kind   `json:"type"`
	Figure   string `json:"figure"`
	Caption  string `json:"caption"`
	Page     int    `json:"page"`
	File     string `json:"file"`
}

var imageIndexHeader = []string{"document", "type", "figure", "caption", "page", "file"}

func (r ImageRecord) record() []string {
	return []string{r.Document, string(r.Type), r.Figure, r.Caption, pageField(r.Page), r.File}
}

func pageField(p int) string {
	if p <= 0 {
		return ""
	}
	return strconv.Itoa(p)
}

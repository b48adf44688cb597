package parse

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strconv"
	"strings"
)

const (
	wordDocumentPart = "word/document.xml"
	wordRelsPart     = "word/_rels/document.xml.rels"
)

var (
	wordTOCLineRe  = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+[A-Za-z].*\d+$`)
	trailingPageRe = regexp.MustCompile(`^(.*?)\s*(\d+)$`)
)

// WordExtractor parses .docx packages: word/document.xml for paragraphs and
// tables, the relationships part to resolve embedded media.
type WordExtractor struct {
	cfg ExtractorConfig
}

type docxPara struct {
	Style string
	Text  string
}

// docxBlock is a top-level body element, either a paragraph or a table.
type docxBlock struct {
	Para  *docxPara
	Table [][]string
}

type docxImageRef struct {
	RelID string
	Block int // index of the body block holding the drawing
}

type docxBody struct {
	Blocks []docxBlock
	Images []docxImageRef
}

func (e *WordExtractor) Extract(ctx context.Context, doc Document) (*Content, error) {
	log := e.cfg.Logger.With("document", doc.Name)
	log.Info("opening document", "path", doc.Path)

	zr, err := zip.OpenReader(doc.Path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}
	part, ok := files[wordDocumentPart]
	if !ok {
		return nil, fmt.Errorf("%s not found in archive", wordDocumentPart)
	}
	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", wordDocumentPart, err)
	}
	body, err := parseDocxBody(rc)
	rc.Close()
	if err != nil {
		return nil, err
	}
	rels, err := readRels(files[wordRelsPart])
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Content{
		TOC:    docxTOC(body),
		Texts:  docxTexts(body),
		Tables: docxTables(body),
	}
	log.Info("extracted table of content", "titles", len(c.TOC))
	log.Info("extracted text", "paragraphs", len(c.Texts))
	log.Info("extracted tables", "count", len(c.Tables))

	c.Images, err = docxImages(body, rels, files, log)
	if err != nil {
		return nil, err
	}
	log.Info("extracted images", "count", len(c.Images))
	return c, nil
}

func parseDocxBody(r io.Reader) (*docxBody, error) {
	dec := xml.NewDecoder(r)
	body := &docxBody{}

	var (
		tblDepth int
		pDepth   int
		fallback int
		para     *docxPara
		paraText strings.Builder
		sep      bool
		inRun    bool
		inText   bool
		rows     [][]string
		row      []string
		cell     strings.Builder
	)
	// Text boxes put paragraphs inside a run of the enclosing paragraph;
	// their text joins the outer paragraph separated by a space.
	// mc:Fallback repeats the mc:Choice content for older readers.
	write := func(s string) {
		if fallback > 0 {
			return
		}
		switch {
		case tblDepth > 0:
			cell.WriteString(s)
		case para != nil:
			if sep && paraText.Len() > 0 && !strings.HasPrefix(s, " ") && !strings.HasSuffix(paraText.String(), " ") {
				paraText.WriteByte(' ')
			}
			sep = false
			paraText.WriteString(s)
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", wordDocumentPart, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					rows = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell.Reset()
				}
			case "Fallback":
				fallback++
			case "p":
				if tblDepth == 0 {
					if pDepth == 0 {
						para = &docxPara{}
						paraText.Reset()
					}
					sep = pDepth > 0
					pDepth++
				} else if cell.Len() > 0 && fallback == 0 {
					cell.WriteByte('\n')
				}
			case "pStyle":
				if tblDepth == 0 && pDepth == 1 && para != nil {
					para.Style = attrValue(t, "val")
				}
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				// w:tab also defines tab stops inside w:pPr; only runs produce text.
				if inRun {
					write("\t")
				}
			case "br", "cr":
				if inRun {
					write("\n")
				}
			case "blip", "imagedata":
				id := attrValue(t, "embed")
				if id == "" {
					id = attrValue(t, "id")
				}
				if id != "" && fallback == 0 {
					body.Images = append(body.Images, docxImageRef{RelID: id, Block: len(body.Blocks)})
				}
			}

		case xml.CharData:
			if inText {
				write(string(t))
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "r":
				inRun = false
			case "Fallback":
				fallback--
			case "p":
				if tblDepth > 0 || pDepth == 0 {
					break
				}
				pDepth--
				if pDepth > 0 {
					sep = true
					break
				}
				if para != nil {
					para.Text = strings.TrimSpace(paraText.String())
					body.Blocks = append(body.Blocks, docxBlock{Para: para})
					para = nil
				}
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.TrimSpace(cell.String()))
				}
			case "tr":
				if tblDepth == 1 {
					rows = append(rows, row)
				}
			case "tbl":
				if tblDepth == 1 {
					body.Blocks = append(body.Blocks, docxBlock{Table: rows})
				}
				tblDepth--
			}
		}
	}
	return body, nil
}

func attrValue(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

type docxRelationships struct {
	Rels []struct {
		ID         string `xml:"Id,attr"`
		Target     string `xml:"Target,attr"`
		TargetMode string `xml:"TargetMode,attr"`
	} `xml:"Relationship"`
}

// readRels maps relationship ids to archive paths. A package without a
// relationships part simply has no resolvable media.
func readRels(f *zip.File) (map[string]string, error) {
	out := map[string]string{}
	if f == nil {
		return out, nil
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", wordRelsPart, err)
	}
	defer rc.Close()
	var rels docxRelationships
	if err := xml.NewDecoder(rc).Decode(&rels); err != nil {
		return nil, fmt.Errorf("decode %s: %w", wordRelsPart, err)
	}
	for _, r := range rels.Rels {
		if strings.EqualFold(r.TargetMode, "External") {
			continue
		}
		if strings.HasPrefix(r.Target, "/") {
			out[r.ID] = strings.TrimPrefix(r.Target, "/")
		} else {
			out[r.ID] = path.Join("word", r.Target)
		}
	}
	return out, nil
}

// docxHeadingLevel extracts the heading level from a paragraph style name.
// e.g. "Heading1" → 1, "Heading2" → 2, "Title" → 1, etc.
func docxHeadingLevel(style string) int {
	lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if lower == "title" {
		return 1
	}
	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if strings.HasPrefix(lower, prefix) {
			rest := lower[len(prefix):]
			if len(rest) == 1 && rest[0] >= '1' && rest[0] <= '9' {
				return int(rest[0] - '0')
			}
		}
	}
	return 0
}

// tocStyleLevel returns N for the TOC1..TOC9 paragraph styles Word uses for
// generated tables of contents.
func tocStyleLevel(style string) int {
	lower := strings.ToLower(strings.ReplaceAll(style, " ", ""))
	if !strings.HasPrefix(lower, "toc") {
		return 0
	}
	n, err := strconv.Atoi(lower[3:])
	if err != nil || n < 1 || n > 9 {
		return 0
	}
	return n
}

// splitTOCText separates a ToC paragraph into title and page number. Word
// puts the page number after the last tab.
func splitTOCText(text string) (string, int) {
	if i := strings.LastIndex(text, "\t"); i >= 0 {
		if page, err := strconv.Atoi(strings.TrimSpace(text[i+1:])); err == nil {
			return strings.Join(strings.Fields(text[:i]), " "), page
		}
	}
	if m := trailingPageRe.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		page, _ := strconv.Atoi(m[2])
		return strings.Join(strings.Fields(m[1]), " "), page
	}
	return strings.Join(strings.Fields(text), " "), 0
}

// docxTOC prefers the generated TOC field, then numbered "1.2 Title<TAB>7"
// lines, then the heading outline without page numbers.
func docxTOC(body *docxBody) []TOCEntry {
	var out []TOCEntry
	for _, b := range body.Blocks {
		if b.Para == nil || b.Para.Text == "" {
			continue
		}
		if lvl := tocStyleLevel(b.Para.Style); lvl > 0 {
			title, page := splitTOCText(b.Para.Text)
			out = append(out, TOCEntry{Title: foldASCII(title), Level: lvl, Page: page})
		}
	}
	if len(out) > 0 {
		return out
	}

	for _, b := range body.Blocks {
		if b.Para == nil || !strings.Contains(b.Para.Text, "\t") {
			continue
		}
		m := wordTOCLineRe.FindStringSubmatch(b.Para.Text)
		if m == nil {
			continue
		}
		title, page := splitTOCText(b.Para.Text)
		out = append(out, TOCEntry{Title: foldASCII(title), Level: depthOf(m[1]), Page: page})
	}
	if len(out) > 0 {
		return out
	}

	for _, b := range body.Blocks {
		if b.Para == nil || b.Para.Text == "" {
			continue
		}
		if lvl := docxHeadingLevel(b.Para.Style); lvl > 0 {
			out = append(out, TOCEntry{Title: foldASCII(oneLine(b.Para.Text)), Level: lvl})
		}
	}
	return out
}

func docxTexts(body *docxBody) []TextBlock {
	var blocks []TextBlock
	for _, b := range body.Blocks {
		if b.Para == nil {
			continue
		}
		p := b.Para
		text := strings.TrimSpace(p.Text)
		if strings.ReplaceAll(text, " ", "") == "" ||
			tocStyleLevel(p.Style) > 0 ||
			tableCaptionRe.MatchString(text) ||
			figureCaptionRe.MatchString(text) {
			continue
		}
		text = foldASCII(strings.ReplaceAll(text, "\t", " "))
		if docxHeadingLevel(p.Style) > 0 {
			blocks = append(blocks, TextBlock{Heading: oneLine(text)})
			continue
		}
		if len(blocks) == 0 {
			blocks = append(blocks, TextBlock{})
		}
		last := &blocks[len(blocks)-1]
		if last.Text != "" {
			last.Text += "\n"
		}
		last.Text += text
	}
	return blocks
}

func docxTables(body *docxBody) []Table {
	var out []Table
	for i, b := range body.Blocks {
		if b.Para != nil || len(b.Table) == 0 {
			continue
		}
		width := 0
		for _, r := range b.Table {
			width = max(width, len(r))
		}
		t := Table{}
		for _, r := range b.Table {
			row := make([]string, width)
			for c, cell := range r {
				row[c] = foldASCII(cell)
			}
			t.Rows = append(t.Rows, row)
		}
		if prev := previousText(body.Blocks, i); tableCaptionRe.MatchString(prev) {
			t.Title = foldASCII(prev)
		}
		out = append(out, t)
	}
	return out
}

// previousText is the text of the nearest non-empty paragraph before block i,
// or "" when a table or the start of the body comes first.
func previousText(blocks []docxBlock, i int) string {
	for j := i - 1; j >= 0; j-- {
		p := blocks[j].Para
		if p == nil {
			return ""
		}
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

func docxImages(body *docxBody, rels map[string]string, files map[string]*zip.File, log *slog.Logger) ([]Image, error) {
	var out []Image
	for _, ref := range body.Images {
		target, ok := rels[ref.RelID]
		if !ok {
			log.Warn("unresolved image relationship", "rel", ref.RelID)
			continue
		}
		f, ok := files[target]
		if !ok {
			log.Warn("image part missing from archive", "part", target)
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(target)), ".")
		if ext == "" {
			ext = "png"
		}
		img := Image{Ext: ext, Data: data}
		if m := docxCaption(body.Blocks, ref.Block); m != nil {
			img.Figure = m[1]
			img.Caption = foldASCII(strings.TrimSpace(m[2]))
		}
		out = append(out, img)
	}
	return out, nil
}

// docxCaption looks for a "Figure N ..." paragraph in the drawing's own
// paragraph, then up to three paragraphs before it (skipping empty ones),
// then the next non-empty paragraph after it.
func docxCaption(blocks []docxBlock, idx int) []string {
	match := func(j int) ([]string, bool) {
		if j < 0 || j >= len(blocks) || blocks[j].Para == nil {
			return nil, false
		}
		text := strings.TrimSpace(blocks[j].Para.Text)
		if text == "" {
			return nil, true
		}
		return figureCaptionRe.FindStringSubmatch(foldASCII(text)), false
	}
	if m, _ := match(idx); m != nil {
		return m
	}
	for j := idx - 1; j >= 0 && j >= idx-3; j-- {
		m, empty := match(j)
		if m != nil {
			return m
		}
		if !empty {
			break
		}
	}
	for j := idx + 1; j < len(blocks) && j <= idx+3; j++ {
		m, empty := match(j)
		if m != nil {
			return m
		}
		if !empty {
			break
		}
	}
	return nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	return data, nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

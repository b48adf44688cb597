package parse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	rpdf "rsc.io/pdf"
)

func init() {
	// pdfcpu would otherwise create a config directory under $HOME on first use.
	api.DisableConfigDir()
}

// PDFExtractor reads text with font metadata through rsc.io/pdf and the
// outline and image XObjects through pdfcpu.
type PDFExtractor struct {
	cfg ExtractorConfig
}

func (e *PDFExtractor) Extract(ctx context.Context, doc Document) (*Content, error) {
	log := e.cfg.Logger.With("document", doc.Name)
	log.Info("opening document", "path", doc.Path)

	f, err := os.Open(doc.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r, err := rpdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	pages, err := readPages(ctx, r)
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := &Content{}

	tocLines, tocRefs := findToCLines(pageStrings(pages), e.cfg.TOCScanPages)
	c.TOC = outline(pctx, log)
	if len(c.TOC) == 0 {
		c.TOC = e.textTOC(ctx, tocLines, log)
	}
	log.Info("extracted table of content", "titles", len(c.TOC))

	tables, skip := detectTables(pages, tocRefs)
	c.Tables = tables
	log.Info("extracted tables", "count", len(c.Tables))

	for ref := range tocRefs {
		skip[ref] = true
	}
	c.Texts = textBlocks(pages, skip)
	log.Info("extracted text", "paragraphs", len(c.Texts))

	images, err := pageImages(ctx, pctx)
	if err != nil {
		return nil, err
	}
	captionImages(images, figureCaptions(pages))
	c.Images = images
	log.Info("extracted images", "count", len(c.Images))
	return c, nil
}

// outline flattens the document bookmarks; nesting depth becomes the level.
func outline(pctx *model.Context, log *slog.Logger) []TOCEntry {
	bms, err := pdfcpu.Bookmarks(pctx)
	if err != nil {
		log.Debug("no outline", "err", err)
		return nil
	}
	var out []TOCEntry
	var walk func(bs []pdfcpu.Bookmark, level int)
	walk = func(bs []pdfcpu.Bookmark, level int) {
		for _, b := range bs {
			if title := strings.TrimSpace(b.Title); title != "" {
				out = append(out, TOCEntry{Title: foldASCII(title), Level: level, Page: b.PageFrom})
			}
			walk(b.Kids, level+1)
		}
	}
	walk(bms, 1)
	return out
}

func (e *PDFExtractor) textTOC(ctx context.Context, lines []string, log *slog.Logger) []TOCEntry {
	if len(lines) == 0 {
		log.Warn("no table of content found")
		return nil
	}
	if repaired, err := e.cfg.Enhancer.RepairToC(ctx, lines); err == nil && len(repaired) > 0 {
		lines = repaired
	} else if err != nil {
		log.Warn("toc repair failed, keeping raw lines", "err", err)
	}
	return parseTOCLines(lines)
}

// pageImages returns every image XObject in page order, then object number
// order within a page.
func pageImages(ctx context.Context, pctx *model.Context) ([]Image, error) {
	var out []Image
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		imgs, err := pdfcpu.ExtractPageImages(pctx, pageNr, false)
		if err != nil {
			return nil, fmt.Errorf("extract images on page %d: %w", pageNr, err)
		}
		for _, objNr := range slices.Sorted(maps.Keys(imgs)) {
			img := imgs[objNr]
			if img.Reader == nil {
				continue
			}
			data, err := io.ReadAll(img)
			if err != nil {
				return nil, fmt.Errorf("read image %d on page %d: %w", objNr, pageNr, err)
			}
			ext := img.FileType
			if ext == "" {
				ext = "png"
			}
			out = append(out, Image{Ext: ext, Data: data, Page: pageNr})
		}
	}
	return out, nil
}

// captionImages pairs the n-th image of a page with the n-th figure caption
// found on that page.
func captionImages(images []Image, caps map[int][]figureCaption) {
	next := map[int]int{}
	for i := range images {
		p := images[i].Page
		k := next[p]
		next[p]++
		if k < len(caps[p]) {
			images[i].Figure = caps[p][k].Figure
			images[i].Caption = caps[p][k].Caption
		}
	}
}

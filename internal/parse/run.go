package parse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thywilljoshua/doc-parser/internal/ai"
)

// Recorder receives every report row as it is produced, e.g. a run history.
type Recorder interface {
	Record(ctx context.Context, row ReportRow) error
}

type Options struct {
	Input  string
	Layout Layout
	// Workers bounds concurrent extraction. Output is always written in
	// collection order.
	Workers    int
	Logger     *slog.Logger
	Dispatcher *Dispatcher
	// Enhancer captions images that carry no figure caption.
	Enhancer ai.Enhancer
	Recorder Recorder
}

func (o *Options) defaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Enhancer == nil {
		o.Enhancer = ai.Noop{}
	}
	if o.Dispatcher == nil {
		o.Dispatcher = NewDispatcher(ExtractorConfig{Logger: o.Logger, Enhancer: o.Enhancer})
	}
	if o.Layout.Root == "" {
		o.Layout = DefaultLayout("parsed_files")
	}
}

type Result struct {
	Documents   int         `json:"documents"`
	Parsed      int         `json:"parsed"`
	Failed      int         `json:"failed"`
	Unsupported int         `json:"unsupported"`
	Rows        []ReportRow `json:"rows"`
}

type outcome struct {
	content *Content
	err     error
	elapsed time.Duration
}

// Run parses every document in opts.Input into opts.Layout. A missing or empty
// input directory is fatal and leaves the output untouched; per-document
// failures are reported and the run continues. Cancelling ctx stops the run
// without waiting for the document being extracted and returns the context
// error; extractions still in flight finish into buffered channels nobody reads.
func Run(ctx context.Context, opts Options) (*Result, error) {
	opts.defaults()
	log := opts.Logger

	docs, err := Collect(opts.Input)
	if err != nil {
		log.Error("collect input", "dir", opts.Input, "err", err)
		return nil, err
	}
	log.Info("parsing documents", "count", len(docs), "input", opts.Input, "output", opts.Layout.Root, "workers", opts.Workers)

	w, err := OpenWriter(opts.Layout, log)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	var g errgroup.Group
	g.SetLimit(opts.Workers)
	results := make([]chan outcome, len(docs))
	for i := range results {
		results[i] = make(chan outcome, 1)
	}
	launched := 0
	launch := func(i int) {
		doc, out := docs[i], results[i]
		e, err := opts.Dispatcher.For(doc)
		if err != nil {
			out <- outcome{err: err}
			return
		}
		g.Go(func() error {
			start := time.Now()
			c, err := safeExtract(ctx, e, doc)
			out <- outcome{content: c, err: err, elapsed: time.Since(start)}
			return nil
		})
	}

	res := &Result{Documents: len(docs)}
	var runErr error
loop:
	for i, doc := range docs {
		for launched < len(docs) && launched < i+opts.Workers && ctx.Err() == nil {
			launch(launched)
			launched++
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		var o outcome
		select {
		case o = <-results[i]:
		case <-ctx.Done():
			runErr = ctx.Err()
			break loop
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		row, err := handle(ctx, w, opts, doc, o)
		if err != nil {
			runErr = err
			break
		}
		switch row.Status {
		case StatusOK:
			res.Parsed++
		case StatusFailed:
			res.Failed++
		case StatusUnsupported:
			res.Unsupported++
		}
		res.Rows = append(res.Rows, row)
	}
	if ctx.Err() == nil {
		g.Wait()
	}

	if runErr != nil {
		log.Error("run stopped", "err", runErr, "processed", len(res.Rows))
		return res, runErr
	}
	log.Info("all documents processed", "parsed", res.Parsed, "failed", res.Failed, "unsupported", res.Unsupported)
	return res, nil
}

// handle writes the outcome of one document and appends its report row.
// Only report failures are returned as errors.
func handle(ctx context.Context, w *Writer, opts Options, doc Document, o outcome) (ReportRow, error) {
	log := opts.Logger.With("document", doc.Name)
	var row ReportRow

	switch {
	case errors.Is(o.err, ErrUnsupportedFormat):
		log.Warn("unsupported file type, skipping", "type", filepath.Ext(doc.Name))
		row = ReportRow{Document: doc.Name, Type: KindUnsupported, Status: StatusUnsupported}
	case o.err != nil:
		log.Error("parsing failed", "err", o.err)
		row = failedRow(doc, o.err)
	default:
		captionMissing(ctx, opts.Enhancer, o.content, log)
		var err error
		row, err = w.Write(doc, o.content)
		if err != nil {
			log.Error("writing artifacts failed", "err", err)
			row = failedRow(doc, err)
		} else {
			log.Info("document parsed", "toc", row.TOC, "images", row.Images, "tables", row.Tables,
				"paragraphs", row.Paragraphs, "elapsed", o.elapsed.Round(time.Millisecond))
		}
	}

	if err := w.Record(row); err != nil {
		return row, err
	}
	if opts.Recorder != nil {
		if err := opts.Recorder.Record(ctx, row); err != nil {
			log.Warn("history record failed", "err", err)
		}
	}
	return row, nil
}

func failedRow(doc Document, err error) ReportRow {
	return ReportRow{Document: doc.Name, Type: doc.Kind, Status: StatusFailed, Error: err.Error()}
}

// captionMissing fills in captions for images the document left uncaptioned.
func captionMissing(ctx context.Context, en ai.Enhancer, c *Content, log *slog.Logger) {
	for i := range c.Images {
		img := &c.Images[i]
		if img.Caption != "" {
			continue
		}
		caption, err := en.Caption(ctx, img.Data, mime.TypeByExtension("."+img.Ext))
		if err != nil {
			log.Warn("image caption failed", "index", i, "err", err)
			continue
		}
		img.Caption = caption
	}
}

// safeExtract converts panics from the parsing libraries into errors.
func safeExtract(ctx context.Context, e Extractor, doc Document) (c *Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			c, err = nil, fmt.Errorf("panic while parsing %s: %v", doc.Name, r)
		}
	}()
	c, err = e.Extract(ctx, doc)
	if err == nil && c == nil {
		c = &Content{}
	}
	return c, err
}

// Inspect extracts a single file without writing anything.
func Inspect(ctx context.Context, d *Dispatcher, path string) (Document, *Content, error) {
	doc := Document{Path: path, Name: filepath.Base(path), Kind: DetectKind(path)}
	e, err := d.For(doc)
	if err != nil {
		return doc, nil, err
	}
	c, err := safeExtract(ctx, e, doc)
	return doc, c, err
}

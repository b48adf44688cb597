package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/doc-parser/internal/ai"
	"github.com/thywilljoshua/doc-parser/internal/config"
	"github.com/thywilljoshua/doc-parser/internal/history"
	"github.com/thywilljoshua/doc-parser/internal/logging"
	"github.com/thywilljoshua/doc-parser/internal/parse"
	"github.com/thywilljoshua/doc-parser/internal/publish"
)

// options are the command-line overrides; only flags the user set replace
// the configured value.
type options struct {
	configPath string
	input      string
	out        string
	workers    int
	logDir     string
	logLevel   string
	aiProvider string
	history    string
	s3Bucket   string
	quiet      bool
	jsonOut    bool
}

func rootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:   "parseall",
		Short: "Extract tables of contents, images, tables and text from PDF and Word documents",
		Long: "parseall reads every document in the input directory and writes its table of contents,\n" +
			"images, tables and text blocks under the output directory, with one report row per file.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, o)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&o.configPath, "config", "", "YAML config file")
	pf.StringVar(&o.logDir, "log-dir", "", "write a debug log file per run into this directory")
	pf.StringVar(&o.logLevel, "log-level", "info", "console log level: debug|info|warn|error")
	pf.StringVar(&o.history, "history", "", "SQLite database recording runs")

	f := root.Flags()
	f.StringVarP(&o.input, "input", "i", "files_to_parse", "directory holding the documents to parse")
	f.StringVarP(&o.out, "out", "o", "parsed_files", "output directory")
	f.IntVar(&o.workers, "workers", 1, "documents extracted concurrently")
	f.StringVar(&o.aiProvider, "ai", "off", "AI provider for ToC repair and image captions: off|gemini")
	f.StringVar(&o.s3Bucket, "s3-bucket", "", "upload the output directory to this S3 bucket after the run")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "only log warnings and skip the summary table")
	f.BoolVar(&o.jsonOut, "json", false, "print the run result as JSON")

	root.AddCommand(inspectCmd(o), historyCmd(o))
	return root
}

// settings resolves config file and environment, then applies the flags the
// user set explicitly.
func (o *options) settings(cmd *cobra.Command) (*config.Settings, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	set := func(name string, apply func()) {
		if fl.Lookup(name) != nil && fl.Changed(name) {
			apply()
		}
	}
	set("input", func() { cfg.InputDir = o.input })
	set("out", func() { cfg.OutputDir = o.out })
	set("workers", func() { cfg.Workers = o.workers })
	set("log-dir", func() { cfg.LogDir = o.logDir })
	set("log-level", func() { cfg.LogLevel = o.logLevel })
	set("ai", func() { cfg.AI.Provider = o.aiProvider })
	set("history", func() { cfg.HistoryDB = o.history })
	set("s3-bucket", func() { cfg.S3.Bucket = o.s3Bucket })
	if o.quiet {
		cfg.LogLevel = "warn"
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Settings, console io.Writer) (*slog.Logger, func() error, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, nil, err
	}
	return logging.New(logging.Options{Level: level, Console: console, Dir: cfg.LogDir})
}

func newEnhancer(ctx context.Context, cfg *config.Settings) (ai.Enhancer, error) {
	if !strings.EqualFold(cfg.AI.Provider, "gemini") {
		return ai.Noop{}, nil
	}
	g, err := ai.NewGemini(ctx, cfg.AI.APIKey, cfg.AI.Model)
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}
	return g, nil
}

func newDispatcher(cfg *config.Settings, log *slog.Logger, en ai.Enhancer) *parse.Dispatcher {
	return parse.NewDispatcher(parse.ExtractorConfig{
		Logger:       log,
		Enhancer:     en,
		TOCScanPages: cfg.TOCScanPages,
	})
}

func runParse(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()
	cfg, err := o.settings(cmd)
	if err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closeLog()

	en, err := newEnhancer(ctx, cfg)
	if err != nil {
		return err
	}
	opts := parse.Options{
		Input:      cfg.InputDir,
		Layout:     cfg.Layout(),
		Workers:    cfg.Workers,
		Logger:     log,
		Dispatcher: newDispatcher(cfg, log, en),
		Enhancer:   en,
	}

	var run *history.Run
	if cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return err
		}
		defer store.Close()
		if run, err = store.Begin(ctx, cfg.InputDir, cfg.OutputDir); err != nil {
			return err
		}
		opts.Recorder = run
	}

	res, err := parse.Run(ctx, opts)
	if run != nil {
		if ferr := run.Finish(context.WithoutCancel(ctx)); ferr != nil {
			log.Warn("history finish failed", "err", ferr)
		}
	}
	if err != nil {
		return err
	}

	if cfg.S3.Bucket != "" {
		publishOutput(ctx, cfg, log, run)
	}

	out := cmd.OutOrStdout()
	switch {
	case o.jsonOut:
		b, _ := json.MarshalIndent(res, "", "  ")
		fmt.Fprintln(out, string(b))
	case !o.quiet:
		fmt.Fprintln(out, renderSummary(res))
	}
	return nil
}

// publishOutput mirrors the output tree to S3. The local tree stays the
// source of truth, so failures are only logged.
func publishOutput(ctx context.Context, cfg *config.Settings, log *slog.Logger, run *history.Run) {
	prefix := cfg.S3.Prefix
	if prefix == "" {
		prefix = filepath.Base(cfg.OutputDir)
		if run != nil {
			prefix += "/" + run.ID
		}
	}
	p, err := publish.New(ctx, publish.Config{
		Bucket:    cfg.S3.Bucket,
		Prefix:    prefix,
		Region:    cfg.S3.Region,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
	}, log)
	if err != nil {
		log.Warn("s3 publishing disabled", "err", err)
		return
	}
	if _, err := p.PublishDir(ctx, cfg.OutputDir); err != nil {
		log.Warn("s3 publishing incomplete", "err", err)
	}
}

// Package config resolves run settings from defaults, an optional YAML file
// and the environment (including a .env file in the working directory).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/thywilljoshua/doc-parser/internal/parse"
)

// Settings holds the full parseall configuration.
type Settings struct {
	InputDir     string `yaml:"input_dir"`
	OutputDir    string `yaml:"output_dir"`
	Dirs         Dirs   `yaml:"dirs"`
	Workers      int    `yaml:"workers"`
	TOCScanPages int    `yaml:"toc_scan_pages"`
	LogDir       string `yaml:"log_dir"`
	LogLevel     string `yaml:"log_level"`
	HistoryDB    string `yaml:"history_db"`
	AI           AI     `yaml:"ai"`
	S3           S3     `yaml:"s3"`
}

// Dirs names the artifact locations inside the output directory.
type Dirs struct {
	Images     string `yaml:"images"`
	Tables     string `yaml:"tables"`
	TOC        string `yaml:"table_of_contents"`
	Texts      string `yaml:"texts"`
	Report     string `yaml:"report"`
	ImageIndex string `yaml:"image_index"`
}

// AI configures the optional model-backed enhancer.
type AI struct {
	Provider string `yaml:"provider"` // off | gemini
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"`
}

// S3 configures publishing of the output tree. An empty bucket disables it.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// Default mirrors the stock directory layout.
func Default() *Settings {
	return &Settings{
		InputDir:  "files_to_parse",
		OutputDir: "parsed_files",
		Dirs: Dirs{
			Images:     "images",
			Tables:     "tables",
			TOC:        "table of contents",
			Texts:      "texts",
			Report:     "parse_report.csv",
			ImageIndex: "images.csv",
		},
		Workers:      1,
		TOCScanPages: 21,
		LogLevel:     "info",
		AI:           AI{Provider: "off", Model: "gemini-2.5-flash"},
	}
}

// Load returns Default merged with the YAML file at path (if any) and then
// the environment. The result is validated.
func Load(path string) (*Settings, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Settings) applyEnv() error {
	c.InputDir = getEnv("PARSE_INPUT_DIR", c.InputDir)
	c.OutputDir = getEnv("PARSE_OUTPUT_DIR", c.OutputDir)
	c.LogDir = getEnv("PARSE_LOG_DIR", c.LogDir)
	c.LogLevel = getEnv("PARSE_LOG_LEVEL", c.LogLevel)
	c.HistoryDB = getEnv("PARSE_HISTORY_DB", c.HistoryDB)
	c.AI.Provider = getEnv("PARSE_AI", c.AI.Provider)
	c.AI.Model = getEnv("GEMINI_MODEL", c.AI.Model)
	c.AI.APIKey = getEnv("GEMINI_API_KEY", c.AI.APIKey)
	c.S3.Bucket = getEnv("PARSE_S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("AWS_REGION", c.S3.Region)
	c.S3.AccessKey = getEnv("AWS_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("AWS_SECRET_KEY", c.S3.SecretKey)
	if v := os.Getenv("PARSE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PARSE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// Validate checks that required fields are present and values are sane.
func (c *Settings) Validate() error {
	if c.InputDir == "" {
		return errors.New("input_dir is required")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.TOCScanPages < 1 {
		return fmt.Errorf("toc_scan_pages must be >= 1, got %d", c.TOCScanPages)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.AI.Provider) {
	case "", "off":
	case "gemini":
		if c.AI.APIKey == "" {
			return errors.New("ai provider gemini needs GEMINI_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported ai provider %q (use off or gemini)", c.AI.Provider)
	}

	seen := map[string]string{}
	for _, d := range []struct{ key, name string }{
		{"images", c.Dirs.Images},
		{"tables", c.Dirs.Tables},
		{"table_of_contents", c.Dirs.TOC},
		{"texts", c.Dirs.Texts},
		{"report", c.Dirs.Report},
		{"image_index", c.Dirs.ImageIndex},
	} {
		if d.name == "" {
			return fmt.Errorf("dirs.%s is required", d.key)
		}
		if other, dup := seen[d.name]; dup {
			return fmt.Errorf("dirs.%s and dirs.%s both use %q", other, d.key, d.name)
		}
		seen[d.name] = d.key
	}
	return nil
}

// SlogLevel parses LogLevel (debug, info, warn, error).
func (c *Settings) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// Layout resolves the artifact locations under OutputDir.
func (c *Settings) Layout() parse.Layout {
	root := c.OutputDir
	return parse.Layout{
		Root:       root,
		Images:     filepath.Join(root, c.Dirs.Images),
		Tables:     filepath.Join(root, c.Dirs.Tables),
		TOC:        filepath.Join(root, c.Dirs.TOC),
		Texts:      filepath.Join(root, c.Dirs.Texts),
		Report:     filepath.Join(root, c.Dirs.Report),
		ImageIndex: filepath.Join(root, c.Dirs.ImageIndex),
	}
}

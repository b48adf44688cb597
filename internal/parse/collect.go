package parse

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrInputMissing      = errors.New("input directory not found")
	ErrNoDocuments       = errors.New("no files found")
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// DetectKind maps a file extension to the extractor family.
func DetectKind(path string) Kind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF
	case ".docx":
		return KindDocx
	case ".doc":
		return KindDoc
	default:
		return KindUnsupported
	}
}

// Scan checks the input directory up front and returns a lazy sequence over
// its files in name order. Only regular files directly inside dir are
// considered; hidden files and Office lock files ("~$x.docx") are ignored.
func Scan(dir string) (iter.Seq[Document], error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputMissing, dir)
		}
		return nil, fmt.Errorf("read input directory %s: %w", dir, err)
	}
	entries = slices.DeleteFunc(entries, func(e fs.DirEntry) bool {
		name := e.Name()
		return !e.Type().IsRegular() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$")
	})
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return func(yield func(Document) bool) {
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if !yield(Document{Path: path, Name: e.Name(), Kind: DetectKind(path)}) {
				return
			}
		}
	}, nil
}

// Collect is Scan materialised into a slice.
func Collect(dir string) ([]Document, error) {
	seq, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

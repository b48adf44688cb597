package parse

import (
	"io"
	"log/slog"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testExtractorConfig() ExtractorConfig {
	c := ExtractorConfig{Logger: discardLogger()}
	c.defaults()
	return c
}

package parse

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiPunct = strings.NewReplacer(
	"‘", "'", "’", "'", "‚", "'",
	"“", `"`, "”", `"`, "„", `"`,
	"–", "-", "—", "-", "−", "-",
	"…", "...",
	"\u00a0", " ",
	"•", "*", "·", "*",
	"ﬁ", "fi", "ﬂ", "fl",
	"ß", "ss", "æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ø", "o", "Ø", "O", "ł", "l", "Ł", "L",
)

// foldASCII strips diacritics and replaces typographic punctuation with its
// ASCII counterpart. Scripts without a Latin decomposition pass through.
func foldASCII(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return asciiPunct.Replace(out)
}

package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Patterns for ToC entries: numeric, roman numerals, alphabetic appendices, and explicit Appendix prefix.
var (
	tocNumRe      = regexp.MustCompile(`^\s*(\d+(?:\.\d+)*)\.?\s+(.+?)\s+(\d+)\s*$`)
	tocRomanRe    = regexp.MustCompile(`^\s*([IVXLCDM]+)(?:\.([0-9]+))?\.?\s+(.+?)\s+(\d+)\s*$`)
	tocAlphaRe    = regexp.MustCompile(`^\s*([A-Z](?:\.[0-9]+)*)\.?\s+(.+?)\s+(\d+)\s*$`)
	tocAppendixRe = regexp.MustCompile(`^\s*(?:Appendix|APPENDIX)\s+([A-Z](?:\.[0-9]+)*)\s+(.+?)\s+(\d+)\s*$`)

	dotLeaderRe    = regexp.MustCompile(`\.{2,}|(?:\s\.){2,}|…+`)
	contentsHeadRe = regexp.MustCompile(`(?i)^\s*(?:table\s+of\s+)?contents\s*$`)
)

type tocLine struct {
	Number string // display number token (e.g., 1.2, I, A.1)
	Title  string
	Page   int
	Depth  int
}

func (l tocLine) entry() TOCEntry {
	title := l.Title
	if l.Number != "" {
		title = l.Number + " " + l.Title
	}
	return TOCEntry{Title: foldASCII(title), Level: l.Depth, Page: l.Page}
}

// parseTOCLines keeps the order of the source lines and drops anything that
// does not look like an entry.
func parseTOCLines(lines []string) []TOCEntry {
	var out []TOCEntry
	for _, line := range lines {
		if l, ok := matchToC(normalizeDotLeaders(line)); ok {
			out = append(out, l.entry())
		}
	}
	return out
}

func matchToC(line string) (tocLine, bool) {
	if m := tocAppendixRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocLine{Number: "Appendix " + m[1], Title: strings.TrimSpace(m[2]), Page: p, Depth: depthOf(m[1])}, true
	}
	if m := tocNumRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocLine{Number: m[1], Title: strings.TrimSpace(m[2]), Page: p, Depth: depthOf(m[1])}, true
	}
	if m := tocAlphaRe.FindStringSubmatch(line); len(m) == 4 {
		p, _ := strconv.Atoi(m[3])
		return tocLine{Number: m[1], Title: strings.TrimSpace(m[2]), Page: p, Depth: depthOf(m[1])}, true
	}
	if m := tocRomanRe.FindStringSubmatch(line); len(m) == 5 {
		p, _ := strconv.Atoi(m[4])
		// depth is 1 if only roman; if has .<n>, treat as depth 2
		depth := 1
		num := m[1]
		if m[2] != "" {
			num = num + "." + m[2]
			depth = 2
		}
		return tocLine{Number: num, Title: strings.TrimSpace(m[3]), Page: p, Depth: depth}, true
	}
	return tocLine{}, false
}

func depthOf(number string) int {
	return strings.Count(number, ".") + 1
}

func isToCLine(s string) bool {
	_, ok := matchToC(normalizeDotLeaders(s))
	return ok
}

func hasDotLeader(s string) bool {
	return dotLeaderRe.MatchString(s)
}

func normalizeDotLeaders(s string) string {
	s = dotLeaderRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer("•", " ", "·", " ", "\t", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// findToCLines collects ToC lines from the first n pages. A line qualifies when
// it parses as an entry and either carries dot leaders or sits on a page
// headed "Contents". The returned refs mark the consumed lines, header included.
func findToCLines(pages [][]string, n int) ([]string, map[lineRef]bool) {
	var out []string
	refs := map[lineRef]bool{}
	for p := 0; p < len(pages) && p < n; p++ {
		contentsPage := false
		for i, ln := range pages[p] {
			if contentsHeadRe.MatchString(ln) {
				contentsPage = true
				refs[lineRef{p, i}] = true
				break
			}
		}
		for i, ln := range pages[p] {
			ln = strings.TrimSpace(ln)
			if ln == "" {
				continue
			}
			if (contentsPage || hasDotLeader(ln)) && isToCLine(ln) {
				out = append(out, ln)
				refs[lineRef{p, i}] = true
			}
		}
	}
	return out, refs
}

package parse

import (
	"regexp"
	"strings"
)

var (
	tableCaptionRe  = regexp.MustCompile(`^Table\s+\d+`)
	figureCaptionRe = regexp.MustCompile(`^(Figure\s+\d+(?:[.:-]\d+)?)\s*[:.\-]?\s*(.*)$`)
	pageMarkerRe    = regexp.MustCompile(`^Page\s+\d+`)
)

// lineRef addresses a line by zero-based page and line index.
type lineRef struct {
	page, line int
}

// detectTables finds runs of at least two consecutive lines that split into
// the same number (>= 2) of cells. A "Table N" line right above a run is taken
// as its title. Lines in skip never take part in a table. Every line used is
// reported in the returned set.
func detectTables(pages [][]textLine, skip map[lineRef]bool) ([]Table, map[lineRef]bool) {
	used := map[lineRef]bool{}
	var tables []Table
	for p, lines := range pages {
		cells := func(i int) int {
			if skip[lineRef{p, i}] {
				return 0
			}
			return len(lines[i].Cells)
		}
		i := 0
		for i < len(lines) {
			n := cells(i)
			if n < 2 {
				i++
				continue
			}
			j := i + 1
			for j < len(lines) && cells(j) == n {
				j++
			}
			if j-i < 2 {
				i++
				continue
			}
			t := Table{Page: lines[i].Page}
			for k := i; k < j; k++ {
				row := make([]string, n)
				for c, cell := range lines[k].Cells {
					row[c] = foldASCII(cell)
				}
				t.Rows = append(t.Rows, row)
				used[lineRef{p, k}] = true
			}
			if i > 0 && tableCaptionRe.MatchString(lines[i-1].Text()) {
				t.Title = foldASCII(lines[i-1].Text())
				used[lineRef{p, i - 1}] = true
			}
			tables = append(tables, t)
			i = j
		}
	}
	return tables, used
}

// textBlocks groups the remaining lines under the bold line that precedes
// them. Consecutive bold lines with no body between them form one heading.
func textBlocks(pages [][]textLine, skip map[lineRef]bool) []TextBlock {
	var blocks []TextBlock
	for p, lines := range pages {
		for i, l := range lines {
			if skip[lineRef{p, i}] {
				continue
			}
			text := strings.TrimSpace(foldASCII(l.Text()))
			if dropLine(text) {
				continue
			}
			last := len(blocks) - 1
			if l.Bold {
				if last >= 0 && blocks[last].Heading != "" && blocks[last].Text == "" && blocks[last].Page == l.Page {
					blocks[last].Heading += " " + text
					continue
				}
				blocks = append(blocks, TextBlock{Heading: text, Page: l.Page})
				continue
			}
			if last < 0 {
				blocks = append(blocks, TextBlock{Page: l.Page})
				last = 0
			}
			if blocks[last].Text != "" {
				blocks[last].Text += "\n"
			}
			blocks[last].Text += text
		}
	}
	return blocks
}

// dropLine reports lines that never belong to body text: captions, page
// markers and dot-leader ToC lines.
func dropLine(text string) bool {
	if strings.ReplaceAll(text, " ", "") == "" {
		return true
	}
	switch {
	case tableCaptionRe.MatchString(text),
		figureCaptionRe.MatchString(text),
		pageMarkerRe.MatchString(text):
		return true
	}
	return hasDotLeader(text) && isToCLine(text)
}

type figureCaption struct {
	Figure  string
	Caption string
}

// figureCaptions returns the "Figure N: title" lines of each page, in order.
func figureCaptions(pages [][]textLine) map[int][]figureCaption {
	out := map[int][]figureCaption{}
	for _, lines := range pages {
		for _, l := range lines {
			text := strings.TrimSpace(foldASCII(l.Text()))
			if m := figureCaptionRe.FindStringSubmatch(text); m != nil {
				out[l.Page] = append(out[l.Page], figureCaption{Figure: m[1], Caption: strings.TrimSpace(m[2])})
			}
		}
	}
	return out
}

package parse

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	rpdf "rsc.io/pdf"
)

// textLine is one baseline of glyphs on a page.
type textLine struct {
	Page  int
	Y     float64
	Size  float64
	Bold  bool
	Cells []string // text split at wide horizontal gaps
}

func (l textLine) Text() string {
	return strings.Join(l.Cells, " ")
}

const (
	// Horizontal gap, in multiples of the font size, that separates table cells.
	cellGapFactor = 1.5
	// Gap that separates words when the PDF positions words without space glyphs.
	wordGapFactor = 0.2
)

var twoPlusSpaces = regexp.MustCompile(`\s{2,}`)

// readPages rebuilds the text lines of every page of r, top to bottom.
func readPages(ctx context.Context, r *rpdf.Reader) ([][]textLine, error) {
	n := r.NumPage()
	pages := make([][]textLine, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, nil)
			continue
		}
		pages = append(pages, pageLines(pageGlyphs(p), i))
	}
	return pages, nil
}

func pageLines(glyphs []rpdf.Text, page int) []textLine {
	if len(glyphs) == 0 {
		return nil
	}
	gs := make([]rpdf.Text, len(glyphs))
	copy(gs, glyphs)
	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Y != gs[j].Y {
			return gs[i].Y > gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	var lines []textLine
	start := 0
	for i := 1; i <= len(gs); i++ {
		if i < len(gs) && sameBaseline(gs[start], gs[i]) {
			continue
		}
		if l, ok := buildLine(gs[start:i], page); ok {
			lines = append(lines, l)
		}
		start = i
	}
	return lines
}

func sameBaseline(a, b rpdf.Text) bool {
	tol := math.Max(a.FontSize, b.FontSize) * 0.3
	if tol < 1 {
		tol = 1
	}
	return math.Abs(a.Y-b.Y) <= tol
}

func buildLine(gs []rpdf.Text, page int) (textLine, bool) {
	row := make([]rpdf.Text, len(gs))
	copy(row, gs)
	sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

	var (
		cells      []string
		cur        strings.Builder
		prevEnd    = row[0].X
		size       float64
		bold, seen int
	)
	flush := func() {
		for _, c := range splitBy2Spaces(cur.String()) {
			if c != "" {
				cells = append(cells, c)
			}
		}
		cur.Reset()
	}
	for _, g := range row {
		fs := g.FontSize
		if fs <= 0 {
			fs = 10
		}
		gap := g.X - prevEnd
		switch {
		case cur.Len() > 0 && gap > cellGapFactor*fs:
			flush()
		case cur.Len() > 0 && gap > wordGapFactor*fs && !strings.HasSuffix(cur.String(), " ") && g.S != " ":
			cur.WriteByte(' ')
		}
		cur.WriteString(g.S)
		prevEnd = g.X + g.W
		if strings.TrimSpace(g.S) != "" {
			seen++
			size = math.Max(size, fs)
			if strings.Contains(strings.ToLower(g.Font), "bold") {
				bold++
			}
		}
	}
	flush()
	if len(cells) == 0 {
		return textLine{}, false
	}
	return textLine{
		Page:  page,
		Y:     row[0].Y,
		Size:  size,
		Bold:  seen > 0 && bold*2 > seen,
		Cells: cells,
	}, true
}

func splitBy2Spaces(s string) []string {
	return trimAll(twoPlusSpaces.Split(strings.TrimSpace(s), -1))
}

func trimAll(a []string) []string {
	out := make([]string, len(a))
	for i, v := range a {
		out[i] = strings.TrimSpace(v)
	}
	return out
}

// pageStrings flattens lines to plain strings, one slice per page.
func pageStrings(pages [][]textLine) [][]string {
	out := make([][]string, len(pages))
	for i, p := range pages {
		for _, l := range p {
			out[i] = append(out[i], l.Text())
		}
	}
	return out
}

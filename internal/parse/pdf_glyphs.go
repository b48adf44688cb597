package parse

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/font"
	rpdf "rsc.io/pdf"
)

// Advance, in thousandths of the font size, for fonts that have neither
// /Widths nor standard-14 metrics.
const (
	defaultGlyphWidth = 500
	defaultSpaceWidth = 278
)

// pageGlyphs returns the positioned glyphs of p. rsc.io/pdf never advances
// the text matrix for a simple font without /Widths, so every glyph of a
// show operator lands on the same X and word breaks are lost. Pages using
// such a font are measured again with the standard-14 metrics.
func pageGlyphs(p rpdf.Page) []rpdf.Text {
	if !missingWidths(p) {
		return p.Content().Text
	}
	return measuredText(p)
}

func missingWidths(p rpdf.Page) bool {
	for _, name := range p.Fonts() {
		f := p.Font(name)
		if f.V.Key("Subtype").Name() == "Type0" {
			continue
		}
		if f.V.Key("Widths").Len() == 0 {
			return true
		}
	}
	return false
}

func baseFont(f rpdf.Font) string {
	name := f.BaseFont()
	if i := strings.Index(name, "+"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func glyphWidth(f rpdf.Font, base string, code int, s string) float64 {
	if f.V.Key("Widths").Len() > 0 && code >= f.FirstChar() && code <= f.LastChar() {
		return f.Width(code)
	}
	if font.IsCoreFont(base) {
		if w := font.CharWidth(base, rune(code)); w > 0 {
			return float64(w)
		}
	}
	if s == " " {
		return defaultSpaceWidth
	}
	return defaultGlyphWidth
}

// affine is a PDF transformation matrix [a b c d e f].
type affine [6]float64

var identity = affine{1, 0, 0, 1, 0, 0}

func (m affine) mul(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func translate(tx, ty float64) affine {
	return affine{1, 0, 0, 1, tx, ty}
}

type textState struct {
	tc, tw, th, tl float64
	size, rise     float64
	font           rpdf.Font
	base           string
	enc            rpdf.TextEncoding
	tm, tlm, ctm   affine
}

// measuredText interprets the page content stream the way rsc.io/pdf does,
// advancing after every glyph by its width from glyphWidth.
func measuredText(p rpdf.Page) []rpdf.Text {
	var (
		out   []rpdf.Text
		st    = textState{th: 1, tm: identity, tlm: identity, ctm: identity}
		saved []textState
	)

	show := func(raw string) {
		if st.enc == nil {
			return
		}
		for i := 0; i < len(raw); i++ {
			s := st.enc.Decode(raw[i : i+1])
			w := glyphWidth(st.font, st.base, int(raw[i]), s)
			trm := affine{st.size * st.th, 0, 0, st.size, 0, st.rise}.mul(st.tm).mul(st.ctm)
			if s != " " && s != "" {
				out = append(out, rpdf.Text{
					Font:     st.base,
					FontSize: trm[0],
					X:        trm[4],
					Y:        trm[5],
					W:        w / 1000 * trm[0],
					S:        s,
				})
			}
			tx := w/1000*st.size + st.tc
			if s == " " {
				tx += st.tw
			}
			st.tm = translate(tx*st.th, 0).mul(st.tm)
		}
	}
	nextLine := func() {
		st.tlm = translate(0, -st.tl).mul(st.tlm)
		st.tm = st.tlm
	}
	matrixArgs := func(args []rpdf.Value) (affine, bool) {
		var m affine
		if len(args) != 6 {
			return m, false
		}
		for i := range m {
			m[i] = args[i].Float64()
		}
		return m, true
	}

	do := func(stk *rpdf.Stack, op string) {
		args := make([]rpdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		switch op {
		case "q":
			saved = append(saved, st)
		case "Q":
			if n := len(saved); n > 0 {
				st = saved[n-1]
				saved = saved[:n-1]
			}
		case "cm":
			if m, ok := matrixArgs(args); ok {
				st.ctm = m.mul(st.ctm)
			}
		case "BT":
			st.tm, st.tlm = identity, identity
		case "Tc":
			if len(args) == 1 {
				st.tc = args[0].Float64()
			}
		case "Tw":
			if len(args) == 1 {
				st.tw = args[0].Float64()
			}
		case "Tz":
			if len(args) == 1 {
				st.th = args[0].Float64() / 100
			}
		case "TL":
			if len(args) == 1 {
				st.tl = args[0].Float64()
			}
		case "Ts":
			if len(args) == 1 {
				st.rise = args[0].Float64()
			}
		case "Tf":
			if len(args) == 2 {
				st.font = p.Font(args[0].Name())
				st.base = baseFont(st.font)
				st.enc = st.font.Encoder()
				st.size = args[1].Float64()
			}
		case "TD", "Td":
			if len(args) == 2 {
				if op == "TD" {
					st.tl = -args[1].Float64()
				}
				st.tlm = translate(args[0].Float64(), args[1].Float64()).mul(st.tlm)
				st.tm = st.tlm
			}
		case "Tm":
			if m, ok := matrixArgs(args); ok {
				st.tm, st.tlm = m, m
			}
		case "T*":
			nextLine()
		case "Tj":
			if len(args) == 1 {
				show(args[0].RawString())
			}
		case "'":
			if len(args) == 1 {
				nextLine()
				show(args[0].RawString())
			}
		case "\"":
			if len(args) == 3 {
				st.tw = args[0].Float64()
				st.tc = args[1].Float64()
				nextLine()
				show(args[2].RawString())
			}
		case "TJ":
			if len(args) != 1 {
				return
			}
			v := args[0]
			for i := 0; i < v.Len(); i++ {
				x := v.Index(i)
				if x.Kind() == rpdf.String {
					show(x.RawString())
					continue
				}
				tx := -x.Float64() / 1000 * st.size * st.th
				st.tm = translate(tx, 0).mul(st.tm)
			}
		}
	}

	contents := p.V.Key("Contents")
	if contents.Kind() == rpdf.Array {
		for i := 0; i < contents.Len(); i++ {
			rpdf.Interpret(contents.Index(i), do)
		}
	} else {
		rpdf.Interpret(contents, do)
	}
	return out
}

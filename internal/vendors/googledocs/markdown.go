package googledocs

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"google.golang.org/api/docs/v1"
)

// Docs addresses text in UTF-16 code units; every offset below is one.

func utf16Len(s string) int64 {
	var n int64
	for _, r := range s {
		n += int64(utf16.RuneLen(r))
	}
	return n
}

type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockBullet
	blockOrdered
	blockCode
)

type block struct {
	kind  blockKind
	level int // heading level, or list nesting
	text  string
}

var (
	headingRe = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	bulletRe  = regexp.MustCompile(`^(\s*)[-*+]\s+(.*)$`)
	orderedRe = regexp.MustCompile(`^(\s*)\d+[.)]\s+(.*)$`)
	ruleRe    = regexp.MustCompile(`^\s*(?:(?:-\s*){3,}|(?:\*\s*){3,}|(?:_\s*){3,})$`)
)

func nesting(indent string) int {
	n := 0
	for _, r := range indent {
		if r == '\t' {
			n += 2
		} else {
			n++
		}
	}
	return n / 2
}

// parseBlocks splits markdown into paragraphs. Consecutive plain lines join
// into one paragraph; blank lines end it.
func parseBlocks(md string) []block {
	var (
		out  []block
		para []string
		code bool
	)
	flush := func() {
		if len(para) > 0 {
			out = append(out, block{kind: blockParagraph, text: strings.Join(para, " ")})
			para = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			flush()
			code = !code
			continue
		}
		if code {
			out = append(out, block{kind: blockCode, text: line})
			continue
		}
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			flush()
		case ruleRe.MatchString(line):
			flush()
		case headingRe.MatchString(line):
			flush()
			m := headingRe.FindStringSubmatch(line)
			out = append(out, block{kind: blockHeading, level: len(m[1]), text: m[2]})
		case bulletRe.MatchString(line):
			flush()
			m := bulletRe.FindStringSubmatch(line)
			out = append(out, block{kind: blockBullet, level: nesting(m[1]), text: m[2]})
		case orderedRe.MatchString(line):
			flush()
			m := orderedRe.FindStringSubmatch(line)
			out = append(out, block{kind: blockOrdered, level: nesting(m[1]), text: m[2]})
		default:
			para = append(para, trimmed)
		}
	}
	flush()
	return out
}

type spanKind int

const (
	spanBold spanKind = iota
	spanItalic
	spanStrike
	spanCode
	spanLink
)

type span struct {
	kind       spanKind
	start, end int64
	url        string
}

// parseInline strips inline markdown from s and reports the styled ranges
// of the remaining text.
func parseInline(s string) (string, []span) {
	var (
		b     strings.Builder
		spans []span
		pos   int64
	)
	emit := func(text string, inner []span, kind spanKind, url string) {
		for _, sp := range inner {
			sp.start += pos
			sp.end += pos
			spans = append(spans, sp)
		}
		n := utf16Len(text)
		if n > 0 {
			spans = append(spans, span{kind: kind, start: pos, end: pos + n, url: url})
		}
		b.WriteString(text)
		pos += n
	}
	for i := 0; i < len(s); {
		rest := s[i:]
		switch {
		case rest[0] == '\\' && len(rest) > 1 && strings.ContainsRune("\\`*_~[]()#", rune(rest[1])):
			b.WriteByte(rest[1])
			pos++
			i += 2
			continue
		case rest[0] == '`':
			if j := strings.IndexByte(rest[1:], '`'); j >= 0 {
				emit(rest[1:1+j], nil, spanCode, "")
				i += j + 2
				continue
			}
		case strings.HasPrefix(rest, "**"), strings.HasPrefix(rest, "__"):
			if j := strings.Index(rest[2:], rest[:2]); j > 0 {
				// "***" closes an inner emphasis first.
				for 2+j+2 < len(rest) && rest[2+j+2] == rest[0] {
					j++
				}
				text, inner := parseInline(rest[2 : 2+j])
				emit(text, inner, spanBold, "")
				i += j + 4
				continue
			}
		case strings.HasPrefix(rest, "~~"):
			if j := strings.Index(rest[2:], "~~"); j > 0 {
				text, inner := parseInline(rest[2 : 2+j])
				emit(text, inner, spanStrike, "")
				i += j + 4
				continue
			}
		case rest[0] == '*', rest[0] == '_':
			if rest[0] == '_' && i > 0 && isWordByte(s[i-1]) {
				break
			}
			if j := strings.IndexByte(rest[1:], rest[0]); j > 0 && rest[1] != ' ' {
				text, inner := parseInline(rest[1 : 1+j])
				emit(text, inner, spanItalic, "")
				i += j + 2
				continue
			}
		case rest[0] == '[':
			if mid := strings.IndexByte(rest, ']'); mid > 0 && strings.HasPrefix(rest[mid:], "](") {
				if end := strings.IndexByte(rest[mid+2:], ')'); end >= 0 {
					text, inner := parseInline(rest[1:mid])
					emit(text, inner, spanLink, rest[mid+2:mid+2+end])
					i += mid + 3 + end
					continue
				}
			}
		}
		r, size := utf8.DecodeRuneInString(rest)
		b.WriteRune(r)
		pos += int64(utf16.RuneLen(r))
		i += size
	}
	return b.String(), spans
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

const (
	codeFont       = "Courier New"
	bulletPreset   = "BULLET_DISC_CIRCLE_SQUARE"
	numberedPreset = "NUMBERED_DECIMAL_ALPHA_ROMAN"
)

func rng(start, end int64) *docs.Range {
	return &docs.Range{StartIndex: start, EndIndex: end}
}

func textStyle(sp span) (*docs.TextStyle, string) {
	switch sp.kind {
	case spanBold:
		return &docs.TextStyle{Bold: true}, "bold"
	case spanItalic:
		return &docs.TextStyle{Italic: true}, "italic"
	case spanStrike:
		return &docs.TextStyle{Strikethrough: true}, "strikethrough"
	case spanLink:
		return &docs.TextStyle{Link: &docs.Link{Url: sp.url}}, "link"
	default:
		return &docs.TextStyle{WeightedFontFamily: &docs.WeightedFontFamily{FontFamily: codeFont}}, "weightedFontFamily"
	}
}

// markdownRequests converts md into batchUpdate requests inserting it at
// index. Text goes in with one insert, then styles are applied. Bullets
// come last and from the end backwards: creating them strips the leading
// tabs that encode nesting, which shifts every later index.
func markdownRequests(md string, index int64) []*docs.Request {
	blocks := parseBlocks(md)
	if len(blocks) == 0 {
		return nil
	}

	var (
		text    strings.Builder
		styles  []*docs.Request
		bullets []*docs.Request
		pos     = index
	)
	type run struct {
		kind       blockKind
		start, end int64
	}
	var lists []run

	for _, b := range blocks {
		start := pos
		content, spans := b.text, []span(nil)
		if b.kind != blockCode {
			content, spans = parseInline(b.text)
		}
		prefix := ""
		if b.kind == blockBullet || b.kind == blockOrdered {
			prefix = strings.Repeat("\t", b.level)
		}
		line := prefix + content + "\n"
		text.WriteString(line)
		pos += utf16Len(line)

		textStart := start + int64(len(prefix))
		for _, sp := range spans {
			st, fields := textStyle(sp)
			styles = append(styles, &docs.Request{UpdateTextStyle: &docs.UpdateTextStyleRequest{
				Range: rng(textStart+sp.start, textStart+sp.end), TextStyle: st, Fields: fields,
			}})
		}

		switch b.kind {
		case blockHeading:
			styles = append(styles, &docs.Request{UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
				Range:          rng(start, pos),
				ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: fmt.Sprintf("HEADING_%d", b.level)},
				Fields:         "namedStyleType",
			}})
		case blockCode:
			if pos-1 > start {
				st, fields := textStyle(span{kind: spanCode})
				styles = append(styles, &docs.Request{UpdateTextStyle: &docs.UpdateTextStyleRequest{
					Range: rng(start, pos-1), TextStyle: st, Fields: fields,
				}})
			}
		case blockBullet, blockOrdered:
			if n := len(lists); n > 0 && lists[n-1].kind == b.kind && lists[n-1].end == start {
				lists[n-1].end = pos
			} else {
				lists = append(lists, run{kind: b.kind, start: start, end: pos})
			}
		}
	}

	for i := len(lists) - 1; i >= 0; i-- {
		preset := bulletPreset
		if lists[i].kind == blockOrdered {
			preset = numberedPreset
		}
		bullets = append(bullets, &docs.Request{CreateParagraphBullets: &docs.CreateParagraphBulletsRequest{
			Range: rng(lists[i].start, lists[i].end), BulletPreset: preset,
		}})
	}

	reqs := []*docs.Request{
		{InsertText: &docs.InsertTextRequest{Text: text.String(), Location: &docs.Location{Index: index}}},
		{UpdateParagraphStyle: &docs.UpdateParagraphStyleRequest{
			Range:          rng(index, pos),
			ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: "NORMAL_TEXT"},
			Fields:         "namedStyleType",
		}},
	}
	reqs = append(reqs, styles...)
	return append(reqs, bullets...)
}

// appendRequests inserts md at at, the index just before the document's
// final newline. When the last paragraph has text, the insert opens with a
// paragraph break so the new blocks never merge into it, and the document's
// own final newline closes the last new block.
func appendRequests(md string, at int64, breakBefore bool) []*docs.Request {
	if !breakBefore {
		return markdownRequests(md, at)
	}
	reqs := markdownRequests(md, at+1)
	if len(reqs) == 0 {
		return nil
	}
	insert := reqs[0].InsertText
	insert.Text = "\n" + strings.TrimSuffix(insert.Text, "\n")
	insert.Location.Index = at
	return reqs
}

var orderedGlyphs = map[string]bool{
	"DECIMAL": true, "ZERO_DECIMAL": true, "UPPER_ALPHA": true,
	"ALPHA": true, "UPPER_ROMAN": true, "ROMAN": true,
}

func ordered(d *docs.Document, b *docs.Bullet) bool {
	l, ok := d.Lists[b.ListId]
	if !ok || l.ListProperties == nil {
		return false
	}
	levels := l.ListProperties.NestingLevels
	if int(b.NestingLevel) >= len(levels) || levels[b.NestingLevel] == nil {
		return false
	}
	return orderedGlyphs[levels[b.NestingLevel].GlyphType]
}

// wrap surrounds the visible part of s with marker, keeping surrounding
// whitespace outside so the markdown stays valid.
func wrap(s, open, close string) string {
	core := strings.TrimSpace(s)
	if core == "" {
		return s
	}
	i := strings.Index(s, core)
	return s[:i] + open + core + close + s[i+len(core):]
}

func runMarkdown(r *docs.TextRun) string {
	s := strings.TrimSuffix(r.Content, "\n")
	st := r.TextStyle
	if st == nil || s == "" {
		return s
	}
	if st.WeightedFontFamily != nil && st.WeightedFontFamily.FontFamily == codeFont {
		return wrap(s, "`", "`")
	}
	if st.Bold {
		s = wrap(s, "**", "**")
	}
	if st.Italic {
		s = wrap(s, "*", "*")
	}
	if st.Strikethrough {
		s = wrap(s, "~~", "~~")
	}
	if st.Link != nil && st.Link.Url != "" {
		s = wrap(s, "[", "]("+st.Link.Url+")")
	}
	return s
}

func paragraphText(p *docs.Paragraph) string {
	var b strings.Builder
	for _, el := range p.Elements {
		if el.TextRun != nil {
			b.WriteString(runMarkdown(el.TextRun))
		}
	}
	return b.String()
}

func headingLevel(style string) int {
	switch style {
	case "TITLE":
		return 1
	case "SUBTITLE":
		return 2
	}
	var n int
	if _, err := fmt.Sscanf(style, "HEADING_%d", &n); err == nil && n >= 1 && n <= 6 {
		return n
	}
	return 0
}

// documentMarkdown renders the body of d as markdown.
func documentMarkdown(d *docs.Document) string {
	if d.Body == nil {
		return ""
	}
	var (
		out      []string
		prevList bool
	)
	add := func(s string, list bool) {
		if len(out) > 0 && !(list && prevList) {
			out = append(out, "")
		}
		out = append(out, s)
		prevList = list
	}
	for _, el := range d.Body.Content {
		switch {
		case el.Paragraph != nil:
			p := el.Paragraph
			text := paragraphText(p)
			if p.Bullet != nil {
				marker := "- "
				if ordered(d, p.Bullet) {
					marker = "1. "
				}
				add(strings.Repeat("  ", int(p.Bullet.NestingLevel))+marker+text, true)
				continue
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			if p.ParagraphStyle != nil {
				if n := headingLevel(p.ParagraphStyle.NamedStyleType); n > 0 {
					text = strings.Repeat("#", n) + " " + text
				}
			}
			add(text, false)
		case el.Table != nil:
			add(tableMarkdown(el.Table), false)
		}
	}
	return strings.Join(out, "\n")
}

func cellText(c *docs.TableCell) string {
	var parts []string
	for _, el := range c.Content {
		if el.Paragraph != nil {
			if t := strings.TrimSpace(paragraphText(el.Paragraph)); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.ReplaceAll(strings.Join(parts, " "), "|", `\|`)
}

func tableMarkdown(t *docs.Table) string {
	var lines []string
	for i, row := range t.TableRows {
		cells := make([]string, 0, len(row.TableCells))
		for _, c := range row.TableCells {
			cells = append(cells, cellText(c))
		}
		lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
		if i == 0 {
			lines = append(lines, "|"+strings.Repeat(" --- |", len(cells)))
		}
	}
	return strings.Join(lines, "\n")
}

package googledocs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/docs/v1"
)

func TestParseInline(t *testing.T) {
	text, spans := parseInline("Hello **bold *both*** and `x_y` [go](https://go.dev) snake_case_name")
	assert.Equal(t, "Hello bold both and x_y go snake_case_name", text)
	require.Len(t, spans, 4)
	assert.Equal(t, span{kind: spanItalic, start: 11, end: 15}, spans[0])
	assert.Equal(t, span{kind: spanBold, start: 6, end: 15}, spans[1])
	assert.Equal(t, span{kind: spanCode, start: 20, end: 23}, spans[2])
	assert.Equal(t, span{kind: spanLink, start: 24, end: 26, url: "https://go.dev"}, spans[3])
}

func TestParseInlineBracketsWithoutTarget(t *testing.T) {
	text, spans := parseInline("[note] see [x](y)")
	assert.Equal(t, "[note] see x", text)
	require.Len(t, spans, 1)
	assert.Equal(t, span{kind: spanLink, start: 11, end: 12, url: "y"}, spans[0])
}

func TestParseInlineCountsUTF16(t *testing.T) {
	text, spans := parseInline("😀 **x** \\*lit\\*")
	assert.Equal(t, "😀 x *lit*", text)
	require.Len(t, spans, 1)
	assert.Equal(t, int64(3), spans[0].start)
	assert.Equal(t, int64(4), spans[0].end)
	assert.Equal(t, int64(2), utf16Len("😀"))
}

func TestParseBlocks(t *testing.T) {
	blocks := parseBlocks("# Title\n\nline one\nline two\n\n- a\n  - b\n1. c\n---\n```\nx := 1\n```\n")
	assert.Equal(t, []block{
		{kind: blockHeading, level: 1, text: "Title"},
		{kind: blockParagraph, text: "line one line two"},
		{kind: blockBullet, text: "a"},
		{kind: blockBullet, level: 1, text: "b"},
		{kind: blockOrdered, text: "c"},
		{kind: blockCode, text: "x := 1"},
	}, blocks)
}

func TestMarkdownRequests(t *testing.T) {
	reqs := markdownRequests("# Title\n\nHello **bold** and [link](https://x).\n\n- one\n  - two\n1. first\n\n```\ncode\n```", 1)
	require.Len(t, reqs, 8)

	assert.Equal(t, "Title\nHello bold and link.\none\n\ttwo\nfirst\ncode\n", reqs[0].InsertText.Text)
	assert.Equal(t, int64(1), reqs[0].InsertText.Location.Index)

	assert.Equal(t, "NORMAL_TEXT", reqs[1].UpdateParagraphStyle.ParagraphStyle.NamedStyleType)
	assert.Equal(t, &docs.Range{StartIndex: 1, EndIndex: 48}, reqs[1].UpdateParagraphStyle.Range)

	assert.Equal(t, "HEADING_1", reqs[2].UpdateParagraphStyle.ParagraphStyle.NamedStyleType)
	assert.Equal(t, &docs.Range{StartIndex: 1, EndIndex: 7}, reqs[2].UpdateParagraphStyle.Range)

	assert.Equal(t, "bold", reqs[3].UpdateTextStyle.Fields)
	assert.Equal(t, &docs.Range{StartIndex: 13, EndIndex: 17}, reqs[3].UpdateTextStyle.Range)
	assert.Equal(t, "https://x", reqs[4].UpdateTextStyle.TextStyle.Link.Url)
	assert.Equal(t, &docs.Range{StartIndex: 22, EndIndex: 26}, reqs[4].UpdateTextStyle.Range)
	assert.Equal(t, codeFont, reqs[5].UpdateTextStyle.TextStyle.WeightedFontFamily.FontFamily)
	assert.Equal(t, &docs.Range{StartIndex: 43, EndIndex: 47}, reqs[5].UpdateTextStyle.Range)

	// Bullet runs are applied last, latest first.
	assert.Equal(t, numberedPreset, reqs[6].CreateParagraphBullets.BulletPreset)
	assert.Equal(t, &docs.Range{StartIndex: 37, EndIndex: 43}, reqs[6].CreateParagraphBullets.Range)
	assert.Equal(t, bulletPreset, reqs[7].CreateParagraphBullets.BulletPreset)
	assert.Equal(t, &docs.Range{StartIndex: 28, EndIndex: 37}, reqs[7].CreateParagraphBullets.Range)
}

func TestMarkdownRequestsEmpty(t *testing.T) {
	assert.Nil(t, markdownRequests("  \n\n", 1))
}

func run(text string, st *docs.TextStyle) *docs.ParagraphElement {
	return &docs.ParagraphElement{TextRun: &docs.TextRun{Content: text, TextStyle: st}}
}

func para(style string, b *docs.Bullet, els ...*docs.ParagraphElement) *docs.StructuralElement {
	return &docs.StructuralElement{Paragraph: &docs.Paragraph{
		Elements:       els,
		Bullet:         b,
		ParagraphStyle: &docs.ParagraphStyle{NamedStyleType: style},
	}}
}

func cell(text string) *docs.TableCell {
	return &docs.TableCell{Content: []*docs.StructuralElement{para("NORMAL_TEXT", nil, run(text+"\n", nil))}}
}

func TestDocumentMarkdown(t *testing.T) {
	d := &docs.Document{
		Lists: map[string]docs.List{
			"L1": {ListProperties: &docs.ListProperties{NestingLevels: []*docs.NestingLevel{{GlyphType: "DECIMAL"}}}},
			"L2": {ListProperties: &docs.ListProperties{NestingLevels: []*docs.NestingLevel{{GlyphSymbol: "●"}, {GlyphSymbol: "○"}}}},
		},
		Body: &docs.Body{Content: []*docs.StructuralElement{
			{SectionBreak: &docs.SectionBreak{}},
			para("HEADING_2", nil, run("Plan\n", nil)),
			para("NORMAL_TEXT", nil,
				run("Ship ", nil),
				run("fast ", &docs.TextStyle{Bold: true}),
				run("docs", &docs.TextStyle{Link: &docs.Link{Url: "https://go.dev"}}),
				run("\n", nil)),
			para("NORMAL_TEXT", nil, run("\n", nil)),
			para("NORMAL_TEXT", &docs.Bullet{ListId: "L2"}, run("alpha\n", nil)),
			para("NORMAL_TEXT", &docs.Bullet{ListId: "L2", NestingLevel: 1}, run("beta\n", nil)),
			para("NORMAL_TEXT", &docs.Bullet{ListId: "L1"}, run("first\n", nil)),
			{Table: &docs.Table{TableRows: []*docs.TableRow{
				{TableCells: []*docs.TableCell{cell("a"), cell("b")}},
				{TableCells: []*docs.TableCell{cell("1"), cell("2|3")}},
			}}},
		}},
	}
	want := "## Plan\n\nShip **fast** [docs](https://go.dev)\n\n- alpha\n  - beta\n1. first\n\n| a | b |\n| --- | --- |\n| 1 | 2\\|3 |"
	assert.Equal(t, want, documentMarkdown(d))
}

func TestEndIndex(t *testing.T) {
	assert.Equal(t, int64(1), endIndex(&docs.Document{}))
	d := &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{{EndIndex: 1}, {StartIndex: 1, EndIndex: 12}}}}
	assert.Equal(t, int64(11), endIndex(d))
}

func TestAppendRequestsBreaksParagraph(t *testing.T) {
	reqs := appendRequests("# Next\n\n- item", 11, true)
	require.Len(t, reqs, 4)
	assert.Equal(t, "\nNext\nitem", reqs[0].InsertText.Text)
	assert.Equal(t, int64(11), reqs[0].InsertText.Location.Index)
	assert.Equal(t, &docs.Range{StartIndex: 12, EndIndex: 22}, reqs[1].UpdateParagraphStyle.Range)
	assert.Equal(t, &docs.Range{StartIndex: 12, EndIndex: 17}, reqs[2].UpdateParagraphStyle.Range)
	assert.Equal(t, &docs.Range{StartIndex: 17, EndIndex: 22}, reqs[3].CreateParagraphBullets.Range)

	reqs = appendRequests("plain", 1, false)
	assert.Equal(t, "plain\n", reqs[0].InsertText.Text)
	assert.Nil(t, appendRequests(" ", 11, true))
}

func TestLastParagraphEmpty(t *testing.T) {
	assert.True(t, lastParagraphEmpty(&docs.Document{}))
	blank := &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{{EndIndex: 1}, {StartIndex: 1, EndIndex: 2}}}}
	assert.True(t, lastParagraphEmpty(blank))
	text := &docs.Document{Body: &docs.Body{Content: []*docs.StructuralElement{{EndIndex: 1}, {StartIndex: 1, EndIndex: 12}}}}
	assert.False(t, lastParagraphEmpty(text))
}

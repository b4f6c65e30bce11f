package render

import (
	"strings"
	"testing"

	"github.com/mozilla/clouseau/internal/aggregate"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/pkg/patchlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = domain.Catalog{
	Products: []string{"Firefox", "FennecAndroid"},
	Dates:    []string{"2016-08-15", "2016-08-14"},
}

func frame(fn, file string, line int, patches ...domain.Patch) domain.Frame {
	if patches == nil {
		patches = []domain.Patch{}
	}
	return domain.Frame{Function: fn, Location: domain.Location{Filename: file, Node: "abcdef0123456789", Line: line, Patches: patches}}
}

func testDataset() domain.Dataset {
	return domain.Dataset{
		"sigA": {
			{Count: 5, UUIDs: []string{"u5"}, Frames: []domain.Frame{frame("g", "b.cpp", 2)}},
			{Count: 10, UUIDs: []string{"u10"}, HasPatches: true, Frames: []domain.Frame{
				frame("z_first", "z.cpp", 30, domain.Patch{Node: "0123456789abcdef", PushDate: "2016-08-10"}),
				frame("a_second", "", 0),
			}},
		},
		"sigB": {{Count: 20, UUIDs: []string{"u20"}, Frames: []domain.Frame{}}},
	}
}

func render(t *testing.T, ds domain.Dataset, selected string, sel Selection) View {
	t.Helper()
	r := NewRenderer(patchlink.New("", ""))
	return r.Render(testCatalog, aggregate.Aggregate(ds, selected, true), sel, func(ev, val string) string {
		return "/?" + ev + "=" + val
	})
}

func TestRender_TitlesAndMenus(t *testing.T) {
	v := render(t, testDataset(), "", Selection{Product: "Firefox", Date: "2016-08-15"})

	assert.Equal(t, "Backtraces and patches in Firefox - 2016-08-15", v.Title)
	assert.Equal(t, "Firefox", v.ProductsTitle)
	assert.Equal(t, "2016-08-15", v.DatesTitle)
	assert.Equal(t, "sigB", v.SignaturesTitle)
	assert.Nil(t, v.Banner)

	links := Find(v.Signatures, ByTag("a"))
	require.Len(t, links, 2)
	assert.Equal(t, "sigB", TextContent(links[0]))
	assert.Equal(t, "sigA", TextContent(links[1]))
	assert.Equal(t, EventSelectSignature, links[0].Attr("data-event"))
	assert.Equal(t, "/?select_signature=sigB", links[0].Attr("href"))

	products := Find(v.Products, ByTag("li"))
	require.Len(t, products, 2)
	assert.True(t, products[0].HasClass("active"))
	assert.False(t, products[1].HasClass("active"))
	assert.Len(t, Find(v.Dates, ByTag("a")), 2)
}

func TestRender_EmptyDatasetPlaceholder(t *testing.T) {
	v := render(t, domain.Dataset{}, domain.NoSignature, Selection{Product: "Firefox", Date: "2016-08-15"})

	assert.Equal(t, NoSignaturesTitle, v.SignaturesTitle)
	assert.Empty(t, v.Signatures.Children)
	require.NotNil(t, v.Content)
	assert.True(t, v.Content.HasClass("no-signatures"))
	assert.Empty(t, Find(v.Content, ByTag("table")))
}

func TestRender_PanelForSelectedSignature(t *testing.T) {
	v := render(t, testDataset(), "sigA", Selection{Product: "Firefox", Date: "2016-08-15"})

	heading := Find(v.Content, ByClass("panel-heading"))
	require.Len(t, heading, 1)
	assert.Equal(t, "Backtraces for signature ‘sigA’", TextContent(heading[0]))

	blocks := Find(v.Content, ByClass("backtrace"))
	require.Len(t, blocks, 2)

	// count 10 ranks first: round(100*10/15) = 67
	summary := TextContent(Find(blocks[0], ByTag("p"))[0])
	assert.Equal(t, "This backtrace represents 67% of the different backtraces (total is 15).", summary)
	report := Find(blocks[0], ByTag("p"))[1]
	assert.Equal(t, "The report u10 has it.", TextContent(report))
	assert.Equal(t, "https://crash-stats.mozilla.com/report/index/u10", Find(report, ByTag("a"))[0].Attr("href"))

	assert.True(t, blocks[0].HasClass("has-patches"))
	assert.False(t, blocks[1].HasClass("has-patches"))
	assert.Contains(t, TextContent(blocks[1]), "represents 33%")
}

func TestRender_FrameRowsKeepOrder(t *testing.T) {
	v := render(t, testDataset(), "sigA", Selection{Product: "Firefox", Date: "2016-08-15"})
	block := Find(v.Content, ByClass("backtrace"))[0]

	header := Find(block, ByTag("th"))
	require.Len(t, header, 3)
	assert.Equal(t, "Functions", TextContent(header[0]))
	assert.Equal(t, "Files", TextContent(header[1]))
	assert.Equal(t, "Patches", TextContent(header[2]))

	rows := Find(Find(block, ByTag("tbody"))[0], ByTag("tr"))
	require.Len(t, rows, 2)
	assert.Equal(t, "z_first", TextContent(rows[0].Children[0]))
	assert.Equal(t, "a_second", TextContent(rows[1].Children[0]))

	file := Find(rows[0].Children[1], ByTag("a"))
	require.Len(t, file, 1)
	assert.Equal(t, "z.cpp", TextContent(file[0]))
	assert.Equal(t, "https://hg.mozilla.org/mozilla-central/annotate/abcdef0123456789/z.cpp#l30", file[0].Attr("href"))

	patches := rows[0].Children[2]
	assert.True(t, patches.HasClass("success"))
	patch := Find(patches, ByTag("a"))
	require.Len(t, patch, 1)
	assert.Equal(t, "0123456789abc", TextContent(patch[0]))
	assert.Equal(t, "https://hg.mozilla.org/mozilla-central/rev?node=0123456789abcdef", patch[0].Attr("href"))
	assert.Equal(t, "0123456789abc\u00a0at\u00a02016-08-10", TextContent(Find(patches, ByTag("li"))[0]))

	// empty filename and empty patch list render empty cells
	assert.Empty(t, rows[1].Children[1].Children)
	assert.Empty(t, rows[1].Children[2].Children)
	assert.False(t, rows[1].Children[2].HasClass("success"))
}

func TestRender_ErrorBanner(t *testing.T) {
	v := render(t, testDataset(), "", Selection{Product: "Firefox", Date: "2016-08-15", Error: "failed to load catalog"})

	require.NotNil(t, v.Banner)
	assert.Equal(t, "failed to load catalog", TextContent(v.Banner))
}

func TestRender_NilLinkFunc(t *testing.T) {
	r := NewRenderer(nil)
	v := r.Render(testCatalog, aggregate.Aggregate(testDataset(), "", false), Selection{}, nil)

	for _, a := range Find(v.Products, ByTag("a")) {
		assert.Equal(t, "#", a.Attr("href"))
	}
}

func TestRender_Deterministic(t *testing.T) {
	sel := Selection{Product: "Firefox", Date: "2016-08-15"}
	first, err := HTML(render(t, testDataset(), "sigA", sel).Content)
	require.NoError(t, err)
	second, err := HTML(render(t, testDataset(), "sigA", sel).Content)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestHTML_EscapesText(t *testing.T) {
	ds := domain.Dataset{"js::Foo<T>&Bar | baz": {{Count: 1, UUIDs: []string{"u"}}}}
	v := render(t, ds, "", Selection{Product: "Firefox", Date: "2016-08-15"})

	content, err := HTML(v.Content)
	require.NoError(t, err)
	assert.Contains(t, content, "js::Foo&lt;T&gt;&amp;Bar | baz")
	assert.NotContains(t, content, "<T>")

	menu, err := HTML(v.Signatures)
	require.NoError(t, err)
	assert.Contains(t, menu, `data-value="js::Foo&lt;T&gt;&amp;Bar | baz"`)
}

func TestHTML_SortedAttributes(t *testing.T) {
	out, err := HTML(El("a", map[string]string{"href": "/x", "class": "c", "data-event": "e"}, Text("x")))
	require.NoError(t, err)
	assert.Equal(t, `<a class="c" data-event="e" href="/x">x</a>`, out)
}

func TestHTML_Nil(t *testing.T) {
	out, err := HTML(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestTextContent(t *testing.T) {
	n := El("p", nil, Text("a"), El("b", nil, Text("b")), Text("c"))
	assert.Equal(t, "abc", TextContent(n))
	assert.True(t, strings.HasPrefix(TextContent(El("div", nil, n)), "a"))
}

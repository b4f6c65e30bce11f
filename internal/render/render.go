// Package render turns an aggregated view into a tree of plain nodes. It
// performs no I/O; HTML materializes a tree into markup for the host page.
package render

import (
	"strconv"

	"github.com/mozilla/clouseau/internal/domain"
	"github.com/mozilla/clouseau/pkg/patchlink"
)

const nbsp = "\u00a0"

// NoSignaturesTitle is shown as the signatures menu title for an empty dataset
const NoSignaturesTitle = "No signatures !"

// Menu event names carried by navigation entries
const (
	EventSelectProduct   = "select_product"
	EventSelectDate      = "select_date"
	EventSelectSignature = "select_signature"
)

// LinkFunc returns the deep link that issues event with value
type LinkFunc func(event, value string) string

// Selection is the part of the navigation state the view depends on
type Selection struct {
	Product string
	Date    string
	Error   string
}

// View is the rendered page, one tree per host container
type View struct {
	Title           string `json:"title"`
	ProductsTitle   string `json:"products_title"`
	DatesTitle      string `json:"dates_title"`
	SignaturesTitle string `json:"signatures_title"`
	Products        *Node  `json:"products"`
	Dates           *Node  `json:"dates"`
	Signatures      *Node  `json:"signatures"`
	Content         *Node  `json:"content"`
	Banner          *Node  `json:"banner,omitempty"`
}

// Renderer builds views. It is safe for concurrent use.
type Renderer struct {
	links *patchlink.Builder
}

// NewRenderer creates a renderer; a nil builder uses the default link targets
func NewRenderer(links *patchlink.Builder) *Renderer {
	if links == nil {
		links = patchlink.New("", "")
	}
	return &Renderer{links: links}
}

// Render builds the view for catalog, the aggregated dataset view and the
// current selection. link may be nil, in which case menu entries link to "#".
func (r *Renderer) Render(catalog domain.Catalog, view *domain.AggregatedView, sel Selection, link LinkFunc) View {
	if link == nil {
		link = func(string, string) string { return "#" }
	}

	v := View{
		Title:         "Backtraces and patches in " + sel.Product + " - " + sel.Date,
		ProductsTitle: sel.Product,
		DatesTitle:    sel.Date,
		Products:      menu(catalog.Products, sel.Product, EventSelectProduct, link),
		Dates:         menu(catalog.Dates, sel.Date, EventSelectDate, link),
	}
	if sel.Error != "" {
		v.Banner = El("div", map[string]string{"class": "alert alert-danger", "role": "alert"}, Text(sel.Error))
	}

	if view.Empty() {
		v.SignaturesTitle = NoSignaturesTitle
		v.Signatures = El("ul", map[string]string{"class": "dropdown-menu"})
		v.Content = El("div", map[string]string{"class": "no-signatures"}, El("p", nil, Text(NoSignaturesTitle)))
		return v
	}

	names := make([]string, len(view.Signatures))
	for i, s := range view.Signatures {
		names[i] = s.Signature
	}
	v.SignaturesTitle = view.Selected
	v.Signatures = menu(names, view.Selected, EventSelectSignature, link)
	v.Content = r.panel(view)
	return v
}

func menu(items []string, current, event string, link LinkFunc) *Node {
	ul := El("ul", map[string]string{"class": "dropdown-menu"})
	for _, item := range items {
		attrs := map[string]string{
			"href":       link(event, item),
			"data-event": event,
			"data-value": item,
		}
		li := El("li", nil, El("a", attrs, Text(item)))
		if item == current {
			li.Attrs = map[string]string{"class": "active"}
		}
		ul.Append(li)
	}
	return ul
}

func (r *Renderer) panel(view *domain.AggregatedView) *Node {
	heading := El("div", map[string]string{"class": "panel-heading"},
		Text("Backtraces for signature ‘"),
		El("span", map[string]string{"id": "signature"}, Text(view.Selected)),
		Text("’"),
	)
	panel := El("div", map[string]string{"class": "panel panel-default"}, heading)
	for _, rb := range view.Backtraces {
		panel.Append(r.backtrace(rb, view.Total))
	}
	return panel
}

func (r *Renderer) backtrace(rb domain.RankedBacktrace, total int) *Node {
	bt := rb.Backtrace
	uuid := bt.Representative()

	summary := El("div", map[string]string{"class": "well"},
		El("p", nil, Text("This backtrace represents "+strconv.Itoa(rb.Percentage)+
			"% of the different backtraces (total is "+strconv.Itoa(total)+").")),
		El("p", nil,
			Text("The report "),
			El("a", map[string]string{"href": r.links.CrashReportLink(uuid)}, Text(uuid)),
			Text(" has it."),
		),
	)

	tbody := El("tbody", nil)
	for _, f := range bt.Frames {
		tbody.Append(r.frameRow(f))
	}
	table := El("table", map[string]string{"class": "table table-bordered container"},
		El("thead", nil, El("tr", nil,
			El("th", nil, Text("Functions")),
			El("th", nil, Text("Files")),
			El("th", nil, Text("Patches")),
		)),
		tbody,
	)

	class := "backtrace"
	if bt.HasPatches {
		class += " has-patches"
	}
	return El("div", map[string]string{"class": class},
		summary,
		El("div", map[string]string{"class": "container"}, table),
	)
}

func (r *Renderer) frameRow(f domain.Frame) *Node {
	loc := f.Location

	file := El("td", nil)
	if loc.Filename != "" {
		file.Append(El("a", map[string]string{"href": r.links.AnnotateLink(loc.Node, loc.Filename, loc.Line)}, Text(loc.Filename)))
	}

	return El("tr", nil,
		El("td", nil, Text(f.Function)),
		file,
		r.patchCell(loc.Patches),
	)
}

func (r *Renderer) patchCell(patches []domain.Patch) *Node {
	if len(patches) == 0 {
		return El("td", nil)
	}
	ul := El("ul", nil)
	for _, p := range patches {
		ul.Append(El("li", nil,
			El("a", map[string]string{"href": r.links.RevisionLink(p.Node)}, Text(patchlink.ShortNode(p.Node))),
			Text(nbsp+"at"+nbsp+p.PushDate),
		))
	}
	return El("td", map[string]string{"class": "success"}, ul)
}

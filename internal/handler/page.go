package handler

import (
	"html/template"

	"github.com/mozilla/clouseau/internal/render"
	"github.com/mozilla/clouseau/internal/service"
)

// PageTemplateName is the name the page shell is registered under
const PageTemplateName = "dashboard.html"

const pageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
{{- if .Loading}}
<meta http-equiv="refresh" content="{{.Refresh}}">
{{- end}}
<title>{{.View.Title}}</title>
<link rel="stylesheet" href="https://maxcdn.bootstrapcdn.com/bootstrap/3.3.7/css/bootstrap.min.css">
</head>
<body>
<nav class="navbar navbar-default">
<div class="container-fluid">
<ul class="nav navbar-nav">
<li class="dropdown"><a class="dropdown-toggle" href="#"><span id="productstitle">{{.View.ProductsTitle}}</span></a><div id="productsbutton">{{.Products}}</div></li>
<li class="dropdown"><a class="dropdown-toggle" href="#"><span id="datestitle">{{.View.DatesTitle}}</span></a><div id="datesbutton">{{.Dates}}</div></li>
<li class="dropdown"><a class="dropdown-toggle" href="#"><span id="signaturestitle">{{.View.SignaturesTitle}}</span></a><div id="sgnsbutton">{{.Signatures}}</div></li>
</ul>
</div>
</nav>
{{.Banner}}
{{- if .Loading}}
<div class="alert alert-info" role="status">Loading…</div>
{{- end}}
<div id="main">{{.Content}}</div>
<script>
(function () {
  var proto = location.protocol === "https:" ? "wss:" : "ws:";
  var sock = new WebSocket(proto + "//" + location.host + "/ws");
  sock.onmessage = function (e) {
    var ev = JSON.parse(e.data);
    if (ev.type === "view_changed" && ev.payload.idle) {
      location.reload();
    }
  };
})();
</script>
</body>
</html>
`

// PageTemplate parses the host page. The containers receive markup that
// render.HTML has already escaped.
func PageTemplate() *template.Template {
	return template.Must(template.New(PageTemplateName).Parse(pageShell))
}

type pageData struct {
	View       render.View
	Loading    bool
	Refresh    int
	Products   template.HTML
	Dates      template.HTML
	Signatures template.HTML
	Content    template.HTML
	Banner     template.HTML
}

func newPageData(page *service.Page, refresh int) (pageData, error) {
	data := pageData{View: page.View, Loading: page.Loading, Refresh: refresh}

	targets := []struct {
		node *render.Node
		dst  *template.HTML
	}{
		{page.View.Products, &data.Products},
		{page.View.Dates, &data.Dates},
		{page.View.Signatures, &data.Signatures},
		{page.View.Content, &data.Content},
		{page.View.Banner, &data.Banner},
	}
	for _, t := range targets {
		markup, err := render.HTML(t.node)
		if err != nil {
			return pageData{}, err
		}
		*t.dst = template.HTML(markup) // #nosec G203 - escaped by render.HTML
	}
	return data, nil
}

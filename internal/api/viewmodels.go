package api

import (
	"html/template"

	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/render"
)

// PageData is what index.html renders.
type PageData struct {
	*explore.Dashboard
	// Charts maps a chart name to its PNG URL for the current selection.
	Charts map[string]template.URL
}

func newPageData(d *explore.Dashboard) PageData {
	q := EncodeState(d.State).Encode()
	charts := make(map[string]template.URL, len(render.Charts))
	for _, name := range render.Charts {
		charts[name] = template.URL("/charts/" + name + ".png?" + q)
	}
	return PageData{Dashboard: d, Charts: charts}
}

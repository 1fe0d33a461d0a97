package htmlutil

import (
	"strings"
	"testing"
)

func TestPageText(t *testing.T) {
	doc := `<!DOCTYPE html><html><head><title>T</title><style>body { color: red; }</style></head>` +
		`<body><h1>Strava Wearable Metrics Explorer</h1><p>Rows &amp; more</p></body></html>`

	got := PageText(doc)
	if strings.Contains(got, "color: red") {
		t.Errorf("style leaked into text: %q", got)
	}
	for _, want := range []string{"Strava Wearable Metrics Explorer", "Rows & more"} {
		if !strings.Contains(got, want) {
			t.Errorf("text %q missing %q", got, want)
		}
	}
}

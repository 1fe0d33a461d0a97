package api

import (
	"embed"
	"fmt"
	"html/template"
	"slices"

	"github.com/lox/stravaexplorer/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"hasTime": func(set []models.TimeOfDay, t models.TimeOfDay) bool {
			return slices.Contains(set, t)
		},
		"hasMonth": func(set []string, m string) bool {
			return slices.Contains(set, m)
		},
		"num": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

package render

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Template names.
const (
	Trail     = "trail.tmpl"
	Signature = "signature.tmpl"
)

// TimeLayout is used for every timestamp printed by the templates.
const TimeLayout = "2006-01-02 15:04 MST"

// Engine renders templates embedded in the package.
type Engine struct {
	templates *template.Template
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(template.FuncMap{
		"timestamp": timestamp,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with the provided data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func timestamp(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case *time.Time:
		if t == nil {
			return "-"
		}
		return t.UTC().Format(TimeLayout)
	default:
		return fmt.Sprint(v)
	}
}

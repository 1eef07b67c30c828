// Package templates renders the activation pages by logical view name
package templates

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
)

//go:embed html/*.html html/device/*.html
var content embed.FS

const layoutFile = "html/layout.html"

// View names rendered by the host pages
const (
	ViewVerify  = "verify"
	ViewConsent = "consent"
)

// TemplateError wraps a failure to render a view
type TemplateError struct {
	View    string
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	if e.View != "" {
		return fmt.Sprintf("template error: %s %q: %v", e.Message, e.View, e.Cause)
	}
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates holds every view parsed against the shared layout
type Templates struct {
	views map[string]*template.Template
}

// LoadTemplates parses all embedded views. A view is named by its path
// under html/ without extension, e.g. "device/allowed".
func LoadTemplates() (*Templates, error) {
	files, err := fs.Glob(content, "html/*.html")
	if err != nil {
		return nil, err
	}
	deviceFiles, err := fs.Glob(content, "html/device/*.html")
	if err != nil {
		return nil, err
	}

	t := &Templates{views: make(map[string]*template.Template)}
	for _, file := range append(files, deviceFiles...) {
		if file == layoutFile {
			continue
		}
		tmpl, err := template.ParseFS(content, file, layoutFile)
		if err != nil {
			return nil, &TemplateError{View: file, Message: "parsing", Cause: err}
		}
		t.views[viewName(file)] = tmpl
	}
	return t, nil
}

func viewName(file string) string {
	return strings.TrimSuffix(strings.TrimPrefix(file, "html/"), path.Ext(file))
}

// Has reports whether a view exists
func (t *Templates) Has(view string) bool {
	_, ok := t.views[view]
	return ok
}

// Render executes the named view with data
func (t *Templates) Render(w io.Writer, view string, data any) error {
	tmpl, ok := t.views[view]
	if !ok {
		return &TemplateError{View: view, Message: "rendering", Cause: fmt.Errorf("unknown view")}
	}
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		return &TemplateError{View: view, Message: "rendering", Cause: err}
	}
	return nil
}

// VerifyData holds data for the code entry page
type VerifyData struct {
	PrefilledCode   string
	CSRFToken       string
	VerificationURI string
	Error           string
}

// ConsentData holds data for the allow/deny page
type ConsentData struct {
	UserCode   string
	ClientName string
	Scope      []string
	CSRFToken  string
}

package common

import (
	"bytes"
	"io"
	"net/http"
)

// Renderer executes a named view
type Renderer interface {
	Render(w io.Writer, view string, data any) error
}

// HTMLSink adapts a response writer to the decision engine's Sink by
// rendering views as HTML pages
type HTMLSink struct {
	http.ResponseWriter
	renderer Renderer
	status   int
}

// NewHTMLSink creates a sink that renders through renderer
func NewHTMLSink(w http.ResponseWriter, renderer Renderer) *HTMLSink {
	return &HTMLSink{ResponseWriter: w, renderer: renderer}
}

// WithStatus sets the status code used for the next render
func (s *HTMLSink) WithStatus(status int) *HTMLSink {
	s.status = status
	return s
}

// Render writes the view. Output is buffered so a template failure leaves
// the response untouched.
func (s *HTMLSink) Render(view string, locals map[string]any) error {
	var buf bytes.Buffer
	if err := s.renderer.Render(&buf, view, locals); err != nil {
		return err
	}

	s.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.Header().Set("Cache-Control", "no-store")
	if s.status != 0 {
		s.WriteHeader(s.status)
	}
	_, err := buf.WriteTo(s.ResponseWriter)
	return err
}

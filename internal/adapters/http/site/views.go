package site

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"github.com/okian/movierank/internal/domain/model"
)

const (
	pageIndex   = "index.html"
	pageWelcome = "welcome.html"
	pageAdd     = "add.html"
	pageSelect  = "select.html"
	pageEdit    = "edit.html"
	pageError   = "error.html"
)

var pages = []string{pageIndex, pageWelcome, pageAdd, pageSelect, pageEdit, pageError}

// pageData is the single view model shared by every page.
type pageData struct {
	Title     string
	RequestID string
	MultiUser bool

	Owner           string
	Owners          []string
	Unassigned      bool
	UnassignedCount int
	Movies          []model.Movie
	Movie           model.Movie
	Results         []model.CatalogResult

	Form   formValues
	Errors map[string]string
	Exists string

	Status  int
	Message string
}

// formValues echoes submitted input back into a re-rendered form.
type formValues struct {
	Title  string
	Rating string
	Review string
	Owner  string
}

type views struct {
	pages map[string]*template.Template
}

// parseViews builds one template set per page, each joined with the layout.
func parseViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrRender, name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// render executes into a buffer; nothing is written when the template fails.
func (v *views) render(w http.ResponseWriter, status int, name string, data pageData) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("%w: unknown page %s", ErrRender, name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRender, name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

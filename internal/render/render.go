// Package render turns a report into the admin tables.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"clockreport.service/internal/core/model"
)

// ErrorMessage replaces the rows of a section whose query failed.
const ErrorMessage = "Could not load this report."

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

type Presenter struct {
	loc       *time.Location
	adminBase *url.URL
}

// NewPresenter creates a presenter that formats times in loc and links rows
// to the record editor under adminBaseURL.
func NewPresenter(loc *time.Location, adminBaseURL string) (*Presenter, error) {
	base, err := url.Parse(adminBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid admin base url: %w", err)
	}
	// ResolveReference replaces the last segment of a base without a trailing slash
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Presenter{loc: loc, adminBase: base}, nil
}

// Present fills the display rows of every section.
func (p *Presenter) Present(r model.Report) model.Report {
	sections := make([]model.Section, len(r.Sections))
	for i, s := range r.Sections {
		s.Rows = p.Rows(s.Entries)
		sections[i] = s
	}
	r.Sections = sections
	return r
}

// Rows formats entries for display. Entries without a usable time keep an
// empty timestamp cell.
func (p *Presenter) Rows(entries []model.ReportEntry) []model.Row {
	rows := make([]model.Row, 0, len(entries))
	for _, e := range entries {
		name := e.DisplayName
		if name == "" {
			name = e.UserRef
		}
		row := model.Row{DisplayName: name, EditLink: p.EditLink(e.EventID)}
		if t, ok := e.Time(); ok {
			row.Timestamp = t.In(p.loc).Format(model.DisplayTimeLayout)
		}
		rows = append(rows, row)
	}
	return rows
}

// EditLink points at the CMS editor for a clock record.
func (p *Presenter) EditLink(eventID int64) string {
	ref := &url.URL{Path: "post.php", RawQuery: fmt.Sprintf("post=%d&action=edit", eventID)}
	return p.adminBase.ResolveReference(ref).String()
}

type view struct {
	model.Report
	ErrorMessage string
}

// RenderPage writes the full admin page.
func (p *Presenter) RenderPage(w io.Writer, r model.Report) error {
	return p.execute(w, "page", r)
}

// RenderFragment writes the tables only, for embedding in other pages.
func (p *Presenter) RenderFragment(w io.Writer, r model.Report) error {
	return p.execute(w, "report", r)
}

// Fragment returns the embeddable tables as a string.
func (p *Presenter) Fragment(r model.Report) (string, error) {
	var buf bytes.Buffer
	if err := p.RenderFragment(&buf, r); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (p *Presenter) execute(w io.Writer, name string, r model.Report) error {
	// render into a buffer so a template error never leaves half a page behind
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, view{Report: p.Present(r), ErrorMessage: ErrorMessage}); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"clockreport.service/internal/core/model"
	"github.com/rs/zerolog/log"
)

// ReportBuilder produces the three-section clock report.
type ReportBuilder interface {
	BuildReport(ctx context.Context) model.Report
}

// Presenter turns a report into HTML or display rows.
type Presenter interface {
	Present(r model.Report) model.Report
	RenderPage(w io.Writer, r model.Report) error
	RenderFragment(w io.Writer, r model.Report) error
}

type ReportHandler struct {
	Reports   ReportBuilder
	Presenter Presenter
}

// AdminPage serves the full "Logged In Users" panel.
func (h *ReportHandler) AdminPage(w http.ResponseWriter, r *http.Request) {
	report := h.Reports.BuildReport(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Presenter.RenderPage(w, report); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render admin page")
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
	}
}

// Embed serves the report tables without page chrome so another page can include them.
func (h *ReportHandler) Embed(w http.ResponseWriter, r *http.Request) {
	report := h.Reports.BuildReport(r.Context())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.Presenter.RenderFragment(w, report); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to render report fragment")
		http.Error(w, "Failed to render report", http.StatusInternalServerError)
	}
}

type sectionResponse struct {
	Key          model.SectionKey `json:"key"`
	Title        string           `json:"title"`
	TimeHeading  string           `json:"timeHeading"`
	EmptyMessage string           `json:"emptyMessage"`
	Rows         []model.Row      `json:"rows"`
	Error        string           `json:"error,omitempty"`
}

type reportResponse struct {
	GeneratedAt string            `json:"generatedAt"`
	Sections    []sectionResponse `json:"sections"`
}

// Report serves the same report as JSON. Failed sections carry a short
// error marker instead of rows.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	report := h.Presenter.Present(h.Reports.BuildReport(r.Context()))

	resp := reportResponse{GeneratedAt: report.GeneratedAt.Format(time.RFC3339)}
	for _, s := range report.Sections {
		sr := sectionResponse{
			Key:          s.Key,
			Title:        s.Title,
			TimeHeading:  s.TimeHeading,
			EmptyMessage: s.EmptyMessage,
			Rows:         s.Rows,
		}
		if s.Failed() {
			sr.Error = "unavailable"
			sr.Rows = []model.Row{}
		}
		resp.Sections = append(resp.Sections, sr)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

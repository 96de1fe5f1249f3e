package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"clockreport.service/internal/api/handler"
)

// NewRouter sets up the gorilla/mux router and defines all routes.
func NewRouter(reports handler.ReportBuilder, presenter handler.Presenter) *mux.Router {

	reportHandler := handler.ReportHandler{
		Reports:   reports,
		Presenter: presenter,
	}

	r := mux.NewRouter()
	r.Use(handler.RequestID)

	r.HandleFunc("/admin/loggedin-users", reportHandler.AdminPage).Methods(http.MethodGet)
	r.HandleFunc("/embed/loggedin-users", reportHandler.Embed).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/report", reportHandler.Report).Methods(http.MethodGet)
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Service is operational."))
	}).Methods(http.MethodGet)

	return r
}

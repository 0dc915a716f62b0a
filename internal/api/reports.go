package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/service"
	"github.com/haral/audit-reports/internal/store"
)

func (s *Server) listReports(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	s.writeReports(w, r, func() ([]model.Report, error) {
		return s.svc.ListReports(r.Context(), filter)
	})
}

func (s *Server) searchReports(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseFilter(w, r)
	if !ok {
		return
	}
	s.writeReports(w, r, func() ([]model.Report, error) {
		return s.svc.Search(r.Context(), r.URL.Query().Get("q"), filter)
	})
}

func (s *Server) writeReports(w http.ResponseWriter, r *http.Request, list func() ([]model.Report, error)) {
	reports, err := list()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (store.ReportFilter, bool) {
	q := r.URL.Query()
	filter := store.ReportFilter{
		Query:      q.Get("q"),
		Status:     model.ReportStatus(q.Get("status")),
		CustomerID: q.Get("customer_id"),
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, fmt.Sprintf("%s must be a non-negative integer", name))
			return filter, false
		}
		*dst = n
	}
	return filter, true
}

func (s *Server) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Statistics(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		badRequest(w, "invalid request body")
		return nil, false
	}
	return fields, true
}

func (s *Server) createReport(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	rep, err := s.svc.CreateReport(r.Context(), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) updateReport(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	rep, err := s.svc.UpdateReport(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) deleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.ReportStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rep, err := s.svc.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) duplicateReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.DuplicateReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	file, name, ok := s.formFile(w, r, "image", "file")
	if !ok {
		return
	}
	defer file.Close()

	rep, err := s.svc.AddReportImage(r.Context(), chi.URLParam(r, "id"), name, r.FormValue("caption"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) downloadPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var doc *service.Document
	err := s.gate.Do(r.Context(), func(ctx context.Context) error {
		var err error
		doc, err = s.svc.RenderReport(ctx, id)
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// formFile reads the first present multipart file among names.
func (s *Server) formFile(w http.ResponseWriter, r *http.Request, names ...string) (multipart.File, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return nil, "", false
		}
		badRequest(w, "invalid multipart form")
		return nil, "", false
	}
	for _, name := range names {
		file, header, err := r.FormFile(name)
		if err == nil {
			return file, header.Filename, true
		}
	}
	badRequest(w, "file is required")
	return nil, "", false
}

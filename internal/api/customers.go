package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/haral/audit-reports/internal/model"
)

func (s *Server) listCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListCustomers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if list == nil {
		list = []model.Customer{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createCustomer(w http.ResponseWriter, r *http.Request) {
	var c model.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c.LogoRef = ""
	if err := s.svc.CreateCustomer(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) getCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCustomer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var c model.Customer
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	c.ID = chi.URLParam(r, "id")
	c.LogoRef = ""
	if err := s.svc.UpdateCustomer(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCustomer(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uploadLogo(w http.ResponseWriter, r *http.Request) {
	file, name, ok := s.formFile(w, r, "logo", "file")
	if !ok {
		return
	}
	defer file.Close()

	c, err := s.svc.SetCustomerLogo(r.Context(), chi.URLParam(r, "id"), name, file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

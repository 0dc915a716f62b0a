package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haral/audit-reports/internal/files"
	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/render"
	"github.com/haral/audit-reports/internal/service"
	"github.com/haral/audit-reports/internal/store"
)

func newTestServer(t *testing.T, mutate func(o *service.Options)) *httptest.Server {
	t.Helper()
	dir := t.TempDir()

	st, err := store.NewSQLite(filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	fs, err := files.NewLocal(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	engine := metrics.NewEngine(metrics.DefaultRates())
	renderer := render.New(engine, fs, render.Options{
		Brand:      render.Brand{Name: "HARAL", Tagline: "VERPACKUNGSLÖSUNGEN"},
		MaxImagePx: 400,
		Now:        func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) },
	})

	opts := service.Options{OutputDir: filepath.Join(dir, "reports")}
	if mutate != nil {
		mutate(&opts)
	}
	svc := service.New(st, engine, renderer, fs, opts)

	srv := httptest.NewServer(NewServer(svc, NewRenderGate(2, 0), Options{MaxUploadBytes: 1 << 20}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() }) //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func createCustomer(t *testing.T, base string) model.Customer {
	t.Helper()
	var c model.Customer
	resp := doJSON(t, http.MethodPost, base+"/api/customers", map[string]any{
		"company_name": "IGM GmbH", "city": "Speyer",
	}, &c)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotEmpty(t, c.ID)
	return c
}

func createReport(t *testing.T, base, customerID string) model.Report {
	t.Helper()
	var r model.Report
	resp := doJSON(t, http.MethodPost, base+"/api/reports", map[string]any{
		"customer_id":                 customerID,
		"author":                      "Erika Muster",
		"film_thickness":              "23",
		"film_consumption_per_pallet": 428,
		"pallets_per_year":            3000,
		"alternatives":                []any{map[string]any{"film_thickness": "17"}},
	}, &r)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return r
}

func multipartBody(t *testing.T, field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	var body map[string]string
	resp := doJSON(t, http.MethodGet, srv.URL+"/health", nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestCustomerRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createCustomer(t, srv.URL)

	var list []model.Customer
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/customers", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)

	var updated model.Customer
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/customers/"+c.ID, map[string]any{
		"company_name": "IGM Fenster GmbH",
	}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "IGM Fenster GmbH", updated.CompanyName)

	var errBody errorBody
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/customers", map[string]any{"city": "X"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "company_name", errBody.Field)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/customers/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/customers/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestDeleteCustomerWithReportsConflicts(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createCustomer(t, srv.URL)
	createReport(t, srv.URL, c.ID)

	resp := doJSON(t, http.MethodDelete, srv.URL+"/api/customers/"+c.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestReportLifecycle(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createCustomer(t, srv.URL)
	r := createReport(t, srv.URL, c.ID)

	require.NotNil(t, r.Derived.MaterialSavings)
	assert.InDelta(t, 26.1, *r.Derived.MaterialSavings, 0.001)
	assert.Len(t, r.AuditNumber, 8)

	var got model.Report
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/reports/"+r.ID, nil, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, got.Alternatives, 1)

	var updated model.Report
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/reports/"+r.ID, map[string]any{"film_thickness": "20"}, &updated)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.InDelta(t, 15.0, *updated.Derived.MaterialSavings, 0.001)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/reports/"+r.ID, map[string]any{"audit_number": "1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var completed model.Report
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/reports/"+r.ID+"/status", map[string]any{"status": "completed"}, &completed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.ReportStatusCompleted, completed.Status)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/reports/"+r.ID+"/status", map[string]any{"status": "gone"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var dup model.Report
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reports/"+r.ID+"/duplicate", nil, &dup)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, model.DefaultReportTitle+" (Kopie)", dup.Title)
	assert.Equal(t, model.ReportStatusDraft, dup.Status)

	var list []model.Report
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reports?status=completed", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reports/search?q=Kopie", nil, &list)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, dup.ID, list[0].ID)

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reports?limit=-1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stats store.ReportStats
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reports/statistics", nil, &stats)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.ReportStatusCompleted])

	resp = doJSON(t, http.MethodDelete, srv.URL+"/api/reports/"+dup.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/reports/"+dup.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateReportValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	var errBody errorBody
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/reports", map[string]any{"author": "A"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "customer_id", errBody.Field)
	assert.Empty(t, errBody.Allowed)

	errBody = errorBody{}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/reports", map[string]any{"author": "A", "colour": "blau"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "colour", errBody.Field)
	assert.Contains(t, errBody.Allowed, "film_thickness")
	assert.Contains(t, errBody.Allowed, "holding_force_long_top_target")
	assert.NotContains(t, errBody.Allowed, "audit_number")

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/reports", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestUploads(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createCustomer(t, srv.URL)
	r := createReport(t, srv.URL, c.ID)

	body, ct := multipartBody(t, "logo", "logo.png", []byte("png"), nil)
	resp, err := http.Post(srv.URL+"/api/customers/"+c.ID+"/logo", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var withLogo model.Customer
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&withLogo))
	assert.True(t, strings.HasPrefix(withLogo.LogoRef, "logos/"))

	body, ct = multipartBody(t, "image", "front.jpg", []byte("jpg"), map[string]string{"caption": "Vorne"})
	resp2, err := http.Post(srv.URL+"/api/reports/"+r.ID+"/images", ct, body)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusCreated, resp2.StatusCode)
	var withImage model.Report
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&withImage))
	require.Len(t, withImage.Images, 1)
	assert.Equal(t, "Vorne", withImage.Images[0].Caption)

	body, ct = multipartBody(t, "image", "notes.txt", []byte("txt"), nil)
	resp3, err := http.Post(srv.URL+"/api/reports/"+r.ID+"/images", ct, body)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp3.StatusCode)

	resp4, err := http.Post(srv.URL+"/api/reports/"+r.ID+"/images", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp4.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp4.StatusCode)
}

func TestDownloadPDF(t *testing.T) {
	srv := newTestServer(t, nil)
	c := createCustomer(t, srv.URL)
	r := createReport(t, srv.URL, c.ID)

	resp, err := http.Get(srv.URL + "/api/reports/" + r.ID + "/pdf")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Pruefbericht_IGM_GmbH_`+r.AuditNumber+`.pdf"`, resp.Header.Get("Content-Disposition"))

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	missing, err := http.Get(srv.URL + "/api/reports/missing/pdf")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/reports", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PUT")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRenderGateLimitsConcurrency(t *testing.T) {
	gate := NewRenderGate(2, 0)
	var running, peak atomic.Int32
	release := make(chan struct{})

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			errs <- gate.Do(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				<-release
				running.Add(-1)
				return nil
			})
		}()
	}

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int32(2), peak.Load())
}

func TestRenderGateBusy(t *testing.T) {
	gate := NewRenderGate(1, 0)
	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = gate.Do(context.Background(), func(context.Context) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	defer close(hold)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := gate.Do(ctx, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBusy))
}

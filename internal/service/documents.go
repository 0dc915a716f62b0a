package service

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/render"
)

// Document is a rendered report ready for download.
type Document struct {
	Filename string
	Data     []byte
}

// RenderReport hydrates a report with its customer and children and renders
// it. Nothing is written to disk.
func (s *Service) RenderReport(ctx context.Context, id string) (*Document, error) {
	r, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetCustomer(ctx, r.CustomerID)
	if err != nil {
		return nil, eris.Wrapf(err, "service: customer of report %s", id)
	}

	data, err := s.renderer.Render(ctx, render.Bundle{Report: r, Customer: c})
	if err != nil {
		return nil, err
	}
	return &Document{
		Filename: render.AttachmentName(c.CompanyName, r.AuditNumber),
		Data:     data,
	}, nil
}

// GenerateDocument renders a report into the output directory and records
// the file path on the report. The previous document is replaced.
func (s *Service) GenerateDocument(ctx context.Context, id string) (string, error) {
	r, err := s.GetReport(ctx, id)
	if err != nil {
		return "", err
	}
	c, err := s.store.GetCustomer(ctx, r.CustomerID)
	if err != nil {
		return "", eris.Wrapf(err, "service: customer of report %s", id)
	}

	data, err := s.renderer.Render(ctx, render.Bundle{Report: r, Customer: c})
	if err != nil {
		return "", err
	}

	name := render.DocumentName(c.CompanyName, r.AuditNumber, r.ID, s.now())
	path := filepath.Join(s.opts.OutputDir, name)
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	if err := s.store.SetDocumentPath(ctx, r.ID, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if r.DocumentPath != "" && r.DocumentPath != path {
		s.removeDocument(r)
	}

	zap.L().Info("document generated",
		zap.String("report_id", r.ID),
		zap.String("audit_number", r.AuditNumber),
		zap.String("path", path),
		zap.Int("bytes", len(data)),
	)
	return path, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "service: mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".render-*")
	if err != nil {
		return eris.Wrap(err, "service: create temp document")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := bytes.NewReader(data).WriteTo(tmp); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "service: write document")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "service: close document")
	}
	return eris.Wrap(os.Rename(tmp.Name(), path), "service: rename document")
}

package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/resilience"
	"github.com/haral/audit-reports/internal/store"
)

// auditNumberAttempts bounds regeneration on audit number collisions.
const auditNumberAttempts = 5

const copySuffix = " (Kopie)"

// CreateReport creates a draft report from client fields. customer_id and
// author are required. Derived fields and the audit number are ignored.
func (s *Service) CreateReport(ctx context.Context, fields map[string]any) (*model.Report, error) {
	r := &model.Report{}
	if err := applyFields(r, fields, false); err != nil {
		return nil, err
	}
	if err := s.insertReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ImportReport inserts a fully populated report, as read from a fixture.
// Status defaults to draft and a missing audit number is generated.
func (s *Service) ImportReport(ctx context.Context, r *model.Report) error {
	if r.Status != "" && !r.Status.Valid() {
		return invalid("status", "unknown status %q", r.Status)
	}
	return s.insertReport(ctx, r)
}

func (s *Service) insertReport(ctx context.Context, r *model.Report) error {
	r.CustomerID = strings.TrimSpace(r.CustomerID)
	r.Author = strings.TrimSpace(r.Author)
	if r.CustomerID == "" {
		return invalid("customer_id", "is required")
	}
	if r.Author == "" {
		return invalid("author", "is required")
	}
	if _, err := s.store.GetCustomer(ctx, r.CustomerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("customer_id", "customer %s does not exist", r.CustomerID)
		}
		return eris.Wrap(err, "service: load customer")
	}

	if strings.TrimSpace(r.Title) == "" {
		r.Title = model.DefaultReportTitle
	}
	if r.Status == "" {
		r.Status = model.ReportStatusDraft
	}
	r.ID = ""
	r.DocumentPath = ""
	s.engine.Recompute(r)

	fixed := r.AuditNumber
	retry := resilience.ImmediateRetryConfig(auditNumberAttempts, func(err error) bool {
		return fixed == "" && errors.Is(err, store.ErrDuplicateAuditNumber)
	})
	retry.OnRetry = resilience.RetryLogger("service", "create_report")

	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		if fixed == "" {
			r.AuditNumber = s.numbers.Next()
		}
		return s.store.CreateReport(ctx, r)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateAuditNumber) {
			return eris.Wrap(ErrConflict, err.Error())
		}
		return eris.Wrap(err, "service: create report")
	}

	zap.L().Info("report created",
		zap.String("report_id", r.ID),
		zap.String("audit_number", r.AuditNumber),
		zap.String("customer_id", r.CustomerID),
	)
	return nil
}

// GetReport returns a report with its alternatives and images.
func (s *Service) GetReport(ctx context.Context, id string) (*model.Report, error) {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Alternatives, err = s.store.ListAlternatives(ctx, id); err != nil {
		return nil, err
	}
	if r.Images, err = s.store.ListImages(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateReport patches a report and recomputes every derived value. Unknown
// and immutable fields are rejected before anything is written.
func (s *Service) UpdateReport(ctx context.Context, id string, fields map[string]any) (*model.Report, error) {
	r, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyFields(r, fields, true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.Author) == "" {
		return nil, invalid("author", "is required")
	}
	if strings.TrimSpace(r.Title) == "" {
		r.Title = model.DefaultReportTitle
	}
	if _, ok := fields["customer_id"]; ok {
		if _, err := s.store.GetCustomer(ctx, r.CustomerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalid("customer_id", "customer %s does not exist", r.CustomerID)
			}
			return nil, eris.Wrap(err, "service: load customer")
		}
	}

	s.engine.Recompute(r)
	if err := s.store.SaveReport(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetStatus changes the lifecycle state. Completing a report generates its
// document when auto-rendering is enabled; a render failure is logged and
// does not undo the status change.
func (s *Service) SetStatus(ctx context.Context, id string, status model.ReportStatus) (*model.Report, error) {
	if !status.Valid() {
		return nil, invalid("status", "unknown status %q", status)
	}
	if err := s.store.SetReportStatus(ctx, id, status); err != nil {
		return nil, err
	}

	if status == model.ReportStatusCompleted && s.opts.AutoRender {
		if _, err := s.GenerateDocument(ctx, id); err != nil {
			zap.L().Error("auto render failed",
				zap.String("report_id", id),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}
	return s.GetReport(ctx, id)
}

// DuplicateReport copies all raw inputs of a report into a new draft with a
// fresh audit number.
func (s *Service) DuplicateReport(ctx context.Context, id string) (*model.Report, error) {
	src, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	dup := src.Clone()
	dup.Title = src.Title + copySuffix
	dup.AuditNumber = ""
	dup.Status = model.ReportStatusDraft
	dup.Derived = model.Derived{}
	if err := s.insertReport(ctx, dup); err != nil {
		return nil, err
	}
	return dup, nil
}

// DeleteReport removes a report and its children, then removes its generated
// document. Document removal failures are logged only.
func (s *Service) DeleteReport(ctx context.Context, id string) error {
	r, err := s.store.GetReport(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReport(ctx, id); err != nil {
		return err
	}
	s.removeDocument(r)
	return nil
}

func (s *Service) removeDocument(r *model.Report) {
	if r.DocumentPath == "" {
		return
	}
	if err := os.Remove(r.DocumentPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		zap.L().Warn("remove document failed",
			zap.String("report_id", r.ID),
			zap.String("path", r.DocumentPath),
			zap.Error(err),
		)
	}
}

// ListReports returns reports matching filter, newest first.
func (s *Service) ListReports(ctx context.Context, filter store.ReportFilter) ([]model.Report, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "unknown status %q", filter.Status)
	}
	filter.Query = strings.TrimSpace(filter.Query)
	return s.store.ListReports(ctx, filter)
}

// Search is ListReports for a free-text query.
func (s *Service) Search(ctx context.Context, query string, filter store.ReportFilter) ([]model.Report, error) {
	filter.Query = query
	return s.ListReports(ctx, filter)
}

// Statistics returns report counts per status and average savings.
func (s *Service) Statistics(ctx context.Context) (*store.ReportStats, error) {
	stats, err := s.store.ReportStats(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range model.ReportStatuses {
		if _, ok := stats.ByStatus[st]; !ok {
			stats.ByStatus[st] = 0
		}
	}
	return stats, nil
}

// AddReportImage uploads an image and appends it to the report's appendix.
func (s *Service) AddReportImage(ctx context.Context, id, filename, caption string, r io.Reader) (*model.Report, error) {
	rep, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}
	key, err := s.upload(ctx, "images", "report_"+rep.ID, filename, r)
	if err != nil {
		return nil, err
	}
	img := model.Image{FileRef: key, Caption: strings.TrimSpace(caption)}
	if err := s.store.AppendImage(ctx, rep.ID, img); err != nil {
		s.removeFile(ctx, key)
		return nil, err
	}
	return s.GetReport(ctx, id)
}

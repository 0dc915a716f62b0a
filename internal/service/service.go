// Package service implements the report workflow on top of the store, the
// metrics engine, the renderer and file storage.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/haral/audit-reports/internal/files"
	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/render"
	"github.com/haral/audit-reports/internal/store"
)

// ErrConflict is returned when an operation would leave dependent data behind,
// such as deleting a customer that still has reports.
var ErrConflict = eris.New("conflict")

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
	// Allowed lists the accepted field names when Field is unknown.
	Allowed []string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Renderer builds a document from a hydrated report.
type Renderer interface {
	Render(ctx context.Context, b render.Bundle) ([]byte, error)
}

// AuditNumberer produces candidate audit numbers.
type AuditNumberer interface {
	Next() string
}

// Options configures a Service.
type Options struct {
	// OutputDir receives generated documents.
	OutputDir string
	// AutoRender generates the document when a report is completed.
	AutoRender bool
	// CascadeCustomerDelete removes a customer's reports with it instead of
	// refusing the delete.
	CascadeCustomerDelete bool
	// MaxUploadBytes caps logo and image uploads. Zero means unlimited.
	MaxUploadBytes int64
	// AuditNumbers defaults to metrics.NewAuditNumbers().
	AuditNumbers AuditNumberer
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service coordinates customers, reports and their documents.
type Service struct {
	store    store.Store
	engine   *metrics.Engine
	renderer Renderer
	files    files.Storage
	opts     Options
	numbers  AuditNumberer
	now      func() time.Time
}

// New creates a Service. fs may be nil when uploads are not supported.
func New(st store.Store, engine *metrics.Engine, renderer Renderer, fs files.Storage, opts Options) *Service {
	numbers := opts.AuditNumbers
	if numbers == nil {
		numbers = metrics.NewAuditNumbers()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    st,
		engine:   engine,
		renderer: renderer,
		files:    fs,
		opts:     opts,
		numbers:  numbers,
		now:      now,
	}
}

// upload stores r under a new key derived from prefix, owner and filename.
func (s *Service) upload(ctx context.Context, prefix, owner, filename string, r io.Reader) (string, error) {
	if s.files == nil {
		return "", eris.New("service: file storage not configured")
	}
	key, err := files.NewKey(prefix, owner, filename)
	if err != nil {
		if errors.Is(err, files.ErrUnsupportedType) {
			return "", invalid("file", "unsupported file type %q", filename)
		}
		return "", eris.Wrap(err, "service: file key")
	}

	if s.opts.MaxUploadBytes > 0 {
		r = &limitedReader{r: r, remaining: s.opts.MaxUploadBytes}
	}
	if err := s.files.Put(ctx, key, r); err != nil {
		if errors.Is(err, errUploadTooLarge) {
			return "", invalid("file", "exceeds %d bytes", s.opts.MaxUploadBytes)
		}
		return "", eris.Wrapf(err, "service: store file %s", key)
	}
	return key, nil
}

var errUploadTooLarge = eris.New("upload too large")

// limitedReader fails instead of truncating once the limit is exceeded.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		return 0, errUploadTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errUploadTooLarge
	}
	return n, err
}

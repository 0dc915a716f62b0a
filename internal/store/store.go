package store

import (
	"context"
	"math"

	"github.com/rotisserie/eris"

	"github.com/haral/audit-reports/internal/model"
)

var (
	// ErrNotFound is returned when a customer or report does not exist.
	ErrNotFound = eris.New("not found")

	// ErrDuplicateAuditNumber is returned when an audit number is already taken.
	ErrDuplicateAuditNumber = eris.New("duplicate audit number")
)

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	Query      string             `json:"q,omitempty"` // matches title, audit number or author
	Status     model.ReportStatus `json:"status,omitempty"`
	CustomerID string             `json:"customer_id,omitempty"`
	Limit      int                `json:"limit,omitempty"`
	Offset     int                `json:"offset,omitempty"`
}

// ReportStats aggregates counts and average savings over all reports.
type ReportStats struct {
	Total              int                        `json:"total_reports"`
	ByStatus           map[model.ReportStatus]int `json:"by_status"`
	AvgMaterialSavings float64                    `json:"avg_material_savings"`
	AvgCostReduction   float64                    `json:"avg_cost_reduction"`
	AvgCO2Reduction    float64                    `json:"avg_co2_reduction"`
}

// Store defines the persistence interface for customers and audit reports.
type Store interface {
	// Customers
	CreateCustomer(ctx context.Context, c *model.Customer) error
	UpdateCustomer(ctx context.Context, c *model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error

	// Reports. GetReport and ListReports return the core record only;
	// alternatives and images are loaded separately. SaveReport writes the
	// editable fields and children; status and document path have their own
	// single-column setters.
	CreateReport(ctx context.Context, r *model.Report) error
	SaveReport(ctx context.Context, r *model.Report) error
	GetReport(ctx context.Context, id string) (*model.Report, error)
	SetReportStatus(ctx context.Context, id string, status model.ReportStatus) error
	SetDocumentPath(ctx context.Context, id, path string) error
	AppendImage(ctx context.Context, reportID string, img model.Image) error
	ListAlternatives(ctx context.Context, reportID string) ([]model.Alternative, error)
	ListImages(ctx context.Context, reportID string) ([]model.Image, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error)
	ReportStats(ctx context.Context) (*ReportStats, error)
	DeleteReport(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

func defaultLimit(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haral/audit-reports/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCustomer(t *testing.T, st Store) *model.Customer {
	t.Helper()
	c := &model.Customer{
		CompanyName:   "IGM GmbH & Co. KG",
		ContactPerson: "Max Mustermann",
		Street:        "Industriestraße 12",
		PostalCode:    "67346",
		City:          "Speyer",
	}
	require.NoError(t, st.CreateCustomer(context.Background(), c))
	return c
}

func sampleReport(customerID, auditNumber string) *model.Report {
	return &model.Report{
		CustomerID:  customerID,
		Title:       model.DefaultReportTitle,
		AuditNumber: auditNumber,
		Author:      "Erika Muster",
		Status:      model.ReportStatusDraft,
		Inputs: model.Inputs{
			ProductionSite:           "Speyer",
			FilmThickness:            model.Float(23),
			FilmConsumptionPerPallet: model.Float(428),
			PalletsPerYear:           model.Int(3000),
			HoldingForces: model.HoldingForces{
				LongTop: model.ForcePair{Target: model.Float(25), Actual: model.Float(3)},
			},
		},
		Alternatives: []model.Alternative{
			{FilmThickness: model.Float(20), Prestretch: model.Float(38), PalletStability: "gut"},
			{FilmThickness: model.Float(17)},
		},
		Images: []model.Image{
			{FileRef: "images/a.png", Caption: "Palette vorne"},
			{FileRef: "images/b.png"},
		},
		Derived: model.Derived{
			TotalMaterialConsumption: model.Float(1284),
			MaterialSavings:          model.Float(26.1),
			CostReduction:            model.Float(10.4),
			CO2Reduction:             model.Float(26.1),
			Deviations:               map[model.Position]float64{model.PositionLongTop: -88},
		},
	}
}

// --- Customers ---

func TestSQLite_Customer_CRUD(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCustomer(t, st)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())

	got, err := st.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "IGM GmbH & Co. KG", got.CompanyName)
	assert.Equal(t, "Speyer", got.City)

	got.LogoRef = "logos/customer_igm.png"
	require.NoError(t, st.UpdateCustomer(ctx, got))

	got, err = st.GetCustomer(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "logos/customer_igm.png", got.LogoRef)

	list, err := st.ListCustomers(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, st.DeleteCustomer(ctx, c.ID))
	_, err = st.GetCustomer(ctx, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Customer_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetCustomer(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.UpdateCustomer(ctx, &model.Customer{ID: "missing", CompanyName: "X"})
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteCustomer(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// --- Reports ---

func TestSQLite_Report_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	r := sampleReport(c.ID, "12345678")
	require.NoError(t, st.CreateReport(ctx, r))
	assert.NotEmpty(t, r.ID)

	got, err := st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345678", got.AuditNumber)
	assert.Equal(t, model.ReportStatusDraft, got.Status)
	assert.Equal(t, "Speyer", got.Inputs.ProductionSite)
	require.NotNil(t, got.Inputs.PalletsPerYear)
	assert.Equal(t, 3000, *got.Inputs.PalletsPerYear)
	require.NotNil(t, got.Derived.MaterialSavings)
	assert.InDelta(t, 26.1, *got.Derived.MaterialSavings, 0.001)
	assert.Nil(t, got.Derived.AnnualCosts)
	assert.Equal(t, -88.0, got.Derived.Deviations[model.PositionLongTop])
	assert.Nil(t, got.Alternatives, "core record does not load children")

	alts, err := st.ListAlternatives(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, alts, 2)
	assert.InDelta(t, 20.0, *alts[0].FilmThickness, 0.001)
	assert.Equal(t, "gut", alts[0].PalletStability)
	assert.Nil(t, alts[1].Prestretch)

	imgs, err := st.ListImages(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 2)
	assert.Equal(t, "images/a.png", imgs[0].FileRef)
	assert.Equal(t, "Palette vorne", imgs[0].Caption)
}

func TestSQLite_Report_DuplicateAuditNumber(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	require.NoError(t, st.CreateReport(ctx, sampleReport(c.ID, "11111111")))
	err := st.CreateReport(ctx, sampleReport(c.ID, "11111111"))
	assert.ErrorIs(t, err, ErrDuplicateAuditNumber)
}

func TestSQLite_Report_SaveReplacesChildren(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	r := sampleReport(c.ID, "22222222")
	require.NoError(t, st.CreateReport(ctx, r))

	r.Title = "Audit Halle 2"
	r.Status = model.ReportStatusCompleted
	r.Alternatives = []model.Alternative{{FilmThickness: model.Float(15)}}
	r.Images = nil
	r.Derived.AnnualCosts = model.Float(3211.57)
	r.DocumentPath = "reports/x.pdf"
	require.NoError(t, st.SaveReport(ctx, r))

	got, err := st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Audit Halle 2", got.Title)
	assert.Equal(t, model.ReportStatusDraft, got.Status, "status is not an editable field")
	assert.Empty(t, got.DocumentPath, "document path is not an editable field")
	require.NotNil(t, got.Derived.AnnualCosts)
	assert.InDelta(t, 3211.57, *got.Derived.AnnualCosts, 0.001)

	alts, err := st.ListAlternatives(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, alts, 1)
	assert.InDelta(t, 15.0, *alts[0].FilmThickness, 0.001)

	imgs, err := st.ListImages(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, imgs)
}

func TestSQLite_Report_SaveMissing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.SaveReport(context.Background(), &model.Report{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_Report_SetStatusAndDocumentPath(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	r := sampleReport(c.ID, "24242424")
	require.NoError(t, st.CreateReport(ctx, r))

	require.NoError(t, st.SetReportStatus(ctx, r.ID, model.ReportStatusCompleted))
	require.NoError(t, st.SetDocumentPath(ctx, r.ID, "reports/x.pdf"))

	got, err := st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportStatusCompleted, got.Status)
	assert.Equal(t, "reports/x.pdf", got.DocumentPath)
	assert.Equal(t, "Speyer", got.Inputs.ProductionSite)
	require.NotNil(t, got.Derived.MaterialSavings)
	assert.InDelta(t, 26.1, *got.Derived.MaterialSavings, 0.001)

	alts, err := st.ListAlternatives(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, alts, 2)

	assert.ErrorIs(t, st.SetReportStatus(ctx, "missing", model.ReportStatusDraft), ErrNotFound)
	assert.ErrorIs(t, st.SetDocumentPath(ctx, "missing", "x.pdf"), ErrNotFound)
}

func TestSQLite_Report_AppendImage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	r := sampleReport(c.ID, "25252525")
	require.NoError(t, st.CreateReport(ctx, r))
	require.NoError(t, st.AppendImage(ctx, r.ID, model.Image{FileRef: "images/c.png", Caption: "Seite"}))

	imgs, err := st.ListImages(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 3)
	assert.Equal(t, "images/a.png", imgs[0].FileRef)
	assert.Equal(t, "images/c.png", imgs[2].FileRef)
	assert.Equal(t, "Seite", imgs[2].Caption)

	empty := sampleReport(c.ID, "26262626")
	empty.Images = nil
	require.NoError(t, st.CreateReport(ctx, empty))
	require.NoError(t, st.AppendImage(ctx, empty.ID, model.Image{FileRef: "images/d.png"}))
	imgs, err = st.ListImages(ctx, empty.ID)
	require.NoError(t, err)
	require.Len(t, imgs, 1)

	assert.ErrorIs(t, st.AppendImage(ctx, "missing", model.Image{FileRef: "x.png"}), ErrNotFound)
}

func TestSQLite_Report_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	r := sampleReport(c.ID, "33333333")
	require.NoError(t, st.CreateReport(ctx, r))
	require.NoError(t, st.DeleteReport(ctx, r.ID))

	_, err := st.GetReport(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	alts, err := st.ListAlternatives(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, alts)

	assert.ErrorIs(t, st.DeleteReport(ctx, r.ID), ErrNotFound)
}

func TestSQLite_ListReports_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c1 := seedCustomer(t, st)
	c2 := seedCustomer(t, st)

	for i := 0; i < 3; i++ {
		r := sampleReport(c1.ID, fmt.Sprintf("1000000%d", i))
		if i == 2 {
			r.Status = model.ReportStatusCompleted
			r.Author = "Hans Prüfer"
		}
		require.NoError(t, st.CreateReport(ctx, r))
	}
	require.NoError(t, st.CreateReport(ctx, sampleReport(c2.ID, "20000000")))

	all, err := st.ListReports(ctx, ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	byCustomer, err := st.ListReports(ctx, ReportFilter{CustomerID: c2.ID})
	require.NoError(t, err)
	require.Len(t, byCustomer, 1)
	assert.Equal(t, "20000000", byCustomer[0].AuditNumber)

	completed, err := st.ListReports(ctx, ReportFilter{Status: model.ReportStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)

	byAuthor, err := st.ListReports(ctx, ReportFilter{Query: "Prüfer"})
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)

	byNumber, err := st.ListReports(ctx, ReportFilter{Query: "1000000"})
	require.NoError(t, err)
	assert.Len(t, byNumber, 3)

	page, err := st.ListReports(ctx, ReportFilter{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_ReportStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCustomer(t, st)

	empty, err := st.ReportStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Zero(t, empty.AvgMaterialSavings)

	r1 := sampleReport(c.ID, "40000001")
	r1.Derived.MaterialSavings = model.Float(30)
	r2 := sampleReport(c.ID, "40000002")
	r2.Derived.MaterialSavings = model.Float(10.0)
	r2.Status = model.ReportStatusCompleted
	r3 := sampleReport(c.ID, "40000003")
	r3.Derived.MaterialSavings = nil
	r3.Derived.CostReduction = nil
	r3.Derived.CO2Reduction = nil
	r3.Status = model.ReportStatusArchived
	for _, r := range []*model.Report{r1, r2, r3} {
		require.NoError(t, st.CreateReport(ctx, r))
	}

	stats, err := st.ReportStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.ReportStatusDraft])
	assert.Equal(t, 1, stats.ByStatus[model.ReportStatusCompleted])
	assert.Equal(t, 1, stats.ByStatus[model.ReportStatusArchived])
	assert.InDelta(t, 20.0, stats.AvgMaterialSavings, 0.001)
	assert.InDelta(t, 10.4, stats.AvgCostReduction, 0.001)
}

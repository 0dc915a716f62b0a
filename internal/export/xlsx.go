// Package export writes report overviews to spreadsheets.
package export

import (
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/store"
)

// Sheet names.
const (
	SheetReports    = "Berichte"
	SheetStatistics = "Statistik"
)

// ReportColumns is the header row of the reports sheet.
var ReportColumns = []string{
	"Auditnummer", "Titel", "Kunde", "Autor", "Status", "Erstellt",
	"Folienstärke (µm)", "Paletten/Jahr",
	"Materialverbrauch (kg/Jahr)", "Jahreskosten (EUR)", "CO2 (kg/Jahr)",
	"Materialeinsparung (%)", "Kostenreduktion (%)", "CO2-Reduktion (%)", "Stabilitätsgewinn (kg)",
}

// Workbook holds the data written by WriteXLSX.
type Workbook struct {
	Reports   []model.Report
	Customers map[string]model.Customer // by ID, for company names
	Stats     *store.ReportStats        // optional
}

// WriteXLSX writes a reports sheet and, when stats are present, a statistics
// sheet to w.
func WriteXLSX(w io.Writer, wb Workbook) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet(SheetReports)
	if err != nil {
		return eris.Wrap(err, "xlsx: add reports sheet")
	}
	addStrings(sheet.AddRow(), ReportColumns...)

	for i := range wb.Reports {
		r := &wb.Reports[i]
		row := sheet.AddRow()
		addStrings(row, r.AuditNumber, r.Title, wb.Customers[r.CustomerID].CompanyName, r.Author,
			string(r.Status), r.CreatedAt.Format("2006-01-02"))
		addFloat(row, r.Inputs.FilmThickness)
		addInt(row, r.Inputs.PalletsPerYear)
		addFloat(row, r.Derived.TotalMaterialConsumption)
		addFloat(row, r.Derived.AnnualCosts)
		addFloat(row, r.Derived.CO2Emissions)
		addFloat(row, r.Derived.MaterialSavings)
		addFloat(row, r.Derived.CostReduction)
		addFloat(row, r.Derived.CO2Reduction)
		addFloat(row, r.Derived.StabilityIncrease)
	}

	if wb.Stats != nil {
		if err := addStatistics(f, wb.Stats); err != nil {
			return err
		}
	}

	return eris.Wrap(f.Write(w), "xlsx: write")
}

func addStatistics(f *xlsx.File, stats *store.ReportStats) error {
	sheet, err := f.AddSheet(SheetStatistics)
	if err != nil {
		return eris.Wrap(err, "xlsx: add statistics sheet")
	}
	addStrings(sheet.AddRow(), "Kennzahl", "Wert")

	row := sheet.AddRow()
	addStrings(row, "Berichte gesamt")
	row.AddCell().SetInt(stats.Total)

	statuses := make([]string, 0, len(stats.ByStatus))
	for s := range stats.ByStatus {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		row := sheet.AddRow()
		addStrings(row, "Status "+s)
		row.AddCell().SetInt(stats.ByStatus[model.ReportStatus(s)])
	}

	for _, kv := range []struct {
		label string
		value float64
	}{
		{"Ø Materialeinsparung (%)", stats.AvgMaterialSavings},
		{"Ø Kostenreduktion (%)", stats.AvgCostReduction},
		{"Ø CO2-Reduktion (%)", stats.AvgCO2Reduction},
	} {
		row := sheet.AddRow()
		addStrings(row, kv.label)
		row.AddCell().SetFloat(kv.value)
	}
	return nil
}

func addStrings(row *xlsx.Row, values ...string) {
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// addFloat leaves the cell empty for unknown values.
func addFloat(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetFloat(*v)
	}
}

func addInt(row *xlsx.Row, v *int) {
	cell := row.AddCell()
	if v != nil {
		cell.SetInt(*v)
	}
}

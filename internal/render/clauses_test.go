package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/model"
)

func testView(r *model.Report, c *model.Customer) *view {
	engine := metrics.NewEngine(metrics.DefaultRates())
	engine.Recompute(r)
	return newView(engine, r, c)
}

func fullReport() *model.Report {
	return &model.Report{
		ID:          "r-1",
		Title:       model.DefaultReportTitle,
		AuditNumber: "12345678",
		Author:      "Erika Muster",
		Phone:       "06232 123",
		Email:       "erika@haral.eu",
		Inputs: model.Inputs{
			ProductionSite:           "Speyer",
			RobotManufacturer:        "Motion",
			RobotModel:               "RS 300",
			FilmType:                 "transparente",
			FilmThickness:            model.Float(23),
			FilmSupplier:             "Folien GmbH",
			MaxPrestretch:            model.Float(250),
			FilmConsumptionPerPallet: model.Float(428),
			PalletsPerYear:           model.Int(3000),
			RollCoreWeight:           model.Float(1.045),
			PalletType:               "Euro",
			PalletDimensions:         "120 x 80 x 250 cm",
			PalletContent:            "Fassadenfenstern",
			GrossWeight:              model.Float(1200),
			WindingsTop:              model.Int(3),
			WindingsMiddle:           model.Int(2),
			WindingsBottom:           model.Int(4),
			PrestretchActual:         model.Float(38),
			HoldingForces: model.HoldingForces{
				LongTop:     model.ForcePair{Target: model.Float(25), Actual: model.Float(3)},
				LongBottom:  model.ForcePair{Target: model.Float(25), Actual: model.Float(3)},
				ShortTop:    model.ForcePair{Target: model.Float(40), Actual: model.Float(4)},
				ShortBottom: model.ForcePair{Target: model.Float(40)},
			},
			HoldingForceRating:  "ungenügend",
			CertificateRequired: true,
			QualityImprovement:  true,
			ConclusionText:      "Die Folie sollte gewechselt werden.",
			NextStepsText:       "Testlauf mit 17 µm Folie.",
			TrainingRequired:    true,
		},
		Alternatives: []model.Alternative{
			{FilmThickness: model.Float(20), Prestretch: model.Float(38), PalletStability: "ausreichend"},
			{FilmThickness: model.Float(17), Prestretch: model.Float(38), PalletStability: "gut"},
		},
	}
}

func testCustomer() *model.Customer {
	return &model.Customer{
		ID:            "c-1",
		CompanyName:   "IGM Fenster & Fassaden",
		ContactPerson: "Max Mustermann",
		Street:        "Industriestraße 12",
		PostalCode:    "67346",
		City:          "Speyer",
	}
}

func TestCompose_SkipsEmptyClauses(t *testing.T) {
	v := testView(&model.Report{}, &model.Customer{})
	got := compose(v,
		func(*view) string { return "Erster Satz." },
		func(*view) string { return "" },
		func(*view) string { return "  " },
		func(*view) string { return "Zweiter Satz." },
	)
	assert.Equal(t, "Erster Satz. Zweiter Satz.", got)
}

func TestSituation_Placeholders(t *testing.T) {
	v := testView(&model.Report{}, &model.Customer{})
	got := compose(v, situationClauses...)
	assert.Equal(t, "An Ihrem Produktionstandort in [Ort] wird ein Roboter des Herstellers [Hersteller] (Modell: [Modell]) betrieben.", got)
	assert.NotContains(t, got, "None")
}

func TestSituation_CityFallsBackToCustomer(t *testing.T) {
	v := testView(&model.Report{}, &model.Customer{City: "Mannheim"})
	assert.Contains(t, siteClause(v), "in Mannheim wird")
}

func TestSituation_FullReport(t *testing.T) {
	v := testView(fullReport(), testCustomer())
	got := compose(v, situationClauses...)

	assert.Contains(t, got, "in Speyer wird ein Roboter des Herstellers Motion (Modell: RS 300) betrieben.")
	assert.Contains(t, got, "eine transparente 23 µm Maschinenstretchfolie, diese wird aktuell von der Firma Folien GmbH geliefert.")
	assert.Contains(t, got, "Vordehnung auf bis zu 250 % möglich.")
	assert.Contains(t, got, "liegt bei 428 g pro Palette.")
	assert.Contains(t, got, "ca. 3.000 Paletten pro Jahr ergibt sich ein Gesamtmaterialbedarf von ca. 1.284 kg im Jahr.")
	assert.Contains(t, got, "Rollenkerns liegt bei 1,045 kg.")
	assert.Contains(t, got, "jährliche Kosten in Höhe von 3.211,57 €.")
	assert.Contains(t, got, "um 10,4 % gesenkt")
}

func TestFilmClause_Variants(t *testing.T) {
	r := &model.Report{}
	assert.Empty(t, filmClause(testView(r, &model.Customer{})))

	r.Inputs.FilmThickness = model.Float(23)
	assert.Equal(t, "Zum Einsatz kommt aktuell eine 23 µm Maschinenstretchfolie.", filmClause(testView(r, &model.Customer{})))
}

func TestTestPalletText(t *testing.T) {
	v := testView(&model.Report{}, &model.Customer{})
	assert.True(t, strings.HasPrefix(testPalletText(v), "Getestet wurde eine Europalette. Hierbei"))

	v = testView(fullReport(), testCustomer())
	assert.Contains(t, testPalletText(v), "Europalette, 120 x 80 x 250 cm (l x b x h), mit Fassadenfenstern.")
}

func TestPlugAndPlayText(t *testing.T) {
	assert.Empty(t, plugAndPlayText(testView(&model.Report{}, &model.Customer{})))

	v := testView(fullReport(), testCustomer())
	assert.Contains(t, plugAndPlayText(v), "wurde u. a. eine 17 µm Folie getestet.")

	r := &model.Report{Alternatives: []model.Alternative{{PalletStability: "gut"}}}
	assert.Contains(t, plugAndPlayText(testView(r, &model.Customer{})), "eine alternative Folie getestet")
}

func TestQuintessenceText(t *testing.T) {
	r := fullReport()
	r.Alternatives = []model.Alternative{{FilmThickness: model.Float(17)}}
	got := quintessenceText(testView(r, testCustomer()))

	assert.Contains(t, got, "Materialeinsparungen von bis zu 26,1 %")
	assert.Contains(t, got, "Kostenreduzierung von circa 10,4 %")
	assert.Contains(t, got, "CO2-Emissionen um 26,1 %")
	assert.Contains(t, got, "im Mittelwert um 5,2 kg")

	assert.Contains(t, quintessenceText(testView(&model.Report{}, &model.Customer{})), "nach Abschluss der Testreihe")
}

func TestAssessment(t *testing.T) {
	v := testView(fullReport(), testCustomer())
	got := compose(v, assessmentClauses...)
	assert.True(t, strings.HasPrefix(got, "Die Haltekräfte sind mit ungenügend zu bewerten."))
	assert.Contains(t, got, "nicht davon ausgegangen werden")

	r := &model.Report{}
	r.Inputs.EUDirectiveCompliant = true
	got = compose(testView(r, &model.Customer{}), assessmentClauses...)
	assert.True(t, strings.HasPrefix(got, "Nach aktuellem Stand werden die Anforderungen"))
}

func TestTechnicalLine(t *testing.T) {
	v := testView(fullReport(), testCustomer())
	assert.Equal(t, "Folien Dicke: 23 µm | Vordehnung: 38 % | Folienverbrauch: 428 g | Gewicht Rollenkern: 1,045 kg", technicalLine(v))

	empty := testView(&model.Report{}, &model.Customer{})
	assert.Equal(t, "Folien Dicke: - | Vordehnung: - | Folienverbrauch: - | Gewicht Rollenkern: -", technicalLine(empty))
}

func TestSavingsClauses(t *testing.T) {
	v := testView(fullReport(), testCustomer())
	got := compose(v, savingsClauses...)
	assert.Contains(t, got, "Umstieg auf die 17 µm Folie (Alternative 2).")
	assert.Contains(t, got, "Folienverbrauch um 26,1 %, die Kosten um 10,4 % und die CO2-Emissionen um 26,1 % reduzieren.")
	assert.Contains(t, got, "Qualität der Ladungssicherung")
	assert.NotContains(t, got, "Haltekräfte werden")

	r := fullReport()
	r.Inputs.RecommendedAlternative = "Alternative 1"
	r.Inputs.HoldingForceIncrease = true
	got = compose(testView(r, testCustomer()), savingsClauses...)
	assert.Contains(t, got, "empfehlen wir den Einsatz von Alternative 1.")
	assert.Contains(t, got, "im Mittelwert um 5,2 kg erhöht.")

	assert.Empty(t, compose(testView(&model.Report{}, &model.Customer{}), savingsClauses...))
}

func TestConclusion(t *testing.T) {
	assert.False(t, hasConclusion(testView(&model.Report{}, &model.Customer{})))

	v := testView(fullReport(), testCustomer())
	assert.True(t, hasConclusion(v))
	assert.Equal(t, "Eine Schulung des Bedienpersonals wird empfohlen.", compose(v, conclusionExtras...))

	r := &model.Report{}
	r.Inputs.FollowUpRequired = true
	assert.True(t, hasConclusion(testView(r, &model.Customer{})))
}

func TestAuthorLine(t *testing.T) {
	assert.Equal(t, "Verfasser Erika Muster · Telefon 06232 123 · E-Mail: erika@haral.eu", authorLine(fullReport()))
	assert.Equal(t, "Verfasser Hans", authorLine(&model.Report{Author: "Hans"}))
}

func TestOverviewRows(t *testing.T) {
	r := fullReport()
	r.Alternatives = []model.Alternative{{FilmThickness: model.Float(17), Prestretch: model.Float(38), PalletStability: "gut"}}
	rows := overviewRows(testView(r, testCustomer()))

	require.Len(t, rows, 9)
	for _, row := range rows {
		require.Len(t, row, 2+maxAlternativeColumns)
	}

	assert.Equal(t, "23 µm", rows[0][1].text)
	assert.Equal(t, "17 µm", rows[0][2].text)
	assert.Equal(t, "1.284 kg", rows[2][1].text)
	assert.Equal(t, "949 kg", rows[2][2].text) // 1284 * 17/23
	assert.Equal(t, "-26,1 %", rows[3][2].text)
	require.NotNil(t, rows[3][2].color)
	assert.Equal(t, "-10,4 %", rows[5][2].text)
	assert.Equal(t, "gut", rows[8][2].text)
	assert.Equal(t, "ungenügend", rows[8][1].text)

	// Unused alternative slots are dashes.
	assert.Equal(t, "-", rows[0][3].text)
	assert.Equal(t, "-", rows[2][4].text)
}

func TestOverviewRows_NoConsumption(t *testing.T) {
	r := fullReport()
	r.Inputs.PalletsPerYear = nil
	rows := overviewRows(testView(r, testCustomer()))

	assert.Equal(t, "-", rows[2][1].text)
	assert.Equal(t, "-", rows[2][2].text)
	assert.Equal(t, "20 µm", rows[0][2].text)
}

func TestPlan(t *testing.T) {
	titles := func(chs []chapter) []string {
		out := make([]string, len(chs))
		for i, c := range chs {
			out[i] = c.title
		}
		return out
	}

	bare := plan(testView(&model.Report{}, &model.Customer{}))
	assert.Equal(t, []string{titleSituation, titleStability, titleOverview, titleSavings}, titles(bare))

	r := fullReport()
	r.Images = []model.Image{{FileRef: "images/a.png"}}
	full := plan(testView(r, testCustomer()))
	assert.Equal(t, []string{titleSituation, titleStability, titleOverview, titleSavings, titleConclusion, titleImages}, titles(full))
}

func TestSplitCompanyName(t *testing.T) {
	head, rest := splitCompanyName("IGM Fenster & Fassaden")
	assert.Equal(t, "IGM", head)
	assert.Equal(t, "Fenster & Fassaden", rest)

	head, rest = splitCompanyName("HARAL")
	assert.Equal(t, "HARAL", head)
	assert.Empty(t, rest)
}

package render

import (
	"strings"
	"time"

	"github.com/haral/audit-reports/internal/model"
)

// Chapter titles as printed in the table of contents.
const (
	titleSituation  = "Ausgangssituation"
	titleStability  = "Palettenstabilität - Wickelschema und Haltekräfte"
	titleOverview   = "Gesamtübersicht"
	titleSavings    = "Einsparpotentiale"
	titleConclusion = "Fazit und nächste Schritte"
	titleImages     = "Bilddokumentation"
)

var processSteps = []string{"ANALYSE", "SITUATIONSBERICHT", "EVALUIERUNG", "ZERTIFIZIERUNG", "IMPLEMENTIERUNG", "MONITORING"}

type chapter struct {
	title string
	build func(d *document, v *view, a *assets, n int)
}

// plan returns the chapters emitted for v, in order.
func plan(v *view) []chapter {
	chapters := []chapter{
		{titleSituation, situationChapter},
		{titleStability, stabilityChapter},
		{titleOverview, overviewChapter},
		{titleSavings, savingsChapter},
	}
	if hasConclusion(v) {
		chapters = append(chapters, chapter{titleConclusion, conclusionChapter})
	}
	if len(v.report.Images) > 0 {
		chapters = append(chapters, chapter{titleImages, imagesChapter})
	}
	return chapters
}

func titlePage(d *document, v *view, at time.Time) {
	d.pdf.AddPage()
	d.pdf.SetY(55)

	head, rest := splitCompanyName(v.customer.CompanyName)
	d.text(styleCompany, head)
	if rest != "" {
		d.text(styleSubtitle, rest)
	}
	d.space(4)
	d.rule()
	d.space(20)

	d.text(styleBody, v.customer.CompanyName)
	if v.customer.ContactPerson != "" {
		d.text(styleBody, v.customer.ContactPerson)
	}
	if addr := v.customer.AddressLine(); addr != "" {
		d.text(styleBody, addr)
	}
	d.space(18)

	d.text(styleTitle, orDefault(v.report.Title, model.DefaultReportTitle)+" "+v.report.AuditNumber)
	d.space(2)
	d.text(styleBodyCenter, authorLine(v.report))
	d.text(styleBodyCenter, "Stand: "+date(at))
	d.space(18)

	d.heading("Quintessenz:")
	d.paragraph(quintessenceText(v))
}

// splitCompanyName separates the first word, printed large, from the rest.
func splitCompanyName(name string) (string, string) {
	for i, r := range name {
		if r == ' ' {
			return name[:i], strings.TrimSpace(name[i+1:])
		}
	}
	return name, ""
}

func tocPage(d *document, chapters []chapter, pages map[string]int) {
	d.pdf.AddPage()
	d.heading("Inhaltsverzeichnis")
	d.use(styleBody)
	for i, ch := range chapters {
		page := ""
		if n, ok := pages[ch.title]; ok {
			page = integer(n)
		}
		d.pdf.CellFormat(d.width-20, 8, d.tr(integer(i+1)+". "+ch.title), "B", 0, "L", false, 0, "")
		d.pdf.CellFormat(20, 8, page, "B", 1, "R", false, 0, "")
	}
}

func startChapter(d *document, n int, title string) {
	d.pdf.AddPage()
	d.chapterPages[title] = d.pdf.PageNo()
	d.heading(integer(n) + ". " + title)
}

func machineSubheading(d *document, v *view, n int) {
	if v.in.RobotManufacturer == "" {
		return
	}
	label := v.in.RobotManufacturer
	if v.in.RobotModel != "" {
		label += " " + v.in.RobotModel
	}
	d.subheading(integer(n) + ".1 " + label)
}

func situationChapter(d *document, v *view, _ *assets, _ int) {
	d.paragraph(compose(v, situationClauses...))
	d.paragraph(testPalletText(v))
	d.paragraph(plugAndPlayText(v))
	d.space(4)
	d.processStrip(processSteps)
}

func stabilityChapter(d *document, v *view, _ *assets, n int) {
	machineSubheading(d, v, n)

	if d.has(imgDiagram) {
		d.image(imgDiagram, 110, 75)
	}
	d.text(styleBodyCenter, palletSummary(v))
	d.space(4)

	prestretch := optNumber(v.in.PrestretchActual, "%")
	d.table(table{
		widths:      []float64{40, 50, 50},
		header:      []string{"Wickelschema", "Wicklungen", "Vordehnung"},
		labelColumn: true,
		rows: [][]cell{
			{plain("Oben"), plain(optInt(v.in.WindingsTop)), plain(prestretch)},
			{plain("Mitte"), plain(optInt(v.in.WindingsMiddle)), plain(prestretch)},
			{plain("Unten"), plain(optInt(v.in.WindingsBottom)), plain(prestretch)},
		},
	})

	rows := make([][]cell, 0, len(model.Positions))
	for _, p := range model.Positions {
		pair := v.in.HoldingForces.At(p)
		dev := plain("-")
		if pct, ok := v.derived.Deviations[p]; ok {
			dev = plain(signedPercent(pct))
			if pct < 0 {
				dev = red(signedPercent(pct))
			}
		}
		rows = append(rows, []cell{
			plain(positionLabels[p]),
			plain(optNumber(pair.Target, "kg")),
			plain(optNumber(pair.Actual, "kg")),
			dev,
		})
	}
	d.table(table{
		widths:      []float64{45, 35, 35, 45},
		header:      []string{"Haltekräfte (ASTM)", `Messwert "SOLL"`, `Messwert "IST"`, "Abweichung in Prozent"},
		rows:        rows,
		labelColumn: true,
	})

	d.paragraph(compose(v, assessmentClauses...))
	if v.in.CertificateRequired {
		d.paragraph(certificateText)
	}
	d.text(styleNote, technicalLine(v))
}

var positionLabels = map[model.Position]string{
	model.PositionLongTop:     "Lange Seite oben:",
	model.PositionLongBottom:  "Lange Seite unten:",
	model.PositionShortTop:    "Kurze Seite oben:",
	model.PositionShortBottom: "Kurze Seite unten:",
}

// maxAlternativeColumns is the number of alternative columns in the overview.
const maxAlternativeColumns = 3

func overviewChapter(d *document, v *view, _ *assets, n int) {
	machineSubheading(d, v, n)

	header := []string{"", "IST-Situation | 1"}
	for i := 1; i <= maxAlternativeColumns; i++ {
		header = append(header, "Alternative | "+integer(i))
	}

	rows := overviewRows(v)
	d.table(table{
		widths:      []float64{46, 31, 31, 31, 31},
		header:      header,
		rows:        rows,
		labelColumn: true,
	})
	d.text(styleNote, "*Die Werte können je nach Folientyp und Hersteller geringfügig abweichen.")
}

// overviewRows builds the comparison matrix: one column for the current
// setup and one per alternative slot.
func overviewRows(v *view) [][]cell {
	labels := []string{
		"Foliendicke",
		"Vordehnung",
		"Folienverbrauch im Jahr",
		"Differenz",
		"Gesamtkosten im Jahr",
		"Differenz",
		"CO2-Emissionen im Jahr*",
		"Differenz",
		"Palettenstabilität",
	}
	rows := make([][]cell, len(labels))
	for i, l := range labels {
		rows[i] = []cell{plain(l)}
	}

	current := []cell{
		plain(optNumber(v.in.FilmThickness, micro)),
		plain(optNumber(v.in.PrestretchActual, "%")),
		plain("-"), plain(""),
		plain("-"), plain(""),
		plain("-"), plain(""),
		plain(orDefault(v.in.HoldingForceRating, "-")),
	}
	if v.hasCurrent {
		current[2] = plain(kilograms(v.current.TotalMaterial))
		current[4] = plain(money(v.current.AnnualCosts))
		current[6] = plain(kilograms(v.current.CO2Emissions))
	}
	for i := range rows {
		rows[i] = append(rows[i], current[i])
	}

	for slot := 0; slot < maxAlternativeColumns; slot++ {
		col := alternativeColumn(v, slot)
		for i := range rows {
			rows[i] = append(rows[i], col[i])
		}
	}
	return rows
}

func alternativeColumn(v *view, slot int) []cell {
	col := make([]cell, 9)
	for i := range col {
		col[i] = plain("-")
	}
	if slot >= len(v.report.Alternatives) {
		return col
	}
	alt := v.report.Alternatives[slot]
	col[0] = plain(optNumber(alt.FilmThickness, micro))
	col[1] = plain(optNumber(alt.Prestretch, "%"))
	col[8] = plain(orDefault(alt.PalletStability, "-"))

	if !v.hasCurrent {
		return col
	}
	p, ok := v.engine.Project(v.current, v.in.FilmThickness, alt)
	if !ok {
		return col
	}
	col[2] = plain(kilograms(p.TotalMaterial))
	col[3] = difference(p.TotalMaterial, v.current.TotalMaterial)
	col[4] = plain(money(p.AnnualCosts))
	col[5] = difference(p.AnnualCosts, v.current.AnnualCosts)
	col[6] = plain(kilograms(p.CO2Emissions))
	col[7] = difference(p.CO2Emissions, v.current.CO2Emissions)
	return col
}

// difference is the relative change from base to value, red when it is a saving.
func difference(value, base float64) cell {
	if base == 0 {
		return plain("-")
	}
	pct := (value - base) / base * 100
	if pct < 0 {
		return red(signedPercent(pct))
	}
	return plain(signedPercent(pct))
}

func savingsChapter(d *document, v *view, _ *assets, _ int) {
	text := compose(v, savingsClauses...)
	if text == "" {
		text = noSavingsText
	}
	d.paragraph(text)
	d.space(4)

	d.table(table{
		widths:      []float64{85, 85},
		labelColumn: true,
		rows: [][]cell{
			{plain("Materialeinsparung"), plain(optPercent(v.derived.MaterialSavings))},
			{plain("Kostenreduzierung"), plain(optPercent(v.derived.CostReduction))},
			{plain("CO2-Reduzierung"), plain(optPercent(v.derived.CO2Reduction))},
		},
	})

	if v.derived.StabilityIncrease != nil {
		d.text(styleHighlight, "+"+decimal(*v.derived.StabilityIncrease, 1)+" kg Haltekraft im Mittel")
	}
}

func conclusionChapter(d *document, v *view, _ *assets, _ int) {
	blocks := []struct{ title, text string }{
		{"Fazit", v.in.ConclusionText},
		{"Empfehlungen", v.in.RecommendationsText},
		{"Nächste Schritte", v.in.NextStepsText},
	}
	for _, b := range blocks {
		if strings.TrimSpace(b.text) == "" {
			continue
		}
		d.subheading(b.title)
		d.paragraph(b.text)
	}
	d.paragraph(compose(v, conclusionExtras...))
}

func imagesChapter(d *document, v *view, a *assets, _ int) {
	for i, img := range v.report.Images {
		caption := orDefault(img.Caption, "Abbildung "+integer(i+1))
		if i < len(a.images) && a.images[i] != nil && d.has(imageName(i)) {
			d.image(imageName(i), d.width, 100)
			d.text(styleCaption, caption)
		} else {
			d.ensure(12)
			d.text(styleCaption, "[Bild nicht verfügbar] "+caption)
		}
		d.space(6)
	}
}

package render

import (
	"fmt"
	"strings"

	"github.com/haral/audit-reports/internal/metrics"
	"github.com/haral/audit-reports/internal/model"
)

// view is the read-only data a document is built from.
type view struct {
	report   *model.Report
	customer *model.Customer
	in       *model.Inputs
	derived  *model.Derived

	engine     *metrics.Engine
	current    metrics.Consumption
	hasCurrent bool
	best       int // index into report.Alternatives, -1 if none
}

func newView(engine *metrics.Engine, r *model.Report, c *model.Customer) *view {
	v := &view{
		report:   r,
		customer: c,
		in:       &r.Inputs,
		derived:  &r.Derived,
		engine:   engine,
		best:     metrics.BestAlternative(r.Alternatives),
	}
	v.current, v.hasCurrent = engine.ConsumptionAndCost(r.Inputs)
	return v
}

func (v *view) bestAlternative() *model.Alternative {
	if v.best < 0 {
		return nil
	}
	return &v.report.Alternatives[v.best]
}

// clause renders one sentence of a narrative paragraph, or "" to omit it.
type clause func(v *view) string

// compose joins the non-empty clauses with single spaces.
func compose(v *view, clauses ...clause) string {
	parts := make([]string, 0, len(clauses))
	for _, c := range clauses {
		if s := strings.TrimSpace(c(v)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Ausgangssituation

var situationClauses = []clause{
	siteClause,
	filmClause,
	prestretchRangeClause,
	consumptionClause,
	annualDemandClause,
	rollCoreClause,
	annualCostClause,
	costChangeClause,
}

func siteClause(v *view) string {
	site := orDefault(v.in.ProductionSite, orDefault(v.customer.City, "[Ort]"))
	return fmt.Sprintf("An Ihrem Produktionstandort in %s wird ein Roboter des Herstellers %s (Modell: %s) betrieben.",
		site,
		orDefault(v.in.RobotManufacturer, "[Hersteller]"),
		orDefault(v.in.RobotModel, "[Modell]"))
}

func filmClause(v *view) string {
	if v.in.FilmThickness == nil && v.in.FilmType == "" {
		return ""
	}
	var desc []string
	if v.in.FilmType != "" {
		desc = append(desc, v.in.FilmType)
	}
	if v.in.FilmThickness != nil {
		desc = append(desc, number(*v.in.FilmThickness)+" "+micro)
	}
	s := "Zum Einsatz kommt aktuell eine " + strings.Join(desc, " ") + " Maschinenstretchfolie"
	if v.in.FilmSupplier != "" {
		return s + ", diese wird aktuell von der Firma " + v.in.FilmSupplier + " geliefert."
	}
	return s + "."
}

func prestretchRangeClause(v *view) string {
	if v.in.MaxPrestretch == nil {
		return ""
	}
	return fmt.Sprintf("Innerhalb des Arbeitsbereichs, ist eine Vordehnung auf bis zu %s %% möglich.", number(*v.in.MaxPrestretch))
}

func consumptionClause(v *view) string {
	if v.in.FilmConsumptionPerPallet == nil {
		return ""
	}
	return fmt.Sprintf("Diese Folie wurde auch bewertet und bildet die Basis der IST-Situation. "+
		"Der aktuelle Folienverbrauch für die gemessene Musterpalette liegt bei %s g pro Palette.",
		number(*v.in.FilmConsumptionPerPallet))
}

func annualDemandClause(v *view) string {
	if v.derived.TotalMaterialConsumption == nil || v.in.PalletsPerYear == nil {
		return ""
	}
	return fmt.Sprintf("Bei einer Palettenanzahl von ca. %s Paletten pro Jahr ergibt sich ein Gesamtmaterialbedarf von ca. %s im Jahr.",
		integer(*v.in.PalletsPerYear), kilograms(*v.derived.TotalMaterialConsumption))
}

func rollCoreClause(v *view) string {
	if v.in.RollCoreWeight == nil {
		return ""
	}
	return fmt.Sprintf("Das Gewicht des verwendeten Rollenkerns liegt bei %s kg.", number(*v.in.RollCoreWeight))
}

func annualCostClause(v *view) string {
	if v.derived.AnnualCosts == nil {
		return ""
	}
	return fmt.Sprintf("Daraus resultieren jährliche Kosten in Höhe von %s.", money(*v.derived.AnnualCosts))
}

func costChangeClause(v *view) string {
	if v.derived.AnnualCosts == nil || v.derived.CostReduction == nil || *v.derived.CostReduction <= 0 {
		return ""
	}
	reduced := *v.derived.AnnualCosts * (1 - *v.derived.CostReduction/100)
	return fmt.Sprintf("Bei einem Produktwechsel können die Kosten um %s gesenkt und somit auf %s reduziert werden.",
		percent(*v.derived.CostReduction), money(reduced))
}

// testPalletText describes the measured sample pallet.
func testPalletText(v *view) string {
	s := "Getestet wurde eine " + orDefault(v.in.PalletType, "Euro") + "palette"
	if v.in.PalletDimensions != "" {
		s += ", " + v.in.PalletDimensions + " (l x b x h)"
	}
	if v.in.PalletContent != "" {
		s += ", mit " + v.in.PalletContent
	}
	return s + ". Hierbei wurde der aktuelle Folienverbrauch, die Palettenstabilität sowie die Vordehnung der Stretchfolie überprüft."
}

// plugAndPlayText explains the alternative film test. Empty without alternatives.
func plugAndPlayText(v *view) string {
	if len(v.report.Alternatives) == 0 {
		return ""
	}
	film := "eine alternative Folie"
	if best := v.bestAlternative(); best != nil {
		film = "eine " + number(*best.FilmThickness) + " " + micro + " Folie"
	}
	return "Neben der Aufnahme der Ist-Situation, wurde u. a. " + film + " getestet. " +
		"Bei diesem sogenannten Plug- und Play-Test wurde lediglich die Folie ausgetauscht und keinerlei " +
		"Änderungen an den Einstellungen der Maschine vorgenommen. Dies machen wir, um verlässliche, " +
		"standardisierte Werte u. a. bezüglich der Haltekräfte und der Vordehnung zu erhalten."
}

// Quintessenz

func quintessenceText(v *view) string {
	d := v.derived
	if d.MaterialSavings == nil {
		return "Die Einsparpotentiale werden nach Abschluss der Testreihe mit alternativen Folien ermittelt."
	}
	return fmt.Sprintf("Durch eine ganzheitliche Optimierung der eingesetzten Stretchfolie in Verbindung mit der "+
		"Maschinentechnik, können Materialeinsparungen von bis zu %s und damit eine Kostenreduzierung von circa %s "+
		"realisiert werden. Zugleich können die CO2-Emissionen um %s gesenkt werden. Die Palettenstabilität und "+
		"damit die Ladungssicherung der Packstücke kann dabei im Mittelwert um %s kg gesteigert werden.",
		optPercent(d.MaterialSavings), optPercent(d.CostReduction), optPercent(d.CO2Reduction),
		orDefault(optDecimal(d.StabilityIncrease), "-"))
}

func optDecimal(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal(*v, 1)
}

// Palettenstabilität

var assessmentClauses = []clause{ratingClause, complianceClause}

func ratingClause(v *view) string {
	if v.in.HoldingForceRating == "" {
		return ""
	}
	return "Die Haltekräfte sind mit " + v.in.HoldingForceRating + " zu bewerten."
}

func complianceClause(v *view) string {
	if v.in.EUDirectiveCompliant {
		return "Nach aktuellem Stand werden die Anforderungen gem. EU-Richtlinie 2014/47 in Verbindung mit " +
			"EUMOS 40509 erfüllt. Eine abschließende Bewertung ist nur durch einen Validierungsversuch im Prüflabor möglich."
	}
	return "Eine Bewertung bzgl. der Erfüllung der Anforderungen gem. EU-Richtlinie 2014/47 in Verbindung mit " +
		"EUMOS 40509 ist nicht ohne Validierungsversuch im Prüflabor abschließend möglich. Aktuell kann aber " +
		"nicht davon ausgegangen werden, dass diese vollumfänglich erfüllt werden."
}

const certificateText = "Im Zuge einer partnerschaftlichen Zusammenarbeit, können wir bei der Erfüllung dieser " +
	"Anforderungen behilflich sein. Hierzu erstellen wir für jedes Packschema entsprechende Zertifikate, welche " +
	"vom Spediteur mitgeführt werden und bei Kontrollen durch die Polizei oder das Bundesamt für Güterverkehr " +
	"(BAG) vorgelegt werden."

// palletSummary is the one-line description under the diagram.
func palletSummary(v *view) string {
	var parts []string
	head := orDefault(v.in.PalletType, "Euro") + "palette"
	if v.in.PalletContent != "" {
		head += " mit " + v.in.PalletContent
	}
	parts = append(parts, head)
	if v.in.GrossWeight != nil {
		parts = append(parts, "Bruttogewicht: "+number(*v.in.GrossWeight)+" kg")
	}
	return strings.Join(parts, ", ")
}

// technicalLine lists the key film parameters of the current setup.
func technicalLine(v *view) string {
	return strings.Join([]string{
		"Folien Dicke: " + optNumber(v.in.FilmThickness, micro),
		"Vordehnung: " + optNumber(v.in.PrestretchActual, "%"),
		"Folienverbrauch: " + optNumber(v.in.FilmConsumptionPerPallet, "g"),
		"Gewicht Rollenkern: " + optNumber(v.in.RollCoreWeight, "kg"),
	}, " | ")
}

// Einsparpotentiale

var savingsClauses = []clause{recommendationClause, savingsFiguresClause, qualityClause, holdingForceClause}

func recommendationClause(v *view) string {
	if v.in.RecommendedAlternative != "" {
		return "Auf Basis der durchgeführten Tests empfehlen wir den Einsatz von " + v.in.RecommendedAlternative + "."
	}
	if best := v.bestAlternative(); best != nil {
		return "Auf Basis der durchgeführten Tests empfehlen wir den Umstieg auf die " +
			number(*best.FilmThickness) + " " + micro + " Folie (Alternative " + integer(v.best+1) + ")."
	}
	return ""
}

func savingsFiguresClause(v *view) string {
	d := v.derived
	if d.MaterialSavings == nil {
		return ""
	}
	return fmt.Sprintf("Damit lassen sich der Folienverbrauch um %s, die Kosten um %s und die CO2-Emissionen um %s reduzieren.",
		optPercent(d.MaterialSavings), optPercent(d.CostReduction), optPercent(d.CO2Reduction))
}

func qualityClause(v *view) string {
	if !v.in.QualityImprovement {
		return ""
	}
	return "Gleichzeitig wird die Qualität der Ladungssicherung verbessert."
}

func holdingForceClause(v *view) string {
	if !v.in.HoldingForceIncrease {
		return ""
	}
	if v.derived.StabilityIncrease != nil && *v.derived.StabilityIncrease > 0 {
		return "Die Haltekräfte werden dabei im Mittelwert um " + decimal(*v.derived.StabilityIncrease, 1) + " kg erhöht."
	}
	return "Die Haltekräfte werden dabei erhöht."
}

const noSavingsText = "Auf Basis der vorliegenden Daten konnten noch keine Einsparpotentiale ermittelt werden."

// Fazit

func hasConclusion(v *view) bool {
	in := v.in
	return strings.TrimSpace(in.ConclusionText) != "" ||
		strings.TrimSpace(in.RecommendationsText) != "" ||
		strings.TrimSpace(in.NextStepsText) != "" ||
		in.ImplementationTimeframe != "" || in.TrainingRequired || in.FollowUpRequired
}

var conclusionExtras = []clause{timeframeClause, trainingClause, followUpClause}

func timeframeClause(v *view) string {
	if v.in.ImplementationTimeframe == "" {
		return ""
	}
	return "Die Umsetzung ist im Zeitraum " + v.in.ImplementationTimeframe + " vorgesehen."
}

func trainingClause(v *view) string {
	if !v.in.TrainingRequired {
		return ""
	}
	return "Eine Schulung des Bedienpersonals wird empfohlen."
}

func followUpClause(v *view) string {
	if !v.in.FollowUpRequired {
		return ""
	}
	return "Zur Überprüfung der Ergebnisse wird ein Folgetermin vereinbart."
}

// authorLine is "Verfasser X · Telefon Y · E-Mail: Z" with empty parts skipped.
func authorLine(r *model.Report) string {
	parts := []string{"Verfasser " + orDefault(r.Author, "-")}
	if r.Phone != "" {
		parts = append(parts, "Telefon "+r.Phone)
	}
	if r.Email != "" {
		parts = append(parts, "E-Mail: "+r.Email)
	}
	return strings.Join(parts, " · ")
}

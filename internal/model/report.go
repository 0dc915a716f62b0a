package model

import "time"

// DefaultReportTitle is used when a report is created without a title.
const DefaultReportTitle = "PRÜFBERICHT AUDIT"

// ReportStatus represents the lifecycle state of an audit report.
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusCompleted ReportStatus = "completed"
	ReportStatusArchived  ReportStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportStatusDraft, ReportStatusCompleted, ReportStatusArchived:
		return true
	}
	return false
}

// ReportStatuses lists every status in display order.
var ReportStatuses = []ReportStatus{ReportStatusDraft, ReportStatusCompleted, ReportStatusArchived}

// Position identifies one of the four holding-force measuring points.
type Position string

const (
	PositionLongTop     Position = "long_top"
	PositionLongBottom  Position = "long_bottom"
	PositionShortTop    Position = "short_top"
	PositionShortBottom Position = "short_bottom"
)

// Positions lists the measuring points in table order.
var Positions = []Position{PositionLongTop, PositionLongBottom, PositionShortTop, PositionShortBottom}

// ForcePair is a target ("SOLL") and measured ("IST") holding force in kg.
type ForcePair struct {
	Target *float64 `json:"target,omitempty" yaml:"target"`
	Actual *float64 `json:"actual,omitempty" yaml:"actual"`
}

// HoldingForces holds the four measured positions.
type HoldingForces struct {
	LongTop     ForcePair `json:"long_top" yaml:"long_top"`
	LongBottom  ForcePair `json:"long_bottom" yaml:"long_bottom"`
	ShortTop    ForcePair `json:"short_top" yaml:"short_top"`
	ShortBottom ForcePair `json:"short_bottom" yaml:"short_bottom"`
}

// At returns a pointer to the pair for p, or nil for an unknown position.
func (h *HoldingForces) At(p Position) *ForcePair {
	switch p {
	case PositionLongTop:
		return &h.LongTop
	case PositionLongBottom:
		return &h.LongBottom
	case PositionShortTop:
		return &h.ShortTop
	case PositionShortBottom:
		return &h.ShortBottom
	}
	return nil
}

// Alternative is a proposed substitute film compared against the current setup.
type Alternative struct {
	FilmThickness   *float64 `json:"film_thickness,omitempty" yaml:"film_thickness"`
	Prestretch      *float64 `json:"prestretch,omitempty" yaml:"prestretch"`
	PalletStability string   `json:"pallet_stability,omitempty" yaml:"pallet_stability"`
}

// Image is an attachment shown in the image appendix.
type Image struct {
	FileRef string `json:"file_ref" yaml:"file_ref"`
	Caption string `json:"caption,omitempty" yaml:"caption"`
}

// Inputs are the raw, user-editable fields of a report.
type Inputs struct {
	// Site and machine
	ProductionSite    string `json:"production_site,omitempty" yaml:"production_site"`
	RobotManufacturer string `json:"robot_manufacturer,omitempty" yaml:"robot_manufacturer"`
	RobotModel        string `json:"robot_model,omitempty" yaml:"robot_model"`

	// Film
	FilmType      string   `json:"film_type,omitempty" yaml:"film_type"`
	FilmThickness *float64 `json:"film_thickness,omitempty" yaml:"film_thickness"` // µm
	FilmSupplier  string   `json:"film_supplier,omitempty" yaml:"film_supplier"`
	MaxPrestretch *float64 `json:"max_prestretch,omitempty" yaml:"max_prestretch"` // %

	// Consumption sample
	FilmConsumptionPerPallet *float64 `json:"film_consumption_per_pallet,omitempty" yaml:"film_consumption_per_pallet"` // g
	PalletsPerYear           *int     `json:"pallets_per_year,omitempty" yaml:"pallets_per_year"`
	RollCoreWeight           *float64 `json:"roll_core_weight,omitempty" yaml:"roll_core_weight"` // kg

	// Test pallet
	PalletType       string   `json:"pallet_type,omitempty" yaml:"pallet_type"`
	PalletDimensions string   `json:"pallet_dimensions,omitempty" yaml:"pallet_dimensions"`
	PalletContent    string   `json:"pallet_content,omitempty" yaml:"pallet_content"`
	GrossWeight      *float64 `json:"gross_weight,omitempty" yaml:"gross_weight"` // kg

	// Winding scheme
	WindingsTop      *int     `json:"windings_top,omitempty" yaml:"windings_top"`
	WindingsMiddle   *int     `json:"windings_middle,omitempty" yaml:"windings_middle"`
	WindingsBottom   *int     `json:"windings_bottom,omitempty" yaml:"windings_bottom"`
	PrestretchActual *float64 `json:"prestretch_actual,omitempty" yaml:"prestretch_actual"` // %

	HoldingForces HoldingForces `json:"holding_forces" yaml:"holding_forces"`

	// Assessment
	HoldingForceRating   string `json:"holding_force_rating,omitempty" yaml:"holding_force_rating"`
	EUDirectiveCompliant bool   `json:"eu_directive_compliant" yaml:"eu_directive_compliant"`
	CertificateRequired  bool   `json:"certificate_required" yaml:"certificate_required"`

	// Recommendation
	RecommendedAlternative string `json:"recommended_alternative,omitempty" yaml:"recommended_alternative"`
	QualityImprovement     bool   `json:"quality_improvement" yaml:"quality_improvement"`
	HoldingForceIncrease   bool   `json:"holding_force_increase" yaml:"holding_force_increase"`

	// Conclusion
	ConclusionText          string `json:"conclusion_text,omitempty" yaml:"conclusion_text"`
	RecommendationsText     string `json:"recommendations_text,omitempty" yaml:"recommendations_text"`
	NextStepsText           string `json:"next_steps_text,omitempty" yaml:"next_steps_text"`
	ImplementationTimeframe string `json:"implementation_timeframe,omitempty" yaml:"implementation_timeframe"`
	TrainingRequired        bool   `json:"training_required" yaml:"training_required"`
	FollowUpRequired        bool   `json:"follow_up_required" yaml:"follow_up_required"`
}

// Derived holds values computed from Inputs and Alternatives. They are never
// edited directly.
type Derived struct {
	TotalMaterialConsumption *float64 `json:"total_material_consumption,omitempty"` // kg/yr
	AnnualCosts              *float64 `json:"annual_costs,omitempty"`               // EUR/yr
	CO2Emissions             *float64 `json:"co2_emissions,omitempty"`              // kg/yr

	MaterialSavings   *float64 `json:"material_savings,omitempty"`   // %
	CostReduction     *float64 `json:"cost_reduction,omitempty"`     // %
	CO2Reduction      *float64 `json:"co2_reduction,omitempty"`      // %
	StabilityIncrease *float64 `json:"stability_increase,omitempty"` // kg

	Deviations map[Position]float64 `json:"holding_force_deviations,omitempty"`
}

// Report is a single pallet-wrapping audit.
type Report struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	UserID       string        `json:"user_id,omitempty"`
	Title        string        `json:"title"`
	AuditNumber  string        `json:"audit_number"`
	Author       string        `json:"author"`
	Phone        string        `json:"phone,omitempty"`
	Email        string        `json:"email,omitempty"`
	Status       ReportStatus  `json:"status"`
	Inputs       Inputs        `json:"inputs"`
	Alternatives []Alternative `json:"alternatives"`
	Images       []Image       `json:"images"`
	Derived      Derived       `json:"derived"`
	DocumentPath string        `json:"document_path,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of r. Pointer fields are shared since they are
// treated as immutable values.
func (r *Report) Clone() *Report {
	c := *r
	c.Alternatives = append([]Alternative(nil), r.Alternatives...)
	c.Images = append([]Image(nil), r.Images...)
	if r.Derived.Deviations != nil {
		c.Derived.Deviations = make(map[Position]float64, len(r.Derived.Deviations))
		for k, v := range r.Derived.Deviations {
			c.Derived.Deviations[k] = v
		}
	}
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

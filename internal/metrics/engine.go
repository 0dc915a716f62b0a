// Package metrics derives consumption, cost, emission, savings and deviation
// figures from the raw fields of an audit report.
package metrics

import (
	"math"

	"github.com/haral/audit-reports/internal/model"
)

// Rates holds the business factors the derived metrics are computed with.
type Rates struct {
	FoilCostPerKg       float64 `yaml:"foil_cost_per_kg" mapstructure:"foil_cost_per_kg"`           // EUR per kg film
	RollCoreCostPerKg   float64 `yaml:"roll_core_cost_per_kg" mapstructure:"roll_core_cost_per_kg"` // EUR per kg roll core
	CO2PerKgFilm        float64 `yaml:"co2_per_kg_film" mapstructure:"co2_per_kg_film"`             // kg CO2 per kg film
	CostReductionFactor float64 `yaml:"cost_reduction_factor" mapstructure:"cost_reduction_factor"` // share of material savings passed to cost
	StabilityFactor     float64 `yaml:"stability_factor" mapstructure:"stability_factor"`           // kg stability gain per % savings
}

// DefaultRates returns the factors used by the audit practice.
func DefaultRates() Rates {
	return Rates{
		FoilCostPerKg:       2.50,
		RollCoreCostPerKg:   0.50,
		CO2PerKgFilm:        3.02,
		CostReductionFactor: 0.4,
		StabilityFactor:     0.2,
	}
}

// Engine computes derived report metrics. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	rates Rates
}

// NewEngine creates an Engine with the given rates.
func NewEngine(rates Rates) *Engine {
	return &Engine{rates: rates}
}

// Rates returns the factors the engine was built with.
func (e *Engine) Rates() Rates {
	return e.rates
}

// Consumption holds the annual consumption figures of the current setup.
type Consumption struct {
	TotalMaterial float64 // kg/yr
	AnnualCosts   float64 // EUR/yr
	CO2Emissions  float64 // kg/yr
}

// ConsumptionAndCost computes annual film usage, cost and CO2. It returns
// false when film consumption per pallet or pallets per year is unknown.
func (e *Engine) ConsumptionAndCost(in model.Inputs) (Consumption, bool) {
	if in.FilmConsumptionPerPallet == nil || in.PalletsPerYear == nil {
		return Consumption{}, false
	}
	pallets := float64(*in.PalletsPerYear)
	total := *in.FilmConsumptionPerPallet * pallets / 1000

	rollCore := 0.0
	if in.RollCoreWeight != nil {
		rollCore = *in.RollCoreWeight
	}

	return Consumption{
		TotalMaterial: total,
		AnnualCosts:   total*e.rates.FoilCostPerKg + rollCore*e.rates.RollCoreCostPerKg*pallets/1000,
		CO2Emissions:  total * e.rates.CO2PerKgFilm,
	}, true
}

// Deviation returns the percentage deviation of actual from target rounded to
// one decimal. It returns false when target is missing or not positive. A
// missing actual counts as zero.
func Deviation(target, actual *float64) (float64, bool) {
	if target == nil || *target <= 0 {
		return 0, false
	}
	a := 0.0
	if actual != nil {
		a = *actual
	}
	return round1((a - *target) / *target * 100), true
}

// Deviations computes the deviation for every position with a valid target.
// Positions without one are absent from the result.
func Deviations(h model.HoldingForces) map[model.Position]float64 {
	out := make(map[model.Position]float64, len(model.Positions))
	for _, p := range model.Positions {
		pair := h.At(p)
		if d, ok := Deviation(pair.Target, pair.Actual); ok {
			out[p] = d
		}
	}
	return out
}

// BestAlternative returns the index of the alternative with the lowest film
// thickness. Alternatives without a positive thickness never win. The first
// of equal minima is chosen. It returns -1 when no alternative declares a
// positive thickness.
func BestAlternative(alts []model.Alternative) int {
	best := -1
	lowest := math.Inf(1)
	for i, a := range alts {
		if a.FilmThickness == nil || *a.FilmThickness <= 0 {
			continue
		}
		if *a.FilmThickness < lowest {
			lowest = *a.FilmThickness
			best = i
		}
	}
	return best
}

// Quintessence holds the headline savings shown on the title page.
type Quintessence struct {
	MaterialSavings   float64 // %
	CostReduction     float64 // %
	CO2Reduction      float64 // %
	StabilityIncrease float64 // kg
}

// Quintessence computes headline savings against the thinnest alternative.
// It returns false when the current thickness is unknown or not positive, or
// when no alternative declares a thickness.
func (e *Engine) Quintessence(in model.Inputs, alts []model.Alternative) (Quintessence, bool) {
	if len(alts) == 0 || in.FilmThickness == nil || *in.FilmThickness <= 0 {
		return Quintessence{}, false
	}
	i := BestAlternative(alts)
	if i < 0 {
		return Quintessence{}, false
	}

	savings := round1((*in.FilmThickness - *alts[i].FilmThickness) / *in.FilmThickness * 100)
	return Quintessence{
		MaterialSavings:   savings,
		CostReduction:     round1(savings * e.rates.CostReductionFactor),
		CO2Reduction:      savings,
		StabilityIncrease: round1(savings * e.rates.StabilityFactor),
	}, true
}

// Projection is the annual consumption expected with an alternative film.
type Projection struct {
	Savings       float64 // fractional material reduction, e.g. 0.261
	TotalMaterial float64 // kg/yr
	AnnualCosts   float64 // EUR/yr
	CO2Emissions  float64 // kg/yr
}

// Project scales the current consumption to an alternative thickness using the
// same proportional reduction as Quintessence, with cost damped by the cost
// reduction factor. It returns false when either thickness is unknown or not
// positive.
func (e *Engine) Project(current Consumption, currentThickness *float64, alt model.Alternative) (Projection, bool) {
	if currentThickness == nil || *currentThickness <= 0 || alt.FilmThickness == nil || *alt.FilmThickness <= 0 {
		return Projection{}, false
	}
	s := (*currentThickness - *alt.FilmThickness) / *currentThickness
	return Projection{
		Savings:       s,
		TotalMaterial: current.TotalMaterial * (1 - s),
		AnnualCosts:   current.AnnualCosts * (1 - e.rates.CostReductionFactor*s),
		CO2Emissions:  current.CO2Emissions * (1 - s),
	}, true
}

// Recompute refreshes every derived field of r from its raw inputs.
// Consumption fields are cleared when their inputs are unknown. Quintessence
// fields are kept unchanged when no alternative can be evaluated.
func (e *Engine) Recompute(r *model.Report) {
	if c, ok := e.ConsumptionAndCost(r.Inputs); ok {
		r.Derived.TotalMaterialConsumption = model.Float(c.TotalMaterial)
		r.Derived.AnnualCosts = model.Float(c.AnnualCosts)
		r.Derived.CO2Emissions = model.Float(c.CO2Emissions)
	} else {
		r.Derived.TotalMaterialConsumption = nil
		r.Derived.AnnualCosts = nil
		r.Derived.CO2Emissions = nil
	}

	if q, ok := e.Quintessence(r.Inputs, r.Alternatives); ok {
		r.Derived.MaterialSavings = model.Float(q.MaterialSavings)
		r.Derived.CostReduction = model.Float(q.CostReduction)
		r.Derived.CO2Reduction = model.Float(q.CO2Reduction)
		r.Derived.StabilityIncrease = model.Float(q.StabilityIncrease)
	}

	r.Derived.Deviations = Deviations(r.Inputs.HoldingForces)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package service

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/haral/audit-reports/internal/model"
)

// setter applies one patch value to a report.
type setter func(r *model.Report, v any) error

// immutableFields are visible in the report representation but cannot be
// written through a patch. Create silently drops them; update rejects them.
var immutableFields = map[string]bool{
	"id":                         true,
	"audit_number":               true,
	"status":                     true,
	"document_path":              true,
	"created_at":                 true,
	"updated_at":                 true,
	"derived":                    true,
	"total_material_consumption": true,
	"annual_costs":               true,
	"co2_emissions":              true,
	"material_savings":           true,
	"cost_reduction":             true,
	"co2_reduction":              true,
	"stability_increase":         true,
	"holding_force_deviations":   true,
}

var reportFields = buildFieldTable()

func buildFieldTable() map[string]setter {
	t := map[string]setter{
		"customer_id": stringField(func(r *model.Report) *string { return &r.CustomerID }),
		"user_id":     stringField(func(r *model.Report) *string { return &r.UserID }),
		"title":       stringField(func(r *model.Report) *string { return &r.Title }),
		"author":      stringField(func(r *model.Report) *string { return &r.Author }),
		"phone":       stringField(func(r *model.Report) *string { return &r.Phone }),
		"email":       stringField(func(r *model.Report) *string { return &r.Email }),

		"production_site":          inputString(func(in *model.Inputs) *string { return &in.ProductionSite }),
		"robot_manufacturer":       inputString(func(in *model.Inputs) *string { return &in.RobotManufacturer }),
		"robot_model":              inputString(func(in *model.Inputs) *string { return &in.RobotModel }),
		"film_type":                inputString(func(in *model.Inputs) *string { return &in.FilmType }),
		"film_supplier":            inputString(func(in *model.Inputs) *string { return &in.FilmSupplier }),
		"pallet_type":              inputString(func(in *model.Inputs) *string { return &in.PalletType }),
		"pallet_dimensions":        inputString(func(in *model.Inputs) *string { return &in.PalletDimensions }),
		"pallet_content":           inputString(func(in *model.Inputs) *string { return &in.PalletContent }),
		"holding_force_rating":     inputString(func(in *model.Inputs) *string { return &in.HoldingForceRating }),
		"recommended_alternative":  inputString(func(in *model.Inputs) *string { return &in.RecommendedAlternative }),
		"conclusion_text":          inputString(func(in *model.Inputs) *string { return &in.ConclusionText }),
		"recommendations_text":     inputString(func(in *model.Inputs) *string { return &in.RecommendationsText }),
		"next_steps_text":          inputString(func(in *model.Inputs) *string { return &in.NextStepsText }),
		"implementation_timeframe": inputString(func(in *model.Inputs) *string { return &in.ImplementationTimeframe }),

		"film_thickness":              inputFloat(func(in *model.Inputs) **float64 { return &in.FilmThickness }),
		"max_prestretch":              inputFloat(func(in *model.Inputs) **float64 { return &in.MaxPrestretch }),
		"film_consumption_per_pallet": inputFloat(func(in *model.Inputs) **float64 { return &in.FilmConsumptionPerPallet }),
		"roll_core_weight":            inputFloat(func(in *model.Inputs) **float64 { return &in.RollCoreWeight }),
		"gross_weight":                inputFloat(func(in *model.Inputs) **float64 { return &in.GrossWeight }),
		"prestretch_actual":           inputFloat(func(in *model.Inputs) **float64 { return &in.PrestretchActual }),

		"pallets_per_year": inputInt(func(in *model.Inputs) **int { return &in.PalletsPerYear }),
		"windings_top":     inputInt(func(in *model.Inputs) **int { return &in.WindingsTop }),
		"windings_middle":  inputInt(func(in *model.Inputs) **int { return &in.WindingsMiddle }),
		"windings_bottom":  inputInt(func(in *model.Inputs) **int { return &in.WindingsBottom }),

		"eu_directive_compliant": inputBool(func(in *model.Inputs) *bool { return &in.EUDirectiveCompliant }),
		"certificate_required":   inputBool(func(in *model.Inputs) *bool { return &in.CertificateRequired }),
		"quality_improvement":    inputBool(func(in *model.Inputs) *bool { return &in.QualityImprovement }),
		"holding_force_increase": inputBool(func(in *model.Inputs) *bool { return &in.HoldingForceIncrease }),
		"training_required":      inputBool(func(in *model.Inputs) *bool { return &in.TrainingRequired }),
		"follow_up_required":     inputBool(func(in *model.Inputs) *bool { return &in.FollowUpRequired }),

		"holding_forces": jsonField(func(r *model.Report) any { return &r.Inputs.HoldingForces }),
		"alternatives":   setAlternatives,
		"images":         jsonField(func(r *model.Report) any { return &r.Images }),
	}

	// Flat holding-force keys, e.g. "holding_force_long_top_target".
	for _, p := range model.Positions {
		t["holding_force_"+string(p)+"_target"] = forceField(p, true)
		t["holding_force_"+string(p)+"_actual"] = forceField(p, false)
	}
	return t
}

// PatchableFields lists every field accepted by CreateReport and UpdateReport.
func PatchableFields() []string {
	out := make([]string, 0, len(reportFields))
	for k := range reportFields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// applyFields writes fields into r. With strict set, immutable fields are an
// error; otherwise they are skipped. Unknown fields are always an error.
// Keys are applied in sorted order so the first error is deterministic.
func applyFields(r *model.Report, fields map[string]any, strict bool) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if immutableFields[k] {
			if strict {
				return invalid(k, "field cannot be changed")
			}
			continue
		}
		set, ok := reportFields[k]
		if !ok {
			return &ValidationError{Field: k, Message: "unknown field", Allowed: PatchableFields()}
		}
		if err := set(r, fields[k]); err != nil {
			return invalid(k, "%s", err.Error())
		}
	}
	return nil
}

func stringField(get func(r *model.Report) *string) setter {
	return func(r *model.Report, v any) error {
		s, err := toString(v)
		if err != nil {
			return err
		}
		*get(r) = s
		return nil
	}
}

func inputString(get func(in *model.Inputs) *string) setter {
	return stringField(func(r *model.Report) *string { return get(&r.Inputs) })
}

func inputFloat(get func(in *model.Inputs) **float64) setter {
	return func(r *model.Report, v any) error {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		*get(&r.Inputs) = f
		return nil
	}
}

func inputInt(get func(in *model.Inputs) **int) setter {
	return func(r *model.Report, v any) error {
		n, err := toInt(v)
		if err != nil {
			return err
		}
		*get(&r.Inputs) = n
		return nil
	}
}

func inputBool(get func(in *model.Inputs) *bool) setter {
	return func(r *model.Report, v any) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		*get(&r.Inputs) = b
		return nil
	}
}

func forceField(p model.Position, target bool) setter {
	return func(r *model.Report, v any) error {
		f, err := toFloat(v)
		if err != nil {
			return err
		}
		pair := r.Inputs.HoldingForces.At(p)
		if target {
			pair.Target = f
		} else {
			pair.Actual = f
		}
		return nil
	}
}

// jsonField decodes structured values by round-tripping them through JSON.
func jsonField(get func(r *model.Report) any) setter {
	return func(r *model.Report, v any) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, get(r))
	}
}

// setAlternatives accepts a list of objects whose numeric members may be
// strings, the way form-based clients submit them.
func setAlternatives(r *model.Report, v any) error {
	if v == nil {
		r.Alternatives = nil
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return jsonField(func(r *model.Report) any { return &r.Alternatives })(r, v)
	}

	alts := make([]model.Alternative, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return fmt.Errorf("alternative %d: expected object", i+1)
		}
		var alt model.Alternative
		var err error
		if alt.FilmThickness, err = toFloat(obj["film_thickness"]); err != nil {
			return fmt.Errorf("alternative %d film_thickness: %v", i+1, err)
		}
		if alt.Prestretch, err = toFloat(obj["prestretch"]); err != nil {
			return fmt.Errorf("alternative %d prestretch: %v", i+1, err)
		}
		if alt.PalletStability, err = toString(obj["pallet_stability"]); err != nil {
			return fmt.Errorf("alternative %d pallet_stability: %v", i+1, err)
		}
		alts = append(alts, alt)
	}
	r.Alternatives = alts
	return nil
}

// coercion

func toString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", nil
	case string:
		return strings.TrimSpace(x), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(x), nil
	case json.Number:
		return x.String(), nil
	case bool:
		return strconv.FormatBool(x), nil
	}
	return "", fmt.Errorf("expected text, got %T", v)
}

// toFloat accepts numbers and numeric strings, with "," or "." as decimal
// separator. nil and "" clear the value.
func toFloat(v any) (*float64, error) {
	var f float64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", x.String())
		}
		f = parsed
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", x)
		}
		f = parsed
	default:
		return nil, fmt.Errorf("expected number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("invalid number")
	}
	return &f, nil
}

func toInt(v any) (*int, error) {
	f, err := toFloat(v)
	if err != nil || f == nil {
		return nil, err
	}
	if *f != math.Trunc(*f) {
		return nil, fmt.Errorf("expected whole number, got %v", *f)
	}
	n := int(*f)
	return &n, nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case nil:
		return false, nil
	case bool:
		return x, nil
	case float64:
		return x != 0, nil
	case int:
		return x != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "", "0", "false", "no", "off", "nein":
			return false, nil
		case "1", "true", "yes", "on", "ja":
			return true, nil
		}
		return false, fmt.Errorf("invalid boolean %q", x)
	}
	return false, fmt.Errorf("expected boolean, got %T", v)
}

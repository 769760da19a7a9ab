package catalog

import "sort"

// DefaultMetalPrice is the metal price per unit used until the user enters one.
const DefaultMetalPrice = 510

// Coefficients maps coefficient names (c1…c5) to values for one model.
type Coefficients map[string]float64

// Clone returns an independent copy of c.
func (c Coefficients) Clone() Coefficients {
	out := make(Coefficients, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Names returns the coefficient names in c, sorted.
func (c Coefficients) Names() []string {
	names := make([]string, 0, len(c))
	for k := range c {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

const capFormula = "((X * Y * c1 + c2) + (X + Y) * 0.002 * (c3 + c4 * X) * metalPrice) * 2"

var defaultFormulas = map[Model]string{
	ModelCapClassicSimple:   capFormula,
	ModelCapClassicSlatted:  capFormula,
	ModelCapModernSimple:    capFormula,
	ModelCapModernSlatted:   capFormula,
	ModelBoxSmooth:          "((X * Y * c1 + c2) + (X + Y) * 0.002 * (H * 0.001) * metalPrice) * 2",
	ModelBoxLamellar:        "((X * Y * c1 + c2) * 2 + (X + Y) * 0.002 * c3 * (H * 0.001) * metalPrice) * c4",
	ModelFlashingFlat:       "((X * Y * c1 + c2) + (X * c3 + Y * c4) * metalPrice) * 2",
	ModelFlashingProfiled:   "((X * Y * c1 + c2) + (X * c3 + Y * c4) * metalPrice + (X + 0.5) * c5) * 2",
	ModelAddonMesh:          "((X + Y) * c1 * meshPrice * 1.2 + c2) * 2",
	ModelAddonHeatproof:     "(X * Y * c1 * 1.2 * stainlessPrice + c2) * 2",
	ModelAddonBottomCap:     "(X * Y * c1 * 1.2 * metalPrice + c2) * 2",
	ModelAddonMountFrame:    "((X + Y) * c1 * zincPrice065 * 1.2 + c2) * 2",
	ModelAddonMountSkeleton: "(((X + Y) * c1 + H * 0.001 * c2) * zincPrice065 * 1.2 + c3) * 2",
}

var defaultCoefficients = map[Model]Coefficients{
	ModelCapClassicSimple:   {"c1": 0.001, "c2": 1500, "c3": 0.25, "c4": 0.00075},
	ModelCapClassicSlatted:  {"c1": 0.0015, "c2": 1500, "c3": 0.625, "c4": 0.00075},
	ModelCapModernSimple:    {"c1": 0.001, "c2": 1000, "c3": 0.25, "c4": 0.00065},
	ModelCapModernSlatted:   {"c1": 0.0015, "c2": 1500, "c3": 0.625, "c4": 0.00065},
	ModelBoxSmooth:          {"c1": 0.0025, "c2": 2500},
	ModelBoxLamellar:        {"c1": 0.0025, "c2": 2500, "c3": 1.6, "c4": 2.15},
	ModelFlashingFlat:       {"c1": 0.002, "c2": 2000, "c3": 0.00125, "c4": 0.00085},
	ModelFlashingProfiled:   {"c1": 0.002, "c2": 3000, "c3": 0.00125, "c4": 0.001, "c5": 500},
	ModelAddonMesh:          {"c1": 0.0005, "c2": 500},
	ModelAddonHeatproof:     {"c1": 0.000001, "c2": 500},
	ModelAddonBottomCap:     {"c1": 0.000001, "c2": 500},
	ModelAddonMountFrame:    {"c1": 0.0005, "c2": 500},
	ModelAddonMountSkeleton: {"c1": 0.001, "c2": 0.004, "c3": 2500},
}

// DefaultFormula returns the built-in expression for m.
func DefaultFormula(m Model) (string, bool) {
	f, ok := defaultFormulas[m]
	return f, ok
}

// DefaultCoefficients returns a copy of the built-in coefficients for m, or nil for an
// unknown model.
func DefaultCoefficients(m Model) Coefficients {
	c, ok := defaultCoefficients[m]
	if !ok {
		return nil
	}
	return c.Clone()
}

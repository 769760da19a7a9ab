// Package settings persists the per-model formula expressions and coefficient records on
// top of the built-in defaults.
//
// Persisted data only overrides: loading merges the stored record for each model over its
// default key by key, so a partial or partly corrupt override never blanks out a value.
package settings

import (
	"errors"
	"maps"

	"github.com/Simplici0/pipe.works/internal/catalog"
)

// Storage keys. The values are JSON objects keyed by model.
const (
	CoefficientsKey = "pipe_formula_coefficients"
	FormulasKey     = "pipe_formula_strings"
)

var (
	ErrUnknownModel       = errors.New("settings: unknown model")
	ErrUnknownCoefficient = errors.New("settings: unknown coefficient")
	ErrInvalidValue       = errors.New("settings: invalid value")
	ErrInvalidFormula     = errors.New("settings: invalid formula")
	ErrInvalidBackup      = errors.New("settings: invalid backup")
)

// CoefficientTable holds one coefficient record per model.
type CoefficientTable map[catalog.Model]catalog.Coefficients

// FormulaTable holds one expression per model.
type FormulaTable map[catalog.Model]string

// DefaultCoefficientTable returns a fresh copy of every built-in coefficient record.
func DefaultCoefficientTable() CoefficientTable {
	out := make(CoefficientTable)
	for _, m := range catalog.Models() {
		out[m] = catalog.DefaultCoefficients(m)
	}
	return out
}

// DefaultFormulaTable returns every built-in formula.
func DefaultFormulaTable() FormulaTable {
	out := make(FormulaTable)
	for _, m := range catalog.Models() {
		out[m], _ = catalog.DefaultFormula(m)
	}
	return out
}

// ResolveCoefficients merges override over defaults. For every model in defaults the
// result holds the default record with the override's keys written on top. Models that
// only appear in override are dropped. Neither argument is modified.
func ResolveCoefficients(defaults, override CoefficientTable) CoefficientTable {
	out := make(CoefficientTable, len(defaults))
	for m, record := range defaults {
		merged := record.Clone()
		maps.Copy(merged, override[m])
		out[m] = merged
	}
	return out
}

// ResolveFormulas returns defaults with each model's expression replaced by the override's
// when one is present. Models that only appear in override are dropped.
func ResolveFormulas(defaults, override FormulaTable) FormulaTable {
	out := make(FormulaTable, len(defaults))
	for m, formula := range defaults {
		if o, ok := override[m]; ok {
			formula = o
		}
		out[m] = formula
	}
	return out
}

// Clone returns a deep copy of t.
func (t CoefficientTable) Clone() CoefficientTable {
	out := make(CoefficientTable, len(t))
	for m, record := range t {
		out[m] = record.Clone()
	}
	return out
}

// Modified reports whether the record for m differs from its built-in default.
func (t CoefficientTable) Modified(m catalog.Model) bool {
	return !maps.Equal(t[m], catalog.DefaultCoefficients(m))
}

// Modified reports whether the expression for m differs from its built-in default.
func (t FormulaTable) Modified(m catalog.Model) bool {
	def, _ := catalog.DefaultFormula(m)
	return t[m] != def
}

// Package pricing turns product selections into prices by evaluating each model's stored
// formula against the order's dimensions, material prices, coefficients and custom
// variables.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/expr"
)

var tracer = otel.Tracer("pricing")

// ErrUnknownModel is returned by the fail-loud entry points for an unknown formula slot.
var ErrUnknownModel = errors.New("pricing: unknown model")

// Dimensions are the product sizes in millimetres. H is only used by boxes and some
// add-ons.
type Dimensions struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	H float64 `json:"h"`
}

// MaterialPrices are the unit prices of the sheet materials.
type MaterialPrices struct {
	Metal     float64 `json:"metalPrice"`
	Mesh      float64 `json:"meshPrice"`
	Stainless float64 `json:"stainlessPrice"`
	Zinc065   float64 `json:"zincPrice065"`
}

// CoefficientSource resolves the coefficient record for a model.
type CoefficientSource interface {
	Coefficients(ctx context.Context, m catalog.Model) catalog.Coefficients
}

// FormulaSource resolves the expression for a model.
type FormulaSource interface {
	Formula(ctx context.Context, m catalog.Model) string
}

// VariableSource supplies the user-defined variables.
type VariableSource interface {
	VariableMap() map[string]float64
}

// Engine prices products. It is safe for concurrent use when its sources are.
type Engine struct {
	coefficients CoefficientSource
	formulas     FormulaSource
	variables    VariableSource
	logger       *zap.Logger
	metrics      *Metrics
}

// EngineDeps are the collaborators of an Engine. Coefficients and Formulas are required.
type EngineDeps struct {
	Coefficients CoefficientSource
	Formulas     FormulaSource
	Variables    VariableSource
	Logger       *zap.Logger
	Metrics      *Metrics
}

// NewEngine builds an Engine from deps.
func NewEngine(deps EngineDeps) (*Engine, error) {
	if deps.Coefficients == nil {
		return nil, errors.New("pricing engine: coefficient source is required")
	}
	if deps.Formulas == nil {
		return nil, errors.New("pricing engine: formula source is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		coefficients: deps.Coefficients,
		formulas:     deps.Formulas,
		variables:    deps.Variables,
		logger:       logger.Named("pricing"),
		metrics:      deps.Metrics,
	}, nil
}

// CapPrice prices a cap. A custom cap is priced by hand and returns 0.
func (e *Engine) CapPrice(ctx context.Context, c catalog.Cap, d Dimensions, p MaterialPrices) float64 {
	m, ok := c.Model()
	if !ok {
		return 0
	}
	return e.softPrice(ctx, m, d, p)
}

// BoxPrice prices a box. BoxNone returns 0.
func (e *Engine) BoxPrice(ctx context.Context, b catalog.Box, d Dimensions, p MaterialPrices) float64 {
	m, ok := b.Model()
	if !ok {
		return 0
	}
	return e.softPrice(ctx, m, d, p)
}

// FlashingPrice prices a flashing. FlashingNone returns 0.
func (e *Engine) FlashingPrice(ctx context.Context, f catalog.Flashing, d Dimensions, p MaterialPrices) float64 {
	m, ok := f.Model()
	if !ok {
		return 0
	}
	return e.softPrice(ctx, m, d, p)
}

// AddonPrice prices an add-on ordered with cap c. The gas passthrough has a fixed price
// that depends only on whether the cap is a classic model.
func (e *Engine) AddonPrice(ctx context.Context, a catalog.Addon, c catalog.Cap, d Dimensions, p MaterialPrices) float64 {
	if a == catalog.AddonGasPassthrough {
		e.metrics.observe(catalog.FamilyAddon, outcomeFixed, 0)
		if c.Classic() {
			return catalog.GasPassthroughClassicPrice
		}
		return catalog.GasPassthroughModernPrice
	}
	m, ok := a.Model()
	if !ok {
		return 0
	}
	return e.softPrice(ctx, m, d, p)
}

// Price evaluates the stored formula for m and reports evaluation failures.
func (e *Engine) Price(ctx context.Context, m catalog.Model, d Dimensions, p MaterialPrices) (float64, error) {
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
	return e.evaluate(ctx, m, e.formulas.Formula(ctx, m), d, p)
}

// Preview evaluates an unsaved expression with the variables m would be priced with.
func (e *Engine) Preview(ctx context.Context, m catalog.Model, expression string, d Dimensions, p MaterialPrices) (float64, error) {
	if !m.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, m)
	}
	return e.evaluate(ctx, m, expression, d, p)
}

// Variables returns the variable map m is evaluated against.
func (e *Engine) Variables(ctx context.Context, m catalog.Model, d Dimensions, p MaterialPrices) map[string]float64 {
	vars := make(map[string]float64)
	if e.variables != nil {
		maps.Copy(vars, e.variables.VariableMap())
	}
	maps.Copy(vars, e.coefficients.Coefficients(ctx, m))

	vars[catalog.VarX] = d.X
	vars[catalog.VarY] = d.Y
	switch m.Family() {
	case catalog.FamilyCap, catalog.FamilyFlashing:
		vars[catalog.VarMetalPrice] = p.Metal
	case catalog.FamilyBox:
		vars[catalog.VarH] = d.H
		vars[catalog.VarMetalPrice] = p.Metal
	case catalog.FamilyAddon:
		vars[catalog.VarH] = d.H
		name, value := addonMaterial(m, p)
		vars[name] = value
	}
	return vars
}

func addonMaterial(m catalog.Model, p MaterialPrices) (string, float64) {
	switch m {
	case catalog.ModelAddonMesh:
		return catalog.VarMeshPrice, p.Mesh
	case catalog.ModelAddonHeatproof:
		return catalog.VarStainlessPrice, p.Stainless
	case catalog.ModelAddonMountFrame, catalog.ModelAddonMountSkeleton:
		return catalog.VarZincPrice065, p.Zinc065
	default:
		return catalog.VarMetalPrice, p.Metal
	}
}

// softPrice evaluates the stored formula for m and prices failures at zero.
func (e *Engine) softPrice(ctx context.Context, m catalog.Model, d Dimensions, p MaterialPrices) float64 {
	value, err := e.evaluate(ctx, m, e.formulas.Formula(ctx, m), d, p)
	if err != nil {
		e.logger.Warn("formula evaluation failed, pricing at zero",
			zap.String("model", string(m)),
			zap.Error(err),
		)
		return 0
	}
	return value
}

func (e *Engine) evaluate(ctx context.Context, m catalog.Model, expression string, d Dimensions, p MaterialPrices) (float64, error) {
	_, span := tracer.Start(ctx, "pricing.evaluate",
		trace.WithAttributes(
			attribute.String("pricing.model", string(m)),
			attribute.String("pricing.family", string(m.Family())),
		),
	)
	defer span.End()

	start := time.Now()
	value, err := expr.Evaluate(expression, e.Variables(ctx, m, d, p))
	e.metrics.observe(m.Family(), outcomeOf(err), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "formula evaluation failed")
		return 0, err
	}
	span.SetAttributes(attribute.Float64("pricing.result", value))
	return value, nil
}

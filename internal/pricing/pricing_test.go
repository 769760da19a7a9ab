package pricing

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/customvars"
	"github.com/Simplici0/pipe.works/internal/kvstore"
	"github.com/Simplici0/pipe.works/internal/settings"
)

func nearlyEqual(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s = %v, want %v", name, got, want)
	}
}

type fixture struct {
	engine   *Engine
	formulas *settings.FormulaStore
	coeffs   *settings.CoefficientStore
	vars     *customvars.Registry
}

func newFixture(t *testing.T, opts ...func(*EngineDeps)) fixture {
	t.Helper()

	ctx := context.Background()
	kv := kvstore.NewMemory()
	f := fixture{
		formulas: settings.NewFormulaStore(kv, nil),
		coeffs:   settings.NewCoefficientStore(kv, nil),
		vars:     customvars.Open(ctx, kv),
	}
	deps := EngineDeps{Coefficients: f.coeffs, Formulas: f.formulas, Variables: f.vars}
	for _, opt := range opts {
		opt(&deps)
	}

	engine, err := NewEngine(deps)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f.engine = engine
	return f
}

var (
	standardDims   = Dimensions{X: 380, Y: 380, H: 500}
	standardPrices = MaterialPrices{Metal: 510, Mesh: 300, Stainless: 900, Zinc065: 420}
)

func TestCapPrice_ClassicSimpleDefaults(t *testing.T) {
	f := newFixture(t)

	got := f.engine.CapPrice(context.Background(), catalog.CapClassicSimple, Dimensions{X: 380, Y: 380}, MaterialPrices{Metal: 510})

	want := ((380*380*0.001 + 1500) + (380+380)*0.002*(0.25+0.00075*380)*510) * 2
	nearlyEqual(t, "cap_classic_simple", got, want)
	if math.Round(got) != 4118 {
		t.Fatalf("rounded price = %v, want 4118", math.Round(got))
	}
}

func TestBoxAndFlashingPrices_Defaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	X, Y, H, metal := 380.0, 380.0, 500.0, 510.0

	nearlyEqual(t, "box_smooth", f.engine.BoxPrice(ctx, catalog.BoxSmooth, standardDims, standardPrices),
		((X*Y*0.0025+2500)+(X+Y)*0.002*(H*0.001)*metal)*2)
	nearlyEqual(t, "box_lamellar", f.engine.BoxPrice(ctx, catalog.BoxLamellar, standardDims, standardPrices),
		((X*Y*0.0025+2500)*2+(X+Y)*0.002*1.6*(H*0.001)*metal)*2.15)
	nearlyEqual(t, "flashing_flat", f.engine.FlashingPrice(ctx, catalog.FlashingFlat, standardDims, standardPrices),
		((X*Y*0.002+2000)+(X*0.00125+Y*0.00085)*metal)*2)
	nearlyEqual(t, "flashing_profiled", f.engine.FlashingPrice(ctx, catalog.FlashingProfiled, standardDims, standardPrices),
		((X*Y*0.002+3000)+(X*0.00125+Y*0.001)*metal+(X+0.5)*500)*2)
}

func TestAddonPrice_UsesOnlyItsMaterial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	X, Y, H := 380.0, 380.0, 500.0
	c := catalog.CapModernSimple

	nearlyEqual(t, "mesh", f.engine.AddonPrice(ctx, catalog.AddonMesh, c, standardDims, standardPrices),
		((X+Y)*0.0005*300*1.2+500)*2)
	nearlyEqual(t, "heatproof", f.engine.AddonPrice(ctx, catalog.AddonHeatproof, c, standardDims, standardPrices),
		(X*Y*0.000001*1.2*900+500)*2)
	nearlyEqual(t, "bottom_cap", f.engine.AddonPrice(ctx, catalog.AddonBottomCap, c, standardDims, standardPrices),
		(X*Y*0.000001*1.2*510+500)*2)
	nearlyEqual(t, "mount_frame", f.engine.AddonPrice(ctx, catalog.AddonMountFrame, c, standardDims, standardPrices),
		((X+Y)*0.0005*420*1.2+500)*2)
	nearlyEqual(t, "mount_skeleton", f.engine.AddonPrice(ctx, catalog.AddonMountSkeleton, c, standardDims, standardPrices),
		(((X+Y)*0.001+H*0.001*0.004)*420*1.2+2500)*2)

	vars := f.engine.Variables(ctx, catalog.ModelAddonMesh, standardDims, standardPrices)
	if _, ok := vars[catalog.VarMetalPrice]; ok {
		t.Fatalf("addon_mesh variables contain metalPrice: %v", vars)
	}
	if vars[catalog.VarMeshPrice] != 300 || vars[catalog.VarH] != H {
		t.Fatalf("addon_mesh variables = %v", vars)
	}
}

func TestVariables_FamilySubsets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	capVars := f.engine.Variables(ctx, catalog.ModelCapModernSlatted, standardDims, standardPrices)
	if _, ok := capVars[catalog.VarH]; ok {
		t.Fatalf("cap variables contain H: %v", capVars)
	}
	for _, name := range []string{"X", "Y", "metalPrice", "c1", "c2", "c3", "c4"} {
		if _, ok := capVars[name]; !ok {
			t.Fatalf("cap variables missing %s: %v", name, capVars)
		}
	}

	boxVars := f.engine.Variables(ctx, catalog.ModelBoxSmooth, standardDims, standardPrices)
	if boxVars[catalog.VarH] != 500 || boxVars[catalog.VarMetalPrice] != 510 {
		t.Fatalf("box variables = %v", boxVars)
	}
	if _, ok := boxVars[catalog.VarMeshPrice]; ok {
		t.Fatalf("box variables contain meshPrice: %v", boxVars)
	}
}

func TestAddonPrice_GasPassthroughIsFixed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, c := range []catalog.Cap{catalog.CapClassicSimple, catalog.CapClassicSlatted} {
		for _, d := range []Dimensions{{}, standardDims, {X: -5, Y: 1e6, H: 3}} {
			nearlyEqual(t, string(c), f.engine.AddonPrice(ctx, catalog.AddonGasPassthrough, c, d, standardPrices), 2500)
		}
	}
	for _, c := range []catalog.Cap{catalog.CapModernSimple, catalog.CapModernSlatted, catalog.CapCustom} {
		nearlyEqual(t, string(c), f.engine.AddonPrice(ctx, catalog.AddonGasPassthrough, c, standardDims, standardPrices), 1800)
	}
}

func TestSentinelsPriceZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, d := range []Dimensions{{}, standardDims, {X: -1, Y: -1, H: -1}} {
		nearlyEqual(t, "custom cap", f.engine.CapPrice(ctx, catalog.CapCustom, d, standardPrices), 0)
		nearlyEqual(t, "no box", f.engine.BoxPrice(ctx, catalog.BoxNone, d, standardPrices), 0)
		nearlyEqual(t, "no flashing", f.engine.FlashingPrice(ctx, catalog.FlashingNone, d, standardPrices), 0)
	}
}

func TestFailSoftPricing(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, func(d *EngineDeps) { d.Logger = zap.New(core) })
	ctx := context.Background()

	if err := f.formulas.Update(ctx, catalog.ModelBoxSmooth, "X +* Y"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := f.formulas.Update(ctx, catalog.ModelFlashingFlat, "X / (Y - Y)"); err != nil {
		t.Fatalf("Update: %v", err)
	}

	nearlyEqual(t, "broken box", f.engine.BoxPrice(ctx, catalog.BoxSmooth, standardDims, standardPrices), 0)
	nearlyEqual(t, "non-finite flashing", f.engine.FlashingPrice(ctx, catalog.FlashingFlat, standardDims, standardPrices), 0)
	if got := logs.FilterMessage("formula evaluation failed, pricing at zero").Len(); got != 2 {
		t.Fatalf("warnings = %d, want 2", got)
	}

	// The fail-loud entry point reports the same problem.
	if _, err := f.engine.Price(ctx, catalog.ModelBoxSmooth, standardDims, standardPrices); err == nil {
		t.Fatal("Price with broken formula: want error")
	}
}

func TestCustomVariableUsableInFormula(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.vars.Add(ctx, "Профиль", "profilePrice", 300); err != nil {
		t.Fatalf("Add: %v", err)
	}
	got, err := f.engine.Preview(ctx, catalog.ModelCapClassicSimple, "profilePrice * 2", Dimensions{}, MaterialPrices{})
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	nearlyEqual(t, "profilePrice * 2", got, 600)

	if err := f.formulas.Update(ctx, catalog.ModelAddonMesh, "profilePrice + meshPrice"); err != nil {
		t.Fatalf("Update: %v", err)
	}
	nearlyEqual(t, "addon_mesh", f.engine.AddonPrice(ctx, catalog.AddonMesh, catalog.CapCustom, standardDims, standardPrices), 600)
}

func TestPriceAndPreview_UnknownModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Price(ctx, "roof", standardDims, standardPrices); err == nil {
		t.Fatal("Price(roof): want error")
	}
	if _, err := f.engine.Preview(ctx, "roof", "1", standardDims, standardPrices); err == nil {
		t.Fatal("Preview(roof): want error")
	}
}

func TestPrice_UsesEditedCoefficients(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.coeffs.Update(ctx, catalog.ModelBoxSmooth, map[string]float64{"c2": 0}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := f.engine.Price(ctx, catalog.ModelBoxSmooth, Dimensions{X: 100, Y: 100, H: 0}, MaterialPrices{Metal: 510})
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	nearlyEqual(t, "box_smooth", got, 100*100*0.0025*2)
}

func TestPrice_Deterministic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.engine.CapPrice(ctx, catalog.CapModernSlatted, standardDims, standardPrices)
	for i := 0; i < 10; i++ {
		if got := f.engine.CapPrice(ctx, catalog.CapModernSlatted, standardDims, standardPrices); got != first {
			t.Fatalf("run %d = %v, want %v", i, got, first)
		}
	}
}

func TestNewEngine_RequiresSources(t *testing.T) {
	if _, err := NewEngine(EngineDeps{}); err == nil {
		t.Fatal("NewEngine without sources: want error")
	}
	if _, err := NewEngine(EngineDeps{Coefficients: settings.NewCoefficientStore(kvstore.NewMemory(), nil)}); err == nil {
		t.Fatal("NewEngine without formulas: want error")
	}
}

func TestMetrics_CountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	if _, err := NewMetrics(reg); err == nil {
		t.Fatal("registering twice: want error")
	}

	f := newFixture(t, func(d *EngineDeps) { d.Metrics = metrics })
	ctx := context.Background()

	f.engine.CapPrice(ctx, catalog.CapClassicSimple, standardDims, standardPrices)
	f.engine.AddonPrice(ctx, catalog.AddonGasPassthrough, catalog.CapClassicSimple, standardDims, standardPrices)
	f.engine.Preview(ctx, catalog.ModelBoxSmooth, "X +", standardDims, standardPrices)
	f.engine.Preview(ctx, catalog.ModelBoxSmooth, "1 / 0", standardDims, standardPrices)

	want := map[[2]string]float64{
		{"cap", "ok"}:         1,
		{"addon", "fixed"}:    1,
		{"box", "invalid"}:    1,
		{"box", "non_finite"}: 1,
	}
	got := counterValues(t, reg)
	if len(got) != len(want) {
		t.Fatalf("counters = %v, want %v", got, want)
	}
	for labels, v := range want {
		nearlyEqual(t, labels[0]+"/"+labels[1], got[labels], v)
	}
}

func counterValues(t *testing.T, reg *prometheus.Registry) map[[2]string]float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	out := make(map[[2]string]float64)
	for _, mf := range families {
		if mf.GetName() != "pipeworks_pricing_evaluations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			out[labelPair(m)] = m.GetCounter().GetValue()
		}
	}
	return out
}

func labelPair(m *dto.Metric) [2]string {
	var key [2]string
	for _, l := range m.GetLabel() {
		switch l.GetName() {
		case "family":
			key[0] = l.GetValue()
		case "outcome":
			key[1] = l.GetValue()
		}
	}
	return key
}

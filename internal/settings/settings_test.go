package settings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/kvstore"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) { return "", false, f.err }
func (f failingStore) Set(context.Context, string, string) error { return f.err }

func TestResolveCoefficientsMergesPerKey(t *testing.T) {
	t.Parallel()

	m := catalog.ModelBoxSmooth
	defaults := CoefficientTable{m: {"c1": 1, "c2": 2}}
	override := CoefficientTable{m: {"c1": 5}, catalog.Model("gone"): {"c1": 7}}

	got := ResolveCoefficients(defaults, override)
	require.Equal(t, CoefficientTable{m: {"c1": 5, "c2": 2}}, got)
	// Inputs are untouched.
	require.Equal(t, catalog.Coefficients{"c1": 1, "c2": 2}, defaults[m])
	require.Equal(t, catalog.Coefficients{"c1": 5}, override[m])
}

func TestResolveFormulas(t *testing.T) {
	t.Parallel()

	defaults := FormulaTable{catalog.ModelBoxSmooth: "X", catalog.ModelBoxLamellar: "Y"}
	got := ResolveFormulas(defaults, FormulaTable{catalog.ModelBoxSmooth: "X * 2", "unknown": "1"})
	require.Equal(t, FormulaTable{catalog.ModelBoxSmooth: "X * 2", catalog.ModelBoxLamellar: "Y"}, got)
}

func TestCoefficientLoadWithoutDataReturnsDefaults(t *testing.T) {
	t.Parallel()

	store := NewCoefficientStore(kvstore.NewMemory(), nil)
	require.Equal(t, DefaultCoefficientTable(), store.Load(context.Background()))
}

func TestCoefficientLoadFallsBack(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":    "{oops",
		"wrong shape": `[1, 2, 3]`,
		"null":        `null`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			kv := kvstore.NewMemory()
			require.NoError(t, kv.Set(context.Background(), CoefficientsKey, raw))
			store := NewCoefficientStore(kv, nil)
			require.Equal(t, DefaultCoefficientTable(), store.Load(context.Background()))
		})
	}
}

func TestCoefficientLoadMergesPartialOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(ctx, CoefficientsKey, `{
		"cap_classic_simple": {"c1": 0.002, "c3": null},
		"box_smooth": "garbage",
		"no_such_model": {"c1": 1}
	}`))

	core, logs := observer.New(zapcore.WarnLevel)
	store := NewCoefficientStore(kv, zap.New(core))
	table := store.Load(ctx)

	require.Len(t, table, len(catalog.Models()))
	require.Equal(t, catalog.Coefficients{"c1": 0.002, "c2": 1500, "c3": 0.25, "c4": 0.00075}, table[catalog.ModelCapClassicSimple])
	require.Equal(t, catalog.DefaultCoefficients(catalog.ModelBoxSmooth), table[catalog.ModelBoxSmooth])
	require.NotContains(t, table, catalog.Model("no_such_model"))
	require.Equal(t, 1, logs.FilterMessage("malformed coefficient record, using defaults").Len())
}

func TestCoefficientLoadStorageErrorIsLogged(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	store := NewCoefficientStore(failingStore{err: errors.New("disk gone")}, zap.New(core))

	require.Equal(t, DefaultCoefficientTable(), store.Load(context.Background()))
	require.Equal(t, 1, logs.Len())
}

func TestCoefficientSaveLoadIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(ctx, CoefficientsKey, `{"box_lamellar": {"c4": 3}}`))
	store := NewCoefficientStore(kv, nil)

	first := store.Load(ctx)
	require.NoError(t, store.Save(ctx, first))
	second := store.Load(ctx)
	require.Equal(t, first, second)
	require.Equal(t, 3.0, second[catalog.ModelBoxLamellar]["c4"])

	require.NoError(t, store.Save(ctx, second))
	require.Equal(t, second, store.Load(ctx))
}

func TestCoefficientSaveRejectsNonFinite(t *testing.T) {
	t.Parallel()

	store := NewCoefficientStore(kvstore.NewMemory(), nil)
	table := DefaultCoefficientTable()
	table[catalog.ModelBoxSmooth]["c1"] = math.Inf(1)

	require.Error(t, store.Save(context.Background(), table))
}

func TestCoefficientSaveReturnsStorageError(t *testing.T) {
	t.Parallel()

	boom := errors.New("read-only")
	store := NewCoefficientStore(failingStore{err: boom}, nil)
	require.ErrorIs(t, store.Save(context.Background(), DefaultCoefficientTable()), boom)
}

func TestCoefficientUpdateAndReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCoefficientStore(kvstore.NewMemory(), nil)
	m := catalog.ModelFlashingProfiled

	require.NoError(t, store.Update(ctx, m, map[string]float64{"c5": 650}))
	table := store.Load(ctx)
	require.Equal(t, 650.0, table[m]["c5"])
	require.Equal(t, 3000.0, table[m]["c2"])
	require.True(t, table.Modified(m))
	require.False(t, table.Modified(catalog.ModelFlashingFlat))
	require.Equal(t, 650.0, store.Coefficients(ctx, m)["c5"])

	require.NoError(t, store.ResetModel(ctx, m))
	table = store.Load(ctx)
	require.Equal(t, catalog.DefaultCoefficients(m), table[m])
	require.False(t, table.Modified(m))
}

func TestCoefficientUpdateValidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewCoefficientStore(kvstore.NewMemory(), nil)

	err := store.Update(ctx, "cap_nope", map[string]float64{"c1": 1})
	require.ErrorIs(t, err, ErrUnknownModel)

	err = store.Update(ctx, catalog.ModelBoxSmooth, map[string]float64{"c3": 1})
	require.ErrorIs(t, err, ErrUnknownCoefficient)

	err = store.Update(ctx, catalog.ModelBoxSmooth, map[string]float64{"c1": math.NaN()})
	require.ErrorIs(t, err, ErrInvalidValue)

	require.ErrorIs(t, store.ResetModel(ctx, "cap_nope"), ErrUnknownModel)
	require.Equal(t, DefaultCoefficientTable(), store.Load(ctx))
}

func TestFormulaStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemory()
	store := NewFormulaStore(kv, nil)
	m := catalog.ModelAddonMesh

	require.Equal(t, DefaultFormulaTable(), store.Load(ctx))
	def, _ := catalog.DefaultFormula(m)
	require.Equal(t, def, store.Defaults(m))

	require.NoError(t, store.Update(ctx, m, "  (X + Y) * meshPrice  "))
	require.Equal(t, "(X + Y) * meshPrice", store.Formula(ctx, m))
	require.True(t, store.Load(ctx).Modified(m))

	// A broken expression is still saved.
	require.NoError(t, store.Update(ctx, catalog.ModelAddonHeatproof, "X +* Y"))
	require.Equal(t, "X +* Y", store.Formula(ctx, catalog.ModelAddonHeatproof))

	require.NoError(t, store.ResetModel(ctx, m))
	require.Equal(t, def, store.Formula(ctx, m))
	require.False(t, store.Load(ctx).Modified(m))

	require.ErrorIs(t, store.Update(ctx, "nope", "X"), ErrUnknownModel)
}

func TestFormulaLoadMergesPartialOverride(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	kv := kvstore.NewMemory()
	require.NoError(t, kv.Set(ctx, FormulasKey, `{"box_smooth": "X * Y", "box_lamellar": 12, "flashing_flat": null}`))
	table := NewFormulaStore(kv, nil).Load(ctx)

	require.Equal(t, "X * Y", table[catalog.ModelBoxSmooth])
	require.Equal(t, DefaultFormulaTable()[catalog.ModelBoxLamellar], table[catalog.ModelBoxLamellar])
	require.Equal(t, DefaultFormulaTable()[catalog.ModelFlashingFlat], table[catalog.ModelFlashingFlat])

	require.NoError(t, kv.Set(ctx, FormulasKey, "]"))
	require.Equal(t, DefaultFormulaTable(), NewFormulaStore(kv, nil).Load(ctx))
}

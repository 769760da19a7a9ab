package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Simplici0/pipe.works/internal/expr"
)

func TestEveryModelHasDefaults(t *testing.T) {
	t.Parallel()

	require.Len(t, Models(), 13)
	for _, m := range Models() {
		require.True(t, m.Valid(), m)
		require.NotEmpty(t, m.Title(), m)
		require.NotEmpty(t, m.Family(), m)

		formula, ok := DefaultFormula(m)
		require.True(t, ok, m)
		coeffs := DefaultCoefficients(m)
		require.NotEmpty(t, coeffs, m)

		program, err := expr.Compile(formula)
		require.NoError(t, err, m)

		// Every coefficient the formula references has a default.
		for _, name := range program.Variables() {
			if IsCoefficientName(name) {
				require.Contains(t, coeffs, name, "%s references %s", m, name)
			}
		}
	}
}

func TestDefaultCoefficientsAreCopies(t *testing.T) {
	t.Parallel()

	c := DefaultCoefficients(ModelBoxSmooth)
	c["c1"] = 99
	require.Equal(t, 0.0025, DefaultCoefficients(ModelBoxSmooth)["c1"])
	require.Nil(t, DefaultCoefficients(Model("nope")))
}

func TestModelFamily(t *testing.T) {
	t.Parallel()

	require.Equal(t, FamilyCap, ModelCapModernSlatted.Family())
	require.Equal(t, FamilyBox, ModelBoxLamellar.Family())
	require.Equal(t, FamilyFlashing, ModelFlashingFlat.Family())
	require.Equal(t, FamilyAddon, ModelAddonMountSkeleton.Family())
	require.Equal(t, Family(""), Model("cap_unknown").Family())
}

func TestSelectionsMapToModels(t *testing.T) {
	t.Parallel()

	m, ok := CapClassicSlatted.Model()
	require.True(t, ok)
	require.Equal(t, ModelCapClassicSlatted, m)

	_, ok = CapCustom.Model()
	require.False(t, ok)
	_, ok = BoxNone.Model()
	require.False(t, ok)
	_, ok = FlashingNone.Model()
	require.False(t, ok)
	_, ok = AddonGasPassthrough.Model()
	require.False(t, ok)
	_, ok = Cap("bogus").Model()
	require.False(t, ok)

	m, ok = FlashingProfiled.Model()
	require.True(t, ok)
	require.Equal(t, ModelFlashingProfiled, m)

	for _, a := range Addons() {
		if m, ok := a.Model(); ok {
			require.True(t, m.Valid(), a)
		}
	}

	require.True(t, CapClassicSimple.Classic())
	require.False(t, CapModernSimple.Classic())
	require.False(t, CapCustom.Classic())
}

func TestIsReserved(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"X", "Y", "H", "metalPrice", "meshPrice", "stainlessPrice", "zincPrice065", "c1", "c5", "c12"} {
		require.True(t, IsReserved(name), name)
	}
	for _, name := range []string{"x", "profilePrice", "c", "cA", "coef1"} {
		require.False(t, IsReserved(name), name)
	}
}

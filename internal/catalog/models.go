// Package catalog lists the sellable product variants, the formula slot each one is priced
// with, and the built-in default formulas and coefficients.
package catalog

import (
	"regexp"
	"strings"
)

// Family groups formula slots by product kind.
type Family string

const (
	FamilyCap      Family = "cap"
	FamilyBox      Family = "box"
	FamilyFlashing Family = "flashing"
	FamilyAddon    Family = "addon"
)

// Model identifies one formula slot. The string value is used as the storage key for the
// model's formula and coefficients and must stay stable.
type Model string

const (
	ModelCapClassicSimple   Model = "cap_classic_simple"
	ModelCapClassicSlatted  Model = "cap_classic_slatted"
	ModelCapModernSimple    Model = "cap_modern_simple"
	ModelCapModernSlatted   Model = "cap_modern_slatted"
	ModelBoxSmooth          Model = "box_smooth"
	ModelBoxLamellar        Model = "box_lamellar"
	ModelFlashingFlat       Model = "flashing_flat"
	ModelFlashingProfiled   Model = "flashing_profiled"
	ModelAddonMesh          Model = "addon_mesh"
	ModelAddonHeatproof     Model = "addon_heatproof"
	ModelAddonBottomCap     Model = "addon_bottom_cap"
	ModelAddonMountFrame    Model = "addon_mount_frame"
	ModelAddonMountSkeleton Model = "addon_mount_skeleton"
)

var models = []Model{
	ModelCapClassicSimple,
	ModelCapClassicSlatted,
	ModelCapModernSimple,
	ModelCapModernSlatted,
	ModelBoxSmooth,
	ModelBoxLamellar,
	ModelFlashingFlat,
	ModelFlashingProfiled,
	ModelAddonMesh,
	ModelAddonHeatproof,
	ModelAddonBottomCap,
	ModelAddonMountFrame,
	ModelAddonMountSkeleton,
}

var modelTitles = map[Model]string{
	ModelCapClassicSimple:   "Колпак: Классика простой",
	ModelCapClassicSlatted:  "Колпак: Классика реечный",
	ModelCapModernSimple:    "Колпак: Модерн простой",
	ModelCapModernSlatted:   "Колпак: Модерн реечный",
	ModelBoxSmooth:          "Короб: Простой гладкий",
	ModelBoxLamellar:        "Короб: Ламельный",
	ModelFlashingFlat:       "Оклад: Для плоских покрытий",
	ModelFlashingProfiled:   "Оклад: Для профилированных покрытий",
	ModelAddonMesh:          "Доп. опция: Сетка от птиц",
	ModelAddonHeatproof:     "Доп. опция: Жаростойкая вставка",
	ModelAddonBottomCap:     "Доп. опция: Нижняя крышка",
	ModelAddonMountFrame:    "Доп. опция: Установочная рамка",
	ModelAddonMountSkeleton: "Доп. опция: Установочный каркас",
}

// Models returns every formula slot in display order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Valid reports whether m is a known formula slot.
func (m Model) Valid() bool {
	_, ok := modelTitles[m]
	return ok
}

// Family returns the product family of m, or "" for unknown models.
func (m Model) Family() Family {
	if !m.Valid() {
		return ""
	}
	prefix, _, _ := strings.Cut(string(m), "_")
	return Family(prefix)
}

// Title is the human-readable name shown in the formula editor.
func (m Model) Title() string { return modelTitles[m] }

// Built-in variable names supplied by the pricing functions.
const (
	VarX              = "X"
	VarY              = "Y"
	VarH              = "H"
	VarMetalPrice     = "metalPrice"
	VarMeshPrice      = "meshPrice"
	VarStainlessPrice = "stainlessPrice"
	VarZincPrice065   = "zincPrice065"
)

var builtinVariables = map[string]struct{}{
	VarX:              {},
	VarY:              {},
	VarH:              {},
	VarMetalPrice:     {},
	VarMeshPrice:      {},
	VarStainlessPrice: {},
	VarZincPrice065:   {},
}

var coefficientName = regexp.MustCompile(`^c[0-9]+$`)

// IsCoefficientName reports whether name follows the coefficient naming scheme (c1, c2, …).
func IsCoefficientName(name string) bool {
	return coefficientName.MatchString(name)
}

// IsReserved reports whether name is supplied by the pricing functions themselves and so
// cannot be registered as a custom variable.
func IsReserved(name string) bool {
	if _, ok := builtinVariables[name]; ok {
		return true
	}
	return IsCoefficientName(name)
}

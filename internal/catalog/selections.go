package catalog

import "strings"

// Cap is the chimney cap chosen by the customer.
type Cap string

const (
	CapClassicSimple  Cap = "classic_simple"
	CapClassicSlatted Cap = "classic_slatted"
	CapModernSimple   Cap = "modern_simple"
	CapModernSlatted  Cap = "modern_slatted"
	// CapCustom is made to the customer's sketch and priced individually.
	CapCustom Cap = "custom"
)

// Box is the decorative pipe box.
type Box string

const (
	BoxNone     Box = "none"
	BoxSmooth   Box = "smooth"
	BoxLamellar Box = "lamellar"
)

// Flashing is the roof flashing around the pipe.
type Flashing string

const (
	FlashingNone     Flashing = "none"
	FlashingFlat     Flashing = "flat"
	FlashingProfiled Flashing = "profiled"
)

// Addon is an optional extra.
type Addon string

const (
	AddonMesh           Addon = "mesh"
	AddonHeatproof      Addon = "heatproof"
	AddonBottomCap      Addon = "bottom_cap"
	AddonGasPassthrough Addon = "gas_passthrough"
	AddonMountFrame     Addon = "mount_frame"
	AddonMountSkeleton  Addon = "mount_skeleton"
)

// Fixed prices of the gas boiler passthrough, which has no formula.
const (
	GasPassthroughClassicPrice = 2500
	GasPassthroughModernPrice  = 1800
)

var capNames = map[Cap]string{
	CapClassicSimple:  "Классика простой",
	CapClassicSlatted: "Классика реечный",
	CapModernSimple:   "Модерн простой",
	CapModernSlatted:  "Модерн реечный",
	CapCustom:         "По эскизу",
}

var boxNames = map[Box]string{
	BoxNone:     "Без короба",
	BoxSmooth:   "Простой гладкий",
	BoxLamellar: "Ламельный",
}

var flashingNames = map[Flashing]string{
	FlashingNone:     "Без оклада",
	FlashingFlat:     "Для плоских покрытий",
	FlashingProfiled: "Для профилированных покрытий",
}

var addonNames = map[Addon]string{
	AddonMesh:           "Сетка от птиц",
	AddonHeatproof:      "Жаростойкая вставка",
	AddonBottomCap:      "Нижняя крышка",
	AddonGasPassthrough: "Проходка газового котла",
	AddonMountFrame:     "Установочная рамка",
	AddonMountSkeleton:  "Установочный каркас",
}

var addons = []Addon{
	AddonMesh,
	AddonHeatproof,
	AddonBottomCap,
	AddonGasPassthrough,
	AddonMountFrame,
	AddonMountSkeleton,
}

// Addons returns every add-on in catalogue order.
func Addons() []Addon {
	out := make([]Addon, len(addons))
	copy(out, addons)
	return out
}

// Valid reports whether c is in the catalogue.
func (c Cap) Valid() bool {
	_, ok := capNames[c]
	return ok
}

// Name returns the display name of c, or "" when it is unknown.
func (c Cap) Name() string { return capNames[c] }

// Classic reports whether c belongs to the classic collection.
func (c Cap) Classic() bool { return strings.HasPrefix(string(c), "classic") }

// Model returns the formula slot for c. The custom cap has none.
func (c Cap) Model() (Model, bool) {
	if c == CapCustom || !c.Valid() {
		return "", false
	}
	return Model("cap_" + string(c)), true
}

// Valid reports whether b is in the catalogue. BoxNone is valid.
func (b Box) Valid() bool {
	_, ok := boxNames[b]
	return ok
}

// Name returns the display name of b.
func (b Box) Name() string { return boxNames[b] }

// Model returns the formula slot for b. BoxNone has none.
func (b Box) Model() (Model, bool) {
	if b == BoxNone || !b.Valid() {
		return "", false
	}
	return Model("box_" + string(b)), true
}

// Valid reports whether f is in the catalogue. FlashingNone is valid.
func (f Flashing) Valid() bool {
	_, ok := flashingNames[f]
	return ok
}

// Name returns the display name of f.
func (f Flashing) Name() string { return flashingNames[f] }

// Model returns the formula slot for f. FlashingNone has none.
func (f Flashing) Model() (Model, bool) {
	if f == FlashingNone || !f.Valid() {
		return "", false
	}
	return Model("flashing_" + string(f)), true
}

// Valid reports whether a is in the catalogue.
func (a Addon) Valid() bool {
	_, ok := addonNames[a]
	return ok
}

// Name returns the display name of a.
func (a Addon) Name() string { return addonNames[a] }

// Model returns the formula slot for a. The gas passthrough is fixed-price and has none.
func (a Addon) Model() (Model, bool) {
	if a == AddonGasPassthrough || !a.Valid() {
		return "", false
	}
	return Model("addon_" + string(a)), true
}

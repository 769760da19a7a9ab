// Package quote assembles priced line items for a chosen product set and keeps a log of
// issued quotes.
package quote

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Simplici0/pipe.works/internal/catalog"
	"github.com/Simplici0/pipe.works/internal/pricing"
)

// ErrInvalidSelection is returned when a selection names an unknown product.
var ErrInvalidSelection = errors.New("quote: invalid selection")

// Line keys. Add-on lines use AddonKey.
const (
	KeyCap      = "cap"
	KeyBox      = "box"
	KeyFlashing = "flashing"
)

// AddonKey returns the line key of an add-on.
func AddonKey(a catalog.Addon) string { return "addon:" + string(a) }

const customCapLine = "Колпак: по эскизу (индивидуально)"

// Pricer prices individual products. *pricing.Engine implements it.
type Pricer interface {
	CapPrice(ctx context.Context, c catalog.Cap, d pricing.Dimensions, p pricing.MaterialPrices) float64
	BoxPrice(ctx context.Context, b catalog.Box, d pricing.Dimensions, p pricing.MaterialPrices) float64
	FlashingPrice(ctx context.Context, f catalog.Flashing, d pricing.Dimensions, p pricing.MaterialPrices) float64
	AddonPrice(ctx context.Context, a catalog.Addon, c catalog.Cap, d pricing.Dimensions, p pricing.MaterialPrices) float64
}

// Selection is everything the customer picked. An empty Box or Flashing means none.
type Selection struct {
	Cap           catalog.Cap            `json:"cap"`
	Box           catalog.Box            `json:"box"`
	Flashing      catalog.Flashing       `json:"flashing"`
	Addons        []catalog.Addon        `json:"addons"`
	Dimensions    pricing.Dimensions     `json:"dimensions"`
	Prices        pricing.MaterialPrices `json:"prices"`
	Discount      float64                `json:"discount"`
	ItemDiscounts map[string]float64     `json:"itemDiscounts,omitempty"`
}

// Line is one priced product. Discount is a percentage; Net is Price after it.
type Line struct {
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
	Net      float64 `json:"net"`
}

// Quote is an assembled price list.
type Quote struct {
	Lines          []Line  `json:"lines"`
	Subtotal       float64 `json:"subtotal"`
	Discount       float64 `json:"discount"`
	DiscountAmount float64 `json:"discountAmount"`
	Total          float64 `json:"total"`
}

// ProductNames returns the line names in order.
func (q Quote) ProductNames() []string {
	names := make([]string, len(q.Lines))
	for i, l := range q.Lines {
		names[i] = l.Name
	}
	return names
}

// Assemble prices sel. The cap line is always present; a custom cap is listed at zero
// because it is priced by hand. Box and flashing lines are omitted when not chosen, and
// add-ons appear in selection order with repeats ignored. Discounts are clamped to 0..100.
func Assemble(ctx context.Context, p Pricer, sel Selection) (Quote, error) {
	if sel.Box == "" {
		sel.Box = catalog.BoxNone
	}
	if sel.Flashing == "" {
		sel.Flashing = catalog.FlashingNone
	}
	if !sel.Cap.Valid() {
		return Quote{}, fmt.Errorf("%w: cap %q", ErrInvalidSelection, sel.Cap)
	}
	if !sel.Box.Valid() {
		return Quote{}, fmt.Errorf("%w: box %q", ErrInvalidSelection, sel.Box)
	}
	if !sel.Flashing.Valid() {
		return Quote{}, fmt.Errorf("%w: flashing %q", ErrInvalidSelection, sel.Flashing)
	}

	d, prices := sel.Dimensions, sel.Prices
	var q Quote

	if sel.Cap == catalog.CapCustom {
		q.add(sel, KeyCap, customCapLine, 0)
	} else {
		q.add(sel, KeyCap, "Колпак: "+sel.Cap.Name(), p.CapPrice(ctx, sel.Cap, d, prices))
	}
	if sel.Box != catalog.BoxNone {
		q.add(sel, KeyBox, "Короб: "+sel.Box.Name(), p.BoxPrice(ctx, sel.Box, d, prices))
	}
	if sel.Flashing != catalog.FlashingNone {
		q.add(sel, KeyFlashing, "Оклад: "+sel.Flashing.Name(), p.FlashingPrice(ctx, sel.Flashing, d, prices))
	}

	seen := make(map[catalog.Addon]bool, len(sel.Addons))
	for _, a := range sel.Addons {
		if !a.Valid() || seen[a] {
			continue
		}
		seen[a] = true
		q.add(sel, AddonKey(a), a.Name(), p.AddonPrice(ctx, a, sel.Cap, d, prices))
	}

	for _, l := range q.Lines {
		q.Subtotal += l.Net
	}
	q.Discount = clampPercent(sel.Discount)
	q.Total = q.Subtotal * (1 - q.Discount/100)
	q.DiscountAmount = q.Subtotal - q.Total
	return q, nil
}

func (q *Quote) add(sel Selection, key, name string, price float64) {
	discount := clampPercent(sel.ItemDiscounts[key])
	q.Lines = append(q.Lines, Line{
		Key:      key,
		Name:     name,
		Price:    price,
		Discount: discount,
		Net:      price * (1 - discount/100),
	})
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

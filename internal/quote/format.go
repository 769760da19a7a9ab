package quote

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var rubles = message.NewPrinter(language.Russian)

// FormatPrice rounds n to whole roubles, half up, and formats it with Russian digit
// grouping, e.g. "4 118 ₽". The value stays a float so prices beyond the int64 range
// keep their magnitude.
func FormatPrice(n float64) string {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		n = 0
	}
	return rubles.Sprintf("%.0f", math.Floor(n+0.5)) + " ₽"
}

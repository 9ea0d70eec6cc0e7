package choropleth

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatTick renders a legend axis tick as a whole percentage.
func FormatTick(v float64) string {
	return fmt.Sprintf("%d%%", int64(math.Round(v)))
}

// FormatValue renders a statistic with at most one fractional digit and
// locale digit grouping.
func FormatValue(v float64) string {
	return printer.Sprint(number.Decimal(v, number.MaxFractionDigits(1)))
}

// Tooltip is the hover text for a region: "<name>, <group>: <value>%".
func Tooltip(r Region) string {
	if !r.HasValue {
		return r.RegionKey + ": no data"
	}
	label := r.RegionKey
	if r.Stat != nil && r.Stat.DisplayName != "" {
		label = r.Stat.DisplayName
		if r.Stat.GroupName != "" {
			label += ", " + r.Stat.GroupName
		}
	}
	return label + ": " + FormatValue(r.Value) + "%"
}

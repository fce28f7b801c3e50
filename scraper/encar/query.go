package encar

import (
	"fmt"
	"strings"
)

// Filters describes one feed query. Prices are in compact 만원 units, matching
// what the endpoint's query grammar expects. Zero values mean "unbounded".
type Filters struct {
	Manufacturer   string
	ModelGroup     string
	YearMin        int // model year, e.g. 2021
	YearMax        int
	PriceMinManwon int
	PriceMaxManwon int
	MileageMaxKm   int
}

// BuildQuery renders the filters into the endpoint's nested query grammar,
// e.g.
//
//	(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.벤츠._.ModelGroup.GLE-클래스.))_.Year.range(202100..)._.Price.range(..9000).)
//
// Range filters sit outside the CarType clause; the Year field is encoded as
// YYYYMM, so a model-year bound expands to its first/last month.
func BuildQuery(f Filters) string {
	base := fmt.Sprintf("(And.Hidden.N._.(C.CarType.N._.(C.Manufacturer.%s._.ModelGroup.%s.))",
		f.Manufacturer, f.ModelGroup)

	var ranges []string

	if f.YearMin > 0 || f.YearMax > 0 {
		lo, hi := "", ""
		if f.YearMin > 0 {
			lo = fmt.Sprintf("%d00", f.YearMin)
		}
		if f.YearMax > 0 {
			hi = fmt.Sprintf("%d99", f.YearMax)
		}
		ranges = append(ranges, fmt.Sprintf("Year.range(%s..%s)", lo, hi))
	}

	if f.PriceMinManwon > 0 || f.PriceMaxManwon > 0 {
		lo, hi := "", ""
		if f.PriceMinManwon > 0 {
			lo = fmt.Sprintf("%d", f.PriceMinManwon)
		}
		if f.PriceMaxManwon > 0 {
			hi = fmt.Sprintf("%d", f.PriceMaxManwon)
		}
		ranges = append(ranges, fmt.Sprintf("Price.range(%s..%s)", lo, hi))
	}

	if f.MileageMaxKm > 0 {
		ranges = append(ranges, fmt.Sprintf("Mileage.range(..%d)", f.MileageMaxKm))
	}

	if len(ranges) == 0 {
		return base + ")"
	}
	return base + "_." + strings.Join(ranges, "._.") + ".)"
}

// sortParam renders the sr paging parameter: sort by modification date,
// newest first, with the given window.
func sortParam(offset, limit int) string {
	return fmt.Sprintf("|ModifiedDate|%d|%d", offset, limit)
}

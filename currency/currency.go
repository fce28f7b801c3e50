// Package currency converts between the Korean won and Encar's compact 만원
// notation (units of 10,000 won). All conversions are pure and
// integer-preserving for amounts expressible with up to two decimal digits in
// compact notation.
package currency

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedAmount is returned when free text cannot be parsed as a
// monetary amount after stripping known separators.
var ErrMalformedAmount = errors.New("malformed amount")

// WonPerManwon is the compact-notation unit: 1만원 = 10,000 won.
const WonPerManwon = 10000

// ToWon converts a compact-notation amount (만원) to won. Amounts with up to
// two decimal digits round-trip exactly through ToManwon.
func ToWon(manwon float64) int64 {
	return int64(math.Round(manwon * WonPerManwon))
}

// ToManwon converts won to the compact 만원 notation.
func ToManwon(won int64) float64 {
	return float64(won) / WonPerManwon
}

// ParseAmount parses a free-text monetary amount and returns it in won.
// Accepted forms, with or without thousands separators and with optional
// whitespace before the unit marker:
//
//	"8,000만원"    -> 80,000,000
//	"180.5만원"    -> 1,805,000
//	"1,800,000원"  -> 1,800,000
//	"8000"         -> 80,000,000 (bare numbers are compact units, as the feed emits them)
func ParseAmount(s string) (int64, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return 0, fmt.Errorf("%w: empty input", ErrMalformedAmount)
	}

	switch {
	case strings.HasSuffix(text, "만원"):
		return parseManwon(strings.TrimSuffix(text, "만원"))
	case strings.HasSuffix(text, "원"):
		return parseWon(strings.TrimSuffix(text, "원"))
	default:
		return parseManwon(text)
	}
}

func parseManwon(num string) (int64, error) {
	num = strings.ReplaceAll(strings.TrimSpace(num), ",", "")
	if num == "" {
		return 0, fmt.Errorf("%w: no digits before unit", ErrMalformedAmount)
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, num)
	}
	return ToWon(v), nil
}

func parseWon(num string) (int64, error) {
	num = strings.ReplaceAll(strings.TrimSpace(num), ",", "")
	if num == "" {
		return 0, fmt.Errorf("%w: no digits before unit", ErrMalformedAmount)
	}
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAmount, num)
	}
	return v, nil
}

// FormatManwon renders a won amount in compact notation for alerts and logs,
// e.g. 80000000 -> "8,000만원", 1805000 -> "180.5만원".
func FormatManwon(won int64) string {
	manwon := ToManwon(won)
	whole := int64(manwon)
	frac := manwon - float64(whole)

	if frac < 1e-9 {
		return groupThousands(whole) + "만원"
	}
	// Up to two decimals, trailing zeros trimmed.
	dec := strconv.FormatFloat(frac, 'f', 2, 64)
	dec = strings.TrimRight(strings.TrimPrefix(dec, "0."), "0")
	return groupThousands(whole) + "." + dec + "만원"
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

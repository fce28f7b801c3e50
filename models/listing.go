package models

import "time"

// FieldSource records where an enriched field came from.
type FieldSource string

const (
	SourceFeed     FieldSource = "feed"
	SourcePage     FieldSource = "page"
	SourceOverride FieldSource = "override"
)

// LeaseState tracks the classification of a listing's financing structure.
// Transitions only move forward: Unknown may become No/Tentative/Confirmed,
// Tentative may become Confirmed, and Confirmed is only ever reversed by a
// manual override.
type LeaseState int

const (
	LeaseUnknown LeaseState = iota
	LeaseNo
	LeaseTentative
	LeaseConfirmed
)

func (s LeaseState) String() string {
	switch s {
	case LeaseNo:
		return "purchase"
	case LeaseTentative:
		return "lease (tentative)"
	case LeaseConfirmed:
		return "lease (confirmed)"
	default:
		return "unknown"
	}
}

// Freshness bands derived from view counts on the detail page.
const (
	FreshnessVeryFresh = "very_fresh"
	FreshnessFresh     = "fresh"
	FreshnessNormal    = "normal"
)

// LeaseTerms holds the three components of a lease contract, all amounts in won.
type LeaseTerms struct {
	DepositWon int64
	MonthlyWon int64
	TermMonths int
}

// Complete reports whether all three term fields are present.
func (t *LeaseTerms) Complete() bool {
	return t != nil && t.DepositWon > 0 && t.MonthlyWon > 0 && t.TermMonths > 0
}

// TotalWon returns deposit + monthly * term. Only meaningful when Complete.
func (t *LeaseTerms) TotalWon() int64 {
	return t.DepositWon + t.MonthlyWon*int64(t.TermMonths)
}

// Listing is the central entity: one vehicle advert keyed by its external ID.
// Amounts are stored in won; the feed's compact 만원 notation is converted at
// the retrieval boundary.
type Listing struct {
	ID           string
	Title        string
	Manufacturer string
	Model        string
	Badge        string
	Year         int // model year, e.g. 2022
	MileageKm    int
	PriceWon     int64  // listed (headline) price
	TrueCostWon  int64  // all-in comparable cost; equals PriceWon for purchases
	SaleType     string // raw sale-type token from the feed

	LeaseState    LeaseState
	LeaseTerms    *LeaseTerms
	LowConfidence bool // tentative lease with no terms found on the page
	Anomalous     bool // true cost below listed price on a confirmed lease

	// Populated only by the fallback extraction path; nil means "not seen",
	// never "zero".
	Views            *int
	RegistrationDate *time.Time
	Freshness        string

	FuelType     string
	Transmission string
	ModifiedDate string
	DetailURL    string

	// Sources maps enriched field names to their provenance.
	Sources map[string]FieldSource

	FoundAt time.Time
}

// SetSource tags a field with its provenance, allocating the map lazily.
func (l *Listing) SetSource(field string, src FieldSource) {
	if l.Sources == nil {
		l.Sources = make(map[string]FieldSource)
	}
	l.Sources[field] = src
}

// IsLease reports whether the listing is currently classified as a lease,
// tentatively or confirmed.
func (l *Listing) IsLease() bool {
	return l.LeaseState == LeaseTentative || l.LeaseState == LeaseConfirmed
}

// Enrichment is the partial record produced by the detail extraction fallback.
// Every field is optional; absent fields stay nil rather than defaulting.
type Enrichment struct {
	Views            *int
	RegistrationDate *time.Time
	DepositWon       *int64
	MonthlyWon       *int64
	TermMonths       *int
}

// HasLeaseSignal reports whether any lease term field was found on the page.
func (e *Enrichment) HasLeaseSignal() bool {
	return e != nil && (e.DepositWon != nil || e.MonthlyWon != nil || e.TermMonths != nil)
}

// CompleteTerms returns the lease terms if all three were extracted, else nil.
func (e *Enrichment) CompleteTerms() *LeaseTerms {
	if e == nil || e.DepositWon == nil || e.MonthlyWon == nil || e.TermMonths == nil {
		return nil
	}
	return &LeaseTerms{
		DepositWon: *e.DepositWon,
		MonthlyWon: *e.MonthlyWon,
		TermMonths: *e.TermMonths,
	}
}

// CycleSummary aggregates per-cycle outcomes so systemic degradation is
// visible without per-listing noise.
type CycleSummary struct {
	StartedAt time.Time
	Duration  time.Duration

	Fetched            int
	Enriched           int
	ExtractionFailures int
	IncompleteTerms    int
	TentativeLeases    int
	ConfirmedLeases    int
	Anomalous          int
	New                int
}

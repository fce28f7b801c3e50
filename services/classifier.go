package services

import (
	"errors"
	"fmt"

	"github.com/lym-afla/Encar/config"
	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

// ErrIncompleteLeaseTerms means the page exposed some but not all of the
// three lease term fields. Non-fatal: cost falls back to the listed price.
var ErrIncompleteLeaseTerms = errors.New("incomplete lease terms")

// Decision is a rule's verdict on one listing.
type Decision int

const (
	Defer Decision = iota
	DecideLease
	DecidePurchase
)

// Rule is one layer of the classification chain. Rules are pure: they read
// the listing and return a verdict, they never mutate it.
type Rule struct {
	Name  string
	Apply func(*models.Listing) Decision
}

// Classifier decides lease-vs-purchase per listing via an ordered rule chain
// (first decisive rule wins) and computes the true comparable cost.
type Classifier struct {
	rules     []Rule
	overrides map[string]bool // id -> is_lease, manual override table
	logger    *utils.Logger
}

// NewClassifier builds the rule chain from configuration. Order matters:
// manual override, then the feed's sale-type token, then the year/price
// heuristic band.
func NewClassifier(cfg config.LeaseConfig, logger *utils.Logger) *Classifier {
	overrides := make(map[string]bool)
	for _, id := range cfg.OverrideLease {
		overrides[id] = true
	}
	for _, id := range cfg.OverridePurchase {
		overrides[id] = false
	}

	priceMin := currency.ToWon(float64(cfg.PriceMinManwon))
	priceMax := currency.ToWon(float64(cfg.PriceMaxManwon))

	c := &Classifier{overrides: overrides, logger: logger}
	c.rules = []Rule{
		overrideRule(overrides),
		saleTypeRule(cfg.SaleTypeTokens),
		heuristicRule(cfg.RecentYear, priceMin, priceMax),
	}
	return c
}

func overrideRule(overrides map[string]bool) Rule {
	return Rule{
		Name: "manual-override",
		Apply: func(l *models.Listing) Decision {
			isLease, ok := overrides[l.ID]
			if !ok {
				return Defer
			}
			if isLease {
				return DecideLease
			}
			return DecidePurchase
		},
	}
}

func saleTypeRule(tokens []string) Rule {
	return Rule{
		Name: "sale-type-token",
		Apply: func(l *models.Listing) Decision {
			for _, tok := range tokens {
				if tok != "" && l.SaleType == tok {
					return DecideLease
				}
			}
			return Defer
		},
	}
}

func heuristicRule(recentYear int, priceMinWon, priceMaxWon int64) Rule {
	return Rule{
		Name: "recent-year-price-band",
		Apply: func(l *models.Listing) Decision {
			if l.Year >= recentYear && l.PriceWon >= priceMinWon && l.PriceWon <= priceMaxWon {
				return DecideLease
			}
			return Defer
		},
	}
}

// Classify runs the rule chain over a freshly retrieved listing. An explicit
// override yields a confirmed verdict; the feed token and the heuristic band
// only yield a tentative one, to be corroborated by extracted terms.
func (c *Classifier) Classify(l *models.Listing) {
	for _, rule := range c.rules {
		switch rule.Apply(l) {
		case DecideLease:
			if rule.Name == "manual-override" {
				l.LeaseState = models.LeaseConfirmed
				l.SetSource("is_lease", models.SourceOverride)
			} else {
				l.LeaseState = models.LeaseTentative
				l.SetSource("is_lease", models.SourceFeed)
			}
			c.logger.Debug("[classify] %s: lease by rule %q", l.ID, rule.Name)
			c.computeCost(l)
			return
		case DecidePurchase:
			l.LeaseState = models.LeaseNo
			if rule.Name == "manual-override" {
				l.SetSource("is_lease", models.SourceOverride)
			}
			c.computeCost(l)
			return
		}
	}

	// No rule was decisive: treat as a plain purchase.
	l.LeaseState = models.LeaseNo
	c.computeCost(l)
}

// OverriddenPurchase reports whether the listing is pinned to "not a lease"
// by the manual override table.
func (c *Classifier) OverriddenPurchase(id string) bool {
	isLease, ok := c.overrides[id]
	return ok && !isLease
}

// ApplyEnrichment merges the fallback extraction result into the listing and
// finalizes classification and cost. A nil enrichment (extraction failed or
// was skipped) leaves existing fields untouched apart from confidence
// flagging. Returns ErrIncompleteLeaseTerms when the page exposed only some
// term fields; the listing still gets a safe cost.
func (c *Classifier) ApplyEnrichment(l *models.Listing, e *models.Enrichment) error {
	defer c.computeCost(l)

	if e == nil {
		if l.LeaseState == models.LeaseTentative {
			l.LowConfidence = true
		}
		return nil
	}

	if e.Views != nil {
		l.Views = e.Views
		l.SetSource("views", models.SourcePage)
	}
	if e.RegistrationDate != nil {
		l.RegistrationDate = e.RegistrationDate
		l.SetSource("registration_date", models.SourcePage)
	}

	if terms := e.CompleteTerms(); terms != nil {
		// A manual "purchase" override beats browser-confirmed terms.
		if c.OverriddenPurchase(l.ID) {
			c.logger.Debug("[classify] %s: lease terms found but override pins purchase", l.ID)
			return nil
		}
		l.LeaseTerms = terms
		l.LeaseState = models.LeaseConfirmed
		l.LowConfidence = false
		l.SetSource("lease_terms", models.SourcePage)
		return nil
	}

	if e.HasLeaseSignal() {
		if l.LeaseState == models.LeaseTentative {
			l.LowConfidence = true
		}
		return fmt.Errorf("%w: listing %s", ErrIncompleteLeaseTerms, l.ID)
	}

	// No lease content on the page: a tentative classification is retained,
	// not retracted, but flagged low-confidence.
	if l.LeaseState == models.LeaseTentative {
		l.LowConfidence = true
	}
	return nil
}

// computeCost derives the true comparable cost. For a confirmed lease with
// complete terms it is deposit + monthly * term; everything else falls back
// to the listed price. A confirmed lease whose all-in cost is below the
// headline price is flagged anomalous instead of trusted silently.
func (c *Classifier) computeCost(l *models.Listing) {
	if l.LeaseState == models.LeaseConfirmed && l.LeaseTerms.Complete() {
		l.TrueCostWon = l.LeaseTerms.TotalWon()
		if l.TrueCostWon < l.PriceWon {
			l.Anomalous = true
			c.logger.Warn("[classify] %s: lease total %s below listed %s — flagged anomalous",
				l.ID, currency.FormatManwon(l.TrueCostWon), currency.FormatManwon(l.PriceWon))
		}
		return
	}
	l.TrueCostWon = l.PriceWon
}

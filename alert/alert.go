// Package alert delivers new-listing notifications. Delivery is
// fire-and-forget from the cycle's perspective: publishers log their own
// failures and never abort monitoring.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

// Publisher delivers a batch of newly observed listings.
type Publisher interface {
	PublishNew(ctx context.Context, listings []*models.Listing) error
}

// ConsolePublisher writes alerts through the leveled logger.
type ConsolePublisher struct {
	Logger *utils.Logger
}

// PublishNew logs one line per new listing.
func (p *ConsolePublisher) PublishNew(_ context.Context, listings []*models.Listing) error {
	p.Logger.Info("[alert] %d new listing(s)", len(listings))
	for _, l := range listings {
		p.Logger.Info("[alert] %s", summaryLine(l))
	}
	return nil
}

// Fanout delivers to every configured publisher, collecting failures without
// short-circuiting.
type Fanout struct {
	Publishers []Publisher
	Logger     *utils.Logger
}

// PublishNew forwards the batch to each publisher; a failing one is logged
// and the rest still run.
func (f *Fanout) PublishNew(ctx context.Context, listings []*models.Listing) error {
	var failed int
	for _, p := range f.Publishers {
		if err := p.PublishNew(ctx, listings); err != nil {
			failed++
			f.Logger.Warn("[alert] Publisher failed: %v", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d publishers failed", failed, len(f.Publishers))
	}
	return nil
}

// summaryLine renders a compact one-line description of a listing.
func summaryLine(l *models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s | %d | %dkm | %s", l.Title, l.Year, l.MileageKm,
		currency.FormatManwon(l.PriceWon))

	if l.IsLease() {
		fmt.Fprintf(&b, " | %s, true cost %s", l.LeaseState, currency.FormatManwon(l.TrueCostWon))
	}
	if l.Views != nil {
		fmt.Fprintf(&b, " | %d views", *l.Views)
	}
	if l.Freshness == models.FreshnessVeryFresh {
		b.WriteString(" | FRESH")
	}
	fmt.Fprintf(&b, " | %s", l.DetailURL)
	return b.String()
}

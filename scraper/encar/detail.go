package encar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

// ErrExtractionFailed means one listing's rendered page was unreachable or the
// browser engine failed. It is recovered locally: the listing proceeds with
// whatever fields it already has.
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor drives rendered detail pages to obtain the fields the bulk feed
// omits: view count, registration date, and lease terms embedded in page text.
type Extractor struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	timeout  time.Duration
	logger   *utils.Logger
}

// NewExtractor creates an extractor with a shared browser allocator. Each
// Enrich call gets its own scoped tab so a wedged page never leaks into the
// next listing.
func NewExtractor(parent context.Context, timeout time.Duration, logger *utils.Logger) *Extractor {
	allocCtx, cancel := newAllocator(parent)
	return &Extractor{
		allocCtx: allocCtx,
		cancel:   cancel,
		timeout:  timeout,
		logger:   logger,
	}
}

// Close releases the browser allocator.
func (e *Extractor) Close() {
	e.cancel()
}

// Enrich renders the listing's detail page and returns the partial enrichment
// parsed from it. "Field not found" is not an error; only an unreachable page
// or engine failure surfaces ErrExtractionFailed.
func (e *Extractor) Enrich(ctx context.Context, listing *models.Listing) (*models.Enrichment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if listing.DetailURL == "" {
		return nil, fmt.Errorf("%w: listing %s has no detail URL", ErrExtractionFailed, listing.ID)
	}

	tabCtx, cancelTab := chromedp.NewContext(e.allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, e.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(listing.DetailURL),
		chromedp.Sleep(3*time.Second),
		// The views/registration affordances live behind a detail sheet;
		// opening it is best-effort since older layouts inline the values.
		chromedp.Evaluate(`
			(function() {
				var btn = document.querySelector('[class*="btn_detail"]');
				if (btn) btn.click();
				return true;
			})()
		`, nil),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", ErrExtractionFailed, listing.ID, err)
	}

	enrichment := ParseDetailHTML(html)
	e.logger.Debug("[detail] Listing %s: views=%v reg=%v lease-signal=%v",
		listing.ID, enrichment.Views != nil, enrichment.RegistrationDate != nil,
		enrichment.HasLeaseSignal())

	return enrichment, nil
}

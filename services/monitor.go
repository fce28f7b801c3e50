package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lym-afla/Encar/config"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/scraper/encar"
	"github.com/lym-afla/Encar/utils"
)

// ErrCycleInProgress is returned when a cycle is requested while the previous
// one has not completed. The new cycle is skipped, never queued.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// Feed retrieves the full current batch for the configured query.
type Feed interface {
	FetchAll(ctx context.Context, f encar.Filters) ([]*models.Listing, error)
}

// Enricher runs the fallback extraction path for one listing.
type Enricher interface {
	Enrich(ctx context.Context, l *models.Listing) (*models.Enrichment, error)
}

// ListingStore is the persistent-store surface the orchestrator depends on.
type ListingStore interface {
	ObservationStore
	UpsertListing(ctx context.Context, l *models.Listing) error
}

// Publisher delivers new-listing alerts. Delivery is fire-and-forget: a
// publisher failure never fails the cycle.
type Publisher interface {
	PublishNew(ctx context.Context, listings []*models.Listing) error
}

// SnapshotWriter optionally records the current batch (CSV export collaborator).
type SnapshotWriter interface {
	WriteSnapshot(listings []*models.Listing) error
}

// Monitor owns the polling loop: bulk retrieval, enrichment selection,
// classification, change detection, alerting, and persistence.
type Monitor struct {
	cfg        *config.Config
	feed       Feed
	enricher   Enricher
	classifier *Classifier
	detector   *ChangeDetector
	store      ListingStore
	publisher  Publisher
	snapshots  SnapshotWriter // nil when disabled
	deals      *DealService
	logger     *utils.Logger

	cycleMu sync.Mutex // held for the duration of one cycle
}

// NewMonitor wires the orchestrator. snapshots may be nil.
func NewMonitor(
	cfg *config.Config,
	feed Feed,
	enricher Enricher,
	classifier *Classifier,
	detector *ChangeDetector,
	store ListingStore,
	publisher Publisher,
	snapshots SnapshotWriter,
	logger *utils.Logger,
) *Monitor {
	return &Monitor{
		cfg:        cfg,
		feed:       feed,
		enricher:   enricher,
		classifier: classifier,
		detector:   detector,
		store:      store,
		publisher:  publisher,
		snapshots:  snapshots,
		deals:      NewDealService(logger),
		logger:     logger,
	}
}

// Run drives cycles at the configured interval until the context is
// cancelled. Cycles never overlap; a tick that arrives while one is running
// is dropped.
func (m *Monitor) Run(ctx context.Context) {
	interval := time.Duration(m.cfg.Monitoring.IntervalMinutes) * time.Minute

	m.runCycleLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("[monitor] Shutdown requested — stopping after current cycle")
			return
		case <-ticker.C:
			m.runCycleLogged(ctx)
		}
	}
}

func (m *Monitor) runCycleLogged(ctx context.Context) {
	summary, err := m.RunCycle(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		m.logger.Warn("[monitor] Previous cycle still running — skipping this tick")
	case err != nil:
		m.logger.Error("[monitor] Cycle failed: %v", err)
	default:
		m.logSummary(summary)
	}
}

// RunCycle executes one polling cycle. A failure at the bulk-retrieval stage
// aborts before any state mutation, so no listing is falsely marked seen.
// Per-listing enrichment failures are isolated and only counted.
func (m *Monitor) RunCycle(ctx context.Context) (*models.CycleSummary, error) {
	if !m.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer m.cycleMu.Unlock()

	summary := &models.CycleSummary{StartedAt: time.Now()}
	defer func() { summary.Duration = time.Since(summary.StartedAt) }()

	listings, err := m.feed.FetchAll(ctx, m.filters())
	if err != nil {
		return nil, err
	}
	listings = FilterListings(listings, m.cfg.Search)
	summary.Fetched = len(listings)

	for _, l := range listings {
		m.classifier.Classify(l)
	}

	enrichments := m.enrichSelected(ctx, listings, summary)

	for _, l := range listings {
		if err := m.classifier.ApplyEnrichment(l, enrichments[l.ID]); err != nil {
			if errors.Is(err, ErrIncompleteLeaseTerms) {
				summary.IncompleteTerms++
				m.logger.Warn("[monitor] %v — cost falls back to listed price", err)
			}
		}
		m.applyFreshness(l)

		switch l.LeaseState {
		case models.LeaseTentative:
			summary.TentativeLeases++
		case models.LeaseConfirmed:
			summary.ConfirmedLeases++
		}
		if l.Anomalous {
			summary.Anomalous++
		}
	}

	ids := make([]string, len(listings))
	byID := make(map[string]*models.Listing, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
		byID[l.ID] = l
	}

	newIDs, err := m.detector.Diff(ctx, ids)
	if err != nil {
		return nil, err
	}
	summary.New = len(newIDs)

	if len(newIDs) > 0 {
		fresh := make([]*models.Listing, 0, len(newIDs))
		for _, id := range newIDs {
			fresh = append(fresh, byID[id])
		}
		if err := m.publisher.PublishNew(ctx, fresh); err != nil {
			m.logger.Warn("[monitor] Alert delivery failed (cycle continues): %v", err)
		}
	}

	for _, l := range listings {
		if err := m.store.UpsertListing(ctx, l); err != nil {
			m.logger.Warn("[monitor] Could not persist listing %s: %v", l.ID, err)
		}
	}

	if m.snapshots != nil {
		if err := m.snapshots.WriteSnapshot(listings); err != nil {
			m.logger.Warn("[monitor] Snapshot write failed: %v", err)
		}
	}

	if report := m.deals.Generate(listings); report.Total > 0 {
		m.deals.Log(report)
	}

	return summary, nil
}

// enrichSelected runs the fallback extraction for a bounded subset of the
// batch, prioritizing listings most likely to be new so the browser-engine
// budget goes where alerts might come from.
func (m *Monitor) enrichSelected(ctx context.Context, listings []*models.Listing, summary *models.CycleSummary) map[string]*models.Enrichment {
	limit := m.cfg.Monitoring.EnrichmentLimit
	if limit <= 0 || len(listings) == 0 {
		return nil
	}

	// Read-only peek at the previous observation state; the detector updates
	// it later. A read failure just degrades prioritization.
	var prevSet *utils.IDSet
	if previous, err := m.store.GetObservedIDs(ctx); err == nil {
		prevSet = utils.NewIDSetFrom(previous)
	} else {
		m.logger.Warn("[monitor] Could not read observation state for prioritization: %v", err)
		prevSet = utils.NewIDSet()
	}

	candidates := make([]*models.Listing, 0, limit)
	for _, l := range listings {
		if !prevSet.Contains(l.ID) {
			candidates = append(candidates, l)
			if len(candidates) == limit {
				break
			}
		}
	}
	for _, l := range listings {
		if len(candidates) == limit {
			break
		}
		if prevSet.Contains(l.ID) && l.LeaseState == models.LeaseTentative {
			candidates = append(candidates, l)
		}
	}

	if len(candidates) == 0 {
		return nil
	}

	pool := utils.NewWorkerPool(m.cfg.Monitoring.EnrichmentConcurrency, m.cfg.Monitoring.RateLimitMs)
	var mu sync.Mutex
	results := make(map[string]*models.Enrichment, len(candidates))

	for _, l := range candidates {
		if ctx.Err() != nil {
			// Shutdown: stop submitting, let in-flight extractions finish.
			break
		}
		l := l
		pool.Submit(func() {
			enrichment, err := m.enricher.Enrich(ctx, l)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.ExtractionFailures++
				m.logger.Warn("[monitor] Enrichment failed for %s: %v", l.ID, err)
				return
			}
			results[l.ID] = enrichment
			summary.Enriched++
		})
	}
	pool.Wait()

	return results
}

func (m *Monitor) applyFreshness(l *models.Listing) {
	if l.Views == nil {
		return
	}
	switch v := *l.Views; {
	case v <= m.cfg.Monitoring.VeryFreshMaxViews:
		l.Freshness = models.FreshnessVeryFresh
	case v <= m.cfg.Monitoring.FreshMaxViews:
		l.Freshness = models.FreshnessFresh
	default:
		l.Freshness = models.FreshnessNormal
	}
}

func (m *Monitor) filters() encar.Filters {
	s := m.cfg.Search
	return encar.Filters{
		Manufacturer:   s.Manufacturer,
		ModelGroup:     s.ModelGroup,
		YearMin:        s.YearMin,
		YearMax:        s.YearMax,
		PriceMinManwon: s.PriceMinManwon,
		PriceMaxManwon: s.PriceMaxManwon,
		MileageMaxKm:   s.MileageMaxKm,
	}
}

func (m *Monitor) logSummary(s *models.CycleSummary) {
	m.logger.Info("[monitor] Cycle done in %.1fs — fetched: %d | enriched: %d | new: %d",
		s.Duration.Seconds(), s.Fetched, s.Enriched, s.New)
	if s.ExtractionFailures > 0 || s.IncompleteTerms > 0 || s.Anomalous > 0 {
		m.logger.Warn("[monitor] Degradations — extraction failures: %d | incomplete terms: %d | anomalous: %d",
			s.ExtractionFailures, s.IncompleteTerms, s.Anomalous)
	}
	if s.TentativeLeases > 0 || s.ConfirmedLeases > 0 {
		m.logger.Info("[monitor] Leases — tentative: %d | confirmed: %d",
			s.TentativeLeases, s.ConfirmedLeases)
	}
}

package services

import (
	"sort"
	"time"

	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

// DealReport summarizes the value landscape of one batch.
type DealReport struct {
	Total          int
	Leases         int
	AverageCostWon int64
	MinCostWon     int64
	MaxCostWon     int64
	TopDeals       []*models.Listing // best value first, up to five
}

// DealService ranks listings by true comparable cost adjusted for age and
// mileage, so a cheap-looking lease does not outrank an honest purchase.
type DealService struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewDealService creates a DealService.
func NewDealService(logger *utils.Logger) *DealService {
	return &DealService{logger: logger, now: time.Now}
}

// Generate computes batch statistics and the top-value listings. Anomalous
// listings are excluded from ranking since their cost cannot be trusted.
func (s *DealService) Generate(listings []*models.Listing) *DealReport {
	report := &DealReport{}
	if len(listings) == 0 {
		return report
	}

	report.Total = len(listings)

	var ranked []*models.Listing
	var totalCost int64
	for _, l := range listings {
		if l.IsLease() {
			report.Leases++
		}
		if l.TrueCostWon <= 0 || l.Anomalous {
			continue
		}
		totalCost += l.TrueCostWon
		if report.MinCostWon == 0 || l.TrueCostWon < report.MinCostWon {
			report.MinCostWon = l.TrueCostWon
		}
		if l.TrueCostWon > report.MaxCostWon {
			report.MaxCostWon = l.TrueCostWon
		}
		ranked = append(ranked, l)
	}

	if len(ranked) == 0 {
		return report
	}
	report.AverageCostWon = totalCost / int64(len(ranked))

	year := s.now().Year()
	sort.Slice(ranked, func(i, j int) bool {
		return s.score(ranked[i], year) < s.score(ranked[j], year)
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	report.TopDeals = ranked

	return report
}

// score is the value heuristic: lower is better. Age and mileage inflate the
// effective cost so a newer, low-mileage vehicle at the same price wins.
func (s *DealService) score(l *models.Listing, currentYear int) float64 {
	age := currentYear - l.Year
	if age < 0 {
		age = 0
	}
	return float64(l.TrueCostWon) * (1.0 + 0.1*float64(age) + float64(l.MileageKm)/200000.0)
}

// Log writes the report through the leveled logger as part of the cycle
// summary output.
func (s *DealService) Log(r *DealReport) {
	s.logger.Info("[deals] Batch of %d (%d leases) — avg %s | min %s | max %s",
		r.Total, r.Leases,
		currency.FormatManwon(r.AverageCostWon),
		currency.FormatManwon(r.MinCostWon),
		currency.FormatManwon(r.MaxCostWon))

	for i, l := range r.TopDeals {
		s.logger.Info("[deals] #%d %s (%d, %dkm) — %s", i+1,
			truncate(l.Title, 40), l.Year, l.MileageKm, currency.FormatManwon(l.TrueCostWon))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package services

import (
	"testing"
	"time"

	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

func newTestDealService(year int) *DealService {
	s := NewDealService(utils.NewLogger(false))
	s.now = func() time.Time {
		return time.Date(year, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	return s
}

func TestGenerateStats(t *testing.T) {
	s := newTestDealService(2026)

	listings := []*models.Listing{
		{ID: "1", Year: 2022, MileageKm: 30000, TrueCostWon: manwon(4000)},
		{ID: "2", Year: 2021, MileageKm: 50000, TrueCostWon: manwon(6000), LeaseState: models.LeaseConfirmed},
		{ID: "3", Year: 2020, MileageKm: 90000, TrueCostWon: manwon(5000)},
	}

	r := s.Generate(listings)
	if r.Total != 3 || r.Leases != 1 {
		t.Errorf("total = %d leases = %d; want 3 and 1", r.Total, r.Leases)
	}
	if r.AverageCostWon != manwon(5000) {
		t.Errorf("avg = %d; want %d", r.AverageCostWon, manwon(5000))
	}
	if r.MinCostWon != manwon(4000) || r.MaxCostWon != manwon(6000) {
		t.Errorf("min = %d max = %d; want 4000/6000만원", r.MinCostWon, r.MaxCostWon)
	}
	if len(r.TopDeals) != 3 || r.TopDeals[0].ID != "1" {
		t.Errorf("top deals = %v; want the newest low-mileage listing first", ids(r.TopDeals))
	}
}

func TestGenerateExcludesAnomalous(t *testing.T) {
	s := newTestDealService(2026)

	listings := []*models.Listing{
		{ID: "good", Year: 2022, TrueCostWon: manwon(5000)},
		{ID: "bad", Year: 2022, TrueCostWon: manwon(100), Anomalous: true},
	}

	r := s.Generate(listings)
	if r.MinCostWon != manwon(5000) {
		t.Errorf("min = %d; anomalous cost leaked into stats", r.MinCostWon)
	}
	for _, l := range r.TopDeals {
		if l.ID == "bad" {
			t.Error("anomalous listing ranked as a deal")
		}
	}
}

func TestGenerateAgeAndMileagePenalty(t *testing.T) {
	s := newTestDealService(2026)

	// Same cost: the five-year-old high-mileage car must rank below the
	// newer one.
	listings := []*models.Listing{
		{ID: "old", Year: 2021, MileageKm: 120000, TrueCostWon: manwon(5000)},
		{ID: "new", Year: 2025, MileageKm: 10000, TrueCostWon: manwon(5000)},
	}

	r := s.Generate(listings)
	if len(r.TopDeals) != 2 || r.TopDeals[0].ID != "new" {
		t.Errorf("top deals = %v; want the newer car first", ids(r.TopDeals))
	}
}

func TestGenerateCapsTopDeals(t *testing.T) {
	s := newTestDealService(2026)

	var listings []*models.Listing
	for i := 0; i < 8; i++ {
		listings = append(listings, &models.Listing{
			ID: string(rune('a' + i)), Year: 2022, TrueCostWon: manwon(int64(3000 + i*100)),
		})
	}

	r := s.Generate(listings)
	if len(r.TopDeals) != 5 {
		t.Errorf("top deals = %d; want capped at 5", len(r.TopDeals))
	}
	if r.TopDeals[0].ID != "a" {
		t.Errorf("best deal = %s; want the cheapest", r.TopDeals[0].ID)
	}
}

func TestGenerateEmptyBatch(t *testing.T) {
	r := newTestDealService(2026).Generate(nil)
	if r.Total != 0 || len(r.TopDeals) != 0 {
		t.Errorf("report = %+v; want zero values for an empty batch", r)
	}
}

func ids(listings []*models.Listing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}

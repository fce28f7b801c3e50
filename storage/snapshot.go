package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
)

// CSVSnapshot writes the current batch to a CSV file, truncating the previous
// snapshot each cycle. It is safe for concurrent use.
type CSVSnapshot struct {
	mu   sync.Mutex
	path string
}

// NewCSVSnapshot prepares a snapshot writer at the given path. Intermediate
// directories are created up front so cycle-time writes cannot fail on them.
func NewCSVSnapshot(path string) (*CSVSnapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("snapshot: create output dir: %w", err)
	}
	return &CSVSnapshot{path: path}, nil
}

// WriteSnapshot replaces the snapshot file with the given batch.
func (c *CSVSnapshot) WriteSnapshot(listings []*models.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("snapshot: create file %q: %w", c.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"id", "title", "year", "mileage_km", "listed_price", "true_cost",
		"lease_state", "low_confidence", "anomalous", "views",
		"registration_date", "freshness", "detail_url", "found_at",
	}); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	for _, l := range listings {
		views := ""
		if l.Views != nil {
			views = strconv.Itoa(*l.Views)
		}
		regDate := ""
		if l.RegistrationDate != nil {
			regDate = l.RegistrationDate.Format("2006-01-02")
		}

		row := []string{
			l.ID,
			l.Title,
			strconv.Itoa(l.Year),
			strconv.Itoa(l.MileageKm),
			currency.FormatManwon(l.PriceWon),
			currency.FormatManwon(l.TrueCostWon),
			l.LeaseState.String(),
			strconv.FormatBool(l.LowConfidence),
			strconv.FormatBool(l.Anomalous),
			views,
			regDate,
			l.Freshness,
			l.DetailURL,
			l.FoundAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("snapshot: write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

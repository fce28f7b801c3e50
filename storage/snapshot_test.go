package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lym-afla/Encar/models"
)

func TestWriteSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "snapshot.csv")
	snap, err := NewCSVSnapshot(path)
	if err != nil {
		t.Fatalf("NewCSVSnapshot: %v", err)
	}

	views := 12
	reg := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := []*models.Listing{
		{
			ID:               "38412345",
			Title:            "GLE-클래스 GLE 450",
			Year:             2021,
			MileageKm:        41000,
			PriceWon:         50_000_000,
			TrueCostWon:      59_760_000,
			LeaseState:       models.LeaseConfirmed,
			Views:            &views,
			RegistrationDate: &reg,
			Freshness:        models.FreshnessVeryFresh,
			DetailURL:        "https://fem.encar.com/cars/detail/38412345",
			FoundAt:          time.Now(),
		},
		{
			ID:          "38499999",
			Title:       "GLE-클래스 GLE 300d",
			Year:        2022,
			MileageKm:   20000,
			PriceWon:    70_000_000,
			TrueCostWon: 70_000_000,
			LeaseState:  models.LeaseNo,
			FoundAt:     time.Now(),
		},
	}

	if err := snap.WriteSnapshot(batch); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows; want header + 2", len(rows))
	}

	lease := rows[1]
	if lease[0] != "38412345" {
		t.Errorf("id = %q; want 38412345", lease[0])
	}
	if lease[4] != "5,000만원" || lease[5] != "5,976만원" {
		t.Errorf("prices = %q / %q; want compact notation", lease[4], lease[5])
	}
	if lease[6] != "lease (confirmed)" {
		t.Errorf("lease state = %q", lease[6])
	}
	if lease[9] != "12" || lease[10] != "2021-03-15" {
		t.Errorf("views/registration = %q / %q", lease[9], lease[10])
	}

	purchase := rows[2]
	if purchase[9] != "" || purchase[10] != "" {
		t.Errorf("absent optional fields = %q / %q; want empty cells", purchase[9], purchase[10])
	}
}

func TestWriteSnapshotTruncatesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.csv")
	snap, err := NewCSVSnapshot(path)
	if err != nil {
		t.Fatalf("NewCSVSnapshot: %v", err)
	}

	big := []*models.Listing{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	small := []*models.Listing{{ID: "9"}}

	if err := snap.WriteSnapshot(big); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	if err := snap.WriteSnapshot(small); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open snapshot: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("got %d rows; want the previous snapshot replaced", len(rows))
	}
	if rows[1][0] != "9" {
		t.Errorf("row id = %q; want 9", rows[1][0])
	}
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/lym-afla/Encar/models"
)

// PostgresStore persists listings and the observation state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection, runs schema migrations, and returns a
// ready-to-use store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id                TEXT PRIMARY KEY,
			title             TEXT        NOT NULL,
			manufacturer      TEXT        NOT NULL DEFAULT '',
			model             TEXT        NOT NULL DEFAULT '',
			badge             TEXT        NOT NULL DEFAULT '',
			year              INT         NOT NULL DEFAULT 0,
			mileage_km        INT         NOT NULL DEFAULT 0,
			price_won         BIGINT      NOT NULL DEFAULT 0,
			true_cost_won     BIGINT      NOT NULL DEFAULT 0,
			sale_type         TEXT        NOT NULL DEFAULT '',
			lease_state       INT         NOT NULL DEFAULT 0,
			deposit_won       BIGINT,
			monthly_won       BIGINT,
			term_months       INT,
			low_confidence    BOOLEAN     NOT NULL DEFAULT FALSE,
			anomalous         BOOLEAN     NOT NULL DEFAULT FALSE,
			views             INT,
			registration_date DATE,
			freshness         TEXT        NOT NULL DEFAULT '',
			fuel_type         TEXT        NOT NULL DEFAULT '',
			transmission      TEXT        NOT NULL DEFAULT '',
			modified_date     TEXT        NOT NULL DEFAULT '',
			detail_url        TEXT        NOT NULL DEFAULT '',
			sources           TEXT        NOT NULL DEFAULT '{}',
			found_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price_won);
		CREATE INDEX IF NOT EXISTS idx_listings_year  ON listings(year);
		CREATE INDEX IF NOT EXISTS idx_listings_lease ON listings(lease_state);

		CREATE TABLE IF NOT EXISTS observed_listings (
			id TEXT PRIMARY KEY
		);
	`)
	return err
}

// UpsertListing inserts or updates one listing keyed by its external ID.
// A row already confirmed as a lease keeps its confirmed state and terms
// unless the incoming value carries a manual override.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *models.Listing) error {
	var depositWon, monthlyWon sql.NullInt64
	var termMonths sql.NullInt32
	if l.LeaseTerms != nil {
		depositWon = sql.NullInt64{Int64: l.LeaseTerms.DepositWon, Valid: true}
		monthlyWon = sql.NullInt64{Int64: l.LeaseTerms.MonthlyWon, Valid: true}
		termMonths = sql.NullInt32{Int32: int32(l.LeaseTerms.TermMonths), Valid: true}
	}

	var views sql.NullInt32
	if l.Views != nil {
		views = sql.NullInt32{Int32: int32(*l.Views), Valid: true}
	}
	var regDate sql.NullTime
	if l.RegistrationDate != nil {
		regDate = sql.NullTime{Time: *l.RegistrationDate, Valid: true}
	}

	sources, err := json.Marshal(l.Sources)
	if err != nil {
		return fmt.Errorf("postgres: marshal sources: %w", err)
	}

	overridden := l.Sources["is_lease"] == models.SourceOverride

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (
			id, title, manufacturer, model, badge, year, mileage_km,
			price_won, true_cost_won, sale_type, lease_state,
			deposit_won, monthly_won, term_months,
			low_confidence, anomalous, views, registration_date, freshness,
			fuel_type, transmission, modified_date, detail_url, sources, found_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,
			$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25
		)
		ON CONFLICT (id) DO UPDATE SET
			title          = EXCLUDED.title,
			manufacturer   = EXCLUDED.manufacturer,
			model          = EXCLUDED.model,
			badge          = EXCLUDED.badge,
			year           = EXCLUDED.year,
			mileage_km     = EXCLUDED.mileage_km,
			price_won      = EXCLUDED.price_won,
			sale_type      = EXCLUDED.sale_type,
			lease_state    = CASE
				WHEN $26 OR listings.lease_state <> $27 THEN EXCLUDED.lease_state
				ELSE listings.lease_state
			END,
			true_cost_won  = CASE
				WHEN $26 OR listings.lease_state <> $27 THEN EXCLUDED.true_cost_won
				ELSE listings.true_cost_won
			END,
			deposit_won    = CASE
				WHEN $26 OR listings.lease_state <> $27 THEN EXCLUDED.deposit_won
				ELSE listings.deposit_won
			END,
			monthly_won    = CASE
				WHEN $26 OR listings.lease_state <> $27 THEN EXCLUDED.monthly_won
				ELSE listings.monthly_won
			END,
			term_months    = CASE
				WHEN $26 OR listings.lease_state <> $27 THEN EXCLUDED.term_months
				ELSE listings.term_months
			END,
			low_confidence = EXCLUDED.low_confidence,
			anomalous      = EXCLUDED.anomalous,
			views          = COALESCE(EXCLUDED.views, listings.views),
			registration_date = COALESCE(EXCLUDED.registration_date, listings.registration_date),
			freshness      = EXCLUDED.freshness,
			fuel_type      = EXCLUDED.fuel_type,
			transmission   = EXCLUDED.transmission,
			modified_date  = EXCLUDED.modified_date,
			detail_url     = EXCLUDED.detail_url,
			sources        = EXCLUDED.sources,
			updated_at     = NOW()
	`,
		l.ID, l.Title, l.Manufacturer, l.Model, l.Badge, l.Year, l.MileageKm,
		l.PriceWon, l.TrueCostWon, l.SaleType, int(l.LeaseState),
		depositWon, monthlyWon, termMonths,
		l.LowConfidence, l.Anomalous, views, regDate, l.Freshness,
		l.FuelType, l.Transmission, l.ModifiedDate, l.DetailURL, string(sources), l.FoundAt,
		overridden, int(models.LeaseConfirmed),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert listing %s: %w", l.ID, err)
	}
	return nil
}

// GetObservedIDs returns the observation state as of the previous cycle.
func (s *PostgresStore) GetObservedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM observed_listings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: get observed ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan observed id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetObservedIDs replaces the observation state in a single transaction.
func (s *PostgresStore) SetObservedIDs(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin observed ids: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observed_listings`); err != nil {
		return fmt.Errorf("postgres: clear observed ids: %w", err)
	}

	const batchSize = 500
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[i:end]

		placeholders := make([]string, len(batch))
		args := make([]interface{}, len(batch))
		for j, id := range batch {
			placeholders[j] = fmt.Sprintf("($%d)", j+1)
			args[j] = id
		}
		query := "INSERT INTO observed_listings (id) VALUES " +
			strings.Join(placeholders, ",") + " ON CONFLICT (id) DO NOTHING"
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: insert observed ids: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit observed ids: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

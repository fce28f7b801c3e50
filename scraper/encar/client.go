package encar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/lym-afla/Encar/config"
	"github.com/lym-afla/Encar/currency"
	"github.com/lym-afla/Encar/models"
	"github.com/lym-afla/Encar/utils"
)

// ErrRetrievalFailed means the bulk endpoint is unusable after retries; the
// cycle must abort without mutating observation state.
var ErrRetrievalFailed = errors.New("retrieval failed")

const (
	apiBase         = "https://api.encar.com"
	generalEndpoint = apiBase + "/search/car/list/general"
	detailURLFormat = "https://fem.encar.com/cars/detail/%s"
)

// rawRecord is one entry of the feed's native schema. Price comes in compact
// 만원 units and Year as a YYYYMM number.
type rawRecord struct {
	ID           json.Number `json:"Id"`
	Manufacturer string      `json:"Manufacturer"`
	Model        string      `json:"Model"`
	Badge        string      `json:"Badge"`
	Year         float64     `json:"Year"`
	Mileage      float64     `json:"Mileage"`
	Price        float64     `json:"Price"`
	FuelType     string      `json:"FuelType"`
	Transmission string      `json:"Transmission"`
	SellType     string      `json:"SellType"`
	ModifiedDate string      `json:"ModifiedDate"`
}

type searchResponse struct {
	Count         int         `json:"Count"`
	SearchResults []rawRecord `json:"SearchResults"`
}

// Page is one page of normalized listings.
type Page struct {
	Listings []*models.Listing
	Total    int
	HasMore  bool
}

// Client retrieves bulk listing data from the feed endpoint using the
// SessionManager's credentials.
type Client struct {
	http     *resty.Client
	sessions *SessionManager
	limiter  *rate.Limiter
	cfg      config.FeedConfig
	retry    *utils.RetryConfig
	logger   *utils.Logger
	endpoint string
}

// NewClient creates a feed client backed by the given session manager.
func NewClient(sessions *SessionManager, cfg config.FeedConfig, logger *utils.Logger) *Client {
	httpClient := resty.New().
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetRetryCount(0) // retries are handled here, not inside resty

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 20
	}

	return &Client{
		http:     httpClient,
		sessions: sessions,
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		cfg:      cfg,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger:   logger,
		endpoint: generalEndpoint,
	}
}

// FetchPage issues one request for the given zero-based page. On an
// authentication rejection it reports back to the session manager and retries
// the same page once with fresh credentials before surfacing
// ErrRetrievalFailed.
func (c *Client) FetchPage(ctx context.Context, f Filters, page int) (*Page, error) {
	offset := page * c.cfg.PageSize
	params := map[string]string{
		"count": "true",
		"q":     BuildQuery(f),
		"sr":    sortParam(offset, c.cfg.PageSize),
	}

	creds, err := c.sessions.GetCredentials(ctx)
	if err != nil {
		return nil, err
	}

	body, rejected, err := c.fetchOnce(ctx, creds, params, page)
	if err != nil {
		return nil, fmt.Errorf("%w: page %d: %v", ErrRetrievalFailed, page, err)
	}

	if rejected {
		c.logger.Warn("[feed] Authentication rejected on page %d — refreshing session", page)
		c.sessions.Invalidate()

		creds, err = c.sessions.GetCredentials(ctx)
		if err != nil {
			return nil, err
		}
		body, rejected, err = c.fetchOnce(ctx, creds, params, page)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrRetrievalFailed, page, err)
		}
		if rejected {
			return nil, fmt.Errorf("%w: page %d: authentication rejected twice", ErrRetrievalFailed, page)
		}
	}

	var payload searchResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: page %d: decode response: %v", ErrRetrievalFailed, page, err)
	}

	listings := make([]*models.Listing, 0, len(payload.SearchResults))
	for _, rec := range payload.SearchResults {
		if l := normalizeRecord(rec); l != nil {
			listings = append(listings, l)
		}
	}

	fetched := len(payload.SearchResults)
	hasMore := fetched == c.cfg.PageSize && offset+fetched < payload.Count

	c.logger.Debug("[feed] Page %d: %d records (total %d, hasMore=%v)",
		page, fetched, payload.Count, hasMore)

	return &Page{Listings: listings, Total: payload.Count, HasMore: hasMore}, nil
}

// FetchAll paginates until the feed reports no more results or the configured
// page cap is reached, whichever comes first. The cap bounds worst-case cycle
// duration against pathological result-set growth.
func (c *Client) FetchAll(ctx context.Context, f Filters) ([]*models.Listing, error) {
	seen := utils.NewIDSet()
	var all []*models.Listing

	for page := 0; page < c.cfg.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pg, err := c.FetchPage(ctx, f, page)
		if err != nil {
			return nil, err
		}

		for _, l := range pg.Listings {
			// The feed re-sorts between requests, so a listing can slide
			// across page boundaries mid-pagination.
			if seen.Add(l.ID) {
				all = append(all, l)
			}
		}

		if !pg.HasMore {
			break
		}
	}

	c.logger.Info("[feed] Retrieved %d unique listings", len(all))
	return all, nil
}

// fetchOnce performs a single logical request with transport-level retries.
// An authentication rejection is reported via the rejected flag rather than
// as an error so it is not retried with backoff.
func (c *Client) fetchOnce(ctx context.Context, creds *Credentials, params map[string]string, page int) (body []byte, rejected bool, err error) {
	err = c.retry.Do(ctx, fmt.Sprintf("feed-page-%d", page), func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		resp, err := c.http.R().
			SetContext(ctx).
			SetHeaders(creds.Headers).
			SetHeader("Cookie", creds.CookieHeader()).
			SetQueryParams(params).
			Get(c.endpoint)
		if err != nil {
			return fmt.Errorf("transport: %w", err)
		}

		switch code := resp.StatusCode(); code {
		case http.StatusOK:
			body = resp.Body()
			rejected = false
			return nil
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusProxyAuthRequired:
			rejected = true
			return nil
		default:
			return fmt.Errorf("unexpected status %d", code)
		}
	})
	return body, rejected, err
}

// normalizeRecord maps one raw feed record into the Listing shape. Records
// without a stable identifier are dropped.
func normalizeRecord(rec rawRecord) *models.Listing {
	id := rec.ID.String()
	if id == "" || id == "0" {
		return nil
	}

	year := int(rec.Year)
	if year > 10000 {
		year /= 100 // YYYYMM -> YYYY
	}

	title := strings.TrimSpace(strings.TrimSpace(rec.Model) + " " + strings.TrimSpace(rec.Badge))
	priceWon := currency.ToWon(rec.Price)

	l := &models.Listing{
		ID:           id,
		Title:        title,
		Manufacturer: rec.Manufacturer,
		Model:        rec.Model,
		Badge:        rec.Badge,
		Year:         year,
		MileageKm:    int(rec.Mileage),
		PriceWon:     priceWon,
		TrueCostWon:  priceWon, // until classified
		SaleType:     rec.SellType,
		FuelType:     rec.FuelType,
		Transmission: rec.Transmission,
		ModifiedDate: rec.ModifiedDate,
		DetailURL:    fmt.Sprintf(detailURLFormat, id),
		FoundAt:      time.Now(),
	}
	l.SetSource("price", models.SourceFeed)
	l.SetSource("sale_type", models.SourceFeed)
	return l
}

package services

import (
	"strings"

	"github.com/lym-afla/Encar/config"
	"github.com/lym-afla/Encar/models"
)

// FilterListings applies the post-retrieval keyword filters: body-style
// keywords must match (when configured) and exclude keywords must not.
// The feed query already narrows by manufacturer/model; this trims the
// variants the query grammar cannot express.
func FilterListings(listings []*models.Listing, cfg config.SearchConfig) []*models.Listing {
	if len(cfg.BodyKeywords) == 0 && len(cfg.ExcludeKeywords) == 0 {
		return listings
	}

	out := make([]*models.Listing, 0, len(listings))
	for _, l := range listings {
		haystack := strings.ToLower(l.Title + " " + l.Model + " " + l.Badge)

		if len(cfg.BodyKeywords) > 0 && !containsAny(haystack, cfg.BodyKeywords) {
			continue
		}
		if containsAny(haystack, cfg.ExcludeKeywords) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

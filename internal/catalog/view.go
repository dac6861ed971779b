// Package catalog builds the product listing shown for a session and filter.
package catalog

import (
	"context"
	"errors"
	"net/url"
	"sort"

	"sweet-shop/internal/apierr"
	"sweet-shop/internal/filter"
	"sweet-shop/internal/models"
	"sweet-shop/internal/util"

	"go.uber.org/zap"
)

// Lister is the remote catalog: the unfiltered listing and the search
type Lister interface {
	ListSweets(ctx context.Context, token string) ([]models.Product, error)
	SearchSweets(ctx context.Context, token string, query url.Values) ([]models.Product, error)
}

// View fetches catalog listings
type View struct {
	lister Lister
	logger *zap.Logger
}

// NewView creates a catalog view
func NewView(lister Lister) *View {
	return &View{
		lister: lister,
		logger: util.GetLogger(),
	}
}

// CategoryLink is one quick category button. URL selects the category, or
// clears it when it is already the active one.
type CategoryLink struct {
	Category string `json:"category"`
	Active   bool   `json:"active"`
	URL      string `json:"url"`
}

// Listing is everything the storefront renders for one catalog visit
type Listing struct {
	Products      []models.Product `json:"products"`
	Categories    []string         `json:"categories"`
	CategoryLinks []CategoryLink   `json:"category_links"`
	Criteria      filter.Criteria  `json:"filters"`
	ActiveFilters int              `json:"active_filter_count"`
	Chips         []filter.Chip    `json:"chips"`
	Heading       string           `json:"heading"`
	Notice        string           `json:"notice,omitempty"`
	Err           error            `json:"-"`
}

// Fetch lists the catalog when criteria is empty and searches otherwise,
// never both. The token is attached when present; if the service rejects it
// as unauthenticated the same request is retried once without it, so a stale
// token still gets the public listing.
func (v *View) Fetch(ctx context.Context, s models.Session, criteria filter.Criteria) ([]models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogView.Fetch")
	defer span.End()

	fetch := func(token string) ([]models.Product, error) {
		if criteria.IsEmpty() {
			return v.lister.ListSweets(ctx, token)
		}
		return v.lister.SearchSweets(ctx, token, criteria.SearchQuery())
	}

	products, err := fetch(s.Token)
	if err != nil && s.Token != "" && errors.Is(err, apierr.ErrNotAuthenticated) {
		util.CatalogFallbacksTotal.Inc()
		v.logger.Debug("Catalog rejected session token, retrying without it")
		products, err = fetch("")
	}
	if err != nil {
		util.CatalogFetchFailedTotal.WithLabelValues(string(apierr.KindOf(err))).Inc()
		span.RecordError(err)
		return nil, err
	}
	return products, nil
}

// Build fetches and decorates a listing. It never fails: errors produce an
// empty listing with an explanatory notice and Err set.
func (v *View) Build(ctx context.Context, s models.Session, criteria filter.Criteria) Listing {
	l := Listing{
		Criteria:      criteria,
		ActiveFilters: criteria.ActiveCount(),
		Chips:         criteria.Chips(),
		Heading:       "All Sweets",
	}
	if !criteria.IsEmpty() {
		l.Heading = "Search Results"
	}

	products, err := v.Fetch(ctx, s, criteria)
	if err != nil {
		v.logger.Warn("Catalog fetch failed",
			zap.String("kind", string(apierr.KindOf(err))),
			zap.Error(err))
		l.Products = []models.Product{}
		l.Categories = []string{}
		l.CategoryLinks = []CategoryLink{}
		l.Err = err
		l.Notice = "We couldn't load the catalog right now: " + apierr.Message(err)
		return l
	}

	l.Products = products
	l.Categories = Categories(products)
	l.CategoryLinks = categoryLinks(criteria, l.Categories)
	if len(products) == 0 {
		if criteria.IsEmpty() {
			l.Notice = "Check back later for new arrivals!"
		} else {
			l.Notice = "Try adjusting your filters or search terms."
		}
	}
	return l
}

func categoryLinks(criteria filter.Criteria, categories []string) []CategoryLink {
	links := make([]CategoryLink, 0, len(categories))
	for _, cat := range categories {
		links = append(links, CategoryLink{
			Category: cat,
			Active:   criteria.Category != nil && *criteria.Category == cat,
			URL:      criteria.ToggleCategory(cat).Href(),
		})
	}
	return links
}

// Find returns the product with id from a listing
func Find(products []models.Product, id int64) (models.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

// Categories returns the sorted distinct categories of products
func Categories(products []models.Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0)
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	sort.Strings(out)
	return out
}

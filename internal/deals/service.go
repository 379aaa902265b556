// Package deals is the read side of the promotion cache and the on-demand PDP
// lookups the UI uses.
package deals

import (
	"context"
	"time"

	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/internal/store"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/errors"
)

const (
	// StaleAfter is how long a sale cache entry is served after it was fetched.
	StaleAfter = 48 * time.Hour
	// LookupDelay spaces the PDP fetches of one PromoLabels call.
	LookupDelay = 250 * time.Millisecond
)

// Reader is the part of the cache store the query path needs.
type Reader interface {
	QueryActiveSales(ctx context.Context, cutoff time.Duration, now time.Time) ([]store.SaleCacheEntry, error)
	LastRefreshed(ctx context.Context) (*int64, error)
	CountPromotions(ctx context.Context) (int64, error)
}

// Fetcher fetches one product detail page.
type Fetcher interface {
	FetchProductDetailsPage(ctx context.Context, productID string) (*pdp.Document, error)
}

// Response is the payload of a deals listing.
type Response struct {
	Items []store.SaleCacheEntry `json:"items"`
	// LastRefreshed is the newest fetched_at across all rows, stale ones included.
	LastRefreshed       *int64 `json:"lastRefreshed"`
	KnownPromotionCount int64  `json:"knownPromotionCount"`
}

// Service serves cached deals and live PDP lookups.
type Service struct {
	reader  Reader
	fetcher Fetcher
	delay   time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
	log     *logger.Logger
}

// NewService creates a Service. fetcher may be nil when no store credentials are
// configured; the live lookups then fail with a configuration error.
func NewService(reader Reader, fetcher Fetcher) *Service {
	return &Service{
		reader:  reader,
		fetcher: fetcher,
		delay:   LookupDelay,
		sleep:   sleepCtx,
		now:     time.Now,
		log:     logger.ForAPI().WithField("service", "deals"),
	}
}

// ListDeals returns the non-stale sale entries ordered by label then name.
func (s *Service) ListDeals(ctx context.Context) (*Response, error) {
	items, err := s.reader.QueryActiveSales(ctx, StaleAfter, s.now())
	if err != nil {
		return nil, err
	}
	last, err := s.reader.LastRefreshed(ctx)
	if err != nil {
		return nil, err
	}
	count, err := s.reader.CountPromotions(ctx)
	if err != nil {
		return nil, err
	}

	return &Response{
		Items:               items,
		LastRefreshed:       last,
		KnownPromotionCount: count,
	}, nil
}

// PromoLabels looks up the current promotion label of each product. Products
// without a label, or whose page could not be fetched, map to nil.
func (s *Service) PromoLabels(ctx context.Context, productIDs []string) (map[string]*string, error) {
	if s.fetcher == nil {
		return nil, errors.NewConfiguration("store credentials not configured", nil)
	}

	out := make(map[string]*string, len(productIDs))
	calls := 0
	for _, id := range productIDs {
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		out[id] = nil

		if calls > 0 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return nil, err
			}
		}
		calls++

		doc, err := s.fetcher.FetchProductDetailsPage(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn().Err(err).Str("product_id", id).Msg("Promo label lookup failed")
			continue
		}
		if label, ok := pdp.ExtractSelfPromoLabel(doc, id); ok {
			out[id] = &label
		}
	}
	return out, nil
}

// Bundles returns the bundle options shown on the product's page.
func (s *Service) Bundles(ctx context.Context, productID string) ([]pdp.BundleOption, error) {
	if productID == "" {
		return nil, errors.NewValidation("deals", "product_id is required")
	}
	if s.fetcher == nil {
		return nil, errors.NewConfiguration("store credentials not configured", nil)
	}

	doc, err := s.fetcher.FetchProductDetailsPage(ctx, productID)
	if err != nil {
		return nil, err
	}
	bundles := pdp.ExtractBundles(doc)
	if bundles == nil {
		bundles = []pdp.BundleOption{}
	}
	return bundles, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

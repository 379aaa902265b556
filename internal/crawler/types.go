package crawler

import (
	"context"
	"time"

	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/internal/store"
	"sjsage522/dealrefresher/pkg/dbctx"
)

const (
	// DefaultDelay is the pause between two consecutive PDP fetches.
	DefaultDelay = 500 * time.Millisecond
	// DefaultMaxCalls caps the PDP fetches of one run.
	DefaultMaxCalls = 40
)

// Crawler interface defines the contract for crawler implementations
type Crawler interface {
	// Run performs one complete refresh and commits its results
	Run(ctx context.Context) (RunSummary, error)

	// GetName returns the crawler's name for logging and identification
	GetName() string
}

// PDPFetcher fetches the product detail page of one product.
type PDPFetcher interface {
	FetchProductDetailsPage(ctx context.Context, productID string) (*pdp.Document, error)
}

// CacheStore is the part of the promotion cache the crawler reads and writes.
type CacheStore interface {
	ListSeeds(ctx context.Context) ([]store.SeedItem, error)
	ListKnownPromotions(ctx context.Context) ([]store.PromotionGroup, error)
	Transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error
	DeleteFalsePositives(dbc dbctx.Context, phrases []string) (int64, error)
	UpsertSale(dbc dbctx.Context, entry store.SaleCacheEntry) error
	UpsertPromotionGroup(dbc dbctx.Context, u store.PromotionUpsert, now int64) error
}

// RunSummary reports the outcome of one refresh run.
type RunSummary struct {
	RunID             string `json:"run_id,omitempty"`
	ItemsFound        int    `json:"items_found"`
	PromotionsChecked int    `json:"promotions_checked"`
	CallsMade         int    `json:"calls_made"`
	// Capped is set when the call budget ran out while products or promotion
	// groups were still due; a later run should finish them.
	Capped bool `json:"capped"`
}

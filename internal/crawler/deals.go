package crawler

import (
	"context"
	"sort"
	"time"

	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/internal/store"
	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/dbctx"
	"sjsage522/dealrefresher/pkg/errors"

	"github.com/google/uuid"
)

// DealCrawler discovers products on sale. Phase 1 sweeps the frequent items and
// follows the promotion tiles on their PDPs; phase 2 re-checks known promotion
// groups that phase 1 did not confirm, one fetch per group via its seed product.
// All writes of a run are committed in a single transaction at the end.
//
// A DealCrawler must not run concurrently with another run against the same
// store; callers serialise runs (see services/cache.RunLock).
type DealCrawler struct {
	name     string
	fetcher  PDPFetcher
	store    CacheStore
	delay    time.Duration
	maxCalls int
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	log      *logger.Logger
}

// Option customises a DealCrawler.
type Option func(*DealCrawler)

// WithDelay sets the pause between PDP fetches.
func WithDelay(d time.Duration) Option {
	return func(c *DealCrawler) { c.delay = d }
}

// WithMaxCalls sets the PDP fetch budget of a run.
func WithMaxCalls(n int) Option {
	return func(c *DealCrawler) { c.maxCalls = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *DealCrawler) { c.now = now }
}

// WithSleeper replaces the context-aware sleep between fetches.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *DealCrawler) { c.sleep = sleep }
}

// NewDealCrawler creates a crawler with the default delay and call budget.
func NewDealCrawler(fetcher PDPFetcher, cacheStore CacheStore, opts ...Option) *DealCrawler {
	c := &DealCrawler{
		name:     "deals",
		fetcher:  fetcher,
		store:    cacheStore,
		delay:    DefaultDelay,
		maxCalls: DefaultMaxCalls,
		sleep:    sleepCtx,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.ForCrawler(c.name)
	return c
}

// GetName returns the crawler's name
func (c *DealCrawler) GetName() string {
	return c.name
}

// runState is everything one run accumulates before the final commit.
type runState struct {
	id        string
	now       int64
	known     map[string]*store.PromotionGroup
	refreshed map[string]bool
	sales     map[string]store.SaleCacheEntry
	promos    map[string]store.PromotionUpsert
	calls     int
	capped    bool
}

func newRunState(now int64, known []store.PromotionGroup) *runState {
	r := &runState{
		id:        uuid.NewString(),
		now:       now,
		known:     make(map[string]*store.PromotionGroup, len(known)),
		refreshed: make(map[string]bool),
		sales:     make(map[string]store.SaleCacheEntry),
		promos:    make(map[string]store.PromotionUpsert),
	}
	for i := range known {
		r.known[known[i].PromotionID] = &known[i]
	}
	return r
}

func (r *runState) summary() RunSummary {
	return RunSummary{
		RunID:             r.id,
		ItemsFound:        len(r.sales),
		PromotionsChecked: len(r.refreshed),
		CallsMade:         r.calls,
		Capped:            r.capped,
	}
}

// recordSale stores entry unless its label is cart state rather than a promotion.
func (r *runState) recordSale(entry store.SaleCacheEntry) {
	if pdp.IsCartQuantityText(entry.PromoLabel) {
		return
	}
	entry.FetchedAt = r.now
	r.sales[entry.PicnicID] = entry
}

// recordSiblings adds every sibling to the sale map, overwriting earlier entries,
// and marks each promotion confirmed the first time it is seen this run. Seed and
// label are only written for groups that have none stored yet.
func (r *runState) recordSiblings(siblings []pdp.PromoSibling) {
	for _, s := range siblings {
		r.recordSale(store.SaleCacheEntry{
			PicnicID:   s.PicnicID,
			Name:       s.Name,
			ImageID:    s.ImageID,
			Price:      s.Price,
			PromoLabel: s.PromoLabel,
		})

		if s.PromotionID == "" || r.refreshed[s.PromotionID] {
			continue
		}
		r.refreshed[s.PromotionID] = true

		seen := r.now
		u := store.PromotionUpsert{
			PromotionID: s.PromotionID,
			Active:      true,
			LastSeenAt:  &seen,
		}
		existing := r.known[s.PromotionID]
		if existing == nil || existing.SeedPicnicID == "" {
			seed := s.PicnicID
			u.SeedPicnicID = &seed
		}
		if existing == nil || (existing.Label == "" && s.PromoLabel != "") {
			label := s.PromoLabel
			u.Label = &label
		}
		r.promos[s.PromotionID] = u
	}
}

func (r *runState) markInactive(promotionID string) {
	r.promos[promotionID] = store.PromotionUpsert{
		PromotionID: promotionID,
		Active:      false,
		LastSeenAt:  nil,
	}
}

// Run performs one refresh: load seeds and known promotions, crawl, commit.
// Fetch failures are logged and skipped. A failed commit fails the whole run and
// leaves the store untouched, as does context cancellation.
func (c *DealCrawler) Run(ctx context.Context) (RunSummary, error) {
	seeds, err := c.store.ListSeeds(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	known, err := c.store.ListKnownPromotions(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	start := c.now()
	state, err := c.discover(ctx, start.Unix(), seeds, known)
	if err != nil {
		return state.summary(), err
	}

	if err := c.commit(ctx, state); err != nil {
		c.log.Error().Err(err).Str("run_id", state.id).Msg("Failed to commit refresh")
		return state.summary(), err
	}

	summary := state.summary()
	c.log.Info().
		Str("run_id", summary.RunID).
		Int("items_found", summary.ItemsFound).
		Int("promotions_checked", summary.PromotionsChecked).
		Int("calls_made", summary.CallsMade).
		Bool("capped", summary.Capped).
		Dur("elapsed", c.now().Sub(start)).
		Msg("Deals refresh finished")
	return summary, nil
}

// discover runs both crawl phases and returns the accumulated state. The only
// error it returns is context cancellation.
func (c *DealCrawler) discover(ctx context.Context, now int64, seeds []store.SeedItem, known []store.PromotionGroup) (*runState, error) {
	state := newRunState(now, known)
	log := c.log.WithField("run_id", state.id)

	// Phase 1: frequent items.
	for _, seed := range seeds {
		if _, done := state.sales[seed.PicnicID]; done {
			continue
		}
		if state.calls >= c.maxCalls {
			state.capped = true
			break
		}

		doc, err := c.fetch(ctx, state, seed.PicnicID)
		if err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			log.Warn().Err(err).Str("phase", "seed").Str("product_id", seed.PicnicID).Msg("PDP fetch failed, skipping")
			continue
		}

		if label, ok := pdp.ExtractSelfPromoLabel(doc, seed.PicnicID); ok {
			state.recordSale(store.SaleCacheEntry{
				PicnicID:   seed.PicnicID,
				Name:       seed.Name,
				ImageID:    seed.ImageID,
				Price:      seed.Price,
				PromoLabel: label,
			})
		}
		state.recordSiblings(pdp.ExtractPromoSiblings(doc))
	}

	// Phase 2: known promotions not confirmed above, most recently seen first.
	for i := range known {
		group := known[i]
		if state.refreshed[group.PromotionID] {
			continue
		}
		if group.SeedPicnicID == "" {
			log.Debug().Str("promotion_id", group.PromotionID).Msg("Promotion has no seed product, skipping")
			continue
		}
		if state.calls >= c.maxCalls {
			state.capped = true
			break
		}

		doc, err := c.fetch(ctx, state, group.SeedPicnicID)
		if err != nil {
			if ctx.Err() != nil {
				return state, ctx.Err()
			}
			log.Warn().Err(err).
				Str("phase", "recheck").
				Str("promotion_id", group.PromotionID).
				Str("product_id", group.SeedPicnicID).
				Bool("not_found", errors.IsNotFound(err)).
				Msg("PDP fetch failed, marking promotion inactive")
			state.markInactive(group.PromotionID)
			continue
		}

		var matching []pdp.PromoSibling
		for _, s := range pdp.ExtractPromoSiblings(doc) {
			if s.PromotionID == group.PromotionID {
				matching = append(matching, s)
			}
		}

		if len(matching) > 0 {
			state.recordSiblings(matching)
		} else {
			log.Debug().Str("promotion_id", group.PromotionID).Msg("Promotion no longer shown")
			state.markInactive(group.PromotionID)
		}
	}

	return state, nil
}

// fetch spends one call of the budget, pausing first unless it is the run's
// first call.
func (c *DealCrawler) fetch(ctx context.Context, state *runState, productID string) (*pdp.Document, error) {
	if state.calls > 0 && c.delay > 0 {
		if err := c.sleep(ctx, c.delay); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	state.calls++
	return c.fetcher.FetchProductDetailsPage(ctx, productID)
}

// commit writes the run atomically: false positive cleanup, sales, promotions.
func (c *DealCrawler) commit(ctx context.Context, state *runState) error {
	err := c.store.Transaction(ctx, func(dbc dbctx.Context) error {
		deleted, err := c.store.DeleteFalsePositives(dbc, pdp.CartQuantityPhrases)
		if err != nil {
			return err
		}
		if deleted > 0 {
			c.log.Info().Int64("deleted", deleted).Msg("Removed cart quantity false positives")
		}

		for _, id := range sortedKeys(state.sales) {
			if err := c.store.UpsertSale(dbc, state.sales[id]); err != nil {
				return err
			}
		}
		for _, id := range sortedKeys(state.promos) {
			if err := c.store.UpsertPromotionGroup(dbc, state.promos[id], state.now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.IsPersistence(err) {
			return err
		}
		return errors.NewPersistence(c.name, "commit refresh", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
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

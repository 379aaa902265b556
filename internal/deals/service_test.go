package deals

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sjsage522/dealrefresher/internal/pdp"
	"sjsage522/dealrefresher/internal/store"
	"sjsage522/dealrefresher/pkg/dbctx"
	"sjsage522/dealrefresher/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) FetchProductDetailsPage(ctx context.Context, productID string) (*pdp.Document, error) {
	f.calls = append(f.calls, productID)
	raw, ok := f.pages[productID]
	if !ok {
		return nil, errors.NewNotFound("picnic", productID)
	}
	return pdp.ParseBytes([]byte(raw))
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite", filepath.Join(t.TempDir(), "deals.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(reader Reader, fetcher Fetcher, now time.Time, sleeps *int) *Service {
	svc := NewService(reader, fetcher)
	svc.now = func() time.Time { return now }
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		*sleeps++
		return ctx.Err()
	}
	return svc
}

func TestListDeals(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	now := time.Unix(1_000_000, 0)
	fresh := now.Unix() - 60
	stale := now.Unix() - int64(StaleAfter/time.Second)

	require.NoError(t, s.UpsertSale(dbc, store.SaleCacheEntry{PicnicID: "a", Name: "Melk", PromoLabel: "2e halve prijs", FetchedAt: fresh}))
	require.NoError(t, s.UpsertSale(dbc, store.SaleCacheEntry{PicnicID: "b", Name: "Kaas", PromoLabel: "1+1 gratis", FetchedAt: fresh - 10}))
	require.NoError(t, s.UpsertSale(dbc, store.SaleCacheEntry{PicnicID: "c", Name: "Oud", PromoLabel: "1+1 gratis", FetchedAt: stale}))
	require.NoError(t, s.UpsertPromotionGroup(dbc, store.PromotionUpsert{PromotionID: "P1", Active: true}, fresh))
	require.NoError(t, s.UpsertPromotionGroup(dbc, store.PromotionUpsert{PromotionID: "P2", Active: false}, fresh))

	var sleeps int
	svc := newTestService(s, nil, now, &sleeps)

	resp, err := svc.ListDeals(ctx)
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "b", resp.Items[0].PicnicID)
	assert.Equal(t, "a", resp.Items[1].PicnicID)
	require.NotNil(t, resp.LastRefreshed)
	assert.Equal(t, fresh, *resp.LastRefreshed)
	assert.Equal(t, int64(2), resp.KnownPromotionCount)
}

func TestListDealsEmptyStore(t *testing.T) {
	var sleeps int
	svc := newTestService(newTestStore(t), nil, time.Now(), &sleeps)

	resp, err := svc.ListDeals(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, resp.Items)
	assert.Empty(t, resp.Items)
	assert.Nil(t, resp.LastRefreshed)
	assert.Zero(t, resp.KnownPromotionCount)
}

func TestPromoLabels(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"s1": `{"children": [{"id": "product-page-labels-s1", "children": [{"type": "RICH_TEXT", "markdown": "#(#E6261A)1+1 gratis"}]}]}`,
		"s2": `{"children": [{"id": "product-page-labels-s2", "children": [{"type": "RICH_TEXT", "markdown": "3 in bestelling"}]}]}`,
	}}
	var sleeps int
	svc := newTestService(newTestStore(t), f, time.Now(), &sleeps)

	labels, err := svc.PromoLabels(context.Background(), []string{"s1", "s2", "missing", "s1", ""})
	require.NoError(t, err)
	require.Len(t, labels, 3)
	require.NotNil(t, labels["s1"])
	assert.Equal(t, "1+1 gratis", *labels["s1"])
	assert.Nil(t, labels["s2"])
	assert.Nil(t, labels["missing"])

	assert.Equal(t, []string{"s1", "s2", "missing"}, f.calls)
	assert.Equal(t, 2, sleeps)
}

func TestLookupsWithoutFetcher(t *testing.T) {
	var sleeps int
	svc := newTestService(newTestStore(t), nil, time.Now(), &sleeps)

	_, err := svc.PromoLabels(context.Background(), []string{"s1"})
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))

	_, err = svc.Bundles(context.Background(), "s1")
	assert.Equal(t, errors.ErrorTypeConfiguration, errors.TypeOf(err))
}

func TestBundles(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"s1": `{"children": [{"id": "product-page-bundles-s1", "children": [
			{"child": {"content": {"sellingUnit": {"id": "s1", "name": "Cola", "image_id": "img1"}}},
			 "pml": [{"type": "RICH_TEXT", "markdown": "1,5 liter"}, {"type": "PRICE", "price": 289}]}
		]}]}`,
		"s2": `{"children": []}`,
	}}
	var sleeps int
	svc := newTestService(newTestStore(t), f, time.Now(), &sleeps)

	bundles, err := svc.Bundles(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, bundles, 1)
	assert.Equal(t, "s1", bundles[0].ID)
	assert.Equal(t, 289, bundles[0].Price)

	bundles, err = svc.Bundles(context.Background(), "s2")
	require.NoError(t, err)
	assert.NotNil(t, bundles)
	assert.Empty(t, bundles)

	_, err = svc.Bundles(context.Background(), "")
	assert.Equal(t, errors.ErrorTypeValidation, errors.TypeOf(err))

	_, err = svc.Bundles(context.Background(), "nope")
	assert.True(t, errors.IsNotFound(err))
}

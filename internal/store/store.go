// Package store is the promotion cache: frequent items used as crawl seeds, the
// sale cache served to the UI and the known promotion groups.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sjsage522/dealrefresher/logger"
	"sjsage522/dealrefresher/pkg/dbctx"
	"sjsage522/dealrefresher/pkg/errors"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const provider = "store"

// Store implements the promotion cache on top of GORM.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the configured database and migrates the cache tables.
// driver is "sqlite" (dsn is a file path) or "postgres" (dsn is a URL).
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unsupported database driver %q", driver), nil)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.NewPersistence(provider, "failed to open database", err)
	}

	if driver == "sqlite" {
		if err := db.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
			return nil, errors.NewPersistence(provider, "failed to enable WAL", err)
		}
	}

	return New(db)
}

// New wraps an existing connection and migrates the cache tables.
func New(db *gorm.DB) (*Store, error) {
	s := &Store{db: db, log: logger.ForStore()}
	if err := s.db.AutoMigrate(&SeedItem{}, &SaleCacheEntry{}, &PromotionGroup{}); err != nil {
		return nil, errors.NewPersistence(provider, "auto migration failed", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transaction runs fn inside one database transaction. Any error returned by fn
// rolls back every write made through the supplied context.
func (s *Store) Transaction(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// AddSeed stores a frequent item.
func (s *Store) AddSeed(ctx context.Context, item SeedItem) (SeedItem, error) {
	if item.PicnicID == "" {
		return SeedItem{}, errors.NewValidation(provider, "seed item needs a product id")
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	item.ID = 0
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return SeedItem{}, errors.NewPersistence(provider, "failed to add seed item", err)
	}
	return item, nil
}

// ListSeeds returns the frequent items in the order they were stored.
func (s *Store) ListSeeds(ctx context.Context) ([]SeedItem, error) {
	var rows []SeedItem
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, errors.NewPersistence(provider, "failed to list seed items", err)
	}
	return rows, nil
}

// ListKnownPromotions returns every promotion group, most recently seen first and
// groups without a sighting last.
func (s *Store) ListKnownPromotions(ctx context.Context) ([]PromotionGroup, error) {
	var rows []PromotionGroup
	err := s.db.WithContext(ctx).
		Order("CASE WHEN last_seen_at IS NULL THEN 1 ELSE 0 END").
		Order("last_seen_at DESC").
		Order("first_seen_at DESC").
		Order("promotion_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.NewPersistence(provider, "failed to list known promotions", err)
	}
	return rows, nil
}

// UpsertSale writes entry, overwriting every column of an existing row.
func (s *Store) UpsertSale(dbc dbctx.Context, entry SaleCacheEntry) error {
	err := dbc.DB(s.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "picnic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "image_id", "price", "promo_label", "fetched_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return errors.NewPersistence(provider, fmt.Sprintf("failed to upsert sale %s", entry.PicnicID), err)
	}
	return nil
}

// UpsertPromotionGroup merges u into the stored group. A new group takes its seed
// and label from u and is first seen at now. An existing group keeps its seed and
// label unless u supplies them.
func (s *Store) UpsertPromotionGroup(dbc dbctx.Context, u PromotionUpsert, now int64) error {
	if u.PromotionID == "" {
		return errors.NewValidation(provider, "promotion upsert without promotion id")
	}
	db := dbc.DB(s.db)

	var existing []PromotionGroup
	if err := db.Where("promotion_id = ?", u.PromotionID).Limit(1).Find(&existing).Error; err != nil {
		return errors.NewPersistence(provider, fmt.Sprintf("failed to load promotion %s", u.PromotionID), err)
	}

	if len(existing) == 0 {
		row := PromotionGroup{
			PromotionID:  u.PromotionID,
			SeedPicnicID: deref(u.SeedPicnicID),
			Label:        deref(u.Label),
			FirstSeenAt:  now,
			LastSeenAt:   u.LastSeenAt,
			Active:       u.Active,
		}
		if err := db.Create(&row).Error; err != nil {
			return errors.NewPersistence(provider, fmt.Sprintf("failed to insert promotion %s", u.PromotionID), err)
		}
		return nil
	}

	updates := map[string]any{
		"active":       u.Active,
		"last_seen_at": u.LastSeenAt,
	}
	if u.SeedPicnicID != nil {
		updates["seed_picnic_id"] = *u.SeedPicnicID
	}
	if u.Label != nil {
		updates["label"] = *u.Label
	}

	err := db.Model(&PromotionGroup{}).
		Where("promotion_id = ?", u.PromotionID).
		Updates(updates).Error
	if err != nil {
		return errors.NewPersistence(provider, fmt.Sprintf("failed to update promotion %s", u.PromotionID), err)
	}
	return nil
}

// DeleteFalsePositives removes cached sales whose label contains any of phrases,
// compared case-insensitively. It returns the number of deleted rows.
func (s *Store) DeleteFalsePositives(dbc dbctx.Context, phrases []string) (int64, error) {
	if len(phrases) == 0 {
		return 0, nil
	}

	conds := make([]string, 0, len(phrases))
	args := make([]any, 0, len(phrases))
	for _, p := range phrases {
		conds = append(conds, "LOWER(promo_label) LIKE ?")
		args = append(args, "%"+strings.ToLower(p)+"%")
	}

	res := dbc.DB(s.db).
		Where(strings.Join(conds, " OR "), args...).
		Delete(&SaleCacheEntry{})
	if res.Error != nil {
		return 0, errors.NewPersistence(provider, "failed to delete false positives", res.Error)
	}
	return res.RowsAffected, nil
}

// QueryActiveSales returns cached sales fetched after now-cutoff, ordered by
// promotion label and then name.
func (s *Store) QueryActiveSales(ctx context.Context, cutoff time.Duration, now time.Time) ([]SaleCacheEntry, error) {
	threshold := now.Unix() - int64(cutoff/time.Second)

	rows := []SaleCacheEntry{}
	err := s.db.WithContext(ctx).
		Where("fetched_at > ?", threshold).
		Order("promo_label ASC").
		Order("name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, errors.NewPersistence(provider, "failed to query active sales", err)
	}
	return rows, nil
}

// LastRefreshed returns the newest fetched_at over all cached sales, stale ones
// included, or nil when the cache is empty.
func (s *Store) LastRefreshed(ctx context.Context) (*int64, error) {
	var ts sql.NullInt64
	row := s.db.WithContext(ctx).Model(&SaleCacheEntry{}).Select("MAX(fetched_at)").Row()
	if err := row.Scan(&ts); err != nil {
		return nil, errors.NewPersistence(provider, "failed to read last refresh", err)
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Int64, nil
}

// CountPromotions returns the number of known promotion groups, active or not.
func (s *Store) CountPromotions(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&PromotionGroup{}).Count(&n).Error; err != nil {
		return 0, errors.NewPersistence(provider, "failed to count promotions", err)
	}
	return n, nil
}

// GetPromotion returns the stored group or nil.
func (s *Store) GetPromotion(ctx context.Context, promotionID string) (*PromotionGroup, error) {
	var rows []PromotionGroup
	if err := s.db.WithContext(ctx).Where("promotion_id = ?", promotionID).Limit(1).Find(&rows).Error; err != nil {
		return nil, errors.NewPersistence(provider, "failed to load promotion", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetSale returns the cached sale for a product or nil.
func (s *Store) GetSale(ctx context.Context, picnicID string) (*SaleCacheEntry, error) {
	var rows []SaleCacheEntry
	if err := s.db.WithContext(ctx).Where("picnic_id = ?", picnicID).Limit(1).Find(&rows).Error; err != nil {
		return nil, errors.NewPersistence(provider, "failed to load sale", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package store

// SeedItem is a product the user orders frequently. The crawler reads seeds as
// entry points for promotion discovery and never changes them.
type SeedItem struct {
	ID           uint   `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	PicnicID     string `gorm:"column:picnic_id;not null;index" json:"picnic_id"`
	Name         string `gorm:"column:name;not null" json:"name"`
	ImageID      string `gorm:"column:image_id;not null" json:"image_id"`
	Price        int    `gorm:"column:price;not null" json:"price"`
	UnitQuantity string `gorm:"column:unit_quantity;not null" json:"unit_quantity"`
	Quantity     int    `gorm:"column:quantity;not null" json:"quantity"`
}

func (SeedItem) TableName() string { return "frequent_items" }

// SaleCacheEntry is a product believed to be on sale. One row per product; the
// latest confirmation overwrites every column.
type SaleCacheEntry struct {
	PicnicID   string `gorm:"column:picnic_id;primaryKey" json:"picnic_id"`
	Name       string `gorm:"column:name;not null" json:"name"`
	ImageID    string `gorm:"column:image_id;not null" json:"image_id"`
	Price      int    `gorm:"column:price;not null" json:"price"`
	PromoLabel string `gorm:"column:promo_label;not null" json:"promo_label"`
	FetchedAt  int64  `gorm:"column:fetched_at;not null;index" json:"fetched_at"`
}

func (SaleCacheEntry) TableName() string { return "sale_cache" }

// PromotionGroup is one store promotion, remembered together with the product
// that revealed it so later runs can re-check it with a single PDP fetch.
// LastSeenAt is nil while the promotion is believed inactive.
type PromotionGroup struct {
	PromotionID  string `gorm:"column:promotion_id;primaryKey" json:"promotion_id"`
	SeedPicnicID string `gorm:"column:seed_picnic_id;not null" json:"seed_picnic_id"`
	Label        string `gorm:"column:label;not null" json:"label"`
	FirstSeenAt  int64  `gorm:"column:first_seen_at;not null" json:"first_seen_at"`
	LastSeenAt   *int64 `gorm:"column:last_seen_at;index" json:"last_seen_at"`
	Active       bool   `gorm:"column:active;not null" json:"active"`
}

func (PromotionGroup) TableName() string { return "known_promotions" }

// PromotionUpsert is a partial promotion group write. Nil SeedPicnicID / Label keep
// the stored values; Active and LastSeenAt are always written as given.
type PromotionUpsert struct {
	PromotionID  string
	SeedPicnicID *string
	Label        *string
	Active       bool
	LastSeenAt   *int64
}

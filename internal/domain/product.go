package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry sold in bulk (building blocks, sand, cement).
// Version is bumped on every admin edit and stamped into cart snapshots.
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Title       string          `gorm:"size:200;index" json:"title"`
	Category    string          `gorm:"size:100;index" json:"category"`
	Size        string          `gorm:"size:64" json:"size"`
	Strength    string          `gorm:"size:64" json:"strength"`
	Price       decimal.Decimal `gorm:"type:decimal(14,2)" json:"price"`
	Stock       int             `json:"stock"`
	Images      []string        `gorm:"type:text;serializer:json" json:"images"`
	Available   bool            `gorm:"index" json:"available"`
	MinOrderQty int             `json:"min_order_qty"` // 0 means the configured default
	Version     int64           `json:"version"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName Specify table name
func (Product) TableName() string {
	return "catalog_product"
}

// Purchasable reports whether the product can be held in a cart at all.
func (p Product) Purchasable() bool {
	return p.Available && p.Stock > 0
}

// EffectiveMinOrderQty resolves the per-product floor against the configured default.
func (p Product) EffectiveMinOrderQty(defaultMin int) int {
	if p.MinOrderQty > 0 {
		return p.MinOrderQty
	}
	if defaultMin > 0 {
		return defaultMin
	}
	return 1
}

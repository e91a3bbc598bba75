package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineSnapshot is the copy of product display data held by a cart line.
// ProductVersion is the Product.Version it was copied from.
type LineSnapshot struct {
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	Size           string          `json:"size"`
	Price          decimal.Decimal `json:"price"`
	Strength       string          `json:"strength"`
	Images         []string        `json:"images"`
	Stock          int             `json:"stock"`
	ProductVersion int64           `json:"product_version"`
}

// CartLineItem references a product by id; the cart owns the line exclusively.
type CartLineItem struct {
	ProductRef int64        `json:"product_ref,string"`
	Quantity   int          `json:"quantity"`
	Snapshot   LineSnapshot `json:"snapshot"`
}

// Subtotal is quantity times the snapshot price.
func (l CartLineItem) Subtotal() decimal.Decimal {
	return l.Snapshot.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is stored as a single row with its lines embedded, so a version
// check on the row covers the whole document.
type Cart struct {
	ID        int64          `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	UserID    int64          `gorm:"uniqueIndex" json:"user_id,string"`
	Items     []CartLineItem `gorm:"type:text;serializer:json" json:"items"`
	Version   int64          `json:"version"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName Specify table name
func (Cart) TableName() string {
	return "shop_cart"
}

// Total sums the line subtotals.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// IndexOf returns the position of the line for productRef, or -1.
func (c Cart) IndexOf(productRef int64) int {
	for i, item := range c.Items {
		if item.ProductRef == productRef {
			return i
		}
	}
	return -1
}

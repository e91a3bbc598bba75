package cart

import (
	"github.com/estatehub/marketplace/internal/domain"
)

// Reasons reported in a reconciliation diff.
const (
	ReasonNotFound     = "not_found"
	ReasonOutOfStock   = "out_of_stock"
	ReasonUnavailable  = "unavailable"
	ReasonBelowMinimum = "below_minimum"
	ReasonAboveStock   = "above_stock"
)

// Removal records a line dropped during reconciliation.
type Removal struct {
	ProductRef int64  `json:"product_ref,string"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}

// Clamp records a line whose quantity was moved to satisfy the quantity rules.
type Clamp struct {
	ProductRef int64  `json:"product_ref,string"`
	From       int    `json:"from"`
	To         int    `json:"to"`
	Reason     string `json:"reason"`
}

// Result is the outcome of a reconciliation pass.
type Result struct {
	Items   []domain.CartLineItem
	Removed []Removal
	Clamped []Clamp
	// Changed is false when Items equals the input line for line.
	Changed bool
}

// Reconcile refreshes every line against live products and applies the
// quantity rules. Lines whose product is missing, out of stock or unavailable
// are dropped and reported in Removed. The input slice is not modified.
func Reconcile(items []domain.CartLineItem, products map[int64]domain.Product, defaultMin int) Result {
	res := Result{Items: make([]domain.CartLineItem, 0, len(items))}
	for _, item := range items {
		p, ok := products[item.ProductRef]
		if reason := dropReason(p, ok); reason != "" {
			res.Removed = append(res.Removed, Removal{
				ProductRef: item.ProductRef,
				Title:      item.Snapshot.Title,
				Quantity:   item.Quantity,
				Reason:     reason,
			})
			res.Changed = true
			continue
		}

		next := domain.CartLineItem{
			ProductRef: item.ProductRef,
			Quantity:   ClampQuantity(item.Quantity, p, defaultMin),
			Snapshot:   SnapshotOf(p),
		}
		if next.Quantity != item.Quantity {
			reason := ReasonAboveStock
			if next.Quantity > item.Quantity {
				reason = ReasonBelowMinimum
			}
			res.Clamped = append(res.Clamped, Clamp{
				ProductRef: item.ProductRef,
				From:       item.Quantity,
				To:         next.Quantity,
				Reason:     reason,
			})
		}
		if !sameLine(item, next) {
			res.Changed = true
		}
		res.Items = append(res.Items, next)
	}
	return res
}

func dropReason(p domain.Product, found bool) string {
	switch {
	case !found:
		return ReasonNotFound
	case !p.Available:
		return ReasonUnavailable
	case p.Stock <= 0:
		return ReasonOutOfStock
	}
	return ""
}

// ClampQuantity raises q to the product's minimum order and caps it at stock.
// When stock is below the minimum the remaining lot (all of the stock) is the floor,
// so the result never exceeds stock.
func ClampQuantity(q int, p domain.Product, defaultMin int) int {
	floor := p.EffectiveMinOrderQty(defaultMin)
	if p.Stock < floor {
		floor = p.Stock
	}
	if q < floor {
		q = floor
	}
	if q > p.Stock {
		q = p.Stock
	}
	return q
}

// SnapshotOf copies the display fields of p.
func SnapshotOf(p domain.Product) domain.LineSnapshot {
	return domain.LineSnapshot{
		Title:          p.Title,
		Category:       p.Category,
		Size:           p.Size,
		Price:          p.Price,
		Strength:       p.Strength,
		Images:         append([]string{}, p.Images...),
		Stock:          p.Stock,
		ProductVersion: p.Version,
	}
}

func sameLine(a, b domain.CartLineItem) bool {
	if a.ProductRef != b.ProductRef || a.Quantity != b.Quantity {
		return false
	}
	sa, sb := a.Snapshot, b.Snapshot
	if sa.Title != sb.Title || sa.Category != sb.Category || sa.Size != sb.Size ||
		sa.Strength != sb.Strength || sa.Stock != sb.Stock || sa.ProductVersion != sb.ProductVersion {
		return false
	}
	if !sa.Price.Equal(sb.Price) || len(sa.Images) != len(sb.Images) {
		return false
	}
	for i := range sa.Images {
		if sa.Images[i] != sb.Images[i] {
			return false
		}
	}
	return true
}

// refsOf lists the product refs of items followed by extra, without duplicates.
func refsOf(items []domain.CartLineItem, extra ...int64) []int64 {
	seen := make(map[int64]struct{}, len(items)+len(extra))
	refs := make([]int64, 0, len(items)+len(extra))
	add := func(id int64) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		refs = append(refs, id)
	}
	for _, item := range items {
		add(item.ProductRef)
	}
	for _, id := range extra {
		add(id)
	}
	return refs
}

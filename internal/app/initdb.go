package app

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/pkg/common"
)

// checkProducts seeds the default block catalog when the catalog is empty
func (a *Application) checkProducts() {
	var count int64
	if err := a.gormDB.Model(&domain.Product{}).Count(&count).Error; err != nil {
		zap.L().Error("failed to count catalog products", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	defaultProducts := []domain.Product{
		{Title: "Hollow Block 6 inch", Category: "Blocks", Size: "6 inch", Strength: "3.5 N/mm2", Price: decimal.RequireFromString("450"), Stock: 5000, Images: []string{"/uploads/blocks/hollow-6.jpg"}},
		{Title: "Hollow Block 9 inch", Category: "Blocks", Size: "9 inch", Strength: "5 N/mm2", Price: decimal.RequireFromString("550"), Stock: 5000, Images: []string{"/uploads/blocks/hollow-9.jpg"}},
		{Title: "Solid Block 9 inch", Category: "Blocks", Size: "9 inch", Strength: "7 N/mm2", Price: decimal.RequireFromString("650"), Stock: 2000, Images: []string{"/uploads/blocks/solid-9.jpg"}},
		{Title: "Interlocking Paver", Category: "Pavers", Size: "200x100x60 mm", Strength: "25 N/mm2", Price: decimal.RequireFromString("120"), Stock: 10000, MinOrderQty: 500},
	}

	for _, p := range defaultProducts {
		now := time.Now()
		p.ID = common.UUIDint64()
		p.Available = true
		p.Version = 1
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := a.gormDB.Create(&p).Error; err != nil {
			zap.L().Error("failed to create default product", zap.String("title", p.Title), zap.Error(err))
		} else {
			zap.L().Info("initialized default product", zap.String("title", p.Title))
		}
	}
}

package adminapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/internal/webserver"
	"github.com/estatehub/marketplace/pkg/common"
)

type productPayload struct {
	Title       string          `json:"title" validate:"required,min=1,max=200"`
	Category    string          `json:"category" validate:"required,min=1,max=100"`
	Size        string          `json:"size" validate:"omitempty,max=64"`
	Strength    string          `json:"strength" validate:"omitempty,max=64"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" validate:"gte=0"`
	Images      []string        `json:"images" validate:"omitempty,max=20"`
	Available   *bool           `json:"available"`
	MinOrderQty int             `json:"min_order_qty" validate:"gte=0"`
	// Version, when set, must match the stored version.
	Version int64 `json:"version" validate:"gte=0"`
}

type stockPayload struct {
	Stock *int `json:"stock" validate:"omitempty,gte=0"`
	Delta *int `json:"delta"`
}

type productView struct {
	domain.Product
	ImageURLs []string `json:"image_urls"`
}

// registerCatalogRoutes registers block catalog endpoints; writes are admin only
func registerCatalogRoutes() {
	webserver.ApiGET("/catalog/blocks", listProducts)
	webserver.ApiGET("/catalog/blocks/:id", getProduct)
	webserver.ApiPOST("/catalog/blocks", createProduct, webserver.RequireAdmin)
	webserver.ApiPUT("/catalog/blocks/:id", updateProduct, webserver.RequireAdmin)
	webserver.ApiDELETE("/catalog/blocks/:id", deleteProduct, webserver.RequireAdmin)
	webserver.ApiPOST("/catalog/blocks/:id/stock", adjustProductStock, webserver.RequireAdmin)
}

func viewOf(c echo.Context, p domain.Product) productView {
	base := GetAppContext(c).Config().Web.AssetBaseURL
	urls := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		urls = append(urls, common.PublicImageURL(base, img))
	}
	return productView{Product: p, ImageURLs: urls}
}

func listProducts(c echo.Context) error {
	page, pageSize := parsePagination(c)
	principal, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}

	q := strings.TrimSpace(c.QueryParam("q"))
	category := strings.TrimSpace(c.QueryParam("category"))

	sortField := strings.TrimSpace(c.QueryParam("sort"))
	order := strings.ToUpper(strings.TrimSpace(c.QueryParam("order")))
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	// whitelist allowed sort columns to avoid SQL injection
	allowed := map[string]string{
		"id":         "id",
		"title":      "title",
		"price":      "price",
		"stock":      "stock",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}
	sortCol, found := allowed[sortField]
	if !found {
		sortCol = "created_at"
	}

	db := GetDB(c).Model(&domain.Product{})
	if q != "" {
		if strings.EqualFold(db.Name(), "postgres") {
			db = db.Where("title ILIKE ? OR category ILIKE ?", "%"+q+"%", "%"+q+"%")
		} else {
			db = db.Where("LOWER(title) LIKE ? OR LOWER(category) LIKE ?", "%"+strings.ToLower(q)+"%", "%"+strings.ToLower(q)+"%")
		}
	}
	if category != "" {
		db = db.Where("category = ?", common.TitleCase(category))
	}
	if !principal.IsAdmin() {
		db = db.Where("available = ?", true)
	} else if v := c.QueryParam("available"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			db = db.Where("available = ?", b)
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", nil)
	}

	var rows []domain.Product
	if err := db.Order(sortCol + " " + order).Order("id DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&rows).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query products", nil)
	}

	views := make([]productView, 0, len(rows))
	for _, p := range rows {
		views = append(views, viewOf(c, p))
	}
	return paged(c, views, total, page, pageSize)
}

func getProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", nil)
	}
	return ok(c, viewOf(c, p))
}

// bindProduct parses and validates the payload and returns it normalised.
func bindProduct(c echo.Context) (*productPayload, error) {
	var payload productPayload
	if err := c.Bind(&payload); err != nil {
		return nil, fail(c, http.StatusBadRequest, "INVALID_INPUT", "Unable to parse product", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return nil, handleValidationError(c, err)
	}
	if payload.Price.IsNegative() {
		return nil, fail(c, http.StatusBadRequest, "INVALID_INPUT", "Price must be >= 0", nil)
	}
	payload.Title = strings.TrimSpace(payload.Title)
	payload.Category = common.TitleCase(payload.Category)
	payload.Size = strings.TrimSpace(payload.Size)
	payload.Strength = strings.TrimSpace(payload.Strength)
	payload.Images = common.NormalizeImagePaths(payload.Images)
	payload.Price = payload.Price.Round(2)
	if payload.Title == "" || payload.Category == "" {
		return nil, fail(c, http.StatusBadRequest, "INVALID_INPUT", "Title and category are required", nil)
	}
	return &payload, nil
}

func createProduct(c echo.Context) error {
	payload, err := bindProduct(c)
	if payload == nil {
		return err
	}

	now := time.Now()
	p := domain.Product{
		ID:          common.UUIDint64(),
		Title:       payload.Title,
		Category:    payload.Category,
		Size:        payload.Size,
		Strength:    payload.Strength,
		Price:       payload.Price,
		Stock:       payload.Stock,
		Images:      payload.Images,
		Available:   payload.Available == nil || *payload.Available,
		MinOrderQty: payload.MinOrderQty,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := GetDB(c).Create(&p).Error; err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create product", nil)
	}
	zap.L().Info("catalog product created", zap.String("namespace", "catalog"), zap.Int64("id", p.ID), zap.String("title", p.Title))
	return ok(c, viewOf(c, p))
}

func updateProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	var p domain.Product
	if err := GetDB(c).Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", nil)
	}

	payload, err := bindProduct(c)
	if payload == nil {
		return err
	}
	if payload.Version > 0 && payload.Version != p.Version {
		return fail(c, http.StatusConflict, "CONFLICT", "Product was modified, reload and retry", nil)
	}

	expected := p.Version
	p.Title = payload.Title
	p.Category = payload.Category
	p.Size = payload.Size
	p.Strength = payload.Strength
	p.Price = payload.Price
	p.Stock = payload.Stock
	p.Images = payload.Images
	if payload.Available != nil {
		p.Available = *payload.Available
	}
	p.MinOrderQty = payload.MinOrderQty
	p.Version = expected + 1
	p.UpdatedAt = time.Now()

	res := GetDB(c).Model(&p).
		Where("version = ?", expected).
		Select("title", "category", "size", "strength", "price", "stock", "images", "available", "min_order_qty", "version", "updated_at").
		Updates(&p)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update product", nil)
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusConflict, "CONFLICT", "Product was modified, reload and retry", nil)
	}
	return ok(c, viewOf(c, p))
}

// adjustProductStock sets stock absolutely or moves it by delta; stock never goes negative.
func adjustProductStock(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	var payload stockPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Unable to parse stock update", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	if (payload.Stock == nil) == (payload.Delta == nil) {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Exactly one of stock or delta is required", nil)
	}

	db := GetDB(c)
	query := db.Model(&domain.Product{}).Where("id = ?", id)
	updates := map[string]interface{}{
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	if payload.Stock != nil {
		updates["stock"] = *payload.Stock
	} else {
		query = query.Where("stock + ? >= 0", *payload.Delta)
		updates["stock"] = gorm.Expr("stock + ?", *payload.Delta)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update stock", nil)
	}

	var p domain.Product
	if err := db.Where("id = ?", id).First(&p).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	} else if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query product", nil)
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusConflict, "CONFLICT", "Stock cannot go below zero", map[string]int{"stock": p.Stock})
	}
	zap.L().Info("catalog stock adjusted",
		zap.String("namespace", "catalog"),
		zap.Int64("id", p.ID),
		zap.Int("stock", p.Stock),
		zap.Int64("version", p.Version))
	return ok(c, viewOf(c, p))
}

func deleteProduct(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	res := GetDB(c).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to delete product", nil)
	}
	if res.RowsAffected == 0 {
		return fail(c, http.StatusNotFound, "NOT_FOUND", "Product not found", nil)
	}
	return ok(c, map[string]interface{}{"id": strconv.FormatInt(id, 10)})
}

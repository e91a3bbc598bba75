package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/config"
	"github.com/estatehub/marketplace/internal/app"
	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/internal/testutil"
	"github.com/estatehub/marketplace/internal/webserver"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool                   `json:"success"`
	Data    json.RawMessage        `json:"data"`
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Meta    map[string]interface{} `json:"meta"`
}

type cartData struct {
	Cart struct {
		Items []struct {
			ProductRef string `json:"product_ref"`
			Quantity   int    `json:"quantity"`
			Snapshot   struct {
				Stock int    `json:"stock"`
				Price string `json:"price"`
			} `json:"snapshot"`
		} `json:"items"`
	} `json:"cart"`
	Removed []map[string]interface{} `json:"removed"`
	Clamped []map[string]interface{} `json:"clamped"`
	Total   string                   `json:"total"`
}

func newTestServer(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := *config.DefaultAppConfig
	cfg.Web.Secret = testSecret
	cfg.Web.AssetBaseURL = "https://cdn.example.com"
	cfg.Mail = config.MailConfig{Workers: 1}
	cfg.Cart = config.CartConfig{MinOrderQty: 200, MaxRetries: 3}

	db := testutil.NewDB(t)
	application := app.NewApplication(&cfg)
	application.OverrideDB(db)
	t.Cleanup(application.Release)

	webserver.Init(application)
	Init()
	return db
}

func tokenFor(t *testing.T, userID int64, role string) string {
	t.Helper()
	s, err := webserver.SignToken(testSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return s
}

func do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	webserver.Handler().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func seedProduct(t *testing.T, db *gorm.DB, id int64, stock int, available bool) {
	t.Helper()
	p := domain.Product{
		ID:        id,
		Title:     "Hollow Block 6 inch",
		Category:  "Blocks",
		Size:      "6 inch",
		Price:     decimal.RequireFromString("450"),
		Stock:     stock,
		Images:    []string{"/uploads/blocks/b.jpg"},
		Available: true,
		Version:   1,
	}
	require.NoError(t, db.Create(&p).Error)
	if !available {
		require.NoError(t, db.Model(&domain.Product{}).Where("id = ?", id).Update("available", false).Error)
	}
}

func decodeCart(t *testing.T, env envelope) cartData {
	t.Helper()
	var data cartData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestRequiresToken(t *testing.T) {
	newTestServer(t)

	rec, env := do(t, http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, env.Success)

	rec, _ = do(t, http.MethodGet, "/api/v1/cart", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := webserver.SignToken("other-secret", 7, webserver.RoleAdmin, time.Hour)
	require.NoError(t, err)
	rec, _ = do(t, http.MethodGet, "/api/v1/cart", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartEndpoints(t *testing.T) {
	db := newTestServer(t)
	seedProduct(t, db, 101, 1000, true)
	user := tokenFor(t, 7, webserver.RoleUser)

	rec, env := do(t, http.MethodGet, "/api/v1/cart", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Empty(t, decodeCart(t, env).Cart.Items)

	rec, env = do(t, http.MethodPost, "/api/v1/cart", user, map[string]interface{}{"productRef": "101", "quantity": 50})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeCart(t, env)
	require.Len(t, data.Cart.Items, 1)
	assert.Equal(t, "101", data.Cart.Items[0].ProductRef)
	assert.Equal(t, 200, data.Cart.Items[0].Quantity)
	assert.Equal(t, "90000", data.Total)

	rec, env = do(t, http.MethodPost, "/api/v1/cart", user, map[string]interface{}{"product_ref": 101, "quantity": "50"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 250, decodeCart(t, env).Cart.Items[0].Quantity)

	rec, env = do(t, http.MethodPut, "/api/v1/cart/101", user, map[string]interface{}{"quantity": 5000})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1000, decodeCart(t, env).Cart.Items[0].Quantity)

	require.NoError(t, db.Model(&domain.Product{}).Where("id = ?", 101).Update("stock", 100).Error)
	rec, env = do(t, http.MethodGet, "/api/v1/cart", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = decodeCart(t, env)
	assert.Equal(t, 100, data.Cart.Items[0].Quantity)
	assert.Equal(t, 100, data.Cart.Items[0].Snapshot.Stock)
	require.Len(t, data.Clamped, 1)

	rec, env = do(t, http.MethodDelete, "/api/v1/cart/999", user, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", env.Error)

	rec, env = do(t, http.MethodDelete, "/api/v1/cart/101", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeCart(t, env).Cart.Items)

	rec, _ = do(t, http.MethodDelete, "/api/v1/cart", user, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCartInputErrors(t *testing.T) {
	db := newTestServer(t)
	seedProduct(t, db, 101, 1000, true)
	seedProduct(t, db, 102, 1000, false)
	user := tokenFor(t, 7, webserver.RoleUser)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"fractional quantity", http.MethodPost, "/api/v1/cart", map[string]interface{}{"productRef": "101", "quantity": 2.5}, http.StatusBadRequest, "INVALID_INPUT"},
		{"zero quantity", http.MethodPost, "/api/v1/cart", map[string]interface{}{"productRef": "101", "quantity": 0}, http.StatusBadRequest, "INVALID_INPUT"},
		{"text quantity", http.MethodPost, "/api/v1/cart", map[string]interface{}{"productRef": "101", "quantity": "lots"}, http.StatusBadRequest, "INVALID_INPUT"},
		{"missing ref", http.MethodPost, "/api/v1/cart", map[string]interface{}{"quantity": 200}, http.StatusBadRequest, "INVALID_INPUT"},
		{"malformed ref", http.MethodPut, "/api/v1/cart/abc", map[string]interface{}{"quantity": 200}, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown product", http.MethodPost, "/api/v1/cart", map[string]interface{}{"productRef": "404"}, http.StatusNotFound, "NOT_FOUND"},
		{"unavailable product", http.MethodPost, "/api/v1/cart", map[string]interface{}{"productRef": "102"}, http.StatusConflict, "UNAVAILABLE"},
		{"update line not in cart", http.MethodPut, "/api/v1/cart/101", map[string]interface{}{"quantity": 300}, http.StatusNotFound, "NOT_FOUND"},
		{"update without quantity", http.MethodPut, "/api/v1/cart/101", nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"broken json", http.MethodPost, "/api/v1/cart", "{", http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, tt.method, tt.path, user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			if tt.code != "" {
				assert.Equal(t, tt.code, env.Error)
			}
		})
	}
}

func TestCatalogEndpoints(t *testing.T) {
	newTestServer(t)
	admin := tokenFor(t, 1, webserver.RoleAdmin)
	user := tokenFor(t, 7, webserver.RoleUser)

	payload := map[string]interface{}{
		"title":    "Solid Block 9 inch",
		"category": "  solid   blocks ",
		"size":     "9 inch",
		"strength": "7 N/mm2",
		"price":    "650.5",
		"stock":    300,
		"images":   []string{"public\\blocks\\solid.jpg", "https://img.example.com/x.png", ""},
	}
	rec, _ := do(t, http.MethodPost, "/api/v1/catalog/blocks", user, payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := do(t, http.MethodPost, "/api/v1/catalog/blocks", admin, payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ID        string   `json:"id"`
		Category  string   `json:"category"`
		Images    []string `json:"images"`
		ImageURLs []string `json:"image_urls"`
		Version   int64    `json:"version"`
		Available bool     `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Solid Blocks", created.Category)
	assert.Equal(t, []string{"/uploads/blocks/solid.jpg", "https://img.example.com/x.png"}, created.Images)
	assert.Equal(t, "https://cdn.example.com/uploads/blocks/solid.jpg", created.ImageURLs[0])
	assert.Equal(t, int64(1), created.Version)
	assert.True(t, created.Available)

	base := "/api/v1/catalog/blocks/" + created.ID

	rec, _ = do(t, http.MethodPost, base+"/stock", admin, map[string]interface{}{"delta": -500})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, env = do(t, http.MethodPost, base+"/stock", admin, map[string]interface{}{"delta": -100})
	require.Equal(t, http.StatusOK, rec.Code)
	var stocked struct {
		Stock   int   `json:"stock"`
		Version int64 `json:"version"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &stocked))
	assert.Equal(t, 200, stocked.Stock)
	assert.Equal(t, int64(2), stocked.Version)

	rec, _ = do(t, http.MethodPost, base+"/stock", admin, map[string]interface{}{"delta": 1, "stock": 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	payload["available"] = false
	payload["version"] = 1
	rec, _ = do(t, http.MethodPut, base, admin, payload)
	assert.Equal(t, http.StatusConflict, rec.Code, "stale version is rejected")

	payload["version"] = 2
	rec, _ = do(t, http.MethodPut, base, admin, payload)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = do(t, http.MethodGet, "/api/v1/catalog/blocks", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), env.Meta["total"], "unavailable products are hidden from customers")

	rec, env = do(t, http.MethodGet, "/api/v1/catalog/blocks?q=solid", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), env.Meta["total"])

	rec, _ = do(t, http.MethodDelete, base, admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, http.MethodGet, base, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, http.MethodDelete, base, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCatalogValidation(t *testing.T) {
	newTestServer(t)
	admin := tokenFor(t, 1, webserver.RoleAdmin)

	rec, env := do(t, http.MethodPost, "/api/v1/catalog/blocks", admin, map[string]interface{}{"category": "Blocks", "stock": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_INPUT", env.Error)

	rec, _ = do(t, http.MethodPost, "/api/v1/catalog/blocks", admin, map[string]interface{}{"title": "x", "category": "Blocks", "price": "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, http.MethodPost, "/api/v1/catalog/blocks", admin, map[string]interface{}{"title": "x", "category": "Blocks", "stock": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseIDParam(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", ""} {
		c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, err := parseIDParam(c, "id")
		require.Error(t, err, raw)
		assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err), raw)
	}

	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(" 12 ")
	id, err := parseIDParam(c, "id")
	require.NoError(t, err)
	assert.Equal(t, int64(12), id)
}

func TestMalformedIDs(t *testing.T) {
	newTestServer(t)
	admin := tokenFor(t, 1, webserver.RoleAdmin)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"get block", http.MethodGet, "/api/v1/catalog/blocks/abc", nil},
		{"update block", http.MethodPut, "/api/v1/catalog/blocks/0", map[string]interface{}{"title": "x"}},
		{"delete block", http.MethodDelete, "/api/v1/catalog/blocks/-1", nil},
		{"adjust stock", http.MethodPost, "/api/v1/catalog/blocks/abc/stock", map[string]interface{}{"delta": 1}},
		{"get request", http.MethodGet, "/api/v1/intake/abc", nil},
		{"cancel request", http.MethodPost, "/api/v1/intake/0/cancel", nil},
		{"transition request", http.MethodPost, "/api/v1/intake/abc/transition", map[string]interface{}{"status": "reviewing"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, tt.method, tt.path, admin, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.False(t, env.Success)
			assert.Equal(t, "INVALID_INPUT", env.Error)
		})
	}
}

func TestIntakeEndpoints(t *testing.T) {
	newTestServer(t)
	admin := tokenFor(t, 1, webserver.RoleAdmin)
	owner := tokenFor(t, 7, webserver.RoleUser)
	other := tokenFor(t, 8, webserver.RoleUser)

	body := map[string]interface{}{
		"contact_name":  "Ada Obi",
		"contact_email": "ada@example.com",
		"details": map[string]interface{}{
			"plot_number":  "LA/123",
			"location":     "Ikeja",
			"land_use":     "residential",
			"title_holder": "Ada Obi",
		},
	}
	rec, _ := do(t, http.MethodPost, "/api/v1/intake/mortgage", owner, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := do(t, http.MethodPost, "/api/v1/intake/cofo", owner, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		ID           string   `json:"id"`
		Status       string   `json:"status"`
		NextStatuses []string `json:"next_statuses"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "pending", created.Status)
	assert.ElementsMatch(t, []string{"processing", "rejected", "cancelled"}, created.NextStatuses)

	base := "/api/v1/intake/" + created.ID

	rec, _ = do(t, http.MethodGet, base, other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, http.MethodGet, base, owner, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, http.MethodPost, base+"/transition", owner, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = do(t, http.MethodPost, base+"/transition", admin, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", env.Error)

	rec, _ = do(t, http.MethodPost, base+"/transition", admin, map[string]string{"status": "processing", "note": "assigned"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, http.MethodPost, base+"/cancel", owner, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "only pending requests can be cancelled")

	rec, env = do(t, http.MethodGet, "/api/v1/intake", other, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), env.Meta["total"])

	rec, env = do(t, http.MethodGet, "/api/v1/intake?kind=cofo&status=processing", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), env.Meta["total"])

	rec, _ = do(t, http.MethodGet, "/api/v1/intake/export/cofo", owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = do(t, http.MethodGet, "/api/v1/intake/export/cofo", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "intake-cofo-")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestMetricsEndpoint(t *testing.T) {
	newTestServer(t)
	admin := tokenFor(t, 1, webserver.RoleAdmin)
	user := tokenFor(t, 7, webserver.RoleUser)

	rec, _ := do(t, http.MethodGet, "/api/v1/system/metrics/cart_lines_clamped", user, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env := do(t, http.MethodGet, "/api/v1/system/metrics/cart_lines_clamped", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	rec, _ = do(t, http.MethodGet, "/api/v1/system/metrics/Bad-Name", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, http.MethodGet, "/api/v1/system/metrics/mail_sent?start=2026-01-02&end=2026-01-01", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

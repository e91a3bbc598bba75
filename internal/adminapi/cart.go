package adminapi

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/cart"
	"github.com/estatehub/marketplace/internal/webserver"
)

// maxExactJSONInt is the largest integer a JSON number carries without loss.
const maxExactJSONInt = 1 << 53

// Quantities and refs are decoded loosely so that 2.5 or "abc" can be
// reported as invalid input instead of a bind error.
type cartItemPayload struct {
	ProductRef      interface{} `json:"productRef"`
	ProductRefSnake interface{} `json:"product_ref"`
	Quantity        interface{} `json:"quantity"`
}

type cartResponse struct {
	*cart.View
	Total       decimal.Decimal `json:"total"`
	MinOrderQty int             `json:"min_order_qty"`
}

func registerCartRoutes() {
	webserver.ApiGET("/cart", getCart)
	webserver.ApiPOST("/cart", addCartItem)
	webserver.ApiDELETE("/cart", clearCart)
	webserver.ApiPUT("/cart/:productRef", updateCartItem)
	webserver.ApiDELETE("/cart/:productRef", removeCartItem)
}

func cartResult(c echo.Context, view *cart.View, err error) error {
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, cartResponse{
		View:        view,
		Total:       view.Cart.Total(),
		MinOrderQty: GetAppContext(c).CartService().MinOrderQty(),
	})
}

func getCart(c echo.Context) error {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}
	view, err := GetAppContext(c).CartService().Get(c.Request().Context(), p.UserID)
	return cartResult(c, view, err)
}

func addCartItem(c echo.Context) error {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}
	var payload cartItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, string(apperr.CodeInvalidInput), "Unable to parse cart item", nil)
	}
	raw := payload.ProductRef
	if raw == nil {
		raw = payload.ProductRefSnake
	}
	ref, err := parseProductRef(raw)
	if err != nil {
		return failErr(c, err)
	}
	var qty *int
	if payload.Quantity != nil {
		q, err := parseQuantity(payload.Quantity)
		if err != nil {
			return failErr(c, err)
		}
		qty = &q
	}
	view, err := GetAppContext(c).CartService().AddItem(c.Request().Context(), p.UserID, ref, qty)
	return cartResult(c, view, err)
}

func updateCartItem(c echo.Context) error {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}
	ref, err := parseProductRef(c.Param("productRef"))
	if err != nil {
		return failErr(c, err)
	}
	var payload cartItemPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, string(apperr.CodeInvalidInput), "Unable to parse cart item", nil)
	}
	if payload.Quantity == nil {
		return failErr(c, apperr.InvalidInput("quantity is required"))
	}
	qty, err := parseQuantity(payload.Quantity)
	if err != nil {
		return failErr(c, err)
	}
	view, err := GetAppContext(c).CartService().UpdateItem(c.Request().Context(), p.UserID, ref, qty)
	return cartResult(c, view, err)
}

func removeCartItem(c echo.Context) error {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}
	ref, err := parseProductRef(c.Param("productRef"))
	if err != nil {
		return failErr(c, err)
	}
	view, err := GetAppContext(c).CartService().RemoveItem(c.Request().Context(), p.UserID, ref)
	return cartResult(c, view, err)
}

func clearCart(c echo.Context) error {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return unauthorized(c)
	}
	view, err := GetAppContext(c).CartService().Clear(c.Request().Context(), p.UserID)
	return cartResult(c, view, err)
}

// parseProductRef accepts a decimal string or an exact JSON integer.
func parseProductRef(v interface{}) (int64, error) {
	switch r := v.(type) {
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
		if err != nil || id <= 0 {
			return 0, apperr.Newf(apperr.CodeInvalidInput, "productRef %q is not a valid identifier", r)
		}
		return id, nil
	case float64:
		if r <= 0 || r != math.Trunc(r) || r > maxExactJSONInt {
			return 0, apperr.InvalidInput("productRef is not a valid identifier")
		}
		return int64(r), nil
	case nil:
		return 0, apperr.InvalidInput("productRef is required")
	default:
		return 0, apperr.InvalidInput("productRef is not a valid identifier")
	}
}

// parseQuantity accepts a positive integer given as a JSON number or a decimal string.
func parseQuantity(v interface{}) (int, error) {
	var q float64
	switch r := v.(type) {
	case float64:
		q = r
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return 0, apperr.InvalidInput("quantity must be a positive integer")
		}
		q = float64(n)
	default:
		return 0, apperr.InvalidInput("quantity must be a positive integer")
	}
	if q != math.Trunc(q) || q < 1 || q > math.MaxInt32 {
		return 0, apperr.InvalidInput("quantity must be a positive integer")
	}
	return int(q), nil
}

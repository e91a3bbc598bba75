package adminapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/estatehub/marketplace/internal/app"
	"github.com/estatehub/marketplace/internal/apperr"
	"github.com/estatehub/marketplace/internal/intake"
	"github.com/estatehub/marketplace/internal/webserver"
)

// Response is the envelope of every api response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Meta    *PageMeta   `json:"meta,omitempty"`
}

// PageMeta pagination block of list responses
type PageMeta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func paged(c echo.Context, data interface{}, total int64, page, pageSize int) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta:    &PageMeta{Total: total, Page: page, PageSize: pageSize},
	})
}

func fail(c echo.Context, status int, code, message string, detail interface{}) error {
	return c.JSON(status, Response{Success: false, Error: code, Message: message, Details: detail})
}

// failErr renders a service error with its mapped status. Internal causes are
// logged, never returned to the client.
func failErr(c echo.Context, err error) error {
	code := apperr.CodeOf(err)
	if code == apperr.CodeInternal {
		zap.L().Error("request failed",
			zap.String("namespace", "api"),
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return fail(c, apperr.HTTPStatus(code), string(code), apperr.PublicMessage(err), nil)
}

func GetAppContext(c echo.Context) app.AppContext {
	return c.Get(webserver.AppContextKey).(app.AppContext)
}

func GetDB(c echo.Context) *gorm.DB {
	return GetAppContext(c).DB().WithContext(c.Request().Context())
}

// currentActor resolves the token principal; handlers behind the jwt group always have one.
func currentActor(c echo.Context) (intake.Actor, error) {
	p, err := webserver.CurrentPrincipal(c)
	if err != nil {
		return intake.Actor{}, err
	}
	return intake.Actor{UserID: p.UserID, Admin: p.IsAdmin()}, nil
}

func unauthorized(c echo.Context) error {
	return fail(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid token", nil)
}

func parsePagination(c echo.Context) (int, int) {
	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize := 20
	raw := c.QueryParam("perPage")
	if raw == "" {
		raw = c.QueryParam("pageSize")
	}
	if ps, err := strconv.Atoi(raw); err == nil && ps > 0 {
		pageSize = ps
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return page, pageSize
}

func parseIDParam(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Newf(apperr.CodeInvalidInput, "invalid %s", name)
	}
	return id, nil
}

func handleValidationError(c echo.Context, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fail(c, http.StatusBadRequest, string(apperr.CodeInvalidInput), "Invalid request parameters", err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Param() != "" {
			fields[field] = fmt.Sprintf("failed on %s=%s", fe.Tag(), fe.Param())
		} else {
			fields[field] = fmt.Sprintf("failed on %s", fe.Tag())
		}
	}
	return fail(c, http.StatusBadRequest, string(apperr.CodeInvalidInput), "Invalid request parameters", fields)
}

// Init registers every api route on the web server
func Init() {
	registerCartRoutes()
	registerCatalogRoutes()
	registerIntakeRoutes()
	registerMetricsRoutes()
}

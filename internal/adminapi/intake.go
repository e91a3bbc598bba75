package adminapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/estatehub/marketplace/internal/domain"
	"github.com/estatehub/marketplace/internal/intake"
	"github.com/estatehub/marketplace/internal/webserver"
)

type intakePayload struct {
	ContactName  string                 `json:"contact_name" validate:"required,max=200"`
	ContactEmail string                 `json:"contact_email" validate:"required,max=200"`
	ContactPhone string                 `json:"contact_phone" validate:"omitempty,max=64"`
	Details      map[string]interface{} `json:"details"`
	Attachments  []string               `json:"attachments"`
}

type transitionPayload struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"omitempty,max=1000"`
}

type intakeView struct {
	domain.IntakeRequest
	NextStatuses []domain.IntakeStatus `json:"next_statuses"`
}

func registerIntakeRoutes() {
	webserver.ApiGET("/intake", listIntakeRequests)
	webserver.ApiGET("/intake/export/:kind", exportIntakeRequests, webserver.RequireAdmin)
	webserver.ApiGET("/intake/:id", getIntakeRequest)
	webserver.ApiPOST("/intake/:id/cancel", cancelIntakeRequest)
	webserver.ApiPOST("/intake/:id/transition", transitionIntakeRequest, webserver.RequireAdmin)
	webserver.ApiPOST("/intake/:kind", submitIntakeRequest)
}

func intakeViewOf(req *domain.IntakeRequest) intakeView {
	return intakeView{IntakeRequest: *req, NextStatuses: req.Status.NextStatuses()}
}

func submitIntakeRequest(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return unauthorized(c)
	}
	var payload intakePayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Unable to parse request", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	req, err := GetAppContext(c).IntakeService().Submit(c.Request().Context(), actor, intake.Submission{
		Kind:         domain.IntakeKind(strings.ToLower(c.Param("kind"))),
		ContactName:  payload.ContactName,
		ContactEmail: payload.ContactEmail,
		ContactPhone: payload.ContactPhone,
		Details:      payload.Details,
		Attachments:  payload.Attachments,
	})
	if err != nil {
		return failErr(c, err)
	}
	return c.JSON(http.StatusCreated, Response{Success: true, Data: intakeViewOf(req)})
}

func listIntakeRequests(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return unauthorized(c)
	}
	page, pageSize := parsePagination(c)
	filter := intake.Filter{
		Kind:   domain.IntakeKind(strings.ToLower(strings.TrimSpace(c.QueryParam("kind")))),
		Status: domain.IntakeStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		Query:  strings.TrimSpace(c.QueryParam("q")),
	}
	rows, total, err := GetAppContext(c).IntakeService().List(c.Request().Context(), actor, filter, page, pageSize)
	if err != nil {
		return failErr(c, err)
	}
	views := make([]intakeView, 0, len(rows))
	for i := range rows {
		views = append(views, intakeViewOf(&rows[i]))
	}
	return paged(c, views, total, page, pageSize)
}

func getIntakeRequest(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	req, err := GetAppContext(c).IntakeService().Get(c.Request().Context(), actor, id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, intakeViewOf(req))
}

func cancelIntakeRequest(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	req, err := GetAppContext(c).IntakeService().Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, intakeViewOf(req))
}

func transitionIntakeRequest(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return unauthorized(c)
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return failErr(c, err)
	}
	var payload transitionPayload
	if err := c.Bind(&payload); err != nil {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Unable to parse transition", nil)
	}
	if err := c.Validate(&payload); err != nil {
		return handleValidationError(c, err)
	}
	to := domain.IntakeStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
	req, err := GetAppContext(c).IntakeService().Transition(c.Request().Context(), actor, id, to, payload.Note)
	if err != nil {
		return failErr(c, err)
	}
	return ok(c, intakeViewOf(req))
}

// exportIntakeRequests streams every request of one kind as CSV; kind "all" exports everything.
func exportIntakeRequests(c echo.Context) error {
	kind := strings.ToLower(c.Param("kind"))
	filter := intake.Filter{
		Status: domain.IntakeStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
	}
	if kind != "all" {
		filter.Kind = domain.IntakeKind(kind)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Unknown status", nil)
	}

	var buf bytes.Buffer
	if _, err := GetAppContext(c).IntakeService().ExportCSV(c.Request().Context(), filter, &buf); err != nil {
		return failErr(c, err)
	}
	filename := fmt.Sprintf("intake-%s-%s.csv", kind, time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

package adminapi

import (
	"net/http"
	"regexp"
	"time"

	"github.com/araddon/dateparse"
	"github.com/labstack/echo/v4"

	"github.com/estatehub/marketplace/internal/webserver"
	"github.com/estatehub/marketplace/pkg/metrics"
)

var metricNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

func registerMetricsRoutes() {
	webserver.ApiGET("/system/metrics/:name", getMetric, webserver.RequireAdmin)
}

// getMetric returns the points of one metric with a summary.
// start and end accept any format dateparse understands; the default window is the last hour.
func getMetric(c echo.Context) error {
	name := c.Param("name")
	if !metricNamePattern.MatchString(name) {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid metric name", nil)
	}
	end := time.Now()
	start := end.Add(-time.Hour)
	if v := c.QueryParam("start"); v != "" {
		t, err := dateparse.ParseLocal(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid start time", nil)
		}
		start = t
	}
	if v := c.QueryParam("end"); v != "" {
		t, err := dateparse.ParseLocal(v)
		if err != nil {
			return fail(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid end time", nil)
		}
		end = t
	}
	if !end.After(start) {
		return fail(c, http.StatusBadRequest, "INVALID_INPUT", "end must be after start", nil)
	}

	points, err := metrics.Query(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to query metric", nil)
	}
	summary, err := metrics.Summarize(name, start, end)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "METRICS_ERROR", "Failed to summarize metric", nil)
	}
	if points == nil {
		points = []metrics.Point{}
	}
	return ok(c, map[string]interface{}{
		"metric":  name,
		"counter": metrics.Counter(name),
		"points":  points,
		"summary": summary,
	})
}

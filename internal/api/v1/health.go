package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/australis-energy/leadgate/internal/notification"
)

// HealthResponse reports the gateway and its upstream functions.
type HealthResponse struct {
	Status         string                     `json:"status"`
	Uptime         string                     `json:"uptime"`
	Timestamp      time.Time                  `json:"timestamp"`
	Communications *notification.HealthStatus `json:"communications,omitempty"`
	GeoServices    string                     `json:"geoservices,omitempty"`
}

// Health handles GET /api/v1/health. Upstream probes run only with
// ?deep=true so that load balancer checks stay local.
func (c *Controller) Health(ctx echo.Context) error {
	resp := HealthResponse{
		Status:    notification.HealthHealthy,
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}

	if ctx.QueryParam("deep") != "true" {
		return ctx.JSON(http.StatusOK, resp)
	}

	reqCtx := ctx.Request().Context()
	if c.notifier != nil {
		status := c.notifier.HealthCheck(reqCtx)
		resp.Communications = &status
		if status.Status != notification.HealthHealthy {
			resp.Status = notification.HealthUnhealthy
		}
	}
	if c.geo != nil && c.geo.Configured() {
		if h, err := c.geo.Health(reqCtx); err != nil {
			resp.GeoServices = notification.HealthError
			resp.Status = notification.HealthUnhealthy
		} else {
			resp.GeoServices = h.Status
		}
	}

	code := http.StatusOK
	if resp.Status != notification.HealthHealthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, resp)
}

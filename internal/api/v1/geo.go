package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/australis-energy/leadgate/internal/geoservices"
)

func (c *Controller) initGeoRoutes() {
	g := c.Group.Group("/geo")
	g.POST("/calculate", c.StartCalculation)
	g.GET("/status/:id", c.CalculationStatus)
	g.GET("/calculation-types", c.CalculationTypes)
	g.POST("/validate-geometry", c.ValidateGeometry)
	g.POST("/constraints", c.Constraints)
	g.GET("/health", c.GeoHealth)
}

type geometryBody struct {
	Geometry json.RawMessage `json:"geometry"`
}

// StartCalculation handles POST /api/v1/geo/calculate.
func (c *Controller) StartCalculation(ctx echo.Context) error {
	var req geoservices.CalculationRequest
	if err := json.NewDecoder(ctx.Request().Body).Decode(&req); err != nil {
		return c.HandleError(ctx, err, "Invalid calculation request", http.StatusBadRequest)
	}

	resp, err := c.geo.StartCalculation(ctx.Request().Context(), &req)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to start calculation", statusForError(err))
	}
	return ctx.JSON(http.StatusAccepted, resp)
}

// CalculationStatus handles GET /api/v1/geo/status/:id. With ?wait=true the
// request blocks until the calculation finishes or polling gives up.
func (c *Controller) CalculationStatus(ctx echo.Context) error {
	id := ctx.Param("id")
	reqCtx := ctx.Request().Context()

	var (
		status *geoservices.CalculationStatus
		err    error
	)
	if wait, _ := strconv.ParseBool(ctx.QueryParam("wait")); wait {
		status, err = c.geo.PollForCompletion(reqCtx, id, 0, 0)
	} else {
		status, err = c.geo.CalculationStatus(reqCtx, id)
	}
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get calculation status", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, status)
}

// CalculationTypes handles GET /api/v1/geo/calculation-types.
func (c *Controller) CalculationTypes(ctx echo.Context) error {
	types, err := c.geo.CalculationTypes(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list calculation types", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, map[string]any{"calculationTypes": types})
}

// ValidateGeometry handles POST /api/v1/geo/validate-geometry.
func (c *Controller) ValidateGeometry(ctx echo.Context) error {
	var body geometryBody
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil {
		return c.HandleError(ctx, err, "Invalid geometry request", http.StatusBadRequest)
	}

	result, err := c.geo.ValidateGeometry(ctx.Request().Context(), body.Geometry)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to validate geometry", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, result)
}

// Constraints handles POST /api/v1/geo/constraints.
func (c *Controller) Constraints(ctx echo.Context) error {
	var body geometryBody
	if err := json.NewDecoder(ctx.Request().Body).Decode(&body); err != nil {
		return c.HandleError(ctx, err, "Invalid geometry request", http.StatusBadRequest)
	}

	result, err := c.geo.Constraints(ctx.Request().Context(), body.Geometry)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to fetch constraints", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, result)
}

// GeoHealth handles GET /api/v1/geo/health.
func (c *Controller) GeoHealth(ctx echo.Context) error {
	health, err := c.geo.Health(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "GeoServices health check failed", statusForError(err))
	}
	return ctx.JSON(http.StatusOK, health)
}

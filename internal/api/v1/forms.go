package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/australis-energy/leadgate/internal/logger"
	"github.com/australis-energy/leadgate/internal/notification"
)

const (
	modeParam      = "mode"
	modeOptimistic = "optimistic"
)

func (c *Controller) initFormRoutes() {
	var mws []echo.MiddlewareFunc
	if c.limiter != nil {
		mws = append(mws, c.limiter.Middleware(func(ctx echo.Context) {
			if c.httpMetrics != nil {
				c.httpMetrics.RecordRateLimited(ctx.Path())
			}
			c.log.WithContext(ctx.Request().Context()).Warn("form submission rate limited",
				logger.String("ip", ctx.RealIP()))
		}))
	}

	c.Group.POST("/forms/:category", c.SubmitForm, mws...)
	c.Group.GET("/forms/categories", c.FormCategories)
}

// SubmitForm handles POST /api/v1/forms/:category. The body is a flat JSON
// object of form fields. With ?mode=optimistic the submission is accepted
// immediately and delivered in the background.
func (c *Controller) SubmitForm(ctx echo.Context) error {
	category, err := notification.ParseCategory(ctx.Param("category"))
	if err != nil {
		return ctx.JSON(http.StatusNotFound, notification.Result{Error: err.Error()})
	}

	fields, err := decodeFields(ctx.Request().Body)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, notification.Result{Error: err.Error()})
	}

	reqCtx := ctx.Request().Context()
	var result notification.Result
	if strings.EqualFold(ctx.QueryParam(modeParam), modeOptimistic) {
		result = c.notifier.SendOptimistic(reqCtx, category, fields)
	} else {
		result = c.notifier.Send(reqCtx, category, fields)
	}

	if !result.Success {
		return ctx.JSON(statusForError(result.Err), result)
	}
	return ctx.JSON(http.StatusOK, result)
}

// FormCategories lists the accepted form categories.
func (c *Controller) FormCategories(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"categories": notification.Categories(),
	})
}

// decodeFields reads a flat JSON object. Numbers and booleans are kept in
// their JSON text form; nested values are rejected.
func decodeFields(body io.Reader) (notification.Fields, error) {
	var raw map[string]any
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return notification.Fields{}, nil
		}
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	fields := make(notification.Fields, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case nil:
		case string:
			fields[key] = v
		case json.Number:
			fields[key] = v.String()
		case bool:
			fields[key] = strconv.FormatBool(v)
		default:
			return nil, fmt.Errorf("invalid request body: field %q must be a string", key)
		}
	}
	return fields, nil
}

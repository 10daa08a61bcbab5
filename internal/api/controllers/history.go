package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v5"

	"github.com/datallboy/hydrofetch/internal/app"
	"github.com/datallboy/hydrofetch/internal/domain"
)

const defaultLimit = 50

type HistoryController struct {
	App *app.Context
}

func (ctrl *HistoryController) Health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// ListBatches returns the most recent batches, newest first.
func (ctrl *HistoryController) ListBatches(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store is not configured")
	}

	limit := defaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	batches, err := ctrl.App.Store.ListBatches(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if batches == nil {
		batches = []domain.BatchRecord{}
	}
	return c.JSON(http.StatusOK, batches)
}

func (ctrl *HistoryController) GetBatch(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store is not configured")
	}

	batch, err := ctrl.App.Store.GetBatch(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "batch not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, batch)
}

func (ctrl *HistoryController) ListOutcomes(c *echo.Context) error {
	if ctrl.App.Store == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "history store is not configured")
	}

	ctx := c.Request().Context()
	id := c.Param("id")

	// an unknown batch is a 404, a batch without outcomes is an empty list
	if _, err := ctrl.App.Store.GetBatch(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "batch not found")
		}
		return err
	}

	outcomes, err := ctrl.App.Store.ListOutcomes(ctx, id)
	if err != nil {
		return err
	}
	if outcomes == nil {
		outcomes = []domain.OutcomeRecord{}
	}
	return c.JSON(http.StatusOK, outcomes)
}

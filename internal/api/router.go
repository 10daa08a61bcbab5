package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/datallboy/hydrofetch/internal/api/controllers"
	"github.com/datallboy/hydrofetch/internal/app"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			if app.Logger != nil {
				app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			}
			return nil
		},
	}))

	historyCtrl := &controllers.HistoryController{App: app}

	e.GET("/healthz", historyCtrl.Health)

	// Run history, read only
	e.GET("/api/batches", historyCtrl.ListBatches)
	e.GET("/api/batches/:id", historyCtrl.GetBatch)
	e.GET("/api/batches/:id/outcomes", historyCtrl.ListOutcomes)
}

// Package routes registers the HTTP verb surface (spec.md section 4.7) on
// an *echo.Echo, mirroring the teacher's one-Register*Routes-function
// layout (cmd/orchestrator/routes).
package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/handlers"
)

// Register wires every verb onto a wildcard path: selection (repo/branch)
// is carried by headers/query params, not the URL structure, so one
// catch-all route per verb is sufficient.
func Register(e *echo.Echo, c *httpapi.Container) {
	h := handlers.New(c)

	e.OPTIONS("/*", h.Discover)
	e.GET("/*", h.Read)
	e.PUT("/*", h.Write)
	e.DELETE("/*", h.Delete)
	e.Add("QUERY", "/*", h.Query)
}

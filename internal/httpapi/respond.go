package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/blobstore"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
	"github.com/relayhq/relay/internal/ids"
	"github.com/relayhq/relay/internal/logging"
	"github.com/relayhq/relay/internal/policy"
	"github.com/relayhq/relay/internal/reconciler"
)

// Fail maps err to the status/body table in SPEC_FULL.md section 7 and
// writes the JSON response, the way the teacher's handlers inline
// c.JSON(status, map[string]interface{}{"error": ...}) calls do.
func Fail(c echo.Context, log *logging.Logger, err error) error {
	var rejected *policy.RejectedError
	var hookRejected *hookrunner.RejectedError
	var stale *reconciler.StaleError

	switch {
	case errors.Is(err, ErrBadRequest):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})

	case errors.Is(err, gitstore.ErrNoSuchRef), errors.Is(err, gitstore.ErrNoSuchPath):
		return c.JSON(http.StatusNotFound, map[string]any{"error": err.Error()})

	case errors.As(err, &rejected):
		return c.JSON(http.StatusForbidden, map[string]any{"error": rejected.Reason})

	case errors.As(err, &hookRejected):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": hookRejected.Stderr})

	case errors.Is(err, hookrunner.ErrTimeout):
		return c.JSON(http.StatusGatewayTimeout, map[string]any{"error": err.Error()})

	case errors.As(err, &stale):
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"error":        "index stale",
			"indexed_head": stale.LastIndexedHead,
		})

	case errors.Is(err, blobstore.ErrQuotaExceeded):
		return c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error()})

	case errors.Is(err, gitstore.ErrConflict):
		return c.JSON(http.StatusConflict, map[string]any{"error": err.Error()})

	default:
		correlationID := ids.NewCorrelationID()
		if log != nil {
			log.WithCorrelationID(correlationID).Error("httpapi: internal error", "error", err)
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{
			"error":          "internal error",
			"correlation_id": correlationID,
		})
	}
}

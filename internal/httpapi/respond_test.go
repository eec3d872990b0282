package httpapi

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/policy"
	"github.com/relayhq/relay/internal/reconciler"
)

func newRespondContext() (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestFailMapsBadRequest(t *testing.T) {
	c, rec := newRespondContext()
	require.NoError(t, Fail(c, nil, fmt.Errorf("%w: missing path", ErrBadRequest)))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFailMapsNoSuchRef(t *testing.T) {
	c, rec := newRespondContext()
	require.NoError(t, Fail(c, nil, fmt.Errorf("%w: main", gitstore.ErrNoSuchRef)))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFailMapsPolicyRejection(t *testing.T) {
	c, rec := newRespondContext()
	require.NoError(t, Fail(c, nil, &policy.RejectedError{Reason: "branch protected"}))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFailMapsStaleIndex(t *testing.T) {
	c, rec := newRespondContext()
	require.NoError(t, Fail(c, nil, &reconciler.StaleError{LastIndexedHead: "abc123"}))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "abc123")
}

func TestFailMapsUnclassifiedToInternalError(t *testing.T) {
	c, rec := newRespondContext()
	require.NoError(t, Fail(c, nil, fmt.Errorf("boom")))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "correlation_id")
}

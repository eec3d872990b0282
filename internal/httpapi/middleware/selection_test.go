package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/peersync"
)

func newSelectionContext(e *echo.Echo, req *http.Request) echo.Context {
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestSelectionHeaderTakesPriorityOverQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?repo=fromquery&branch=dev", nil)
	req.Header.Set("X-Relay-Repo", "fromheader")
	c := newSelectionContext(e, req)

	handled := false
	err := Selection()(func(c echo.Context) error {
		handled = true
		require.Equal(t, "fromheader", Repo(c))
		require.Equal(t, "dev", Branch(c))
		return nil
	})(c)
	require.NoError(t, err)
	require.True(t, handled)
}

func TestSelectionDefaultsBranchToMain(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := newSelectionContext(e, req)

	err := Selection()(func(c echo.Context) error {
		require.Equal(t, "main", Branch(c))
		require.Empty(t, Repo(c))
		return nil
	})(c)
	require.NoError(t, err)
}

func TestIsAllBranches(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?branch=all", nil)
	c := newSelectionContext(e, req)

	err := Selection()(func(c echo.Context) error {
		require.True(t, IsAllBranches(c))
		return nil
	})(c)
	require.NoError(t, err)
}

func TestLoopSuppressed(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/", nil)
	c := newSelectionContext(e, req)
	require.False(t, LoopSuppressed(c))

	req2 := httptest.NewRequest(http.MethodPut, "/", nil)
	req2.Header.Set(peersync.LoopMarkerHeader, "1")
	c2 := newSelectionContext(e, req2)
	require.True(t, LoopSuppressed(c2))
}

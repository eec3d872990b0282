package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/relayhq/relay/internal/httpapi/ratelimit"
)

type fakeRunner struct {
	counts map[string]int64
	limit  int64
}

func (f *fakeRunner) RunScript(ctx context.Context, script string, keys []string, args ...any) (any, error) {
	f.counts[keys[0]]++
	count := f.counts[keys[0]]
	if count > f.limit {
		return []any{int64(0), count, f.limit, int64(7)}, nil
	}
	return []any{int64(1), count, f.limit, int64(0)}, nil
}

func withSelectedRepo(e *echo.Echo, req *http.Request, repo string) echo.Context {
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(string(RepoKey), repo)
	return c
}

func TestRateLimitIgnoresReadVerbs(t *testing.T) {
	e := echo.New()
	limiter := ratelimit.New(&fakeRunner{counts: map[string]int64{}, limit: 0}, 0, time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := withSelectedRepo(e, req, "repo1")

	called := false
	err := RateLimit(limiter)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	require.True(t, called, "GET should pass through regardless of limit")
}

func TestRateLimitRejectsOverLimitOnWrite(t *testing.T) {
	e := echo.New()
	runner := &fakeRunner{counts: map[string]int64{}, limit: 1}
	limiter := ratelimit.New(runner, 1, time.Minute)

	req1 := httptest.NewRequest(http.MethodPut, "/", nil)
	c1 := withSelectedRepo(e, req1, "repo1")
	require.NoError(t, RateLimit(limiter)(func(c echo.Context) error { return nil })(c1))

	req2 := httptest.NewRequest(http.MethodPut, "/", nil)
	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req2, rec2)
	c2.Set(string(RepoKey), "repo1")

	called := false
	err := RateLimit(limiter)(func(c echo.Context) error {
		called = true
		return nil
	})(c2)
	require.NoError(t, err)
	require.False(t, called, "expected second write to be rejected, not reach the handler")
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRateLimitFailsOpenWithNoRepoSelected(t *testing.T) {
	e := echo.New()
	runner := &fakeRunner{counts: map[string]int64{}, limit: 0}
	limiter := ratelimit.New(runner, 0, time.Minute)
	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := RateLimit(limiter)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	require.NoError(t, err)
	require.True(t, called, "expected pass-through when no repo is selected")
}

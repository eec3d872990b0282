// Package middleware implements the HTTP surface's cross-cutting concerns
// (spec.md section 4.7): repo/branch selection, permissive CORS plus
// selection echoing, and the loop-suppression marker check.
package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/peersync"
)

// ContextKey namespaces values this middleware stores on echo.Context.
type ContextKey string

const (
	RepoKey   ContextKey = "relay_repo"
	BranchKey ContextKey = "relay_branch"
)

const defaultBranch = "main"

// Selection extracts X-Relay-Repo/X-Relay-Branch (falling back to
// ?repo=/?branch=, default branch "main") and stores them on the request
// context for handlers.
func Selection() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			repo := c.Request().Header.Get("X-Relay-Repo")
			if repo == "" {
				repo = c.QueryParam("repo")
			}
			branch := c.Request().Header.Get("X-Relay-Branch")
			if branch == "" {
				branch = c.QueryParam("branch")
			}
			if branch == "" {
				branch = defaultBranch
			}

			c.Set(string(RepoKey), repo)
			c.Set(string(BranchKey), branch)

			c.Response().Header().Set("X-Relay-Repo", repo)
			c.Response().Header().Set("X-Relay-Branch", branch)
			return next(c)
		}
	}
}

// Repo returns the selected repo name, "" if none was given.
func Repo(c echo.Context) string {
	v, _ := c.Get(string(RepoKey)).(string)
	return v
}

// Branch returns the selected branch name, defaulting to "main".
func Branch(c echo.Context) string {
	v, _ := c.Get(string(BranchKey)).(string)
	if v == "" {
		return defaultBranch
	}
	return v
}

// IsAllBranches reports whether the request selected the special "all"
// branch fan-out value (QUERY only, spec.md section 4.7).
func IsAllBranches(c echo.Context) bool {
	return Branch(c) == "all"
}

// CORS sets the permissive CORS headers spec.md section 4.7 requires on
// every response.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, PUT, DELETE, OPTIONS, QUERY")
			c.Response().Header().Set("Access-Control-Allow-Headers", "*")
			return next(c)
		}
	}
}

// LoopSuppressed reports whether the inbound request carries the
// auto-push loop marker (spec.md section 4.8).
func LoopSuppressed(c echo.Context) bool {
	return c.Request().Header.Get(peersync.LoopMarkerHeader) != ""
}

package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/middleware"
)

// neverFromRepo lists extensions spec.md section 4.7 reserves for the
// static directory only.
var neverFromRepo = map[string]bool{".html": true, ".htm": true, ".js": true}

// Read handles GET (spec.md section 4.7): serve the static directory
// first if configured, else read ref:path from the Repo Store. Directory
// paths return a generated markdown listing; missing paths 404, preferring
// site/404.md from the branch if present.
func (h *Handler) Read(c echo.Context) error {
	repoName := middleware.Repo(c)
	branch := middleware.Branch(c)
	path := strings.TrimPrefix(c.Request().URL.Path, "/")

	ext := filepath.Ext(path)
	if served, err := h.serveStatic(c, path); served {
		return err
	}

	if repoName == "" {
		return httpapi.Fail(c, h.C.Logger, fmt.Errorf("%w: no repo selected", httpapi.ErrBadRequest))
	}
	if neverFromRepo[ext] {
		return h.notFound(c, repoName, branch, path)
	}

	repo, err := h.C.OpenRepo(repoName)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	if path == "" || strings.HasSuffix(path, "/") {
		return h.listDirectory(c, repo, repoName, branch, path)
	}

	data, err := repo.Read(branch, path)
	if err != nil {
		if errors.Is(err, gitstore.ErrNoSuchPath) {
			names, lerr := repo.ListTree(branch)
			if lerr == nil && isDirPrefix(names, path) {
				return h.listDirectory(c, repo, repoName, branch, path+"/")
			}
			return h.notFound(c, repoName, branch, path)
		}
		return httpapi.Fail(c, h.C.Logger, err)
	}
	return c.Blob(http.StatusOK, contentType(path), data)
}

// serveStatic attempts to serve path from each configured static directory
// in order, returning served=true once one of them has a matching file.
func (h *Handler) serveStatic(c echo.Context, path string) (served bool, err error) {
	for _, dir := range h.C.Config.Git.StaticDirs {
		full := filepath.Join(dir, filepath.Clean("/"+path))
		if !strings.HasPrefix(full, filepath.Clean(dir)) {
			continue
		}
		data, rerr := os.ReadFile(full)
		if rerr != nil {
			continue
		}
		return true, c.Blob(http.StatusOK, contentType(path), data)
	}
	return false, nil
}

func (h *Handler) notFound(c echo.Context, repoName, branch, path string) error {
	if repoName != "" {
		if repo, err := h.C.OpenRepo(repoName); err == nil {
			if body, err := repo.Read(branch, "site/404.md"); err == nil {
				return c.Blob(http.StatusNotFound, "text/markdown; charset=utf-8", body)
			}
		}
	}
	return c.JSON(http.StatusNotFound, map[string]any{"error": fmt.Sprintf("no such path: %s", path)})
}

// listDirectory renders a markdown listing of every immediate child of dir
// in ref's current tree (spec.md section 4.7, "directory paths return a
// generated markdown listing").
func (h *Handler) listDirectory(c echo.Context, repo *gitstore.Repo, repoName, branch, dir string) error {
	names, err := repo.ListTree(branch)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}
	dir = strings.Trim(dir, "/")

	seen := map[string]bool{}
	var entries []string
	for _, name := range names {
		rel := name
		if dir != "" {
			if !strings.HasPrefix(name, dir+"/") {
				continue
			}
			rel = strings.TrimPrefix(name, dir+"/")
		}
		if rel == "" {
			continue
		}
		child := strings.SplitN(rel, "/", 2)[0]
		if !seen[child] {
			seen[child] = true
			entries = append(entries, child)
		}
	}
	sort.Strings(entries)

	var b strings.Builder
	title := dir
	if title == "" {
		title = "/"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s](%s/%s)\n", e, title, e)
	}
	return c.Blob(http.StatusOK, "text/markdown; charset=utf-8", []byte(b.String()))
}

func isDirPrefix(names []string, dir string) bool {
	prefix := dir + "/"
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			return true
		}
	}
	return false
}

func contentType(path string) string {
	switch filepath.Ext(path) {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".css":
		return "text/css"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/branchindex"
	"github.com/relayhq/relay/internal/branchindex/query"
	"github.com/relayhq/relay/internal/docval"
	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/middleware"
)

type sortReq struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

type queryRequest struct {
	Filter   map[string]any `json:"filter"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Sort     []sortReq      `json:"sort"`
}

type queryResponse struct {
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
	Items    []docval.Value  `json:"items"`
}

// Query handles the QUERY verb (spec.md section 4.7): the URL path names
// the collection; the body carries filter/page/pageSize/sort. Invokes the
// JIT Reconciler before answering, fanning out across every branch when
// branch=all.
func (h *Handler) Query(c echo.Context) error {
	repoName := middleware.Repo(c)
	collection := strings.Trim(strings.TrimPrefix(c.Request().URL.Path, "/"), "/")
	if repoName == "" || collection == "" {
		return httpapi.Fail(c, h.C.Logger, fmt.Errorf("%w: repo and collection are required", httpapi.ErrBadRequest))
	}

	var req queryRequest
	req.PageSize = 25
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return httpapi.Fail(c, h.C.Logger, fmt.Errorf("%w: decode body: %v", httpapi.ErrBadRequest, err))
		}
	}
	if req.PageSize <= 0 {
		req.PageSize = 25
	}

	filter := query.Filter{}
	for k, v := range req.Filter {
		filter[k] = docval.FromAny(v)
	}
	var sorts []branchindex.SortSpec
	for _, s := range req.Sort {
		sorts = append(sorts, branchindex.SortSpec{Field: s.Field, Desc: s.Dir == "desc"})
	}

	repo, err := h.C.OpenRepo(repoName)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}
	cfg, err := h.C.LoadPolicy(repo, middleware.Branch(c))
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}
	_, ipfsRaw, err := h.C.LoadIpfsConfig(repo, middleware.Branch(c))
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}
	paths := h.C.SandboxPaths(repo, repoName, cfg.Quota.Bytes, ipfsRaw)

	ctx := c.Request().Context()
	owner := c.Response().Header().Get(echo.HeaderXRequestID)

	var items []docval.Value
	if middleware.IsAllBranches(c) {
		locked, lerr := h.C.Locker.TryLock(ctx, repoName, "*", owner)
		if lerr != nil {
			return httpapi.Fail(c, h.C.Logger, lerr)
		}
		if locked {
			defer h.C.Locker.Unlock(ctx, repoName, "*")
			if _, err := h.C.Reconciler.ReconcileAll(ctx, repo, repoName, cfg, repo.DataDir(), paths); err != nil {
				return httpapi.Fail(c, h.C.Logger, err)
			}
		}
		branches, err := repo.ListBranches()
		if err != nil {
			return httpapi.Fail(c, h.C.Logger, err)
		}
		for _, b := range branches {
			store, err := branchindex.Open(repo.DataDir(), repoName, b)
			if err != nil {
				return httpapi.Fail(c, h.C.Logger, err)
			}
			docs, err := store.Find(collection, filter)
			if err != nil {
				return httpapi.Fail(c, h.C.Logger, err)
			}
			items = append(items, docs...)
		}
	} else {
		branch := middleware.Branch(c)
		locked, lerr := h.C.Locker.TryLock(ctx, repoName, branch, owner)
		if lerr != nil {
			return httpapi.Fail(c, h.C.Logger, lerr)
		}
		if locked {
			defer h.C.Locker.Unlock(ctx, repoName, branch)
			if _, err := h.C.Reconciler.Reconcile(ctx, repo, repoName, branch, cfg, repo.DataDir(), paths); err != nil {
				return httpapi.Fail(c, h.C.Logger, err)
			}
		}
		store, err := branchindex.Open(repo.DataDir(), repoName, branch)
		if err != nil {
			return httpapi.Fail(c, h.C.Logger, err)
		}
		items, err = store.Find(collection, filter)
		if err != nil {
			return httpapi.Fail(c, h.C.Logger, err)
		}
	}

	page := branchindex.Paginate(items, sorts, req.Page, req.PageSize)
	return c.JSON(http.StatusOK, queryResponse{
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
		Items:    page.Items,
	})
}

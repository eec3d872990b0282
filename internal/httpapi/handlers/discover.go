package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/relayhq/relay/internal/httpapi"
	"github.com/relayhq/relay/internal/httpapi/middleware"
)

// capabilities is the fixed verb surface DISCOVER advertises (spec.md
// section 4.7).
var capabilities = []string{"DISCOVER", "READ", "WRITE", "DELETE", "QUERY"}

type branchInfo struct {
	Name string `json:"name"`
	Head string `json:"head"`
}

type discoverResponse struct {
	Capabilities []string     `json:"capabilities"`
	Repos        []string     `json:"repos"`
	Branches     []branchInfo `json:"branches,omitempty"`
	Selected     selection    `json:"selected"`
}

type selection struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
}

// Discover handles OPTIONS on any path (spec.md section 4.7): capabilities,
// enumerated repos, enumerated branches, current selection, and each
// branch's head. Selection filters the response when provided.
func (h *Handler) Discover(c echo.Context) error {
	repoName := middleware.Repo(c)
	branch := middleware.Branch(c)

	names, err := h.C.ListRepoNames()
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	resp := discoverResponse{
		Capabilities: capabilities,
		Repos:        names,
		Selected:     selection{Repo: repoName, Branch: branch},
	}

	if repoName == "" {
		return c.JSON(http.StatusOK, resp)
	}

	repo, err := h.C.OpenRepo(repoName)
	if err != nil {
		return httpapi.Fail(c, h.C.Logger, err)
	}

	var branchNames []string
	if branch != "" && !middleware.IsAllBranches(c) {
		branchNames = []string{branch}
	} else {
		branchNames, err = repo.ListBranches()
		if err != nil {
			return httpapi.Fail(c, h.C.Logger, err)
		}
	}

	for _, b := range branchNames {
		head, err := repo.Head(b)
		if err != nil {
			continue
		}
		resp.Branches = append(resp.Branches, branchInfo{Name: b, Head: string(head)})
	}

	return c.JSON(http.StatusOK, resp)
}

// Package branchindex implements the per-branch document database
// (spec.md section 4.5): metadata plus named collections, loaded from and
// persisted to a single JSON file by atomic replace.
package branchindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/relayhq/relay/internal/branchindex/query"
	"github.com/relayhq/relay/internal/docval"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/ids"
)

// Document is one record in a collection: an Object Value plus its
// server-assigned "_id".
type Document = docval.Value

const idField = "_id"

// db is the on-disk shape of index.db (spec.md section 3).
type db struct {
	Metadata    Metadata                 `json:"metadata"`
	Collections map[string][]docval.Value `json:"collections"`
}

type Metadata struct {
	IndexedHead string `json:"indexed_head"`
}

// Store owns one branch's index.db: load, mutate in memory, atomic-replace
// persist. Safe for concurrent use; in-process access is serialized by the
// registry's per-(repo,branch) mutex, cross-process by the atomic rename.
type Store struct {
	path    string
	mu      sync.Mutex
	data    db
	matcher *query.Matcher
}

// registry is keyed by "<repo>/<branchHash>" and hands out one *Store per
// key, mirroring the teacher's per-resource mutex pooling pattern.
var (
	registryMu sync.Mutex
	registry   = map[string]*Store{}
)

// Open returns the Store for repo's branch, loading index.db from disk if
// present, or an empty DB otherwise (spec.md: "created lazily on first
// write").
func Open(dataDir, repo, branch string) (*Store, error) {
	branchHash := gitstore.BranchHash(branch)
	key := repo + "/" + branchHash

	registryMu.Lock()
	s, ok := registry[key]
	registryMu.Unlock()
	if ok {
		return s, nil
	}

	path := filepath.Join(dataDir, "branches", branchHash, "index.db")
	s = &Store{path: path, matcher: query.NewMatcher(), data: db{Collections: map[string][]docval.Value{}}}
	if err := s.load(); err != nil {
		return nil, err
	}

	registryMu.Lock()
	if existing, raced := registry[key]; raced {
		s = existing
	} else {
		registry[key] = s
	}
	registryMu.Unlock()
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("branchindex: read %s: %w", s.path, err)
	}
	var loaded db
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return fmt.Errorf("branchindex: corrupt %s: %w", s.path, err)
	}
	if loaded.Collections == nil {
		loaded.Collections = map[string][]docval.Value{}
	}
	s.data = loaded
	return nil
}

// persist writes the DB to a sibling temp file, then renames it into place —
// the atomic-replace discipline spec.md section 4.5 requires.
func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("branchindex: mkdir: %w", err)
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("branchindex: marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tmp-index-*")
	if err != nil {
		return fmt.Errorf("branchindex: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("branchindex: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("branchindex: replace: %w", err)
	}
	return nil
}

// IndexedHead returns the last commit this branch's index reflects, or ""
// if the branch has never been indexed.
func (s *Store) IndexedHead() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Metadata.IndexedHead
}

// SetIndexedHead advances metadata.indexed_head and persists. Callers must
// only call this after the corresponding commit step has actually
// succeeded, never speculatively (SPEC_FULL.md section 9, strict rule).
func (s *Store) SetIndexedHead(commit string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Metadata.IndexedHead = commit
	return s.persist()
}

// Insert stamps a fresh "_id" onto doc and appends it to collection.
func (s *Store) Insert(collection string, doc docval.Value) (docval.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamped := doc.WithField(idField, docval.Str(ids.NextDocID()))
	s.data.Collections[collection] = append(s.data.Collections[collection], stamped)
	if err := s.persist(); err != nil {
		return docval.Null(), err
	}
	return stamped, nil
}

// Find returns every document in collection matching filter, as docval
// Values.
func (s *Store) Find(collection string, filter query.Filter) ([]docval.Value, error) {
	s.mu.Lock()
	docs := append([]docval.Value(nil), s.data.Collections[collection]...)
	s.mu.Unlock()

	var out []docval.Value
	for _, d := range docs {
		ok, err := s.matcher.Match(filter, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// Update applies patch (a shallow field merge, RFC 7396 restricted to one
// level) to every document in collection matching filter, returning the
// count of documents updated.
func (s *Store) Update(collection string, filter query.Filter, patch docval.Value) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return 0, fmt.Errorf("branchindex: marshal patch: %w", err)
	}

	docs := s.data.Collections[collection]
	count := 0
	for i, d := range docs {
		ok, err := s.matcher.Match(filter, d)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		docJSON, err := json.Marshal(d)
		if err != nil {
			return 0, fmt.Errorf("branchindex: marshal doc: %w", err)
		}
		merged, err := jsonpatch.MergePatch(docJSON, patchJSON)
		if err != nil {
			return 0, fmt.Errorf("branchindex: merge patch: %w", err)
		}
		var newDoc docval.Value
		if err := json.Unmarshal(merged, &newDoc); err != nil {
			return 0, fmt.Errorf("branchindex: unmarshal merged doc: %w", err)
		}
		docs[i] = newDoc
		count++
	}
	s.data.Collections[collection] = docs
	if count > 0 {
		if err := s.persist(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Remove deletes every document in collection matching filter, returning
// the count removed.
func (s *Store) Remove(collection string, filter query.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.data.Collections[collection]
	kept := docs[:0:0]
	count := 0
	for _, d := range docs {
		ok, err := s.matcher.Match(filter, d)
		if err != nil {
			return 0, err
		}
		if ok {
			count++
			continue
		}
		kept = append(kept, d)
	}
	s.data.Collections[collection] = kept
	if count > 0 {
		if err := s.persist(); err != nil {
			return 0, err
		}
	}
	return count, nil
}

// Page is one page of a QUERY response (spec.md section 4.7).
type Page struct {
	Total    int
	Page     int
	PageSize int
	Items    []docval.Value
}

// SortSpec is one {field, dir} entry of a QUERY request's "sort" array.
type SortSpec struct {
	Field string
	Desc  bool
}

// Paginate sorts items (stably, per the sort spec) and slices out one page,
// the shared tail of both the single-branch and branch=all (SPEC_FULL.md
// section 9, "merge then sort then paginate") query paths.
func Paginate(items []docval.Value, sorts []SortSpec, page, pageSize int) Page {
	sort.SliceStable(items, func(i, j int) bool {
		for _, s := range sorts {
			vi, _ := items[i].Field(s.Field)
			vj, _ := items[j].Field(s.Field)
			cmp := compareValues(vi, vj)
			if cmp == 0 {
				continue
			}
			if s.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})

	total := len(items)
	start := page * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return Page{Total: total, Page: page, PageSize: pageSize, Items: items[start:end]}
}

func compareValues(a, b docval.Value) int {
	switch {
	case a.Kind == docval.KindNum && b.Kind == docval.KindNum:
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	case a.Kind == docval.KindStr && b.Kind == docval.KindStr:
		switch {
		case a.Str < b.Str:
			return -1
		case a.Str > b.Str:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

package branchindex

import (
	"testing"

	"github.com/relayhq/relay/internal/branchindex/query"
	"github.com/relayhq/relay/internal/docval"
)

func TestInsertFindRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "movies-"+t.Name(), "main")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	doc := docval.Object(map[string]docval.Value{
		"title":      docval.Str("The Matrix"),
		"_branch":    docval.Str("main"),
		"_meta_dir":  docval.Str("movies/matrix"),
		"_updated_at": docval.Str("2026-01-01T00:00:00Z"),
	})
	stamped, err := s.Insert("index", doc)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok := stamped.Field("_id"); !ok {
		t.Fatal("expected Insert to stamp _id")
	}

	found, err := s.Find("index", query.Filter{"title": docval.Str("The Matrix")})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Find = %d docs, want 1", len(found))
	}
}

func TestDeleteThenReinsertYieldsOneItem(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "movies-"+t.Name(), "main")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	first := docval.Object(map[string]docval.Value{
		"title":     docval.Str("The Matrix"),
		"_meta_dir": docval.Str("movies/matrix"),
	})
	if _, err := s.Insert("index", first); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	removed, err := s.Remove("index", query.Filter{"_meta_dir": docval.Str("movies/matrix")})
	if err != nil || removed != 1 {
		t.Fatalf("Remove = %d, %v, want 1, nil", removed, err)
	}

	second := docval.Object(map[string]docval.Value{
		"title":     docval.Str("The Matrix Reloaded"),
		"_meta_dir": docval.Str("movies/matrix"),
	})
	if _, err := s.Insert("index", second); err != nil {
		t.Fatalf("second Insert: %v", err)
	}

	found, err := s.Find("index", query.Filter{"_meta_dir": docval.Str("movies/matrix")})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("Find = %d docs, want 1", len(found))
	}
	title, _ := found[0].Field("title")
	if title.Str != "The Matrix Reloaded" {
		t.Errorf("title = %q, want %q", title.Str, "The Matrix Reloaded")
	}
}

func TestUpdateShallowMerge(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "repo-"+t.Name(), "main")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := s.Insert("index", docval.Object(map[string]docval.Value{
		"title": docval.Str("The Matrix"),
		"year":  docval.Num(1999),
	})); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	patch := docval.Object(map[string]docval.Value{"year": docval.Num(2000)})
	n, err := s.Update("index", query.Filter{"title": docval.Str("The Matrix")}, patch)
	if err != nil || n != 1 {
		t.Fatalf("Update = %d, %v, want 1, nil", n, err)
	}

	found, err := s.Find("index", query.Filter{"title": docval.Str("The Matrix")})
	if err != nil || len(found) != 1 {
		t.Fatalf("Find: %v (%d)", err, len(found))
	}
	year, _ := found[0].Field("year")
	if year.Num != 2000 {
		t.Errorf("year = %v, want 2000", year.Num)
	}
	title, _ := found[0].Field("title")
	if title.Str != "The Matrix" {
		t.Errorf("title field lost on shallow merge: %q", title.Str)
	}
}

func TestIndexedHeadPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "repo-indexedhead", "main")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.IndexedHead() != "" {
		t.Fatalf("expected empty indexed_head on fresh branch")
	}
	if err := s.SetIndexedHead("deadbeef"); err != nil {
		t.Fatalf("SetIndexedHead: %v", err)
	}
	if got := s.IndexedHead(); got != "deadbeef" {
		t.Errorf("IndexedHead = %q, want deadbeef", got)
	}

	// Reload from disk into a fresh Store to prove the value was persisted.
	fresh := &Store{path: s.path}
	if err := fresh.load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := fresh.IndexedHead(); got != "deadbeef" {
		t.Errorf("reloaded IndexedHead = %q, want deadbeef", got)
	}
}

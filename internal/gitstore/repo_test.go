package gitstore

import (
	"testing"
)

func TestCommitReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "movies")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h1, err := repo.Commit("main", "", "alice", "add matrix", []FileChange{
		{Path: "movies/matrix/meta.yaml", Content: []byte("title: The Matrix\n")},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := repo.Read("main", "movies/matrix/meta.yaml")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "title: The Matrix\n" {
		t.Errorf("Read = %q", got)
	}

	head, err := repo.Head("main")
	if err != nil || head != h1 {
		t.Errorf("Head = %q, %v, want %q", head, err, h1)
	}

	// Second commit: delete, then re-add with new content (a net modify).
	h2, err := repo.Commit("main", string(h1), "alice", "rename", []FileChange{
		{Path: "movies/matrix/meta.yaml", Content: nil},
		{Path: "movies/matrix/meta.yaml", Content: []byte("title: The Matrix Reloaded\n")},
	})
	if err != nil {
		t.Fatalf("second Commit: %v", err)
	}

	changes, err := repo.DiffNames(h1, h2)
	if err != nil {
		t.Fatalf("DiffNames: %v", err)
	}
	if len(changes) != 1 || changes[0].Status != StatusModified {
		t.Errorf("DiffNames = %+v, want one Modified change", changes)
	}

	// A conflicting commit against a stale base is rejected.
	_, err = repo.Commit("main", string(h1), "bob", "stale write", []FileChange{
		{Path: "other.txt", Content: []byte("x")},
	})
	if err == nil {
		t.Fatal("expected ErrConflict for stale base")
	}
}

func TestDiffNamesFromZero(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "repo")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := repo.Commit("main", "", "alice", "init", []FileChange{
		{Path: "a.txt", Content: []byte("a")},
		{Path: "dir/b.txt", Content: []byte("b")},
	})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	changes, err := repo.DiffNames(Zero, h)
	if err != nil {
		t.Fatalf("DiffNames: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("DiffNames = %+v, want 2 additions", changes)
	}
	for _, c := range changes {
		if c.Status != StatusAdded {
			t.Errorf("change %+v, want Added", c)
		}
	}

	paths, err := repo.ListTree("main")
	if err != nil {
		t.Fatalf("ListTree: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("ListTree = %v, want 2 paths", paths)
	}
}

func TestCommitSinceChain(t *testing.T) {
	dir := t.TempDir()
	repo, err := Open(dir, "repo")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h1, _ := repo.Commit("main", "", "a", "c1", []FileChange{{Path: "f", Content: []byte("1")}})
	h2, _ := repo.Commit("main", string(h1), "a", "c2", []FileChange{{Path: "f", Content: []byte("2")}})
	h3, _ := repo.Commit("main", string(h2), "a", "c3", []FileChange{{Path: "f", Content: []byte("3")}})

	chain, ancestor := repo.CommitSinceChain(h1, h3)
	if !ancestor {
		t.Fatal("expected h1 to be an ancestor of h3")
	}
	if len(chain) != 2 || chain[0] != h2 || chain[1] != h3 {
		t.Errorf("chain = %v, want [h2, h3]", chain)
	}
}

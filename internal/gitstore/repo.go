package gitstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repo is a bare, content-addressed repository: an object store plus named
// refs, with no working tree. All reads go through the object database
// (spec.md section 4.1).
type Repo struct {
	Name string
	path string // "<server-root>/<name>.git"
	objs *objectStore

	mu sync.Mutex // guards ref compare-and-swap for this process
}

// DataDir is the side-directory owned exclusively by the server
// (spec.md section 3), conventionally ".relay_data/" beside the bare repo.
func (r *Repo) DataDir() string {
	return filepath.Join(r.path, ".relay_data")
}

// Path returns the repository's absolute on-disk path. Sandbox-internal use
// only; never surfaced to hook scripts (spec.md section 3, CommitContext.repo_path).
func (r *Repo) Path() string { return r.path }

// Open opens (creating if absent) a bare repository rooted at dir/<name>.git.
func Open(root, name string) (*Repo, error) {
	repoPath := filepath.Join(root, name+".git")
	objDir := filepath.Join(repoPath, "objects")
	if err := os.MkdirAll(objDir, 0o755); err != nil {
		return nil, fmt.Errorf("gitstore: open %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Join(repoPath, "refs", "heads"), 0o755); err != nil {
		return nil, fmt.Errorf("gitstore: open %s: %w", name, err)
	}
	return &Repo{
		Name: name,
		path: repoPath,
		objs: newObjectStore(objDir),
	}, nil
}

func (r *Repo) refPath(branch string) string {
	branch = strings.TrimPrefix(branch, "refs/heads/")
	return filepath.Join(r.path, "refs", "heads", branch)
}

func (r *Repo) refDir() string {
	return filepath.Join(r.path, "refs", "heads")
}

// Head resolves the commit hash the given branch currently points to.
func (r *Repo) Head(branch string) (Hash, error) {
	data, err := os.ReadFile(r.refPath(branch))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNoSuchRef, branch)
		}
		return "", fmt.Errorf("gitstore: read ref: %w", err)
	}
	return Hash(strings.TrimSpace(string(data))), nil
}

// ListBranches enumerates branch names with a current head.
func (r *Repo) ListBranches() ([]string, error) {
	dir := filepath.Join(r.path, "refs", "heads")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("gitstore: list branches: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func (r *Repo) readCommit(h Hash) (Commit, error) {
	t, data, err := r.objs.read(h)
	if err != nil {
		return Commit{}, err
	}
	if t != TypeCommit {
		return Commit{}, fmt.Errorf("%w: %s is not a commit", ErrCorrupt, h)
	}
	return deserializeCommit(data)
}

func (r *Repo) readTree(h Hash) (Tree, error) {
	if h == Zero || h == "" {
		return Tree{}, nil
	}
	t, data, err := r.objs.read(h)
	if err != nil {
		return Tree{}, err
	}
	if t != TypeTree {
		return Tree{}, fmt.Errorf("%w: %s is not a tree", ErrCorrupt, h)
	}
	return deserializeTree(data)
}

// Read resolves "<ref>:<path>" to file bytes.
func (r *Repo) Read(ref, path string) ([]byte, error) {
	head, err := r.Head(ref)
	if err != nil {
		return nil, err
	}
	return r.ReadAt(head, path)
}

// ReadAt resolves "path" against a specific commit, independent of any
// branch's current head (used by the JIT Reconciler to read at each
// historical step, and by the hook runtime's git.readFile).
func (r *Repo) ReadAt(commit Hash, path string) ([]byte, error) {
	c, err := r.readCommit(commit)
	if err != nil {
		return nil, err
	}
	blobHash, err := r.resolvePath(c.Tree, path)
	if err != nil {
		return nil, err
	}
	t, data, err := r.objs.read(blobHash)
	if err != nil {
		return nil, err
	}
	if t != TypeBlob {
		return nil, fmt.Errorf("%w: %s is not a file", ErrNoSuchPath, path)
	}
	return data, nil
}

func (r *Repo) resolvePath(root Hash, path string) (Hash, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return root, nil
	}
	segs := strings.Split(path, "/")
	cur := root
	for i, seg := range segs {
		tree, err := r.readTree(cur)
		if err != nil {
			return "", err
		}
		var next *TreeEntry
		for j := range tree.Entries {
			if tree.Entries[j].Name == seg {
				next = &tree.Entries[j]
				break
			}
		}
		if next == nil {
			return "", fmt.Errorf("%w: %s", ErrNoSuchPath, path)
		}
		if i == len(segs)-1 {
			return next.Hash, nil
		}
		if next.Mode != dirMode {
			return "", fmt.Errorf("%w: %s", ErrNoSuchPath, path)
		}
		cur = next.Hash
	}
	return cur, nil
}

// ListTree enumerates every file path reachable from ref's current head.
func (r *Repo) ListTree(ref string) ([]string, error) {
	head, err := r.Head(ref)
	if err != nil {
		return nil, err
	}
	return r.ListTreeAt(head)
}

// ListTreeAt enumerates every file path in a specific commit's tree.
func (r *Repo) ListTreeAt(commit Hash) ([]string, error) {
	if commit == Zero {
		return nil, nil
	}
	c, err := r.readCommit(commit)
	if err != nil {
		return nil, err
	}
	var paths []string
	if err := r.walkTree(c.Tree, "", &paths); err != nil {
		return nil, err
	}
	return paths, nil
}

func (r *Repo) walkTree(h Hash, prefix string, out *[]string) error {
	tree, err := r.readTree(h)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		full := e.Name
		if prefix != "" {
			full = prefix + "/" + e.Name
		}
		if e.Mode == dirMode {
			if err := r.walkTree(e.Hash, full, out); err != nil {
				return err
			}
		} else {
			*out = append(*out, full)
		}
	}
	return nil
}

package gitstore

// ChangeStatus is one of Added, Modified, Deleted (spec.md section 4.1).
type ChangeStatus string

const (
	StatusAdded    ChangeStatus = "A"
	StatusModified ChangeStatus = "M"
	StatusDeleted  ChangeStatus = "D"
)

// Change is one entry of a diff between two commits.
type Change struct {
	Status ChangeStatus
	Path   string
}

// DiffNames computes the path-level diff between two commits. old == Zero
// means "all paths added" (spec.md section 4.1).
func (r *Repo) DiffNames(old, new Hash) ([]Change, error) {
	var oldPaths map[string]Hash
	if old == Zero {
		oldPaths = map[string]Hash{}
	} else {
		oc, err := r.readCommit(old)
		if err != nil {
			return nil, err
		}
		oldPaths = map[string]Hash{}
		if err := r.flattenTree(oc.Tree, "", oldPaths); err != nil {
			return nil, err
		}
	}

	newPaths := map[string]Hash{}
	if new != Zero {
		nc, err := r.readCommit(new)
		if err != nil {
			return nil, err
		}
		if err := r.flattenTree(nc.Tree, "", newPaths); err != nil {
			return nil, err
		}
	}

	var changes []Change
	for path, newHash := range newPaths {
		if oldHash, existed := oldPaths[path]; !existed {
			changes = append(changes, Change{Status: StatusAdded, Path: path})
		} else if oldHash != newHash {
			changes = append(changes, Change{Status: StatusModified, Path: path})
		}
	}
	for path := range oldPaths {
		if _, stillPresent := newPaths[path]; !stillPresent {
			changes = append(changes, Change{Status: StatusDeleted, Path: path})
		}
	}
	return changes, nil
}

func (r *Repo) flattenTree(h Hash, prefix string, out map[string]Hash) error {
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
			if err := r.flattenTree(e.Hash, full, out); err != nil {
				return err
			}
		} else {
			out[full] = e.Hash
		}
	}
	return nil
}

// CommitSinceChain enumerates the commit chain from (exclusive) old to
// (inclusive) new, oldest first, for the JIT Reconciler's chronological
// replay (spec.md section 4.6). If old is Zero, every commit on new's
// first-parent history is returned, oldest first, with true: a rebuild from
// nothing replays each commit as its own step, not as one Zero-to-new step.
// If old is not on new's first-parent history, the single-element chain
// [new] is returned with false.
func (r *Repo) CommitSinceChain(old, new Hash) ([]Hash, bool) {
	if new == Zero {
		return nil, true
	}
	var chain []Hash
	cur := new
	for cur != Zero {
		if cur == old {
			reverse(chain)
			return chain, true
		}
		chain = append(chain, cur)
		c, err := r.readCommit(cur)
		if err != nil || len(c.Parents) == 0 {
			break
		}
		cur = c.Parents[0]
	}
	if old == Zero {
		reverse(chain)
		return chain, true
	}
	// old was never found on new's first-parent history: not an ancestor.
	return []Hash{new}, false
}

func reverse(h []Hash) {
	for i, j := 0, len(h)-1; i < j; i, j = i+1, j-1 {
		h[i], h[j] = h[j], h[i]
	}
}

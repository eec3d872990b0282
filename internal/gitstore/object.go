// Package gitstore implements the Repo Store (SPEC_FULL.md section 4.1): a
// minimal content-addressed object model for bare repositories, grounded in
// odvcencio-got's pkg/object and pkg/repo (its own object space, SHA-256
// hashed, not byte-compatible with canonical git — sufficient since Relay is
// the sole reader/writer of these repositories).
package gitstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Hash is a 64-character hex-encoded SHA-256 digest.
type Hash string

// Zero is the sentinel "no commit" hash used for old_commit on first receive
// and for diff_names' "old = all paths added" case (spec.md section 4.1).
const Zero Hash = ""

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
)

// HashObject computes the object id over the envelope "type len\0content".
func HashObject(t ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", t, len(data))
	h := sha256.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// TreeEntry is one sorted entry of a Tree object.
type TreeEntry struct {
	Name string
	Mode string // "100644" file, "40000" dir
	Hash Hash
}

// Tree is a sorted list of TreeEntry, the directory-listing object.
type Tree struct {
	Entries []TreeEntry
}

// Commit points at a tree plus history and authorship metadata.
type Commit struct {
	Tree      Hash
	Parents   []Hash
	Author    string
	Message   string
	Signature string // detached signature over the canonical payload, if any
	SignerKey string // repo-relative path to the signing public key, if any
}

const dirMode = "40000"
const fileMode = "100644"

// sortEntries returns entries sorted by Name, the canonical tree order.
func sortEntries(entries []TreeEntry) []TreeEntry {
	sorted := make([]TreeEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

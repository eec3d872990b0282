// Package sandbox is the restricted capability surface hooks run against,
// hosted inside cmd/relay-hook-runner (spec.md section 4.4). It is
// registered as a single Lua global table, "relay", mirroring the
// original's RelayHost.mjs shim; no other host authority — no os, io,
// require, load/loadstring — is reachable from script code.
package sandbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	lua "github.com/yuin/gopher-lua"

	"github.com/relayhq/relay/internal/blobstore"
	"github.com/relayhq/relay/internal/branchindex"
	"github.com/relayhq/relay/internal/branchindex/query"
	"github.com/relayhq/relay/internal/docval"
	"github.com/relayhq/relay/internal/globmatch"
	"github.com/relayhq/relay/internal/gitstore"
	"github.com/relayhq/relay/internal/hookrunner"
)

// Config is everything one hook invocation's sandbox needs: confinement
// roots, the collection store, the global blob tier, and the already-loaded
// Commit Context.
type Config struct {
	Context hookrunner.CommitContext

	BranchDir string // <repo>/.relay_data/branches/<branch_hash>
	RepoDir   string // <repo>/.relay_data/blobs

	Index *branchindex.Store
	Blobs *blobstore.Store
	Repo  *gitstore.Repo

	RepoName   string
	QuotaBytes int64

	Notifier  blobstore.PinNotifier
	IpfsCfg   *blobstore.IpfsConfig
}

// New builds a *lua.LState with only "relay" plus the safe
// base/string/table/math libraries registered — no os, io, debug, channel,
// or dynamic loading.
func New(cfg Config) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, pair := range []struct {
		n string
		f lua.LGFunction
	}{
		{lua.BaseLibName, safeBaseOpen},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(pair.f))
		L.Push(lua.LString(pair.n))
		L.Call(1, 0)
	}

	relay := L.NewTable()
	registerConfig(L, relay, cfg)
	registerFS(L, relay, cfg)
	registerDB(L, relay, cfg)
	registerGit(L, relay, cfg)
	registerUtils(L, relay, cfg)
	L.SetGlobal("relay", relay)
	return L
}

// safeBaseOpen opens Lua's base library, then strips the functions that
// would give a script a side channel to the host (dynamic and file loading,
// garbage-collector control): spec.md section 9, "no dynamic module loading".
func safeBaseOpen(L *lua.LState) int {
	n := lua.OpenBase(L)
	for _, name := range []string{"load", "loadstring", "dofile", "loadfile", "require", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	return n
}

func setFn(L *lua.LState, t *lua.LTable, name string, fn lua.LGFunction) {
	t.RawSetString(name, L.NewFunction(fn))
}

func subtable(L *lua.LState, parent *lua.LTable, name string) *lua.LTable {
	t := L.NewTable()
	parent.RawSetString(name, t)
	return t
}

// registerConfig wires config.get(key) — a dotted-path lookup into the
// piped Commit Context (spec.md section 4.4).
func registerConfig(L *lua.LState, relay *lua.LTable, cfg Config) {
	cfgTable := subtable(L, relay, "config")
	doc := docval.FromAny(map[string]any{
		"old_commit":  cfg.Context.OldCommit,
		"new_commit":  cfg.Context.NewCommit,
		"refname":     cfg.Context.RefName,
		"branch":      cfg.Context.Branch,
		"is_verified": cfg.Context.IsVerified,
	})
	setFn(L, cfgTable, "get", func(L *lua.LState) int {
		key := L.CheckString(1)
		v, ok := doc.Field(key)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(toLua(L, v))
		return 1
	})
}

// registerFS wires fs.branch.*, fs.repo.*, fs.global.{get,put} (spec.md
// section 4.4).
func registerFS(L *lua.LState, relay *lua.LTable, cfg Config) {
	fs := subtable(L, relay, "fs")
	registerConfinedDir(L, fs, "branch", cfg.BranchDir)
	registerConfinedDir(L, fs, "repo", cfg.RepoDir)

	global := subtable(L, fs, "global")
	setFn(L, global, "get", func(L *lua.LState) int {
		hash := L.CheckString(1)
		data, ok, err := cfg.Blobs.Get(context.Background(), hash)
		if err != nil {
			L.RaiseError("fs.global.get: %v", err)
			return 0
		}
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(data))
		return 1
	})
	setFn(L, global, "put", func(L *lua.LState) int {
		data := []byte(L.CheckString(1))
		hash, err := cfg.Blobs.Put(context.Background(), cfg.RepoName, cfg.QuotaBytes, data)
		if err != nil {
			L.RaiseError("fs.global.put: %v", err)
			return 0
		}
		L.Push(lua.LString(hash))
		return 1
	})
}

func registerConfinedDir(L *lua.LState, fs *lua.LTable, name, root string) {
	t := subtable(L, fs, name)
	setFn(L, t, "read", func(L *lua.LState) int {
		path, err := Confine(root, L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				L.Push(lua.LNil)
				return 1
			}
			L.RaiseError("fs.%s.read: %v", name, err)
			return 0
		}
		L.Push(lua.LString(data))
		return 1
	})
	setFn(L, t, "write", func(L *lua.LState) int {
		path, err := Confine(root, L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			L.RaiseError("fs.%s.write: %v", name, err)
			return 0
		}
		if err := os.WriteFile(path, []byte(L.CheckString(2)), 0o644); err != nil {
			L.RaiseError("fs.%s.write: %v", name, err)
			return 0
		}
		return 0
	})
	setFn(L, t, "exists", func(L *lua.LState) int {
		path, err := Confine(root, L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		_, statErr := os.Stat(path)
		L.Push(lua.LBool(statErr == nil))
		return 1
	})
	setFn(L, t, "unlink", func(L *lua.LState) int {
		path, err := Confine(root, L.CheckString(1))
		if err != nil {
			L.RaiseError("%v", err)
			return 0
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			L.RaiseError("fs.%s.unlink: %v", name, err)
			return 0
		}
		return 0
	})
}

// registerDB wires db.collection(name) -> {insert, update, remove, find}
// (spec.md section 4.4), backed by internal/branchindex, and fires the Blob
// Watcher on every mutation that writes a document (insert and update).
func registerDB(L *lua.LState, relay *lua.LTable, cfg Config) {
	db := subtable(L, relay, "db")
	setFn(L, db, "collection", func(L *lua.LState) int {
		name := L.CheckString(1)
		coll := L.NewTable()

		setFn(L, coll, "insert", func(L *lua.LState) int {
			doc := fromLua(L.CheckTable(2))
			stamped, err := cfg.Index.Insert(name, doc)
			if err != nil {
				L.RaiseError("db.collection.insert: %v", err)
				return 0
			}
			watch(cfg, name, stamped)
			L.Push(toLua(L, stamped))
			return 1
		})
		setFn(L, coll, "find", func(L *lua.LState) int {
			filter := luaFilter(L, 2)
			docs, err := cfg.Index.Find(name, filter)
			if err != nil {
				L.RaiseError("db.collection.find: %v", err)
				return 0
			}
			t := L.NewTable()
			for i, d := range docs {
				t.RawSetInt(i+1, toLua(L, d))
			}
			L.Push(t)
			return 1
		})
		setFn(L, coll, "update", func(L *lua.LState) int {
			filter := luaFilter(L, 2)
			patch := fromLua(L.CheckTable(3))
			n, err := cfg.Index.Update(name, filter, patch)
			if err != nil {
				L.RaiseError("db.collection.update: %v", err)
				return 0
			}
			if n > 0 {
				watch(cfg, name, patch)
			}
			L.Push(lua.LNumber(n))
			return 1
		})
		setFn(L, coll, "remove", func(L *lua.LState) int {
			filter := luaFilter(L, 2)
			n, err := cfg.Index.Remove(name, filter)
			if err != nil {
				L.RaiseError("db.collection.remove: %v", err)
				return 0
			}
			L.Push(lua.LNumber(n))
			return 1
		})

		L.Push(coll)
		return 1
	})
}

func luaFilter(L *lua.LState, idx int) query.Filter {
	t, ok := L.Get(idx).(*lua.LTable)
	if !ok {
		return query.Filter{}
	}
	return query.Filter(filterFromLua(t))
}

func watch(cfg Config, collection string, doc docval.Value) {
	if cfg.Notifier == nil {
		return
	}
	if err := blobstore.Watch(context.Background(), cfg.Notifier, cfg.IpfsCfg, collection, doc); err != nil {
		fmt.Fprintf(os.Stderr, "blob watcher: %s: %v\n", collection, err)
	}
}

// registerGit wires git.readFile/listChanges/verifySignature (spec.md
// section 4.4), preferring the pre-piped Files map before falling back to
// the object database.
func registerGit(L *lua.LState, relay *lua.LTable, cfg Config) {
	git := subtable(L, relay, "git")
	setFn(L, git, "readFile", func(L *lua.LState) int {
		path := L.CheckString(1)
		if b64, ok := cfg.Context.Files[path]; ok {
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				L.RaiseError("git.readFile: decode piped file: %v", err)
				return 0
			}
			L.Push(lua.LString(data))
			return 1
		}
		if cfg.Repo == nil || cfg.Context.NewCommit == "" {
			L.Push(lua.LNil)
			return 1
		}
		data, err := cfg.Repo.ReadAt(gitstore.Hash(cfg.Context.NewCommit), path)
		if err != nil {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(data))
		return 1
	})
	setFn(L, git, "listChanges", func(L *lua.LState) int {
		if cfg.Repo == nil {
			L.Push(L.NewTable())
			return 1
		}
		changes, err := cfg.Repo.DiffNames(gitstore.Hash(cfg.Context.OldCommit), gitstore.Hash(cfg.Context.NewCommit))
		if err != nil {
			L.RaiseError("git.listChanges: %v", err)
			return 0
		}
		t := L.NewTable()
		for i, c := range changes {
			row := L.NewTable()
			row.RawSetString("status", lua.LString(c.Status))
			row.RawSetString("path", lua.LString(c.Path))
			t.RawSetInt(i+1, row)
		}
		L.Push(t)
		return 1
	})
	setFn(L, git, "verifySignature", func(L *lua.LState) int {
		L.Push(lua.LBool(cfg.Context.IsVerified))
		return 1
	})
}

// registerUtils wires utils.parseYaml, utils.matchPath, utils.upsertIndex
// (spec.md section 4.4).
func registerUtils(L *lua.LState, relay *lua.LTable, cfg Config) {
	utils := subtable(L, relay, "utils")
	setFn(L, utils, "parseYaml", func(L *lua.LState) int {
		doc := ParseFlatYAML([]byte(L.CheckString(1)))
		L.Push(toLua(L, doc))
		return 1
	})
	setFn(L, utils, "matchPath", func(L *lua.LState) int {
		pattern := L.CheckString(1)
		path := L.CheckString(2)
		L.Push(lua.LBool(globmatch.Match(pattern, path)))
		return 1
	})
	setFn(L, utils, "upsertIndex", func(L *lua.LState) int {
		changes := L.CheckTable(1)
		branch := L.CheckString(3)
		n := upsertIndex(cfg, changes, branch)
		L.Push(lua.LNumber(n))
		return 1
	})
}

// upsertIndex is utils.upsertIndex's convenience behavior (spec.md section
// 4.4): for each change whose path ends with meta.yaml/meta.yml, remove
// prior entries with the same _meta_dir, parse the new file (from the piped
// Files map, else read at new_commit), and insert.
func upsertIndex(cfg Config, changes *lua.LTable, branch string) int {
	n := 0
	changes.ForEach(func(_, v lua.LValue) {
		row, ok := v.(*lua.LTable)
		if !ok {
			return
		}
		path := row.RawGetString("path").String()
		status := row.RawGetString("status").String()
		if !isMetaFile(path) {
			return
		}
		dir := filepath.Dir(path)
		if dir == "." {
			dir = ""
		}

		if _, err := cfg.Index.Remove("index", query.Filter{"_meta_dir": docval.Str(dir)}); err != nil {
			return
		}
		if status == string(gitstore.StatusDeleted) {
			return
		}

		var body []byte
		if b64, ok := cfg.Context.Files[path]; ok {
			decoded, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				return
			}
			body = decoded
		} else if cfg.Repo != nil && cfg.Context.NewCommit != "" {
			data, err := cfg.Repo.ReadAt(gitstore.Hash(cfg.Context.NewCommit), path)
			if err != nil {
				return
			}
			body = data
		} else {
			return
		}
		fields := ParseFlatYAML(body)
		doc := fields.
			WithField("_branch", docval.Str(branch)).
			WithField("_meta_dir", docval.Str(dir)).
			WithField("_updated_at", docval.Str(nowISO()))
		if _, err := cfg.Index.Insert("index", doc); err == nil {
			n++
		}
	})
	return n
}

func isMetaFile(path string) bool {
	base := filepath.Base(path)
	return base == "meta.yaml" || base == "meta.yml"
}


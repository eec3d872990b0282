package blobstore

import (
	"context"
	"strings"

	"github.com/relayhq/relay/internal/docval"
)

// IpfsConfig is the parsed shape of ipfs.yaml (spec.md section 6):
// collections.<name>: [{field}].
type IpfsConfig struct {
	Collections map[string][]string // collection name -> field names
}

// idPrefixes are the content-identifier prefixes the Blob Watcher
// recognizes (spec.md section 4.4).
var idPrefixes = []string{"Qm", "ba"}

func looksLikeContentID(s string) bool {
	for _, p := range idPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// Watch inspects doc's declared fields for cfg's collection and pins any
// value that looks like a content identifier. Errors are swallowed by the
// caller per spec.md's "pin/unpin failures are logged, never fatal" — Watch
// itself returns the first error so the caller can log it, but never aborts
// partway: every field is attempted regardless of an earlier failure.
func Watch(ctx context.Context, notifier PinNotifier, cfg *IpfsConfig, collection string, doc docval.Value) error {
	if cfg == nil {
		return nil
	}
	fields, ok := cfg.Collections[collection]
	if !ok {
		return nil
	}
	var firstErr error
	for _, field := range fields {
		v, ok := doc.Field(field)
		if !ok || v.Kind != docval.KindStr || !looksLikeContentID(v.Str) {
			continue
		}
		if err := notifier.Pin(ctx, v.Str); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Unwatch is the inverse: it unpins each of ids, attempting all of them and
// returning the first error. Nothing in this module calls it; a full rebuild
// in the JIT reconciler unpins nothing.
func Unwatch(ctx context.Context, notifier PinNotifier, ids []string) error {
	var firstErr error
	for _, id := range ids {
		if err := notifier.Unpin(ctx, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

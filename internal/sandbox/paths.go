package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Confine resolves rel against root and rejects any path that would escape
// root via ".." traversal (spec.md section 4.4 / section 8 invariant 4).
func Confine(root, rel string) (string, error) {
	root = filepath.Clean(root)
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("sandbox: path %q escapes confinement root", rel)
	}
	return full, nil
}

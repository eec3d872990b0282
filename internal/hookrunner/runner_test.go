package hookrunner

import (
	"bytes"
	"testing"
)

func TestStripShebangRemovesLeadingLine(t *testing.T) {
	in := []byte("#!/usr/bin/env node\nconsole.log('hi')\n")
	got := stripShebang(in)
	if bytes.Contains(got, []byte("#!")) {
		t.Errorf("stripShebang left a shebang: %q", got)
	}
	if !bytes.Contains(got, []byte("console.log")) {
		t.Errorf("stripShebang dropped script body: %q", got)
	}
}

func TestStripShebangNoOpWithoutOne(t *testing.T) {
	in := []byte("print('hi')\n")
	got := stripShebang(in)
	if !bytes.Equal(got, in) {
		t.Errorf("stripShebang modified a script with no shebang: %q", got)
	}
}

func TestEnvAllowlist(t *testing.T) {
	vars := env("old", "new", "refs/heads/main", "main", "/repos/x.git")
	want := map[string]bool{
		"OLD_COMMIT=old": false, "NEW_COMMIT=new": false,
		"REFNAME=refs/heads/main": false, "BRANCH=main": false,
		"GIT_DIR=/repos/x.git": false,
	}
	for _, v := range vars {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("missing expected env entry %q", k)
		}
	}
	if len(vars) != 6 { // 5 allowlisted + PATH
		t.Errorf("env() = %d entries, want 6 (allowlist + PATH)", len(vars))
	}
}

package sandbox

import (
	"strconv"
	"strings"

	"github.com/relayhq/relay/internal/docval"
)

// ParseFlatYAML is the sandbox's deliberately minimal utils.parseYaml
// (spec.md section 4.4, design note section 9: "not a full YAML
// implementation"). It understands flat top-level `key: value` lines and
// short inline lists (`key: [a, b, c]`); nested mappings are out of scope —
// hook-owned meta.yaml files are expected to be flat.
func ParseFlatYAML(data []byte) docval.Value {
	obj := map[string]docval.Value{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		idx := strings.Index(trimmed, ":")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:idx])
		val := strings.TrimSpace(trimmed[idx+1:])
		obj[key] = parseScalarOrList(val)
	}
	return docval.Object(obj)
}

func parseScalarOrList(val string) docval.Value {
	if strings.HasPrefix(val, "[") && strings.HasSuffix(val, "]") {
		inner := strings.TrimSpace(val[1 : len(val)-1])
		if inner == "" {
			return docval.Array(nil)
		}
		parts := strings.Split(inner, ",")
		items := make([]docval.Value, len(parts))
		for i, p := range parts {
			items[i] = parseScalar(strings.TrimSpace(p))
		}
		return docval.Array(items)
	}
	return parseScalar(val)
}

func parseScalar(val string) docval.Value {
	if len(val) >= 2 && (val[0] == '"' && val[len(val)-1] == '"' || val[0] == '\'' && val[len(val)-1] == '\'') {
		return docval.Str(val[1 : len(val)-1])
	}
	switch val {
	case "true":
		return docval.Bool(true)
	case "false":
		return docval.Bool(false)
	case "null", "~", "":
		return docval.Null()
	}
	if n, err := strconv.ParseFloat(val, 64); err == nil {
		return docval.Num(n)
	}
	return docval.Str(val)
}

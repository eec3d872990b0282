// Package query compiles branch-index filters into cached CEL programs.
// Externally the matching semantics stay pure field equality (spec.md
// section 4.4, "query is a field-equality mapping"); CEL is the engine
// underneath, mirroring the teacher's condition.Evaluator compile-once,
// cache-many shape (cmd/workflow-runner/condition/evaluator.go).
package query

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/relayhq/relay/internal/docval"
)

// Filter is a field-equality mapping, e.g. {"title": "The Matrix"}.
type Filter map[string]docval.Value

// Matcher compiles and caches one CEL program per distinct filter shape.
type Matcher struct {
	mu    sync.RWMutex
	cache map[string]cel.Program
}

func NewMatcher() *Matcher {
	return &Matcher{cache: make(map[string]cel.Program)}
}

// Match reports whether doc (an Object Value) satisfies every field in
// filter.
func (m *Matcher) Match(filter Filter, doc docval.Value) (bool, error) {
	if len(filter) == 0 {
		return true, nil
	}

	key := canonicalKey(filter)
	prg, err := m.compiled(key, filter)
	if err != nil {
		return false, err
	}

	vars := map[string]any{"doc": doc.ToAny()}
	out, _, err := prg.Eval(vars)
	if err != nil {
		// A field absent from doc evaluates to "no match", not an error —
		// CEL's dynamic typing raises "no such key" for missing map fields.
		return false, nil
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("query: expression did not return bool, got %T", out.Value())
	}
	return result, nil
}

func (m *Matcher) compiled(key string, filter Filter) (cel.Program, error) {
	m.mu.RLock()
	prg, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return prg, nil
	}

	expr, err := buildExpr(filter)
	if err != nil {
		return nil, err
	}

	env, err := cel.NewEnv(cel.Variable("doc", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("query: create CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("query: compile filter: %w", issues.Err())
	}
	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("query: build program: %w", err)
	}

	m.mu.Lock()
	m.cache[key] = prg
	m.mu.Unlock()
	return prg, nil
}

// buildExpr renders a filter into a CEL conjunction of
// `doc.field == literal` clauses, field names sorted for a stable cache key.
func buildExpr(filter Filter) (string, error) {
	var clauses []string
	for _, field := range sortedKeys(filter) {
		lit, err := celLiteral(filter[field])
		if err != nil {
			return "", err
		}
		clauses = append(clauses, fmt.Sprintf("(%q in doc && doc[%q] == %s)", field, field, lit))
	}
	return strings.Join(clauses, " && "), nil
}

func celLiteral(v docval.Value) (string, error) {
	switch v.Kind {
	case docval.KindStr:
		return fmt.Sprintf("%q", v.Str), nil
	case docval.KindNum:
		return fmt.Sprintf("%g", v.Num), nil
	case docval.KindBool:
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	case docval.KindNull:
		return "null", nil
	default:
		return "", fmt.Errorf("query: unsupported filter value kind %v", v.Kind)
	}
}

func canonicalKey(filter Filter) string {
	keys := sortedKeys(filter)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + filter[k].String()
	}
	return strings.Join(parts, "&")
}

func sortedKeys(filter Filter) []string {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
